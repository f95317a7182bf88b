package command

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Majr25/SpriteEdit/internal/logging/events"
)

// Request is a blocking job to run off the UI goroutine.
type Request struct {
	ID    string
	Label string
	Run   func() tea.Msg
}

// Bus runs requests as Bubble Tea commands and traces their results.
type Bus struct{}

// New initialises a command bus instance.
func New() *Bus {
	return &Bus{}
}

// Execute wraps a request into a Bubble Tea command.
func (b *Bus) Execute(req Request) tea.Cmd {
	events.Command.Queue(req.ID, req.Label)
	return func() tea.Msg {
		if req.Run == nil {
			return nil
		}
		msg := req.Run()
		events.Command.Result(req.ID, req.Label, fmt.Sprintf("%T", msg))
		return msg
	}
}
