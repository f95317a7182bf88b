package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Majr25/SpriteEdit/internal/backend"
	"github.com/Majr25/SpriteEdit/internal/dropzone"
	"github.com/Majr25/SpriteEdit/internal/wiki"
)

func waitForBackendEvent(w *backend.Watcher) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-w.Events()
		if !ok {
			return backendDoneMsg{}
		}
		return backendEventMsg{event: evt}
	}
}

type backendEventMsg struct {
	event backend.Event
}

type backendDoneMsg struct{}

func (m *Model) handleBackendEventMsg(msg tea.Msg) tea.Cmd {
	eventMsg, ok := msg.(backendEventMsg)
	if !ok {
		return nil
	}
	m.applyBackendEvent(eventMsg.event)
	if m.backend != nil {
		return waitForBackendEvent(m.backend)
	}
	return nil
}

func (m *Model) handleBackendDoneMsg(msg tea.Msg) tea.Cmd {
	m.backend = nil
	return nil
}

func (m *Model) applyBackendEvent(evt backend.Event) {
	if m.dispatcher == nil {
		return
	}
	res := m.dispatcher.Handle(evt)
	if res.Err != nil {
		m.warnMsg = fmt.Sprintf("Could not reach the wiki: %v", res.Err)
		return
	}
	switch {
	case m.remote.Blocked() != nil:
		m.warnMsg = fmt.Sprintf("Saving disabled: %v", m.remote.Blocked())
	case m.remote.Stale():
		m.warnMsg = fmt.Sprintf("%s was edited at %s; saving will ask you to merge", m.pageLabel(), wiki.FormatTimestamp(m.remote.Latest()))
	default:
		m.warnMsg = ""
	}
}

func (m *Model) pageLabel() string {
	if m.page != "" {
		return m.page
	}
	return "The IDs page"
}

func waitForDrop(z *dropzone.Zone) tea.Cmd {
	return func() tea.Msg {
		select {
		case paths, ok := <-z.Batches():
			if !ok {
				return dropDoneMsg{}
			}
			return dropMsg{paths: paths}
		case err, ok := <-z.Errors():
			if !ok {
				return dropDoneMsg{}
			}
			return dropErrMsg{err: err}
		}
	}
}

type dropMsg struct {
	paths []string
}

type dropErrMsg struct {
	err error
}

type dropDoneMsg struct{}

// handleDropMsg inserts files dropped into the watched directory into the
// section under the cursor. Batches that arrive mid-edit wait for browse
// mode.
func (m *Model) handleDropMsg(msg tea.Msg) tea.Cmd {
	drop, ok := msg.(dropMsg)
	if !ok {
		return nil
	}
	m.queuedDrops = append(m.queuedDrops, drop.paths)
	m.flushDrops()
	if m.zone != nil {
		return waitForDrop(m.zone)
	}
	return nil
}

func (m *Model) flushDrops() {
	if m.mode != ModeBrowse || m.drag.Dragging() || len(m.queuedDrops) == 0 {
		return
	}
	sec, ok := m.currentSection()
	if !ok {
		m.report(errNoSection, "")
		return
	}
	batches := m.queuedDrops
	m.queuedDrops = nil
	for _, paths := range batches {
		m.insertPaths(sec, paths)
	}
}

func (m *Model) handleDropErrMsg(msg tea.Msg) tea.Cmd {
	dropErr, ok := msg.(dropErrMsg)
	if !ok {
		return nil
	}
	m.report(fmt.Errorf("watch drop directory: %w", dropErr.err), "")
	if m.zone != nil {
		return waitForDrop(m.zone)
	}
	return nil
}

func (m *Model) handleDropDoneMsg(msg tea.Msg) tea.Cmd {
	m.zone = nil
	return nil
}
