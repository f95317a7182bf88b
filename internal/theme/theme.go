package theme

import "github.com/charmbracelet/lipgloss"

// Styles describes reusable Lip Gloss styles shared across the UI.
type Styles struct {
	Section           *lipgloss.Style
	Box               *lipgloss.Style
	Name              *lipgloss.Style
	Deprecated        *lipgloss.Style
	Duplicate         *lipgloss.Style
	Pending           *lipgloss.Style
	Selected          *lipgloss.Style
	SelectedIndicator *lipgloss.Style
	Dragged           *lipgloss.Style
	DropTarget        *lipgloss.Style
	Error             *lipgloss.Style
	Warning           *lipgloss.Style
	Info              *lipgloss.Style
	Header            *lipgloss.Style
	Footer            *lipgloss.Style
	Filter            *lipgloss.Style
	FilterPrompt      *lipgloss.Style
	FilterPlaceholder *lipgloss.Style
	Modal             *lipgloss.Style
	ModalTitle        *lipgloss.Style
	DiffAdded         *lipgloss.Style
	DiffRemoved       *lipgloss.Style
	DiffContext       *lipgloss.Style
}

var defaultStyles = Styles{
	Section: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true),
	),
	Box: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	),
	Name: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("249")),
	),
	Deprecated: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Strikethrough(true),
	),
	Duplicate: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
	),
	Pending: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
	),
	Selected: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("238")).Bold(true),
	),
	SelectedIndicator: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Background(lipgloss.Color("238")),
	),
	Dragged: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("33")),
	),
	DropTarget: ptr(
		lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("33")),
	),
	Error: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	),
	Warning: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	),
	Info: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("249")),
	),
	Header: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true),
	),
	Footer: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	),
	Filter: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("249")),
	),
	FilterPrompt: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true),
	),
	FilterPlaceholder: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	),
	Modal: ptr(
		lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1),
	),
	ModalTitle: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true),
	),
	DiffAdded: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
	),
	DiffRemoved: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	),
	DiffContext: ptr(
		lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	),
}

// Default exposes the standard style set used across the application.
func Default() *Styles {
	return &defaultStyles
}

func ptr(style lipgloss.Style) *lipgloss.Style {
	return &style
}
