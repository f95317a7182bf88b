package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/Majr25/SpriteEdit/internal/drag"
	"github.com/Majr25/SpriteEdit/internal/model"
	uistate "github.com/Majr25/SpriteEdit/internal/ui/state"
)

const footerText = "j/k move  / jump  e edit  a name  S section  i add  r replace  d delete  x deprecate  m move  u undo  s save  q quit"

// rowIndent is the column where a row's label starts.
func rowIndent(depth int) int {
	return 2 + depth*2
}

// View implements tea.Model.
func (m *Model) View() string {
	lines := []string{m.headerLine(), m.warningLine()}
	switch m.mode {
	case ModeReview:
		lines = append(lines, m.review.View())
	case ModeMerge:
		lines = append(lines, m.mergeView())
	case ModeDuplicates:
		lines = append(lines, m.modal("Duplicate names must be fixed before saving", m.duplicatesContent()))
	default:
		lines = append(lines, m.treeLines()...)
	}
	lines = append(lines, m.statusLine(), m.promptLine())
	if m.showFooter {
		lines = append(lines, m.fit(styles.Footer.Render(footerText)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) fit(s string) string {
	if m.width <= 0 || lipgloss.Width(s) <= m.width {
		return s
	}
	return truncate.StringWithTail(s, uint(m.width-1), "…")
}

func (m *Model) headerLine() string {
	title := "SpriteEdit"
	if m.page != "" {
		title += " · " + m.page
	}
	if m.session.Modified() {
		title += " *"
	}
	doc := m.session.Doc()
	title += fmt.Sprintf("  (%d sections, %d boxes, %d/%d cells)", len(doc.Sections()), len(doc.AttachedBoxes()),
		m.session.LastPos(), m.session.Geometry().Capacity())
	return m.fit(styles.Header.Render(title))
}

func (m *Model) warningLine() string {
	if m.warnMsg == "" {
		return ""
	}
	return m.fit(styles.Warning.Render(m.warnMsg))
}

func (m *Model) treeLines() []string {
	rows := m.list.Rows
	if len(rows) == 0 {
		msg := "(empty; press S to add a section)"
		if m.list.Filter != "" {
			msg = fmt.Sprintf("No matches for %q", m.list.Filter)
		}
		return []string{styles.Info.Render(msg)}
	}
	start, end := 0, len(rows)
	if max := m.maxVisibleRows(); max > 0 && len(rows) > max {
		start = m.list.ViewportOffset
		if start < 0 {
			start = 0
		}
		if start+max > len(rows) {
			start = len(rows) - max
		}
		end = start + max
	}
	container, hasContainer := m.drag.Container()
	out := make([]string, 0, end-start)
	for idx := start; idx < end; idx++ {
		row := rows[idx]
		out = append(out, m.renderRow(row, idx == m.list.Cursor, hasContainer && row.Elem == container))
	}
	if m.drag.Dragging() && !m.keyboardDrag {
		m.drawGhost(out, start)
	}
	return out
}

// drawGhost draws the dragged row where the pointer holds it, over the
// line below the pointer. lines starts at row start.
func (m *Model) drawGhost(lines []string, start int) {
	idx := m.list.IndexOf(m.drag.Item())
	if idx < 0 {
		return
	}
	g := m.drag.Ghost()
	line := g.Y - headerLines
	if line < 0 || line >= len(lines) || line == idx-start {
		return
	}
	x := g.X
	if x < 0 {
		x = 0
	}
	lines[line] = m.fit(strings.Repeat(" ", x) + styles.Dragged.Render(rowText(m.list.Rows[idx])))
}

func (m *Model) renderRow(row uistate.Row, selected, dropTarget bool) string {
	indicator := "  "
	if selected {
		indicator = styles.SelectedIndicator.Render("▌") + " "
	}
	text := strings.Repeat("  ", row.Depth) + rowText(row)
	if m.width > 0 {
		avail := m.width - 2
		if avail < 1 {
			avail = 1
		}
		if lipgloss.Width(text) > avail {
			text = truncate.StringWithTail(text, uint(avail-1), "…")
		}
	}
	style := rowStyle(row)
	switch {
	case m.drag.Dragging() && row.Elem == m.drag.Item():
		style = styles.Dragged
	case dropTarget:
		style = styles.DropTarget
	case selected:
		style = styles.Selected
	}
	return indicator + style.Render(text)
}

func rowText(row uistate.Row) string {
	switch row.Elem.Kind {
	case model.KindSection:
		if row.Label == "" {
			return "(new section)"
		}
		return row.Label
	case model.KindBox:
		return "■ " + row.Label
	case model.KindName:
		label := row.Label
		if label == "" {
			label = "(new name)"
		}
		if row.Duplicate {
			label += "  [duplicate]"
		}
		return label
	}
	return row.Label
}

func rowStyle(row uistate.Row) *lipgloss.Style {
	switch row.Elem.Kind {
	case model.KindSection:
		return styles.Section
	case model.KindBox:
		if row.Pending {
			return styles.Pending
		}
		return styles.Box
	}
	switch {
	case row.Duplicate:
		return styles.Duplicate
	case row.Deprecated:
		return styles.Deprecated
	}
	return styles.Name
}

func (m *Model) modal(title, body string) string {
	content := styles.ModalTitle.Render(title) + "\n\n" + body + "\n\n" + styles.Footer.Render("press any key")
	return styles.Modal.Render(content)
}

func (m *Model) mergeView() string {
	title := "Merge conflict"
	if m.conflict != nil {
		title = fmt.Sprintf("Merge conflict: page changed at %s", m.conflict.Timestamp.Format("2006-01-02 15:04"))
	}
	hint := "ctrl+s save  ctrl+y copy yours  ctrl+o load theirs  esc abandon"
	return styles.ModalTitle.Render(title) + "\n" + m.merge.View() + "\n" + styles.Footer.Render(hint)
}

func (m *Model) statusLine() string {
	if m.errMsg != "" {
		return m.fit(styles.Error.Render("Error: " + m.errMsg))
	}
	switch m.mode {
	case ModeBusy:
		return styles.Info.Render("Working…")
	case ModeConfirmQuit:
		return styles.Warning.Render("Unsaved changes. Quit anyway? (y/n)")
	case ModeReview:
		return styles.Info.Render("enter save  esc cancel  ↑/↓ scroll")
	}
	if m.drag.Dragging() {
		return m.fit(styles.Info.Render(m.dragStatus()))
	}
	if info := m.currentInfo(); info != "" {
		return m.fit(styles.Info.Render(info))
	}
	return ""
}

func (m *Model) dragStatus() string {
	item := m.drag.Item()
	if m.drag.Mode() == drag.Manual {
		return fmt.Sprintf("Moving %s to position %d (enter drop, esc cancel)", m.elemLabel(item), m.drag.Placeholder()+1)
	}
	if c, ok := m.drag.Container(); ok {
		return fmt.Sprintf("Moving %s into %s (enter drop, esc cancel)", m.elemLabel(item), m.elemLabel(c))
	}
	return fmt.Sprintf("Moving %s (enter drop, esc cancel)", m.elemLabel(item))
}

func (m *Model) elemLabel(e model.Elem) string {
	doc := m.session.Doc()
	switch e.Kind {
	case model.KindSection:
		if sec := doc.Section(e.ID); sec != nil {
			return sec.Heading
		}
	case model.KindBox:
		if name := doc.FirstName(e.ID); name != "" {
			return name
		}
	case model.KindName:
		if n := doc.Name(e.ID); n != nil {
			return n.Text
		}
	}
	return e.String()
}

func (m *Model) promptLine() string {
	switch m.mode {
	case ModeInput:
		return m.fit(styles.FilterPrompt.Render(m.purpose.title()+": ") + m.input.View())
	case ModeJump:
		return m.fit(styles.FilterPrompt.Render("/") + m.filterText() + m.jumpHint())
	}
	return ""
}

// jumpHint lists the best matching names for the jump filter.
func (m *Model) jumpHint() string {
	if strings.TrimSpace(m.list.Filter) == "" {
		return ""
	}
	found := m.session.Search(m.list.Filter)
	if len(found) == 0 {
		return styles.FilterPlaceholder.Render("  no names match")
	}
	hint := strings.Join(found[:min(len(found), 3)], ", ")
	if len(found) > 3 {
		hint += fmt.Sprintf(" +%d", len(found)-3)
	}
	return styles.FilterPlaceholder.Render("  " + hint)
}

func (m *Model) filterText() string {
	if m.list.Filter == "" {
		return styles.FilterPlaceholder.Render("type to jump to a name")
	}
	runes := []rune(m.list.Filter)
	pos := m.list.FilterCursorPos()
	before := string(runes[:pos])
	after := string(runes[pos:])
	cursor := " "
	if pos < len(runes) {
		cursor = string(runes[pos])
		after = string(runes[pos+1:])
	}
	return styles.Filter.Render(before) + styles.Selected.Render(cursor) + styles.Filter.Render(after)
}
