package ui

import (
	"fmt"

	"github.com/Majr25/SpriteEdit/internal/drag"
	"github.com/Majr25/SpriteEdit/internal/editor"
	"github.com/Majr25/SpriteEdit/internal/logging/events"
	"github.com/Majr25/SpriteEdit/internal/model"
	uistate "github.com/Majr25/SpriteEdit/internal/ui/state"
)

// buildRows flattens the document into display rows: sections, their
// boxes and each box's names.
func buildRows(s *editor.Session) []uistate.Row {
	doc := s.Doc()
	rows := make([]uistate.Row, 0, 64)
	for _, sid := range doc.Sections() {
		sec := doc.Section(sid)
		rows = append(rows, uistate.Row{Elem: model.SectionElem(sid), Label: sec.Heading})
		for _, bid := range sec.Boxes() {
			b := doc.Box(bid)
			rows = append(rows, uistate.Row{
				Elem:    model.BoxElem(bid),
				Label:   boxLabel(b),
				Depth:   1,
				Pos:     b.ResolvedPos(),
				Pending: b.Image != nil,
			})
			for _, nid := range b.Names() {
				n := doc.Name(nid)
				rows = append(rows, uistate.Row{
					Elem:       model.NameElem(nid),
					Label:      n.Text,
					Depth:      2,
					Deprecated: n.Deprecated,
					Duplicate:  s.Duplicate(nid),
				})
			}
		}
	}
	return rows
}

func boxLabel(b *model.Box) string {
	switch {
	case b.Pos > 0 && b.Image != nil:
		return fmt.Sprintf("#%d (replaced)", b.Pos)
	case b.Pos > 0:
		return fmt.Sprintf("#%d", b.Pos)
	case b.NewPos > 0:
		return fmt.Sprintf("#%d (new)", b.NewPos)
	}
	return "(new)"
}

// orderSections regroups rows so every section, with its boxes and names,
// follows order. Sections missing from order keep their turn at the end.
func orderSections(rows []uistate.Row, order []model.Elem) []uistate.Row {
	blocks := make(map[model.Elem][]uistate.Row)
	var seen []model.Elem
	var cur model.Elem
	for _, row := range rows {
		if row.Depth == 0 {
			cur = row.Elem
			seen = append(seen, cur)
		}
		blocks[cur] = append(blocks[cur], row)
	}
	out := make([]uistate.Row, 0, len(rows))
	for _, e := range order {
		out = append(out, blocks[e]...)
		delete(blocks, e)
	}
	for _, e := range seen {
		out = append(out, blocks[e]...)
		delete(blocks, e)
	}
	return out
}

// refreshRows rebuilds the rows from the session. During a section drag
// they follow the drag's placeholder order instead of the document's.
func (m *Model) refreshRows() {
	m.rowsDirty = false
	rows := buildRows(m.session)
	if m.drag.Dragging() && m.drag.Mode() == drag.Manual {
		rows = orderSections(rows, m.drag.Order())
	}
	m.list.UpdateRows(rows)
	m.list.EnsureCursorVisible(m.maxVisibleRows())
}

// bodyHeight is the space between the header and the status lines.
func (m *Model) bodyHeight() int {
	h := m.height - headerLines - 2
	if m.showFooter {
		h--
	}
	if h < 1 {
		return 1
	}
	return h
}

func (m *Model) maxVisibleRows() int {
	if m.height <= 0 {
		return 0
	}
	return m.bodyHeight()
}

func (m *Model) moveCursor(move func() bool) bool {
	if !move() {
		return false
	}
	m.list.EnsureCursorVisible(m.maxVisibleRows())
	if row, ok := m.list.Current(); ok {
		events.UI.Cursor(m.list.Cursor, row.Elem.String())
	}
	return true
}

func (m *Model) currentElem() (model.Elem, bool) {
	row, ok := m.list.Current()
	if !ok {
		return model.Elem{}, false
	}
	return row.Elem, true
}

// ancestor walks up from e to the nearest element of kind.
func (m *Model) ancestor(e model.Elem, kind model.Kind) (model.Elem, bool) {
	for e.Kind != kind {
		parent, ok := m.session.Parent(e)
		if !ok || parent.IsRoot() {
			return model.Elem{}, false
		}
		e = parent
	}
	return e, true
}

// currentSection is the section holding the cursor row, or the first
// section when the tree is empty of rows.
func (m *Model) currentSection() (int, bool) {
	if e, ok := m.currentElem(); ok {
		if sec, ok := m.ancestor(e, model.KindSection); ok {
			return sec.ID, true
		}
	}
	secs := m.session.Doc().Sections()
	if len(secs) == 0 {
		return 0, false
	}
	return secs[0], true
}

// sectionIndex is where a new section goes: after the current one.
func (m *Model) sectionIndex() int {
	doc := m.session.Doc()
	if id, ok := m.currentSection(); ok {
		return doc.IndexOf(model.SectionElem(id)) + 1
	}
	return len(doc.Sections())
}

func (m *Model) selectElem(e model.Elem) {
	if m.rowsDirty {
		m.refreshRows()
	}
	if m.list.Select(e) {
		m.list.EnsureCursorVisible(m.maxVisibleRows())
	}
}

// rowAt maps a screen line to a visible row index.
func (m *Model) rowAt(y int) (int, bool) {
	idx := y - headerLines + m.list.ViewportOffset
	if y < headerLines || idx < 0 || idx >= len(m.list.Rows) {
		return 0, false
	}
	if max := m.maxVisibleRows(); max > 0 && y-headerLines >= max {
		return 0, false
	}
	return idx, true
}
