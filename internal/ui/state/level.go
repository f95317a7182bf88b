package state

import "github.com/Majr25/SpriteEdit/internal/model"

// Level holds the visible document rows with the cursor, viewport and the
// jump filter.
type Level struct {
	Rows           []Row
	Full           []Row
	Filter         string
	FilterCursor   int
	Cursor         int
	LastCursor     int
	ViewportOffset int
}

// NewLevel constructs a Level showing rows.
func NewLevel(rows []Row) *Level {
	l := &Level{LastCursor: -1}
	l.UpdateRows(rows)
	return l
}

// IndexOf returns the visible row index of e, or -1.
func (l *Level) IndexOf(e model.Elem) int {
	for i, row := range l.Rows {
		if row.Elem == e {
			return i
		}
	}
	return -1
}

// Current returns the row under the cursor.
func (l *Level) Current() (Row, bool) {
	if l.Cursor < 0 || l.Cursor >= len(l.Rows) {
		return Row{}, false
	}
	return l.Rows[l.Cursor], true
}

// Select moves the cursor onto e if it is visible.
func (l *Level) Select(e model.Elem) bool {
	idx := l.IndexOf(e)
	if idx < 0 {
		return false
	}
	l.Cursor = idx
	return true
}

// UpdateRows replaces the rows after a document change. The cursor stays on
// the same element when it survived, otherwise on the same line.
func (l *Level) UpdateRows(rows []Row) {
	prev, hadPrev := l.Current()
	prevOffset := l.ViewportOffset
	l.Full = CloneRows(rows)
	l.applyFilter()
	if hadPrev {
		l.Select(prev.Elem)
	}
	if len(l.Rows) == 0 {
		l.ViewportOffset = 0
		return
	}
	if prevOffset < 0 || prevOffset > len(l.Rows)-1 {
		prevOffset = 0
	}
	l.ViewportOffset = prevOffset
}
