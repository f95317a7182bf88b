package state

import "github.com/Majr25/SpriteEdit/internal/model"

// Row is one line of the document tree.
type Row struct {
	Elem  model.Elem
	Label string
	Depth int

	// Pos is the sheet position of a box row, 0 for a new box.
	Pos        int
	Pending    bool
	Deprecated bool
	Duplicate  bool
}

// CloneRows produces a shallow copy of the provided rows.
func CloneRows(rows []Row) []Row {
	dup := make([]Row, len(rows))
	copy(dup, rows)
	return dup
}
