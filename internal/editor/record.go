package editor

import (
	"fmt"

	"github.com/Majr25/SpriteEdit/internal/model"
)

// Action is the kind of mutation a Record performs.
type Action int

const (
	ActionEdit Action = iota + 1
	ActionInsert
	ActionDelete
	ActionReplaceImage
	ActionResetImage
	ActionToggleDeprecation
)

func (a Action) String() string {
	switch a {
	case ActionEdit:
		return "edit"
	case ActionInsert:
		return "insert"
	case ActionDelete:
		return "delete"
	case ActionReplaceImage:
		return "replace-image"
	case ActionResetImage:
		return "reset-image"
	case ActionToggleDeprecation:
		return "toggle-deprecation"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Content carries what a record needs to apply and invert itself. Fields not
// relevant to the action stay zero. Old values are filled in when the record
// is first applied.
type Content struct {
	Elem model.Elem

	OldText string
	NewText string

	// Parent and Index address the element's location after an insert.
	// Index is the final position among the parent's children.
	Parent model.Elem
	Index  int
	// OldParent and OldIndex address where the element was before an insert
	// or delete. Fresh is set when it had no parent.
	OldParent model.Elem
	OldIndex  int
	Fresh     bool

	Image    *model.Image
	OldImage *model.Image
	OldNew   bool
}

// Record is one semantic mutation. Derived holds the re-sorts the mutation
// caused; they are replayed after it and reverted before it.
type Record struct {
	Action  Action
	Content Content
	Derived []Record
}

// Entry is a batch of records committed as one undo step.
type Entry []Record

// inverse returns the record that undoes r.
func (r Record) inverse() Record {
	c := r.Content
	switch r.Action {
	case ActionEdit:
		return Record{Action: ActionEdit, Content: Content{Elem: c.Elem, OldText: c.NewText, NewText: c.OldText}}
	case ActionInsert:
		if c.Fresh {
			return Record{Action: ActionDelete, Content: Content{Elem: c.Elem, OldParent: c.Parent, OldIndex: c.Index}}
		}
		return Record{Action: ActionInsert, Content: Content{
			Elem: c.Elem, Parent: c.OldParent, Index: c.OldIndex,
			OldParent: c.Parent, OldIndex: c.Index,
		}}
	case ActionDelete:
		return Record{Action: ActionInsert, Content: Content{Elem: c.Elem, Parent: c.OldParent, Index: c.OldIndex, Fresh: true}}
	case ActionReplaceImage, ActionResetImage:
		if c.OldImage == nil {
			return Record{Action: ActionResetImage, Content: Content{Elem: c.Elem, OldImage: c.Image, OldNew: c.Image != nil}}
		}
		return Record{Action: ActionReplaceImage, Content: Content{Elem: c.Elem, Image: c.OldImage, OldImage: c.Image, OldNew: c.Image != nil}}
	case ActionToggleDeprecation:
		return r
	}
	return r
}

// images returns the image handles referenced by the record's content.
func (r Record) images() []*model.Image {
	var out []*model.Image
	if r.Content.Image != nil {
		out = append(out, r.Content.Image)
	}
	if r.Content.OldImage != nil {
		out = append(out, r.Content.OldImage)
	}
	return out
}
