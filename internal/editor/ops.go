package editor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Majr25/SpriteEdit/internal/model"
	"github.com/Majr25/SpriteEdit/internal/names"
)

// DefaultHeading replaces a blank heading on the only section.
const DefaultHeading = "Uncategorized"

var (
	ErrBlank      = errors.New("text is blank")
	ErrNoOriginal = errors.New("box has no sheet image to reset to")
	ErrNoSprites  = errors.New("no usable images")
)

// Sprite is a named image to add as a new box.
type Sprite struct {
	Name  string
	Image *model.Image
}

// BeginSection inserts a new blank section at index without committing. The
// heading is set with SetHeading; a heading left blank discards the section.
func (s *Session) BeginSection(index int) (int, error) {
	sec := s.doc.NewSection("")
	sec.New = true
	err := s.Apply(Record{Action: ActionInsert, Content: Content{
		Elem: model.SectionElem(sec.ID), Parent: model.Root, Index: index,
	}}, true, false)
	if err != nil {
		return 0, err
	}
	return sec.ID, nil
}

// AddSection inserts a section with the given heading at index.
func (s *Session) AddSection(heading string, index int) (int, error) {
	if strings.TrimSpace(heading) == "" {
		return 0, ErrBlank
	}
	id, err := s.BeginSection(index)
	if err != nil {
		return 0, err
	}
	return id, s.SetHeading(id, heading)
}

// SetHeading finishes editing a heading. A blank heading discards a new
// section, becomes DefaultHeading on the only section, and otherwise
// deletes the section.
func (s *Session) SetHeading(sectionID int, text string) error {
	sec := s.doc.Section(sectionID)
	if sec == nil {
		return fmt.Errorf("section %d: %w", sectionID, ErrUnknownElement)
	}
	elem := model.SectionElem(sectionID)
	text = strings.TrimSpace(text)
	if text == "" {
		switch {
		case sec.New:
			s.drop(elem)
			return nil
		case len(s.doc.Sections()) == 1:
			text = DefaultHeading
		default:
			return s.Apply(Record{Action: ActionDelete, Content: Content{Elem: elem}}, false, false)
		}
	}
	if text == sec.Heading {
		s.Commit()
		return nil
	}
	return s.Apply(Record{Action: ActionEdit, Content: Content{Elem: elem, NewText: text}}, false, false)
}

// BeginName appends a new blank name to a box without committing. The text
// is set with SetName; a name left blank is discarded.
func (s *Session) BeginName(boxID int) (int, error) {
	b := s.doc.Box(boxID)
	if b == nil {
		return 0, fmt.Errorf("box %d: %w", boxID, ErrUnknownElement)
	}
	n := s.doc.NewName("")
	n.New = true
	err := s.Apply(Record{Action: ActionInsert, Content: Content{
		Elem: model.NameElem(n.ID), Parent: model.BoxElem(boxID), Index: len(b.Names()),
	}}, true, false)
	if err != nil {
		return 0, err
	}
	return n.ID, nil
}

// AddName adds a name to a box.
func (s *Session) AddName(boxID int, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrBlank
	}
	id, err := s.BeginName(boxID)
	if err != nil {
		return 0, err
	}
	return id, s.SetName(id, text)
}

// SetName finishes editing a name. A blank name discards a new name and
// otherwise deletes it.
func (s *Session) SetName(nameID int, text string) error {
	n := s.doc.Name(nameID)
	if n == nil {
		return fmt.Errorf("name %d: %w", nameID, ErrUnknownElement)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		if n.New {
			s.drop(model.NameElem(nameID))
			return nil
		}
		return s.DeleteName(nameID)
	}
	if text == n.Text {
		s.Commit()
		return nil
	}
	return s.Apply(Record{Action: ActionEdit, Content: Content{Elem: model.NameElem(nameID), NewText: text}}, false, false)
}

// drop removes a new element that never held text and discards the pending
// queue that created it.
func (s *Session) drop(e model.Elem) {
	if s.doc.Attached(e) {
		s.unregisterTree(e)
	}
	s.doc.Detach(e)
	s.Discard()
	s.notify(Change{Record: Record{Action: ActionDelete, Content: Content{Elem: e}}, Replay: true})
}

// DeleteName deletes a name, or its whole box when it is the last one.
func (s *Session) DeleteName(nameID int) error {
	n := s.doc.Name(nameID)
	if n == nil {
		return fmt.Errorf("name %d: %w", nameID, ErrUnknownElement)
	}
	if box := s.doc.Box(n.Box()); box != nil && len(box.Names()) == 1 {
		return s.DeleteBox(box.ID)
	}
	return s.Apply(Record{Action: ActionDelete, Content: Content{Elem: model.NameElem(nameID)}}, false, false)
}

// DeleteBox deletes a box and all of its names.
func (s *Session) DeleteBox(boxID int) error {
	return s.Apply(Record{Action: ActionDelete, Content: Content{Elem: model.BoxElem(boxID)}}, false, false)
}

// DeleteSection deletes a section with everything in it.
func (s *Session) DeleteSection(sectionID int) error {
	return s.Apply(Record{Action: ActionDelete, Content: Content{Elem: model.SectionElem(sectionID)}}, false, false)
}

// ToggleDeprecated flips a name's deprecated flag.
func (s *Session) ToggleDeprecated(nameID int) error {
	return s.Apply(Record{Action: ActionToggleDeprecation, Content: Content{Elem: model.NameElem(nameID)}}, false, false)
}

// ReplaceImage attaches pending image data to a box.
func (s *Session) ReplaceImage(boxID int, img *model.Image) error {
	if img == nil {
		return fmt.Errorf("replace image on box %d: nil image", boxID)
	}
	return s.Apply(Record{Action: ActionReplaceImage, Content: Content{Elem: model.BoxElem(boxID), Image: img}}, false, false)
}

// ResetImage reverts a box to its region of the original sheet.
func (s *Session) ResetImage(boxID int) error {
	b := s.doc.Box(boxID)
	if b == nil {
		return fmt.Errorf("box %d: %w", boxID, ErrUnknownElement)
	}
	if b.Pos == 0 {
		return ErrNoOriginal
	}
	if b.Image == nil {
		return nil
	}
	return s.Apply(Record{Action: ActionResetImage, Content: Content{Elem: model.BoxElem(boxID)}}, false, false)
}

// InsertSprites adds one new box per sprite to a section, each in its
// alphabetical slot, as a single undo step. Sprites with blank names are
// skipped. It returns the new box IDs.
func (s *Session) InsertSprites(sectionID int, sprites []Sprite) ([]int, error) {
	if s.doc.Section(sectionID) == nil {
		return nil, fmt.Errorf("section %d: %w", sectionID, ErrUnknownElement)
	}
	parent := model.SectionElem(sectionID)
	var ids []int
	for _, sp := range sprites {
		name := strings.TrimSpace(sp.Name)
		if name == "" || sp.Image == nil {
			continue
		}
		b := s.doc.NewBox(0)
		b.Image = sp.Image
		b.New = true
		n := s.doc.NewName(name)
		if err := s.doc.Insert(model.NameElem(n.ID), model.BoxElem(b.ID), 0); err != nil {
			return ids, err
		}
		var keys []string
		for _, sib := range s.doc.Children(parent) {
			keys = append(keys, s.doc.SortKey(sib))
		}
		index := names.InsertIndex(name, keys, -1)
		err := s.Apply(Record{Action: ActionInsert, Content: Content{
			Elem: model.BoxElem(b.ID), Parent: parent, Index: index,
		}}, true, false)
		if err != nil {
			s.Commit()
			return ids, err
		}
		ids = append(ids, b.ID)
	}
	if len(ids) == 0 {
		return nil, ErrNoSprites
	}
	s.Commit()
	return ids, nil
}

// Move inserts e under parent at index.
func (s *Session) Move(e, parent model.Elem, index int, queue bool) error {
	return s.Apply(Record{Action: ActionInsert, Content: Content{Elem: e, Parent: parent, Index: index}}, queue, false)
}

// Delete removes e.
func (s *Session) Delete(e model.Elem, queue bool) error {
	return s.Apply(Record{Action: ActionDelete, Content: Content{Elem: e}}, queue, false)
}

// Draggable reports whether e can be picked up. New elements that never
// held text cannot.
func (s *Session) Draggable(e model.Elem) bool {
	switch e.Kind {
	case model.KindName:
		n := s.doc.Name(e.ID)
		return n != nil && !(n.New && n.Text == "") && s.doc.Attached(e)
	case model.KindBox:
		return s.doc.Box(e.ID) != nil && s.doc.Attached(e)
	case model.KindSection:
		sec := s.doc.Section(e.ID)
		return sec != nil && !(sec.New && sec.Heading == "") && s.doc.Attached(e)
	}
	return false
}

func (s *Session) Children(parent model.Elem) []model.Elem   { return s.doc.Children(parent) }
func (s *Session) Parent(e model.Elem) (model.Elem, bool)     { return s.doc.Parent(e) }
func (s *Session) SortKey(e model.Elem) string                { return s.doc.SortKey(e) }
