// Package model holds the sprite documentation data model. Sections, boxes
// and names live in a flat arena keyed by stable integer IDs; parent and child
// relations are ID references so detached nodes can be reattached by history.
package model

import (
	"fmt"
	"strings"
)

// Kind identifies the node type an Elem refers to.
type Kind int

const (
	KindNone Kind = iota
	KindSection
	KindBox
	KindName
)

func (k Kind) String() string {
	switch k {
	case KindSection:
		return "section"
	case KindBox:
		return "box"
	case KindName:
		return "name"
	default:
		return "document"
	}
}

// Elem addresses a node in the arena. The zero Elem is the document root.
type Elem struct {
	Kind Kind
	ID   int
}

// Root is the document itself, the parent of every attached section.
var Root = Elem{}

func (e Elem) IsRoot() bool { return e.Kind == KindNone }

func (e Elem) String() string {
	if e.IsRoot() {
		return "document"
	}
	return fmt.Sprintf("%s#%d", e.Kind, e.ID)
}

// SectionElem, BoxElem and NameElem build Elems for the given IDs.
func SectionElem(id int) Elem { return Elem{Kind: KindSection, ID: id} }
func BoxElem(id int) Elem     { return Elem{Kind: KindBox, ID: id} }
func NameElem(id int) Elem    { return Elem{Kind: KindName, ID: id} }

// Name is a single sprite name.
type Name struct {
	ID         int
	Text       string
	Deprecated bool
	// New marks a name created in this session that has never held text.
	New bool

	box int
}

// Box returns the owning box ID, 0 when detached.
func (n *Name) Box() int { return n.box }

// Box groups names that share one sprite image.
type Box struct {
	ID int
	// Pos is the 1-based sheet slot, 0 when the box has not been allocated.
	Pos int
	// NewPos is the slot assigned by the allocator to an unallocated box.
	NewPos int
	// Image holds pending image data, nil when the box uses the sheet region.
	Image *Image
	// New marks a box whose pixels must be written into the sheet on save.
	New bool

	section int
	names   []int
}

// Section returns the owning section ID, 0 when detached.
func (b *Box) Section() int { return b.section }

// Names returns a copy of the box's name IDs in order.
func (b *Box) Names() []int { return append([]int(nil), b.names...) }

// ResolvedPos returns Pos, or NewPos for boxes that have not been saved yet.
func (b *Box) ResolvedPos() int {
	if b.Pos > 0 {
		return b.Pos
	}
	return b.NewPos
}

// Section is a headed, ordered list of boxes.
type Section struct {
	ID      int
	Heading string
	// Num is the section identifier written to the IDs table, 0 until assigned.
	Num int
	New bool

	attached bool
	boxes    []int
}

// Boxes returns a copy of the section's box IDs in order.
func (s *Section) Boxes() []int { return append([]int(nil), s.boxes...) }

// Document is the arena plus the ordered list of attached sections.
type Document struct {
	sections []int
	secs     map[int]*Section
	boxes    map[int]*Box
	names    map[int]*Name
	nextID   int
}

// New returns an empty document.
func New() *Document {
	return &Document{
		secs:  make(map[int]*Section),
		boxes: make(map[int]*Box),
		names: make(map[int]*Name),
	}
}

func (d *Document) allocID() int {
	d.nextID++
	return d.nextID
}

// NewSection creates a detached section.
func (d *Document) NewSection(heading string) *Section {
	s := &Section{ID: d.allocID(), Heading: heading}
	d.secs[s.ID] = s
	return s
}

// NewBox creates a detached box at the given sheet position (0 for none).
func (d *Document) NewBox(pos int) *Box {
	b := &Box{ID: d.allocID(), Pos: pos}
	d.boxes[b.ID] = b
	return b
}

// NewName creates a detached name.
func (d *Document) NewName(text string) *Name {
	n := &Name{ID: d.allocID(), Text: text}
	d.names[n.ID] = n
	return n
}

func (d *Document) Section(id int) *Section { return d.secs[id] }
func (d *Document) Box(id int) *Box         { return d.boxes[id] }
func (d *Document) Name(id int) *Name       { return d.names[id] }

// Sections returns the attached section IDs in document order.
func (d *Document) Sections() []int { return append([]int(nil), d.sections...) }

// Exists reports whether the arena knows the element.
func (d *Document) Exists(e Elem) bool {
	switch e.Kind {
	case KindSection:
		return d.secs[e.ID] != nil
	case KindBox:
		return d.boxes[e.ID] != nil
	case KindName:
		return d.names[e.ID] != nil
	}
	return e.IsRoot()
}

// Children returns the ordered child elements of parent.
func (d *Document) Children(parent Elem) []Elem {
	var ids []int
	kind := KindNone
	switch parent.Kind {
	case KindNone:
		ids, kind = d.sections, KindSection
	case KindSection:
		if s := d.secs[parent.ID]; s != nil {
			ids, kind = s.boxes, KindBox
		}
	case KindBox:
		if b := d.boxes[parent.ID]; b != nil {
			ids, kind = b.names, KindName
		}
	}
	out := make([]Elem, len(ids))
	for i, id := range ids {
		out[i] = Elem{Kind: kind, ID: id}
	}
	return out
}

// Parent returns the element's parent and whether it is attached to one.
func (d *Document) Parent(e Elem) (Elem, bool) {
	switch e.Kind {
	case KindSection:
		if s := d.secs[e.ID]; s != nil && s.attached {
			return Root, true
		}
	case KindBox:
		if b := d.boxes[e.ID]; b != nil && b.section != 0 {
			return SectionElem(b.section), true
		}
	case KindName:
		if n := d.names[e.ID]; n != nil && n.box != 0 {
			return BoxElem(n.box), true
		}
	}
	return Elem{}, false
}

// IndexOf returns the element's position among its siblings, -1 if detached.
func (d *Document) IndexOf(e Elem) int {
	parent, ok := d.Parent(e)
	if !ok {
		return -1
	}
	for i, id := range d.childIDs(parent) {
		if id == e.ID {
			return i
		}
	}
	return -1
}

// Attached reports whether the element is reachable from the document root.
func (d *Document) Attached(e Elem) bool {
	for !e.IsRoot() {
		parent, ok := d.Parent(e)
		if !ok {
			return false
		}
		e = parent
	}
	return true
}

func (d *Document) childIDs(parent Elem) []int {
	switch parent.Kind {
	case KindNone:
		return d.sections
	case KindSection:
		if s := d.secs[parent.ID]; s != nil {
			return s.boxes
		}
	case KindBox:
		if b := d.boxes[parent.ID]; b != nil {
			return b.names
		}
	}
	return nil
}

func (d *Document) setChildIDs(parent Elem, ids []int) {
	switch parent.Kind {
	case KindNone:
		d.sections = ids
	case KindSection:
		d.secs[parent.ID].boxes = ids
	case KindBox:
		d.boxes[parent.ID].names = ids
	}
}

func childKind(parent Elem) Kind {
	switch parent.Kind {
	case KindNone:
		return KindSection
	case KindSection:
		return KindBox
	case KindBox:
		return KindName
	}
	return KindNone
}

// Detach removes the element from its parent, returning the previous parent
// and index. Detached elements stay in the arena.
func (d *Document) Detach(e Elem) (Elem, int, bool) {
	parent, ok := d.Parent(e)
	if !ok {
		return Elem{}, -1, false
	}
	ids := d.childIDs(parent)
	index := -1
	for i, id := range ids {
		if id == e.ID {
			index = i
			break
		}
	}
	if index < 0 {
		return Elem{}, -1, false
	}
	next := make([]int, 0, len(ids)-1)
	next = append(next, ids[:index]...)
	next = append(next, ids[index+1:]...)
	d.setChildIDs(parent, next)
	d.setParent(e, Elem{}, false)
	return parent, index, true
}

// Insert attaches the element under parent at index, detaching it from any
// current parent first. The index is clamped to the child list.
func (d *Document) Insert(e Elem, parent Elem, index int) error {
	if !d.Exists(e) || !d.Exists(parent) {
		return fmt.Errorf("insert %s into %s: unknown element", e, parent)
	}
	if childKind(parent) != e.Kind {
		return fmt.Errorf("insert %s into %s: kind mismatch", e, parent)
	}
	d.Detach(e)
	ids := d.childIDs(parent)
	if index < 0 {
		index = 0
	}
	if index > len(ids) {
		index = len(ids)
	}
	next := make([]int, 0, len(ids)+1)
	next = append(next, ids[:index]...)
	next = append(next, e.ID)
	next = append(next, ids[index:]...)
	d.setChildIDs(parent, next)
	d.setParent(e, parent, true)
	return nil
}

func (d *Document) setParent(e Elem, parent Elem, attached bool) {
	switch e.Kind {
	case KindSection:
		d.secs[e.ID].attached = attached
	case KindBox:
		if attached {
			d.boxes[e.ID].section = parent.ID
		} else {
			d.boxes[e.ID].section = 0
		}
	case KindName:
		if attached {
			d.names[e.ID].box = parent.ID
		} else {
			d.names[e.ID].box = 0
		}
	}
}

// SortKey returns the key an element sorts by: the lowercase text of a name,
// the lowercase text of a box's first name, or a section's lowercase heading.
func (d *Document) SortKey(e Elem) string {
	switch e.Kind {
	case KindName:
		if n := d.names[e.ID]; n != nil {
			return strings.ToLower(n.Text)
		}
	case KindBox:
		if b := d.boxes[e.ID]; b != nil {
			return strings.ToLower(d.FirstName(b.ID))
		}
	case KindSection:
		if s := d.secs[e.ID]; s != nil {
			return strings.ToLower(s.Heading)
		}
	}
	return ""
}

// FirstName returns the text of the box's first name.
func (d *Document) FirstName(boxID int) string {
	b := d.boxes[boxID]
	if b == nil || len(b.names) == 0 {
		return ""
	}
	if n := d.names[b.names[0]]; n != nil {
		return n.Text
	}
	return ""
}

// Walk visits every attached section, box and name in document order.
func (d *Document) Walk(fn func(e Elem) bool) {
	for _, sid := range d.sections {
		if !fn(SectionElem(sid)) {
			return
		}
		for _, bid := range d.secs[sid].boxes {
			if !fn(BoxElem(bid)) {
				return
			}
			for _, nid := range d.boxes[bid].names {
				if !fn(NameElem(nid)) {
					return
				}
			}
		}
	}
}

// AttachedBoxes returns every attached box in document order.
func (d *Document) AttachedBoxes() []*Box {
	var out []*Box
	for _, sid := range d.sections {
		for _, bid := range d.secs[sid].boxes {
			out = append(out, d.boxes[bid])
		}
	}
	return out
}

// Images returns every image handle referenced by the arena, attached or not.
func (d *Document) Images() []*Image {
	var out []*Image
	for _, b := range d.boxes {
		if b.Image != nil {
			out = append(out, b.Image)
		}
	}
	return out
}

// Dump renders the attached tree as text. Two documents with the same dump
// hold the same attached state.
func (d *Document) Dump() string {
	var b strings.Builder
	d.Walk(func(e Elem) bool {
		switch e.Kind {
		case KindSection:
			s := d.secs[e.ID]
			fmt.Fprintf(&b, "section %q num=%d\n", s.Heading, s.Num)
		case KindBox:
			box := d.boxes[e.ID]
			fmt.Fprintf(&b, "  box pos=%d new=%t image=%t\n", box.Pos, box.New, box.Image != nil)
		case KindName:
			n := d.names[e.ID]
			fmt.Fprintf(&b, "    name %q deprecated=%t\n", n.Text, n.Deprecated)
		}
		return true
	})
	return b.String()
}
