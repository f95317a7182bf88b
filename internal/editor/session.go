// Package editor owns an edit session: the document, the name registry and
// the undo history. Every mutation of the document goes through Apply.
package editor

import (
	"errors"
	"fmt"
	"image"

	"github.com/Majr25/SpriteEdit/internal/history"
	"github.com/Majr25/SpriteEdit/internal/logging/events"
	"github.com/Majr25/SpriteEdit/internal/model"
	"github.com/Majr25/SpriteEdit/internal/names"
	"github.com/Majr25/SpriteEdit/internal/sheet"
)

var (
	ErrUnknownElement = errors.New("unknown element")
	ErrNotAttached    = errors.New("element is not attached")
	ErrClosed         = errors.New("session closed")
)

// Change is delivered to subscribers after every applied record.
type Change struct {
	Record Record
	Replay bool
}

// Options configures a new session.
type Options struct {
	Geometry sheet.Geometry
	// Sheet is the decoded original spritesheet; nil for an empty sheet.
	Sheet image.Image
	// LastPos is the highest position known to be allocated.
	LastPos int
}

// Session is a single edit session. It is not safe for concurrent use;
// callers serialize access on one goroutine.
type Session struct {
	doc     *model.Document
	reg     *names.Registry[int]
	hist    *history.Stack[Entry]
	queue   Entry
	evicted []Entry

	geo     sheet.Geometry
	src     image.Image
	lastPos int

	observers map[int]func(Change)
	nextObs   int
	closed    bool
}

// New returns a session over an empty document.
func New(opts Options) *Session {
	s := &Session{
		doc:       model.New(),
		reg:       names.NewRegistry[int](),
		geo:       opts.Geometry,
		src:       opts.Sheet,
		lastPos:   opts.LastPos,
		observers: make(map[int]func(Change)),
	}
	s.hist = history.New(func(e Entry) { s.evicted = append(s.evicted, e) })
	return s
}

// Doc exposes the document for reading. Callers must not mutate it.
func (s *Session) Doc() *model.Document { return s.doc }

func (s *Session) Geometry() sheet.Geometry { return s.geo }
func (s *Session) Sheet() image.Image       { return s.src }
func (s *Session) LastPos() int             { return s.lastPos }

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Session) Subscribe(fn func(Change)) func() {
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() { delete(s.observers, id) }
}

func (s *Session) notify(c Change) {
	for _, fn := range s.observers {
		fn(c)
	}
}

// Apply performs rec. Replayed records (undo and redo) are never queued or
// recorded. Other records join the pending queue; unless queue is set the
// queue is then committed as one history entry.
func (s *Session) Apply(rec Record, queue, replay bool) error {
	if s.closed {
		return ErrClosed
	}
	applied, err := s.apply(rec, replay)
	if err != nil {
		return err
	}
	events.Session.Apply(applied.Action.String(), applied.Content.Elem.String(), queue, replay)
	if !replay {
		s.queue = append(s.queue, applied)
		if !queue {
			s.Commit()
		}
	}
	s.notify(Change{Record: applied, Replay: replay})
	return nil
}

func (s *Session) apply(rec Record, replay bool) (Record, error) {
	c := &rec.Content
	if !s.doc.Exists(c.Elem) || c.Elem.IsRoot() {
		return rec, fmt.Errorf("%s %s: %w", rec.Action, c.Elem, ErrUnknownElement)
	}
	var derived []Record
	switch rec.Action {
	case ActionEdit:
		if err := s.applyEdit(c, replay, &derived); err != nil {
			return rec, err
		}
	case ActionInsert:
		if err := s.applyInsert(c, replay, &derived); err != nil {
			return rec, err
		}
	case ActionDelete:
		if err := s.applyDelete(c, replay, &derived); err != nil {
			return rec, err
		}
	case ActionReplaceImage, ActionResetImage:
		b := s.doc.Box(c.Elem.ID)
		if b == nil {
			return rec, fmt.Errorf("%s on %s: not a box", rec.Action, c.Elem)
		}
		if !replay {
			c.OldImage, c.OldNew = b.Image, b.New
		}
		if rec.Action == ActionResetImage {
			c.Image = nil
		}
		b.Image = c.Image
		b.New = c.Image != nil
	case ActionToggleDeprecation:
		n := s.doc.Name(c.Elem.ID)
		if n == nil {
			return rec, fmt.Errorf("toggle deprecation on %s: not a name", c.Elem)
		}
		n.Deprecated = !n.Deprecated
	default:
		return rec, fmt.Errorf("unknown action %d", rec.Action)
	}
	if !replay {
		rec.Derived = derived
	}
	return rec, nil
}

func (s *Session) applyEdit(c *Content, replay bool, derived *[]Record) error {
	switch c.Elem.Kind {
	case model.KindName:
		n := s.doc.Name(c.Elem.ID)
		if !replay {
			c.OldText = n.Text
		}
		attached := s.doc.Attached(c.Elem)
		if attached {
			s.reg.Unregister(n.Text, n.ID)
		}
		n.Text = c.NewText
		if n.Text != "" {
			n.New = false
		}
		if attached {
			s.reg.Register(n.Text, n.ID)
			if !replay {
				s.settleName(n.ID, derived)
			}
		}
	case model.KindSection:
		sec := s.doc.Section(c.Elem.ID)
		if !replay {
			c.OldText = sec.Heading
		}
		sec.Heading = c.NewText
		if sec.Heading != "" {
			sec.New = false
		}
	default:
		return fmt.Errorf("edit %s: only names and headings hold text", c.Elem)
	}
	return nil
}

func (s *Session) applyInsert(c *Content, replay bool, derived *[]Record) error {
	oldParent, hadParent := s.doc.Parent(c.Elem)
	if !replay {
		c.Fresh = !hadParent
		if hadParent {
			c.OldParent = oldParent
			c.OldIndex = s.doc.IndexOf(c.Elem)
		}
	}
	wasAttached := s.doc.Attached(c.Elem)
	if err := s.doc.Insert(c.Elem, c.Parent, c.Index); err != nil {
		return err
	}
	nowAttached := s.doc.Attached(c.Elem)
	switch {
	case nowAttached && !wasAttached:
		s.registerTree(c.Elem)
	case wasAttached && !nowAttached:
		s.unregisterTree(c.Elem)
	}
	if replay || !nowAttached {
		return nil
	}
	switch c.Elem.Kind {
	case model.KindName:
		s.settleName(c.Elem.ID, derived)
		if hadParent && oldParent != c.Parent && s.doc.Attached(oldParent) {
			s.resort(oldParent, derived)
		}
	case model.KindBox:
		s.resort(c.Elem, derived)
	}
	return nil
}

func (s *Session) applyDelete(c *Content, replay bool, derived *[]Record) error {
	parent, ok := s.doc.Parent(c.Elem)
	if !ok {
		return fmt.Errorf("delete %s: %w", c.Elem, ErrNotAttached)
	}
	if !replay {
		c.OldParent = parent
		c.OldIndex = s.doc.IndexOf(c.Elem)
	}
	if s.doc.Attached(c.Elem) {
		s.unregisterTree(c.Elem)
	}
	s.doc.Detach(c.Elem)
	if !replay && c.Elem.Kind == model.KindName && s.doc.Attached(parent) {
		s.resort(parent, derived)
	}
	return nil
}

// settleName moves a name to its alphabetical slot in its box, then moves
// the box to its slot in the section since its first name may have changed.
func (s *Session) settleName(nameID int, derived *[]Record) {
	n := s.doc.Name(nameID)
	if n == nil || n.Box() == 0 || n.Text == "" {
		return
	}
	s.resort(model.NameElem(nameID), derived)
	s.resort(model.BoxElem(n.Box()), derived)
}

// resort moves e within its parent when it is out of alphabetical order.
// Sections are ordered by hand and never resorted. Each move is applied as
// a replay insert and appended to derived.
func (s *Session) resort(e model.Elem, derived *[]Record) {
	parent, ok := s.doc.Parent(e)
	if !ok || parent.IsRoot() {
		return
	}
	if e.Kind == model.KindBox && len(s.doc.Box(e.ID).Names()) == 0 {
		return
	}
	siblings := s.doc.Children(parent)
	keys := make([]string, len(siblings))
	self := -1
	for i, sib := range siblings {
		keys[i] = s.doc.SortKey(sib)
		if sib == e {
			self = i
		}
	}
	if self < 0 || inOrder(keys, self) {
		return
	}
	target := names.InsertIndex(keys[self], keys, self)
	if target == self {
		return
	}
	rec := Record{Action: ActionInsert, Content: Content{
		Elem: e, Parent: parent, Index: target,
		OldParent: parent, OldIndex: self,
	}}
	if err := s.doc.Insert(e, parent, target); err != nil {
		return
	}
	*derived = append(*derived, rec)
	s.notify(Change{Record: rec, Replay: true})
}

// inOrder reports whether keys[i] sits between its nearest non-blank
// neighbours.
func inOrder(keys []string, i int) bool {
	for j := i - 1; j >= 0; j-- {
		if keys[j] == "" {
			continue
		}
		if keys[j] > keys[i] {
			return false
		}
		break
	}
	for j := i + 1; j < len(keys); j++ {
		if keys[j] == "" {
			continue
		}
		if keys[i] > keys[j] {
			return false
		}
		break
	}
	return true
}

// subtreeNames returns the IDs of every name at or below e.
func (s *Session) subtreeNames(e model.Elem) []int {
	switch e.Kind {
	case model.KindName:
		return []int{e.ID}
	case model.KindBox:
		return s.doc.Box(e.ID).Names()
	case model.KindSection:
		var out []int
		for _, bid := range s.doc.Section(e.ID).Boxes() {
			out = append(out, s.doc.Box(bid).Names()...)
		}
		return out
	}
	return nil
}

func (s *Session) registerTree(e model.Elem) {
	for _, id := range s.subtreeNames(e) {
		s.reg.Register(s.doc.Name(id).Text, id)
	}
}

func (s *Session) unregisterTree(e model.Elem) {
	for _, id := range s.subtreeNames(e) {
		s.reg.Unregister(s.doc.Name(id).Text, id)
	}
}

// Commit pushes the pending queue onto the undo stack as one entry.
func (s *Session) Commit() {
	if len(s.queue) == 0 {
		return
	}
	entry := s.queue
	s.queue = nil
	s.hist.Push(entry)
	events.Session.Commit(len(entry))
	s.releaseEvicted()
}

// Discard drops the pending queue without reverting it. Callers first make
// the document consistent themselves.
func (s *Session) Discard() {
	events.Session.Discard(len(s.queue))
	s.queue = nil
}

// Queued returns the number of pending uncommitted records.
func (s *Session) Queued() int { return len(s.queue) }

// Undo reverts the newest history entry. Pending records are committed first.
func (s *Session) Undo() bool {
	s.Commit()
	entry, ok := s.hist.Undo()
	if !ok {
		return false
	}
	for i := len(entry) - 1; i >= 0; i-- {
		s.revert(entry[i])
	}
	events.Session.Undo(len(entry))
	return true
}

// Redo replays the newest undone entry.
func (s *Session) Redo() bool {
	if len(s.queue) > 0 {
		return false
	}
	entry, ok := s.hist.Redo()
	if !ok {
		return false
	}
	for _, rec := range entry {
		s.replay(rec)
	}
	events.Session.Redo(len(entry))
	return true
}

func (s *Session) revert(rec Record) {
	for i := len(rec.Derived) - 1; i >= 0; i-- {
		s.revert(rec.Derived[i])
	}
	inv := rec.inverse()
	if err := s.Apply(inv, false, true); err != nil {
		events.Action.Error(fmt.Errorf("revert %s: %w", rec.Action, err))
	}
}

func (s *Session) replay(rec Record) {
	if err := s.Apply(Record{Action: rec.Action, Content: rec.Content}, false, true); err != nil {
		events.Action.Error(fmt.Errorf("replay %s: %w", rec.Action, err))
	}
	for _, d := range rec.Derived {
		s.replay(d)
	}
}

func (s *Session) CanUndo() bool { return s.hist.CanUndo() || len(s.queue) > 0 }
func (s *Session) CanRedo() bool { return s.hist.CanRedo() && len(s.queue) == 0 }

// Modified reports whether the document differs from its loaded state by
// at least one committed or pending record.
func (s *Session) Modified() bool { return s.hist.CanUndo() || len(s.queue) > 0 }

func (s *Session) Duplicate(nameID int) bool { return s.reg.Duplicate(nameID) }
func (s *Session) HasDuplicates() bool       { return s.reg.HasDuplicates() }
func (s *Session) DuplicateNames() []string  { return s.reg.Duplicates() }

// Search returns names fuzzily matching query.
func (s *Session) Search(query string) []string { return s.reg.Search(query) }

// Holders returns the IDs of names whose text matches name case-insensitively.
func (s *Session) Holders(name string) []int { return s.reg.Holders(name) }

// entryImages returns the image handles an entry can bring back: those in
// its records plus any held by boxes the records insert or delete.
func (s *Session) entryImages(entry Entry) []*model.Image {
	var out []*model.Image
	var walk func(rec Record)
	walk = func(rec Record) {
		out = append(out, rec.images()...)
		if rec.Action == ActionInsert || rec.Action == ActionDelete {
			out = append(out, s.subtreeImages(rec.Content.Elem)...)
		}
		for _, d := range rec.Derived {
			walk(d)
		}
	}
	for _, rec := range entry {
		walk(rec)
	}
	return out
}

func (s *Session) subtreeImages(e model.Elem) []*model.Image {
	var boxes []int
	switch e.Kind {
	case model.KindBox:
		boxes = []int{e.ID}
	case model.KindSection:
		boxes = s.doc.Section(e.ID).Boxes()
	}
	var out []*model.Image
	for _, id := range boxes {
		if img := s.doc.Box(id).Image; img != nil {
			out = append(out, img)
		}
	}
	return out
}

// releaseEvicted releases images that only dropped redo entries referenced.
func (s *Session) releaseEvicted() {
	if len(s.evicted) == 0 {
		return
	}
	live := make(map[*model.Image]bool)
	for _, b := range s.doc.AttachedBoxes() {
		if b.Image != nil {
			live[b.Image] = true
		}
	}
	for _, entry := range s.hist.Entries() {
		for _, img := range s.entryImages(entry) {
			live[img] = true
		}
	}
	for _, img := range s.entryImages(s.queue) {
		live[img] = true
	}
	released := 0
	for _, entry := range s.evicted {
		for _, img := range s.entryImages(entry) {
			if !live[img] && !img.Released() {
				img.Release()
				released++
			}
		}
	}
	s.evicted = nil
	if released > 0 {
		events.Session.Release(released)
	}
}

// Close releases every image held by the document and the history. The
// session rejects further mutations.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	released := 0
	release := func(img *model.Image) {
		if img != nil && !img.Released() {
			img.Release()
			released++
		}
	}
	for _, img := range s.doc.Images() {
		release(img)
	}
	for _, entry := range s.hist.Entries() {
		for _, img := range s.entryImages(entry) {
			release(img)
		}
	}
	for _, img := range s.entryImages(s.queue) {
		release(img)
	}
	s.hist.Clear()
	s.evicted = nil
	s.queue = nil
	events.Session.Release(released)
}
