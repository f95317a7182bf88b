// Package drag turns pointer gestures into ordering changes. Sections are
// reordered by hand through a floating placeholder; boxes and names stay
// alphabetical, so dragging them only picks the container they land in.
package drag

import (
	"errors"

	"github.com/Majr25/SpriteEdit/internal/logging/events"
	"github.com/Majr25/SpriteEdit/internal/model"
	"github.com/Majr25/SpriteEdit/internal/names"
)

// ErrBusy is returned by Begin while a drag is already in progress.
var ErrBusy = errors.New("drag already in progress")

// Point is a position in screen cells.
type Point struct{ X, Y int }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Button identifies the pointer button that started a gesture.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonSecondary
	ButtonMiddle
)

// Mode is how a drag decides the final position.
type Mode int

const (
	// Manual reorders freely through a placeholder.
	Manual Mode = iota
	// AutoSort only chooses the container; the slot is alphabetical.
	AutoSort
)

// Target is the document the controller reads and the mutations it emits.
type Target interface {
	Children(parent model.Elem) []model.Elem
	Parent(e model.Elem) (model.Elem, bool)
	SortKey(e model.Elem) string
	Draggable(e model.Elem) bool
	Move(e, parent model.Elem, index int, queue bool) error
	Delete(e model.Elem, queue bool) error
	Commit()
}

// ModeFor returns the mode used when dragging e.
func ModeFor(e model.Elem) Mode {
	if e.Kind == model.KindSection {
		return Manual
	}
	return AutoSort
}

// Result describes the outcome of a finished drag.
type Result struct {
	Changed    bool
	Parent     model.Elem
	Index      int
	DeletedBox bool
}

// Controller is a two-state machine, idle and dragging.
type Controller struct {
	target Target

	dragging bool
	item     model.Elem
	mode     Mode
	origin   model.Elem
	index    int

	// order is the visual sibling order in manual mode, item included at
	// the placeholder slot.
	order []model.Elem
	hover *model.Elem

	container    model.Elem
	hasContainer bool

	grab    Point
	pointer Point
	pending *Point
}

// New returns an idle controller.
func New(target Target) *Controller {
	return &Controller{target: target}
}

// Dragging reports whether a drag is in progress.
func (c *Controller) Dragging() bool { return c.dragging }

// Item returns the dragged element.
func (c *Controller) Item() model.Elem { return c.item }

// Mode returns the active drag mode.
func (c *Controller) Mode() Mode { return c.mode }

// Begin starts dragging item. grab is the pointer position relative to the
// item's origin so the ghost does not jump. Only the primary button starts a
// drag, and never on an item that cannot be dragged.
func (c *Controller) Begin(item model.Elem, pointer, grab Point, button Button) (bool, error) {
	if c.dragging {
		return false, ErrBusy
	}
	if button != ButtonPrimary || !c.target.Draggable(item) {
		return false, nil
	}
	parent, ok := c.target.Parent(item)
	if !ok {
		return false, nil
	}
	siblings := c.target.Children(parent)
	index := indexOf(siblings, item)
	if index < 0 {
		return false, nil
	}
	*c = Controller{
		target:   c.target,
		dragging: true,
		item:     item,
		mode:     ModeFor(item),
		origin:   parent,
		index:    index,
		grab:     grab,
		pointer:  pointer,
	}
	if c.mode == Manual {
		c.order = siblings
	}
	events.Drag.Begin(item.String(), c.mode == AutoSort)
	return true, nil
}

// Move records a pointer position. Positions are coalesced until Frame.
func (c *Controller) Move(p Point) {
	if !c.dragging {
		return
	}
	c.pending = &p
}

// HoverItem reports that the pointer entered a sibling of the dragged item.
func (c *Controller) HoverItem(e model.Elem) {
	if !c.dragging || e == c.item {
		return
	}
	c.hover = &e
}

// HoverContainer reports that the pointer entered a container. In auto-sort
// mode a container of the dragged item's parent kind becomes the drop target.
func (c *Controller) HoverContainer(e model.Elem) {
	if !c.dragging || c.mode != AutoSort || e.Kind != c.origin.Kind {
		return
	}
	c.container = e
	c.hasContainer = true
}

// LeaveContainer clears the auto-sort drop target.
func (c *Controller) LeaveContainer() {
	c.hasContainer = false
}

// Container returns the hovered drop target in auto-sort mode.
func (c *Controller) Container() (model.Elem, bool) {
	return c.container, c.dragging && c.hasContainer
}

// Order returns the visual sibling order in manual mode.
func (c *Controller) Order() []model.Elem {
	return append([]model.Elem(nil), c.order...)
}

// Placeholder returns the placeholder slot in manual mode.
func (c *Controller) Placeholder() int {
	return indexOf(c.order, c.item)
}

// Frame applies the updates gathered since the previous frame: the latest
// pointer position and, in manual mode, a placeholder swap with the hovered
// sibling. It reports whether anything changed.
func (c *Controller) Frame() bool {
	if !c.dragging {
		return false
	}
	changed := false
	if c.pending != nil {
		changed = *c.pending != c.pointer
		c.pointer = *c.pending
		c.pending = nil
	}
	if c.hover != nil {
		target := *c.hover
		c.hover = nil
		if c.mode == Manual {
			at := indexOf(c.order, target)
			ph := indexOf(c.order, c.item)
			if at >= 0 && ph >= 0 && at != ph {
				c.order = moveTo(c.order, ph, at)
				events.Drag.Swap(c.item.String(), at)
				changed = true
			}
		}
	}
	return changed
}

// Ghost returns where the dragged item is drawn: the pointer minus the
// grab offset.
func (c *Controller) Ghost() Point {
	return c.pointer.Sub(c.grab)
}

// End finishes the drag wherever the item currently is. At most one insert
// is emitted; when the last name leaves its box the box delete is queued
// with it as one undo step.
func (c *Controller) End() (Result, error) {
	if !c.dragging {
		return Result{}, nil
	}
	defer c.reset()
	item := c.item

	if c.mode == Manual {
		final := indexOf(c.order, item)
		if final < 0 || final == c.index {
			events.Drag.Cancel(item.String())
			return Result{}, nil
		}
		if err := c.target.Move(item, c.origin, final, false); err != nil {
			return Result{}, err
		}
		events.Drag.Drop(item.String(), c.origin.String(), final, false)
		return Result{Changed: true, Parent: c.origin, Index: final}, nil
	}

	if !c.hasContainer || c.container == c.origin {
		events.Drag.Cancel(item.String())
		return Result{}, nil
	}
	dest := c.container
	siblings := c.target.Children(dest)
	keys := make([]string, len(siblings))
	for i, sib := range siblings {
		keys[i] = c.target.SortKey(sib)
	}
	index := names.InsertIndex(c.target.SortKey(item), keys, -1)
	lastName := item.Kind == model.KindName && len(c.target.Children(c.origin)) == 1
	if err := c.target.Move(item, dest, index, lastName); err != nil {
		return Result{}, err
	}
	if lastName {
		if err := c.target.Delete(c.origin, true); err != nil {
			c.target.Commit()
			return Result{}, err
		}
		c.target.Commit()
	}
	events.Drag.Drop(item.String(), dest.String(), index, lastName)
	return Result{Changed: true, Parent: dest, Index: index, DeletedBox: lastName}, nil
}

// Cancel abandons the drag without touching the document.
func (c *Controller) Cancel() {
	if !c.dragging {
		return
	}
	events.Drag.Cancel(c.item.String())
	c.reset()
}

func (c *Controller) reset() {
	*c = Controller{target: c.target}
}

func indexOf(list []model.Elem, e model.Elem) int {
	for i, x := range list {
		if x == e {
			return i
		}
	}
	return -1
}

// moveTo returns list with the element at from moved to index to.
func moveTo(list []model.Elem, from, to int) []model.Elem {
	item := list[from]
	out := make([]model.Elem, 0, len(list))
	out = append(out, list[:from]...)
	out = append(out, list[from+1:]...)
	if to > len(out) {
		to = len(out)
	}
	out = append(out[:to], append([]model.Elem{item}, out[to:]...)...)
	return out
}
