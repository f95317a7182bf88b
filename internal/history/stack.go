// Package history holds the linear undo and redo stacks of committed entries.
package history

// Stack is a linear undo/redo history. Pushing a new entry discards the redo
// side; the release hook sees every entry dropped that way.
type Stack[E any] struct {
	undo    []E
	redo    []E
	release func(E)
}

// New returns an empty stack. release may be nil.
func New[E any](release func(E)) *Stack[E] {
	return &Stack[E]{release: release}
}

// Push records a newly committed entry and clears the redo stack.
func (s *Stack[E]) Push(entry E) {
	s.undo = append(s.undo, entry)
	s.dropRedo()
}

func (s *Stack[E]) dropRedo() {
	if s.release != nil {
		for _, e := range s.redo {
			s.release(e)
		}
	}
	s.redo = nil
}

// Undo pops the newest entry and moves it to the redo stack.
func (s *Stack[E]) Undo() (E, bool) {
	var zero E
	if len(s.undo) == 0 {
		return zero, false
	}
	entry := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, entry)
	return entry, true
}

// Redo pops the newest undone entry and moves it back to the undo stack.
func (s *Stack[E]) Redo() (E, bool) {
	var zero E
	if len(s.redo) == 0 {
		return zero, false
	}
	entry := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = append(s.undo, entry)
	return entry, true
}

func (s *Stack[E]) CanUndo() bool { return len(s.undo) > 0 }
func (s *Stack[E]) CanRedo() bool { return len(s.redo) > 0 }

// Len returns the sizes of the undo and redo stacks.
func (s *Stack[E]) Len() (undo, redo int) { return len(s.undo), len(s.redo) }

// Entries returns every entry on either stack, oldest undo entry first.
func (s *Stack[E]) Entries() []E {
	out := make([]E, 0, len(s.undo)+len(s.redo))
	out = append(out, s.undo...)
	for i := len(s.redo) - 1; i >= 0; i-- {
		out = append(out, s.redo[i])
	}
	return out
}

// Clear empties both stacks, releasing the redo side.
func (s *Stack[E]) Clear() {
	s.dropRedo()
	s.undo = nil
}
