package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Majr25/SpriteEdit/internal/drag"
)

// frameInterval paces drag updates to roughly one per display frame.
const frameInterval = 16 * time.Millisecond

type frameMsg struct{}

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg { return frameMsg{} })
}

func mouseButton(b tea.MouseButton) (drag.Button, bool) {
	switch b {
	case tea.MouseButtonLeft:
		return drag.ButtonPrimary, true
	case tea.MouseButtonRight:
		return drag.ButtonSecondary, true
	case tea.MouseButtonMiddle:
		return drag.ButtonMiddle, true
	}
	return 0, false
}

func (m *Model) handleMouseMsg(msg tea.Msg) tea.Cmd {
	ev, ok := msg.(tea.MouseMsg)
	if !ok || m.mode != ModeBrowse || m.keyboardDrag {
		return nil
	}
	p := drag.Point{X: ev.X, Y: ev.Y}
	switch ev.Button {
	case tea.MouseButtonWheelUp:
		m.moveCursor(m.list.MoveCursorUp)
		return nil
	case tea.MouseButtonWheelDown:
		m.moveCursor(m.list.MoveCursorDown)
		return nil
	}
	switch ev.Action {
	case tea.MouseActionPress:
		idx, ok := m.rowAt(ev.Y)
		if !ok {
			return nil
		}
		m.list.Cursor = idx
		m.moveCursor(func() bool { return true })
		button, ok := mouseButton(ev.Button)
		if !ok {
			return nil
		}
		row := m.list.Rows[idx]
		grab := drag.Point{X: ev.X - rowIndent(row.Depth)}
		started, err := m.drag.Begin(row.Elem, p, grab, button)
		if err != nil {
			m.report(err, "")
			return nil
		}
		if started && !m.ticking {
			m.ticking = true
			return frameTick()
		}
	case tea.MouseActionMotion:
		if !m.drag.Dragging() {
			return nil
		}
		m.drag.Move(p)
		if idx, ok := m.rowAt(ev.Y); ok {
			m.queueHover(idx)
		} else {
			m.drag.LeaveContainer()
		}
	case tea.MouseActionRelease:
		if !m.drag.Dragging() {
			return nil
		}
		m.drag.Move(p)
		if idx, ok := m.rowAt(ev.Y); ok {
			m.queueHover(idx)
		}
		m.drag.Frame()
		m.endDrag()
	}
	return nil
}

// queueHover records the hovered row; the frame tick applies it.
func (m *Model) queueHover(idx int) {
	e := m.list.Rows[idx].Elem
	item := m.drag.Item()
	if m.drag.Mode() == drag.Manual {
		if sec, ok := m.ancestor(e, item.Kind); ok {
			m.drag.HoverItem(sec)
		}
		return
	}
	parent, ok := m.session.Parent(item)
	if !ok {
		return
	}
	if c, ok := m.ancestor(e, parent.Kind); ok {
		m.drag.HoverContainer(c)
	} else {
		m.drag.LeaveContainer()
	}
}

func (m *Model) handleFrameMsg(msg tea.Msg) tea.Cmd {
	if !m.drag.Dragging() || m.keyboardDrag {
		m.ticking = false
		return nil
	}
	if m.drag.Frame() && m.drag.Mode() == drag.Manual {
		m.rowsDirty = true
	}
	return frameTick()
}
