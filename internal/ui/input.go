package ui

import (
	"errors"
	"unicode"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Majr25/SpriteEdit/internal/drag"
	"github.com/Majr25/SpriteEdit/internal/logging/events"
	"github.com/Majr25/SpriteEdit/internal/model"
)

var (
	errNoBox     = errors.New("select a box or one of its names first")
	errNoSection = errors.New("add a section first")
	errNoSaver   = errors.New("saving is not available")
	errNotMoving = errors.New("this row cannot be moved")
)

func (m *Model) handleKeyMsg(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	switch m.mode {
	case ModeBusy:
		return nil
	case ModeInput:
		return m.handleInputKey(key)
	case ModeJump:
		return m.handleJumpKey(key)
	case ModeConfirmQuit:
		return m.handleConfirmKey(key)
	case ModeDuplicates:
		m.duplicates = nil
		m.setMode(ModeBrowse)
		return nil
	case ModeReview:
		return m.handleReviewKey(key)
	case ModeMerge:
		return m.handleMergeKey(key)
	}
	if m.drag.Dragging() {
		return m.handleDragKey(key)
	}
	return m.handleBrowseKey(key)
}

func (m *Model) handleBrowseKey(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "ctrl+c", "q":
		return m.requestQuit()
	case "up", "k":
		m.moveCursor(m.list.MoveCursorUp)
	case "down", "j":
		m.moveCursor(m.list.MoveCursorDown)
	case "home", "g":
		m.moveCursor(m.list.MoveCursorHome)
	case "end", "G":
		m.moveCursor(m.list.MoveCursorEnd)
	case "pgup":
		m.moveCursor(func() bool { return m.list.MoveCursorPageUp(m.maxVisibleRows()) })
	case "pgdown":
		m.moveCursor(func() bool { return m.list.MoveCursorPageDown(m.maxVisibleRows()) })
	case "/":
		m.list.SetFilter("", 0)
		m.setMode(ModeJump)
	case "e", "enter":
		return m.editCurrent()
	case "a":
		return m.addName()
	case "S":
		return m.addSection()
	case "d", "delete":
		m.deleteCurrent()
	case "x":
		m.toggleDeprecated()
	case "i":
		sec, ok := m.currentSection()
		if !ok {
			m.report(errNoSection, "")
			return nil
		}
		return m.startInput(purposeAddImages, sec, "", "image.png, other.png or a directory")
	case "r":
		box, ok := m.currentBox()
		if !ok {
			m.report(errNoBox, "")
			return nil
		}
		return m.startInput(purposeReplaceImage, box, "", "replacement.png")
	case "R":
		box, ok := m.currentBox()
		if !ok {
			m.report(errNoBox, "")
			return nil
		}
		m.report(m.session.ResetImage(box), "Image reset")
	case "u", "ctrl+z":
		if m.session.Undo() {
			m.report(nil, "Undone")
		} else {
			m.report(nil, "Nothing to undo")
		}
	case "ctrl+r", "U":
		if m.session.Redo() {
			m.report(nil, "Redone")
		} else {
			m.report(nil, "Nothing to redo")
		}
	case "m":
		m.beginKeyboardDrag()
	case "s", "ctrl+s":
		return m.requestSave()
	case "esc":
		m.errMsg = ""
		m.clearInfo()
	}
	return nil
}

func (m *Model) currentBox() (int, bool) {
	e, ok := m.currentElem()
	if !ok {
		return 0, false
	}
	box, ok := m.ancestor(e, model.KindBox)
	if !ok {
		return 0, false
	}
	return box.ID, true
}

func (m *Model) editCurrent() tea.Cmd {
	e, ok := m.currentElem()
	if !ok {
		return nil
	}
	doc := m.session.Doc()
	switch e.Kind {
	case model.KindSection:
		return m.startInput(purposeRenameSection, e.ID, doc.Section(e.ID).Heading, "heading")
	case model.KindName:
		return m.startInput(purposeRenameName, e.ID, doc.Name(e.ID).Text, "name")
	case model.KindBox:
		names := doc.Box(e.ID).Names()
		if len(names) == 0 {
			return nil
		}
		return m.startInput(purposeRenameName, names[0], doc.Name(names[0]).Text, "name")
	}
	return nil
}

func (m *Model) addName() tea.Cmd {
	box, ok := m.currentBox()
	if !ok {
		m.report(errNoBox, "")
		return nil
	}
	id, err := m.session.BeginName(box)
	if err != nil {
		m.report(err, "")
		return nil
	}
	m.selectElem(model.NameElem(id))
	return m.startInput(purposeNewName, id, "", "new name")
}

func (m *Model) addSection() tea.Cmd {
	id, err := m.session.BeginSection(m.sectionIndex())
	if err != nil {
		m.report(err, "")
		return nil
	}
	m.selectElem(model.SectionElem(id))
	return m.startInput(purposeNewSection, id, "", "new heading")
}

func (m *Model) deleteCurrent() {
	e, ok := m.currentElem()
	if !ok {
		return
	}
	var err error
	switch e.Kind {
	case model.KindSection:
		err = m.session.DeleteSection(e.ID)
	case model.KindBox:
		err = m.session.DeleteBox(e.ID)
	case model.KindName:
		err = m.session.DeleteName(e.ID)
	}
	m.report(err, "Deleted")
}

func (m *Model) toggleDeprecated() {
	e, ok := m.currentElem()
	if !ok || e.Kind != model.KindName {
		return
	}
	m.report(m.session.ToggleDeprecated(e.ID), "")
}

func (m *Model) requestQuit() tea.Cmd {
	if m.session.Modified() {
		m.setMode(ModeConfirmQuit)
		return nil
	}
	return tea.Quit
}

func (m *Model) handleConfirmKey(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "y", "Y", "ctrl+c":
		return tea.Quit
	case "n", "N", "esc", "q":
		m.setMode(ModeBrowse)
	}
	return nil
}

func (m *Model) handleJumpKey(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "ctrl+c":
		m.list.SetFilter("", 0)
		m.setMode(ModeBrowse)
		return m.requestQuit()
	case "esc":
		m.list.SetFilter("", 0)
		m.setMode(ModeBrowse)
		return nil
	case "enter":
		e, ok := m.currentElem()
		query := m.list.Filter
		m.list.SetFilter("", 0)
		m.setMode(ModeBrowse)
		if ok {
			m.selectElem(e)
			events.UI.Jump(query, m.list.Cursor)
		}
		return nil
	case "up", "ctrl+p":
		m.moveCursor(m.list.MoveCursorUp)
		return nil
	case "down", "ctrl+n":
		m.moveCursor(m.list.MoveCursorDown)
		return nil
	case "ctrl+u":
		m.list.SetFilter("", 0)
		return nil
	case "ctrl+w":
		m.list.DeleteFilterWordBackward()
		return nil
	case "ctrl+a":
		m.list.MoveFilterCursorStart()
		return nil
	case "ctrl+e":
		m.list.MoveFilterCursorEnd()
		return nil
	case "alt+b", "alt+left", "ctrl+left":
		m.list.MoveFilterCursorWordBackward()
		return nil
	case "alt+f", "alt+right", "ctrl+right":
		m.list.MoveFilterCursorWordForward()
		return nil
	}
	switch key.Type {
	case tea.KeyBackspace, tea.KeyCtrlH:
		m.list.DeleteFilterRuneBackward()
	case tea.KeyLeft:
		m.list.MoveFilterCursorRuneBackward()
	case tea.KeyRight:
		m.list.MoveFilterCursorRuneForward()
	case tea.KeySpace:
		m.list.InsertFilterText(" ")
	case tea.KeyRunes:
		if key.Alt {
			return nil
		}
		for _, r := range key.Runes {
			if unicode.IsControl(r) {
				return nil
			}
		}
		m.list.InsertFilterText(string(key.Runes))
	}
	m.list.EnsureCursorVisible(m.maxVisibleRows())
	return nil
}

func (m *Model) beginKeyboardDrag() {
	row, ok := m.list.Current()
	if !ok {
		return
	}
	started, err := m.drag.Begin(row.Elem, drag.Point{Y: m.list.Cursor}, drag.Point{}, drag.ButtonPrimary)
	if err != nil {
		m.report(err, "")
		return
	}
	if !started {
		m.report(errNotMoving, "")
		return
	}
	m.keyboardDrag = true
	m.errMsg = ""
}

func (m *Model) handleDragKey(key tea.KeyMsg) tea.Cmd {
	manual := m.drag.Mode() == drag.Manual
	switch key.String() {
	case "up", "k":
		if manual {
			m.stepSection(-1)
		} else if m.moveCursor(m.list.MoveCursorUp) {
			m.hoverRow(m.list.Cursor, drag.Point{Y: m.list.Cursor})
		}
	case "down", "j":
		if manual {
			m.stepSection(1)
		} else if m.moveCursor(m.list.MoveCursorDown) {
			m.hoverRow(m.list.Cursor, drag.Point{Y: m.list.Cursor})
		}
	case "enter", "m", " ":
		m.endDrag()
	case "esc", "ctrl+c":
		m.drag.Cancel()
		m.keyboardDrag = false
		m.rowsDirty = true
		m.setInfo("Move cancelled")
	}
	return nil
}

// stepSection moves the placeholder of a section drag past the
// neighbouring section.
func (m *Model) stepSection(delta int) {
	order := m.drag.Order()
	at := m.drag.Placeholder() + delta
	if at < 0 || at >= len(order) {
		return
	}
	m.drag.HoverItem(order[at])
	if m.drag.Frame() {
		m.rowsDirty = true
	}
}

// hoverRow feeds the row under the cursor to the drag controller and
// applies it at once.
func (m *Model) hoverRow(idx int, p drag.Point) {
	m.drag.Move(p)
	if idx >= 0 && idx < len(m.list.Rows) {
		m.queueHover(idx)
	} else {
		m.drag.LeaveContainer()
	}
	m.drag.Frame()
}

func (m *Model) endDrag() {
	item := m.drag.Item()
	m.keyboardDrag = false
	res, err := m.drag.End()
	m.rowsDirty = true
	if err != nil {
		m.report(err, "")
		return
	}
	if !res.Changed {
		m.setInfo("Nothing moved")
		return
	}
	if res.DeletedBox {
		m.report(nil, "Moved; the emptied box was removed")
	} else {
		m.report(nil, "Moved")
	}
	m.selectElem(item)
}
