package ui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Majr25/SpriteEdit/internal/dropzone"
	"github.com/Majr25/SpriteEdit/internal/editor"
	"github.com/Majr25/SpriteEdit/internal/model"
	"github.com/Majr25/SpriteEdit/internal/sheet"
)

// purpose is what a submitted text input does.
type purpose int

const (
	purposeNone purpose = iota
	purposeRenameSection
	purposeRenameName
	purposeNewName
	purposeNewSection
	purposeAddImages
	purposeReplaceImage
	purposeSummary
)

func (p purpose) title() string {
	switch p {
	case purposeRenameSection, purposeNewSection:
		return "Section heading"
	case purposeRenameName, purposeNewName:
		return "Sprite name"
	case purposeAddImages:
		return "Image file or directory"
	case purposeReplaceImage:
		return "Replacement image"
	case purposeSummary:
		return "Edit summary"
	}
	return ""
}

func newTextInput() textinput.Model {
	ti := textinput.New()
	ti.CharLimit = 255
	ti.Prompt = "> "
	return ti
}

func newMergeArea(width, height int) textarea.Model {
	ta := textarea.New()
	ta.CharLimit = 0
	ta.ShowLineNumbers = true
	ta.SetWidth(width)
	ta.SetHeight(height - 2)
	return ta
}

// startInput opens the text input for p on the element with ID target.
func (m *Model) startInput(p purpose, target int, value, placeholder string) tea.Cmd {
	m.purpose = p
	m.target = target
	m.input.Reset()
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.errMsg = ""
	m.setMode(ModeInput)
	return m.input.Focus()
}

func (m *Model) closeInput() {
	m.input.Blur()
	m.purpose = purposeNone
	m.target = 0
	if m.mode == ModeInput {
		m.setMode(ModeBrowse)
	}
}

func (m *Model) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		p, target, value := m.purpose, m.target, m.input.Value()
		m.closeInput()
		return m.submitInput(p, target, value)
	case tea.KeyEsc:
		p, target := m.purpose, m.target
		m.closeInput()
		m.cancelInput(p, target)
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) submitInput(p purpose, target int, value string) tea.Cmd {
	switch p {
	case purposeRenameSection, purposeNewSection:
		m.report(m.session.SetHeading(target, value), "")
		m.selectElem(model.SectionElem(target))
	case purposeRenameName, purposeNewName:
		box := 0
		if n := m.session.Doc().Name(target); n != nil {
			box = n.Box()
		}
		m.report(m.session.SetName(target, value), "")
		if m.session.Doc().Attached(model.NameElem(target)) {
			m.selectElem(model.NameElem(target))
		} else if box != 0 {
			m.selectElem(model.BoxElem(box))
		}
	case purposeAddImages:
		m.addImages(target, value)
	case purposeReplaceImage:
		m.replaceImage(target, value)
	case purposeSummary:
		return m.startSave(value)
	}
	return nil
}

// cancelInput undoes the placeholder element a begin operation created.
func (m *Model) cancelInput(p purpose, target int) {
	switch p {
	case purposeNewName:
		m.report(m.session.SetName(target, ""), "")
	case purposeNewSection:
		m.report(m.session.SetHeading(target, ""), "")
	case purposeSummary:
		m.plan = nil
	}
}

func (m *Model) addImages(sectionID int, value string) {
	paths, err := expandPaths(value)
	if err != nil {
		m.report(err, "")
		return
	}
	m.insertPaths(sectionID, paths)
}

// insertPaths adds one box per image file to a section.
func (m *Model) insertPaths(sectionID int, paths []string) {
	geo := m.session.Geometry()
	sprites := make([]editor.Sprite, 0, len(paths))
	if m.loadImage != nil {
		for _, p := range paths {
			if !sheet.IsImageFile(p) {
				continue
			}
			sprites = append(sprites, editor.Sprite{Name: sheet.SpriteName(p), Image: m.loadImage(p)})
		}
	} else {
		sprites = dropzone.Sprites(paths, geo.ImageWidth, geo.ImageHeight)
	}
	ids, err := m.session.InsertSprites(sectionID, sprites)
	if len(ids) > 0 {
		m.selectElem(model.BoxElem(ids[0]))
	}
	if err != nil {
		m.report(err, "")
		return
	}
	m.report(nil, fmt.Sprintf("Added %d sprite(s)", len(ids)))
}

func (m *Model) replaceImage(boxID int, value string) {
	path := strings.TrimSpace(value)
	if path == "" {
		return
	}
	if !sheet.IsImageFile(path) {
		m.report(fmt.Errorf("%s is not a supported image", filepath.Base(path)), "")
		return
	}
	if _, err := os.Stat(path); err != nil {
		m.report(err, "")
		return
	}
	m.report(m.session.ReplaceImage(boxID, m.openImage(path)), "Image replaced")
}

func (m *Model) openImage(path string) *model.Image {
	if m.loadImage != nil {
		return m.loadImage(path)
	}
	geo := m.session.Geometry()
	return sheet.Load(path, func() (io.ReadCloser, error) { return os.Open(path) }, geo.ImageWidth, geo.ImageHeight)
}

// expandPaths turns the input into image paths: a directory yields its
// image files in name order, otherwise the value is a list of files
// separated by commas.
func expandPaths(value string) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, editor.ErrBlank
	}
	if info, err := os.Stat(value); err == nil && info.IsDir() {
		entries, err := os.ReadDir(value)
		if err != nil {
			return nil, err
		}
		var out []string
		for _, e := range entries {
			if !e.IsDir() && sheet.IsImageFile(e.Name()) {
				out = append(out, filepath.Join(value, e.Name()))
			}
		}
		sort.Strings(out)
		if len(out) == 0 {
			return nil, fmt.Errorf("%s: %w", value, editor.ErrNoSprites)
		}
		return out, nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, err := os.Stat(part); err != nil {
			return nil, err
		}
		out = append(out, part)
	}
	return out, nil
}
