package ui

import (
	"context"
	"reflect"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Majr25/SpriteEdit/internal/backend"
	"github.com/Majr25/SpriteEdit/internal/data/dispatcher"
	"github.com/Majr25/SpriteEdit/internal/drag"
	"github.com/Majr25/SpriteEdit/internal/dropzone"
	"github.com/Majr25/SpriteEdit/internal/editor"
	"github.com/Majr25/SpriteEdit/internal/logging/events"
	"github.com/Majr25/SpriteEdit/internal/model"
	"github.com/Majr25/SpriteEdit/internal/save"
	"github.com/Majr25/SpriteEdit/internal/state"
	"github.com/Majr25/SpriteEdit/internal/theme"
	"github.com/Majr25/SpriteEdit/internal/ui/command"
	uistate "github.com/Majr25/SpriteEdit/internal/ui/state"
)

type level = uistate.Level

type Mode int

const (
	ModeBrowse Mode = iota
	ModeJump
	ModeInput
	ModeConfirmQuit
	ModeDuplicates
	ModeReview
	ModeMerge
	ModeBusy
)

func (m Mode) String() string {
	switch m {
	case ModeBrowse:
		return "browse"
	case ModeJump:
		return "jump"
	case ModeInput:
		return "input"
	case ModeConfirmQuit:
		return "confirm-quit"
	case ModeDuplicates:
		return "duplicates"
	case ModeReview:
		return "review"
	case ModeMerge:
		return "merge"
	case ModeBusy:
		return "busy"
	}
	return "unknown"
}

// headerLines is the number of rows above the tree.
const headerLines = 2

var styles = theme.Default()

type msgHandler func(tea.Msg) tea.Cmd

// Saver runs the save workflow. *save.Orchestrator implements it. Draft
// and Commit touch the session and run on the UI goroutine; the other steps
// run on the command bus.
type Saver interface {
	Draft() (*save.Plan, error)
	Prepare(ctx context.Context, plan *save.Plan) error
	Save(ctx context.Context, plan *save.Plan, summary string) (save.Result, error)
	Resolve(ctx context.Context, merged string) (save.Result, error)
	Commit(res save.Result) (*editor.Session, error)
	Abandon()
	Pending() bool
}

// Options wires the model to its collaborators. Only Session is required.
type Options struct {
	Session *editor.Session
	Saver   Saver
	Watcher *backend.Watcher
	Remote  state.RemoteStore
	Zone    *dropzone.Zone
	// Page is the IDs page title shown in the header.
	Page string
	// OnSaved runs on the UI goroutine after every successful save.
	OnSaved func(save.Result)
	// Clipboard copies text; defaults to the system clipboard.
	Clipboard func(string) error
	// LoadImage opens a sprite image; defaults to decoding the file in the
	// background at the sheet's sprite size.
	LoadImage func(path string) *model.Image
	// Timeout bounds a single save step.
	Timeout    time.Duration
	Width      int
	Height     int
	ShowFooter bool
}

// Model implements the Bubble Tea model for the sprite editor.
type Model struct {
	session *editor.Session
	drag    *drag.Controller
	saver   Saver
	bus     *command.Bus

	backend    *backend.Watcher
	dispatcher *dispatcher.Dispatcher
	remote     state.RemoteStore
	zone       *dropzone.Zone

	page       string
	onSaved    func(save.Result)
	clipboard  func(string) error
	loadImage  func(path string) *model.Image
	timeout    time.Duration
	showFooter bool

	list        *level
	rowsDirty   bool
	unsubscribe func()

	mode       Mode
	width      int
	height     int
	errMsg     string
	infoMsg    string
	infoExpire time.Time
	warnMsg    string

	input   textinput.Model
	purpose purpose
	target  int

	plan     *save.Plan
	summary  string
	review   viewport.Model
	merge    textarea.Model
	conflict *save.ConflictError

	duplicates []string

	keyboardDrag bool
	ticking      bool
	queuedDrops  [][]string

	handlers map[reflect.Type]msgHandler
}

// NewModel builds the UI over an open session.
func NewModel(opts Options) *Model {
	m := &Model{
		session:    opts.Session,
		drag:       drag.New(opts.Session),
		saver:      opts.Saver,
		bus:        command.New(),
		backend:    opts.Watcher,
		remote:     opts.Remote,
		zone:       opts.Zone,
		page:       opts.Page,
		onSaved:    opts.OnSaved,
		clipboard:  opts.Clipboard,
		loadImage:  opts.LoadImage,
		timeout:    opts.Timeout,
		showFooter: opts.ShowFooter,
		width:      opts.Width,
		height:     opts.Height,
		mode:       ModeBrowse,
	}
	if m.clipboard == nil {
		m.clipboard = clipboard.WriteAll
	}
	if m.timeout <= 0 {
		m.timeout = 2 * time.Minute
	}
	if m.remote != nil {
		m.dispatcher = dispatcher.New(m.remote, m.page)
	}
	m.list = uistate.NewLevel(buildRows(m.session))
	m.watchSession()
	m.input = newTextInput()
	m.review = viewport.New(m.width, m.bodyHeight())
	m.merge = newMergeArea(m.width, m.bodyHeight())
	m.registerHandlers()
	return m
}

// Init is part of the tea.Model interface.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{}
	if m.backend != nil {
		cmds = append(cmds, waitForBackendEvent(m.backend))
	}
	if m.zone != nil {
		cmds = append(cmds, waitForDrop(m.zone))
	}
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

// Update responds to Bubble Tea messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmds := make([]tea.Cmd, 0, 4)
	if handler := m.handlerFor(msg); handler != nil {
		if cmd := handler(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	} else if cmd := m.updateActiveWidget(msg); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return m, m.finishUpdate(cmds)
}

func (m *Model) watchSession() {
	m.unsubscribe = m.session.Subscribe(func(editor.Change) { m.rowsDirty = true })
}

// setSession switches the model to s, as after a merged save reloads the
// page. The cursor stays on the same row index where possible.
func (m *Model) setSession(s *editor.Session) {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.drag.Cancel()
	m.keyboardDrag = false
	m.session = s
	m.drag = drag.New(s)
	m.watchSession()
	m.rowsDirty = true
}

// Close detaches the model from the session.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *Model) registerHandlers() {
	m.handlers = map[reflect.Type]msgHandler{
		reflect.TypeOf(tea.KeyMsg{}):        m.handleKeyMsg,
		reflect.TypeOf(tea.MouseMsg{}):      m.handleMouseMsg,
		reflect.TypeOf(tea.WindowSizeMsg{}): m.handleWindowSizeMsg,
		reflect.TypeOf(frameMsg{}):          m.handleFrameMsg,
		reflect.TypeOf(backendEventMsg{}):   m.handleBackendEventMsg,
		reflect.TypeOf(backendDoneMsg{}):    m.handleBackendDoneMsg,
		reflect.TypeOf(dropMsg{}):           m.handleDropMsg,
		reflect.TypeOf(dropErrMsg{}):        m.handleDropErrMsg,
		reflect.TypeOf(dropDoneMsg{}):       m.handleDropDoneMsg,
		reflect.TypeOf(preparedMsg{}):       m.handlePreparedMsg,
		reflect.TypeOf(savedMsg{}):          m.handleSavedMsg,
		reflect.TypeOf(saveFailedMsg{}):     m.handleSaveFailedMsg,
	}
}

func (m *Model) handlerFor(msg tea.Msg) msgHandler {
	if msg == nil || m.handlers == nil {
		return nil
	}
	t := reflect.TypeOf(msg)
	if handler, ok := m.handlers[t]; ok {
		return handler
	}
	if t.Kind() == reflect.Ptr {
		if handler, ok := m.handlers[t.Elem()]; ok {
			return handler
		}
	}
	return nil
}

// updateActiveWidget forwards unhandled messages, such as cursor blinks, to
// the widget of the current mode.
func (m *Model) updateActiveWidget(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.mode {
	case ModeInput:
		m.input, cmd = m.input.Update(msg)
	case ModeMerge:
		m.merge, cmd = m.merge.Update(msg)
	}
	return cmd
}

func (m *Model) finishUpdate(cmds []tea.Cmd) tea.Cmd {
	if len(m.queuedDrops) > 0 {
		m.flushDrops()
	}
	if m.rowsDirty && m.mode != ModeBusy {
		m.refreshRows()
	}
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

func (m *Model) setMode(mode Mode) {
	if m.mode == mode {
		return
	}
	m.mode = mode
	events.UI.Mode(mode.String())
}

func (m *Model) handleWindowSizeMsg(msg tea.Msg) tea.Cmd {
	size, ok := msg.(tea.WindowSizeMsg)
	if !ok {
		return nil
	}
	m.width = size.Width
	m.height = size.Height
	m.review.Width = m.width
	m.review.Height = m.bodyHeight()
	m.merge.SetWidth(m.width)
	m.merge.SetHeight(m.bodyHeight() - 2)
	m.list.EnsureCursorVisible(m.maxVisibleRows())
	return nil
}

func (m *Model) setInfo(msg string) {
	m.infoMsg = msg
	m.infoExpire = time.Now().Add(4 * time.Second)
}

func (m *Model) clearInfo() {
	m.infoMsg = ""
	m.infoExpire = time.Time{}
}

func (m *Model) currentInfo() string {
	if m.infoMsg == "" {
		return ""
	}
	if !m.infoExpire.IsZero() && time.Now().After(m.infoExpire) {
		m.clearInfo()
		return ""
	}
	return m.infoMsg
}

// report shows err on the status line, or info when err is nil.
func (m *Model) report(err error, info string) {
	if err != nil {
		m.errMsg = err.Error()
		events.Action.Error(err)
		return
	}
	m.errMsg = ""
	if info != "" {
		m.setInfo(info)
		events.Action.Success(info)
	}
}

// Warn shows a persistent warning under the header.
func (m *Model) Warn(msg string) {
	m.warnMsg = msg
}
