package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Majr25/SpriteEdit/internal/backend"
	"github.com/Majr25/SpriteEdit/internal/dropzone"
	"github.com/Majr25/SpriteEdit/internal/editor"
	"github.com/Majr25/SpriteEdit/internal/logging"
	"github.com/Majr25/SpriteEdit/internal/logging/events"
	"github.com/Majr25/SpriteEdit/internal/save"
	"github.com/Majr25/SpriteEdit/internal/sheet"
	"github.com/Majr25/SpriteEdit/internal/state"
	"github.com/Majr25/SpriteEdit/internal/ui"
	"github.com/Majr25/SpriteEdit/internal/wiki"
)

// Config describes user-provided application options.
type Config struct {
	API           string
	Page          string
	PageID        int
	SheetFile     string
	SheetURL      string
	ImageWidth    int
	ImageHeight   int
	Spacing       int
	Tag           string
	User          string
	Password      string
	StateFile     string
	DropDir       string
	WatchInterval time.Duration
	ShowFooter    bool
}

// Workspace is an opened IDs page: the wiki client, the edit session and
// the stores shared by the UI and the save flow.
type Workspace struct {
	Client  *wiki.Client
	Session *editor.Session
	Saver   *save.Orchestrator
	Remote  state.RemoteStore
	Pages   state.PageStore
	Loaded  backend.Loaded

	cfg Config
}

// Open logs in when a user is configured, loads the page, sheet and
// permissions, and opens an edit session.
func Open(ctx context.Context, cfg Config, opts ...wiki.Option) (*Workspace, error) {
	client := wiki.New(cfg.API, opts...)
	if cfg.User != "" {
		if err := client.Login(ctx, cfg.User, cfg.Password); err != nil {
			return nil, err
		}
	}
	path := cfg.StateFile
	if path == "" {
		path = state.DefaultPath()
	}
	pages := state.NewFileStore(path)
	known, err := pages.Page(cfg.PageID)
	if err != nil {
		logging.Error(fmt.Errorf("read state: %w", err))
		known = state.Page{}
	}
	sheetURL := cfg.SheetURL
	if sheetURL == "" {
		sheetURL = known.SheetURL
	}
	loaded, err := backend.Startup(ctx, client, backend.Request{
		PageID:    cfg.PageID,
		SheetFile: cfg.SheetFile,
		SheetURL:  sheetURL,
		Known:     known.Timestamp,
	})
	if err != nil {
		return nil, err
	}
	spacing := cfg.Spacing
	if spacing == 0 {
		spacing = known.Spacing
	}
	b := loaded.Sheet.Bounds()
	geo := sheet.Geometry{
		SheetWidth:  b.Dx(),
		SheetHeight: b.Dy(),
		ImageWidth:  cfg.ImageWidth,
		ImageHeight: cfg.ImageHeight,
		Spacing:     spacing,
	}
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	session := editor.Open(loaded.Table, editor.Options{Geometry: geo, Sheet: loaded.Sheet, LastPos: known.LastPos})

	page := cfg.Page
	if page == "" {
		page = loaded.Revision.Title
	}
	saver := save.New(client, session, save.Target{
		PageID:    cfg.PageID,
		Page:      page,
		SheetFile: cfg.SheetFile,
		Tag:       cfg.Tag,
	}, loaded.Revision.Timestamp)

	ws := &Workspace{
		Client:  client,
		Session: session,
		Saver:   saver,
		Remote:  state.NewRemoteStore(loaded.Revision.Timestamp),
		Pages:   pages,
		Loaded:  loaded,
		cfg:     cfg,
	}
	ws.remember(nil)
	doc := session.Doc()
	events.App.Ready(len(doc.Sections()), len(session.Positions()), session.LastPos())
	return ws, nil
}

// Saved persists what the next run needs after a successful save. It runs
// after the saver committed the result, so a merge has already swapped in
// the reloaded session.
func (w *Workspace) Saved(res save.Result) {
	w.Session = w.Saver.Session()
	if res.Merged {
		w.remember(nil)
		return
	}
	w.remember(res.Positions)
}

func (w *Workspace) remember(positions map[string]int) {
	if positions == nil {
		positions = w.Session.Positions()
	}
	err := w.Pages.SetPage(w.cfg.PageID, state.Page{
		SheetURL:  w.Loaded.SheetURL,
		Timestamp: w.Saver.Base(),
		LastPos:   w.Session.LastPos(),
		Spacing:   w.Session.Geometry().Spacing,
		Positions: positions,
	})
	if err != nil {
		logging.Error(fmt.Errorf("write state: %w", err))
	}
}

// Close releases the session's image data.
func (w *Workspace) Close() {
	w.Saver.Session().Close()
}

// Run bootstraps and executes the Bubble Tea program.
func Run(cfg Config) error {
	ws, err := Open(context.Background(), cfg)
	if err != nil {
		if errors.Is(err, wiki.ErrBlocked) || errors.Is(err, wiki.ErrPermission) {
			return fmt.Errorf("cannot edit: %w", err)
		}
		return err
	}
	defer ws.Close()

	var watcher *backend.Watcher
	if cfg.WatchInterval > 0 {
		watcher = backend.NewWatcher(ws.Client, cfg.PageID, cfg.WatchInterval)
		defer func() {
			watcher.Stop()
			watcher.Wait()
		}()
	}
	var zone *dropzone.Zone
	if cfg.DropDir != "" {
		zone, err = dropzone.Watch(cfg.DropDir)
		if err != nil {
			return err
		}
		defer zone.Close()
	}

	model := ui.NewModel(ui.Options{
		Session:    ws.Session,
		Saver:      ws.Saver,
		Watcher:    watcher,
		Remote:     ws.Remote,
		Zone:       zone,
		Page:       ws.Loaded.Revision.Title,
		OnSaved:    ws.Saved,
		ShowFooter: cfg.ShowFooter,
	})
	defer model.Close()
	if ws.Loaded.Updated {
		model.Warn(fmt.Sprintf("%s changed since the last session", ws.Loaded.Revision.Title))
	}
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = program.Run()
	events.App.Exit(ws.Session.Modified())
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
