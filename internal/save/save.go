// Package save turns an editing session into a page edit plus a sheet
// upload.
package save

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/Majr25/SpriteEdit/internal/editor"
	"github.com/Majr25/SpriteEdit/internal/logging"
	"github.com/Majr25/SpriteEdit/internal/logging/events"
	"github.com/Majr25/SpriteEdit/internal/luatable"
	"github.com/Majr25/SpriteEdit/internal/sheet"
	"github.com/Majr25/SpriteEdit/internal/wiki"
)

var (
	// ErrDuplicateNames blocks saving while two sprites share a name.
	ErrDuplicateNames = errors.New("duplicate names")
	// ErrNothingPending is returned by Resolve without an earlier conflict.
	ErrNothingPending = errors.New("no conflicting save to resolve")
	// ErrReloadRequired blocks saving from a session that no longer matches
	// the page, after merged text could not be loaded back.
	ErrReloadRequired = errors.New("the merged page could not be loaded; restart before saving again")
)

// DuplicateError lists the names that collide.
type DuplicateError struct {
	Names []string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate names: %s", strings.Join(e.Names, ", "))
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicateNames }

// ConflictError is returned when the IDs page changed since it was loaded.
// Current is the page as it is now, Mine the text that failed to save.
type ConflictError struct {
	Current   string
	Mine      string
	Diff      string
	Timestamp time.Time
}

func (e *ConflictError) Error() string {
	return "the IDs page was edited by someone else"
}

func (e *ConflictError) Unwrap() error { return wiki.ErrEditConflict }

// Store is the remote side of a save. *wiki.Client satisfies it.
type Store interface {
	Revision(ctx context.Context, pageID int, withContent bool) (wiki.Revision, error)
	Diff(ctx context.Context, pageID int, text string) (string, error)
	Edit(ctx context.Context, req wiki.EditRequest) (wiki.EditResult, error)
	Stash(ctx context.Context, filename string, data []byte) (string, error)
	Upload(ctx context.Context, req wiki.UploadRequest) error
	Purge(ctx context.Context, title string) error
	ValidTag(ctx context.Context, tag string) (bool, error)
}

// Target names the pages a save writes to.
type Target struct {
	PageID    int
	Page      string
	SheetFile string
	Tag       string
}

// Plan is a prepared save. Draft fills the table and text; Prepare adds
// the composed sheet and the review diff.
type Plan struct {
	Table luatable.Table
	Text  string
	Diff  string
	// DiffErr is set when the review diff could not be fetched. The names
	// are then assumed changed.
	DiffErr       error
	NamesModified bool
	SheetModified bool
	Sheet         *image.RGBA
	PNG           []byte

	job *editor.SheetJob
}

// Changed reports whether the plan writes anything.
func (p *Plan) Changed() bool { return p.NamesModified || p.SheetModified }

// Result describes a finished save.
type Result struct {
	NoChange  bool
	Timestamp time.Time
	Positions map[string]int
	// Sheet is the uploaded sheet, nil when only names were saved.
	Sheet *image.RGBA
	// Merged is set when a conflict was resolved with text that differs
	// from the session. Text then holds the saved page.
	Merged bool
	Text   string
}

type pending struct {
	plan    *Plan
	fileKey string
	summary string
}

// Orchestrator runs saves for one session.
type Orchestrator struct {
	store   Store
	session *editor.Session
	target  Target
	base    time.Time

	tagChecked bool
	pending    *pending
	stale      bool
}

// New returns an orchestrator whose conflict checks start from base, the
// timestamp of the IDs revision the session was opened from.
func New(store Store, session *editor.Session, target Target, base time.Time) *Orchestrator {
	return &Orchestrator{store: store, session: session, target: target, base: base}
}

// Base returns the revision timestamp the next edit is checked against.
func (o *Orchestrator) Base() time.Time { return o.base }

// Pending reports whether a conflicting save waits for Resolve.
func (o *Orchestrator) Pending() bool { return o.pending != nil }

// Session returns the session saves are drafted from. Commit replaces it
// after a merge.
func (o *Orchestrator) Session() *editor.Session { return o.session }

// Draft serializes the session and snapshots the pending images. It is
// the only step besides Commit that touches the session and must run on the
// goroutine that owns it. It refuses while names collide.
func (o *Orchestrator) Draft() (*Plan, error) {
	if o.stale {
		return nil, ErrReloadRequired
	}
	if o.session.HasDuplicates() {
		return nil, &DuplicateError{Names: o.session.DuplicateNames()}
	}
	plan := &Plan{SheetModified: o.session.SheetDirty()}
	if plan.SheetModified {
		plan.job = o.session.SheetJob()
	}
	plan.Table = o.session.Table()
	plan.Text = luatable.Encode(plan.Table)
	return plan, nil
}

// Prepare composes the sheet when images changed and fetches the review
// diff. A failed diff does not block the save: the names count as changed
// and the error is kept on the plan.
func (o *Orchestrator) Prepare(ctx context.Context, plan *Plan) error {
	if plan.job != nil {
		img, err := plan.job.Compose(ctx)
		if err != nil {
			return fmt.Errorf("compose sheet: %w", err)
		}
		data, err := sheet.PNGBytes(img)
		if err != nil {
			return err
		}
		plan.Sheet = img
		plan.PNG = data
	}
	diff, err := o.store.Diff(ctx, o.target.PageID, plan.Text)
	switch {
	case err != nil && ctx.Err() != nil:
		return fmt.Errorf("review changes: %w", err)
	case err != nil:
		logging.Error(fmt.Errorf("review changes: %w", err))
		plan.Diff = ""
		plan.DiffErr = err
		plan.NamesModified = true
	default:
		plan.Diff = diff
		plan.NamesModified = diff != ""
	}
	events.Save.Prepare(plan.NamesModified, plan.SheetModified)
	return nil
}

// Save writes plan. The sheet is stashed before the page edit so a failed
// upload never leaves the page pointing at positions the sheet lacks.
func (o *Orchestrator) Save(ctx context.Context, plan *Plan, summary string) (Result, error) {
	if !plan.Changed() {
		return Result{NoChange: true}, nil
	}
	o.pending = nil
	p := &pending{plan: plan, summary: summary}
	if plan.SheetModified {
		key, err := o.stash(ctx, plan, 1)
		if err != nil {
			return Result{}, err
		}
		p.fileKey = key
	}
	ts := o.base
	if plan.NamesModified {
		res, err := o.store.Edit(ctx, wiki.EditRequest{
			PageID:        o.target.PageID,
			Text:          plan.Text,
			Summary:       summary,
			BaseTimestamp: o.base,
			Tags:          o.tags(ctx),
		})
		if errors.Is(err, wiki.ErrEditConflict) {
			o.pending = p
			return Result{}, o.conflict(ctx, plan)
		}
		if err != nil {
			return Result{}, fmt.Errorf("save IDs page: %w", err)
		}
		if !res.NoChange {
			ts = res.NewTimestamp
		}
	}
	return o.finish(ctx, p, ts, false, "")
}

// Resolve saves merged text over the conflicting revision and completes the
// pending upload.
func (o *Orchestrator) Resolve(ctx context.Context, merged string) (Result, error) {
	p := o.pending
	if p == nil {
		return Result{}, ErrNothingPending
	}
	res, err := o.store.Edit(ctx, wiki.EditRequest{
		PageID:  o.target.PageID,
		Text:    merged,
		Summary: p.summary,
		Tags:    o.tags(ctx),
	})
	if err != nil {
		return Result{}, fmt.Errorf("save merged IDs page: %w", err)
	}
	o.pending = nil
	ts := o.base
	if !res.NoChange {
		ts = res.NewTimestamp
	}
	return o.finish(ctx, p, ts, merged != p.plan.Text, merged)
}

// Abandon drops a pending conflicting save.
func (o *Orchestrator) Abandon() { o.pending = nil }

func (o *Orchestrator) conflict(ctx context.Context, plan *Plan) error {
	events.Save.Conflict(o.target.Page)
	rev, err := o.store.Revision(ctx, o.target.PageID, true)
	if err != nil {
		return fmt.Errorf("load conflicting revision: %w", err)
	}
	diff, err := o.store.Diff(ctx, o.target.PageID, plan.Text)
	if err != nil {
		logging.Error(fmt.Errorf("diff conflicting revision: %w", err))
	}
	return &ConflictError{Current: rev.Content, Mine: plan.Text, Diff: diff, Timestamp: rev.Timestamp}
}

func (o *Orchestrator) stash(ctx context.Context, plan *Plan, attempt int) (string, error) {
	key, err := o.store.Stash(ctx, o.target.SheetFile, plan.PNG)
	if err != nil {
		return "", fmt.Errorf("stash sheet: %w", err)
	}
	events.Save.Stash(key, attempt)
	return key, nil
}

func (o *Orchestrator) upload(ctx context.Context, p *pending) error {
	req := wiki.UploadRequest{
		Filename: o.target.SheetFile,
		FileKey:  p.fileKey,
		Comment:  p.summary,
		Tags:     o.tags(ctx),
	}
	err := o.store.Upload(ctx, req)
	if errors.Is(err, wiki.ErrStashMissing) {
		key, serr := o.stash(ctx, p.plan, 2)
		if serr != nil {
			return serr
		}
		p.fileKey = key
		req.FileKey = key
		err = o.store.Upload(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("upload sheet: %w", err)
	}
	events.Save.Upload(o.target.SheetFile)
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, p *pending, ts time.Time, merged bool, text string) (Result, error) {
	if p.plan.SheetModified {
		if err := o.upload(ctx, p); err != nil {
			return Result{}, err
		}
	}
	events.Save.Edit(wiki.FormatTimestamp(ts))
	if o.target.Page != "" {
		if err := o.store.Purge(ctx, o.target.Page); err != nil && !wiki.IsAbort(err) {
			logging.Error(err)
		}
	}
	o.base = ts
	events.Save.Done(wiki.FormatTimestamp(ts))
	res := Result{
		Timestamp: ts,
		Positions: positions(p.plan.Table),
		Sheet:     p.plan.Sheet,
		Merged:    merged,
	}
	if merged {
		res.Text = text
	}
	return res, nil
}

// Commit makes a finished save the session's baseline. When merged text
// was saved the page is parsed back and a fresh session replaces the old
// one, which is closed. Commit returns the session to keep editing and,
// like Draft, must run on the goroutine that owns the session.
func (o *Orchestrator) Commit(res Result) (*editor.Session, error) {
	if res.NoChange {
		return o.session, nil
	}
	var saved image.Image
	if res.Sheet != nil {
		saved = res.Sheet
	}
	o.session.Rebase(saved)
	if !res.Merged {
		return o.session, nil
	}
	tbl, err := luatable.Parse(res.Text)
	if err != nil {
		o.stale = true
		return o.session, fmt.Errorf("reload merged IDs page: %w", err)
	}
	old := o.session
	o.session = editor.Open(tbl, editor.Options{
		Geometry: old.Geometry(),
		Sheet:    old.Sheet(),
		LastPos:  old.LastPos(),
	})
	old.Close()
	events.Save.Reload(len(tbl.IDs))
	return o.session, nil
}

func positions(tbl luatable.Table) map[string]int {
	out := make(map[string]int, len(tbl.IDs))
	for name, e := range tbl.IDs {
		out[name] = e.Pos
	}
	return out
}

// tags returns the change tag when the wiki accepts it. The check runs once
// per orchestrator; an unknown tag is dropped rather than failing the save.
func (o *Orchestrator) tags(ctx context.Context) []string {
	if o.target.Tag == "" {
		return nil
	}
	if !o.tagChecked {
		ok, err := o.store.ValidTag(ctx, o.target.Tag)
		if err != nil || !ok {
			if err != nil {
				logging.Error(err)
			}
			o.target.Tag = ""
			return nil
		}
		o.tagChecked = true
	}
	return []string{o.target.Tag}
}
