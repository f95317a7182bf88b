package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Majr25/SpriteEdit/internal/luatable"
	"github.com/Majr25/SpriteEdit/internal/model"
	"github.com/Majr25/SpriteEdit/internal/save"
	"github.com/Majr25/SpriteEdit/internal/state"
	"github.com/Majr25/SpriteEdit/internal/testutil"
	"github.com/Majr25/SpriteEdit/internal/wiki"
)

const (
	testPageID = 42
	testTitle  = "Module:Fruit/IDs"
	testSheet  = "FruitSprite.png"
)

var testTable = luatable.Table{
	Sections: []luatable.Section{{Name: "Fruit", ID: 1}},
	IDs: map[string]luatable.Entry{
		"Apple":  {Pos: 1, Section: 1},
		"Banana": {Pos: 2, Section: 1},
	},
}

func sheetPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func newWiki(t *testing.T) *testutil.Wiki {
	t.Helper()
	return testutil.NewWiki(t, testPageID, testTitle, luatable.Encode(testTable), testSheet, sheetPNG(t, color.RGBA{B: 255, A: 255}))
}

func testConfig(t *testing.T, w *testutil.Wiki) Config {
	t.Helper()
	return Config{
		API:         w.Endpoint(),
		PageID:      testPageID,
		SheetFile:   testSheet,
		ImageWidth:  16,
		ImageHeight: 16,
		StateFile:   filepath.Join(t.TempDir(), "state.json"),
	}
}

func open(t *testing.T, cfg Config) *Workspace {
	t.Helper()
	ws, err := Open(context.Background(), cfg, wiki.WithRetryDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(ws.Close)
	return ws
}

func prepare(t *testing.T, ws *Workspace) *save.Plan {
	t.Helper()
	plan, err := ws.Saver.Draft()
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if err := ws.Saver.Prepare(context.Background(), plan); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	return plan
}

// saved commits res the way the UI does before reporting it.
func saved(t *testing.T, ws *Workspace, res save.Result) {
	t.Helper()
	if _, err := ws.Saver.Commit(res); err != nil {
		t.Fatalf("commit: %v", err)
	}
	ws.Saved(res)
}

func TestOpenLoadsPageAndRemembersIt(t *testing.T) {
	w := newWiki(t)
	cfg := testConfig(t, w)
	ws := open(t, cfg)

	doc := ws.Session.Doc()
	if len(doc.Sections()) != 1 || len(ws.Session.Holders("Banana")) != 1 {
		t.Fatalf("expected the table to load, got %d sections", len(doc.Sections()))
	}
	if ws.Session.Geometry().SheetWidth != 32 {
		t.Fatalf("expected sheet width 32, got %d", ws.Session.Geometry().SheetWidth)
	}
	if ws.Loaded.Revision.Title != testTitle {
		t.Fatalf("expected title %q, got %q", testTitle, ws.Loaded.Revision.Title)
	}
	if ws.Remote.Stale() {
		t.Fatalf("a fresh workspace is not stale")
	}

	page, err := state.NewFileStore(cfg.StateFile).Page(testPageID)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if page.SheetURL != w.SheetURL() {
		t.Fatalf("expected sheet url %q, got %q", w.SheetURL(), page.SheetURL)
	}
	if !page.Timestamp.Equal(w.Timestamp()) {
		t.Fatalf("expected timestamp %v, got %v", w.Timestamp(), page.Timestamp)
	}
	if page.Positions["Banana"] != 2 {
		t.Fatalf("expected Banana at 2, got %v", page.Positions)
	}
}

func TestReopenWarnsWhenPageChanged(t *testing.T) {
	w := newWiki(t)
	cfg := testConfig(t, w)
	first := open(t, cfg)
	if first.Loaded.Updated {
		t.Fatalf("the first run has nothing to compare against")
	}
	w.EditExternally(luatable.Encode(testTable) + "\n")
	second := open(t, cfg)
	if !second.Loaded.Updated {
		t.Fatalf("expected the external edit to be noticed")
	}
}

func TestRenameSavesPageAndState(t *testing.T) {
	w := newWiki(t)
	cfg := testConfig(t, w)
	cfg.Tag = "sprite-editor"
	w.AddTag("sprite-editor")
	ws := open(t, cfg)

	if err := ws.Session.SetName(ws.Session.Holders("Apple")[0], "Cherry"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	ctx := context.Background()
	plan := prepare(t, ws)
	if !plan.NamesModified || plan.SheetModified {
		t.Fatalf("expected a names-only plan, got %+v", plan)
	}
	res, err := ws.Saver.Save(ctx, plan, "rename apple")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	saved(t, ws, res)

	if !strings.Contains(w.Text(), "Cherry") || strings.Contains(w.Text(), "Apple") {
		t.Fatalf("expected the page to hold the rename, got:\n%s", w.Text())
	}
	edits := w.Edits()
	if len(edits) != 1 || edits[0].Summary != "rename apple" || edits[0].Tags != "sprite-editor" {
		t.Fatalf("expected one tagged edit, got %+v", edits)
	}
	if len(w.Uploads()) != 0 {
		t.Fatalf("expected no upload for a names-only save, got %v", w.Uploads())
	}
	if purged := w.Purged(); len(purged) != 1 || purged[0] != testTitle {
		t.Fatalf("expected %q purged, got %v", testTitle, purged)
	}
	if ws.Session.Modified() {
		t.Fatalf("expected a clean session after saving")
	}
	page, err := ws.Pages.Page(testPageID)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if !page.Timestamp.Equal(w.Timestamp()) {
		t.Fatalf("expected state timestamp %v, got %v", w.Timestamp(), page.Timestamp)
	}
	if page.Positions["Cherry"] != 1 {
		t.Fatalf("expected Cherry remembered at 1, got %v", page.Positions)
	}
}

func TestReplacedImageIsUploaded(t *testing.T) {
	w := newWiki(t)
	ws := open(t, testConfig(t, w))

	red := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			red.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	box := ws.Session.Doc().Name(ws.Session.Holders("Banana")[0]).Box()
	if err := ws.Session.ReplaceImage(box, model.LoadedImage("red.png", red)); err != nil {
		t.Fatalf("replace: %v", err)
	}
	ctx := context.Background()
	plan := prepare(t, ws)
	if !plan.SheetModified || plan.NamesModified {
		t.Fatalf("expected a sheet-only plan, got names=%v sheet=%v", plan.NamesModified, plan.SheetModified)
	}
	if _, err := ws.Saver.Save(ctx, plan, "new banana"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if uploads := w.Uploads(); len(uploads) != 1 || uploads[0] != testSheet {
		t.Fatalf("expected the sheet uploaded, got %v", uploads)
	}
	img, err := png.Decode(bytes.NewReader(w.Sheet()))
	if err != nil {
		t.Fatalf("decode uploaded sheet: %v", err)
	}
	if r, _, b, _ := img.At(20, 4).RGBA(); r>>8 != 255 || b != 0 {
		t.Fatalf("expected slot 2 to be red, got r=%d b=%d", r>>8, b>>8)
	}
	if _, _, b, _ := img.At(4, 4).RGBA(); b>>8 != 255 {
		t.Fatalf("expected slot 1 untouched, got b=%d", b>>8)
	}
}

func TestExternalEditCausesConflict(t *testing.T) {
	w := newWiki(t)
	ws := open(t, testConfig(t, w))
	if err := ws.Session.SetName(ws.Session.Holders("Apple")[0], "Cherry"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	w.EditExternally(luatable.Encode(testTable) + "-- touched\n")

	ctx := context.Background()
	plan := prepare(t, ws)
	_, err := ws.Saver.Save(ctx, plan, "rename")
	if !errors.Is(err, wiki.ErrEditConflict) {
		t.Fatalf("expected an edit conflict, got %v", err)
	}
	if !ws.Saver.Pending() {
		t.Fatalf("expected the save to wait for a merge")
	}
	if _, err := ws.Saver.Resolve(ctx, plan.Text); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if w.Text() != plan.Text {
		t.Fatalf("expected the merged text saved")
	}
}

func TestMergedPageIsReloadedBeforeNextSave(t *testing.T) {
	w := newWiki(t)
	cfg := testConfig(t, w)
	ws := open(t, cfg)
	if err := ws.Session.SetName(ws.Session.Holders("Banana")[0], "Blueberry"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	theirs := luatable.Table{Sections: testTable.Sections, IDs: map[string]luatable.Entry{
		"Apple":  {Pos: 1, Section: 1},
		"Banana": {Pos: 2, Section: 1},
		"Theirs": {Pos: 2, Section: 1},
	}}
	w.EditExternally(luatable.Encode(theirs))

	ctx := context.Background()
	plan := prepare(t, ws)
	if _, err := ws.Saver.Save(ctx, plan, "rename banana"); !errors.Is(err, wiki.ErrEditConflict) {
		t.Fatalf("expected an edit conflict, got %v", err)
	}
	merged := luatable.Table{Sections: testTable.Sections, IDs: map[string]luatable.Entry{
		"Apple":     {Pos: 1, Section: 1},
		"Blueberry": {Pos: 2, Section: 1},
		"Theirs":    {Pos: 2, Section: 1},
	}}
	res, err := ws.Saver.Resolve(ctx, luatable.Encode(merged))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	saved(t, ws, res)
	if ws.Session != ws.Saver.Session() || len(ws.Session.Holders("Theirs")) != 1 {
		t.Fatalf("expected the workspace to edit the reloaded page")
	}

	if err := ws.Session.ToggleDeprecated(ws.Session.Holders("Apple")[0]); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	res, err = ws.Saver.Save(ctx, prepare(t, ws), "deprecate apple")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	saved(t, ws, res)
	page, err := luatable.Parse(w.Text())
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	if _, ok := page.IDs["Theirs"]; !ok {
		t.Fatalf("expected the merged-in name to survive, got:\n%s", w.Text())
	}
	if !page.IDs["Apple"].Deprecated {
		t.Fatalf("expected the later edit saved, got:\n%s", w.Text())
	}
	remembered, err := ws.Pages.Page(testPageID)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if remembered.Positions["Theirs"] != 2 {
		t.Fatalf("expected remembered positions from the reloaded page, got %v", remembered.Positions)
	}
}

func TestOpenRemembersLoadedPositions(t *testing.T) {
	w := newWiki(t)
	cfg := testConfig(t, w)
	pages := state.NewFileStore(cfg.StateFile)
	if err := pages.SetPage(testPageID, state.Page{Positions: map[string]int{"Apple": 7, "Gone": 3}}); err != nil {
		t.Fatalf("seed state: %v", err)
	}
	open(t, cfg)
	page, err := pages.Page(testPageID)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if len(page.Positions) != 2 || page.Positions["Apple"] != 1 || page.Positions["Banana"] != 2 {
		t.Fatalf("expected the loaded positions remembered, got %v", page.Positions)
	}
}

func TestLoginFailure(t *testing.T) {
	w := newWiki(t)
	w.SetLogin("Bot@editor", "secret")
	cfg := testConfig(t, w)
	cfg.User = "Bot@editor"
	cfg.Password = "wrong"
	if _, err := Open(context.Background(), cfg); err == nil {
		t.Fatalf("expected login to fail")
	}
	cfg.Password = "secret"
	ws := open(t, cfg)
	if ws.Loaded.User.Name != "Bot@editor" {
		t.Fatalf("expected to be logged in as Bot@editor, got %q", ws.Loaded.User.Name)
	}
}

func TestBlockedUserCannotOpen(t *testing.T) {
	w := newWiki(t)
	w.SetBlocked(true)
	_, err := Open(context.Background(), testConfig(t, w))
	if !errors.Is(err, wiki.ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
}

func TestMissingRightsCannotOpen(t *testing.T) {
	w := newWiki(t)
	w.SetRights("edit")
	_, err := Open(context.Background(), testConfig(t, w))
	if !errors.Is(err, wiki.ErrPermission) {
		t.Fatalf("expected ErrPermission, got %v", err)
	}
}

func TestBadGeometryIsRejected(t *testing.T) {
	w := newWiki(t)
	cfg := testConfig(t, w)
	cfg.ImageWidth = 40
	if _, err := Open(context.Background(), cfg); err == nil {
		t.Fatalf("expected a sheet narrower than one cell to be rejected")
	}
}
