package editor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/Majr25/SpriteEdit/internal/luatable"
	"github.com/Majr25/SpriteEdit/internal/model"
	"github.com/Majr25/SpriteEdit/internal/sheet"
)

var testGeometry = sheet.Geometry{SheetWidth: 64, SheetHeight: 16, ImageWidth: 16, ImageHeight: 16}

func fixture(t *testing.T) *Session {
	t.Helper()
	return Open(luatable.Table{
		Sections: []luatable.Section{{Name: "Blocks", ID: 1}, {Name: "Items", ID: 2}},
		IDs: map[string]luatable.Entry{
			"Apple":  {Pos: 1, Section: 1},
			"Banana": {Pos: 2, Section: 1},
			"Cherry": {Pos: 3, Section: 1},
			"Stick":  {Pos: 4, Section: 2},
		},
	}, Options{Geometry: testGeometry, Sheet: solid(64, 16, color.RGBA{R: 255, A: 255})})
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func nameID(t *testing.T, s *Session, text string) int {
	t.Helper()
	holders := s.Holders(text)
	if len(holders) == 0 {
		t.Fatalf("no name %q", text)
	}
	return holders[0]
}

func sectionID(t *testing.T, s *Session, heading string) int {
	t.Helper()
	for _, id := range s.Doc().Sections() {
		if s.Doc().Section(id).Heading == heading {
			return id
		}
	}
	t.Fatalf("no section %q", heading)
	return 0
}

func boxOrder(s *Session, sectionID int) []string {
	var out []string
	for _, bid := range s.Doc().Section(sectionID).Boxes() {
		out = append(out, s.Doc().FirstName(bid))
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOpenGroupsNamesIntoSortedBoxes(t *testing.T) {
	s := Open(luatable.Table{
		Sections: []luatable.Section{{Name: "Blocks", ID: 1}},
		IDs: map[string]luatable.Entry{
			"stone":  {Pos: 2, Section: 1},
			"Rock":   {Pos: 2, Section: 1},
			"Dirt":   {Pos: 1, Section: 1, Deprecated: true},
			"Orphan": {Pos: 7, Section: 9},
		},
	}, Options{Geometry: testGeometry})
	blocks := sectionID(t, s, "Blocks")
	if got := boxOrder(s, blocks); !equalStrings(got, []string{"Dirt", "Rock"}) {
		t.Fatalf("unexpected box order %v", got)
	}
	box := s.Doc().Box(s.Doc().Section(blocks).Boxes()[1])
	if len(box.Names()) != 2 || box.Pos != 2 {
		t.Fatalf("expected shared box at pos 2, got %+v", box)
	}
	if !s.Doc().Name(nameID(t, s, "Dirt")).Deprecated {
		t.Fatalf("expected Dirt to be deprecated")
	}
	sectionID(t, s, DefaultHeading)
	if s.LastPos() != 7 {
		t.Fatalf("expected last position 7, got %d", s.LastPos())
	}
	if s.Modified() {
		t.Fatalf("a freshly opened session is not modified")
	}
}

func TestRenameRelocatesBoxAndUndoRestores(t *testing.T) {
	s := fixture(t)
	blocks := sectionID(t, s, "Blocks")
	before := s.Doc().Dump()

	if err := s.SetName(nameID(t, s, "Apple"), "Zebra"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if got := boxOrder(s, blocks); !equalStrings(got, []string{"Banana", "Cherry", "Zebra"}) {
		t.Fatalf("expected box to move to the end, got %v", got)
	}
	if !s.Undo() {
		t.Fatalf("expected undo")
	}
	if got := s.Doc().Dump(); got != before {
		t.Fatalf("undo did not restore the document\nexpected:\n%s\nactual:\n%s", before, got)
	}
	if !s.Redo() {
		t.Fatalf("expected redo")
	}
	if got := boxOrder(s, blocks); !equalStrings(got, []string{"Banana", "Cherry", "Zebra"}) {
		t.Fatalf("redo did not relocate the box, got %v", got)
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	s := fixture(t)
	blocks := sectionID(t, s, "Blocks")
	dumps := []string{s.Doc().Dump()}
	step := func(desc string, fn func() error) {
		t.Helper()
		if err := fn(); err != nil {
			t.Fatalf("%s: %v", desc, err)
		}
		dumps = append(dumps, s.Doc().Dump())
	}

	bananaBox := s.Doc().Name(nameID(t, s, "Banana")).Box()
	cherryBox := s.Doc().Name(nameID(t, s, "Cherry")).Box()
	step("add name", func() error { _, err := s.AddName(bananaBox, "Blueberry"); return err })
	step("deprecate", func() error { return s.ToggleDeprecated(nameID(t, s, "Cherry")) })
	step("delete last name", func() error { return s.DeleteName(nameID(t, s, "Stick")) })
	var tools int
	step("add section", func() error {
		var err error
		tools, err = s.AddSection("Tools", 2)
		return err
	})
	step("move box", func() error { return s.Move(model.BoxElem(cherryBox), model.SectionElem(tools), 0, false) })
	step("insert sprites", func() error {
		_, err := s.InsertSprites(blocks, []Sprite{{Name: "Acorn", Image: model.LoadedImage("acorn.png", solid(16, 16, color.White))}})
		return err
	})
	step("rename", func() error { return s.SetName(nameID(t, s, "Acorn"), "Walnut") })

	for i := len(dumps) - 1; i > 0; i-- {
		if !s.Undo() {
			t.Fatalf("undo %d failed", i)
		}
		if got := s.Doc().Dump(); got != dumps[i-1] {
			t.Fatalf("undo to step %d mismatch\nexpected:\n%s\nactual:\n%s", i-1, dumps[i-1], got)
		}
	}
	if s.CanUndo() {
		t.Fatalf("expected empty undo stack")
	}
	for i := 1; i < len(dumps); i++ {
		if !s.Redo() {
			t.Fatalf("redo %d failed", i)
		}
		if got := s.Doc().Dump(); got != dumps[i] {
			t.Fatalf("redo to step %d mismatch\nexpected:\n%s\nactual:\n%s", i, dumps[i], got)
		}
	}
	if s.HasDuplicates() {
		t.Fatalf("round trip must not leave duplicate flags")
	}
	if len(s.Holders("Stick")) != 0 || len(s.Holders("Walnut")) != 1 {
		t.Fatalf("registry out of sync after redo")
	}
}

func TestCommitClearsRedo(t *testing.T) {
	s := fixture(t)
	if err := s.ToggleDeprecated(nameID(t, s, "Apple")); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	s.Undo()
	if !s.CanRedo() {
		t.Fatalf("expected redo to be available")
	}
	if err := s.ToggleDeprecated(nameID(t, s, "Banana")); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if s.CanRedo() {
		t.Fatalf("commit must clear redo")
	}
}

func TestDuplicateNamesFlagAndClear(t *testing.T) {
	s := fixture(t)
	apple := nameID(t, s, "Apple")
	dup, err := s.AddName(s.Doc().Name(apple).Box(), "apple")
	if err != nil {
		t.Fatalf("add name: %v", err)
	}
	if !s.Duplicate(apple) || !s.Duplicate(dup) || !s.HasDuplicates() {
		t.Fatalf("expected both names flagged")
	}
	if got := s.DuplicateNames(); len(got) != 1 {
		t.Fatalf("expected one duplicate name, got %v", got)
	}
	if err := s.DeleteName(dup); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Duplicate(apple) || s.HasDuplicates() {
		t.Fatalf("expected survivor to be unflagged")
	}
	s.Undo()
	if !s.Duplicate(apple) {
		t.Fatalf("undoing the delete must flag the names again")
	}
}

func TestBlankNewNameIsDiscarded(t *testing.T) {
	s := fixture(t)
	box := s.Doc().Name(nameID(t, s, "Apple")).Box()
	id, err := s.BeginName(box)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if s.Draggable(model.NameElem(id)) {
		t.Fatalf("blank new names are not draggable")
	}
	if s.Queued() != 1 {
		t.Fatalf("expected queued insert, got %d", s.Queued())
	}
	if err := s.SetName(id, "   "); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if s.Queued() != 0 || s.CanUndo() || s.Modified() {
		t.Fatalf("expected nothing recorded")
	}
	if len(s.Doc().Box(box).Names()) != 1 {
		t.Fatalf("expected blank name removed")
	}
}

func TestBlankNameDeletesNameOrBox(t *testing.T) {
	s := fixture(t)
	items := sectionID(t, s, "Items")
	if err := s.SetName(nameID(t, s, "Stick"), ""); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if len(s.Doc().Section(items).Boxes()) != 0 {
		t.Fatalf("expected the box to be deleted with its last name")
	}
	s.Undo()
	if len(s.Doc().Section(items).Boxes()) != 1 || len(s.Holders("Stick")) != 1 {
		t.Fatalf("expected undo to restore box and name")
	}
}

func TestBlankHeadingRules(t *testing.T) {
	s := fixture(t)
	id, err := s.BeginSection(0)
	if err != nil {
		t.Fatalf("begin section: %v", err)
	}
	if err := s.SetHeading(id, ""); err != nil {
		t.Fatalf("set heading: %v", err)
	}
	if len(s.Doc().Sections()) != 2 || s.CanUndo() {
		t.Fatalf("expected new blank section to vanish without history")
	}

	if err := s.SetHeading(sectionID(t, s, "Items"), " "); err != nil {
		t.Fatalf("set heading: %v", err)
	}
	if len(s.Doc().Sections()) != 1 || len(s.Holders("Stick")) != 0 {
		t.Fatalf("expected Items to be deleted with its names")
	}
	blocks := sectionID(t, s, "Blocks")
	if err := s.SetHeading(blocks, ""); err != nil {
		t.Fatalf("set heading: %v", err)
	}
	if got := s.Doc().Section(blocks).Heading; got != DefaultHeading {
		t.Fatalf("expected %q on the only section, got %q", DefaultHeading, got)
	}
}

func TestReplaceAndResetImage(t *testing.T) {
	s := fixture(t)
	box := s.Doc().Name(nameID(t, s, "Apple")).Box()
	img := model.LoadedImage("new.png", solid(16, 16, color.White))
	if err := s.ReplaceImage(box, img); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if !s.SheetDirty() || !s.Doc().Box(box).New {
		t.Fatalf("expected dirty sheet after replace")
	}
	if err := s.ResetImage(box); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if s.SheetDirty() {
		t.Fatalf("expected clean sheet after reset")
	}
	s.Undo()
	if s.Doc().Box(box).Image != img {
		t.Fatalf("expected undo of reset to restore the image")
	}
	s.Undo()
	if s.SheetDirty() || s.Doc().Box(box).Image != nil {
		t.Fatalf("expected undo of replace to clear the image")
	}

	ids, err := s.InsertSprites(sectionID(t, s, "Items"), []Sprite{{Name: "Rope", Image: img}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.ResetImage(ids[0]); !errors.Is(err, ErrNoOriginal) {
		t.Fatalf("expected ErrNoOriginal, got %v", err)
	}
}

func TestInsertSpritesSortsAndSkipsBlank(t *testing.T) {
	s := fixture(t)
	blocks := sectionID(t, s, "Blocks")
	ids, err := s.InsertSprites(blocks, []Sprite{
		{Name: "Blueberry", Image: model.LoadedImage("b.png", solid(16, 16, color.White))},
		{Name: " ", Image: model.LoadedImage("blank.png", solid(16, 16, color.White))},
		{Name: "Date", Image: model.LoadedImage("d.png", solid(16, 16, color.White))},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected two boxes, got %d", len(ids))
	}
	want := []string{"Apple", "Banana", "Blueberry", "Cherry", "Date"}
	if got := boxOrder(s, blocks); !equalStrings(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	s.Undo()
	if got := boxOrder(s, blocks); len(got) != 3 {
		t.Fatalf("expected a single undo to remove both boxes, got %v", got)
	}
	if _, err := s.InsertSprites(blocks, []Sprite{{Name: ""}}); !errors.Is(err, ErrNoSprites) {
		t.Fatalf("expected ErrNoSprites, got %v", err)
	}
}

func TestRedoEvictionReleasesImages(t *testing.T) {
	s := fixture(t)
	img := model.LoadedImage("dirt.png", solid(16, 16, color.White))
	if _, err := s.InsertSprites(sectionID(t, s, "Items"), []Sprite{{Name: "Dirt", Image: img}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	s.Undo()
	if img.Released() {
		t.Fatalf("image must survive while redo can restore it")
	}
	if err := s.ToggleDeprecated(nameID(t, s, "Apple")); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !img.Released() {
		t.Fatalf("expected evicted redo image to be released")
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	s := fixture(t)
	kept := model.LoadedImage("a.png", solid(16, 16, color.White))
	undone := model.LoadedImage("b.png", solid(16, 16, color.White))
	box := s.Doc().Name(nameID(t, s, "Apple")).Box()
	if err := s.ReplaceImage(box, undone); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := s.ReplaceImage(box, kept); err != nil {
		t.Fatalf("replace: %v", err)
	}
	s.Close()
	if !kept.Released() || !undone.Released() {
		t.Fatalf("expected all images released on close")
	}
	if err := s.ToggleDeprecated(nameID(t, s, "Apple")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestAllocatePositionsFillsGapsAndIsIdempotent(t *testing.T) {
	s := fixture(t)
	if err := s.DeleteName(nameID(t, s, "Banana")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ids, err := s.InsertSprites(sectionID(t, s, "Items"), []Sprite{
		{Name: "Rope", Image: model.LoadedImage("r.png", solid(16, 16, color.White))},
		{Name: "Hook", Image: model.LoadedImage("h.png", solid(16, 16, color.White))},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	alloc := s.AllocatePositions()
	if !alloc.Grew || alloc.LastPos != 5 {
		t.Fatalf("expected growth to 5, got %+v", alloc)
	}
	rope, hook := s.Doc().Box(ids[0]), s.Doc().Box(ids[1])
	if hook.NewPos != 2 || rope.NewPos != 5 {
		t.Fatalf("expected hook (first in document order) at 2 and rope at 5, got %d and %d", hook.NewPos, rope.NewPos)
	}
	again := s.AllocatePositions()
	if len(again.Positions) != 0 || again.LastPos != 5 || rope.NewPos != 5 {
		t.Fatalf("expected idempotent allocation, got %+v", again)
	}
}

func TestTableAssignsSectionNumbersAndSortsNames(t *testing.T) {
	s := fixture(t)
	if err := s.DeleteSection(sectionID(t, s, "Blocks")); err != nil {
		t.Fatalf("delete section: %v", err)
	}
	tools, err := s.AddSection("Tools", 0)
	if err != nil {
		t.Fatalf("add section: %v", err)
	}
	if _, err := s.InsertSprites(tools, []Sprite{{Name: "axe", Image: model.LoadedImage("axe.png", solid(16, 16, color.White))}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	tbl := s.Table()
	if len(tbl.Sections) != 2 || tbl.Sections[0] != (luatable.Section{Name: "Tools", ID: 1}) {
		t.Fatalf("expected Tools to reuse section 1, got %+v", tbl.Sections)
	}
	if tbl.IDs["axe"] != (luatable.Entry{Pos: 1, Section: 1}) {
		t.Fatalf("expected axe to reuse position 1, got %+v", tbl.IDs["axe"])
	}
	if tbl.IDs["Stick"].Section != 2 {
		t.Fatalf("expected Stick to stay in section 2, got %+v", tbl.IDs["Stick"])
	}
	if got := tbl.Names(); !equalStrings(got, []string{"axe", "Stick"}) {
		t.Fatalf("unexpected names %v", got)
	}
	if pos := s.Positions(); pos["axe"] != 1 || pos["Stick"] != 4 {
		t.Fatalf("unexpected positions %v", pos)
	}
}

func TestComposeSheetWaitsForImages(t *testing.T) {
	s := fixture(t)
	blue := color.RGBA{B: 255, A: 255}
	pending := model.NewImage("late.png")
	if _, err := s.InsertSprites(sectionID(t, s, "Items"), []Sprite{{Name: "Rope", Image: pending}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	go pending.Resolve(solid(16, 16, blue), nil)
	out, err := s.ComposeSheet(context.Background())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if out.Bounds().Dy() != 32 {
		t.Fatalf("expected sheet to grow to 32px, got %d", out.Bounds().Dy())
	}
	if got := out.RGBAAt(1, 17); got != blue {
		t.Fatalf("expected new sprite at position 5, got %v", got)
	}
	if got := out.RGBAAt(1, 1); got != (color.RGBA{R: 255, A: 255}) {
		t.Fatalf("expected original sprite untouched, got %v", got)
	}

	s.Rebase(out)
	if s.SheetDirty() || s.CanUndo() || s.Geometry().SheetHeight != 32 {
		t.Fatalf("expected rebase to reset the session")
	}
	if pos := s.Positions(); pos["Rope"] != 5 {
		t.Fatalf("expected Rope to keep position 5, got %d", pos["Rope"])
	}
}

func TestSheetJobIsDetachedFromSession(t *testing.T) {
	s := fixture(t)
	blue := color.RGBA{B: 255, A: 255}
	if _, err := s.InsertSprites(sectionID(t, s, "Items"), []Sprite{{Name: "Rope", Image: model.LoadedImage("rope.png", solid(16, 16, blue))}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	job := s.SheetJob()
	box := s.Doc().Name(s.Holders("Rope")[0]).Box()
	if err := s.DeleteBox(box); err != nil {
		t.Fatalf("delete: %v", err)
	}
	out, err := job.Compose(context.Background())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if got := out.RGBAAt(1, 17); got != blue {
		t.Fatalf("expected the snapshot to keep Rope at position 5, got %v", got)
	}
}

func TestComposeSheetHonoursCancellation(t *testing.T) {
	s := fixture(t)
	if _, err := s.InsertSprites(sectionID(t, s, "Items"), []Sprite{{Name: "Rope", Image: model.NewImage("never.png")}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ComposeSheet(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSubscribersSeeEveryChange(t *testing.T) {
	s := fixture(t)
	var seen []Change
	stop := s.Subscribe(func(c Change) { seen = append(seen, c) })
	if err := s.ToggleDeprecated(nameID(t, s, "Apple")); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	s.Undo()
	if len(seen) != 2 || seen[0].Replay || !seen[1].Replay {
		t.Fatalf("unexpected notifications %+v", seen)
	}
	stop()
	s.Redo()
	if len(seen) != 2 {
		t.Fatalf("expected no notifications after unsubscribe")
	}
}
