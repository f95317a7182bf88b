package state

import (
	"testing"
)

func TestSetFilterTracksCursorAndRestoresPosition(t *testing.T) {
	level := newTestLevel("Stone", "Dirt", "Stone Bricks")
	level.Cursor = 1
	level.SetFilter("stn", 3)

	if len(level.Rows) != 2 || level.Rows[0].Label != "Stone" {
		t.Fatalf("expected fuzzy matches best first, got %#v", level.Rows)
	}
	if level.Cursor != 0 {
		t.Fatalf("expected cursor on best match, got %d", level.Cursor)
	}
	level.SetFilter("", 0)
	if level.Cursor != 1 || len(level.Rows) != 3 {
		t.Fatalf("expected cursor restored to 1, got %d", level.Cursor)
	}
	if level.LastCursor != -1 {
		t.Fatalf("expected last cursor reset, got %d", level.LastCursor)
	}
}

func TestBestMatchPrefersExactThenPrefix(t *testing.T) {
	rows := newTestLevel("Stone Bricks", "Stone", "Cobblestone").Rows
	if got := BestMatchIndex(rows, "stone"); got != 1 {
		t.Fatalf("expected exact match 1, got %d", got)
	}
	if got := BestMatchIndex(rows, "cob"); got != 2 {
		t.Fatalf("expected prefix match 2, got %d", got)
	}
	if got := BestMatchIndex(nil, "x"); got != -1 {
		t.Fatalf("expected -1 for no rows, got %d", got)
	}
}

func TestInsertAndDeleteFilterText(t *testing.T) {
	level := newTestLevel("alpha")
	if !level.InsertFilterText("ab") {
		t.Fatal("expected insert to succeed")
	}
	level.FilterCursor = 1
	level.InsertFilterText("z")
	if level.Filter != "azb" || level.FilterCursor != 2 {
		t.Fatalf("unexpected filter state %q/%d", level.Filter, level.FilterCursor)
	}
	if !level.DeleteFilterRuneBackward() || level.Filter != "ab" {
		t.Fatalf("expected rune deletion, got %q", level.Filter)
	}
	level.SetFilter("red stone", len("red stone"))
	if !level.DeleteFilterWordBackward() || level.Filter != "red " {
		t.Fatalf("expected word deletion, got %q", level.Filter)
	}
	if !level.MoveFilterCursorStart() || level.MoveFilterCursorStart() {
		t.Fatalf("expected a single move to start")
	}
	if !level.MoveFilterCursorWordForward() || level.FilterCursor != 4 {
		t.Fatalf("expected word forward to 4, got %d", level.FilterCursor)
	}
}
