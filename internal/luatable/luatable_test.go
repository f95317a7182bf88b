package luatable

import (
	"errors"
	"testing"

	"github.com/Majr25/SpriteEdit/internal/testutil"
)

func TestQuotePicksLessFrequentDelimiter(t *testing.T) {
	cases := map[string]string{
		"Stone":          `'Stone'`,
		"Jack o'Lantern": `"Jack o'Lantern"`,
		`Say "hi"`:       `'Say "hi"'`,
		`a'b"c`:          `'a\'b"c'`,
		`back\slash`:     `'back\\slash'`,
		`it's "a" 'b'`:   `"it's \"a\" 'b'"`,
	}
	for in, want := range cases {
		if got := Quote(in); got != want {
			t.Fatalf("Quote(%q) = %s, want %s", in, got, want)
		}
	}
}

func sampleTable() Table {
	return Table{
		Sections: []Section{{Name: "Blocks", ID: 1}, {Name: "Jack's Items", ID: 3}},
		IDs: map[string]Entry{
			"stone":          {Pos: 1, Section: 1},
			"Dirt":           {Pos: 2, Section: 1, Deprecated: true},
			"Jack o'Lantern": {Pos: 4, Section: 3},
			"Apple":          {Pos: 3, Section: 3},
		},
	}
}

func TestEncodeMatchesGolden(t *testing.T) {
	testutil.AssertGolden(t, "ids_table.lua", Encode(sampleTable()))
}

func TestParseRoundTripsEncode(t *testing.T) {
	want := sampleTable()
	got, err := Parse(Encode(want))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got.Sections) != 2 || got.Sections[1] != want.Sections[1] {
		t.Fatalf("unexpected sections %+v", got.Sections)
	}
	if len(got.IDs) != len(want.IDs) {
		t.Fatalf("expected %d ids, got %d", len(want.IDs), len(got.IDs))
	}
	for name, entry := range want.IDs {
		if got.IDs[name] != entry {
			t.Fatalf("ids[%q]: expected %+v, got %+v", name, entry, got.IDs[name])
		}
	}
}

func TestParseAcceptsLegacySections(t *testing.T) {
	src := `return {
	sections = {
		'Blocks',
		'Items',
	},
	ids = {
		['Stone'] = { pos = 1, section = 1 },
		['Stick'] = { pos = 2, section = 2 },
	}
}`
	got, err := Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Sections[1] != (Section{Name: "Items", ID: 2}) {
		t.Fatalf("expected legacy section id from index, got %+v", got.Sections)
	}
	if got.IDs["Stick"].Section != 2 {
		t.Fatalf("unexpected entry %+v", got.IDs["Stick"])
	}
}

func TestParseSkipsBlankNames(t *testing.T) {
	src := `return {
	sections = { { name = 'Blocks', id = 1 } },
	ids = {
		[''] = { pos = 3, section = 1 },
		['  '] = { section = 1 },
		['Stone'] = { pos = 1, section = 1 },
	}
}`
	got, err := Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got.IDs) != 1 || got.IDs["Stone"].Pos != 1 {
		t.Fatalf("expected only Stone, got %+v", got.IDs)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse("return 5"); !errors.Is(err, ErrNotTable) {
		t.Fatalf("expected ErrNotTable, got %v", err)
	}
	if _, err := Parse("return {"); err == nil {
		t.Fatalf("expected syntax error")
	}
	if _, err := Parse("return { ids = { ['x'] = { section = 1 } } }"); err == nil {
		t.Fatalf("expected missing position error")
	}
	if _, err := Parse("return os.exit(1)"); err == nil {
		t.Fatalf("expected sandbox to reject os access")
	}
	if _, err := Parse("while true do end"); err == nil {
		t.Fatalf("expected runaway chunk to be stopped")
	}
}
