package model

import (
	"errors"
	"image"
	"testing"
)

func buildDoc(t *testing.T) (*Document, *Section, *Box, *Name) {
	t.Helper()
	d := New()
	s := d.NewSection("Blocks")
	if err := d.Insert(SectionElem(s.ID), Root, 0); err != nil {
		t.Fatalf("insert section: %v", err)
	}
	b := d.NewBox(3)
	if err := d.Insert(BoxElem(b.ID), SectionElem(s.ID), 0); err != nil {
		t.Fatalf("insert box: %v", err)
	}
	n := d.NewName("Stone")
	if err := d.Insert(NameElem(n.ID), BoxElem(b.ID), 0); err != nil {
		t.Fatalf("insert name: %v", err)
	}
	return d, s, b, n
}

func TestInsertSetsParentsAndIndexes(t *testing.T) {
	d, s, b, n := buildDoc(t)
	if parent, ok := d.Parent(NameElem(n.ID)); !ok || parent != BoxElem(b.ID) {
		t.Fatalf("expected name parent box, got %v %v", parent, ok)
	}
	if n.Box() != b.ID || b.Section() != s.ID {
		t.Fatalf("expected parent ids to be set")
	}
	if !d.Attached(NameElem(n.ID)) {
		t.Fatalf("expected name to be attached")
	}
	other := d.NewName("Granite")
	if err := d.Insert(NameElem(other.ID), BoxElem(b.ID), 0); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := d.IndexOf(NameElem(n.ID)); got != 1 {
		t.Fatalf("expected Stone at index 1, got %d", got)
	}
	if got := d.FirstName(b.ID); got != "Granite" {
		t.Fatalf("expected first name Granite, got %q", got)
	}
}

func TestInsertRejectsKindMismatch(t *testing.T) {
	d, s, _, _ := buildDoc(t)
	n := d.NewName("x")
	if err := d.Insert(NameElem(n.ID), SectionElem(s.ID), 0); err == nil {
		t.Fatalf("expected kind mismatch error")
	}
}

func TestDetachKeepsNodeInArena(t *testing.T) {
	d, s, b, n := buildDoc(t)
	parent, index, ok := d.Detach(BoxElem(b.ID))
	if !ok || parent != SectionElem(s.ID) || index != 0 {
		t.Fatalf("unexpected detach result %v %d %v", parent, index, ok)
	}
	if d.Attached(NameElem(n.ID)) {
		t.Fatalf("name inside detached box must not be attached")
	}
	if d.Box(b.ID) == nil || len(d.Box(b.ID).Names()) != 1 {
		t.Fatalf("detached box should keep its names")
	}
	if err := d.Insert(BoxElem(b.ID), SectionElem(s.ID), 5); err != nil {
		t.Fatalf("reinsert: %v", err)
	}
	if !d.Attached(NameElem(n.ID)) {
		t.Fatalf("expected name to be attached again")
	}
}

func TestMoveWithinParentReorders(t *testing.T) {
	d := New()
	var ids []int
	for _, h := range []string{"A", "B", "C"} {
		s := d.NewSection(h)
		ids = append(ids, s.ID)
		if err := d.Insert(SectionElem(s.ID), Root, len(d.Sections())); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := d.Insert(SectionElem(ids[0]), Root, 2); err != nil {
		t.Fatalf("move: %v", err)
	}
	got := d.Sections()
	want := []int{ids[1], ids[2], ids[0]}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestBoxSortKeyFollowsFirstName(t *testing.T) {
	d, _, b, _ := buildDoc(t)
	if got := d.SortKey(BoxElem(b.ID)); got != "stone" {
		t.Fatalf("expected stone, got %q", got)
	}
	n := d.NewName("Apple")
	if err := d.Insert(NameElem(n.ID), BoxElem(b.ID), 0); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := d.SortKey(BoxElem(b.ID)); got != "apple" {
		t.Fatalf("expected apple, got %q", got)
	}
}

func TestImageLifecycle(t *testing.T) {
	img := NewImage("a.png")
	if _, err := img.Pixels(); err == nil {
		t.Fatalf("expected not-ready error")
	}
	img.Resolve(image.NewRGBA(image.Rect(0, 0, 2, 2)), nil)
	<-img.Ready()
	if px, err := img.Pixels(); err != nil || px == nil {
		t.Fatalf("expected pixels, got %v %v", px, err)
	}
	img.Release()
	if _, err := img.Pixels(); !errors.Is(err, ErrImageReleased) {
		t.Fatalf("expected ErrImageReleased, got %v", err)
	}
}
