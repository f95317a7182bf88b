package editor

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/sync/errgroup"

	"github.com/Majr25/SpriteEdit/internal/logging/events"
	"github.com/Majr25/SpriteEdit/internal/luatable"
	"github.com/Majr25/SpriteEdit/internal/model"
	"github.com/Majr25/SpriteEdit/internal/sheet"
)

// Open builds a session from a decoded IDs table. Names sharing a section
// and position form one box; boxes and names come out alphabetically
// ordered. Names pointing at an unknown section are gathered under
// DefaultHeading.
func Open(tbl luatable.Table, opts Options) *Session {
	s := New(opts)
	byNum := make(map[int]*model.Section, len(tbl.Sections))
	for _, ts := range tbl.Sections {
		sec := s.doc.NewSection(ts.Name)
		sec.Num = ts.ID
		_ = s.doc.Insert(model.SectionElem(sec.ID), model.Root, len(s.doc.Sections()))
		byNum[ts.ID] = sec
	}
	var orphans *model.Section
	type slot struct{ section, pos int }
	boxes := make(map[slot]*model.Box)
	for _, text := range tbl.Names() {
		entry := tbl.IDs[text]
		sec := byNum[entry.Section]
		if sec == nil {
			if orphans == nil {
				orphans = s.doc.NewSection(DefaultHeading)
				_ = s.doc.Insert(model.SectionElem(orphans.ID), model.Root, len(s.doc.Sections()))
			}
			sec = orphans
		}
		key := slot{sec.ID, entry.Pos}
		b := boxes[key]
		if b == nil {
			b = s.doc.NewBox(entry.Pos)
			_ = s.doc.Insert(model.BoxElem(b.ID), model.SectionElem(sec.ID), len(sec.Boxes()))
			boxes[key] = b
		}
		n := s.doc.NewName(text)
		n.Deprecated = entry.Deprecated
		_ = s.doc.Insert(model.NameElem(n.ID), model.BoxElem(b.ID), len(b.Names()))
		s.reg.Register(n.Text, n.ID)
		if entry.Pos > s.lastPos {
			s.lastPos = entry.Pos
		}
	}
	return s
}

// SheetDirty reports whether any attached box carries pending image data.
func (s *Session) SheetDirty() bool {
	for _, b := range s.doc.AttachedBoxes() {
		if b.New {
			return true
		}
	}
	return false
}

// AllocatePositions assigns sheet positions to attached boxes that have
// neither a position nor an earlier allocation. Existing allocations are
// kept, so repeated calls without new boxes change nothing.
func (s *Session) AllocatePositions() sheet.Allocation {
	var used []int
	var pending []*model.Box
	for _, b := range s.doc.AttachedBoxes() {
		switch {
		case b.Pos > 0:
			used = append(used, b.Pos)
		case b.NewPos > 0:
			used = append(used, b.NewPos)
		default:
			pending = append(pending, b)
		}
	}
	alloc := sheet.Allocate(used, s.lastPos, len(pending))
	for i, b := range pending {
		b.NewPos = alloc.Positions[i]
	}
	s.lastPos = alloc.LastPos
	if len(pending) > 0 {
		events.Session.Allocate(alloc.Positions, alloc.LastPos)
	}
	return alloc
}

// SheetJob is a snapshot of the pending sheet changes. It keeps no
// reference to the session, so Compose may run on another goroutine while
// the session stays in use.
type SheetJob struct {
	src    image.Image
	geo    sheet.Geometry
	images []jobImage
}

type jobImage struct {
	pos int
	img *model.Image
}

// SheetJob allocates positions and captures every pending image with the
// cell it goes to.
func (s *Session) SheetJob() *SheetJob {
	s.AllocatePositions()
	job := &SheetJob{src: s.src, geo: s.geo}
	for _, b := range s.doc.AttachedBoxes() {
		if b.New && b.Image != nil {
			job.images = append(job.images, jobImage{pos: b.ResolvedPos(), img: b.Image})
		}
	}
	return job
}

// Compose renders the sheet with every captured image written into its
// cell. It waits for image loading to finish or ctx to end.
func (j *SheetJob) Compose(ctx context.Context) (*image.RGBA, error) {
	g, gctx := errgroup.WithContext(ctx)
	for _, ji := range j.images {
		img := ji.img
		g.Go(func() error {
			select {
			case <-img.Ready():
			case <-gctx.Done():
				return gctx.Err()
			}
			if _, err := img.Pixels(); err != nil {
				return fmt.Errorf("image %s: %w", img.Source, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	placements := make([]sheet.Placement, 0, len(j.images))
	for _, ji := range j.images {
		px, err := ji.img.Pixels()
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", ji.img.Source, err)
		}
		placements = append(placements, sheet.Placement{Pos: ji.pos, Image: px})
	}
	return sheet.Compose(j.src, j.geo, placements)
}

// ComposeSheet snapshots and composes the sheet in one step.
func (s *Session) ComposeSheet(ctx context.Context) (*image.RGBA, error) {
	return s.SheetJob().Compose(ctx)
}

// assignSectionNums gives every attached section a unique Num, keeping
// existing ones and filling the lowest free numbers first.
func (s *Session) assignSectionNums() {
	taken := make(map[int]bool)
	var needs []*model.Section
	for _, id := range s.doc.Sections() {
		sec := s.doc.Section(id)
		if sec.Num > 0 && !taken[sec.Num] {
			taken[sec.Num] = true
			continue
		}
		needs = append(needs, sec)
	}
	next := 1
	for _, sec := range needs {
		for taken[next] {
			next++
		}
		sec.Num = next
		taken[next] = true
	}
}

// Table serializes the document: sections in document order and every
// named sprite with its resolved position and section number.
func (s *Session) Table() luatable.Table {
	s.AllocatePositions()
	s.assignSectionNums()
	tbl := luatable.Table{IDs: make(map[string]luatable.Entry)}
	for _, sid := range s.doc.Sections() {
		sec := s.doc.Section(sid)
		tbl.Sections = append(tbl.Sections, luatable.Section{Name: sec.Heading, ID: sec.Num})
		for _, bid := range sec.Boxes() {
			b := s.doc.Box(bid)
			for _, nid := range b.Names() {
				n := s.doc.Name(nid)
				if n.Text == "" {
					continue
				}
				tbl.IDs[n.Text] = luatable.Entry{Pos: b.ResolvedPos(), Section: sec.Num, Deprecated: n.Deprecated}
			}
		}
	}
	return tbl
}

// Positions returns the resolved position of every attached name.
func (s *Session) Positions() map[string]int {
	out := make(map[string]int)
	s.doc.Walk(func(e model.Elem) bool {
		if e.Kind == model.KindName {
			n := s.doc.Name(e.ID)
			if b := s.doc.Box(n.Box()); b != nil && n.Text != "" {
				out[n.Text] = b.ResolvedPos()
			}
		}
		return true
	})
	return out
}

// Rebase makes the saved state the new baseline: allocated positions become
// permanent, pending images are dropped in favour of the saved sheet and
// the history is cleared.
func (s *Session) Rebase(saved image.Image) {
	for _, b := range s.doc.AttachedBoxes() {
		if b.Pos == 0 && b.NewPos > 0 {
			b.Pos = b.NewPos
		}
		b.NewPos = 0
		b.New = false
	}
	for _, img := range s.doc.Images() {
		img.Release()
	}
	for _, b := range s.doc.AttachedBoxes() {
		b.Image = nil
	}
	for _, id := range s.doc.Sections() {
		s.doc.Section(id).New = false
	}
	for _, entry := range s.hist.Entries() {
		for _, img := range s.entryImages(entry) {
			img.Release()
		}
	}
	s.hist.Clear()
	s.evicted = nil
	s.queue = nil
	if saved != nil {
		s.src = saved
		s.geo.SheetHeight = saved.Bounds().Dy()
	}
}
