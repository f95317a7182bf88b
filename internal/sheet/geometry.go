// Package sheet implements spritesheet geometry, slot allocation and
// compositing. A sheet is a grid of equally sized cells separated by Spacing
// pixels; position 1 is the top-left cell and positions run row-major.
package sheet

import (
	"fmt"
	"image"
	"sort"
)

// Geometry describes a sheet and its cell grid.
type Geometry struct {
	SheetWidth  int
	SheetHeight int
	ImageWidth  int
	ImageHeight int
	Spacing     int
}

// Validate reports geometry that cannot hold a single cell.
func (g Geometry) Validate() error {
	if g.ImageWidth <= 0 || g.ImageHeight <= 0 {
		return fmt.Errorf("image size must be positive (got %dx%d)", g.ImageWidth, g.ImageHeight)
	}
	if g.Spacing < 0 {
		return fmt.Errorf("spacing must be >= 0 (got %d)", g.Spacing)
	}
	if g.ImagesPerRow() < 1 {
		return fmt.Errorf("sheet width %d cannot hold a %dpx cell", g.SheetWidth, g.ImageWidth)
	}
	return nil
}

// ImagesPerRow is the number of cells that fit across the sheet.
func (g Geometry) ImagesPerRow() int {
	step := g.ImageWidth + g.Spacing
	if step <= 0 {
		return 0
	}
	return (g.SheetWidth + g.Spacing) / step
}

// PosToPx converts a 1-based position to the pixel origin of its cell.
func (g Geometry) PosToPx(pos int) image.Point {
	perRow := g.ImagesPerRow()
	if perRow < 1 || pos < 1 {
		return image.Point{}
	}
	pos--
	return image.Point{
		X: pos % perRow * (g.ImageWidth + g.Spacing),
		Y: pos / perRow * (g.ImageHeight + g.Spacing),
	}
}

// Cell returns the exact pixel rectangle of a position.
func (g Geometry) Cell(pos int) image.Rectangle {
	origin := g.PosToPx(pos)
	return image.Rect(origin.X, origin.Y, origin.X+g.ImageWidth, origin.Y+g.ImageHeight)
}

// HeightFor returns the sheet height needed to hold maxPos cells.
func (g Geometry) HeightFor(maxPos int) int {
	perRow := g.ImagesPerRow()
	if perRow < 1 || maxPos < 1 {
		return 0
	}
	rows := (maxPos + perRow - 1) / perRow
	return rows*(g.ImageHeight+g.Spacing) - g.Spacing
}

// Capacity is the highest position fully contained in the current sheet.
func (g Geometry) Capacity() int {
	perRow := g.ImagesPerRow()
	if perRow < 1 {
		return 0
	}
	rows := (g.SheetHeight + g.Spacing) / (g.ImageHeight + g.Spacing)
	return rows * perRow
}

// Allocation is the result of assigning positions to unallocated boxes.
type Allocation struct {
	// Positions holds one position per pending box, in request order.
	Positions []int
	// LastPos is the highest position in use after allocation.
	LastPos int
	// Grew reports whether any position was handed out past the old maximum.
	Grew bool
}

// Allocate assigns positions to pending unallocated boxes. Gaps in
// [1, max(lastPos, used...)] are handed out first in ascending order, then
// positions past the maximum. lastPos itself always counts as used so a
// previously allocated tail slot is never reused. With pending == 0 the
// result is empty and LastPos is unchanged.
func Allocate(used []int, lastPos int, pending int) Allocation {
	inUse := make(map[int]bool, len(used)+1)
	if lastPos > 0 {
		inUse[lastPos] = true
	}
	for _, pos := range used {
		if pos <= 0 {
			continue
		}
		inUse[pos] = true
		if pos > lastPos {
			lastPos = pos
		}
	}
	alloc := Allocation{LastPos: lastPos}
	if pending <= 0 {
		return alloc
	}
	var unused []int
	for pos := 1; pos <= lastPos; pos++ {
		if !inUse[pos] {
			unused = append(unused, pos)
		}
	}
	sort.Ints(unused)
	origLast := lastPos
	alloc.Positions = make([]int, 0, pending)
	for i := 0; i < pending; i++ {
		if len(unused) > 0 {
			alloc.Positions = append(alloc.Positions, unused[0])
			unused = unused[1:]
			continue
		}
		lastPos++
		alloc.Positions = append(alloc.Positions, lastPos)
	}
	alloc.LastPos = lastPos
	alloc.Grew = lastPos != origLast
	return alloc
}
