package sheet

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"
)

func TestGeometryPositions(t *testing.T) {
	geo := Geometry{SheetWidth: 256, SheetHeight: 64, ImageWidth: 32, ImageHeight: 32}
	if got := geo.ImagesPerRow(); got != 8 {
		t.Fatalf("expected 8 images per row, got %d", got)
	}
	cases := map[int]image.Point{
		1:  {0, 0},
		2:  {32, 0},
		9:  {0, 32},
		17: {0, 64},
	}
	for pos, want := range cases {
		if got := geo.PosToPx(pos); got != want {
			t.Fatalf("pos %d: expected %v, got %v", pos, want, got)
		}
	}
}

func TestGeometryWithSpacing(t *testing.T) {
	geo := Geometry{SheetWidth: 70, ImageWidth: 16, ImageHeight: 16, Spacing: 2}
	// (70+2)/(16+2) = 4
	if got := geo.ImagesPerRow(); got != 4 {
		t.Fatalf("expected 4 per row, got %d", got)
	}
	if got := geo.PosToPx(6); got != (image.Point{X: 18, Y: 18}) {
		t.Fatalf("unexpected origin %v", got)
	}
	if got := geo.HeightFor(5); got != 34 {
		t.Fatalf("expected height 34 for two rows, got %d", got)
	}
	if got := geo.HeightFor(4); got != 16 {
		t.Fatalf("expected height 16 for one row, got %d", got)
	}
	geo.SheetHeight = 34
	if got := geo.Capacity(); got != 8 {
		t.Fatalf("expected two full rows of 4, got %d", got)
	}
	geo.SheetHeight = 33
	if got := geo.Capacity(); got != 4 {
		t.Fatalf("expected a partial row not to count, got %d", got)
	}
}

func TestAllocateFillsGapsFirst(t *testing.T) {
	alloc := Allocate([]int{1, 3, 5}, 5, 1)
	if len(alloc.Positions) != 1 || alloc.Positions[0] != 2 {
		t.Fatalf("expected position 2, got %v", alloc.Positions)
	}
	if alloc.Grew {
		t.Fatalf("did not expect growth")
	}

	alloc = Allocate([]int{1, 3, 5}, 5, 3)
	want := []int{2, 4, 6}
	for i := range want {
		if alloc.Positions[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, alloc.Positions)
		}
	}
	if !alloc.Grew || alloc.LastPos != 6 {
		t.Fatalf("expected growth to 6, got %+v", alloc)
	}
}

func TestAllocateKeepsReservedLastPos(t *testing.T) {
	alloc := Allocate([]int{1}, 3, 2)
	want := []int{2, 4}
	for i := range want {
		if alloc.Positions[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, alloc.Positions)
		}
	}
}

func TestAllocateNoPendingIsNoOp(t *testing.T) {
	alloc := Allocate([]int{1, 2, 7}, 4, 0)
	if len(alloc.Positions) != 0 || alloc.Grew || alloc.LastPos != 7 {
		t.Fatalf("expected no-op allocation, got %+v", alloc)
	}
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

func TestComposeDrawsIntoCellWithoutTouchingSource(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	src := solid(8, 4, red)
	geo := Geometry{SheetWidth: 8, SheetHeight: 4, ImageWidth: 4, ImageHeight: 4}
	out, err := Compose(src, geo, []Placement{{Pos: 2, Image: solid(4, 4, blue)}})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if got := out.RGBAAt(1, 1); got != red {
		t.Fatalf("expected untouched first cell, got %v", got)
	}
	if got := out.RGBAAt(5, 1); got != blue {
		t.Fatalf("expected new image in second cell, got %v", got)
	}
	if got := src.RGBAAt(5, 1); got != red {
		t.Fatalf("source must not be modified, got %v", got)
	}
}

func TestComposeGrowsAndClearsGutter(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}
	geo := Geometry{SheetWidth: 9, SheetHeight: 4, ImageWidth: 4, ImageHeight: 4, Spacing: 1}
	src := solid(9, 4, red)
	out, err := Compose(src, geo, []Placement{{Pos: 3, Image: solid(4, 4, green)}})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if out.Bounds().Dy() != 9 {
		t.Fatalf("expected grown height 9, got %d", out.Bounds().Dy())
	}
	if got := out.RGBAAt(0, 5); got != green {
		t.Fatalf("expected placement at row 2, got %v", got)
	}
	if got := out.RGBAAt(0, 4); got.A != 0 {
		t.Fatalf("expected gutter above the cell to be cleared, got %v", got)
	}
	if got := out.RGBAAt(4, 6); got.A != 0 {
		t.Fatalf("expected gutter beside the cell to be cleared, got %v", got)
	}
	if got := out.RGBAAt(4, 1); got != red {
		t.Fatalf("expected untouched gutter on row 1, got %v", got)
	}
}

func TestPNGBytesRoundTrip(t *testing.T) {
	img := solid(3, 2, color.RGBA{G: 128, A: 255})
	data, err := PNGBytes(img)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bounds().Dx() != 3 || decoded.Bounds().Dy() != 2 {
		t.Fatalf("unexpected bounds %v", decoded.Bounds())
	}
}

func TestLoadScalesAsynchronously(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(10, 6, color.White)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	handle := Load("big.png", func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
	}, 4, 4)
	<-handle.Ready()
	px, err := handle.Pixels()
	if err != nil {
		t.Fatalf("pixels: %v", err)
	}
	if px.Bounds().Dx() != 4 || px.Bounds().Dy() != 4 {
		t.Fatalf("expected 4x4, got %v", px.Bounds())
	}
}

func TestSpriteName(t *testing.T) {
	cases := map[string]string{
		"/tmp/Stone Bricks.png": "Stone Bricks",
		"dirt.tar.gz":           "dirt.tar",
		".hidden":               ".hidden",
	}
	for in, want := range cases {
		if got := SpriteName(in); got != want {
			t.Fatalf("SpriteName(%q) = %q, want %q", in, got, want)
		}
	}
	if !IsImageFile("a.PNG") || IsImageFile("a.txt") {
		t.Fatalf("unexpected IsImageFile result")
	}
}
