package sheet

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

// Placement is one image to write into the sheet.
type Placement struct {
	Pos   int
	Image image.Image
}

// Compose returns a new sheet raster: the original copied verbatim onto a
// canvas of the geometry's size, then each placement written into its cell.
// The cell plus a Spacing margin on every side is cleared before drawing so
// stray pixels in the gutters do not survive. src is never modified.
func Compose(src image.Image, geo Geometry, placements []Placement) (*image.RGBA, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	width, height := geo.SheetWidth, geo.SheetHeight
	for _, p := range placements {
		if need := geo.HeightFor(p.Pos); need > height {
			height = need
		}
	}
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	if src != nil {
		b := src.Bounds()
		draw.Draw(canvas, image.Rect(0, 0, b.Dx(), b.Dy()), src, b.Min, draw.Src)
	}
	dc := gg.NewContextForRGBA(canvas)
	for _, p := range placements {
		if p.Pos < 1 {
			return nil, fmt.Errorf("placement has no position")
		}
		if p.Image == nil {
			return nil, fmt.Errorf("placement at %d has no image", p.Pos)
		}
		cell := geo.Cell(p.Pos)
		padded := cell.Inset(-geo.Spacing).Intersect(canvas.Bounds())
		draw.Draw(canvas, padded, image.Transparent, image.Point{}, draw.Src)
		origin := p.Image.Bounds().Min
		dc.DrawImage(p.Image, cell.Min.X-origin.X, cell.Min.Y-origin.Y)
	}
	return canvas, nil
}

// EncodePNG writes the raster as PNG.
func EncodePNG(w io.Writer, img *image.RGBA) error {
	return gg.NewContextForRGBA(img).EncodePNG(w)
}

// PNGBytes encodes the raster as PNG into memory.
func PNGBytes(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, fmt.Errorf("encode sheet: %w", err)
	}
	return buf.Bytes(), nil
}
