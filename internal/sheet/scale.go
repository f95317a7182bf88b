package sheet

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/Majr25/SpriteEdit/internal/model"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var imageExts = map[string]bool{
	".png":  true,
	".gif":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".webp": true,
}

// IsImageFile reports whether the path has an extension Decode understands.
func IsImageFile(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// SpriteName derives a sprite name from a file name: trimmed, extension removed.
func SpriteName(path string) string {
	base := strings.TrimSpace(filepath.Base(path))
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// Decode reads any registered image format.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Scale resizes src to exactly w x h, ignoring aspect ratio. Images already
// at the target size are returned as is.
func Scale(src image.Image, w, h int) image.Image {
	b := src.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// Opener returns a reader for an image source.
type Opener func() (io.ReadCloser, error)

// Load decodes and scales an image on a separate goroutine and returns the
// handle immediately. The handle's Ready channel closes when done.
func Load(source string, open Opener, w, h int) *model.Image {
	handle := model.NewImage(source)
	go func() {
		handle.Resolve(loadScaled(open, w, h))
	}()
	return handle
}

func loadScaled(open Opener, w, h int) (image.Image, error) {
	rc, err := open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	img, err := Decode(rc)
	if err != nil {
		return nil, err
	}
	return Scale(img, w, h), nil
}
