package dropzone

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestZoneBatchesImageFiles(t *testing.T) {
	dir := t.TempDir()
	z, err := watch(dir, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer z.Close()

	writePNG(t, filepath.Join(dir, "Stone.png"), 4, 4)
	writePNG(t, filepath.Join(dir, "Dirt.png"), 4, 4)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644)

	seen := map[string]bool{}
	deadline := time.After(3 * time.Second)
	for len(seen) < 2 {
		select {
		case batch := <-z.Batches():
			for _, p := range batch {
				if filepath.Ext(p) != ".png" {
					t.Fatalf("unexpected file in batch %v", batch)
				}
				seen[filepath.Base(p)] = true
			}
		case err := <-z.Errors():
			t.Fatalf("watch error: %v", err)
		case <-deadline:
			t.Fatalf("expected both images, got %v", seen)
		}
	}
	if err := z.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := <-z.Batches(); ok {
		t.Fatalf("expected batches to be closed")
	}
}

func TestSpritesScalesAndNames(t *testing.T) {
	dir := t.TempDir()
	stone := filepath.Join(dir, "Stone Bricks.png")
	writePNG(t, stone, 8, 8)
	sprites := Sprites([]string{stone, filepath.Join(dir, "readme.md")}, 16, 16)
	if len(sprites) != 1 || sprites[0].Name != "Stone Bricks" {
		t.Fatalf("unexpected sprites %+v", sprites)
	}
	select {
	case <-sprites[0].Image.Ready():
	case <-time.After(2 * time.Second):
		t.Fatalf("image never loaded")
	}
	px, err := sprites[0].Image.Pixels()
	if err != nil {
		t.Fatalf("pixels: %v", err)
	}
	if px.Bounds().Dx() != 16 || px.Bounds().Dy() != 16 {
		t.Fatalf("expected 16x16, got %v", px.Bounds())
	}
}
