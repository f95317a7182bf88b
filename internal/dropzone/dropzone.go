// Package dropzone watches a directory and hands new image files to the
// editor as sprites.
package dropzone

import (
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Majr25/SpriteEdit/internal/editor"
	"github.com/Majr25/SpriteEdit/internal/sheet"
)

const defaultQuiet = 250 * time.Millisecond

// Zone reports batches of image files written to a directory. Files are
// held back until the directory has been quiet for a moment so that a
// multi-file copy arrives as one batch.
type Zone struct {
	watcher *fsnotify.Watcher
	quiet   time.Duration
	batches chan []string
	errors  chan error
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Watch starts watching dir.
func Watch(dir string) (*Zone, error) {
	return watch(dir, defaultQuiet)
}

func watch(dir string, quiet time.Duration) (*Zone, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	z := &Zone{
		watcher: w,
		quiet:   quiet,
		batches: make(chan []string, 4),
		errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go z.run()
	return z, nil
}

// Batches delivers sorted, de-duplicated file paths. It is closed by Close.
func (z *Zone) Batches() <-chan []string { return z.batches }

// Errors delivers watcher errors. Errors are dropped while one is pending.
func (z *Zone) Errors() <-chan error { return z.errors }

func (z *Zone) Close() error {
	var err error
	z.once.Do(func() {
		close(z.closeCh)
		err = z.watcher.Close()
		<-z.done
	})
	return err
}

func (z *Zone) run() {
	defer close(z.done)
	defer close(z.batches)

	pending := make(map[string]bool)
	timer := time.NewTimer(z.quiet)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-z.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !sheet.IsImageFile(event.Name) {
				continue
			}
			pending[event.Name] = true
			timer.Reset(z.quiet)
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			pending = make(map[string]bool)
			select {
			case z.batches <- batch:
			case <-z.closeCh:
				return
			}
		case err, ok := <-z.watcher.Errors:
			if !ok {
				return
			}
			select {
			case z.errors <- err:
			default:
			}
		case <-z.closeCh:
			return
		}
	}
}

// Sprites turns image paths into sprites named after their files. Images
// are decoded and scaled to w x h in the background; non-image paths are
// skipped.
func Sprites(paths []string, w, h int) []editor.Sprite {
	out := make([]editor.Sprite, 0, len(paths))
	for _, p := range paths {
		if !sheet.IsImageFile(p) {
			continue
		}
		path := p
		img := sheet.Load(path, func() (io.ReadCloser, error) { return os.Open(path) }, w, h)
		out = append(out, editor.Sprite{Name: sheet.SpriteName(path), Image: img})
	}
	return out
}
