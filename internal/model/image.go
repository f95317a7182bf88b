package model

import (
	"errors"
	"image"
	"sync"
)

// ErrImageReleased is returned when pixels are requested from a released handle.
var ErrImageReleased = errors.New("image released")

// Image is a handle to pending sprite pixels. Pixels arrive asynchronously
// (decoding and scaling run off the edit path) and Ready is closed once they
// are available or failed.
type Image struct {
	Source string

	ready    chan struct{}
	once     sync.Once
	mu       sync.Mutex
	pixels   image.Image
	err      error
	released bool
}

// NewImage returns an unresolved handle for the given source.
func NewImage(source string) *Image {
	return &Image{Source: source, ready: make(chan struct{})}
}

// LoadedImage returns a handle that is already resolved with pixels.
func LoadedImage(source string, pixels image.Image) *Image {
	img := NewImage(source)
	img.Resolve(pixels, nil)
	return img
}

// Resolve stores the outcome of loading. Only the first call has an effect.
func (i *Image) Resolve(pixels image.Image, err error) {
	i.once.Do(func() {
		i.mu.Lock()
		i.pixels = pixels
		i.err = err
		i.mu.Unlock()
		close(i.ready)
	})
}

// Ready is closed once Resolve has been called.
func (i *Image) Ready() <-chan struct{} { return i.ready }

// Pixels returns the decoded image, or an error when loading failed, the
// handle was released or loading has not finished.
func (i *Image) Pixels() (image.Image, error) {
	select {
	case <-i.ready:
	default:
		return nil, errors.New("image not ready")
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.released {
		return nil, ErrImageReleased
	}
	if i.err != nil {
		return nil, i.err
	}
	return i.pixels, nil
}

// Release drops the pixel data. Released handles can no longer be drawn.
func (i *Image) Release() {
	i.mu.Lock()
	i.released = true
	i.pixels = nil
	i.mu.Unlock()
}

// Released reports whether Release has been called.
func (i *Image) Released() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.released
}
