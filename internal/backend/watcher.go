package backend

import (
	"context"
	"sync"
	"time"

	"github.com/Majr25/SpriteEdit/internal/wiki"
)

// Kind represents the type of data emitted by the backend watcher.
type Kind int

const (
	KindRevision Kind = iota
	KindUser
)

// Event conveys updated data or an error from a backend poll. Revision
// events carry a time.Time, user events a wiki.UserInfo.
type Event struct {
	Kind Kind
	Data interface{}
	Err  error
}

// Remote is the subset of the wiki client the watcher polls.
type Remote interface {
	Revision(ctx context.Context, pageID int, withContent bool) (wiki.Revision, error)
	UserInfo(ctx context.Context) (wiki.UserInfo, error)
}

// Watcher polls the wiki at a fixed interval and publishes events.
type Watcher struct {
	remote   Remote
	pageID   int
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	events chan Event
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher that polls the IDs page revision and the
// user's block status every interval.
func NewWatcher(remote Remote, pageID int, interval time.Duration) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		remote:   remote,
		pageID:   pageID,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan Event, 16),
	}

	w.startRevisionPoller()
	w.startUserPoller()

	go func() {
		w.wg.Wait()
		close(w.events)
	}()

	return w
}

// Events returns a channel of backend events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop cancels the watcher. In-flight requests are aborted.
func (w *Watcher) Stop() {
	w.cancel()
}

// Wait blocks until all poller goroutines have exited and the events channel
// is closed. Call after Stop when a clean shutdown is required.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

func (w *Watcher) startRevisionPoller() {
	throttle := newThrottle(5 * time.Second)
	w.wg.Add(1)
	go w.poll(KindRevision, func(ctx context.Context) (interface{}, error) {
		if err := throttle.wait(ctx); err != nil {
			return nil, err
		}
		rev, err := w.remote.Revision(ctx, w.pageID, false)
		if err != nil {
			return nil, err
		}
		return rev.Timestamp, nil
	})
}

func (w *Watcher) startUserPoller() {
	throttle := newThrottle(30 * time.Second)
	w.wg.Add(1)
	go w.poll(KindUser, func(ctx context.Context) (interface{}, error) {
		if err := throttle.wait(ctx); err != nil {
			return nil, err
		}
		return w.remote.UserInfo(ctx)
	})
}

func (w *Watcher) poll(kind Kind, fetch func(context.Context) (interface{}, error)) {
	defer w.wg.Done()

	emit := func() bool {
		data, err := fetch(w.ctx)
		if wiki.IsAbort(err) {
			return false
		}
		evt := Event{Kind: kind, Data: data, Err: err}
		select {
		case <-w.ctx.Done():
			return false
		case w.events <- evt:
			return true
		}
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if !emit() {
				return
			}
		}
	}
}
