package dispatcher

import (
	"time"

	"github.com/Majr25/SpriteEdit/internal/backend"
	"github.com/Majr25/SpriteEdit/internal/logging"
	"github.com/Majr25/SpriteEdit/internal/logging/events"
	"github.com/Majr25/SpriteEdit/internal/state"
	"github.com/Majr25/SpriteEdit/internal/wiki"
)

type Result struct {
	// RemoteChanged is set the first time a newer IDs revision shows up.
	RemoteChanged  bool
	BlockedChanged bool
	Err            error
}

type Dispatcher struct {
	remote state.RemoteStore
	page   string
}

func New(remote state.RemoteStore, page string) *Dispatcher {
	return &Dispatcher{remote: remote, page: page}
}

func (d *Dispatcher) Handle(evt backend.Event) Result {
	var res Result
	if evt.Err != nil {
		logging.Error(evt.Err)
		res.Err = evt.Err
		return res
	}
	switch evt.Kind {
	case backend.KindRevision:
		if ts, ok := evt.Data.(time.Time); ok && ts.After(d.remote.Latest()) {
			wasStale := d.remote.Stale()
			d.remote.SetLatest(ts)
			events.Wiki.Revision(d.page, wiki.FormatTimestamp(ts))
			res.RemoteChanged = !wasStale && d.remote.Stale()
		}
	case backend.KindUser:
		if info, ok := evt.Data.(wiki.UserInfo); ok {
			prev := d.remote.Blocked()
			next := info.CanSave()
			d.remote.SetBlocked(next)
			res.BlockedChanged = (prev == nil) != (next == nil)
		}
	}
	return res
}
