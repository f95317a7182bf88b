package dispatcher

import (
	"errors"
	"testing"
	"time"

	"github.com/Majr25/SpriteEdit/internal/backend"
	"github.com/Majr25/SpriteEdit/internal/state"
	"github.com/Majr25/SpriteEdit/internal/wiki"
)

func TestRevisionEventsMarkStaleOnce(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	remote := state.NewRemoteStore(base)
	d := New(remote, "Module:Blocks/IDs")

	if res := d.Handle(backend.Event{Kind: backend.KindRevision, Data: base}); res.RemoteChanged {
		t.Fatalf("same revision must not be reported")
	}
	if res := d.Handle(backend.Event{Kind: backend.KindRevision, Data: base.Add(time.Minute)}); !res.RemoteChanged {
		t.Fatalf("expected newer revision to be reported")
	}
	if res := d.Handle(backend.Event{Kind: backend.KindRevision, Data: base.Add(2 * time.Minute)}); res.RemoteChanged {
		t.Fatalf("expected a single notification while stale")
	}
	if !remote.Latest().Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("expected latest to advance, got %v", remote.Latest())
	}
}

func TestUserEventsTrackBlocks(t *testing.T) {
	remote := state.NewRemoteStore(time.Time{})
	d := New(remote, "p")
	rights := []string{"edit", "upload", "reupload"}

	res := d.Handle(backend.Event{Kind: backend.KindUser, Data: wiki.UserInfo{Blocked: true, Rights: rights}})
	if !res.BlockedChanged || !errors.Is(remote.Blocked(), wiki.ErrBlocked) {
		t.Fatalf("expected block to be recorded, got %+v %v", res, remote.Blocked())
	}
	res = d.Handle(backend.Event{Kind: backend.KindUser, Data: wiki.UserInfo{Rights: rights}})
	if !res.BlockedChanged || remote.Blocked() != nil {
		t.Fatalf("expected block to clear")
	}
}

func TestErrorsPassThrough(t *testing.T) {
	d := New(state.NewRemoteStore(time.Time{}), "p")
	boom := errors.New("boom")
	if res := d.Handle(backend.Event{Kind: backend.KindRevision, Err: boom}); res.Err != boom {
		t.Fatalf("expected error to be returned, got %v", res.Err)
	}
}
