package state

import (
	"sync"
	"time"
)

// RemoteStore tracks the IDs page revision the session is based on and the
// newest revision seen on the wiki.
type RemoteStore interface {
	Base() time.Time
	SetBase(time.Time)
	Latest() time.Time
	SetLatest(time.Time)
	Stale() bool
	Blocked() error
	SetBlocked(error)
}

type remoteStore struct {
	mu      sync.Mutex
	base    time.Time
	latest  time.Time
	blocked error
}

func NewRemoteStore(base time.Time) RemoteStore {
	return &remoteStore{base: base, latest: base}
}

func (s *remoteStore) Base() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// SetBase moves the base forward after a save. The latest revision follows
// when it was older.
func (s *remoteStore) SetBase(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = t
	if s.latest.Before(t) {
		s.latest = t
	}
}

func (s *remoteStore) Latest() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *remoteStore) SetLatest(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = t
}

// Stale reports whether someone else edited the page after the base.
func (s *remoteStore) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest.After(s.base)
}

func (s *remoteStore) Blocked() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocked
}

func (s *remoteStore) SetBlocked(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked = err
}
