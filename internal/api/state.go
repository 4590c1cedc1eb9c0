package api

import (
	"context"
	"sync"
	"time"

	"github.com/yegors/flight-tracker/internal/poller"
)

// State is a poller sink holding the most recent outcome for the dashboard
type State struct {
	mu        sync.RWMutex
	latest    *poller.Snapshot
	lastErr   error
	lastErrAt time.Time
}

// NewState creates an empty State
func NewState() *State {
	return &State{}
}

// OnSnapshot replaces the latest snapshot
func (s *State) OnSnapshot(_ context.Context, snap poller.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &snap
	return nil
}

// OnFailure records the failure; the previous snapshot stays available
func (s *State) OnFailure(_ context.Context, at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	s.lastErrAt = at
}

// Latest returns the most recent snapshot, if any
func (s *State) Latest() (poller.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return poller.Snapshot{}, false
	}
	return *s.latest, true
}

// LastFailure returns the most recent failure, or a nil error
func (s *State) LastFailure() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErrAt, s.lastErr
}

// Healthy reports whether a snapshot exists and no failure followed it
func (s *State) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return false
	}
	return s.lastErr == nil || s.lastErrAt.Before(s.latest.FetchedAt)
}
