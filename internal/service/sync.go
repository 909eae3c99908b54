package service

import (
	"sync"
	"time"
)

// SyncState holds the time of the last completed catalog sync. Only the
// sync completion path writes it.
type SyncState struct {
	mu   sync.RWMutex
	last *time.Time
}

// NewSyncState returns a state with no completed sync.
func NewSyncState() *SyncState {
	return &SyncState{}
}

// LastUpdate returns the last sync time, or nil if none has completed.
func (s *SyncState) LastUpdate() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	t := *s.last
	return &t
}

func (s *SyncState) set(t time.Time) {
	t = t.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &t
}
