// Package history keeps a bounded in-memory record of recent deliveries for
// the API, independent of the optional SQL audit store.
package history

import (
	"sync"
	"time"

	"camsync/internal/model"
)

type Store struct {
	mu    sync.RWMutex
	buf   []model.DeliveryRecord
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 500
	}
	return &Store{limit: limit}
}

func (s *Store) Add(rec model.DeliveryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, rec)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = rec
}

func (s *Store) List(limit int) []model.DeliveryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]model.DeliveryRecord, 0, limit)
	start := len(s.buf) - limit
	for i := start; i < len(s.buf); i++ {
		out = append(out, s.buf[i])
	}
	return out
}

func (s *Store) Since(ts time.Time) []model.DeliveryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.DeliveryRecord, 0)
	for _, rec := range s.buf {
		if !rec.Timestamp.Before(ts) {
			out = append(out, rec)
		}
	}
	return out
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
