// Package metrics tracks per-device sync counters for the status API.
package metrics

import (
	"sync"
	"time"
)

type DeviceStats struct {
	Sent       int       `json:"sent"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	LastSync   time.Time `json:"last_sync"`
	LastError  string    `json:"last_error,omitempty"`
	PushEvents int       `json:"push_events"`
}

type Store struct {
	mu       sync.RWMutex
	byDevice map[string]DeviceStats
}

func NewStore() *Store {
	return &Store{byDevice: make(map[string]DeviceStats)}
}

// RecordCycle accumulates the outcome of one poll cycle for a device.
func (s *Store) RecordCycle(deviceID string, sent, skipped, failed int, errMsg string) {
	if deviceID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.byDevice[deviceID]
	stats.Sent += sent
	stats.Skipped += skipped
	stats.Failed += failed
	stats.LastSync = time.Now().UTC()
	stats.LastError = errMsg
	s.byDevice[deviceID] = stats
}

// RecordPush counts a realtime delivery for a device.
func (s *Store) RecordPush(deviceID string) {
	if deviceID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.byDevice[deviceID]
	stats.PushEvents++
	stats.Sent++
	s.byDevice[deviceID] = stats
}

func (s *Store) Get(deviceID string) (DeviceStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats, ok := s.byDevice[deviceID]
	return stats, ok
}

func (s *Store) GetAll() map[string]DeviceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]DeviceStats, len(s.byDevice))
	for id, stats := range s.byDevice {
		out[id] = stats
	}
	return out
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDevice = make(map[string]DeviceStats)
}
