// Package ledger tracks event identities that have already been delivered.
//
// The ledger is the single source of truth for "already sent". It is shared
// between the periodic sync cycle and the realtime push handler, so every
// read-check-mark sequence runs under one mutex. Persistence is a single
// JSON document on disk mapping identity -> first-seen timestamp; saves
// merge with whatever is on disk rather than overwriting it, and entries
// older than the retention window are pruned on both load and save.
package ledger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const DefaultRetention = 7 * 24 * time.Hour

type Ledger struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	path      string
	retention time.Duration
	logger    *slog.Logger

	// saveMu serializes whole read-merge-write sequences against the backing
	// file. Kept separate from mu so Contains/Mark never wait on file I/O.
	saveMu sync.Mutex
}

func New(path string, retention time.Duration, logger *slog.Logger) *Ledger {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Ledger{
		entries:   make(map[string]time.Time),
		path:      path,
		retention: retention,
		logger:    logger,
	}
}

// Load reads the on-disk document, prunes expired entries and installs the
// survivors as the in-memory set. I/O and decode errors degrade to an empty
// ledger: duplicate delivery is preferred over refusing to start.
func (l *Ledger) Load() int {
	disk, err := l.readFile()
	if err != nil {
		if !os.IsNotExist(err) && l.logger != nil {
			l.logger.Warn("could not load ledger, starting fresh", "path", l.path, "err", err)
		}
		disk = make(map[string]time.Time)
	}
	cutoff := time.Now().UTC().Add(-l.retention)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]time.Time, len(disk))
	for id, seen := range disk {
		if seen.After(cutoff) {
			l.entries[id] = seen
		}
	}
	return len(l.entries)
}

func (l *Ledger) Contains(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[id]
	return ok
}

// Mark records id as delivered with the current timestamp.
func (l *Ledger) Mark(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[id]; !ok {
		l.entries[id] = time.Now().UTC()
	}
}

// CheckAndMark atomically tests and records id. It returns true when the id
// was new. The push path calls this before downloading so a second push for
// the same event, arriving during the debounce, observes the mark.
func (l *Ledger) CheckAndMark(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[id]; ok {
		return false
	}
	l.entries[id] = time.Now().UTC()
	return true
}

// Forget rolls back a mark made ahead of a delivery that then failed, so a
// later poll cycle can retry the event.
func (l *Ledger) Forget(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, id)
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Persist merges the in-memory set with the on-disk document, prunes expired
// entries and writes the result atomically. The poll cycle and every push
// delivery call this concurrently; saveMu keeps one call's merge from
// clobbering another's write. Errors are logged and swallowed: availability
// is preferred over perfect durability.
func (l *Ledger) Persist() {
	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	l.mu.Lock()
	snapshot := make(map[string]time.Time, len(l.entries))
	for id, seen := range l.entries {
		snapshot[id] = seen
	}
	l.mu.Unlock()

	merged, err := l.readFile()
	if err != nil {
		merged = make(map[string]time.Time)
	}
	for id, seen := range snapshot {
		if existing, ok := merged[id]; !ok || seen.Before(existing) {
			merged[id] = seen
		}
	}
	cutoff := time.Now().UTC().Add(-l.retention)
	for id, seen := range merged {
		if !seen.After(cutoff) {
			delete(merged, id)
		}
	}
	if err := l.writeFile(merged); err != nil {
		if l.logger != nil {
			l.logger.Error("could not save ledger", "path", l.path, "err", err)
		}
	}
}

func (l *Ledger) readFile() (map[string]time.Time, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(raw))
	for id, ts := range raw {
		seen, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			// Malformed entries are dropped rather than failing the load.
			continue
		}
		out[id] = seen.UTC()
	}
	return out, nil
}

func (l *Ledger) writeFile(entries map[string]time.Time) error {
	raw := make(map[string]string, len(entries))
	for id, seen := range entries {
		raw[id] = seen.UTC().Format(time.RFC3339Nano)
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, l.path)
}
