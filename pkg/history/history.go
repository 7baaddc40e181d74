// Package history persists a bounded audit trail of sync and pipeline runs
// as a single JSON document. Appends rewrite the file under a lock; reads
// return copied snapshots.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/nettally/nettally/pkg/diff"
	"github.com/nettally/nettally/pkg/reconcile"
	"github.com/nettally/nettally/pkg/util"
)

const (
	// DefaultCap bounds the ring buffer.
	DefaultCap = 1000
	// MaxDetailsPerKind is the per-kind detail budget; anything beyond it
	// collapses into a "+N more" marker. Enforced only on append, so it is
	// applied in exactly one place.
	MaxDetailsPerKind = 5
)

// Entry is one recorded operation.
type Entry struct {
	ID          string           `json:"id"`
	Timestamp   time.Time        `json:"timestamp"`
	Operation   string           `json:"operation_tag"`
	Status      string           `json:"status"` // success, partial, error
	DeviceCount int              `json:"device_count"`
	DurationMS  int64            `json:"duration_ms"`
	Devices     []string         `json:"devices,omitempty"`
	Stats       reconcile.Result `json:"stats,omitempty"`
	Diff        []diff.Item      `json:"diff,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Filter narrows List output.
type Filter struct {
	Operation string
	Status    string
}

// Stats is the aggregate view the HTTP surface exposes.
type Stats struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"by_status"`
	ByOperation map[string]int `json:"by_operation"`
	Last24h     int            `json:"last_24h"`
}

type document struct {
	Entries []Entry `json:"entries"`
}

// Store is the file-backed ring buffer.
type Store struct {
	mu      sync.Mutex
	path    string
	cap     int
	clock   clockwork.Clock
	entries []Entry
}

// Open loads (or initializes) the history file. A missing file is an empty
// history; a corrupt file is an error so data loss is never silent.
func Open(path string, capacity int) (*Store, error) {
	return OpenWithClock(path, capacity, clockwork.NewRealClock())
}

// OpenWithClock injects the clock for tests.
func OpenWithClock(path string, capacity int, clock clockwork.Clock) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	s := &Store{path: path, cap: capacity, clock: clock}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	s.entries = doc.Entries
	if len(s.entries) > capacity {
		s.entries = s.entries[len(s.entries)-capacity:]
	}
	return s, nil
}

// Append records an entry, trims its detail lists, evicts past the cap, and
// rewrites the file. The entry gets an id and timestamp here.
func (s *Store) Append(e Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = uuid.NewString()
	e.Timestamp = s.clock.Now()
	trimDetails(e.Stats)

	s.entries = append(s.entries, e)
	if len(s.entries) > s.cap {
		s.entries = s.entries[len(s.entries)-s.cap:]
	}
	if err := s.writeLocked(); err != nil {
		return "", err
	}
	return e.ID, nil
}

func trimDetails(stats reconcile.Result) {
	for _, kind := range stats {
		if kind == nil || len(kind.Details) <= MaxDetailsPerKind {
			continue
		}
		extra := len(kind.Details) - MaxDetailsPerKind
		kind.Details = append(kind.Details[:MaxDetailsPerKind:MaxDetailsPerKind],
			fmt.Sprintf("+%d more", extra))
	}
}

func (s *Store) writeLocked() error {
	data, err := json.MarshalIndent(document{Entries: s.entries}, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// List returns a page of entries, newest first, plus the filtered total.
func (s *Store) List(f Filter, limit, offset int) ([]Entry, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if f.Operation != "" && e.Operation != f.Operation {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		matched = append(matched, e)
	}

	total := len(matched)
	if offset >= total {
		return nil, total
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total
}

// Get returns one entry by id.
func (s *Store) Get(id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, util.ErrNotFound
}

// Stats aggregates counters by status and operation plus a 24-hour window.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		Total:       len(s.entries),
		ByStatus:    make(map[string]int),
		ByOperation: make(map[string]int),
	}
	dayAgo := s.clock.Now().Add(-24 * time.Hour)
	for _, e := range s.entries {
		stats.ByStatus[e.Status]++
		stats.ByOperation[e.Operation]++
		if e.Timestamp.After(dayAgo) {
			stats.Last24h++
		}
	}
	return stats
}

// Clear drops all entries and rewrites the file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return s.writeLocked()
}
