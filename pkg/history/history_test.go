package history

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nettally/nettally/pkg/reconcile"
)

func testStore(t *testing.T, capacity int) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	s, err := OpenWithClock(filepath.Join(t.TempDir(), "history.json"), capacity, clock)
	if err != nil {
		t.Fatal(err)
	}
	return s, clock
}

// ============================================================================
// Retention Tests
// ============================================================================

// After N+1 appends with cap N the oldest entry is gone and length stays N.
func TestRetention(t *testing.T) {
	s, _ := testStore(t, 3)

	var ids []string
	for i := 0; i < 4; i++ {
		id, err := s.Append(Entry{Operation: fmt.Sprintf("op%d", i), Status: "success"})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	entries, total := s.List(Filter{}, 0, 0)
	if total != 3 || len(entries) != 3 {
		t.Fatalf("total = %d, entries = %d", total, len(entries))
	}
	if _, err := s.Get(ids[0]); err == nil {
		t.Error("oldest entry should be evicted")
	}
	if _, err := s.Get(ids[3]); err != nil {
		t.Error("newest entry missing")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	clock := clockwork.NewFakeClock()
	path := filepath.Join(t.TempDir(), "history.json")

	s, err := OpenWithClock(path, 10, clock)
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.Append(Entry{Operation: "sync", Status: "partial", DeviceCount: 3})
	if err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenWithClock(path, 10, clock)
	if err != nil {
		t.Fatal(err)
	}
	e, err := reopened.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if e.Operation != "sync" || e.Status != "partial" || e.DeviceCount != 3 {
		t.Errorf("entry = %+v", e)
	}
}

// ============================================================================
// Detail Trimming Tests
// ============================================================================

func TestDetailTrim(t *testing.T) {
	s, _ := testStore(t, 10)

	stats := &reconcile.Stats{Created: 8}
	for i := 0; i < 8; i++ {
		stats.Details = append(stats.Details, fmt.Sprintf("create interface sw1/Gi0/%d", i))
	}
	id, err := s.Append(Entry{Operation: "sync", Status: "success", Stats: reconcile.Result{"interfaces": stats}})
	if err != nil {
		t.Fatal(err)
	}

	e, _ := s.Get(id)
	details := e.Stats["interfaces"].Details
	if len(details) != MaxDetailsPerKind+1 {
		t.Fatalf("details = %v", details)
	}
	if details[MaxDetailsPerKind] != "+3 more" {
		t.Errorf("truncation marker = %q", details[MaxDetailsPerKind])
	}
}

func TestDetailTrimShortListsUntouched(t *testing.T) {
	s, _ := testStore(t, 10)
	stats := &reconcile.Stats{Details: []string{"create device sw1"}}
	id, _ := s.Append(Entry{Operation: "sync", Status: "success", Stats: reconcile.Result{"devices": stats}})

	e, _ := s.Get(id)
	if len(e.Stats["devices"].Details) != 1 {
		t.Errorf("details = %v", e.Stats["devices"].Details)
	}
}

// ============================================================================
// List and Stats Tests
// ============================================================================

func TestListFilterAndPaging(t *testing.T) {
	s, _ := testStore(t, 50)
	for i := 0; i < 5; i++ {
		s.Append(Entry{Operation: "sync", Status: "success"})
	}
	s.Append(Entry{Operation: "collect", Status: "error"})

	entries, total := s.List(Filter{Operation: "sync"}, 2, 1)
	if total != 5 {
		t.Errorf("total = %d", total)
	}
	if len(entries) != 2 {
		t.Errorf("page = %d entries", len(entries))
	}

	if _, total := s.List(Filter{Status: "error"}, 0, 0); total != 1 {
		t.Errorf("error total = %d", total)
	}
	if entries, total := s.List(Filter{}, 10, 99); total != 6 || entries != nil {
		t.Errorf("out-of-range offset: total = %d, entries = %v", total, entries)
	}
}

func TestStatsWindow(t *testing.T) {
	s, clock := testStore(t, 50)

	s.Append(Entry{Operation: "sync", Status: "success"})
	clock.Advance(25 * time.Hour)
	s.Append(Entry{Operation: "sync", Status: "error"})
	s.Append(Entry{Operation: "collect", Status: "success"})

	stats := s.Stats()
	if stats.Total != 3 || stats.Last24h != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ByStatus["success"] != 2 || stats.ByOperation["sync"] != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestClear(t *testing.T) {
	s, _ := testStore(t, 10)
	s.Append(Entry{Operation: "sync", Status: "success"})
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, total := s.List(Filter{}, 0, 0); total != 0 {
		t.Errorf("total = %d after clear", total)
	}
}
