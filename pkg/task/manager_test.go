package task

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nettally/nettally/pkg/util"
)

// ============================================================================
// State Machine Tests
// ============================================================================

// From pending: running or cancelled. From running: completed, failed,
// cancelled. Terminal states admit no transitions.
func TestStateMachine(t *testing.T) {
	m := NewManager(0)

	id := m.Create("sync", 3)
	task, err := m.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != StatusPending {
		t.Fatalf("initial status = %q", task.Status)
	}

	if err := m.Start(id); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(id); !errors.Is(err, util.ErrTaskTerminal) {
		t.Errorf("double start = %v, want ErrTaskTerminal", err)
	}

	if err := m.Complete(id, map[string]int{"created": 2}); err != nil {
		t.Fatal(err)
	}
	task, _ = m.Get(id)
	if task.Status != StatusCompleted || task.ProgressPercent != 100 {
		t.Fatalf("task = %+v", task)
	}
	if task.FinishedAt == nil {
		t.Error("finished_at not set")
	}

	// Terminal transitions are idempotent no-ops.
	if err := m.Fail(id, "boom"); err != nil {
		t.Fatal(err)
	}
	task, _ = m.Get(id)
	if task.Status != StatusCompleted || task.Error != "" {
		t.Errorf("terminal state mutated: %+v", task)
	}
}

func TestCancelFromPending(t *testing.T) {
	m := NewManager(0)
	id := m.Create("collect", 0)

	if err := m.Cancel(id); err != nil {
		t.Fatal(err)
	}
	task, _ := m.Get(id)
	if task.Status != StatusCancelled {
		t.Fatalf("status = %q", task.Status)
	}

	// Updates after cancellation are rejected.
	if err := m.Update(id, 50, -1, ""); !errors.Is(err, util.ErrTaskTerminal) {
		t.Errorf("update after cancel = %v", err)
	}
}

func TestCancelSignalFiresOnce(t *testing.T) {
	m := NewManager(0)
	id := m.Create("pipeline", 0)
	sig, err := m.CancelSignal(id)
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-sig:
		t.Fatal("signal fired before cancel")
	default:
	}

	if err := m.Cancel(id); err != nil {
		t.Fatal(err)
	}
	// Double cancel must not panic on the closed channel.
	if err := m.Cancel(id); err != nil {
		t.Fatal(err)
	}

	select {
	case <-sig:
	case <-time.After(time.Second):
		t.Fatal("signal did not fire")
	}
}

func TestUpdateProgress(t *testing.T) {
	m := NewManager(0)
	id := m.Create("sync", 4)
	if err := m.Start(id); err != nil {
		t.Fatal(err)
	}

	if err := m.Update(id, 150, 2, "syncing interfaces"); err != nil {
		t.Fatal(err)
	}
	task, _ := m.Get(id)
	if task.ProgressPercent != 100 {
		t.Errorf("progress = %d, want clamped to 100", task.ProgressPercent)
	}
	if task.CurrentStep != 2 || task.Message != "syncing interfaces" {
		t.Errorf("task = %+v", task)
	}

	// Negative values leave fields untouched.
	if err := m.Update(id, -1, -1, ""); err != nil {
		t.Fatal(err)
	}
	task, _ = m.Get(id)
	if task.ProgressPercent != 100 || task.CurrentStep != 2 {
		t.Errorf("task = %+v", task)
	}
}

func TestGetUnknown(t *testing.T) {
	m := NewManager(0)
	if _, err := m.Get("nope"); !errors.Is(err, util.ErrTaskNotFound) {
		t.Errorf("err = %v", err)
	}
}

// ============================================================================
// Eviction Tests
// ============================================================================

func TestEvictionDropsOldestTerminal(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewManagerWithClock(2, clock)

	first := m.Create("a", 0)
	m.Start(first)
	m.Complete(first, nil)

	clock.Advance(time.Second)
	second := m.Create("b", 0)
	m.Start(second)
	m.Complete(second, nil)

	clock.Advance(time.Second)
	third := m.Create("c", 0)

	if _, err := m.Get(first); !errors.Is(err, util.ErrTaskNotFound) {
		t.Error("oldest terminal task should be evicted")
	}
	if _, err := m.Get(second); err != nil {
		t.Error("newer terminal task evicted too early")
	}
	if _, err := m.Get(third); err != nil {
		t.Error("live task missing")
	}
}

func TestEvictionSparesLiveTasks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewManagerWithClock(1, clock)

	running := m.Create("a", 0)
	m.Start(running)
	clock.Advance(time.Second)
	m.Create("b", 0)

	if _, err := m.Get(running); err != nil {
		t.Error("running task must never be evicted")
	}
	if len(m.List()) != 2 {
		t.Errorf("list = %d tasks", len(m.List()))
	}
}

func TestListNewestFirst(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewManagerWithClock(0, clock)
	m.Create("a", 0)
	clock.Advance(time.Minute)
	b := m.Create("b", 0)

	list := m.List()
	if len(list) != 2 || list[0].ID != b {
		t.Errorf("list order wrong: %+v", list)
	}
}
