// Package task is the in-process registry of background operations. Every
// long-running call gets a handle with observable progress and a cooperative
// cancellation signal; terminal states are immutable.
package task

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/nettally/nettally/pkg/util"
)

// Status is the task lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Task is a snapshot of one background operation. Result holds whatever the
// worker produced; its shape depends on Kind.
type Task struct {
	ID              string      `json:"id"`
	Kind            string      `json:"kind"`
	Status          Status      `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	FinishedAt      *time.Time  `json:"finished_at,omitempty"`
	ProgressPercent int         `json:"progress_percent"`
	CurrentStep     int         `json:"current_step_index,omitempty"`
	TotalSteps      int         `json:"total_steps,omitempty"`
	Message         string      `json:"message,omitempty"`
	Result          interface{} `json:"result,omitempty"`
	Error           string      `json:"error,omitempty"`
}

type entry struct {
	task   Task
	cancel chan struct{}
	once   sync.Once
}

// DefaultMaxTasks bounds the in-memory registry.
const DefaultMaxTasks = 100

// Manager is the thread-safe task registry.
type Manager struct {
	mu    sync.Mutex
	tasks map[string]*entry
	max   int
	clock clockwork.Clock
}

// NewManager builds a registry with the given ceiling (0 means the default).
func NewManager(max int) *Manager {
	return NewManagerWithClock(max, clockwork.NewRealClock())
}

// NewManagerWithClock injects the clock; tests freeze time with it.
func NewManagerWithClock(max int, clock clockwork.Clock) *Manager {
	if max <= 0 {
		max = DefaultMaxTasks
	}
	return &Manager{
		tasks: make(map[string]*entry),
		max:   max,
		clock: clock,
	}
}

// Create registers a new pending task and returns its id.
func (m *Manager) Create(kind string, totalSteps int) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.tasks[id] = &entry{
		task: Task{
			ID:         id,
			Kind:       kind,
			Status:     StatusPending,
			CreatedAt:  m.clock.Now(),
			TotalSteps: totalSteps,
		},
		cancel: make(chan struct{}),
	}
	m.evictLocked()
	return id
}

// Start moves a pending task to running.
func (m *Manager) Start(id string) error {
	return m.transition(id, func(t *Task) error {
		if t.Status != StatusPending {
			return util.ErrTaskTerminal
		}
		t.Status = StatusRunning
		now := m.clock.Now()
		t.StartedAt = &now
		return nil
	})
}

// Update applies incremental progress. Negative values leave the
// corresponding field untouched.
func (m *Manager) Update(id string, progress, currentStep int, message string) error {
	return m.transition(id, func(t *Task) error {
		if t.Status.Terminal() {
			return util.ErrTaskTerminal
		}
		if progress >= 0 {
			if progress > 100 {
				progress = 100
			}
			t.ProgressPercent = progress
		}
		if currentStep >= 0 {
			t.CurrentStep = currentStep
		}
		if message != "" {
			t.Message = message
		}
		return nil
	})
}

// Complete transitions a running task to completed with its result.
// Completing an already-terminal task is a no-op.
func (m *Manager) Complete(id string, result interface{}) error {
	return m.terminal(id, StatusCompleted, func(t *Task) {
		t.Result = result
		t.ProgressPercent = 100
	})
}

// Fail transitions a running task to failed.
func (m *Manager) Fail(id string, errMsg string) error {
	return m.terminal(id, StatusFailed, func(t *Task) {
		t.Error = errMsg
	})
}

// Cancel fires the cancellation signal and, if the task is not yet terminal,
// marks it cancelled. Partial progress is retained.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	e, ok := m.tasks[id]
	m.mu.Unlock()
	if !ok {
		return util.ErrTaskNotFound
	}
	e.once.Do(func() { close(e.cancel) })
	return m.terminal(id, StatusCancelled, nil)
}

// CancelSignal returns the channel a worker polls between seams.
func (m *Manager) CancelSignal(id string) (<-chan struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tasks[id]
	if !ok {
		return nil, util.ErrTaskNotFound
	}
	return e.cancel, nil
}

// Get returns a copied snapshot of the task.
func (m *Manager) Get(id string) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tasks[id]
	if !ok {
		return Task{}, util.ErrTaskNotFound
	}
	return e.task, nil
}

// List returns snapshots of all tasks, newest first.
func (m *Manager) List() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, 0, len(m.tasks))
	for _, e := range m.tasks {
		out = append(out, e.task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *Manager) transition(id string, fn func(*Task) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tasks[id]
	if !ok {
		return util.ErrTaskNotFound
	}
	return fn(&e.task)
}

// terminal applies an idempotent terminal transition: moving a task that is
// already terminal is silently ignored.
func (m *Manager) terminal(id string, status Status, fn func(*Task)) error {
	return m.transition(id, func(t *Task) error {
		if t.Status.Terminal() {
			return nil
		}
		t.Status = status
		now := m.clock.Now()
		t.FinishedAt = &now
		if t.StartedAt == nil {
			t.StartedAt = &now
		}
		if fn != nil {
			fn(t)
		}
		return nil
	})
}

// evictLocked drops the oldest terminal tasks past the ceiling. Live tasks
// are never evicted even when the map is over budget.
func (m *Manager) evictLocked() {
	if len(m.tasks) <= m.max {
		return
	}
	var terminal []*entry
	for _, e := range m.tasks {
		if e.task.Status.Terminal() {
			terminal = append(terminal, e)
		}
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].task.CreatedAt.Before(terminal[j].task.CreatedAt)
	})
	for _, e := range terminal {
		if len(m.tasks) <= m.max {
			return
		}
		delete(m.tasks, e.task.ID)
	}
}
