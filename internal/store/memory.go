package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Memory is a simple in-memory store used when no database DSN is set.
type Memory struct {
	mu    sync.Mutex
	runs  map[string]*Run
	order []string // ids in creation order
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{runs: map[string]*Run{}, now: time.Now}
}

func (m *Memory) CreateRun(ctx context.Context, instance string, params json.RawMessage) (Run, error) {
	id, err := newRunID()
	if err != nil {
		return Run{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &Run{
		ID:        id,
		Status:    StatusQueued,
		Instance:  instance,
		Params:    slices.Clone(params),
		CreatedAt: m.now().UTC(),
	}
	m.runs[id] = r
	m.order = append(m.order, id)
	return copyRun(r), nil
}

func (m *Memory) StartRun(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != StatusQueued {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, r.Status, StatusRunning)
	}
	now := m.now().UTC()
	r.Status, r.StartedAt = StatusRunning, &now
	return nil
}

func (m *Memory) FinishRun(ctx context.Context, id string, cost float64, result json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, r.Status, StatusSucceeded)
	}
	now := m.now().UTC()
	r.Status, r.FinishedAt = StatusSucceeded, &now
	r.Cost, r.Result = &cost, slices.Clone(result)
	return nil
}

func (m *Memory) FailRun(ctx context.Context, id string, status RunStatus, msg string) error {
	if status != StatusFailed && status != StatusCancelled {
		return fmt.Errorf("%w: cannot fail into %s", ErrInvalidStatus, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, r.Status, status)
	}
	now := m.now().UTC()
	r.Status, r.FinishedAt, r.Error = status, &now, msg
	return nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return copyRun(r), nil
}

func (m *Memory) ListRuns(ctx context.Context, status RunStatus, cursor string, limit int) ([]Run, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit)
	start := 0
	if cursor != "" {
		if i := slices.Index(m.order, cursor); i >= 0 {
			start = i + 1
		}
	}
	out := []Run{}
	for _, id := range m.order[start:] {
		r := m.runs[id]
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, copyRun(r))
		if len(out) == limit {
			break
		}
	}
	var next string
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func copyRun(r *Run) Run {
	c := *r
	c.Params = slices.Clone(r.Params)
	c.Result = slices.Clone(r.Result)
	return c
}
