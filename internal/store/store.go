package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	StatusQueued    RunStatus = "queued"
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether a run in this status will not change again.
func (s RunStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Run is one submitted search. Params and Result are stored as opaque JSON
// so the store does not depend on the solver.
type Run struct {
	ID         string          `json:"id"`
	Status     RunStatus       `json:"status"`
	Instance   string          `json:"instance"`
	Params     json.RawMessage `json:"params,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Cost       *float64        `json:"cost,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	StartedAt  *time.Time      `json:"startedAt,omitempty"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
}

// Store is the persistence interface used by the API server.
type Store interface {
	CreateRun(ctx context.Context, instance string, params json.RawMessage) (Run, error)
	StartRun(ctx context.Context, id string) error
	FinishRun(ctx context.Context, id string, cost float64, result json.RawMessage) error
	// FailRun moves a run to StatusFailed or StatusCancelled.
	FailRun(ctx context.Context, id string, status RunStatus, msg string) error
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns pages runs in creation order. An empty status lists all.
	ListRuns(ctx context.Context, status RunStatus, cursor string, limit int) (items []Run, nextCursor string, err error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidStatus = errors.New("invalid run status transition")
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxLimit {
		return defaultLimit
	}
	return limit
}

// newRunID returns a time-ordered UUID so ids double as a paging cursor.
func newRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
