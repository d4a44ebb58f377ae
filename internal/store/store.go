// Package store persists the run ledger: one record per pipeline invocation
// with its state, result and failure cause.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sells-group/hubble-cli/internal/model"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	State        model.RunState  `json:"state,omitempty"`
	Target       string          `json:"target,omitempty"`
	ErrorKind    model.ErrorKind `json:"error_kind,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the run ledger.
type Store interface {
	CreateRun(ctx context.Context, query model.ObservationQuery) (*model.Run, error)
	UpdateRunState(ctx context.Context, runID string, state model.RunState) error
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	// FailRun marks the run failed. result may be nil.
	FailRun(ctx context.Context, runID string, runErr *model.RunError, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Pool is the subset of pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

const defaultListLimit = 100
