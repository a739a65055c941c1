package stores

import (
	"context"
	"database/sql"
	"time"
)

// RunStatus represents the terminal status of a workflow run.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// EventLevel represents the severity level of an event.
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Run is the audit row of one workflow invocation. Metrics holds the
// serialized WorkflowMetrics as a JSON blob; the engine never reads it back,
// it exists for history and debugging.
type Run struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	Transition    string    `json:"transition"`
	FromState     string    `json:"from_state"`
	ToState       string    `json:"to_state"`
	CorrelationID string    `json:"correlation_id"`
	Status        RunStatus `json:"status"`
	Error         *string   `json:"error,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	Metrics       string    `json:"metrics"` // JSON blob
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// TransitionRow persists the transition record produced by a successful run.
type TransitionRow struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Success   bool      `json:"success"`
	Type      string    `json:"type"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	Timestamp time.Time `json:"timestamp"`
	Data      string    `json:"data"` // JSON blob
}

// Event represents an append-only log event.
type Event struct {
	ID        int64      `json:"id"`
	RunID     *string    `json:"run_id,omitempty"`
	ProjectID *string    `json:"project_id,omitempty"`
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Details   *string    `json:"details,omitempty"` // JSON blob
	Timestamp time.Time  `json:"timestamp"`
}

// Store defines the interface for the persistence layer.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	CreateRunTx(ctx context.Context, tx *sql.Tx, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, projectID *string, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Transition record operations
	CreateTransition(ctx context.Context, row *TransitionRow) error
	CreateTransitionTx(ctx context.Context, tx *sql.Tx, row *TransitionRow) error
	ListTransitionsByRun(ctx context.Context, runID string) ([]*TransitionRow, error)
	ListTransitionsByProject(ctx context.Context, projectID string, limit, offset int) ([]*TransitionRow, error)

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, runID *string, projectID *string, level *EventLevel, limit, offset int) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
