package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openlaunch/openlaunch/pkg/lifecycle/workflow"
)

// Journal adapts a Store to the workflow engine's Recorder interface. Each
// finished run becomes one row in runs; a successful run additionally persists
// its transition record.
type Journal struct {
	store Store
}

// NewJournal wraps a store for run persistence.
func NewJournal(store Store) *Journal {
	return &Journal{store: store}
}

// RecordRun persists one finished workflow run.
func (j *Journal) RecordRun(ctx context.Context, res *workflow.Result, runErr error) error {
	if res == nil {
		return fmt.Errorf("nil workflow result")
	}

	now := time.Now()
	run := &Run{
		ID:            uuid.New().String(),
		ProjectID:     res.ProjectID,
		Transition:    string(res.Transition),
		FromState:     string(res.FromState),
		ToState:       string(res.FinalState),
		CorrelationID: res.CorrelationID,
		Status:        RunStatusSucceeded,
		CompletedAt:   now,
		CreatedAt:     now,
		Metrics:       "{}",
		StartedAt:     now,
	}

	if res.Metrics != nil {
		run.StartedAt = res.Metrics.StartTime
		run.DurationMs = res.Metrics.Duration.Milliseconds()
		if blob, err := json.Marshal(res.Metrics); err == nil {
			run.Metrics = string(blob)
		}
	}

	if runErr != nil {
		run.Status = RunStatusFailed
		msg := runErr.Error()
		run.Error = &msg
	}

	// The run row and its transition record commit together or not at all.
	tx, err := j.store.BeginTx(ctx)
	if err != nil {
		return err
	}

	if err := j.store.CreateRunTx(ctx, tx, run); err != nil {
		_ = j.store.RollbackTx(tx)
		return err
	}

	if runErr == nil && res.Record != nil {
		data := "{}"
		if blob, err := json.Marshal(res.Record.Data); err == nil {
			data = string(blob)
		}
		row := &TransitionRow{
			ID:        uuid.New().String(),
			RunID:     run.ID,
			Success:   res.Record.Success,
			Type:      string(res.Record.Type),
			FromState: string(res.Record.FromState),
			ToState:   string(res.Record.ToState),
			Timestamp: res.Record.Timestamp,
			Data:      data,
		}
		if err := j.store.CreateTransitionTx(ctx, tx, row); err != nil {
			_ = j.store.RollbackTx(tx)
			return err
		}
	}

	return j.store.CommitTx(tx)
}
