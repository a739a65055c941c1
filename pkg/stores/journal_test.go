package stores

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
	"github.com/openlaunch/openlaunch/pkg/lifecycle/workflow"
	"github.com/openlaunch/openlaunch/pkg/telemetry"
)

// TestJournalRecordsSuccessfulRun tests that a successful run persists both
// the run row and its transition record
func TestJournalRecordsSuccessfulRun(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	journal := NewJournal(store)

	res := &workflow.Result{
		ProjectID:     "projet-alpha",
		Transition:    lifecycle.TransitionSave,
		FromState:     lifecycle.StateDraft,
		FinalState:    lifecycle.StateDraft,
		CorrelationID: "save-projet-alpha-1",
		Record: &lifecycle.TransitionRecord{
			Success:   true,
			Type:      lifecycle.TransitionSave,
			FromState: lifecycle.StateDraft,
			ToState:   lifecycle.StateDraft,
			Timestamp: time.Now(),
			Data:      map[string]any{"projectId": "projet-alpha"},
		},
		Metrics: &lifecycle.WorkflowMetrics{
			StartTime:     time.Now().Add(-time.Second),
			Duration:      time.Second,
			Success:       true,
			CorrelationID: "save-projet-alpha-1",
		},
	}

	if err := journal.RecordRun(ctx, res, nil); err != nil {
		t.Fatalf("failed to record run: %v", err)
	}

	runs, err := store.ListRuns(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Status != RunStatusSucceeded {
		t.Errorf("expected succeeded status, got %s", runs[0].Status)
	}
	if runs[0].DurationMs != 1000 {
		t.Errorf("expected 1000ms duration, got %d", runs[0].DurationMs)
	}

	records, err := store.ListTransitionsByRun(ctx, runs[0].ID)
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 transition record, got %d", len(records))
	}
	if records[0].Type != string(lifecycle.TransitionSave) {
		t.Errorf("unexpected transition type %s", records[0].Type)
	}
}

// failingTransitionStore wraps a real store but refuses transition writes.
type failingTransitionStore struct {
	Store
}

func (f *failingTransitionStore) CreateTransitionTx(ctx context.Context, tx *sql.Tx, row *TransitionRow) error {
	return errors.New("disque plein")
}

// TestJournalRollsBackOnTransitionFailure tests that a run row does not
// survive when its transition record cannot be written
func TestJournalRollsBackOnTransitionFailure(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	journal := NewJournal(&failingTransitionStore{Store: store})

	res := &workflow.Result{
		ProjectID:     "projet-alpha",
		Transition:    lifecycle.TransitionSave,
		FromState:     lifecycle.StateDraft,
		FinalState:    lifecycle.StateDraft,
		CorrelationID: "save-projet-alpha-1",
		Record: &lifecycle.TransitionRecord{
			Success:   true,
			Type:      lifecycle.TransitionSave,
			FromState: lifecycle.StateDraft,
			ToState:   lifecycle.StateDraft,
			Timestamp: time.Now(),
		},
	}

	err := journal.RecordRun(ctx, res, nil)
	if err == nil || !strings.Contains(err.Error(), "disque plein") {
		t.Fatalf("expected the transition write failure, got: %v", err)
	}

	runs, err := store.ListRuns(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected the run row to roll back, got %d runs", len(runs))
	}
}

// TestJournalRecordsFailedRun tests that a failed run persists the error and
// no transition record
func TestJournalRecordsFailedRun(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	journal := NewJournal(store)

	res := &workflow.Result{
		ProjectID:     "projet-beta",
		Transition:    lifecycle.TransitionStop,
		FromState:     lifecycle.StateOnline,
		CorrelationID: "stop-projet-beta-1",
		Metrics: &lifecycle.WorkflowMetrics{
			StartTime: time.Now(),
		},
	}

	runErr := errors.New("Projet n'est pas en état ONLINE")
	if err := journal.RecordRun(ctx, res, runErr); err != nil {
		t.Fatalf("failed to record run: %v", err)
	}

	runs, err := store.ListRuns(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Status != RunStatusFailed {
		t.Errorf("expected failed status, got %s", runs[0].Status)
	}
	if runs[0].Error == nil || *runs[0].Error != runErr.Error() {
		t.Error("expected run error to be persisted")
	}

	records, err := store.ListTransitionsByRun(ctx, runs[0].ID)
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no transition records for failed run, got %d", len(records))
	}
}

// TestJournalEventSink tests that published telemetry events are persisted
// into the events table
func TestJournalEventSink(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	journal := NewJournal(store)

	publisher, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}
	journal.SubscribeEvents(ctx, publisher)

	if err := publisher.PublishWorkflowEvent(
		telemetry.EventTypeWorkflowError, "save", "projet-alpha", "save-projet-alpha-1",
		"Workflow failed", map[string]interface{}{"kind": "state-mismatch"},
	); err != nil {
		t.Fatalf("failed to publish event: %v", err)
	}

	projectID := "projet-alpha"
	events, err := store.GetEvents(ctx, nil, &projectID, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Level != EventLevelError {
		t.Errorf("expected error level, got %s", events[0].Level)
	}
	if events[0].Message != "Workflow failed" {
		t.Errorf("unexpected message: %q", events[0].Message)
	}
	if events[0].Details == nil || !strings.Contains(*events[0].Details, "state-mismatch") {
		t.Error("expected event details to carry the failure kind")
	}
}

func TestJournalEventSinkSurvivesCancelledContext(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	journal := NewJournal(store)
	publisher, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	journal.SubscribeEvents(ctx, publisher)

	// Events delivered after the command context is gone, as during the
	// publisher's shutdown drain, must still land in the table.
	cancel()
	if err := publisher.PublishWorkflowEvent(
		telemetry.EventTypeWorkflowSuccess, "save", "projet-beta", "save-projet-beta-1",
		"Workflow succeeded", nil,
	); err != nil {
		t.Fatalf("failed to publish event: %v", err)
	}

	projectID := "projet-beta"
	events, err := store.GetEvents(context.Background(), nil, &projectID, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Message != "Workflow succeeded" {
		t.Errorf("unexpected message: %q", events[0].Message)
	}
}
