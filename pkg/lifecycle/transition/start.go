package transition

import (
	"context"
	"time"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
)

const startLogRetention = 10 * time.Minute

// Start implements the START transition: bring a stopped deployment back up
// (OFFLINE -> ONLINE).
type Start struct {
	now func() time.Time
}

// NewStart creates the START transition definition.
func NewStart() *Start {
	return &Start{now: time.Now}
}

func (s *Start) Type() lifecycle.TransitionType { return lifecycle.TransitionStart }
func (s *Start) From() lifecycle.State          { return lifecycle.StateOffline }
func (s *Start) To() lifecycle.State            { return lifecycle.StateOnline }

func (s *Start) CorrelationID(projectID string) string {
	return correlationID(lifecycle.TransitionStart, projectID, s.now())
}

func (s *Start) ValidateInput(projectID string, tc *lifecycle.TransitionContext) error {
	return validateInput(projectID, tc)
}

// Validate confirms OFFLINE->ONLINE and collects missing fields. The service
// list and the cache flag are required; the port is optional.
func (s *Start) Validate(ctx context.Context, from, to lifecycle.State, tc *lifecycle.TransitionContext) (*lifecycle.ValidationResult, error) {
	if err := checkPair(lifecycle.TransitionStart, lifecycle.StateOffline, lifecycle.StateOnline, from, to, tc); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var reqs []string
	reqs = require(reqs, "projectId", tc.ProjectID != "")
	reqs = require(reqs, "projectPath", tc.ProjectPath != "")
	if tc.Start == nil {
		reqs = require(reqs, "startConfig", false)
	} else {
		reqs = require(reqs, "startConfig.services", tc.Start.Services != nil)
		reqs = require(reqs, "startConfig.warmCache", tc.Start.WarmCache != nil)
	}
	return result(reqs), nil
}

func (s *Start) Execute(ctx context.Context, projectID string, tc *lifecycle.TransitionContext) (*lifecycle.TransitionRecord, error) {
	if err := checkActorArgs(projectID, tc); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := tc.Start
	if cfg == nil {
		cfg = &lifecycle.StartConfig{}
	}

	data := map[string]any{
		"projectId":       projectID,
		"projectPath":     tc.ProjectPath,
		"startReason":     "manual",
		"warmCache":       boolDefault(cfg.WarmCache, true),
		"startedServices": append([]string(nil), cfg.Services...),
	}
	if cfg.Port != nil {
		data["port"] = *cfg.Port
	}

	return &lifecycle.TransitionRecord{
		Success:   true,
		Type:      lifecycle.TransitionStart,
		FromState: lifecycle.StateOffline,
		ToState:   lifecycle.StateOnline,
		Timestamp: s.now(),
		Data:      data,
	}, nil
}

func (s *Start) Cleanup(ctx context.Context, rec *lifecycle.TransitionRecord, projectID string) (*lifecycle.CleanupResult, error) {
	if err := checkCleanupArgs(rec, projectID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var actions []lifecycle.Action
	if rec.Success {
		actions = append(actions, lifecycle.ActionRegisterServices)
		if warm, _ := rec.Data["warmCache"].(bool); warm {
			actions = append(actions, lifecycle.ActionWarmServiceCache)
		}
	} else {
		actions = append(actions, lifecycle.ActionRollbackStart, lifecycle.ActionStopPartialServices)
	}
	if s.now().Sub(rec.Timestamp) > startLogRetention {
		actions = append(actions, lifecycle.ActionCleanupOldStartLogs)
	}
	actions = append(actions, lifecycle.ActionClearValidationCache)

	return &lifecycle.CleanupResult{Cleaned: true, Actions: actions}, nil
}
