package transition

import (
	"context"
	"time"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
)

const stopLogRetention = 10 * time.Minute

// defaultStopTimeout (seconds) is the drain window applied when the actor is
// handed an incomplete config despite validation.
const defaultStopTimeout = 30

// Stop implements the STOP transition: take a serving project down
// (ONLINE -> OFFLINE).
type Stop struct {
	now func() time.Time
}

// NewStop creates the STOP transition definition.
func NewStop() *Stop {
	return &Stop{now: time.Now}
}

func (s *Stop) Type() lifecycle.TransitionType { return lifecycle.TransitionStop }
func (s *Stop) From() lifecycle.State          { return lifecycle.StateOnline }
func (s *Stop) To() lifecycle.State            { return lifecycle.StateOffline }

func (s *Stop) CorrelationID(projectID string) string {
	return correlationID(lifecycle.TransitionStop, projectID, s.now())
}

func (s *Stop) ValidateInput(projectID string, tc *lifecycle.TransitionContext) error {
	return validateInput(projectID, tc)
}

// Validate confirms ONLINE->OFFLINE and collects missing fields. The three
// stop sub-fields are presence checks on pointers: graceful=false is a
// legitimate, present value and must not be reported missing.
func (s *Stop) Validate(ctx context.Context, from, to lifecycle.State, tc *lifecycle.TransitionContext) (*lifecycle.ValidationResult, error) {
	if err := checkPair(lifecycle.TransitionStop, lifecycle.StateOnline, lifecycle.StateOffline, from, to, tc); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var reqs []string
	reqs = require(reqs, "projectId", tc.ProjectID != "")
	reqs = require(reqs, "projectPath", tc.ProjectPath != "")
	if tc.Stop == nil {
		reqs = require(reqs, "stopConfig", false)
	} else {
		reqs = require(reqs, "stopConfig.graceful", tc.Stop.Graceful != nil)
		reqs = require(reqs, "stopConfig.timeout", tc.Stop.Timeout != nil)
		reqs = require(reqs, "stopConfig.drainConnections", tc.Stop.DrainConnections != nil)
	}
	return result(reqs), nil
}

func (s *Stop) Execute(ctx context.Context, projectID string, tc *lifecycle.TransitionContext) (*lifecycle.TransitionRecord, error) {
	if err := checkActorArgs(projectID, tc); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := tc.Stop
	if cfg == nil {
		cfg = &lifecycle.StopConfig{}
	}

	return &lifecycle.TransitionRecord{
		Success:   true,
		Type:      lifecycle.TransitionStop,
		FromState: lifecycle.StateOnline,
		ToState:   lifecycle.StateOffline,
		Timestamp: s.now(),
		Data: map[string]any{
			"projectId":        projectID,
			"projectPath":      tc.ProjectPath,
			"gracefulShutdown": boolDefault(cfg.Graceful, true),
			"stopReason":       strDefault(cfg.Reason, "manual"),
			"timeout":          intDefault(cfg.Timeout, defaultStopTimeout),
			"drainConnections": boolDefault(cfg.DrainConnections, true),
			"stoppedServices":  append([]string(nil), cfg.Services...),
		},
	}, nil
}

func (s *Stop) Cleanup(ctx context.Context, rec *lifecycle.TransitionRecord, projectID string) (*lifecycle.CleanupResult, error) {
	if err := checkCleanupArgs(rec, projectID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var actions []lifecycle.Action
	if rec.Success {
		actions = append(actions, lifecycle.ActionFinalizeShutdown, lifecycle.ActionReleasePorts, lifecycle.ActionArchiveServiceLogs)
	} else {
		actions = append(actions, lifecycle.ActionRollbackStop, lifecycle.ActionRestartPartialServices)
	}
	if s.now().Sub(rec.Timestamp) > stopLogRetention {
		actions = append(actions, lifecycle.ActionCleanupOldStopLogs)
	}
	actions = append(actions, lifecycle.ActionClearValidationCache)

	return &lifecycle.CleanupResult{Cleaned: true, Actions: actions}, nil
}
