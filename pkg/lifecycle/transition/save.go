package transition

import (
	"context"
	"time"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
)

// saveLogRetention is the record age beyond which cleanup schedules a sweep of
// old save logs.
const saveLogRetention = 10 * time.Minute

// Save implements the SAVE transition: persist draft content in place.
// SAVE is the only self-transition; the project stays in DRAFT.
type Save struct {
	now func() time.Time
}

// NewSave creates the SAVE transition definition.
func NewSave() *Save {
	return &Save{now: time.Now}
}

func (s *Save) Type() lifecycle.TransitionType { return lifecycle.TransitionSave }
func (s *Save) From() lifecycle.State          { return lifecycle.StateDraft }
func (s *Save) To() lifecycle.State            { return lifecycle.StateDraft }

func (s *Save) CorrelationID(projectID string) string {
	return correlationID(lifecycle.TransitionSave, projectID, s.now())
}

func (s *Save) ValidateInput(projectID string, tc *lifecycle.TransitionContext) error {
	return validateInput(projectID, tc)
}

// Validate confirms DRAFT->DRAFT and collects missing fields. SAVE requires
// the project id, the project path, and a save payload.
func (s *Save) Validate(ctx context.Context, from, to lifecycle.State, tc *lifecycle.TransitionContext) (*lifecycle.ValidationResult, error) {
	if err := checkPair(lifecycle.TransitionSave, lifecycle.StateDraft, lifecycle.StateDraft, from, to, tc); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var reqs []string
	reqs = require(reqs, "projectId", tc.ProjectID != "")
	reqs = require(reqs, "projectPath", tc.ProjectPath != "")
	reqs = require(reqs, "saveData", tc.Save != nil)
	return result(reqs), nil
}

func (s *Save) Execute(ctx context.Context, projectID string, tc *lifecycle.TransitionContext) (*lifecycle.TransitionRecord, error) {
	if err := checkActorArgs(projectID, tc); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &lifecycle.TransitionRecord{
		Success:   true,
		Type:      lifecycle.TransitionSave,
		FromState: lifecycle.StateDraft,
		ToState:   lifecycle.StateDraft,
		Timestamp: s.now(),
		Data: map[string]any{
			"projectId":   projectID,
			"projectPath": tc.ProjectPath,
			"saveData":    tc.Save,
		},
	}, nil
}

func (s *Save) Cleanup(ctx context.Context, rec *lifecycle.TransitionRecord, projectID string) (*lifecycle.CleanupResult, error) {
	if err := checkCleanupArgs(rec, projectID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var actions []lifecycle.Action
	if rec.Success {
		actions = append(actions, lifecycle.ActionFinalizeSave, lifecycle.ActionUpdateSaveIndex)
	} else {
		actions = append(actions, lifecycle.ActionRollbackSave, lifecycle.ActionCleanupPartialSave)
	}
	if s.now().Sub(rec.Timestamp) > saveLogRetention {
		actions = append(actions, lifecycle.ActionCleanupOldSaveLogs)
	}
	actions = append(actions, lifecycle.ActionClearValidationCache)

	return &lifecycle.CleanupResult{Cleaned: true, Actions: actions}, nil
}
