package transition

import (
	"context"
	"time"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
)

// editLogRetention is longer than the other transitions: edit sessions keep
// their working logs around while the draft is reworked.
const editLogRetention = 20 * time.Minute

// defaultEditMode is applied when the caller does not pick one.
const defaultEditMode = "full"

// Edit implements the EDIT transition: reopen a built project for editing
// (BUILT -> DRAFT).
type Edit struct {
	now func() time.Time
}

// NewEdit creates the EDIT transition definition.
func NewEdit() *Edit {
	return &Edit{now: time.Now}
}

func (e *Edit) Type() lifecycle.TransitionType { return lifecycle.TransitionEdit }
func (e *Edit) From() lifecycle.State          { return lifecycle.StateBuilt }
func (e *Edit) To() lifecycle.State            { return lifecycle.StateDraft }

func (e *Edit) CorrelationID(projectID string) string {
	return correlationID(lifecycle.TransitionEdit, projectID, e.now())
}

func (e *Edit) ValidateInput(projectID string, tc *lifecycle.TransitionContext) error {
	return validateInput(projectID, tc)
}

// Validate confirms BUILT->DRAFT and collects missing fields. When the edit
// config is present, each of its fields is presence-checked individually; an
// explicit false counts as present.
func (e *Edit) Validate(ctx context.Context, from, to lifecycle.State, tc *lifecycle.TransitionContext) (*lifecycle.ValidationResult, error) {
	if err := checkPair(lifecycle.TransitionEdit, lifecycle.StateBuilt, lifecycle.StateDraft, from, to, tc); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var reqs []string
	reqs = require(reqs, "projectId", tc.ProjectID != "")
	reqs = require(reqs, "projectPath", tc.ProjectPath != "")
	if tc.Edit == nil {
		reqs = require(reqs, "editConfig", false)
	} else {
		reqs = require(reqs, "editConfig.editMode", tc.Edit.EditMode != nil)
		reqs = require(reqs, "editConfig.backupBuild", tc.Edit.BackupBuild != nil)
		reqs = require(reqs, "editConfig.preserveChanges", tc.Edit.PreserveChanges != nil)
	}
	return result(reqs), nil
}

func (e *Edit) Execute(ctx context.Context, projectID string, tc *lifecycle.TransitionContext) (*lifecycle.TransitionRecord, error) {
	if err := checkActorArgs(projectID, tc); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := tc.Edit
	if cfg == nil {
		cfg = &lifecycle.EditConfig{}
	}

	return &lifecycle.TransitionRecord{
		Success:   true,
		Type:      lifecycle.TransitionEdit,
		FromState: lifecycle.StateBuilt,
		ToState:   lifecycle.StateDraft,
		Timestamp: e.now(),
		Data: map[string]any{
			"projectId":       projectID,
			"projectPath":     tc.ProjectPath,
			"editMode":        strDefault(cfg.EditMode, defaultEditMode),
			"backupCreated":   boolDefault(cfg.BackupBuild, true),
			"preserveChanges": boolDefault(cfg.PreserveChanges, true),
		},
	}, nil
}

func (e *Edit) Cleanup(ctx context.Context, rec *lifecycle.TransitionRecord, projectID string) (*lifecycle.CleanupResult, error) {
	if err := checkCleanupArgs(rec, projectID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var actions []lifecycle.Action
	if rec.Success {
		if backup, _ := rec.Data["backupCreated"].(bool); backup {
			actions = append(actions, lifecycle.ActionArchivePreviousBuild)
		}
		actions = append(actions, lifecycle.ActionSetupEditEnvironment, lifecycle.ActionIndexEditableSources)
	} else {
		actions = append(actions, lifecycle.ActionRollbackEdit, lifecycle.ActionRestoreBuildState)
	}
	if e.now().Sub(rec.Timestamp) > editLogRetention {
		actions = append(actions, lifecycle.ActionCleanupOldEditLogs)
	}
	actions = append(actions, lifecycle.ActionClearValidationCache)

	return &lifecycle.CleanupResult{Cleaned: true, Actions: actions}, nil
}
