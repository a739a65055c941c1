package transition

import (
	"context"
	"time"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
)

// buildLogRetention is the longest of the retention windows: build logs are
// the first place to look when a deploy misbehaves.
const buildLogRetention = 30 * time.Minute

const defaultBuildTarget = "production"

// Build implements the BUILD transition: produce build artifacts from a draft
// (DRAFT -> BUILT).
type Build struct {
	now func() time.Time
}

// NewBuild creates the BUILD transition definition.
func NewBuild() *Build {
	return &Build{now: time.Now}
}

func (b *Build) Type() lifecycle.TransitionType { return lifecycle.TransitionBuild }
func (b *Build) From() lifecycle.State          { return lifecycle.StateDraft }
func (b *Build) To() lifecycle.State            { return lifecycle.StateBuilt }

func (b *Build) CorrelationID(projectID string) string {
	return correlationID(lifecycle.TransitionBuild, projectID, b.now())
}

func (b *Build) ValidateInput(projectID string, tc *lifecycle.TransitionContext) error {
	return validateInput(projectID, tc)
}

// Validate confirms DRAFT->BUILT and collects missing fields. The build target
// is optional (it defaults); minify and sourceMaps are presence-checked.
func (b *Build) Validate(ctx context.Context, from, to lifecycle.State, tc *lifecycle.TransitionContext) (*lifecycle.ValidationResult, error) {
	if err := checkPair(lifecycle.TransitionBuild, lifecycle.StateDraft, lifecycle.StateBuilt, from, to, tc); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var reqs []string
	reqs = require(reqs, "projectId", tc.ProjectID != "")
	reqs = require(reqs, "projectPath", tc.ProjectPath != "")
	if tc.Build == nil {
		reqs = require(reqs, "buildConfig", false)
	} else {
		reqs = require(reqs, "buildConfig.minify", tc.Build.Minify != nil)
		reqs = require(reqs, "buildConfig.sourceMaps", tc.Build.SourceMaps != nil)
	}
	return result(reqs), nil
}

func (b *Build) Execute(ctx context.Context, projectID string, tc *lifecycle.TransitionContext) (*lifecycle.TransitionRecord, error) {
	if err := checkActorArgs(projectID, tc); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := tc.Build
	if cfg == nil {
		cfg = &lifecycle.BuildConfig{}
	}

	return &lifecycle.TransitionRecord{
		Success:   true,
		Type:      lifecycle.TransitionBuild,
		FromState: lifecycle.StateDraft,
		ToState:   lifecycle.StateBuilt,
		Timestamp: b.now(),
		Data: map[string]any{
			"projectId":   projectID,
			"projectPath": tc.ProjectPath,
			"target":      strDefault(cfg.Target, defaultBuildTarget),
			"optimized":   boolDefault(cfg.Minify, true),
			"sourceMaps":  boolDefault(cfg.SourceMaps, false),
		},
	}, nil
}

func (b *Build) Cleanup(ctx context.Context, rec *lifecycle.TransitionRecord, projectID string) (*lifecycle.CleanupResult, error) {
	if err := checkCleanupArgs(rec, projectID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var actions []lifecycle.Action
	if rec.Success {
		actions = append(actions, lifecycle.ActionArchiveBuildArtifacts, lifecycle.ActionUpdateBuildIndex)
	} else {
		actions = append(actions, lifecycle.ActionRollbackBuild, lifecycle.ActionCleanupPartialBuild)
	}
	if b.now().Sub(rec.Timestamp) > buildLogRetention {
		actions = append(actions, lifecycle.ActionCleanupOldBuildLogs)
	}
	actions = append(actions, lifecycle.ActionClearValidationCache)

	return &lifecycle.CleanupResult{Cleaned: true, Actions: actions}, nil
}
