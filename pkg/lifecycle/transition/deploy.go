package transition

import (
	"context"
	"time"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
)

const deployLogRetention = 15 * time.Minute

const defaultDeployEnvironment = "production"

// Deploy implements the DEPLOY transition: publish a build (BUILT -> ONLINE).
type Deploy struct {
	now func() time.Time
}

// NewDeploy creates the DEPLOY transition definition.
func NewDeploy() *Deploy {
	return &Deploy{now: time.Now}
}

func (d *Deploy) Type() lifecycle.TransitionType { return lifecycle.TransitionDeploy }
func (d *Deploy) From() lifecycle.State          { return lifecycle.StateBuilt }
func (d *Deploy) To() lifecycle.State            { return lifecycle.StateOnline }

func (d *Deploy) CorrelationID(projectID string) string {
	return correlationID(lifecycle.TransitionDeploy, projectID, d.now())
}

func (d *Deploy) ValidateInput(projectID string, tc *lifecycle.TransitionContext) error {
	return validateInput(projectID, tc)
}

// Validate confirms BUILT->ONLINE and collects missing fields. DEPLOY is the
// one transition that also requires a deployment id.
func (d *Deploy) Validate(ctx context.Context, from, to lifecycle.State, tc *lifecycle.TransitionContext) (*lifecycle.ValidationResult, error) {
	if err := checkPair(lifecycle.TransitionDeploy, lifecycle.StateBuilt, lifecycle.StateOnline, from, to, tc); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var reqs []string
	reqs = require(reqs, "projectId", tc.ProjectID != "")
	reqs = require(reqs, "projectPath", tc.ProjectPath != "")
	reqs = require(reqs, "deploymentId", tc.DeploymentID != "")
	if tc.Deploy == nil {
		reqs = require(reqs, "deployConfig", false)
	} else {
		reqs = require(reqs, "deployConfig.healthCheck", tc.Deploy.HealthCheck != nil)
		reqs = require(reqs, "deployConfig.rollbackOnFail", tc.Deploy.RollbackOnFail != nil)
	}
	return result(reqs), nil
}

func (d *Deploy) Execute(ctx context.Context, projectID string, tc *lifecycle.TransitionContext) (*lifecycle.TransitionRecord, error) {
	if err := checkActorArgs(projectID, tc); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := tc.Deploy
	if cfg == nil {
		cfg = &lifecycle.DeployConfig{}
	}

	return &lifecycle.TransitionRecord{
		Success:   true,
		Type:      lifecycle.TransitionDeploy,
		FromState: lifecycle.StateBuilt,
		ToState:   lifecycle.StateOnline,
		Timestamp: d.now(),
		Data: map[string]any{
			"projectId":      projectID,
			"projectPath":    tc.ProjectPath,
			"deploymentId":   tc.DeploymentID,
			"environment":    strDefault(cfg.Environment, defaultDeployEnvironment),
			"healthChecked":  boolDefault(cfg.HealthCheck, true),
			"rollbackOnFail": boolDefault(cfg.RollbackOnFail, true),
		},
	}, nil
}

func (d *Deploy) Cleanup(ctx context.Context, rec *lifecycle.TransitionRecord, projectID string) (*lifecycle.CleanupResult, error) {
	if err := checkCleanupArgs(rec, projectID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var actions []lifecycle.Action
	if rec.Success {
		actions = append(actions, lifecycle.ActionFinalizeDeployment, lifecycle.ActionRegisterDeployment)
	} else {
		actions = append(actions, lifecycle.ActionRollbackDeployment, lifecycle.ActionCleanupPartialDeployment)
	}
	if d.now().Sub(rec.Timestamp) > deployLogRetention {
		actions = append(actions, lifecycle.ActionCleanupOldDeployLogs)
	}
	actions = append(actions, lifecycle.ActionClearValidationCache)

	return &lifecycle.CleanupResult{Cleaned: true, Actions: actions}, nil
}
