// Package recovery classifies terminal workflow failures into recovery
// strategies. Classification is observational: the workflow engine logs the
// result and re-throws the original error, so a strategy never suppresses a
// failure. The classifier itself never returns an error; anything that goes
// wrong during classification is reported as the recovery-failed strategy.
package recovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
	"github.com/openlaunch/openlaunch/pkg/lifecycle/detect"
	"github.com/openlaunch/openlaunch/pkg/telemetry"
)

// Recovery strategies. Each maps one-to-one to a lifecycle.FailureKind,
// except unknown-error which absorbs timeouts and internal failures, and
// recovery-failed which reports a panic inside the classifier itself.
const (
	StrategyStateConflict     = "state-conflict"
	StrategyValidationFailure = "validation-failure"
	StrategyProjectMissing    = "project-missing"
	StrategyFilesystemFailure = "filesystem-failure"
	StrategyTransitionFailure = "transition-failure"
	StrategyStateVerification = "state-verification-failure"
	StrategyUnknown           = "unknown-error"
	StrategyRecoveryFailed    = "recovery-failed"
)

// defaultRetryCap bounds optimistic filesystem retries per project and
// transition.
const defaultRetryCap = 2

// Request carries everything the classifier needs about the failed run.
type Request struct {
	Transition   lifecycle.TransitionType
	ProjectID    string
	EvidencePath string

	// FromState and ToState are the states the failed transition was
	// supposed to move between. Used by the state-conflict branch to
	// re-probe evidence.
	FromState lifecycle.State
	ToState   lifecycle.State

	Err error
}

// Options tunes classification behavior for one call.
type Options struct {
	// AllowRetry controls the optimistic filesystem retry. Presence
	// semantics: nil means allowed.
	AllowRetry *bool

	// RetryCap overrides the retry bound when positive.
	RetryCap int
}

func (o Options) retryAllowed() bool {
	return o.AllowRetry == nil || *o.AllowRetry
}

func (o Options) retryCap() int {
	if o.RetryCap > 0 {
		return o.RetryCap
	}
	return defaultRetryCap
}

// Result reports the chosen strategy and the recovery actions an external
// executor should run. Recovered is true only when the classifier concluded
// the failure is already mitigated (idempotent state conflict) or a retry
// was scheduled.
type Result struct {
	Recovered bool               `json:"recovered"`
	Strategy  string             `json:"strategy"`
	Actions   []lifecycle.Action `json:"actions"`
}

// Classifier maps workflow failures to recovery strategies. It keeps a
// bounded per-project retry counter for the filesystem branch; everything
// else is stateless.
type Classifier struct {
	detectors *detect.Registry
	logger    *telemetry.Logger

	mu      sync.Mutex
	retries map[string]int
}

// NewClassifier creates a classifier probing state evidence through reg.
func NewClassifier(reg *detect.Registry, logger *telemetry.Logger) *Classifier {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &Classifier{
		detectors: reg,
		logger:    logger.NewComponentLogger("recovery"),
		retries:   make(map[string]int),
	}
}

// Classify inspects the failure kind of req.Err and returns the matching
// strategy and action list. It never returns an error and never panics.
func (c *Classifier) Classify(ctx context.Context, req Request, opts Options) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithProjectID(req.ProjectID).
				WithTransition(string(req.Transition)).
				Errorf("recovery classification panicked: %v", r)
			res = &Result{
				Recovered: false,
				Strategy:  StrategyRecoveryFailed,
				Actions:   c.finalize(req.Transition, nil),
			}
		}
	}()

	log := c.logger.WithProjectID(req.ProjectID).WithTransition(string(req.Transition))

	var (
		strategy  string
		recovered bool
		actions   []lifecycle.Action
	)

	switch lifecycle.KindOf(req.Err) {
	case lifecycle.FailureStateMismatch:
		strategy = StrategyStateConflict
		recovered, actions = c.classifyStateConflict(ctx, req)

	case lifecycle.FailureMissingRequirements:
		strategy = StrategyValidationFailure
		actions = []lifecycle.Action{lifecycle.ActionReportMissingRequirements}

	case lifecycle.FailureProjectMissing:
		strategy = StrategyProjectMissing
		actions = []lifecycle.Action{lifecycle.ActionVerifyProjectRegistry}

	case lifecycle.FailurePathNotWritable:
		strategy = StrategyFilesystemFailure
		recovered, actions = c.classifyFilesystemFailure(req, opts)

	case lifecycle.FailureActionFailed:
		strategy = StrategyTransitionFailure
		actions = []lifecycle.Action{lifecycle.ActionRollbackPartialTransition}

	case lifecycle.FailurePostcondition:
		strategy = StrategyStateVerification
		actions = []lifecycle.Action{lifecycle.ActionReverifyState}

	default:
		// Timeouts and internal failures carry no recovery semantics.
		strategy = StrategyUnknown
		actions = []lifecycle.Action{lifecycle.ActionCollectDiagnostics}
	}

	log.WithField("strategy", strategy).
		WithField("recovered", recovered).
		Info("Failure classified")

	return &Result{
		Recovered: recovered,
		Strategy:  strategy,
		Actions:   c.finalize(req.Transition, actions),
	}
}

// classifyStateConflict re-probes the evidence to distinguish an idempotent
// replay (the project already reached the target state, so the failed run
// changed nothing that needed changing) from a genuinely conflicting state.
func (c *Classifier) classifyStateConflict(ctx context.Context, req Request) (bool, []lifecycle.Action) {
	if c.detectors == nil || req.EvidencePath == "" {
		return false, []lifecycle.Action{
			lifecycle.ActionVerifyCurrentState,
			lifecycle.ActionReportStateConflict,
		}
	}

	if c.probe(ctx, req.ToState, req.EvidencePath) {
		// Target state already holds. Treat the run as a replay.
		return true, []lifecycle.Action{lifecycle.ActionAcceptExistingState}
	}

	if c.probe(ctx, req.FromState, req.EvidencePath) {
		// Project never left the source state. The transition simply did
		// not run to completion.
		c.logger.WithProjectID(req.ProjectID).
			WithField("state", string(req.FromState)).
			Warn("Project still in source state after failed transition")
	} else {
		// Neither the source nor the target state is confirmed. The
		// project drifted somewhere the transition does not cover.
		c.logger.WithProjectID(req.ProjectID).
			Warn("Project state diverged from both transition endpoints")
	}

	return false, []lifecycle.Action{
		lifecycle.ActionVerifyCurrentState,
		lifecycle.ActionReportStateConflict,
	}
}

// classifyFilesystemFailure schedules a bounded optimistic retry. No retry
// execution is wired here; the action list tells the external executor to
// re-run the filesystem check.
func (c *Classifier) classifyFilesystemFailure(req Request, opts Options) (bool, []lifecycle.Action) {
	if !opts.retryAllowed() {
		return false, []lifecycle.Action{lifecycle.ActionReportFilesystemFailure}
	}

	key := fmt.Sprintf("%s/%s", req.ProjectID, req.Transition)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.retries[key] >= opts.retryCap() {
		return false, []lifecycle.Action{lifecycle.ActionReportFilesystemFailure}
	}
	c.retries[key]++

	return true, []lifecycle.Action{lifecycle.ActionRetryFilesystemCheck}
}

// probe reports whether the detector for state confirms the evidence.
func (c *Classifier) probe(ctx context.Context, state lifecycle.State, evidencePath string) bool {
	d := c.detectors.ForState(state)
	if d == nil {
		return false
	}
	det, err := d.Detect(ctx, evidencePath)
	if err != nil {
		return false
	}
	return det.Matched()
}

// finalize appends the actions every strategy produces: the transition's own
// cache invalidation plus the shared state-cache invalidation.
func (c *Classifier) finalize(t lifecycle.TransitionType, actions []lifecycle.Action) []lifecycle.Action {
	return append(actions,
		lifecycle.ClearDomainCacheAction(t),
		lifecycle.ActionInvalidateStateCache,
	)
}

// ResetRetries clears the retry counter for a project, typically after a
// later run for the same project succeeds.
func (c *Classifier) ResetRetries(projectID string, t lifecycle.TransitionType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.retries, fmt.Sprintf("%s/%s", projectID, t))
}
