// Package workflow orchestrates a lifecycle transition end to end: evidence
// detection, validation, external pre-checks, the atomic state change,
// postcondition verification, cleanup decisions, and recovery classification
// on failure.
//
// One Engine wraps one transition definition. Each run is a fixed sequence of
// steps with per-step timing collected into WorkflowMetrics. Runs for the same
// project are serialized through a shared ProjectLocks table; runs for
// different projects proceed concurrently.
package workflow

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
	"github.com/openlaunch/openlaunch/pkg/lifecycle/detect"
	"github.com/openlaunch/openlaunch/pkg/lifecycle/recovery"
	"github.com/openlaunch/openlaunch/pkg/lifecycle/transition"
	"github.com/openlaunch/openlaunch/pkg/probes"
	"github.com/openlaunch/openlaunch/pkg/telemetry"
)

// Step names, in execution order. Metrics entries use these names and are
// appended in this order, never reordered.
const (
	StepInputValidation      = "input-validation"
	StepStateVerification    = "state-verification"
	StepTransitionValidation = "transition-validation"
	StepFilesystemChecks     = "filesystem-checks"
	StepTransitionExecution  = "transition-execution"
	StepPostVerification     = "post-verification"
	StepCleanup              = "cleanup"
)

// DefaultStepTimeout bounds each blocking step of a run. A step that exceeds
// it fails the run with a timeout error.
const DefaultStepTimeout = 30 * time.Second

// Result is the composite outcome of a successful run.
type Result struct {
	ProjectID     string                      `json:"projectId"`
	Transition    lifecycle.TransitionType    `json:"transition"`
	FromState     lifecycle.State             `json:"fromState"`
	FinalState    lifecycle.State             `json:"finalState"`
	CorrelationID string                      `json:"correlationId"`
	Record        *lifecycle.TransitionRecord `json:"record"`
	Cleanup       *lifecycle.CleanupResult    `json:"cleanup"`
	Metrics       *lifecycle.WorkflowMetrics  `json:"metrics"`

	// StoppedServices is populated by STOP runs only; it echoes the service
	// list carried through the transition record.
	StoppedServices []string `json:"stoppedServices,omitempty"`
}

// Recorder persists finished runs for audit and history. A nil Recorder
// disables persistence.
type Recorder interface {
	RecordRun(ctx context.Context, res *Result, runErr error) error
}

// RunOptions tunes a single run.
type RunOptions struct {
	// AllowRetry is forwarded to recovery classification. nil means allowed.
	AllowRetry *bool
}

// Config carries the collaborators and tuning of an Engine.
type Config struct {
	Definition transition.Definition
	Detectors  *detect.Registry
	Projects   probes.ProjectChecker
	Paths      probes.PathChecker
	Classifier *recovery.Classifier
	Locks      *ProjectLocks
	Recorder   Recorder
	Telemetry  *telemetry.Telemetry

	// StepTimeout bounds each step. Zero means DefaultStepTimeout.
	StepTimeout time.Duration
}

// Engine runs one transition type end to end.
type Engine struct {
	def         transition.Definition
	detectors   *detect.Registry
	projects    probes.ProjectChecker
	paths       probes.PathChecker
	classifier  *recovery.Classifier
	locks       *ProjectLocks
	recorder    Recorder
	tel         *telemetry.Telemetry
	logger      *telemetry.Logger
	stepTimeout time.Duration
}

// NewEngine creates an engine from cfg. Definition, Detectors, Projects, and
// Paths are required; everything else degrades to a no-op when absent.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Definition == nil {
		return nil, lifecycle.NewValidationError("definition", "définition de transition requise")
	}
	if cfg.Detectors == nil {
		return nil, lifecycle.NewValidationError("detectors", "registre de détecteurs requis")
	}
	if cfg.Projects == nil || cfg.Paths == nil {
		return nil, lifecycle.NewValidationError("probes", "sondes projet et chemin requises")
	}

	locks := cfg.Locks
	if locks == nil {
		locks = NewProjectLocks()
	}
	timeout := cfg.StepTimeout
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}

	var logger *telemetry.Logger
	if cfg.Telemetry != nil {
		logger = cfg.Telemetry.Logger.NewComponentLogger("workflow")
	} else {
		logger = telemetry.NopLogger()
	}

	return &Engine{
		def:         cfg.Definition,
		detectors:   cfg.Detectors,
		projects:    cfg.Projects,
		paths:       cfg.Paths,
		classifier:  cfg.Classifier,
		locks:       locks,
		recorder:    cfg.Recorder,
		tel:         cfg.Telemetry,
		logger:      logger,
		stepTimeout: timeout,
	}, nil
}

// Type returns the transition type this engine runs.
func (e *Engine) Type() lifecycle.TransitionType {
	return e.def.Type()
}

// Run executes the full workflow for one project. On success it returns the
// composite result; on failure it returns a ValidationError (caller error,
// no recovery attempted) or a WorkflowError (orchestration failure, recovery
// classified observationally before the error is returned).
func (e *Engine) Run(ctx context.Context, projectID string, tc *lifecycle.TransitionContext, opts RunOptions) (*Result, error) {
	t := e.def.Type()
	slug := string(t)
	correlationID := e.def.CorrelationID(projectID)

	metrics := &lifecycle.WorkflowMetrics{
		StartTime:     time.Now(),
		CorrelationID: correlationID,
	}

	log := e.logger.WithProjectID(projectID).
		WithTransition(slug).
		WithCorrelationID(correlationID)

	var span oteltrace.Span
	if e.tel != nil {
		ctx = e.tel.WithContext(ctx)
		spanCtx, s := e.tel.Tracer.StartWorkflowSpan(ctx, slug, projectID, correlationID)
		ctx = spanCtx
		span = s
	}
	defer func() {
		if span != nil {
			span.End()
		}
	}()

	e.recordRunStarted(slug)
	e.publish(ctx, telemetry.EventTypeWorkflowStart, projectID, correlationID, "Workflow started", nil)
	log.Info("Workflow started")

	// Step 1: input validation. Failures here are caller errors; they never
	// reach recovery and are returned unwrapped.
	start := time.Now()
	_, endStep := e.stepSpan(ctx, StepInputValidation)
	if err := e.def.ValidateInput(projectID, tc); err != nil {
		endStep(err)
		e.step(metrics, StepInputValidation, start, false)
		e.finishFailure(ctx, span, log, metrics, projectID, tc, err, opts, false)
		return nil, err
	}
	endStep(nil)
	e.step(metrics, StepInputValidation, start, true)

	// The project lock spans every state-dependent step: from the
	// precondition probe through cleanup.
	if err := e.locks.Acquire(ctx, projectID); err != nil {
		werr := lifecycle.NewTimeoutError(t, projectID, "lock", err)
		e.finishFailure(ctx, span, log, metrics, projectID, tc, werr, opts, true)
		return nil, werr
	}
	defer e.locks.Release(projectID)

	res, err := e.runLocked(ctx, log, metrics, projectID, tc, correlationID)
	if err != nil {
		e.finishFailure(ctx, span, log, metrics, projectID, tc, err, opts, true)
		return nil, err
	}

	metrics.Duration = time.Since(metrics.StartTime)
	metrics.Success = true
	res.Metrics = metrics

	e.recordRunCompleted(slug, "succeeded", metrics.Duration)
	e.publish(ctx, telemetry.EventTypeWorkflowSuccess, projectID, correlationID, "Workflow succeeded", map[string]interface{}{
		"duration": metrics.Duration.String(),
		"steps":    len(metrics.Steps),
	})
	if span != nil {
		telemetry.RecordSuccess(span)
	}
	log.WithField("duration", metrics.Duration.String()).Info("Workflow succeeded")

	if e.classifier != nil {
		e.classifier.ResetRetries(projectID, t)
	}
	if e.recorder != nil {
		if rerr := e.recorder.RecordRun(ctx, res, nil); rerr != nil {
			log.WithError(rerr).Warn("Run persistence failed")
		}
	}

	return res, nil
}

// step stamps one step measurement into both the per-run metrics and the
// process-wide histogram.
func (e *Engine) step(metrics *lifecycle.WorkflowMetrics, name string, start time.Time, success bool) {
	metrics.AddStep(name, start, success)
	if e.tel != nil {
		e.tel.Metrics.RecordStep(string(e.def.Type()), name, time.Since(start))
	}
}

// stepSpan opens a child span for one workflow step. The returned context
// carries the span; the returned closer records the outcome and ends it.
func (e *Engine) stepSpan(ctx context.Context, name string) (context.Context, func(error)) {
	if e.tel == nil {
		return ctx, func(error) {}
	}
	spanCtx, span := e.tel.Tracer.StartStepSpan(ctx, string(e.def.Type()), name)
	return spanCtx, func(err error) {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.RecordSuccess(span)
		}
		span.End()
	}
}

// runLocked executes steps 2 through 7 under the project lock.
func (e *Engine) runLocked(ctx context.Context, log *telemetry.Logger, metrics *lifecycle.WorkflowMetrics, projectID string, tc *lifecycle.TransitionContext, correlationID string) (*Result, error) {
	t := e.def.Type()
	from := e.def.From()
	to := e.def.To()

	// Step 2: precondition state probe.
	e.publish(ctx, telemetry.EventTypeVerificationStart, projectID, correlationID, "Verifying source state", map[string]interface{}{
		"expected": string(from),
	})
	start := time.Now()
	stepCtx, endStep := e.stepSpan(ctx, StepStateVerification)
	matched, err := e.probeState(stepCtx, from, tc.ProjectPath)
	if err != nil {
		endStep(err)
		e.step(metrics, StepStateVerification, start, false)
		return nil, e.stepError(t, projectID, StepStateVerification, err)
	}
	if !matched {
		merr := lifecycle.NewStateMismatchError(t, projectID, from)
		endStep(merr)
		e.step(metrics, StepStateVerification, start, false)
		return nil, merr
	}
	endStep(nil)
	e.step(metrics, StepStateVerification, start, true)

	// Step 3: transition validation.
	e.publish(ctx, telemetry.EventTypeValidationStart, projectID, correlationID, "Validating transition context", nil)
	start = time.Now()
	stepCtx, endStep = e.stepSpan(ctx, StepTransitionValidation)
	vres, err := e.validate(stepCtx, from, to, tc)
	if err != nil {
		endStep(err)
		e.step(metrics, StepTransitionValidation, start, false)
		return nil, e.stepError(t, projectID, StepTransitionValidation, err)
	}
	if !vres.CanTransition {
		merr := lifecycle.NewMissingRequirementsError(t, projectID, vres.Requirements)
		endStep(merr)
		e.step(metrics, StepTransitionValidation, start, false)
		return nil, merr
	}
	endStep(nil)
	e.step(metrics, StepTransitionValidation, start, true)

	// Step 4: external pre-checks.
	e.publish(ctx, telemetry.EventTypeFilesystemChecksStart, projectID, correlationID, "Running filesystem checks", nil)
	start = time.Now()
	stepCtx, endStep = e.stepSpan(ctx, StepFilesystemChecks)
	if err := e.preChecks(stepCtx, projectID, tc); err != nil {
		endStep(err)
		e.step(metrics, StepFilesystemChecks, start, false)
		return nil, err
	}
	endStep(nil)
	e.step(metrics, StepFilesystemChecks, start, true)

	// Step 5: execute the transition.
	e.publish(ctx, telemetry.EventTypeTransitionStart, projectID, correlationID, "Executing transition", nil)
	start = time.Now()
	stepCtx, endStep = e.stepSpan(ctx, StepTransitionExecution)
	rec, err := e.execute(stepCtx, projectID, tc)
	if err != nil {
		endStep(err)
		e.step(metrics, StepTransitionExecution, start, false)
		return nil, e.stepError(t, projectID, StepTransitionExecution, err)
	}
	if !rec.Success {
		// Unreachable with the shipped actors, checked anyway.
		merr := lifecycle.NewWorkflowError(lifecycle.FailureActionFailed, t, projectID,
			"la transition a signalé un échec", nil)
		endStep(merr)
		e.step(metrics, StepTransitionExecution, start, false)
		return nil, merr
	}
	endStep(nil)
	e.step(metrics, StepTransitionExecution, start, true)

	// Step 6: postcondition state probe.
	e.publish(ctx, telemetry.EventTypeVerificationStart, projectID, correlationID, "Verifying target state", map[string]interface{}{
		"expected": string(to),
	})
	start = time.Now()
	stepCtx, endStep = e.stepSpan(ctx, StepPostVerification)
	matched, err = e.probeState(stepCtx, to, tc.ProjectPath)
	if err != nil {
		endStep(err)
		e.step(metrics, StepPostVerification, start, false)
		return nil, e.stepError(t, projectID, StepPostVerification, err)
	}
	if !matched {
		merr := lifecycle.NewPostconditionError(t, projectID, to)
		endStep(merr)
		e.step(metrics, StepPostVerification, start, false)
		return nil, merr
	}
	endStep(nil)
	e.step(metrics, StepPostVerification, start, true)

	// Step 7: cleanup decision. A cleanup failure is recorded but does not
	// abort an already-successful workflow.
	e.publish(ctx, telemetry.EventTypeCleanupStart, projectID, correlationID, "Deciding cleanup actions", nil)
	start = time.Now()
	stepCtx, endStep = e.stepSpan(ctx, StepCleanup)
	cleanup, err := e.def.Cleanup(stepCtx, rec, projectID)
	if err != nil {
		log.WithError(err).Warn("Cleanup decision failed")
		endStep(err)
		e.step(metrics, StepCleanup, start, false)
		cleanup = &lifecycle.CleanupResult{Cleaned: false}
	} else {
		endStep(nil)
		e.step(metrics, StepCleanup, start, cleanup.Cleaned)
	}

	res := &Result{
		ProjectID:     projectID,
		Transition:    t,
		FromState:     from,
		FinalState:    to,
		CorrelationID: correlationID,
		Record:        rec,
		Cleanup:       cleanup,
	}
	if t == lifecycle.TransitionStop && rec.Data != nil {
		if services, ok := rec.Data["stoppedServices"].([]string); ok {
			res.StoppedServices = services
		}
	}
	return res, nil
}

// probeState runs a detector under the step deadline.
func (e *Engine) probeState(ctx context.Context, state lifecycle.State, evidencePath string) (bool, error) {
	d := e.detectors.ForState(state)
	if d == nil {
		return false, lifecycle.NewWorkflowError(lifecycle.FailureInternal, e.def.Type(), "",
			"aucun détecteur pour l'état "+string(state), nil)
	}

	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	detCtx := stepCtx
	var span oteltrace.Span
	if e.tel != nil {
		detCtx, span = e.tel.Tracer.StartDetectorSpan(stepCtx, string(state), evidencePath)
	}

	det, err := d.Detect(detCtx, evidencePath)
	if span != nil {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetAttributes(span, attribute.Bool("detector.matched", det.Matched()))
			telemetry.RecordSuccess(span)
		}
		span.End()
	}
	if err != nil {
		return false, err
	}
	e.recordDetectorProbe(string(state), det.Matched())
	return det.Matched(), nil
}

func (e *Engine) validate(ctx context.Context, from, to lifecycle.State, tc *lifecycle.TransitionContext) (*lifecycle.ValidationResult, error) {
	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()
	return e.def.Validate(stepCtx, from, to, tc)
}

func (e *Engine) execute(ctx context.Context, projectID string, tc *lifecycle.TransitionContext) (*lifecycle.TransitionRecord, error) {
	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()
	return e.def.Execute(stepCtx, projectID, tc)
}

// preChecks delegates to the injected project and path probes.
func (e *Engine) preChecks(ctx context.Context, projectID string, tc *lifecycle.TransitionContext) error {
	t := e.def.Type()

	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	presence, err := e.projects.ProjectExists(stepCtx, projectID)
	if err != nil {
		return e.stepError(t, projectID, StepFilesystemChecks, err)
	}
	if !presence.Exists {
		return lifecycle.NewWorkflowError(lifecycle.FailureProjectMissing, t, projectID,
			"Projet introuvable: "+projectID, nil)
	}

	status, err := e.paths.CheckOutputPath(stepCtx, tc.ProjectPath)
	if err != nil {
		return e.stepError(t, projectID, StepFilesystemChecks, err)
	}
	if !status.Writable {
		return lifecycle.NewWorkflowError(lifecycle.FailurePathNotWritable, t, projectID,
			"Chemin non inscriptible: "+tc.ProjectPath, nil)
	}
	return nil
}

// stepError normalizes an arbitrary step failure into a WorkflowError,
// mapping context deadline expiry to the timeout kind.
func (e *Engine) stepError(t lifecycle.TransitionType, projectID, step string, err error) error {
	if lifecycle.AsWorkflowError(err) != nil || lifecycle.IsValidationError(err) || lifecycle.IsStateError(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return lifecycle.NewTimeoutError(t, projectID, step, err)
	}
	return lifecycle.NewWorkflowError(lifecycle.FailureInternal, t, projectID, err.Error(), err)
}

// finishFailure stamps metrics, emits the error event, classifies recovery
// observationally, and persists the failed run. The original error is always
// returned to the caller unchanged; recovery never suppresses it.
func (e *Engine) finishFailure(ctx context.Context, span oteltrace.Span, log *telemetry.Logger, metrics *lifecycle.WorkflowMetrics, projectID string, tc *lifecycle.TransitionContext, err error, opts RunOptions, classify bool) {
	t := e.def.Type()
	slug := string(t)

	metrics.Duration = time.Since(metrics.StartTime)
	metrics.Success = false

	kind := string(lifecycle.KindOf(err))
	if lifecycle.IsValidationError(err) {
		kind = "validation"
	}

	e.recordRunCompleted(slug, "failed", metrics.Duration)
	e.recordError(kind)
	e.publish(ctx, telemetry.EventTypeWorkflowError, projectID, metrics.CorrelationID, err.Error(), map[string]interface{}{
		"kind": kind,
	})
	if span != nil {
		telemetry.RecordError(span, err)
	}
	log.WithError(err).WithField("kind", kind).Error("Workflow failed")

	// ValidationError and the initial input check are caller errors and
	// never reach the classifier.
	if classify && e.classifier != nil && !lifecycle.IsValidationError(err) {
		evidencePath := ""
		if tc != nil {
			evidencePath = tc.ProjectPath
		}
		recRes := e.classifier.Classify(ctx, recovery.Request{
			Transition:   t,
			ProjectID:    projectID,
			EvidencePath: evidencePath,
			FromState:    e.def.From(),
			ToState:      e.def.To(),
			Err:          err,
		}, recovery.Options{AllowRetry: opts.AllowRetry})

		e.recordRecovery(recRes.Strategy, recRes.Recovered)
		if span != nil {
			telemetry.AddRecoveryEvent(span, recRes.Strategy, recRes.Recovered)
		}
		if e.tel != nil {
			_ = e.tel.Events.PublishRecoveryResult(slug, projectID, recRes.Strategy, recRes.Recovered)
		}
		log.WithField("strategy", recRes.Strategy).
			WithField("recovered", recRes.Recovered).
			Info("Recovery classified")
	}

	if e.recorder != nil {
		res := &Result{
			ProjectID:     projectID,
			Transition:    t,
			FromState:     e.def.From(),
			CorrelationID: metrics.CorrelationID,
			Metrics:       metrics,
		}
		if rerr := e.recorder.RecordRun(ctx, res, err); rerr != nil {
			log.WithError(rerr).Warn("Run persistence failed")
		}
	}
}

// Telemetry helpers tolerate a nil bundle.

func (e *Engine) publish(ctx context.Context, eventType, projectID, correlationID, message string, data map[string]interface{}) {
	if e.tel == nil {
		return
	}
	telemetry.AddWorkflowEvent(telemetry.SpanFromContext(ctx), eventType, message)
	_ = e.tel.Events.PublishWorkflowEvent(eventType, string(e.def.Type()), projectID, correlationID, message, data)
}

func (e *Engine) recordRunStarted(slug string) {
	if e.tel != nil {
		e.tel.Metrics.RecordRunStarted(slug)
	}
}

func (e *Engine) recordRunCompleted(slug, status string, d time.Duration) {
	if e.tel != nil {
		e.tel.Metrics.RecordRunCompleted(slug, status, d)
	}
}

func (e *Engine) recordError(kind string) {
	if e.tel != nil {
		e.tel.Metrics.RecordError(kind)
	}
}

func (e *Engine) recordRecovery(strategy string, recovered bool) {
	if e.tel != nil {
		e.tel.Metrics.RecordRecovery(strategy, recovered)
	}
}

func (e *Engine) recordDetectorProbe(state string, matched bool) {
	if e.tel != nil {
		e.tel.Metrics.RecordDetectorProbe(state, matched)
	}
}
