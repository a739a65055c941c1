package recovery

import (
	"context"
	"errors"
	"testing"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
	"github.com/openlaunch/openlaunch/pkg/lifecycle/detect"
)

// fakeDetector reports a fixed match result for its state.
type fakeDetector struct {
	state   lifecycle.State
	matched bool
}

func (f *fakeDetector) State() lifecycle.State { return f.state }

func (f *fakeDetector) Detect(ctx context.Context, evidencePath string) (*detect.Detection, error) {
	det := &detect.Detection{}
	if f.matched {
		det.State = f.state
		det.Confidence = 100
	}
	return det, nil
}

// panicDetector exercises the classifier's panic guard.
type panicDetector struct {
	state lifecycle.State
}

func (p *panicDetector) State() lifecycle.State { return p.state }

func (p *panicDetector) Detect(ctx context.Context, evidencePath string) (*detect.Detection, error) {
	panic("detector blew up")
}

// registryWith builds a registry where the named states report a match.
func registryWith(matched ...lifecycle.State) *detect.Registry {
	reg := detect.NewRegistry()
	for _, state := range []lifecycle.State{lifecycle.StateDraft, lifecycle.StateBuilt, lifecycle.StateOnline, lifecycle.StateOffline} {
		hit := false
		for _, m := range matched {
			if m == state {
				hit = true
			}
		}
		reg.Register(&fakeDetector{state: state, matched: hit})
	}
	return reg
}

func deployRequest(err error) Request {
	return Request{
		Transition:   lifecycle.TransitionDeploy,
		ProjectID:    "projet-alpha",
		EvidencePath: "/srv/projects/projet-alpha",
		FromState:    lifecycle.StateBuilt,
		ToState:      lifecycle.StateOnline,
		Err:          err,
	}
}

func TestClassifyStrategyPerKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		strategy string
	}{
		{"missing requirements", lifecycle.NewMissingRequirementsError(lifecycle.TransitionDeploy, "p", []string{"deploymentId manquant"}), StrategyValidationFailure},
		{"project missing", lifecycle.NewWorkflowError(lifecycle.FailureProjectMissing, lifecycle.TransitionDeploy, "p", "Projet introuvable: p", nil), StrategyProjectMissing},
		{"action failed", lifecycle.NewWorkflowError(lifecycle.FailureActionFailed, lifecycle.TransitionDeploy, "p", "échec", nil), StrategyTransitionFailure},
		{"postcondition", lifecycle.NewPostconditionError(lifecycle.TransitionDeploy, "p", lifecycle.StateOnline), StrategyStateVerification},
		{"timeout", lifecycle.NewTimeoutError(lifecycle.TransitionDeploy, "p", "state-verification", context.DeadlineExceeded), StrategyUnknown},
		{"internal", lifecycle.NewWorkflowError(lifecycle.FailureInternal, lifecycle.TransitionDeploy, "p", "boom", nil), StrategyUnknown},
		{"plain error", errors.New("boom"), StrategyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(registryWith(), nil)
			res := c.Classify(context.Background(), deployRequest(tt.err), Options{})
			if res.Strategy != tt.strategy {
				t.Errorf("Expected strategy %s, got %s", tt.strategy, res.Strategy)
			}
			if res.Recovered {
				t.Errorf("Expected Recovered=false for %s", tt.name)
			}
		})
	}
}

func TestClassifyAlwaysAppendsCacheActions(t *testing.T) {
	errs := []error{
		lifecycle.NewStateMismatchError(lifecycle.TransitionDeploy, "p", lifecycle.StateBuilt),
		lifecycle.NewMissingRequirementsError(lifecycle.TransitionDeploy, "p", nil),
		lifecycle.NewWorkflowError(lifecycle.FailureProjectMissing, lifecycle.TransitionDeploy, "p", "", nil),
		lifecycle.NewWorkflowError(lifecycle.FailurePathNotWritable, lifecycle.TransitionDeploy, "p", "", nil),
		lifecycle.NewWorkflowError(lifecycle.FailureActionFailed, lifecycle.TransitionDeploy, "p", "", nil),
		lifecycle.NewPostconditionError(lifecycle.TransitionDeploy, "p", lifecycle.StateOnline),
		errors.New("boom"),
	}

	for _, err := range errs {
		c := NewClassifier(registryWith(), nil)
		res := c.Classify(context.Background(), deployRequest(err), Options{})

		n := len(res.Actions)
		if n < 2 {
			t.Fatalf("Expected at least 2 actions, got %v", res.Actions)
		}
		if res.Actions[n-2] != lifecycle.Action("clear-deploy-cache") {
			t.Errorf("Expected second-to-last action clear-deploy-cache, got %v", res.Actions)
		}
		if res.Actions[n-1] != lifecycle.ActionInvalidateStateCache {
			t.Errorf("Expected last action invalidate-state-cache, got %v", res.Actions)
		}
	}
}

func TestStateConflictIdempotentReplay(t *testing.T) {
	// The target state already holds on disk: the failed run was a replay
	// and nothing needs repair.
	c := NewClassifier(registryWith(lifecycle.StateOnline), nil)

	res := c.Classify(context.Background(),
		deployRequest(lifecycle.NewStateMismatchError(lifecycle.TransitionDeploy, "p", lifecycle.StateBuilt)),
		Options{})

	if res.Strategy != StrategyStateConflict {
		t.Fatalf("Expected state-conflict, got %s", res.Strategy)
	}
	if !res.Recovered {
		t.Error("Expected Recovered=true when the target state is confirmed")
	}
	if res.Actions[0] != lifecycle.ActionAcceptExistingState {
		t.Errorf("Expected accept-existing-state first, got %v", res.Actions)
	}
}

func TestStateConflictUnrecovered(t *testing.T) {
	// Project is still in the source state: the transition never completed
	// and the conflict stands.
	c := NewClassifier(registryWith(lifecycle.StateBuilt), nil)

	res := c.Classify(context.Background(),
		deployRequest(lifecycle.NewStateMismatchError(lifecycle.TransitionDeploy, "p", lifecycle.StateBuilt)),
		Options{})

	if res.Recovered {
		t.Error("Expected Recovered=false when the target state is not confirmed")
	}
	want := []lifecycle.Action{
		lifecycle.ActionVerifyCurrentState,
		lifecycle.ActionReportStateConflict,
		lifecycle.Action("clear-deploy-cache"),
		lifecycle.ActionInvalidateStateCache,
	}
	if len(res.Actions) != len(want) {
		t.Fatalf("Expected actions %v, got %v", want, res.Actions)
	}
	for i := range want {
		if res.Actions[i] != want[i] {
			t.Errorf("Expected action[%d]=%s, got %s", i, want[i], res.Actions[i])
		}
	}
}

func TestStateConflictWithoutEvidencePath(t *testing.T) {
	c := NewClassifier(registryWith(lifecycle.StateOnline), nil)

	req := deployRequest(lifecycle.NewStateMismatchError(lifecycle.TransitionDeploy, "p", lifecycle.StateBuilt))
	req.EvidencePath = ""

	res := c.Classify(context.Background(), req, Options{})
	if res.Recovered {
		t.Error("Expected no recovery without an evidence path to probe")
	}
	if res.Actions[0] != lifecycle.ActionVerifyCurrentState {
		t.Errorf("Expected verify-current-state first, got %v", res.Actions)
	}
}

func TestFilesystemRetryBounded(t *testing.T) {
	c := NewClassifier(registryWith(), nil)
	err := lifecycle.NewWorkflowError(lifecycle.FailurePathNotWritable, lifecycle.TransitionDeploy, "projet-alpha", "Chemin non inscriptible: /p", nil)

	// First two classifications schedule a retry.
	for i := 0; i < 2; i++ {
		res := c.Classify(context.Background(), deployRequest(err), Options{})
		if !res.Recovered {
			t.Fatalf("Attempt %d: expected a scheduled retry", i+1)
		}
		if res.Actions[0] != lifecycle.ActionRetryFilesystemCheck {
			t.Errorf("Attempt %d: expected retry-filesystem-check, got %v", i+1, res.Actions)
		}
	}

	// The cap is reached: no further retries.
	res := c.Classify(context.Background(), deployRequest(err), Options{})
	if res.Recovered {
		t.Error("Expected no retry past the cap")
	}
	if res.Actions[0] != lifecycle.ActionReportFilesystemFailure {
		t.Errorf("Expected report-filesystem-failure past the cap, got %v", res.Actions)
	}

	// A successful later run resets the counter.
	c.ResetRetries("projet-alpha", lifecycle.TransitionDeploy)
	res = c.Classify(context.Background(), deployRequest(err), Options{})
	if !res.Recovered {
		t.Error("Expected retry to be available again after reset")
	}
}

func TestFilesystemRetryCountersAreScopedPerTransition(t *testing.T) {
	c := NewClassifier(registryWith(), nil)
	deployErr := lifecycle.NewWorkflowError(lifecycle.FailurePathNotWritable, lifecycle.TransitionDeploy, "projet-alpha", "", nil)

	for i := 0; i < 2; i++ {
		c.Classify(context.Background(), deployRequest(deployErr), Options{})
	}

	// Deploy retries are exhausted, but a BUILD failure for the same
	// project still gets its own budget.
	buildReq := Request{
		Transition:   lifecycle.TransitionBuild,
		ProjectID:    "projet-alpha",
		EvidencePath: "/p",
		FromState:    lifecycle.StateDraft,
		ToState:      lifecycle.StateBuilt,
		Err:          lifecycle.NewWorkflowError(lifecycle.FailurePathNotWritable, lifecycle.TransitionBuild, "projet-alpha", "", nil),
	}
	res := c.Classify(context.Background(), buildReq, Options{})
	if !res.Recovered {
		t.Error("Expected an independent retry budget per transition type")
	}
}

func TestFilesystemRetryDisallowed(t *testing.T) {
	c := NewClassifier(registryWith(), nil)
	err := lifecycle.NewWorkflowError(lifecycle.FailurePathNotWritable, lifecycle.TransitionDeploy, "p", "", nil)

	off := false
	res := c.Classify(context.Background(), deployRequest(err), Options{AllowRetry: &off})
	if res.Recovered {
		t.Error("Expected no retry when retries are disallowed")
	}
	if res.Actions[0] != lifecycle.ActionReportFilesystemFailure {
		t.Errorf("Expected report-filesystem-failure, got %v", res.Actions)
	}
}

func TestFilesystemRetryCapOverride(t *testing.T) {
	c := NewClassifier(registryWith(), nil)
	err := lifecycle.NewWorkflowError(lifecycle.FailurePathNotWritable, lifecycle.TransitionDeploy, "p", "", nil)

	res := c.Classify(context.Background(), deployRequest(err), Options{RetryCap: 1})
	if !res.Recovered {
		t.Fatal("Expected first retry under an explicit cap")
	}
	res = c.Classify(context.Background(), deployRequest(err), Options{RetryCap: 1})
	if res.Recovered {
		t.Error("Expected the explicit cap to bound retries")
	}
}

func TestClassifyPanicReportsRecoveryFailed(t *testing.T) {
	reg := detect.NewRegistry()
	reg.Register(&panicDetector{state: lifecycle.StateOnline})
	c := NewClassifier(reg, nil)

	res := c.Classify(context.Background(),
		deployRequest(lifecycle.NewStateMismatchError(lifecycle.TransitionDeploy, "p", lifecycle.StateBuilt)),
		Options{})

	if res.Strategy != StrategyRecoveryFailed {
		t.Fatalf("Expected recovery-failed, got %s", res.Strategy)
	}
	if res.Recovered {
		t.Error("Expected Recovered=false after a classification panic")
	}
	want := []lifecycle.Action{
		lifecycle.Action("clear-deploy-cache"),
		lifecycle.ActionInvalidateStateCache,
	}
	if len(res.Actions) != len(want) || res.Actions[0] != want[0] || res.Actions[1] != want[1] {
		t.Errorf("Expected bare cache actions %v, got %v", want, res.Actions)
	}
}
