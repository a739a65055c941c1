// Package lifecycle defines the core types of the OpenLaunch project lifecycle:
// the finite state model, the transition catalogue, and the data structures that
// travel through a workflow run (context, record, metrics).
package lifecycle

import (
	"time"
)

// State represents a project's lifecycle position.
type State string

const (
	// StateVoid is the absence of a project: no evidence of any lifecycle state.
	StateVoid State = "VOID"

	// StateDraft is an editable project that has not been built.
	StateDraft State = "DRAFT"

	// StateBuilt is a project with a completed build, not yet deployed.
	StateBuilt State = "BUILT"

	// StateOnline is a deployed project currently serving.
	StateOnline State = "ONLINE"

	// StateOffline is a deployed project that has been stopped.
	StateOffline State = "OFFLINE"
)

// Valid reports whether s is one of the known lifecycle states.
func (s State) Valid() bool {
	switch s {
	case StateVoid, StateDraft, StateBuilt, StateOnline, StateOffline:
		return true
	}
	return false
}

// TransitionType identifies a named lifecycle transition. Each transition is
// defined for exactly one (from, to) state pair.
type TransitionType string

const (
	// TransitionSave persists draft content in place (DRAFT -> DRAFT).
	TransitionSave TransitionType = "SAVE"

	// TransitionBuild produces build artifacts from a draft (DRAFT -> BUILT).
	TransitionBuild TransitionType = "BUILD"

	// TransitionDeploy publishes a build (BUILT -> ONLINE).
	TransitionDeploy TransitionType = "DEPLOY"

	// TransitionStart brings a stopped deployment back up (OFFLINE -> ONLINE).
	TransitionStart TransitionType = "START"

	// TransitionStop takes a serving project down (ONLINE -> OFFLINE).
	TransitionStop TransitionType = "STOP"

	// TransitionEdit reopens a built project for editing (BUILT -> DRAFT).
	TransitionEdit TransitionType = "EDIT"
)

// TransitionContext carries everything a single transition call needs. It is
// built by the caller, consumed by the validator and actor, and never persisted.
//
// Boolean and scalar payload fields are pointers: a field is "present" when the
// pointer is non-nil, so an explicit false survives the presence checks.
type TransitionContext struct {
	ProjectID    string         `json:"projectId"`
	ProjectPath  string         `json:"projectPath"`
	DeploymentID string         `json:"deploymentId,omitempty"`
	Save         map[string]any `json:"saveData,omitempty"`
	Edit         *EditConfig    `json:"editConfig,omitempty"`
	Stop         *StopConfig    `json:"stopConfig,omitempty"`
	Build        *BuildConfig   `json:"buildConfig,omitempty"`
	Deploy       *DeployConfig  `json:"deployConfig,omitempty"`
	Start        *StartConfig   `json:"startConfig,omitempty"`
}

// EditConfig is the payload of an EDIT transition.
type EditConfig struct {
	EditMode        *string `json:"editMode,omitempty"`
	BackupBuild     *bool   `json:"backupBuild,omitempty"`
	PreserveChanges *bool   `json:"preserveChanges,omitempty"`
}

// StopConfig is the payload of a STOP transition. Reason is optional and
// defaults to "manual" in the actor.
type StopConfig struct {
	Graceful         *bool   `json:"graceful,omitempty"`
	Timeout          *int    `json:"timeout,omitempty"`
	DrainConnections *bool   `json:"drainConnections,omitempty"`
	Reason           *string `json:"reason,omitempty"`

	// Services optionally names the services being taken down; the list is
	// echoed in the transition record for traceability.
	Services []string `json:"services,omitempty"`
}

// BuildConfig is the payload of a BUILD transition. Target is optional and
// defaults to "production" in the actor.
type BuildConfig struct {
	Target     *string `json:"target,omitempty"`
	Minify     *bool   `json:"minify,omitempty"`
	SourceMaps *bool   `json:"sourceMaps,omitempty"`
}

// DeployConfig is the payload of a DEPLOY transition.
type DeployConfig struct {
	Environment    *string `json:"environment,omitempty"`
	HealthCheck    *bool   `json:"healthCheck,omitempty"`
	RollbackOnFail *bool   `json:"rollbackOnFail,omitempty"`
}

// StartConfig is the payload of a START transition.
type StartConfig struct {
	Services  []string `json:"services,omitempty"`
	WarmCache *bool    `json:"warmCache,omitempty"`
	Port      *int     `json:"port,omitempty"`
}

// TransitionRecord is produced by a transition actor. It is the only artifact
// that crosses from the actor to cleanup and recovery; its lifetime is a single
// workflow invocation (plus an audit copy in the run store).
type TransitionRecord struct {
	Success   bool           `json:"success"`
	Type      TransitionType `json:"type"`
	FromState State          `json:"fromState"`
	ToState   State          `json:"toState"`
	Timestamp time.Time      `json:"timestamp"`

	// Data is the normalized, defaulted view of the input context.
	Data map[string]any `json:"transitionData"`
}

// ValidationResult is returned by a transition validator when the state pair is
// legal. Requirements lists every missing context field; CanTransition is true
// only when the list is empty.
type ValidationResult struct {
	Valid         bool     `json:"valid"`
	CanTransition bool     `json:"canTransition"`
	Requirements  []string `json:"requirements"`
}

// StepMetric records the timing of one workflow step.
type StepMetric struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Success  bool          `json:"success"`
}

// WorkflowMetrics accumulates per-step timing for one workflow invocation.
// It is owned exclusively by that invocation and is never shared.
type WorkflowMetrics struct {
	StartTime     time.Time     `json:"startTime"`
	Steps         []StepMetric  `json:"steps"`
	Duration      time.Duration `json:"duration"`
	Success       bool          `json:"success"`
	CorrelationID string        `json:"correlationId"`
}

// AddStep appends one step measurement. Steps are appended in execution order
// and never reordered.
func (m *WorkflowMetrics) AddStep(name string, start time.Time, success bool) {
	m.Steps = append(m.Steps, StepMetric{
		Name:     name,
		Duration: time.Since(start),
		Success:  success,
	})
}

// CleanupResult is the decision produced by a transition cleanup component.
// The actions are not executed here; that is the caller's responsibility.
type CleanupResult struct {
	Cleaned bool     `json:"cleaned"`
	Actions []Action `json:"actions"`
}
