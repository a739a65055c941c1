package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind is the structured discriminant carried by a WorkflowError. The
// recovery classifier switches on it instead of matching message substrings.
type FailureKind string

const (
	// FailureStateMismatch indicates the precondition detector did not confirm
	// the expected starting state.
	FailureStateMismatch FailureKind = "state-mismatch"

	// FailureMissingRequirements indicates the transition applies but the
	// caller did not supply every required context field.
	FailureMissingRequirements FailureKind = "missing-requirements"

	// FailureProjectMissing indicates the project-existence pre-check failed.
	FailureProjectMissing FailureKind = "project-missing"

	// FailurePathNotWritable indicates the output-path pre-check failed.
	FailurePathNotWritable FailureKind = "path-not-writable"

	// FailureActionFailed indicates the transition actor reported failure.
	FailureActionFailed FailureKind = "action-failed"

	// FailurePostcondition indicates the ending state was not confirmed
	// after the transition executed.
	FailurePostcondition FailureKind = "postcondition-failed"

	// FailureTimeout indicates a workflow step exceeded its deadline or the
	// run was cancelled.
	FailureTimeout FailureKind = "timeout"

	// FailureInternal covers unexpected errors inside the orchestration.
	FailureInternal FailureKind = "internal"
)

// ValidationError reports malformed caller input: wrong types, empty
// identifiers, missing required top-level fields. It is always produced before
// any state-changing work begins and never triggers recovery.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface. The "ValidationError:" prefix is a
// stable convention callers may rely on.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("ValidationError: %s (%s)", e.Message, e.Field)
	}
	return fmt.Sprintf("ValidationError: %s", e.Message)
}

// NewValidationError creates a validation error for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// StateError reports a state pair that is structurally illegal for a
// transition type. It is thrown by validators before the context is inspected
// and, like ValidationError, never triggers recovery.
type StateError struct {
	Transition TransitionType
	WantFrom   State
	WantTo     State
	From       State
	To         State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("StateError: transition %s invalide: %s->%s requis, %s->%s reçu",
		e.Transition, e.WantFrom, e.WantTo, e.From, e.To)
}

// NewStateError creates a state-pair error for the given transition type.
func NewStateError(t TransitionType, wantFrom, wantTo, from, to State) *StateError {
	return &StateError{Transition: t, WantFrom: wantFrom, WantTo: wantTo, From: from, To: to}
}

// IsStateError reports whether err is (or wraps) a StateError.
func IsStateError(err error) bool {
	var e *StateError
	return errors.As(err, &e)
}

// WorkflowError is any failure during orchestration from the precondition
// check onward. It carries a human-readable cause plus the structured Kind the
// recovery classifier acts on.
type WorkflowError struct {
	Kind       FailureKind
	Transition TransitionType
	ProjectID  string
	Message    string

	// Requirements holds the missing context fields when Kind is
	// FailureMissingRequirements.
	Requirements []string

	Err error
}

// Error implements the error interface. The "WorkflowError:" prefix is a
// stable convention callers may rely on; requirements are joined
// comma-separated so the message stays parseable.
func (e *WorkflowError) Error() string {
	msg := e.Message
	if len(e.Requirements) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.Requirements, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("WorkflowError: %s: %v", msg, e.Err)
	}
	return fmt.Sprintf("WorkflowError: %s", msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error equality for errors.Is: two workflow errors match when
// their kinds match.
func (e *WorkflowError) Is(target error) bool {
	t, ok := target.(*WorkflowError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewWorkflowError creates a workflow error of the given kind.
func NewWorkflowError(kind FailureKind, t TransitionType, projectID, message string, err error) *WorkflowError {
	return &WorkflowError{
		Kind:       kind,
		Transition: t,
		ProjectID:  projectID,
		Message:    message,
		Err:        err,
	}
}

// NewStateMismatchError creates the precondition-failure error. The message
// format is load-bearing: callers and log tooling expect it verbatim.
func NewStateMismatchError(t TransitionType, projectID string, expected State) *WorkflowError {
	return NewWorkflowError(FailureStateMismatch, t, projectID,
		fmt.Sprintf("Projet n'est pas en état %s", expected), nil)
}

// NewMissingRequirementsError creates the soft-validation failure carrying the
// structured requirements list.
func NewMissingRequirementsError(t TransitionType, projectID string, requirements []string) *WorkflowError {
	e := NewWorkflowError(FailureMissingRequirements, t, projectID,
		"Exigences de transition non satisfaites", nil)
	e.Requirements = requirements
	return e
}

// NewPostconditionError creates the post-verification failure.
func NewPostconditionError(t TransitionType, projectID string, expected State) *WorkflowError {
	return NewWorkflowError(FailurePostcondition, t, projectID,
		fmt.Sprintf("État %s non confirmé après transition", expected), nil)
}

// NewTimeoutError creates the deadline/cancellation failure.
func NewTimeoutError(t TransitionType, projectID, step string, err error) *WorkflowError {
	return NewWorkflowError(FailureTimeout, t, projectID,
		fmt.Sprintf("Étape %s interrompue avant terme", step), err)
}

// KindOf extracts the failure kind from an error chain. Errors that are not
// workflow errors report FailureInternal.
func KindOf(err error) FailureKind {
	var e *WorkflowError
	if errors.As(err, &e) {
		return e.Kind
	}
	return FailureInternal
}

// AsWorkflowError extracts a WorkflowError from the chain, or nil.
func AsWorkflowError(err error) *WorkflowError {
	var e *WorkflowError
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// IsStateMismatch reports whether err carries FailureStateMismatch.
func IsStateMismatch(err error) bool {
	return KindOf(err) == FailureStateMismatch
}

// IsMissingRequirements reports whether err carries FailureMissingRequirements.
func IsMissingRequirements(err error) bool {
	return KindOf(err) == FailureMissingRequirements
}

// IsTimeout reports whether err carries FailureTimeout.
func IsTimeout(err error) bool {
	return KindOf(err) == FailureTimeout
}
