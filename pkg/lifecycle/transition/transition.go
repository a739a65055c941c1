// Package transition implements the per-transition lifecycle components: the
// validator (is this transition applicable, and is the context complete), the
// actor (produce the transition record), and the cleanup decision function
// (which follow-up actions to run).
//
// Validators are two-tier by contract: structural problems (bad arguments, an
// illegal state pair) are hard errors, while missing context data is a soft
// failure reported through ValidationResult.CanTransition. Callers rely on
// that distinction to tell "transition doesn't apply" from "caller didn't
// supply enough".
package transition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
)

// Definition is the complete behavior of one transition type, consumed by the
// workflow engine. Every shipped transition (SAVE, BUILD, DEPLOY, START, STOP,
// EDIT) implements it.
type Definition interface {
	// Type returns the transition name.
	Type() lifecycle.TransitionType

	// From returns the single legal starting state.
	From() lifecycle.State

	// To returns the single legal ending state.
	To() lifecycle.State

	// CorrelationID generates the per-run traceability token. It is used only
	// for logs and metrics, never for idempotency.
	CorrelationID(projectID string) string

	// ValidateInput checks caller input before any state is touched. It
	// returns a ValidationError on an empty project id, a nil context, or a
	// missing required top-level field.
	ValidateInput(projectID string, tc *lifecycle.TransitionContext) error

	// Validate confirms the state pair and enumerates missing context fields.
	Validate(ctx context.Context, from, to lifecycle.State, tc *lifecycle.TransitionContext) (*lifecycle.ValidationResult, error)

	// Execute performs the logical state change and returns the transition
	// record. It has no failure path beyond malformed arguments; real side
	// effects belong to external collaborators, not the actor.
	Execute(ctx context.Context, projectID string, tc *lifecycle.TransitionContext) (*lifecycle.TransitionRecord, error)

	// Cleanup decides the follow-up actions for a completed transition. It is
	// a pure decision function; it performs no I/O.
	Cleanup(ctx context.Context, rec *lifecycle.TransitionRecord, projectID string) (*lifecycle.CleanupResult, error)
}

var inputValidator = validator.New()

// inputEnvelope is the shared shape of the required top-level input fields,
// checked with struct tags before any transition work begins.
type inputEnvelope struct {
	ProjectID   string `validate:"required"`
	ProjectPath string `validate:"required"`
}

// validateInput applies the shared step-1 checks.
func validateInput(projectID string, tc *lifecycle.TransitionContext) error {
	if tc == nil {
		return lifecycle.NewValidationError("context", "contexte de transition requis")
	}
	env := inputEnvelope{ProjectID: projectID, ProjectPath: tc.ProjectPath}
	if err := inputValidator.Struct(env); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return lifecycle.NewValidationError(verrs[0].Field(), "champ requis")
		}
		return lifecycle.NewValidationError("", err.Error())
	}
	return nil
}

// checkPair applies the hard validation tier: argument presence first, then
// the state pair. The pair is checked before the context so an illegal pair
// fails even with a nil context.
func checkPair(t lifecycle.TransitionType, wantFrom, wantTo, from, to lifecycle.State, tc *lifecycle.TransitionContext) error {
	if from == "" || to == "" {
		return lifecycle.NewValidationError("state", "états source et cible requis")
	}
	if !from.Valid() || !to.Valid() {
		return lifecycle.NewValidationError("state", fmt.Sprintf("état inconnu: %s->%s", from, to))
	}
	if from != wantFrom || to != wantTo {
		return lifecycle.NewStateError(t, wantFrom, wantTo, from, to)
	}
	if tc == nil {
		return lifecycle.NewValidationError("context", "contexte de transition requis")
	}
	return nil
}

// require appends a "<field> manquant" requirement when the field is absent.
// The literal message format is load-bearing; callers join and parse it.
func require(reqs []string, field string, present bool) []string {
	if present {
		return reqs
	}
	return append(reqs, field+" manquant")
}

// result builds the soft-tier validation outcome.
func result(reqs []string) *lifecycle.ValidationResult {
	return &lifecycle.ValidationResult{
		Valid:         true,
		CanTransition: len(reqs) == 0,
		Requirements:  reqs,
	}
}

// checkActorArgs applies the actor contract: only malformed arguments fail.
func checkActorArgs(projectID string, tc *lifecycle.TransitionContext) error {
	if projectID == "" {
		return lifecycle.NewValidationError("projectId", "identifiant de projet requis")
	}
	if tc == nil {
		return lifecycle.NewValidationError("context", "contexte de transition requis")
	}
	return nil
}

// checkCleanupArgs applies the cleanup contract.
func checkCleanupArgs(rec *lifecycle.TransitionRecord, projectID string) error {
	if rec == nil {
		return lifecycle.NewValidationError("transitionRecord", "enregistrement de transition requis")
	}
	if projectID == "" {
		return lifecycle.NewValidationError("projectId", "identifiant de projet requis")
	}
	return nil
}

// boolDefault resolves a presence-checked boolean: nil means "not supplied",
// which takes the default. An explicit false is preserved.
func boolDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// strDefault resolves an optional string field.
func strDefault(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

// intDefault resolves an optional int field.
func intDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// correlationID builds the standard "<transition>-<project>-<millis>" token.
func correlationID(t lifecycle.TransitionType, projectID string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%d", transitionSlug(t), projectID, now.UnixMilli())
}

func transitionSlug(t lifecycle.TransitionType) string {
	switch t {
	case lifecycle.TransitionSave:
		return "save"
	case lifecycle.TransitionBuild:
		return "build"
	case lifecycle.TransitionDeploy:
		return "deploy"
	case lifecycle.TransitionStart:
		return "start"
	case lifecycle.TransitionStop:
		return "stop"
	case lifecycle.TransitionEdit:
		return "edit"
	}
	return "transition"
}
