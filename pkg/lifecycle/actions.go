package lifecycle

import "fmt"

// Action names a follow-up task emitted by cleanup or recovery. Actions are a
// closed set; executing them is delegated to an external runner, this core only
// decides which ones apply and in what order.
type Action string

// Actions shared by every transition.
const (
	ActionClearValidationCache Action = "clear-validation-cache"
	ActionInvalidateStateCache Action = "invalidate-state-cache"
)

// SAVE cleanup actions.
const (
	ActionFinalizeSave       Action = "finalize-save"
	ActionUpdateSaveIndex    Action = "update-save-index"
	ActionRollbackSave       Action = "rollback-save"
	ActionCleanupPartialSave Action = "cleanup-partial-save"
	ActionCleanupOldSaveLogs Action = "cleanup-old-save-logs"
)

// EDIT cleanup actions.
const (
	ActionArchivePreviousBuild Action = "archive-previous-build"
	ActionSetupEditEnvironment Action = "setup-edit-environment"
	ActionIndexEditableSources Action = "index-editable-sources"
	ActionRollbackEdit         Action = "rollback-edit"
	ActionRestoreBuildState    Action = "restore-build-state"
	ActionCleanupOldEditLogs   Action = "cleanup-old-edit-logs"
)

// STOP cleanup actions.
const (
	ActionFinalizeShutdown       Action = "finalize-shutdown"
	ActionReleasePorts           Action = "release-ports"
	ActionArchiveServiceLogs     Action = "archive-service-logs"
	ActionRollbackStop           Action = "rollback-stop"
	ActionRestartPartialServices Action = "restart-partial-services"
	ActionCleanupOldStopLogs     Action = "cleanup-old-stop-logs"
)

// BUILD cleanup actions.
const (
	ActionArchiveBuildArtifacts Action = "archive-build-artifacts"
	ActionUpdateBuildIndex      Action = "update-build-index"
	ActionRollbackBuild         Action = "rollback-build"
	ActionCleanupPartialBuild   Action = "cleanup-partial-build"
	ActionCleanupOldBuildLogs   Action = "cleanup-old-build-logs"
)

// DEPLOY cleanup actions.
const (
	ActionFinalizeDeployment       Action = "finalize-deployment"
	ActionRegisterDeployment       Action = "register-deployment"
	ActionRollbackDeployment       Action = "rollback-deployment"
	ActionCleanupPartialDeployment Action = "cleanup-partial-deployment"
	ActionCleanupOldDeployLogs     Action = "cleanup-old-deploy-logs"
)

// START cleanup actions.
const (
	ActionRegisterServices    Action = "register-services"
	ActionWarmServiceCache    Action = "warm-service-cache"
	ActionRollbackStart       Action = "rollback-start"
	ActionStopPartialServices Action = "stop-partial-services"
	ActionCleanupOldStartLogs Action = "cleanup-old-start-logs"
)

// Recovery actions.
const (
	ActionAcceptExistingState       Action = "accept-existing-state"
	ActionVerifyCurrentState        Action = "verify-current-state"
	ActionReportStateConflict       Action = "report-state-conflict"
	ActionReportMissingRequirements Action = "report-missing-requirements"
	ActionVerifyProjectRegistry     Action = "verify-project-registry"
	ActionRetryFilesystemCheck      Action = "retry-filesystem-check"
	ActionReportFilesystemFailure   Action = "report-filesystem-failure"
	ActionRollbackPartialTransition Action = "rollback-partial-transition"
	ActionReverifyState             Action = "re-verify-state"
	ActionCollectDiagnostics        Action = "collect-diagnostics"
)

// ClearDomainCacheAction returns the per-transition cache invalidation action
// appended to every recovery result.
func ClearDomainCacheAction(t TransitionType) Action {
	switch t {
	case TransitionSave:
		return Action("clear-save-cache")
	case TransitionBuild:
		return Action("clear-build-cache")
	case TransitionDeploy:
		return Action("clear-deploy-cache")
	case TransitionStart:
		return Action("clear-start-cache")
	case TransitionStop:
		return Action("clear-stop-cache")
	case TransitionEdit:
		return Action("clear-edit-cache")
	}
	return Action(fmt.Sprintf("clear-%s-cache", t))
}
