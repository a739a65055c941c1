package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"

	"github.com/openlaunch/openlaunch/pkg/config"
	"github.com/openlaunch/openlaunch/pkg/lifecycle"
	"github.com/openlaunch/openlaunch/pkg/lifecycle/detect"
	"github.com/openlaunch/openlaunch/pkg/lifecycle/recovery"
	"github.com/openlaunch/openlaunch/pkg/lifecycle/transition"
	"github.com/openlaunch/openlaunch/pkg/lifecycle/workflow"
	"github.com/openlaunch/openlaunch/pkg/probes"
	"github.com/openlaunch/openlaunch/pkg/stores"
	"github.com/openlaunch/openlaunch/pkg/telemetry"
)

// runtime wires the engine collaborators from the loaded configuration. One
// runtime serves one command invocation.
type runtime struct {
	cfg        *config.Config
	tel        *telemetry.Telemetry
	store      *stores.SQLiteStore
	recorder   workflow.Recorder
	detectors  *detect.Registry
	fs         *probes.Filesystem
	locks      *workflow.ProjectLocks
	classifier *recovery.Classifier
	root       string
}

// newRuntime loads the configuration and builds every collaborator.
func newRuntime(ctx context.Context, version string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	tcfg := cfg.Telemetry(version)
	if verbose {
		tcfg.Logging.Level = "debug"
	}

	tel, err := telemetry.NewTelemetry(tcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	if err := tel.StartMetricsServer(); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	root, err := cfg.AbsProjectsRoot()
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:       cfg,
		tel:       tel,
		detectors: detect.NewRegistry(),
		fs:        probes.NewFilesystem(root),
		locks:     workflow.NewProjectLocks(),
		root:      root,
	}
	rt.classifier = recovery.NewClassifier(rt.detectors, tel.Logger)

	if cfg.Store.Path != "" {
		op := telemetry.StartOperation(tel.WithContext(ctx), "store.open",
			attribute.String("store.path", cfg.Store.Path))
		store, err := openStore(op.Ctx, cfg)
		op.End(err)
		if err != nil {
			return nil, err
		}
		op.Logger.WithField("elapsed", op.Elapsed().String()).Debug("Store ready")

		journal := stores.NewJournal(store)
		journal.SubscribeEvents(ctx, tel.Events)
		rt.store = store
		rt.recorder = journal
	}

	return rt, nil
}

// openStore opens the SQLite store and brings its schema up to date.
func openStore(ctx context.Context, cfg *config.Config) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:         cfg.Store.Path,
		MaxOpenConns: cfg.Store.MaxOpenConns,
		MaxIdleConns: cfg.Store.MaxIdleConns,
	})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// engine builds a workflow engine for one transition definition.
func (rt *runtime) engine(def transition.Definition) (*workflow.Engine, error) {
	return workflow.NewEngine(workflow.Config{
		Definition:  def,
		Detectors:   rt.detectors,
		Projects:    rt.fs,
		Paths:       rt.fs,
		Classifier:  rt.classifier,
		Locks:       rt.locks,
		Recorder:    rt.recorder,
		Telemetry:   rt.tel,
		StepTimeout: rt.cfg.Workflow.StepTimeout,
	})
}

// runOptions maps the configured retry policy onto one run.
func (rt *runtime) runOptions() workflow.RunOptions {
	allow := rt.cfg.Workflow.AllowRetry
	return workflow.RunOptions{AllowRetry: &allow}
}

// projectPath resolves a project's directory under the projects root.
func (rt *runtime) projectPath(projectID string) string {
	return filepath.Join(rt.root, projectID)
}

// close flushes telemetry and closes the store.
func (rt *runtime) close(ctx context.Context) {
	if rt.store != nil {
		_ = rt.store.Close()
	}
	_ = rt.tel.Shutdown(ctx)
}

// runTransition executes one workflow run and prints the outcome.
func (rt *runtime) runTransition(ctx context.Context, def transition.Definition, projectID string, tc *lifecycle.TransitionContext) error {
	eng, err := rt.engine(def)
	if err != nil {
		return err
	}

	res, err := eng.Run(ctx, projectID, tc, rt.runOptions())
	if err != nil {
		return err
	}

	return printResult(res)
}

// printResult renders a workflow result as JSON or a short human summary.
func printResult(res *workflow.Result) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Printf("%s %s: %s -> %s (%s)\n",
		res.Transition, res.ProjectID, res.FromState, res.FinalState, res.CorrelationID)
	if res.Metrics != nil {
		fmt.Printf("  duration: %s, steps: %d\n", res.Metrics.Duration, len(res.Metrics.Steps))
	}
	if res.Cleanup != nil && len(res.Cleanup.Actions) > 0 {
		fmt.Println("  cleanup actions:")
		for _, a := range res.Cleanup.Actions {
			fmt.Printf("    - %s\n", a)
		}
	}
	if len(res.StoppedServices) > 0 {
		fmt.Printf("  stopped services: %v\n", res.StoppedServices)
	}
	return nil
}
