// Package telemetry provides observability instrumentation for OpenLaunch.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified system
// for monitoring and debugging lifecycle workflows.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "openlaunch"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("workflow")
//	logger = logger.WithProjectID("projet-alpha").WithTransition("SAVE")
//	logger.Info("Starting transition workflow")
//	logger.WithError(err).Error("Workflow failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// All event and log payload maps pass through Sanitize, which redacts
// credential-like keys and truncates oversized values.
//
// # Distributed Tracing
//
// Tracing provides visibility into workflow flow and performance:
//
//	ctx, span := tel.Tracer.StartWorkflowSpan(ctx, "save", projectID, correlationID)
//	defer span.End()
//
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development), none (testing)
//
// # Metrics
//
// Prometheus metrics track workflow behavior and performance:
//
//	tel.Metrics.RecordRunStarted("save")
//	tel.Metrics.RecordRunCompleted("save", "succeeded", duration)
//	tel.Metrics.RecordStep("save", "transition-validation", stepDuration)
//	tel.Metrics.RecordError("state-mismatch")
//	tel.Metrics.RecordRecovery("state-conflict", true)
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	tel.Events.PublishWorkflowEvent(telemetry.EventWorkflowStart, projectID, "save", correlationID, data)
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// This ensures all buffered events are published and all pending traces
// are exported.
//
// # Common Metrics
//
// Key metrics exposed:
//
//   - openlaunch_workflow_runs_started_total{transition}
//   - openlaunch_workflow_runs_completed_total{transition,status}
//   - openlaunch_workflow_run_duration_seconds{transition}
//   - openlaunch_workflow_step_duration_seconds{transition,step}
//   - openlaunch_workflow_errors_total{kind}
//   - openlaunch_recovery_classifications_total{strategy,recovered}
//   - openlaunch_detector_probes_total{state,matched}
//   - openlaunch_active_workflow_runs
package telemetry
