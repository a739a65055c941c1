package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordingTracer builds a sampling tracer with an in-memory span recorder
// attached, so tests can inspect the spans the helpers produce.
func recordingTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	tr, err := NewTracer(TracingConfig{
		Enabled:      true,
		Exporter:     "none",
		SamplingRate: 1.0,
	}, "openlaunch-test", "dev", "test")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	rec := tracetest.NewSpanRecorder()
	tr.provider.RegisterSpanProcessor(rec)
	return tr, rec
}

func spanByName(t *testing.T, spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range spans {
		if s.Name() == name {
			return s
		}
	}
	t.Fatalf("Expected a span named %q, got %d other spans", name, len(spans))
	return nil
}

func attrValue(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestWorkflowSpanHierarchy(t *testing.T) {
	tr, rec := recordingTracer(t)

	ctx := context.Background()
	runCtx, runSpan := tr.StartWorkflowSpan(ctx, "save", "projet-alpha", "save-projet-alpha-1")
	stepCtx, stepSpan := tr.StartStepSpan(runCtx, "save", "state-verification")
	_, detSpan := tr.StartDetectorSpan(stepCtx, "DRAFT", "/tmp/projet-alpha")

	RecordSuccess(detSpan)
	detSpan.End()
	RecordSuccess(stepSpan)
	stepSpan.End()
	RecordSuccess(runSpan)
	runSpan.End()

	spans := rec.Ended()
	if len(spans) != 3 {
		t.Fatalf("Expected 3 spans, got %d", len(spans))
	}

	run := spanByName(t, spans, "workflow.save")
	step := spanByName(t, spans, "step.state-verification")
	det := spanByName(t, spans, "detector.probe")

	if step.Parent().SpanID() != run.SpanContext().SpanID() {
		t.Error("Expected the step span to be a child of the workflow span")
	}
	if det.Parent().SpanID() != step.SpanContext().SpanID() {
		t.Error("Expected the detector span to be a child of the step span")
	}

	if v, ok := attrValue(run, "correlation.id"); !ok || v.AsString() != "save-projet-alpha-1" {
		t.Errorf("Expected correlation.id on the workflow span, got %v", v.AsString())
	}
	if v, ok := attrValue(step, "step.name"); !ok || v.AsString() != "state-verification" {
		t.Errorf("Expected step.name on the step span, got %v", v.AsString())
	}
	if v, ok := attrValue(det, "detector.state"); !ok || v.AsString() != "DRAFT" {
		t.Errorf("Expected detector.state on the detector span, got %v", v.AsString())
	}
}

func TestRecordErrorSetsSpanStatus(t *testing.T) {
	tr, rec := recordingTracer(t)

	_, span := tr.StartStepSpan(context.Background(), "build", "transition-execution")
	RecordError(span, errors.New("dist introuvable"))
	span.End()

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	status := spans[0].Status()
	if status.Code != codes.Error {
		t.Errorf("Expected error status, got %v", status.Code)
	}
	if status.Description != "dist introuvable" {
		t.Errorf("Expected the error message as description, got %q", status.Description)
	}
}

func TestWorkflowAndRecoveryEvents(t *testing.T) {
	tr, rec := recordingTracer(t)

	_, span := tr.StartWorkflowSpan(context.Background(), "deploy", "projet-alpha", "deploy-projet-alpha-1")
	AddWorkflowEvent(span, EventTypeWorkflowStart, "Workflow started")
	AddRecoveryEvent(span, "filesystem-failure", true)
	span.End()

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}

	events := spans[0].Events()
	if len(events) != 2 {
		t.Fatalf("Expected 2 span events, got %d", len(events))
	}
	if events[0].Name != EventTypeWorkflowStart {
		t.Errorf("Expected a %s event, got %s", EventTypeWorkflowStart, events[0].Name)
	}
	if events[1].Name != "recovery.classified" {
		t.Errorf("Expected a recovery.classified event, got %s", events[1].Name)
	}

	var strategy string
	var recovered bool
	for _, kv := range events[1].Attributes {
		switch kv.Key {
		case "recovery.strategy":
			strategy = kv.Value.AsString()
		case "recovery.recovered":
			recovered = kv.Value.AsBool()
		}
	}
	if strategy != "filesystem-failure" || !recovered {
		t.Errorf("Expected strategy filesystem-failure recovered=true, got %s recovered=%v", strategy, recovered)
	}
}
