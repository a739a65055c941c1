package detect

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
)

// projectDir lays out a project directory holding the given evidence files.
func projectDir(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, rel := range files {
		full := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("Failed to create evidence dir: %v", err)
		}
		if err := os.WriteFile(full, []byte("{}"), 0o644); err != nil {
			t.Fatalf("Failed to write evidence file: %v", err)
		}
	}
	return dir
}

func TestDetectorEvidenceLayouts(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  lifecycle.State
	}{
		{"empty directory", nil, lifecycle.StateVoid},
		{"draft", []string{ProjectManifest}, lifecycle.StateDraft},
		{"built", []string{ProjectManifest, BuildManifest}, lifecycle.StateBuilt},
		{"online", []string{ProjectManifest, BuildManifest, DeploymentManifest}, lifecycle.StateOnline},
		{"offline", []string{ProjectManifest, BuildManifest, DeploymentManifest, OfflineMarker}, lifecycle.StateOffline},
	}

	reg := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := projectDir(t, tt.files...)
			state, detections, err := reg.Sweep(context.Background(), dir)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if state != tt.want {
				t.Errorf("Expected state %s, got %s", tt.want, state)
			}
			if len(detections) != 4 {
				t.Errorf("Expected 4 detections, got %d", len(detections))
			}
		})
	}
}

func TestDetectionsAreMutuallyExclusive(t *testing.T) {
	// Each evidence layout must match at most one detector; two confirmed
	// states at once would make the inferred state ambiguous.
	layouts := [][]string{
		nil,
		{ProjectManifest},
		{ProjectManifest, BuildManifest},
		{ProjectManifest, BuildManifest, DeploymentManifest},
		{ProjectManifest, BuildManifest, DeploymentManifest, OfflineMarker},
		{BuildManifest},
		{DeploymentManifest, OfflineMarker},
	}

	reg := NewRegistry()
	for _, files := range layouts {
		dir := projectDir(t, files...)
		_, detections, err := reg.Sweep(context.Background(), dir)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		matched := 0
		for _, det := range detections {
			if det.Matched() {
				matched++
			}
		}
		if matched > 1 {
			t.Errorf("Layout %v matched %d states, expected at most 1", files, matched)
		}
	}
}

func TestDetectIsIdempotent(t *testing.T) {
	dir := projectDir(t, ProjectManifest, BuildManifest)
	d := NewBuiltDetector()

	first, err := d.Detect(context.Background(), dir)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	second, err := d.Detect(context.Background(), dir)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if first.State != second.State || first.Confidence != second.Confidence {
		t.Errorf("Expected identical detections on unchanged evidence, got %+v then %+v", first, second)
	}
}

func TestDetectEmptyPathIsValidationError(t *testing.T) {
	for _, d := range []Detector{NewDraftDetector(), NewBuiltDetector(), NewOnlineDetector(), NewOfflineDetector()} {
		_, err := d.Detect(context.Background(), "")
		if !lifecycle.IsValidationError(err) {
			t.Errorf("%s: expected ValidationError for empty path, got: %v", d.State(), err)
		}
	}
}

func TestDetectMissingDirectoryIsAbsence(t *testing.T) {
	d := NewDraftDetector()
	det, err := d.Detect(context.Background(), filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("Expected no error for missing directory, got: %v", err)
	}
	if det.Matched() {
		t.Error("Expected no match for a missing directory")
	}
	if det.Confidence != 0 {
		t.Errorf("Expected confidence 0, got %d", det.Confidence)
	}
}

func TestDetectConfidenceIsBinary(t *testing.T) {
	dir := projectDir(t, ProjectManifest)
	d := NewDraftDetector()

	det, err := d.Detect(context.Background(), dir)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if det.Confidence != 100 {
		t.Errorf("Expected confidence 100 on match, got %d", det.Confidence)
	}
	if det.State != lifecycle.StateDraft {
		t.Errorf("Expected state DRAFT on match, got %q", det.State)
	}
}

func TestDetectDirectoryIsNotEvidence(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ProjectManifest), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	det, err := NewDraftDetector().Detect(context.Background(), dir)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if det.Matched() {
		t.Error("Expected a directory named like the manifest not to count as evidence")
	}
}

func TestDetectCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDraftDetector().Detect(ctx, t.TempDir())
	if err == nil {
		t.Fatal("Expected error on cancelled context")
	}
}

func TestRegistryForState(t *testing.T) {
	reg := NewRegistry()

	for _, state := range []lifecycle.State{lifecycle.StateDraft, lifecycle.StateBuilt, lifecycle.StateOnline, lifecycle.StateOffline} {
		d := reg.ForState(state)
		if d == nil {
			t.Fatalf("Expected detector for %s", state)
		}
		if d.State() != state {
			t.Errorf("Expected detector state %s, got %s", state, d.State())
		}
	}

	if reg.ForState(lifecycle.StateVoid) != nil {
		t.Error("Expected no detector for VOID")
	}
}

func TestRegistryRegisterReplaces(t *testing.T) {
	reg := NewRegistry()
	custom := &fileDetector{state: lifecycle.StateDraft, present: []string{"draft.lock"}}
	reg.Register(custom)

	if reg.ForState(lifecycle.StateDraft) != custom {
		t.Error("Expected Register to replace the detector for its state")
	}
}
