// Package detect implements the read-only state detectors. A detector inspects
// on-disk evidence under a project root and reports whether the project is in
// the detector's state.
//
// Confidence is reported on a 0-100 scale, but the shipped detectors are
// deliberately binary: evidence either matches (100) or it does not (0).
// Callers must compare against ConfidenceThreshold and must not rely on
// intermediate values.
package detect

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
)

// ConfidenceThreshold is the cut-off above which a detection counts as a
// confirmed state.
const ConfidenceThreshold = 70

// Evidence file layout under a project root. The project manifest marks a
// draft, the build manifest marks a completed build, the deployment manifest
// marks a deployment, and the offline marker distinguishes OFFLINE from ONLINE.
const (
	ProjectManifest    = "project.json"
	BuildManifest      = "dist/build.json"
	DeploymentManifest = "deploy/deployment.json"
	OfflineMarker      = "deploy/.offline"
)

// Detection is the result of probing one state's evidence. State is set only
// when the evidence matched; otherwise it is empty and Confidence is 0.
type Detection struct {
	State      lifecycle.State `json:"state,omitempty"`
	Confidence int             `json:"confidence"`
	Evidence   []string        `json:"evidence"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Matched reports whether the detection confirms the probed state.
func (d *Detection) Matched() bool {
	return d.Confidence >= ConfidenceThreshold
}

// Detector probes external evidence for a single lifecycle state. Detection is
// read-only and idempotent: probing unchanged evidence twice returns identical
// state and confidence.
type Detector interface {
	// State returns the lifecycle state this detector recognizes.
	State() lifecycle.State

	// Detect probes the evidence path. It fails with a ValidationError when
	// the path is empty; a missing directory is not an error, it is simply
	// absence of evidence.
	Detect(ctx context.Context, evidencePath string) (*Detection, error)
}

// fileDetector is the common shape of the four shipped detectors: a target
// state, evidence files that must be present, and evidence files that must be
// absent.
type fileDetector struct {
	state   lifecycle.State
	present []string
	absent  []string
}

func (d *fileDetector) State() lifecycle.State {
	return d.state
}

func (d *fileDetector) Detect(ctx context.Context, evidencePath string) (*Detection, error) {
	if evidencePath == "" {
		return nil, lifecycle.NewValidationError("evidencePath", "chemin d'évidence requis")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	det := &Detection{
		Evidence:  make([]string, 0, len(d.present)+len(d.absent)),
		Timestamp: time.Now(),
	}

	matched := true
	for _, rel := range d.present {
		full := filepath.Join(evidencePath, rel)
		if isRegularFile(full) {
			det.Evidence = append(det.Evidence, "présent: "+rel)
		} else {
			det.Evidence = append(det.Evidence, "absent: "+rel)
			matched = false
		}
	}
	for _, rel := range d.absent {
		full := filepath.Join(evidencePath, rel)
		if isRegularFile(full) {
			det.Evidence = append(det.Evidence, "présent (attendu absent): "+rel)
			matched = false
		} else {
			det.Evidence = append(det.Evidence, "absent (attendu): "+rel)
		}
	}

	if matched {
		det.State = d.state
		det.Confidence = 100
	}
	return det, nil
}

// isRegularFile reports whether path names an existing regular file. Symlinks
// are followed; directories and special files do not count as evidence.
func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// NewDraftDetector recognizes DRAFT: a project manifest with neither build
// output nor a deployment.
func NewDraftDetector() Detector {
	return &fileDetector{
		state:   lifecycle.StateDraft,
		present: []string{ProjectManifest},
		absent:  []string{BuildManifest, DeploymentManifest},
	}
}

// NewBuiltDetector recognizes BUILT: a build manifest with no deployment.
func NewBuiltDetector() Detector {
	return &fileDetector{
		state:   lifecycle.StateBuilt,
		present: []string{BuildManifest},
		absent:  []string{DeploymentManifest},
	}
}

// NewOnlineDetector recognizes ONLINE: a deployment manifest without the
// offline marker.
func NewOnlineDetector() Detector {
	return &fileDetector{
		state:   lifecycle.StateOnline,
		present: []string{DeploymentManifest},
		absent:  []string{OfflineMarker},
	}
}

// NewOfflineDetector recognizes OFFLINE: a deployment manifest plus the
// offline marker.
func NewOfflineDetector() Detector {
	return &fileDetector{
		state:   lifecycle.StateOffline,
		present: []string{DeploymentManifest, OfflineMarker},
	}
}

// Registry resolves detectors by state. The workflow engine and the recovery
// classifier both go through a registry so tests can substitute probes.
type Registry struct {
	detectors map[lifecycle.State]Detector
}

// NewRegistry creates a registry holding the four standard detectors.
func NewRegistry() *Registry {
	r := &Registry{detectors: make(map[lifecycle.State]Detector)}
	for _, d := range []Detector{
		NewDraftDetector(),
		NewBuiltDetector(),
		NewOnlineDetector(),
		NewOfflineDetector(),
	} {
		r.detectors[d.State()] = d
	}
	return r
}

// Register replaces the detector for its state.
func (r *Registry) Register(d Detector) {
	r.detectors[d.State()] = d
}

// ForState returns the detector for the given state, or nil if none is
// registered. VOID has no detector: it is the absence of every other state.
func (r *Registry) ForState(state lifecycle.State) Detector {
	return r.detectors[state]
}

// Sweep probes every registered detector and returns the confirmed state, or
// StateVoid when nothing matched. Detections for all states are returned for
// diagnostics, keyed by state.
func (r *Registry) Sweep(ctx context.Context, evidencePath string) (lifecycle.State, map[lifecycle.State]*Detection, error) {
	results := make(map[lifecycle.State]*Detection, len(r.detectors))
	current := lifecycle.StateVoid
	for state, d := range r.detectors {
		det, err := d.Detect(ctx, evidencePath)
		if err != nil {
			return lifecycle.StateVoid, nil, err
		}
		results[state] = det
		if det.Matched() {
			current = state
		}
	}
	return current, results, nil
}
