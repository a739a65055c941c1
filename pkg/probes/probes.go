// Package probes provides the external pre-check collaborators the workflow
// engine consumes: project existence and output-path writability. The engine
// only sees the interfaces; the filesystem implementation lives here so tests
// can substitute stubs.
package probes

import (
	"context"
	"os"
	"path/filepath"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
)

// ProjectPresence is the result of a project-existence probe.
type ProjectPresence struct {
	Exists bool `json:"exists"`
}

// PathStatus is the result of an output-path probe.
type PathStatus struct {
	Writable bool `json:"writable"`
}

// ProjectChecker reports whether a project is known to the evidence store.
type ProjectChecker interface {
	ProjectExists(ctx context.Context, projectID string) (*ProjectPresence, error)
}

// PathChecker reports whether a target path can be written to.
type PathChecker interface {
	CheckOutputPath(ctx context.Context, path string) (*PathStatus, error)
}

// Filesystem implements both probes against a local projects root. A project
// exists when a directory named after it is present under the root.
type Filesystem struct {
	root string
}

// NewFilesystem creates filesystem probes rooted at the given projects
// directory.
func NewFilesystem(root string) *Filesystem {
	return &Filesystem{root: root}
}

// ProjectExists reports whether the project directory is present.
func (f *Filesystem) ProjectExists(ctx context.Context, projectID string) (*ProjectPresence, error) {
	if projectID == "" {
		return nil, lifecycle.NewValidationError("projectId", "identifiant de projet requis")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(filepath.Join(f.root, projectID))
	if err != nil {
		if os.IsNotExist(err) {
			return &ProjectPresence{Exists: false}, nil
		}
		return nil, err
	}
	return &ProjectPresence{Exists: info.IsDir()}, nil
}

// CheckOutputPath reports whether path accepts writes. When the path itself
// does not exist yet, its parent directory is probed instead, since the
// transition is allowed to create it.
func (f *Filesystem) CheckOutputPath(ctx context.Context, path string) (*PathStatus, error) {
	if path == "" {
		return nil, lifecycle.NewValidationError("path", "chemin de sortie requis")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target := path
	info, err := os.Stat(target)
	switch {
	case err == nil && !info.IsDir():
		target = filepath.Dir(path)
	case os.IsNotExist(err):
		target = filepath.Dir(path)
	case err != nil:
		return nil, err
	}

	return &PathStatus{Writable: canWrite(target)}, nil
}

// canWrite probes a directory by creating and removing a scratch file. A
// permission probe via mode bits lies under ACLs and read-only mounts.
func canWrite(dir string) bool {
	probe, err := os.CreateTemp(dir, ".launch-probe-*")
	if err != nil {
		return false
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return true
}
