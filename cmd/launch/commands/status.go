package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
	"github.com/openlaunch/openlaunch/pkg/lifecycle/detect"
)

func newStatusCommand() *cobra.Command {
	var (
		projectPath string
		watch       bool
	)

	cmd := &cobra.Command{
		Use:   "status <project-id>",
		Short: "Show the detected lifecycle state of a project",
		Long: `Probe the project's evidence files and report which lifecycle state they
confirm. The state is inferred from the directory contents, never read from
a database, so the answer always reflects what is actually on disk.

With --watch the command keeps running and re-probes whenever a file in the
project directory changes.`,
		Example: `  # One-shot status
  launch status projet-alpha

  # Follow evidence changes live
  launch status projet-alpha --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			projectID := args[0]

			rt, err := newRuntime(ctx, cmd.Root().Version)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			if projectPath == "" {
				projectPath = rt.projectPath(projectID)
			}

			if err := printStatus(ctx, rt.detectors, projectID, projectPath); err != nil {
				return err
			}

			if !watch {
				return nil
			}
			return watchStatus(ctx, rt, projectID, projectPath)
		},
	}

	cmd.Flags().StringVar(&projectPath, "path", "", "project directory (defaults to <projectsRoot>/<project-id>)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-probe on filesystem changes")

	return cmd
}

// statusReport is the JSON shape of one probe sweep.
type statusReport struct {
	ProjectID  string                                `json:"projectId"`
	Path       string                                `json:"path"`
	State      string                                `json:"state"`
	Detections map[lifecycle.State]*detect.Detection `json:"detections"`
	ProbedAt   time.Time                             `json:"probedAt"`
}

func printStatus(ctx context.Context, reg *detect.Registry, projectID, projectPath string) error {
	state, detections, err := reg.Sweep(ctx, projectPath)
	if err != nil {
		return err
	}

	if jsonOutput {
		report := statusReport{
			ProjectID:  projectID,
			Path:       projectPath,
			State:      string(state),
			Detections: detections,
			ProbedAt:   time.Now().UTC(),
		}
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	label := string(state)
	if state == lifecycle.StateVoid {
		label = "unknown (no evidence matched)"
	}
	fmt.Printf("Project:  %s\n", projectID)
	fmt.Printf("Path:     %s\n", projectPath)
	fmt.Printf("State:    %s\n", label)
	fmt.Println("Evidence:")

	states := make([]lifecycle.State, 0, len(detections))
	for s := range detections {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })

	for _, s := range states {
		det := detections[s]
		marker := " "
		if det.Matched() {
			marker = "*"
		}
		fmt.Printf("  %s %-8s confidence=%d", marker, s, det.Confidence)
		if len(det.Evidence) > 0 {
			fmt.Printf("  (%v)", det.Evidence)
		}
		fmt.Println()
	}
	return nil
}

// watchStatus re-probes the project whenever its directory changes. Events
// are debounced so a burst of writes produces a single sweep.
func watchStatus(ctx context.Context, rt *runtime, projectID, projectPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchDirectory(watcher, projectPath); err != nil {
		return fmt.Errorf("failed to watch %s: %w", projectPath, err)
	}

	fmt.Fprintf(os.Stderr, "Watching %s for changes (Ctrl-C to stop)...\n", projectPath)

	const debounce = 500 * time.Millisecond
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// New subdirectories must be added to the watch set so
			// evidence created inside them is seen.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watchDirectory(watcher, event.Name)
				}
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				if err := printStatus(ctx, rt.detectors, projectID, projectPath); err != nil {
					fmt.Fprintf(os.Stderr, "probe failed: %v\n", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watcher error: %v\n", err)
		}
	}
}

func watchDirectory(watcher *fsnotify.Watcher, dirPath string) error {
	return filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
