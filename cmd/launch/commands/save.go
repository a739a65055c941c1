package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
	"github.com/openlaunch/openlaunch/pkg/lifecycle/transition"
)

func newSaveCommand() *cobra.Command {
	var (
		projectPath string
		dataJSON    string
	)

	cmd := &cobra.Command{
		Use:   "save <project-id>",
		Short: "Save draft content (DRAFT -> DRAFT)",
		Long: `Persist a project's draft content in place.

The project must currently be in DRAFT state; the save workflow verifies
that against the evidence in the project directory before and after the
transition.`,
		Example: `  # Save with inline payload
  launch save projet-alpha --data '{"pages":3}'

  # Save with an explicit project path
  launch save projet-alpha --path /srv/projects/projet-alpha --data '{}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			projectID := args[0]

			rt, err := newRuntime(ctx, cmd.Root().Version)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			var saveData map[string]any
			if dataJSON != "" {
				if err := json.Unmarshal([]byte(dataJSON), &saveData); err != nil {
					return fmt.Errorf("invalid --data payload: %w", err)
				}
			}

			if projectPath == "" {
				projectPath = rt.projectPath(projectID)
			}

			tc := &lifecycle.TransitionContext{
				ProjectID:   projectID,
				ProjectPath: projectPath,
				Save:        saveData,
			}

			return rt.runTransition(ctx, transition.NewSave(), projectID, tc)
		},
	}

	cmd.Flags().StringVar(&projectPath, "path", "", "project directory (default: <projectsRoot>/<project-id>)")
	cmd.Flags().StringVar(&dataJSON, "data", "", "save payload as JSON")

	return cmd
}
