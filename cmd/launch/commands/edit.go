package commands

import (
	"github.com/spf13/cobra"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
	"github.com/openlaunch/openlaunch/pkg/lifecycle/transition"
)

func newEditCommand() *cobra.Command {
	var projectPath string

	cmd := &cobra.Command{
		Use:   "edit <project-id>",
		Short: "Reopen a built project for editing (BUILT -> DRAFT)",
		Long: `Reopen a built project for editing.

The edit contract requires an explicit decision on backing up the existing
build and on preserving uncommitted changes; both flags must be passed.`,
		Example: `  # Full edit, keeping a backup of the current build
  launch edit projet-alpha --mode full --backup --preserve

  # Quick edit without a backup
  launch edit projet-alpha --mode partial --backup=false --preserve`,
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

			tc := &lifecycle.TransitionContext{
				ProjectID:   projectID,
				ProjectPath: projectPath,
				Edit: &lifecycle.EditConfig{
					EditMode:        stringFlag(cmd, "mode"),
					BackupBuild:     boolFlag(cmd, "backup"),
					PreserveChanges: boolFlag(cmd, "preserve"),
				},
			}

			return rt.runTransition(ctx, transition.NewEdit(), projectID, tc)
		},
	}

	cmd.Flags().StringVar(&projectPath, "path", "", "project directory (default: <projectsRoot>/<project-id>)")
	cmd.Flags().String("mode", "full", "edit mode")
	cmd.Flags().Bool("backup", true, "back up the current build before editing")
	cmd.Flags().Bool("preserve", true, "preserve uncommitted changes")

	return cmd
}
