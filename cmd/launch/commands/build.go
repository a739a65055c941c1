package commands

import (
	"github.com/spf13/cobra"

	"github.com/openlaunch/openlaunch/pkg/lifecycle"
	"github.com/openlaunch/openlaunch/pkg/lifecycle/transition"
)

func newBuildCommand() *cobra.Command {
	var projectPath string

	cmd := &cobra.Command{
		Use:   "build <project-id>",
		Short: "Build a draft project (DRAFT -> BUILT)",
		Long: `Produce build artifacts from a draft.

Booleans follow presence semantics: an explicitly passed --minify=false is
recorded as such, while an omitted flag takes the default.`,
		Example: `  # Production build
  launch build projet-alpha --minify --source-maps=false

  # Build for a specific target
  launch build projet-alpha --target staging`,
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
				Build: &lifecycle.BuildConfig{
					Target:     stringFlag(cmd, "target"),
					Minify:     boolFlag(cmd, "minify"),
					SourceMaps: boolFlag(cmd, "source-maps"),
				},
			}

			return rt.runTransition(ctx, transition.NewBuild(), projectID, tc)
		},
	}

	cmd.Flags().StringVar(&projectPath, "path", "", "project directory (default: <projectsRoot>/<project-id>)")
	cmd.Flags().String("target", "production", "build target")
	cmd.Flags().Bool("minify", true, "minify build output")
	cmd.Flags().Bool("source-maps", false, "emit source maps")

	return cmd
}
