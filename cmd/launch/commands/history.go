package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openlaunch/openlaunch/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		projectID   string
		limit       int
		offset      int
		transitions bool
		deleteRun   string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded workflow runs",
		Long: `List workflow runs from the journal, newest first. Requires persistence
to be enabled (store.path in the configuration).`,
		Example: `  # Last 20 runs across all projects
  launch history

  # Runs for one project
  launch history --project projet-alpha --limit 50

  # State changes for one project instead of runs
  launch history --project projet-alpha --transitions

  # Remove one run and its transition record
  launch history --delete 4f7c2a10-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime(ctx, cmd.Root().Version)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			if rt.store == nil {
				return fmt.Errorf("persistence is disabled: set store.path in the configuration")
			}

			if deleteRun != "" {
				if err := rt.store.DeleteRun(ctx, deleteRun); err != nil {
					return fmt.Errorf("failed to delete run: %w", err)
				}
				fmt.Printf("Deleted run %s\n", deleteRun)
				return nil
			}

			if transitions {
				if projectID == "" {
					return fmt.Errorf("--transitions requires --project")
				}
				rows, err := rt.store.ListTransitionsByProject(ctx, projectID, limit, offset)
				if err != nil {
					return fmt.Errorf("failed to list transitions: %w", err)
				}
				return printTransitions(rows)
			}

			var filter *string
			if projectID != "" {
				filter = &projectID
			}

			runs, err := rt.store.ListRuns(ctx, filter, limit, offset)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if jsonOutput {
				out, err := json.MarshalIndent(runs, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			if len(runs) == 0 {
				fmt.Println("No runs recorded.")
				return nil
			}

			fmt.Printf("%-36s  %-16s  %-8s  %-9s  %-9s  %8s  %-20s\n",
				"RUN", "PROJECT", "TYPE", "FROM", "TO", "DURATION", "STARTED")
			for _, run := range runs {
				status := string(run.Status)
				if run.Error != nil {
					status = fmt.Sprintf("%s (%s)", status, truncateError(*run.Error))
				}
				fmt.Printf("%-36s  %-16s  %-8s  %-9s  %-9s  %6dms  %-20s  %s\n",
					run.ID,
					run.ProjectID,
					run.Transition,
					run.FromState,
					run.ToState,
					run.DurationMs,
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					status,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "only runs for this project")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")
	cmd.Flags().BoolVar(&transitions, "transitions", false, "list a project's state changes instead of runs")
	cmd.Flags().StringVar(&deleteRun, "delete", "", "delete the run with this id and stop")

	return cmd
}

// printTransitions renders a project's transition history as JSON or a table.
func printTransitions(rows []*stores.TransitionRow) error {
	if jsonOutput {
		out, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(rows) == 0 {
		fmt.Println("No transitions recorded.")
		return nil
	}

	fmt.Printf("%-36s  %-8s  %-9s  %-9s  %-7s  %-20s\n",
		"TRANSITION", "TYPE", "FROM", "TO", "RESULT", "AT")
	for _, row := range rows {
		result := "ok"
		if !row.Success {
			result = "failed"
		}
		fmt.Printf("%-36s  %-8s  %-9s  %-9s  %-7s  %-20s\n",
			row.ID,
			row.Type,
			row.FromState,
			row.ToState,
			result,
			row.Timestamp.Local().Format("2006-01-02 15:04:05"),
		)
	}
	return nil
}

func truncateError(msg string) string {
	const max = 60
	if len(msg) > max {
		return msg[:max] + "..."
	}
	return msg
}
