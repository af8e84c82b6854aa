package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bargehq/barge/internal/shell/runner"
)

func newDownCmd(appFn func() (*app, error)) *cobra.Command {
	var (
		projectName   string
		removeVolumes bool
		timeout       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Tear a stack down",
		Long: `Stop and remove a stack's containers in reverse start order, then remove
its network. Named volumes survive unless --volumes is given, so a plain
down followed by an up resumes with the same data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFn()
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.runner.Down(cmd.Context(), runner.DownOptions{
				ProjectName:   resolveProjectName(projectName),
				RemoveVolumes: removeVolumes,
				Timeout:       timeout,
			})
			if err != nil {
				return &ExitError{Op: "down", Err: err, ExitCode: ExitOrchestrationError}
			}

			out := NewOutput("table")
			out.Success(fmt.Sprintf("stack %q is down: %d containers stopped, %d volumes removed",
				result.Stack.Name, result.StoppedContainers, len(result.RemovedVolumes)))
			return nil
		},
	}

	cmd.Flags().StringVar(&projectName, "project-name", "", "Stack name (default: working directory name)")
	cmd.Flags().BoolVar(&removeVolumes, "volumes", false, "Also remove the stack's named volumes")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-container stop timeout before the engine kills it")

	return cmd
}
