package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bargehq/barge/internal/shell/runner"
)

func newUpCmd(appFn func() (*app, error)) *cobra.Command {
	var (
		file        string
		envFiles    []string
		projectName string
		build       bool
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Bring a stack up",
		Long: `Bring a stack up: parse the topology, build or pull images, then start
every service in dependency order. Services gated on a health check start
only after the dependency reports healthy; a failed dependency blocks its
dependents and nothing else. Services that already started are never
rolled back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFn()
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.runner.Up(cmd.Context(), runner.UpOptions{
				File:        file,
				ProjectName: projectName,
				EnvFiles:    envFiles,
				ForceBuild:  build,
				Timeout:     timeout,
			})
			if result != nil {
				printServices(result)
			}
			if err != nil {
				return &ExitError{Op: "up", Err: err, ExitCode: ExitOrchestrationError}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "barge.yaml", "Topology file")
	cmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "Env file for ${VAR} interpolation (repeatable)")
	cmd.Flags().StringVar(&projectName, "project-name", "", "Override the stack name")
	cmd.Flags().BoolVar(&build, "build", false, "Rebuild images even when the build context is unchanged")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Bound the whole launch, health gates included (0 = no deadline)")

	return cmd
}

// printServices renders the per-service outcome of an up, failed and
// blocked services included.
func printServices(result *runner.UpResult) {
	out := NewOutput("table")

	rows := make([][]string, 0, len(result.Services))
	for _, rec := range result.Services {
		rows = append(rows, []string{
			rec.Name,
			string(rec.State),
			string(rec.Gate),
			dash(rec.Error),
		})
	}
	out.Table([]string{"SERVICE", "STATE", "GATE", "ERROR"}, rows)

	for _, f := range result.Failures {
		fmt.Fprintf(os.Stderr, "failed: %s (%s): %s\n", f.Service, f.Class, f.Message)
	}
	for _, b := range result.Blocked {
		fmt.Fprintf(os.Stderr, "blocked: %s waiting on %s (%s)\n", b.Edge, b.Service, b.Condition)
	}
}
