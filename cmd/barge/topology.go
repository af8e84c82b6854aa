package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bargehq/barge/internal/core/compose"
	"github.com/bargehq/barge/internal/core/domain"
	"github.com/bargehq/barge/internal/shell/runner"
)

func newConfigCmd() *cobra.Command {
	var (
		file        string
		envFiles    []string
		projectName string
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Render the normalized topology",
		Long: `Parse and validate a topology file, then print the normalized form as
YAML: interpolation applied, defaults filled in, services in name order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := loadTopology(file, projectName, envFiles)
			if err != nil {
				return &ExitError{Op: "config", Err: err, ExitCode: ExitConfigError}
			}
			return NewOutput("yaml").YAML(topo)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "barge.yaml", "Topology file")
	cmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "Env file for ${VAR} interpolation (repeatable)")
	cmd.Flags().StringVar(&projectName, "project-name", "", "Override the stack name")

	return cmd
}

func newValidateCmd() *cobra.Command {
	var (
		file        string
		envFiles    []string
		projectName string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a topology file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := loadTopology(file, projectName, envFiles)
			if err != nil {
				return &ExitError{Op: "validate", Err: err, ExitCode: ExitConfigError}
			}
			NewOutput("table").Success(fmt.Sprintf("%s: valid (%d services)", file, len(topo.Services)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "barge.yaml", "Topology file")
	cmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "Env file for ${VAR} interpolation (repeatable)")
	cmd.Flags().StringVar(&projectName, "project-name", "", "Override the stack name")

	return cmd
}

// loadTopology reads and parses a topology file the same way up does:
// project name from the file's directory unless overridden, env files
// layered under the host environment for interpolation.
func loadTopology(file, projectName string, envFiles []string) (*compose.Topology, error) {
	path, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("resolve topology path: %w", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}
	baseDir := filepath.Dir(path)

	env, err := runner.InterpolationEnv(baseDir, envFiles)
	if err != nil {
		return nil, err
	}

	if projectName == "" {
		projectName = filepath.Base(baseDir)
	}
	return compose.ParseWithEnv(string(content), domain.Slugify(projectName), env)
}
