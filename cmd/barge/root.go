package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bargehq/barge/internal/shell/docker"
	"github.com/bargehq/barge/internal/shell/runner"
	"github.com/bargehq/barge/internal/shell/store"
)

// =============================================================================
// Root Command
// =============================================================================

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "barge",
		Short:         "Single-host container stack orchestrator",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	appFn := func() (*app, error) { return openApp(configPath) }

	root.AddCommand(
		newUpCmd(appFn),
		newDownCmd(appFn),
		newPsCmd(appFn),
		newLogsCmd(appFn),
		newEventsCmd(appFn),
		newConfigCmd(),
		newValidateCmd(),
		newServeCmd(&configPath),
		newVersionCmd(),
	)

	return root
}

// =============================================================================
// App Wiring
// =============================================================================

// app bundles the dependencies a stack command needs: config, logger,
// store, engine client, and the runner built on top of them.
type app struct {
	cfg    *Config
	logger *slog.Logger
	store  store.Store
	docker docker.Client
	runner *runner.Runner
}

// openApp loads config and connects the store and the engine. Errors
// carry the exit code for their failure class.
func openApp(configPath string) (*app, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, &ExitError{Op: "config", Err: err, ExitCode: ExitConfigError}
	}
	logger := SetupLogger(cfg)

	if err := ensureParentDir(cfg.Database.Path); err != nil {
		return nil, &ExitError{Op: "store", Err: err, ExitCode: ExitDatabaseError}
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, &ExitError{Op: "store", Err: err, ExitCode: ExitDatabaseError}
	}

	d, err := docker.NewDockerClient(cfg.Docker.Host)
	if err != nil {
		s.Close()
		return nil, &ExitError{Op: "docker", Err: err, ExitCode: ExitDockerError}
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  s,
		docker: d,
		runner: runner.New(d, s, logger),
	}, nil
}

// Close releases the app's connections.
func (a *app) Close() {
	if err := a.docker.Close(); err != nil {
		a.logger.Error("docker client close error", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("database close error", "error", err)
	}
}

// =============================================================================
// Helpers
// =============================================================================

// ensureParentDir creates the parent directory of a file path.
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// resolveProjectName falls back to the working directory's base name,
// the same default up applies to the topology file's directory.
func resolveProjectName(projectName string) string {
	if projectName != "" {
		return projectName
	}
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Base(wd)
}
