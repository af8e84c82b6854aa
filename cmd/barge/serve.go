package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bargehq/barge/internal/shell/api"
	"github.com/bargehq/barge/internal/shell/docker"
	"github.com/bargehq/barge/internal/shell/store"
	"github.com/bargehq/barge/internal/shell/workers"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the status API and background workers",
		Long: `Run the barge daemon: the read-only status API, the engine event
watcher, and the periodic state refresher. Shuts down on SIGINT or
SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return &ExitError{Op: "serve", Err: err, ExitCode: ExitConfigError}
			}
			logger := SetupLogger(cfg)
			logger.Info("starting barge daemon",
				"version", Version,
				"config", *configPath,
			)

			server, err := NewServer(cfg, logger)
			if err != nil {
				return err
			}
			return server.Start(cmd.Context())
		},
	}
}

// =============================================================================
// Server
// =============================================================================

// Server is the barge daemon: HTTP status API plus background workers.
type Server struct {
	config         *Config
	httpServer     *http.Server
	store          store.Store
	docker         docker.Client
	eventWatcher   *workers.EventWatcher
	stateRefresher *workers.StateRefresher
	logger         *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	// Connect to database
	if err := ensureParentDir(cfg.Database.Path); err != nil {
		return nil, &ExitError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, &ExitError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	// Connect to the engine. The constructor pings, so a dead daemon
	// fails here rather than on the first request.
	d, err := docker.NewDockerClient(cfg.Docker.Host)
	if err != nil {
		s.Close()
		return nil, &ExitError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDockerError,
		}
	}

	handler := api.NewHandler(s, d, logger)
	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	eventWatcher := workers.NewEventWatcher(s, d, workers.EventWatcherConfig{
		ReconnectDelay: cfg.Workers.ReconnectDelay,
	}, logger)

	stateRefresher := workers.NewStateRefresher(s, d, workers.StateRefresherConfig{
		Interval: cfg.Workers.RefreshInterval,
	}, logger)

	return &Server{
		config:         cfg,
		httpServer:     httpServer,
		store:          s,
		docker:         d,
		eventWatcher:   eventWatcher,
		stateRefresher: stateRefresher,
		logger:         logger,
	}, nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start background workers
	s.eventWatcher.Start()
	s.stateRefresher.Start()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		s.stopWorkers()
		s.closeClients()
		return &ExitError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown HTTP server
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.stopWorkers()
	s.closeClients()

	s.logger.Info("shutdown complete")
	return nil
}

func (s *Server) stopWorkers() {
	s.stateRefresher.Stop()
	s.eventWatcher.Stop()
}

func (s *Server) closeClients() {
	if err := s.docker.Close(); err != nil {
		s.logger.Error("docker client close error", "error", err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}
}
