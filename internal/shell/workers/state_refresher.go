package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bargehq/barge/internal/core/domain"
	"github.com/bargehq/barge/internal/core/health"
	"github.com/bargehq/barge/internal/shell/docker"
	"github.com/bargehq/barge/internal/shell/store"
)

// StateRefresherConfig configures the state refresher worker.
type StateRefresherConfig struct {
	// Interval is the time between reconciliation cycles.
	// Default: 30 seconds.
	Interval time.Duration

	// StackTimeout is the timeout for refreshing a single stack.
	// Default: 10 seconds.
	StackTimeout time.Duration

	// MaxConcurrent is the maximum number of stacks to refresh
	// concurrently. Default: 5.
	MaxConcurrent int
}

// DefaultStateRefresherConfig returns the default configuration.
func DefaultStateRefresherConfig() StateRefresherConfig {
	return StateRefresherConfig{
		Interval:      30 * time.Second,
		StackTimeout:  10 * time.Second,
		MaxConcurrent: 5,
	}
}

// StateRefresher periodically reconciles store records with the engine.
// It syncs service states and restart counts, and flips active stacks
// between running and degraded as their containers die and recover. The
// event watcher reacts to the stream; the refresher catches anything the
// stream missed.
type StateRefresher struct {
	store  store.Store
	docker docker.Client
	config StateRefresherConfig
	logger *slog.Logger

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStateRefresher creates a new state refresher worker.
func NewStateRefresher(s store.Store, d docker.Client, config StateRefresherConfig, logger *slog.Logger) *StateRefresher {
	if config.Interval == 0 {
		config.Interval = 30 * time.Second
	}
	if config.StackTimeout == 0 {
		config.StackTimeout = 10 * time.Second
	}
	if config.MaxConcurrent == 0 {
		config.MaxConcurrent = 5
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &StateRefresher{
		store:  s,
		docker: d,
		config: config,
		logger: logger.With("component", "state_refresher"),
	}
}

// Start begins the state refresher background goroutine.
func (s *StateRefresher) Start() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(1)
	go s.run()
	s.logger.Info("state refresher started",
		"interval", s.config.Interval,
		"max_concurrent", s.config.MaxConcurrent,
	)
}

// Stop gracefully stops the state refresher. It waits for any
// in-progress refresh to complete.
func (s *StateRefresher) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("state refresher stopped")
}

// run is the main loop that reconciles periodically.
func (s *StateRefresher) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.runCycle()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runCycle()
		}
	}
}

// runCycle reconciles every active stack once.
func (s *StateRefresher) runCycle() {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.Interval)
	defer cancel()

	stacks, err := s.store.ListStacks(ctx, store.ListOptions{Limit: 1000})
	if err != nil {
		s.logger.Error("failed to list stacks", "error", err)
		return
	}

	var active []domain.Stack
	for _, stack := range stacks {
		if stack.Status == domain.StackRunning || stack.Status == domain.StackDegraded {
			active = append(active, stack)
		}
	}

	if len(active) == 0 {
		s.logger.Debug("no active stacks to refresh")
		return
	}

	s.logger.Debug("starting refresh cycle", "stack_count", len(active))

	// Use a semaphore to limit concurrent refreshes
	sem := make(chan struct{}, s.config.MaxConcurrent)
	var wg sync.WaitGroup

	for i := range active {
		stack := &active[i]

		wg.Add(1)
		go func(st *domain.Stack) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				return
			case sem <- struct{}{}:
				defer func() { <-sem }()
			}

			s.refreshStack(ctx, st)
		}(stack)
	}

	wg.Wait()
	s.logger.Debug("completed refresh cycle", "stack_count", len(active))
}

// refreshStack reconciles one stack's records with its containers.
func (s *StateRefresher) refreshStack(ctx context.Context, stack *domain.Stack) {
	stackCtx, cancel := context.WithTimeout(ctx, s.config.StackTimeout)
	defer cancel()

	logger := s.logger.With("stack", stack.Name)

	records, err := s.store.ListServices(stackCtx, stack.ID)
	if err != nil {
		logger.Error("failed to list service records", "error", err)
		return
	}

	healths := make([]domain.ContainerHealth, 0, len(records))
	for i := range records {
		rec := &records[i]
		if rec.ContainerID == "" {
			// Blocked or never started: nothing live to reconcile.
			continue
		}

		info, err := s.docker.InspectContainer(stackCtx, rec.ContainerID)
		if err != nil {
			// The container is gone behind our back.
			logger.Debug("container missing", "service", rec.Name, "error", err)
			healths = append(healths, domain.ContainerHealth{
				Name:   rec.Name,
				Status: "missing",
				Health: domain.HealthStatusUnhealthy,
			})
			continue
		}

		s.syncRecord(stackCtx, rec, info, logger)

		if info.State == "exited" && info.ExitCode == 0 {
			// A cleanly completed one-shot does not degrade the stack.
			continue
		}

		var hc *string
		if info.Health != "" {
			hc = &info.Health
		}
		healths = append(healths, domain.ContainerHealth{
			Name:      rec.Name,
			Status:    info.State,
			Health:    health.DetermineContainerHealth(info.State, hc, info.RestartCount),
			StartedAt: info.StartedAt,
			Restarts:  info.RestartCount,
		})
	}

	s.flipStatus(stackCtx, stack, health.AggregateHealth(healths), logger)
}

// syncRecord reconciles one service record with the engine's view.
func (s *StateRefresher) syncRecord(ctx context.Context, rec *domain.ServiceRecord, info *docker.ContainerInfo, logger *slog.Logger) {
	changed := false

	if rec.Restarts != info.RestartCount {
		rec.Restarts = info.RestartCount
		changed = true
	}

	switch info.State {
	case "running":
		if rec.State == domain.ServiceExited {
			rec.State = domain.ServiceStarted
			changed = true
		}
	case "exited":
		if rec.State == domain.ServiceStarted {
			rec.RecordExited(info.ExitCode, time.Now().UTC())
			changed = true
		}
	}

	if !changed {
		return
	}
	rec.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateService(ctx, rec); err != nil {
		logger.Error("failed to update service record",
			"service", rec.Name, "error", err)
	}
}

// flipStatus moves an active stack between running and degraded based on
// the aggregate container health. Unknown aggregates never flip.
func (s *StateRefresher) flipStatus(ctx context.Context, stack *domain.Stack, agg domain.HealthStatus, logger *slog.Logger) {
	var to domain.StackStatus
	switch {
	case stack.Status == domain.StackRunning &&
		(agg == domain.HealthStatusDegraded || agg == domain.HealthStatusUnhealthy):
		to = domain.StackDegraded
	case stack.Status == domain.StackDegraded && agg == domain.HealthStatusHealthy:
		to = domain.StackRunning
	default:
		return
	}

	if err := stack.Transition(to); err != nil {
		return
	}
	if err := s.store.UpdateStack(ctx, stack); err != nil {
		logger.Error("failed to update stack status", "error", err)
		return
	}

	if to == domain.StackDegraded {
		logger.Warn("stack degraded", "health", string(agg))
	} else {
		logger.Info("stack recovered")
	}
}
