// Package workers contains background workers for barge.
package workers

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bargehq/barge/internal/core/domain"
	"github.com/bargehq/barge/internal/core/health"
	"github.com/bargehq/barge/internal/core/plan"
	"github.com/bargehq/barge/internal/shell/docker"
	"github.com/bargehq/barge/internal/shell/store"
)

// EventWatcherConfig configures the event watcher worker.
type EventWatcherConfig struct {
	// ReconnectDelay is the pause before resubscribing after the engine
	// stream ends or fails. Default: 5 seconds.
	ReconnectDelay time.Duration

	// HandleTimeout bounds the store work for a single event.
	// Default: 10 seconds.
	HandleTimeout time.Duration
}

// DefaultEventWatcherConfig returns the default configuration.
func DefaultEventWatcherConfig() EventWatcherConfig {
	return EventWatcherConfig{
		ReconnectDelay: 5 * time.Second,
		HandleTimeout:  10 * time.Second,
	}
}

// EventWatcher subscribes to the engine's container event stream and
// records what happens to managed containers after launch: deaths,
// restart-policy revivals, OOM kills, and health flips. Restart counts
// on service records are kept in sync with the engine, so a
// crash-looping container is visible from the store alone.
type EventWatcher struct {
	store  store.Store
	docker docker.Client
	config EventWatcherConfig
	logger *slog.Logger

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEventWatcher creates a new event watcher worker.
func NewEventWatcher(s store.Store, d docker.Client, config EventWatcherConfig, logger *slog.Logger) *EventWatcher {
	if config.ReconnectDelay == 0 {
		config.ReconnectDelay = 5 * time.Second
	}
	if config.HandleTimeout == 0 {
		config.HandleTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &EventWatcher{
		store:  s,
		docker: d,
		config: config,
		logger: logger.With("component", "event_watcher"),
	}
}

// Start begins the event watcher background goroutine.
func (w *EventWatcher) Start() {
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.wg.Add(1)
	go w.run()
	w.logger.Info("event watcher started", "reconnect_delay", w.config.ReconnectDelay)
}

// Stop gracefully stops the event watcher.
func (w *EventWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.logger.Info("event watcher stopped")
}

// run resubscribes to the engine stream until the watcher is stopped.
func (w *EventWatcher) run() {
	defer w.wg.Done()

	for {
		err := w.watch(w.ctx)
		if w.ctx.Err() != nil {
			return
		}
		if err != nil {
			w.logger.Warn("event stream interrupted",
				"error", err, "reconnect_delay", w.config.ReconnectDelay)
		} else {
			w.logger.Debug("event stream ended",
				"reconnect_delay", w.config.ReconnectDelay)
		}

		select {
		case <-w.ctx.Done():
			return
		case <-time.After(w.config.ReconnectDelay):
		}
	}
}

// watch consumes one subscription until the stream ends. A terminal
// stream error, if any, is buffered on the error channel.
func (w *EventWatcher) watch(ctx context.Context) error {
	events, errs := w.docker.StreamEvents(ctx, map[string]string{plan.LabelManaged: "true"})

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return <-errs
			}
			w.handle(ev)
		}
	}
}

// handle processes a single engine event. Create and stop actions are
// skipped: the orchestration paths record those themselves.
func (w *EventWatcher) handle(ev docker.EngineEvent) {
	if ev.StackID == "" || ev.Service == "" {
		return
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.config.HandleTimeout)
	defer cancel()

	switch ev.Type {
	case domain.EventContainerStarted, domain.EventContainerRestarted:
		if !w.syncRestarts(ctx, &ev) {
			return
		}
	case domain.EventContainerDied:
		if !w.recordExit(ctx, ev) {
			return
		}
	case domain.EventContainerOOM:
		// Event trail only.
	case domain.EventContainerHealthy, domain.EventContainerUnhealthy:
		// The message already names the status.
		ev.Detail = ""
	default:
		return
	}

	w.record(ctx, ev)
}

// syncRestarts pulls the engine's restart count onto the service record.
// A start with a nonzero count is a restart-policy revival: it is
// recorded as a restart so crash loops show in the event trail. The
// initial start returns false because the launch path already recorded
// it.
func (w *EventWatcher) syncRestarts(ctx context.Context, ev *docker.EngineEvent) bool {
	info, err := w.docker.InspectContainer(ctx, ev.ContainerID)
	if err != nil {
		w.logger.Debug("inspect after start failed",
			"container_id", ev.ContainerID, "error", err)
		return false
	}

	if ev.Type == domain.EventContainerStarted {
		if info.RestartCount == 0 {
			return false
		}
		ev.Type = domain.EventContainerRestarted
		ev.Detail = "restart " + strconv.Itoa(info.RestartCount)
	}

	rec, err := w.store.GetService(ctx, ev.StackID, ev.Service)
	if err != nil {
		w.logger.Debug("no service record for event",
			"stack_id", ev.StackID, "service", ev.Service, "error", err)
		return true
	}

	if rec.Restarts == info.RestartCount && rec.State == domain.ServiceStarted {
		return true
	}
	rec.Restarts = info.RestartCount
	rec.State = domain.ServiceStarted
	rec.UpdatedAt = time.Now().UTC()
	if err := w.store.UpdateService(ctx, rec); err != nil {
		w.logger.Error("failed to update service record",
			"service", ev.Service, "error", err)
	}
	return true
}

// recordExit marks the service record exited. Deaths during a deliberate
// teardown are skipped: the down path records those as stops.
func (w *EventWatcher) recordExit(ctx context.Context, ev docker.EngineEvent) bool {
	stack, err := w.store.GetStack(ctx, ev.StackID)
	if err != nil {
		w.logger.Debug("no stack record for event",
			"stack_id", ev.StackID, "error", err)
		return false
	}
	if stack.Status == domain.StackStopping || stack.Status == domain.StackStopped {
		return false
	}

	rec, err := w.store.GetService(ctx, ev.StackID, ev.Service)
	if err != nil {
		w.logger.Debug("no service record for event",
			"stack_id", ev.StackID, "service", ev.Service, "error", err)
		return true
	}

	rec.RecordExited(parseExitCode(ev.Detail), ev.Time)
	if err := w.store.UpdateService(ctx, rec); err != nil {
		w.logger.Error("failed to update service record",
			"service", ev.Service, "error", err)
	}
	return true
}

// record appends the event to the stack's trail with the engine-reported
// timestamp.
func (w *EventWatcher) record(ctx context.Context, ev docker.EngineEvent) {
	msg := health.EventMessage(ev.Type, ev.Service)
	if ev.Detail != "" {
		msg += " (" + ev.Detail + ")"
	}

	stackEvent := domain.NewStackEvent(uuid.NewString(), ev.StackID, ev.Type, ev.Service, msg)
	if !ev.Time.IsZero() {
		stackEvent.Timestamp = ev.Time
	}
	if err := w.store.AppendEvent(ctx, &stackEvent); err != nil {
		w.logger.Warn("failed to record engine event",
			"stack_id", ev.StackID, "type", ev.Type, "error", err)
	}
}

// parseExitCode extracts the code from an "exit code N" detail string.
func parseExitCode(detail string) int {
	rest, ok := strings.CutPrefix(detail, "exit code ")
	if !ok {
		return 0
	}
	code, err := strconv.Atoi(rest)
	if err != nil {
		return 0
	}
	return code
}
