// Package runner orchestrates stacks against the Docker engine: it turns
// a parsed topology into running containers, drives health gates, and
// records every step in the store.
//
// The runner is the imperative shell around the pure planning core. All
// ordering decisions (start batches, gate semantics, up and down paths)
// are made by internal/core/plan and internal/core/health; the runner
// executes them and owns the I/O.
package runner

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bargehq/barge/internal/core/domain"
	"github.com/bargehq/barge/internal/core/health"
	"github.com/bargehq/barge/internal/shell/docker"
	"github.com/bargehq/barge/internal/shell/store"
)

// =============================================================================
// Runner
// =============================================================================

// Runner executes stack operations against the engine and the store.
type Runner struct {
	docker docker.Client
	store  store.Store
	logger *slog.Logger
	clock  health.Clock
}

// New creates a runner. A nil logger falls back to slog.Default().
func New(d docker.Client, s store.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		docker: d,
		store:  s,
		logger: logger,
		clock:  health.SystemClock(),
	}
}

// =============================================================================
// Shared Helpers
// =============================================================================

// record appends a stack event. Recording is best-effort: a store hiccup
// must not fail the operation the event describes.
func (r *Runner) record(ctx context.Context, stackID string, eventType domain.StackEventType, service string) {
	event := domain.NewStackEvent(uuid.NewString(), stackID, eventType, service, health.EventMessage(eventType, service))
	if err := r.store.AppendEvent(ctx, &event); err != nil {
		r.logger.Warn("failed to record stack event", "stack_id", stackID, "type", eventType, "error", err)
	}
}

// updateService persists a service record, logging instead of failing.
func (r *Runner) updateService(ctx context.Context, rec *domain.ServiceRecord) {
	if err := r.store.UpdateService(ctx, rec); err != nil {
		r.logger.Warn("failed to update service record", "service", rec.Name, "error", err)
	}
}

// classifyFailure buckets an engine error into a failure class.
func classifyFailure(err error) domain.FailureClass {
	switch {
	case errors.Is(err, docker.ErrImageNotFound),
		errors.Is(err, docker.ErrImagePullFailed),
		errors.Is(err, docker.ErrBuildFailed):
		return domain.FailureImage
	case errors.Is(err, docker.ErrPortAlreadyAllocated),
		errors.Is(err, docker.ErrContainerAlreadyExists):
		return domain.FailureConfig
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, docker.ErrTimeout):
		return domain.FailureTimeout
	case errors.Is(err, docker.ErrConnectionFailed):
		return domain.FailureInternal
	default:
		return domain.FailureRuntime
	}
}
