package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/bargehq/barge/internal/core/domain"
	"github.com/bargehq/barge/internal/core/health"
	"github.com/bargehq/barge/internal/shell/docker"
	"github.com/bargehq/barge/internal/shell/store"
)

// =============================================================================
// Status
// =============================================================================

// Status returns the merged store and engine view of a stack: persisted
// records plus a live inspect of every container that still exists.
func (r *Runner) Status(ctx context.Context, name string) (*StackStatus, error) {
	stack, err := r.store.GetStackByName(ctx, domain.Slugify(name))
	if err != nil {
		return nil, err
	}
	records, err := r.store.ListServices(ctx, stack.ID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	status := &StackStatus{Stack: *stack}
	var healths []domain.ContainerHealth
	for _, rec := range records {
		svcStatus := ServiceStatus{Record: rec}
		if rec.ContainerID != "" {
			info, err := r.docker.InspectContainer(ctx, rec.ContainerID)
			if err != nil && !errors.Is(err, docker.ErrContainerNotFound) {
				r.logger.Warn("failed to inspect container", "service", rec.Name, "error", err)
			}
			if info != nil {
				svcStatus.Container = info
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
		}
		status.Services = append(status.Services, svcStatus)
	}
	status.Health = health.AggregateHealth(healths)
	return status, nil
}

// List returns stack records, newest first.
func (r *Runner) List(ctx context.Context, opts store.ListOptions) ([]domain.Stack, error) {
	return r.store.ListStacks(ctx, opts)
}
