package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bargehq/barge/internal/core/domain"
	"github.com/bargehq/barge/internal/core/plan"
	"github.com/bargehq/barge/internal/shell/docker"
)

const defaultStopTimeout = 10 * time.Second

// =============================================================================
// Down
// =============================================================================

// Down stops and removes a stack's containers in reverse start order,
// removes its network, and optionally removes its named volumes. Volume
// data survives a plain down; RemoveVolumes makes the next up start from
// empty state.
func (r *Runner) Down(ctx context.Context, opts DownOptions) (*DownResult, error) {
	name := domain.Slugify(opts.ProjectName)
	if name == "" {
		return nil, errors.New("project name is required")
	}

	stack, err := r.store.GetStackByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load stack record: %w", err)
	}

	downPath := plan.DetermineDownPath(stack.Status)
	if !downPath.Valid {
		return nil, fmt.Errorf("stack %q: %s", stack.Name, downPath.ErrorReason)
	}

	r.logger.Info("taking stack down", "stack", stack.Name, "remove_volumes", opts.RemoveVolumes)

	// 1. Transition to stopping.
	if len(downPath.Transitions) > 0 {
		if err := stack.Transition(downPath.Transitions[0]); err != nil {
			return nil, fmt.Errorf("transition stack: %w", err)
		}
		if err := r.store.UpdateStack(ctx, stack); err != nil {
			return nil, fmt.Errorf("persist stack record: %w", err)
		}
	}

	stopTimeout := opts.Timeout
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}

	// 2. Stop and remove containers, dependents before dependencies.
	result := &DownResult{Stack: stack}
	result.StoppedContainers = r.removeStackContainers(ctx, stack, &stopTimeout)

	// 3. Remove the network.
	networkName := plan.NetworkName(stack.Name)
	if err := r.docker.RemoveNetwork(ctx, networkName); err != nil && !errors.Is(err, docker.ErrNetworkNotFound) {
		r.logger.Warn("failed to remove network", "network", networkName, "error", err)
	}

	// 4. Optionally remove the stack's volumes.
	if opts.RemoveVolumes {
		result.RemovedVolumes = r.removeStackVolumes(ctx, stack)
	}

	// 5. Settle the stack record.
	if len(downPath.Transitions) > 1 {
		for _, status := range downPath.Transitions[1:] {
			if err := stack.Transition(status); err != nil {
				return result, fmt.Errorf("transition stack: %w", err)
			}
		}
		if err := r.store.UpdateStack(ctx, stack); err != nil {
			return result, fmt.Errorf("persist stack record: %w", err)
		}
	}

	r.logger.Info("stack is down", "stack", stack.Name, "stopped", result.StoppedContainers, "volumes_removed", len(result.RemovedVolumes))
	return result, nil
}

// removeStackContainers stops and removes every container of the stack:
// service records first, in reverse start order, then a label sweep for
// anything the records no longer cover. Errors are logged, not returned;
// teardown keeps going.
func (r *Runner) removeStackContainers(ctx context.Context, stack *domain.Stack, stopTimeout *time.Duration) int {
	count := 0
	covered := make(map[string]bool)

	records, err := r.store.ListServices(ctx, stack.ID)
	if err != nil {
		r.logger.Warn("failed to list service records", "stack", stack.Name, "error", err)
	}
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if rec.ContainerID == "" {
			continue
		}
		covered[rec.ContainerID] = true

		code, ok := r.removeContainer(ctx, rec.ContainerID, stopTimeout)
		if !ok {
			continue
		}
		count++
		rec.RecordExited(code, r.clock.Now())
		r.updateService(ctx, &rec)
		r.record(ctx, stack.ID, domain.EventContainerStopped, rec.Name)
		r.logger.Debug("container stopped", "stack", stack.Name, "service", rec.Name)
	}

	// Sweep containers the records no longer cover.
	containers, err := r.docker.ListContainers(ctx, docker.ListOptions{
		All:     true,
		Filters: map[string]string{"label": plan.LabelStack + "=" + stack.Name},
	})
	if err != nil {
		r.logger.Warn("failed to list stack containers", "stack", stack.Name, "error", err)
		return count
	}
	for _, c := range containers {
		if covered[c.ID] {
			continue
		}
		if _, ok := r.removeContainer(ctx, c.ID, stopTimeout); ok {
			count++
			r.logger.Debug("leftover container removed", "stack", stack.Name, "container", c.Name)
		}
	}
	return count
}

// removeContainer stops and removes one container, returning its exit
// code. A container that is already gone reports ok=false.
func (r *Runner) removeContainer(ctx context.Context, containerID string, stopTimeout *time.Duration) (int, bool) {
	err := r.docker.StopContainer(ctx, containerID, stopTimeout)
	if errors.Is(err, docker.ErrContainerNotFound) {
		return 0, false
	}
	if err != nil && !errors.Is(err, docker.ErrContainerNotRunning) {
		r.logger.Warn("failed to stop container", "container", containerID, "error", err)
	}

	exitCode := 0
	if info, err := r.docker.InspectContainer(ctx, containerID); err == nil {
		exitCode = info.ExitCode
	}

	if err := r.docker.RemoveContainer(ctx, containerID, docker.RemoveOptions{Force: true}); err != nil && !errors.Is(err, docker.ErrContainerNotFound) {
		r.logger.Warn("failed to remove container", "container", containerID, "error", err)
		return exitCode, false
	}
	return exitCode, true
}

// removeStackVolumes removes the volumes labeled as belonging to the
// stack. External volumes never carry our labels, so they survive.
func (r *Runner) removeStackVolumes(ctx context.Context, stack *domain.Stack) []string {
	volumes, err := r.docker.ListVolumes(ctx, map[string]string{
		"label": plan.LabelStackID + "=" + stack.ID,
	})
	if err != nil {
		r.logger.Warn("failed to list stack volumes", "stack", stack.Name, "error", err)
		return nil
	}

	var removed []string
	for _, vol := range volumes {
		if err := r.docker.RemoveVolume(ctx, vol.Name, false); err != nil {
			r.logger.Warn("failed to remove volume", "volume", vol.Name, "error", err)
			continue
		}
		r.record(ctx, stack.ID, domain.EventVolumeRemoved, vol.Name)
		r.logger.Info("volume removed", "stack", stack.Name, "volume", vol.Name)
		removed = append(removed, vol.Name)
	}
	sort.Strings(removed)
	return removed
}
