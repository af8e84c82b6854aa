package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bargehq/barge/internal/core/compose"
	"github.com/bargehq/barge/internal/core/domain"
	"github.com/bargehq/barge/internal/core/health"
	"github.com/bargehq/barge/internal/core/plan"
	"github.com/bargehq/barge/internal/shell/docker"
)

// =============================================================================
// Condition Signals
// =============================================================================

// serviceSignals carries the condition channels one service publishes for
// its dependents. Each channel is closed at most once, by the service's
// own launcher goroutine.
type serviceSignals struct {
	started   chan struct{}
	healthy   chan struct{}
	completed chan struct{}

	// failure is set by the owning launcher before failed is closed;
	// dependents read it only after receiving from failed.
	failed  chan struct{}
	failure error
}

func newServiceSignals() *serviceSignals {
	return &serviceSignals{
		started:   make(chan struct{}),
		healthy:   make(chan struct{}),
		completed: make(chan struct{}),
		failed:    make(chan struct{}),
	}
}

// fail records the terminal failure and releases every dependent waiting
// on any condition of this service.
func (s *serviceSignals) fail(err error) {
	s.failure = err
	close(s.failed)
}

// launchContext is the shared state of one up launch.
type launchContext struct {
	stack   *domain.Stack
	plan    *plan.StackPlan
	baseDir string
	signals map[string]*serviceSignals
	records map[string]*domain.ServiceRecord

	// persistCtx outlives the launch deadline so terminal states still
	// reach the store when the deadline fires.
	persistCtx context.Context

	// waitExit names the services some dependent waits to complete.
	waitExit map[string]bool
}

func newLaunchContext(persistCtx context.Context, stack *domain.Stack, sp *plan.StackPlan, baseDir string, records map[string]*domain.ServiceRecord) *launchContext {
	lc := &launchContext{
		stack:      stack,
		plan:       sp,
		baseDir:    baseDir,
		signals:    make(map[string]*serviceSignals, len(sp.Services)),
		records:    records,
		persistCtx: persistCtx,
		waitExit:   make(map[string]bool),
	}
	for _, svc := range sp.Services {
		lc.signals[svc.Name] = newServiceSignals()
		for _, dep := range svc.DependsOn {
			if dep.Condition == compose.ConditionCompleted {
				lc.waitExit[dep.Service] = true
			}
		}
	}
	return lc
}

// =============================================================================
// Launch
// =============================================================================

// launch starts every service concurrently and waits for all of them to
// settle. Services whose image never resolved fail immediately, releasing
// their dependents into the blocked state. There is no rollback: services
// that reached their goal stay up whatever happens to their siblings.
func (r *Runner) launch(ctx, persistCtx context.Context, stack *domain.Stack, sp *plan.StackPlan, baseDir string, records map[string]*domain.ServiceRecord, imageErrs map[string]error) *UpResult {
	lc := newLaunchContext(persistCtx, stack, sp, baseDir, records)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs = make(map[string]error, len(sp.Services))
	)
	for _, svc := range sp.Services {
		wg.Add(1)
		go func(svc plan.ServicePlan) {
			defer wg.Done()
			var err error
			if ierr := imageErrs[svc.Name]; ierr != nil {
				err = r.failService(lc, lc.signals[svc.Name], lc.records[svc.Name], classifyFailure(ierr), ierr.Error())
			} else {
				err = r.launchService(ctx, lc, svc)
			}
			if err != nil {
				mu.Lock()
				errs[svc.Name] = err
				mu.Unlock()
			}
		}(svc)
	}
	wg.Wait()

	// Assemble the result in start order so reports are deterministic.
	result := &UpResult{Stack: stack}
	for _, batch := range sp.Batches {
		for _, name := range batch {
			result.Services = append(result.Services, *records[name])
			switch e := errs[name].(type) {
			case domain.ServiceFailure:
				result.Failures = append(result.Failures, e)
			case *GateError:
				result.Blocked = append(result.Blocked, e)
			}
		}
	}
	return result
}

// launchService runs one service to its goal state: dependencies
// released, container started, gate settled. It returns nil when the
// service reached its goal, or the typed failure that stopped it.
func (r *Runner) launchService(ctx context.Context, lc *launchContext, sp plan.ServicePlan) error {
	sig := lc.signals[sp.Name]
	rec := lc.records[sp.Name]

	// 1. Wait for every dependency edge to release.
	for _, dep := range sp.DependsOn {
		if err := r.waitForDependency(ctx, lc, sp.Name, dep); err != nil {
			sig.fail(err)
			return err
		}
	}

	// 2. Create and start the container.
	r.logger.Info("starting service", "stack", lc.stack.Name, "service", sp.Name, "image", sp.Container.Image)
	containerID, err := r.docker.CreateContainer(ctx, containerSpecFromPlan(sp.Container, lc.baseDir))
	if err != nil {
		return r.failService(lc, sig, rec, classifyFailure(err), fmt.Sprintf("create container: %v", err))
	}
	r.record(lc.persistCtx, lc.stack.ID, domain.EventContainerCreated, sp.Name)

	if err := r.docker.StartContainer(ctx, containerID); err != nil {
		rec.ContainerID = containerID
		return r.failService(lc, sig, rec, classifyFailure(err), fmt.Sprintf("start container: %v", err))
	}
	rec.RecordStarted(containerID, r.clock.Now())
	r.updateService(lc.persistCtx, rec)
	r.record(lc.persistCtx, lc.stack.ID, domain.EventContainerStarted, sp.Name)
	close(sig.started)

	// 3. Drive the health gate, when the service declares one.
	if sp.Gate != nil {
		if err := r.driveGate(ctx, lc, sp, sig, rec, containerID); err != nil {
			return err
		}
	}

	// 4. Wait for completion when a dependent needs the exit code.
	if lc.waitExit[sp.Name] {
		return r.waitForExit(ctx, lc, sp.Name, sig, rec, containerID)
	}
	return nil
}

// waitForDependency blocks until the edge releases, the dependency fails,
// or the context ends. On failure the dependent is recorded as blocked.
func (r *Runner) waitForDependency(ctx context.Context, lc *launchContext, dependent string, dep compose.Dependency) error {
	depSig := lc.signals[dep.Service]
	if depSig == nil {
		// Validation rejects unknown dependencies before planning.
		return domain.ServiceFailure{
			Service: dependent,
			Class:   domain.FailureInternal,
			Message: fmt.Sprintf("unknown dependency %q", dep.Service),
		}
	}

	var release <-chan struct{}
	switch dep.Condition {
	case compose.ConditionHealthy:
		release = depSig.healthy
	case compose.ConditionCompleted:
		release = depSig.completed
	default:
		release = depSig.started
	}

	rec := lc.records[dependent]
	select {
	case <-release:
		return nil

	case <-depSig.failed:
		gerr := &GateError{Service: dep.Service, Edge: dependent, Condition: dep.Condition, Cause: depSig.failure}
		rec.RecordBlocked(fmt.Sprintf("dependency %q did not reach %s", dep.Service, dep.Condition), r.clock.Now())
		r.updateService(lc.persistCtx, rec)
		r.record(lc.persistCtx, lc.stack.ID, domain.EventServiceBlocked, dependent)
		r.logger.Warn("service blocked", "stack", lc.stack.Name, "service", dependent, "dependency", dep.Service, "condition", string(dep.Condition))
		return gerr

	case <-ctx.Done():
		rec.RecordBlocked(fmt.Sprintf("deadline exceeded waiting for dependency %q", dep.Service), r.clock.Now())
		r.updateService(lc.persistCtx, rec)
		return domain.ServiceFailure{
			Service: dependent,
			Class:   domain.FailureTimeout,
			Message: fmt.Sprintf("deadline exceeded waiting for dependency %q (%s)", dep.Service, dep.Condition),
		}
	}
}

// driveGate runs the health gate to a settled state. Healthy releases the
// service_healthy edges; failed blocks dependents and fails the service.
func (r *Runner) driveGate(ctx context.Context, lc *launchContext, sp plan.ServicePlan, sig *serviceSignals, rec *domain.ServiceRecord, containerID string) error {
	cfg := health.Config{
		Interval:    sp.Gate.Interval,
		Timeout:     sp.Gate.Timeout,
		StartPeriod: sp.Gate.StartPeriod,
		Retries:     sp.Gate.Retries,
	}
	probe := docker.NewExecProbe(r.docker, containerID, sp.Gate.Command)
	monitor := health.NewMonitor(cfg, *rec.StartedAt, probe, r.clock)

	r.logger.Debug("driving health gate", "stack", lc.stack.Name, "service", sp.Name, "interval", cfg.Interval, "retries", cfg.Retries)

	outcome, err := monitor.Wait(ctx)
	if err != nil {
		return r.failService(lc, sig, rec, domain.FailureTimeout,
			fmt.Sprintf("health gate undecided after %d checks: %v", outcome.Checks, err))
	}

	if outcome.State == health.StateFailed {
		r.record(lc.persistCtx, lc.stack.ID, domain.EventGateFailed, sp.Name)
		msg := fmt.Sprintf("health gate failed after %d checks", outcome.Checks)
		if out := strings.TrimSpace(outcome.LastOutput); out != "" {
			msg += ": " + out
		}
		return r.failService(lc, sig, rec, domain.FailureTimeout, msg)
	}

	rec.RecordHealthy(outcome.HealthyAt)
	r.updateService(lc.persistCtx, rec)
	r.record(lc.persistCtx, lc.stack.ID, domain.EventGateHealthy, sp.Name)
	r.logger.Info("service healthy", "stack", lc.stack.Name, "service", sp.Name, "checks", outcome.Checks)
	close(sig.healthy)
	return nil
}

// waitForExit blocks until the container stops. Exit 0 releases the
// service_completed_successfully edges; anything else fails the service.
func (r *Runner) waitForExit(ctx context.Context, lc *launchContext, name string, sig *serviceSignals, rec *domain.ServiceRecord, containerID string) error {
	code, err := r.docker.WaitContainer(ctx, containerID)
	if err != nil {
		return r.failService(lc, sig, rec, classifyFailure(err), fmt.Sprintf("wait for exit: %v", err))
	}
	if code != 0 {
		rec.ExitCode = &code
		r.record(lc.persistCtx, lc.stack.ID, domain.EventContainerDied, name)
		return r.failService(lc, sig, rec, domain.FailureRuntime, fmt.Sprintf("exited with code %d", code))
	}

	rec.RecordExited(code, r.clock.Now())
	r.updateService(lc.persistCtx, rec)
	r.record(lc.persistCtx, lc.stack.ID, domain.EventContainerStopped, name)
	close(sig.completed)
	return nil
}

// failService records a terminal service failure, releases dependents,
// and returns the failure as an error.
func (r *Runner) failService(lc *launchContext, sig *serviceSignals, rec *domain.ServiceRecord, class domain.FailureClass, message string) error {
	failure := domain.ServiceFailure{Service: rec.Name, Class: class, Message: message}
	rec.RecordFailed(message, r.clock.Now())
	r.updateService(lc.persistCtx, rec)
	r.logger.Error("service failed", "stack", lc.stack.Name, "service", rec.Name, "class", string(class), "error", message)
	sig.fail(failure)
	return failure
}

// containerSpecFromPlan converts a planned container into the engine
// spec. Relative bind mount sources are resolved against the topology
// file's directory; the engine requires absolute host paths.
func containerSpecFromPlan(cp plan.ContainerPlan, baseDir string) docker.ContainerSpec {
	spec := docker.ContainerSpec{
		Name:       cp.Name,
		Image:      cp.Image,
		Command:    cp.Command,
		Entrypoint: cp.Entrypoint,
		Env:        cp.Env,
		Labels:     cp.Labels,
		Network:    cp.Network,
		Aliases:    cp.Aliases,
		RestartPolicy: docker.RestartPolicy{
			Name:              cp.RestartPolicy.Name,
			MaximumRetryCount: cp.RestartPolicy.MaximumRetryCount,
		},
		Resources: docker.ResourceLimits{
			CPULimit:    cp.Resources.CPULimit,
			MemoryLimit: cp.Resources.MemoryLimit,
		},
	}

	for _, p := range cp.Ports {
		spec.Ports = append(spec.Ports, docker.PortBinding{
			ContainerPort: p.ContainerPort,
			HostPort:      p.HostPort,
			Protocol:      p.Protocol,
			HostIP:        p.HostIP,
		})
	}

	for _, m := range cp.Mounts {
		source := m.Source
		if m.Bind && !filepath.IsAbs(source) {
			source = filepath.Join(baseDir, source)
		}
		spec.Mounts = append(spec.Mounts, docker.VolumeMount{
			Source:   source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}

	if cp.HealthCheck != nil {
		spec.HealthCheck = &docker.HealthCheck{
			Test:        cp.HealthCheck.Test,
			Interval:    cp.HealthCheck.Interval,
			Timeout:     cp.HealthCheck.Timeout,
			Retries:     cp.HealthCheck.Retries,
			StartPeriod: cp.HealthCheck.StartPeriod,
		}
	}
	return spec
}
