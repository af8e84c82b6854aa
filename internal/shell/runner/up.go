package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bargehq/barge/internal/core/compose"
	"github.com/bargehq/barge/internal/core/domain"
	"github.com/bargehq/barge/internal/core/plan"
	"github.com/bargehq/barge/internal/shell/docker"
	"github.com/bargehq/barge/internal/shell/store"
)

const defaultTopologyFile = "barge.yaml"

// =============================================================================
// Up
// =============================================================================

// Up brings a stack up: parse, plan, ensure resources, build or pull
// images, then launch every service concurrently, each waiting on its
// dependency edges. A failed service blocks its dependents and nothing
// else; services that already started are never rolled back.
func (r *Runner) Up(ctx context.Context, opts UpOptions) (*UpResult, error) {
	// 1. Read the topology and its interpolation environment.
	file := opts.File
	if file == "" {
		file = defaultTopologyFile
	}
	path, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("resolve topology path: %w", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}
	baseDir := filepath.Dir(path)

	interpEnv, err := InterpolationEnv(baseDir, opts.EnvFiles)
	if err != nil {
		return nil, err
	}

	projectName := opts.ProjectName
	if projectName == "" {
		projectName = filepath.Base(baseDir)
	}
	projectName = domain.Slugify(projectName)

	topo, err := compose.ParseWithEnv(string(content), projectName, interpEnv)
	if err != nil {
		return nil, fmt.Errorf("parse topology: %w", err)
	}

	r.logger.Info("bringing stack up", "stack", topo.Name, "file", path, "services", len(topo.Services))

	// 2. Upsert the stack record and check the path is clear.
	stack, upPath, err := r.prepareStack(ctx, topo.Name, path, content)
	if err != nil {
		return nil, err
	}

	// From here on, failures settle the stack record as failed.
	fail := func(err error) (*UpResult, error) {
		if terr := stack.TransitionToFailed(err.Error()); terr == nil {
			if uerr := r.store.UpdateStack(ctx, stack); uerr != nil {
				r.logger.Warn("failed to persist stack failure", "stack", stack.Name, "error", uerr)
			}
		}
		return nil, err
	}

	// 3. Replace leftovers from a previous run of this stack. Volumes
	// are untouched: their data survives redeploys.
	if upPath.Replace {
		r.removeStackContainers(ctx, stack, nil)
	}

	// 4. Resolve images: fingerprint build contexts, build or pull.
	tags, imageErrs, err := r.resolveImages(ctx, topo, baseDir, stack, opts.ForceBuild)
	if err != nil {
		return fail(err)
	}

	// 5. Plan the whole stack.
	envFileEnv, err := serviceEnvFiles(baseDir, topo)
	if err != nil {
		return fail(err)
	}
	sp, err := plan.BuildStackPlan(topo, plan.StackPlanParams{
		Stack:      topo.Name,
		StackID:    stack.ID,
		ImageTags:  tags,
		EnvFileEnv: envFileEnv,
	})
	if err != nil {
		return fail(fmt.Errorf("plan stack: %w", err))
	}

	// 6. Reset service records for this run.
	records, err := r.resetServiceRecords(ctx, stack.ID, sp)
	if err != nil {
		return fail(err)
	}

	// 7. Ensure the network and the stack-owned volumes.
	if err := r.ensureNetwork(ctx, stack, sp); err != nil {
		return fail(err)
	}
	if err := r.ensureVolumes(ctx, stack, sp); err != nil {
		return fail(err)
	}

	// 8. Launch every service, honoring dependency edges and gates.
	launchCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		launchCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	result := r.launch(launchCtx, ctx, stack, sp, baseDir, records, imageErrs)

	// 9. Settle the stack record.
	if len(result.Failures) == 0 && len(result.Blocked) == 0 {
		if terr := stack.Transition(domain.StackRunning); terr == nil {
			if uerr := r.store.UpdateStack(ctx, stack); uerr != nil {
				r.logger.Warn("failed to persist stack record", "stack", stack.Name, "error", uerr)
			}
		}
		r.logger.Info("stack is running", "stack", stack.Name, "services", len(result.Services))
		return result, nil
	}

	msg := fmt.Sprintf("%d of %d services failed to start", len(result.Failures)+len(result.Blocked), len(sp.Services))
	if terr := stack.TransitionToFailed(msg); terr == nil {
		if uerr := r.store.UpdateStack(ctx, stack); uerr != nil {
			r.logger.Warn("failed to persist stack record", "stack", stack.Name, "error", uerr)
		}
	}
	r.logger.Error("stack failed to converge", "stack", stack.Name, "failed", len(result.Failures), "blocked", len(result.Blocked))

	errs := make([]error, 0, len(result.Failures)+len(result.Blocked))
	for _, f := range result.Failures {
		errs = append(errs, f)
	}
	for _, b := range result.Blocked {
		errs = append(errs, b)
	}
	return result, fmt.Errorf("stack %q: %w", stack.Name, errors.Join(errs...))
}

// prepareStack loads or creates the stack record, verifies an up is legal
// from its current status, and moves it to starting.
func (r *Runner) prepareStack(ctx context.Context, name, path string, content []byte) (*domain.Stack, plan.UpPath, error) {
	stack, err := r.store.GetStackByName(ctx, name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		stack, err = domain.NewStack(name, path)
		if err != nil {
			return nil, plan.UpPath{}, err
		}
		if err := r.store.CreateStack(ctx, stack); err != nil {
			return nil, plan.UpPath{}, fmt.Errorf("create stack record: %w", err)
		}
	case err != nil:
		return nil, plan.UpPath{}, fmt.Errorf("load stack record: %w", err)
	}

	upPath := plan.DetermineUpPath(stack.Status)
	if !upPath.Valid {
		return nil, upPath, fmt.Errorf("stack %q: %s", stack.Name, upPath.ErrorReason)
	}

	stack.File = path
	stack.ConfigHash = "sha256:" + plan.DigestBytes(content)
	for _, status := range upPath.Transitions {
		if err := stack.Transition(status); err != nil {
			return nil, upPath, fmt.Errorf("transition stack to %s: %w", status, err)
		}
	}
	if err := r.store.UpdateStack(ctx, stack); err != nil {
		return nil, upPath, fmt.Errorf("persist stack record: %w", err)
	}
	return stack, upPath, nil
}

// resetServiceRecords replaces the stack's service rows with fresh
// pending records for this run, atomically. Records are created in start
// order, so listing them back preserves it.
func (r *Runner) resetServiceRecords(ctx context.Context, stackID string, sp *plan.StackPlan) (map[string]*domain.ServiceRecord, error) {
	records := make(map[string]*domain.ServiceRecord, len(sp.Services))
	err := r.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.DeleteServices(ctx, stackID); err != nil {
			return err
		}
		for _, batch := range sp.Batches {
			for _, name := range batch {
				svc := sp.Service(name)
				if svc == nil {
					return fmt.Errorf("planned batch names unknown service %q", name)
				}
				rec := domain.NewServiceRecord(stackID, svc.Name, svc.Container.Image, svc.Gate != nil)
				if err := tx.CreateService(ctx, &rec); err != nil {
					return err
				}
				records[svc.Name] = &rec
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reset service records: %w", err)
	}
	return records, nil
}

// ensureNetwork creates the stack network, reusing one left from a
// previous run.
func (r *Runner) ensureNetwork(ctx context.Context, stack *domain.Stack, sp *plan.StackPlan) error {
	_, err := r.docker.CreateNetwork(ctx, docker.NetworkSpec{Name: sp.Network.Name, Labels: sp.Network.Labels})
	if errors.Is(err, docker.ErrNetworkAlreadyExists) {
		r.logger.Debug("network already exists, reusing", "network", sp.Network.Name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("create network: %w", err)
	}
	r.record(ctx, stack.ID, domain.EventNetworkCreated, "")
	r.logger.Debug("network created", "network", sp.Network.Name)
	return nil
}

// ensureVolumes creates the stack-owned volumes that do not exist yet.
// Existing volumes are reused as-is.
func (r *Runner) ensureVolumes(ctx context.Context, stack *domain.Stack, sp *plan.StackPlan) error {
	for _, vol := range sp.Volumes {
		exists, err := r.docker.VolumeExists(ctx, vol.Name)
		if err != nil {
			return fmt.Errorf("inspect volume %s: %w", vol.Name, err)
		}
		if exists {
			r.logger.Debug("volume already exists, reusing", "volume", vol.Name)
			continue
		}
		if _, err := r.docker.CreateVolume(ctx, docker.VolumeSpec{Name: vol.Name, Labels: vol.Labels}); err != nil {
			return fmt.Errorf("create volume %s: %w", vol.Name, err)
		}
		r.record(ctx, stack.ID, domain.EventVolumeCreated, vol.Name)
		r.logger.Debug("volume created", "volume", vol.Name)
	}
	return nil
}
