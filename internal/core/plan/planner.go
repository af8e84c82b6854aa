package plan

import (
	"errors"
	"fmt"

	"github.com/bargehq/barge/internal/core/compose"
	"github.com/bargehq/barge/internal/core/domain"
)

// =============================================================================
// Stack Plan Assembly
// =============================================================================

var ErrUnresolvedImage = errors.New("service has no resolved image")

// BuildStackPlan assembles the complete execution plan for a topology.
//
// The shell resolves the inputs planning cannot: it digests build contexts
// into image tags and reads env files into maps. Everything else, names,
// labels, batches, gates, container shapes, is derived here, purely.
func BuildStackPlan(topo *compose.Topology, params StackPlanParams) (*StackPlan, error) {
	sp := &StackPlan{
		Stack: params.Stack,
		Network: NetworkPlan{
			Name:   NetworkName(params.Stack),
			Labels: resourceLabels(params),
		},
		Batches: StartBatches(topo.Services),
	}

	external := make(map[string]bool)
	for _, vol := range topo.Volumes {
		// External volumes are mounted, never created or removed by us.
		if vol.External {
			external[vol.Name] = true
			continue
		}
		sp.Volumes = append(sp.Volumes, NamedVolumePlan{
			Name:   VolumeName(params.Stack, vol.Name),
			Labels: resourceLabels(params),
		})
	}

	for _, svc := range topo.Services {
		gate, err := BuildGateSpec(svc.HealthCheck)
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", svc.Name, err)
		}

		image := svc.Image
		var build *ImageBuildPlan
		if svc.Build != nil {
			tag, ok := params.ImageTags[svc.Name]
			if !ok || tag == "" {
				return nil, fmt.Errorf("%w: %q declares build but no tag was resolved", ErrUnresolvedImage, svc.Name)
			}
			image = tag

			dockerfile := svc.Build.Dockerfile
			if dockerfile == "" {
				dockerfile = "Dockerfile"
			}
			build = &ImageBuildPlan{
				Context:    svc.Build.Context,
				Dockerfile: dockerfile,
				Args:       svc.Build.Args,
				Tag:        tag,
			}
		}
		if image == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnresolvedImage, svc.Name)
		}

		container := BuildContainerPlan(ContainerPlanParams{
			Stack:           params.Stack,
			StackID:         params.StackID,
			Service:         svc,
			Image:           image,
			EnvFileEnv:      params.EnvFileEnv[svc.Name],
			Network:         sp.Network.Name,
			Gate:            gate,
			ExternalVolumes: external,
		})

		sp.Services = append(sp.Services, ServicePlan{
			Name:      svc.Name,
			Container: container,
			Build:     build,
			DependsOn: svc.DependsOn,
			Gate:      gate,
		})
	}

	return sp, nil
}

// Service returns the service plan by name, or nil.
func (sp *StackPlan) Service(name string) *ServicePlan {
	for i := range sp.Services {
		if sp.Services[i].Name == name {
			return &sp.Services[i]
		}
	}
	return nil
}

func resourceLabels(params StackPlanParams) map[string]string {
	return map[string]string{
		LabelManaged: "true",
		LabelStack:   params.Stack,
		LabelStackID: params.StackID,
	}
}

// =============================================================================
// Stack Status Transition Planning
// =============================================================================

// UpPath represents the result of planning a stack up operation.
type UpPath struct {
	// Valid indicates whether the up operation can proceed.
	Valid bool

	// Replace indicates existing containers must be torn down first.
	// Durable volumes are never touched by a replace.
	Replace bool

	// Transitions is the sequence of states to transition through.
	// Empty if Valid is false.
	Transitions []domain.StackStatus

	// ErrorReason contains the reason why the up is not allowed.
	// Empty if Valid is true.
	ErrorReason string
}

// DetermineUpPath determines how to bring a stack up from its current
// status.
//
// Valid up paths:
//   - pending → starting (first up)
//   - stopped/failed → starting (restart or retry, replacing leftovers)
//   - running/degraded → starting (redeploy in place)
//
// Invalid states for up:
//   - starting/stopping: operation in progress
func DetermineUpPath(currentStatus domain.StackStatus) UpPath {
	switch currentStatus {
	case domain.StackPending:
		return UpPath{
			Valid:       true,
			Transitions: []domain.StackStatus{domain.StackStarting},
		}

	case domain.StackStopped, domain.StackFailed:
		return UpPath{
			Valid:       true,
			Replace:     true,
			Transitions: []domain.StackStatus{domain.StackStarting},
		}

	case domain.StackRunning, domain.StackDegraded:
		return UpPath{
			Valid:       true,
			Replace:     true,
			Transitions: []domain.StackStatus{domain.StackStarting},
		}

	case domain.StackStarting:
		return UpPath{
			Valid:       false,
			ErrorReason: "stack is already starting",
		}

	case domain.StackStopping:
		return UpPath{
			Valid:       false,
			ErrorReason: "stack is currently stopping",
		}

	default:
		return UpPath{
			Valid:       false,
			ErrorReason: "cannot start stack in current state",
		}
	}
}

// DownPath represents the result of planning a stack down operation.
type DownPath struct {
	// Valid indicates whether the down operation can proceed.
	Valid bool

	// Transitions is the sequence of states to transition through.
	// Empty when nothing needs to change (down is idempotent).
	Transitions []domain.StackStatus

	// ErrorReason contains the reason why the down is not allowed.
	ErrorReason string
}

// DetermineDownPath determines how to tear a stack down from its current
// status. Down is cleanup: it is valid from every settled state, including
// failed stacks whose gates gave up, and is a no-op on stopped stacks.
func DetermineDownPath(currentStatus domain.StackStatus) DownPath {
	switch currentStatus {
	case domain.StackRunning, domain.StackDegraded, domain.StackFailed, domain.StackStarting:
		return DownPath{
			Valid:       true,
			Transitions: []domain.StackStatus{domain.StackStopping, domain.StackStopped},
		}

	case domain.StackPending, domain.StackStopped:
		// Nothing running; removing leftovers is still fine.
		return DownPath{Valid: true}

	case domain.StackStopping:
		return DownPath{
			Valid:       false,
			ErrorReason: "stack is already stopping",
		}

	default:
		return DownPath{
			Valid:       false,
			ErrorReason: "cannot stop stack in current state",
		}
	}
}
