package plan

import (
	"strconv"
	"strings"

	"github.com/bargehq/barge/internal/core/compose"
)

// =============================================================================
// Container Plan Building Functions
// =============================================================================

// BuildContainerPlan builds a ContainerPlan from a topology service and
// stack parameters.
//
// This is a pure function that transforms the service definition into a
// container plan the shell can execute via the Docker API.
//
// The function:
//   - Generates the container name using ContainerName()
//   - Takes the resolved image (declared image or deterministic built tag)
//   - Layers environment: env file values first, environment section wins
//   - Prefixes named volumes with the stack name
//   - Attaches the container to the stack network, aliased by service name
//   - Derives the engine-side healthcheck from the gate spec
//   - Maps restart policy to Docker format
//   - Copies and merges labels
func BuildContainerPlan(params ContainerPlanParams) ContainerPlan {
	svc := params.Service

	cp := ContainerPlan{
		Name:       ContainerName(params.Stack, svc.Name),
		Image:      params.Image,
		Command:    svc.Command,
		Entrypoint: svc.Entrypoint,
		Env:        make(map[string]string),
		Labels: map[string]string{
			LabelManaged: "true",
			LabelStack:   params.Stack,
			LabelStackID: params.StackID,
			LabelService: svc.Name,
		},
		Network: params.Network,
		Aliases: []string{svc.Name},
	}

	// Environment: env file values form the base layer, the service's
	// environment section overrides per key.
	for k, v := range params.EnvFileEnv {
		cp.Env[k] = v
	}
	for k, v := range svc.Environment {
		cp.Env[k] = v
	}

	// Port bindings
	for _, p := range svc.Ports {
		cp.Ports = append(cp.Ports, PortPlan{
			ContainerPort: int(p.Target),
			HostPort:      int(p.Published),
			Protocol:      p.Protocol,
			HostIP:        p.HostIP,
		})
	}

	// Volume mounts
	for _, v := range svc.Volumes {
		source := v.Source
		// Replace named volume with stack-prefixed name; external volumes
		// keep their declared name
		if v.Type == compose.VolumeMountTypeVolume && !params.ExternalVolumes[v.Source] {
			source = VolumeName(params.Stack, v.Source)
		}
		cp.Mounts = append(cp.Mounts, MountPlan{
			Source:   source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
			Bind:     v.Type == compose.VolumeMountTypeBind,
		})
	}

	// Engine-side healthcheck, from the validated gate spec
	if params.Gate != nil && svc.HealthCheck != nil {
		cp.HealthCheck = &HealthCheckPlan{
			Test:        svc.HealthCheck.Test,
			Interval:    params.Gate.Interval,
			Timeout:     params.Gate.Timeout,
			Retries:     params.Gate.Retries,
			StartPeriod: params.Gate.StartPeriod,
		}
	}

	// Resource limits
	if svc.Resources.CPULimit > 0 {
		cp.Resources.CPULimit = svc.Resources.CPULimit
	}
	if svc.Resources.MemoryLimit > 0 {
		cp.Resources.MemoryLimit = svc.Resources.MemoryLimit
	}

	// Restart policy
	cp.RestartPolicy = mapRestartPolicy(svc.Restart)

	// Copy service labels
	for k, v := range svc.Labels {
		cp.Labels[k] = v
	}

	return cp
}

// mapRestartPolicy maps a topology restart policy to Docker restart policy
// form. An on-failure policy may carry a retry ceiling ("on-failure:5").
func mapRestartPolicy(policy compose.RestartPolicy) RestartPolicyPlan {
	raw := string(policy)
	switch {
	case raw == string(compose.RestartAlways):
		return RestartPolicyPlan{Name: "always"}
	case raw == string(compose.RestartUnlessStopped):
		return RestartPolicyPlan{Name: "unless-stopped"}
	case strings.HasPrefix(raw, string(compose.RestartOnFailure)):
		rp := RestartPolicyPlan{Name: "on-failure"}
		if _, after, found := strings.Cut(raw, ":"); found {
			if n, err := strconv.Atoi(after); err == nil && n > 0 {
				rp.MaximumRetryCount = n
			}
		}
		return rp
	default:
		return RestartPolicyPlan{Name: "no"}
	}
}
