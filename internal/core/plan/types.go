package plan

import (
	"time"

	"github.com/bargehq/barge/internal/core/compose"
)

// =============================================================================
// Container Plan Types
// =============================================================================

// ContainerPlan represents a planned container configuration.
// This is the pure output of planning, ready for the shell to execute.
type ContainerPlan struct {
	Name          string
	Image         string
	Command       []string
	Entrypoint    []string
	Env           map[string]string
	Labels        map[string]string
	Ports         []PortPlan
	Mounts        []MountPlan
	Network       string
	Aliases       []string
	RestartPolicy RestartPolicyPlan
	Resources     ResourcePlan
	HealthCheck   *HealthCheckPlan
}

// PortPlan represents a planned port binding.
type PortPlan struct {
	ContainerPort int
	HostPort      int
	Protocol      string
	HostIP        string
}

// MountPlan represents a planned volume mount.
type MountPlan struct {
	Source   string
	Target   string
	ReadOnly bool
	Bind     bool
}

// RestartPolicyPlan represents a restart policy.
type RestartPolicyPlan struct {
	Name              string
	MaximumRetryCount int
}

// ResourcePlan represents resource limits.
type ResourcePlan struct {
	CPULimit    float64
	MemoryLimit int64
}

// HealthCheckPlan is the engine-side healthcheck configuration. The gate
// makes its own observations; this keeps `docker inspect` and third-party
// tooling in agreement with what the topology declared.
type HealthCheckPlan struct {
	Test        []string
	Interval    time.Duration
	Timeout     time.Duration
	Retries     int
	StartPeriod time.Duration
}

// =============================================================================
// Stack Plan Types
// =============================================================================

// StackPlan is the complete execution plan for bringing a stack up.
type StackPlan struct {
	Stack    string
	Network  NetworkPlan
	Volumes  []NamedVolumePlan
	Services []ServicePlan
	Batches  [][]string
}

// NetworkPlan represents the stack-scoped network to ensure.
type NetworkPlan struct {
	Name   string
	Labels map[string]string
}

// NamedVolumePlan represents a durable named volume to ensure.
type NamedVolumePlan struct {
	Name   string
	Labels map[string]string
}

// ServicePlan carries everything the shell needs to run one service: the
// container to create, the image build (if any), the dependency edges to
// wait on, and the health gate to drive once started.
type ServicePlan struct {
	Name      string
	Container ContainerPlan
	Build     *ImageBuildPlan
	DependsOn []compose.Dependency
	Gate      *GateSpec
}

// ImageBuildPlan represents an image to build from a service's build
// context. Tag is the deterministic image reference derived from the
// fingerprint of the build inputs.
type ImageBuildPlan struct {
	Context    string
	Dockerfile string
	Args       map[string]string
	Tag        string
}

// =============================================================================
// Builder Parameter Types
// =============================================================================

// ContainerPlanParams contains all inputs for building a container plan.
type ContainerPlanParams struct {
	Stack      string
	StackID    string
	Service    compose.Service
	Image      string
	EnvFileEnv map[string]string
	Network    string
	Gate       *GateSpec

	// ExternalVolumes names the declared volumes the stack does not own.
	// They are mounted under their declared name, never stack-prefixed.
	ExternalVolumes map[string]bool
}

// StackPlanParams contains all inputs for building a stack plan.
type StackPlanParams struct {
	Stack   string
	StackID string

	// ImageTags maps service name to the deterministic tag of its built
	// image. Required for every service that declares build.
	ImageTags map[string]string

	// EnvFileEnv maps service name to the merged contents of its env
	// files. The shell owns reading the files.
	EnvFileEnv map[string]map[string]string
}

// =============================================================================
// Barge Container Labels
// =============================================================================

// Label keys used for barge resource identification.
const (
	LabelManaged = "com.barge.managed"
	LabelStack   = "com.barge.stack"
	LabelStackID = "com.barge.stack-id"
	LabelService = "com.barge.service"
)
