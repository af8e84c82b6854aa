// Package docker wraps the Docker engine API for container, image,
// network, and volume lifecycle management.
package docker

import (
	"context"
	"io"
	"time"
)

// =============================================================================
// Container Types
// =============================================================================

// ContainerSpec defines the specification for creating a container.
type ContainerSpec struct {
	Name          string
	Image         string
	Command       []string
	Entrypoint    []string
	Env           map[string]string
	Labels        map[string]string
	Ports         []PortBinding
	Mounts        []VolumeMount
	Network       string   // Network to attach at creation time
	Aliases       []string // DNS aliases on that network (e.g. the service name)
	WorkingDir    string
	RestartPolicy RestartPolicy
	Resources     ResourceLimits
	HealthCheck   *HealthCheck
}

// PortBinding defines a port mapping.
type PortBinding struct {
	ContainerPort int
	HostPort      int    // 0 for auto-assign
	Protocol      string // "tcp" or "udp"
	HostIP        string // "" for 0.0.0.0
}

// VolumeMount defines a volume mount.
type VolumeMount struct {
	Source   string // Volume name or host path
	Target   string // Container path
	ReadOnly bool
}

// RestartPolicy defines the container restart policy.
type RestartPolicy struct {
	Name              string // "no", "always", "on-failure", "unless-stopped"
	MaximumRetryCount int
}

// ResourceLimits defines resource constraints.
type ResourceLimits struct {
	CPULimit    float64 // CPU cores
	MemoryLimit int64   // Bytes
}

// HealthCheck defines container health check configuration.
type HealthCheck struct {
	Test        []string
	Interval    time.Duration
	Timeout     time.Duration
	Retries     int
	StartPeriod time.Duration
}

// =============================================================================
// Container Info
// =============================================================================

// ContainerStatus represents the container status.
type ContainerStatus string

const (
	ContainerStatusCreated    ContainerStatus = "created"
	ContainerStatusRunning    ContainerStatus = "running"
	ContainerStatusPaused     ContainerStatus = "paused"
	ContainerStatusRestarting ContainerStatus = "restarting"
	ContainerStatusRemoving   ContainerStatus = "removing"
	ContainerStatusExited     ContainerStatus = "exited"
	ContainerStatusDead       ContainerStatus = "dead"
)

// ContainerInfo contains information about a container.
type ContainerInfo struct {
	ID           string
	Name         string
	Image        string
	Status       ContainerStatus
	State        string // "running", "exited", "created", etc.
	Health       string // "healthy", "unhealthy", "starting", ""
	CreatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
	Ports        []PortBinding
	Labels       map[string]string
	ExitCode     int
	RestartCount int
}

// ExecResult holds the outcome of a command executed inside a container.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ContainerResourceStats represents resource statistics for a container.
type ContainerResourceStats struct {
	CPUPercent       float64
	MemoryUsageBytes int64
	MemoryLimitBytes int64
	MemoryPercent    float64
	NetworkRxBytes   int64
	NetworkTxBytes   int64
	BlockReadBytes   int64
	BlockWriteBytes  int64
	PIDs             int
}

// =============================================================================
// Network Types
// =============================================================================

// NetworkSpec defines the specification for creating a network.
type NetworkSpec struct {
	Name   string
	Driver string // "bridge", "overlay", etc.
	Labels map[string]string
}

// =============================================================================
// Volume Types
// =============================================================================

// VolumeSpec defines the specification for creating a volume.
type VolumeSpec struct {
	Name   string
	Driver string
	Labels map[string]string
}

// VolumeInfo describes an existing volume.
type VolumeInfo struct {
	Name   string
	Driver string
	Labels map[string]string
}

// =============================================================================
// Image Types
// =============================================================================

// BuildSpec defines the specification for building an image.
type BuildSpec struct {
	ContextDir string            // Directory archived and sent as the build context
	Dockerfile string            // Relative to ContextDir; defaults to "Dockerfile"
	Tag        string            // Tag applied to the built image
	Args       map[string]string // Build arguments
	Labels     map[string]string
	NoCache    bool
}

// =============================================================================
// Options
// =============================================================================

// RemoveOptions defines options for removing containers.
type RemoveOptions struct {
	Force         bool
	RemoveVolumes bool
}

// ListOptions defines options for listing containers.
type ListOptions struct {
	All     bool              // Include stopped containers
	Filters map[string]string // e.g., {"label": "com.barge.stack=web"}
}

// LogOptions defines options for container logs.
type LogOptions struct {
	Follow     bool
	Tail       string // "all" or number
	Since      time.Time
	Until      time.Time
	Timestamps bool
}

// PullOptions defines options for pulling images.
type PullOptions struct {
	Platform string // e.g., "linux/amd64"
}

// =============================================================================
// Client Interface
// =============================================================================

// Client defines the Docker engine client interface.
type Client interface {
	// Container operations
	CreateContainer(ctx context.Context, spec ContainerSpec) (containerID string, err error)
	StartContainer(ctx context.Context, containerID string) error
	StopContainer(ctx context.Context, containerID string, timeout *time.Duration) error
	WaitContainer(ctx context.Context, containerID string) (exitCode int, err error)
	KillContainer(ctx context.Context, containerID, signal string) error
	RemoveContainer(ctx context.Context, containerID string, opts RemoveOptions) error
	InspectContainer(ctx context.Context, containerID string) (*ContainerInfo, error)
	ListContainers(ctx context.Context, opts ListOptions) ([]ContainerInfo, error)
	ContainerLogs(ctx context.Context, containerID string, opts LogOptions) (io.ReadCloser, error)
	ContainerStats(ctx context.Context, containerID string) (*ContainerResourceStats, error)
	Execute(ctx context.Context, containerID string, cmd []string) (*ExecResult, error)

	// Network operations
	CreateNetwork(ctx context.Context, spec NetworkSpec) (networkID string, err error)
	RemoveNetwork(ctx context.Context, networkID string) error

	// Volume operations
	CreateVolume(ctx context.Context, spec VolumeSpec) (volumeName string, err error)
	RemoveVolume(ctx context.Context, volumeName string, force bool) error
	VolumeExists(ctx context.Context, volumeName string) (bool, error)
	ListVolumes(ctx context.Context, filters map[string]string) ([]VolumeInfo, error)

	// Image operations
	PullImage(ctx context.Context, image string, opts PullOptions) error
	BuildImage(ctx context.Context, spec BuildSpec) (imageID string, err error)
	ImageExists(ctx context.Context, image string) (bool, error)

	// Event operations
	StreamEvents(ctx context.Context, labelFilters map[string]string) (<-chan EngineEvent, <-chan error)

	// Health operations
	Ping(ctx context.Context) error
	Close() error
}
