package compose

// =============================================================================
// Topology - Main Output Type
// =============================================================================

// Topology represents a fully parsed stack topology.
// This is the barge-specific representation, decoupled from compose-go types.
type Topology struct {
	Name     string    `json:"name"`
	Services []Service `json:"services"`
	Networks []Network `json:"networks,omitempty"`
	Volumes  []Volume  `json:"volumes,omitempty"`
}

// Service returns the named service, or nil if the topology does not
// declare it.
func (t *Topology) Service(name string) *Service {
	for i := range t.Services {
		if t.Services[i].Name == name {
			return &t.Services[i]
		}
	}
	return nil
}

// =============================================================================
// Service Types
// =============================================================================

// Service represents a single service definition.
type Service struct {
	Name        string            `json:"name" yaml:"name"`
	Image       string            `json:"image,omitempty" yaml:"image,omitempty"`
	Build       *BuildConfig      `json:"build,omitempty" yaml:"build,omitempty"`
	Command     []string          `json:"command,omitempty" yaml:"command,omitempty"`
	Entrypoint  []string          `json:"entrypoint,omitempty" yaml:"entrypoint,omitempty"`
	Ports       []Port            `json:"ports,omitempty" yaml:"ports,omitempty"`
	Environment map[string]string `json:"environment,omitempty" yaml:"environment,omitempty"`
	EnvFiles    []string          `json:"env_files,omitempty" yaml:"env_files,omitempty"`
	Volumes     []VolumeMount     `json:"volumes,omitempty" yaml:"volumes,omitempty"`
	Networks    []string          `json:"networks,omitempty" yaml:"networks,omitempty"`
	DependsOn   []Dependency      `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Restart     RestartPolicy     `json:"restart,omitempty" yaml:"restart,omitempty"`
	Resources   ServiceResources  `json:"resources" yaml:"resources,omitempty"`
	HealthCheck *HealthCheck      `json:"healthcheck,omitempty" yaml:"healthcheck,omitempty"`
	Labels      map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// HasHealthCheck reports whether the service declares an enabled health
// check. Services without one are never gated on.
func (s *Service) HasHealthCheck() bool {
	return s.HealthCheck != nil && !s.HealthCheck.Disable && len(s.HealthCheck.Test) > 0
}

// BuildConfig represents build configuration (optional).
type BuildConfig struct {
	Context    string            `json:"context" yaml:"context"`
	Dockerfile string            `json:"dockerfile,omitempty" yaml:"dockerfile,omitempty"`
	Args       map[string]string `json:"args,omitempty" yaml:"args,omitempty"`
}

// Port represents a port mapping.
type Port struct {
	Target    uint32 `json:"target" yaml:"target"`                   // Container port
	Published uint32 `json:"published,omitempty" yaml:"published,omitempty"` // Host port (0 = dynamic)
	Protocol  string `json:"protocol,omitempty" yaml:"protocol,omitempty"`   // tcp, udp
	HostIP    string `json:"host_ip,omitempty" yaml:"host_ip,omitempty"`     // Bind IP
}

// VolumeMount represents a volume mount in a service.
type VolumeMount struct {
	Type     VolumeMountType `json:"type" yaml:"type"`     // bind, volume, tmpfs
	Source   string          `json:"source" yaml:"source"` // Path or volume name
	Target   string          `json:"target" yaml:"target"` // Container path
	ReadOnly bool            `json:"readonly" yaml:"readonly,omitempty"`
}

// VolumeMountType represents the type of volume mount.
type VolumeMountType string

const (
	VolumeMountTypeBind   VolumeMountType = "bind"
	VolumeMountTypeVolume VolumeMountType = "volume"
	VolumeMountTypeTmpfs  VolumeMountType = "tmpfs"
)

// Dependency represents one depends_on edge with its release condition.
type Dependency struct {
	Service   string         `json:"service" yaml:"service"`
	Condition StartCondition `json:"condition" yaml:"condition"`
}

// StartCondition controls when a dependent may start relative to its
// dependency.
type StartCondition string

const (
	// ConditionStarted releases the dependent once the dependency
	// container has been launched. No health requirement.
	ConditionStarted StartCondition = "service_started"

	// ConditionHealthy releases the dependent only after the dependency's
	// health check has reported healthy at least once.
	ConditionHealthy StartCondition = "service_healthy"

	// ConditionCompleted releases the dependent after the dependency has
	// exited with status zero.
	ConditionCompleted StartCondition = "service_completed_successfully"
)

// ServiceResources represents resource limits/reservations for a service.
type ServiceResources struct {
	CPULimit          float64 `json:"cpu_limit" yaml:"cpu_limit,omitempty"`
	CPUReservation    float64 `json:"cpu_reservation" yaml:"cpu_reservation,omitempty"`
	MemoryLimit       int64   `json:"memory_limit" yaml:"memory_limit,omitempty"`       // Bytes
	MemoryReservation int64   `json:"memory_reservation" yaml:"memory_reservation,omitempty"` // Bytes
}

// RestartPolicy represents the restart policy.
type RestartPolicy string

const (
	RestartNo            RestartPolicy = "no"
	RestartAlways        RestartPolicy = "always"
	RestartOnFailure     RestartPolicy = "on-failure"
	RestartUnlessStopped RestartPolicy = "unless-stopped"
)

// HealthCheck represents health check configuration. Interval, Timeout and
// StartPeriod are duration strings as written in the topology ("5s", "1m30s").
type HealthCheck struct {
	Test        []string `json:"test" yaml:"test"`
	Interval    string   `json:"interval,omitempty" yaml:"interval,omitempty"`
	Timeout     string   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Retries     int      `json:"retries,omitempty" yaml:"retries,omitempty"`
	StartPeriod string   `json:"start_period,omitempty" yaml:"start_period,omitempty"`
	Disable     bool     `json:"disable,omitempty" yaml:"disable,omitempty"`
}

// =============================================================================
// Network Types
// =============================================================================

// Network represents a network definition.
type Network struct {
	Name       string            `json:"name" yaml:"name"`
	Driver     string            `json:"driver,omitempty" yaml:"driver,omitempty"`
	External   bool              `json:"external" yaml:"external,omitempty"`
	Internal   bool              `json:"internal" yaml:"internal,omitempty"`
	Attachable bool              `json:"attachable" yaml:"attachable,omitempty"`
	Labels     map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// =============================================================================
// Volume Types
// =============================================================================

// Volume represents a named volume definition.
type Volume struct {
	Name     string            `json:"name" yaml:"name"`
	Driver   string            `json:"driver,omitempty" yaml:"driver,omitempty"`
	External bool              `json:"external" yaml:"external,omitempty"`
	Labels   map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}
