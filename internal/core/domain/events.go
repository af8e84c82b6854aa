// Package domain contains the core domain types for barge.
package domain

import "time"

// =============================================================================
// Health Types
// =============================================================================

// HealthStatus represents the overall health of a stack or container.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// StackHealth represents the aggregated health of a stack.
type StackHealth struct {
	Status     HealthStatus      `json:"status"`
	Containers []ContainerHealth `json:"containers"`
	CheckedAt  time.Time         `json:"checked_at"`
}

// ContainerHealth represents the health status of a single container.
type ContainerHealth struct {
	Name      string       `json:"name"`
	Status    string       `json:"status"` // running, stopped, paused, restarting, exited
	Health    HealthStatus `json:"health"`
	StartedAt *time.Time   `json:"started_at,omitempty"`
	Restarts  int          `json:"restarts"`
}

// =============================================================================
// Container Info
// =============================================================================

// PortMapping represents a port mapping.
type PortMapping struct {
	ContainerPort int    `json:"container_port"`
	HostPort      int    `json:"host_port"`
	Protocol      string `json:"protocol"` // tcp, udp
}

// ContainerInfo represents information about a running container.
type ContainerInfo struct {
	ID          string        `json:"id"`
	ServiceName string        `json:"service_name"`
	Image       string        `json:"image"`
	Status      string        `json:"status"`
	Ports       []PortMapping `json:"ports,omitempty"`
}

// =============================================================================
// Stats Types
// =============================================================================

// ContainerStats represents resource usage statistics for a container.
type ContainerStats struct {
	Name             string  `json:"name"`
	CPUPercent       float64 `json:"cpu_percent"`
	MemoryUsageBytes int64   `json:"memory_usage_bytes"`
	MemoryLimitBytes int64   `json:"memory_limit_bytes"`
	MemoryPercent    float64 `json:"memory_percent"`
	NetworkRxBytes   int64   `json:"network_rx_bytes"`
	NetworkTxBytes   int64   `json:"network_tx_bytes"`
	BlockReadBytes   int64   `json:"block_read_bytes"`
	BlockWriteBytes  int64   `json:"block_write_bytes"`
	PIDs             int     `json:"pids"`
}

// StackStats represents aggregated stats for a stack.
type StackStats struct {
	Containers  []ContainerStats `json:"containers"`
	CollectedAt time.Time        `json:"collected_at"`
}

// =============================================================================
// Log Types
// =============================================================================

// ContainerLog represents a single log entry from a container.
type ContainerLog struct {
	Container string    `json:"container"`
	Timestamp time.Time `json:"timestamp"`
	Stream    string    `json:"stream"` // stdout, stderr
	Message   string    `json:"message"`
}

// StackLogs represents logs from a stack.
type StackLogs struct {
	Logs            []ContainerLog `json:"logs"`
	ContainerFilter *string        `json:"container_filter,omitempty"`
	Tail            int            `json:"tail"`
	Since           *time.Time     `json:"since,omitempty"`
}

// =============================================================================
// Event Types (Stack Lifecycle)
// =============================================================================

// StackEventType represents the type of stack lifecycle event.
type StackEventType string

const (
	EventImageBuilding      StackEventType = "image_building"
	EventImageBuilt         StackEventType = "image_built"
	EventImagePulling       StackEventType = "image_pulling"
	EventImagePulled        StackEventType = "image_pulled"
	EventNetworkCreated     StackEventType = "network_created"
	EventVolumeCreated      StackEventType = "volume_created"
	EventVolumeRemoved      StackEventType = "volume_removed"
	EventContainerCreated   StackEventType = "container_created"
	EventContainerStarted   StackEventType = "container_started"
	EventContainerStopped   StackEventType = "container_stopped"
	EventContainerRestarted StackEventType = "container_restarted"
	EventContainerDied      StackEventType = "container_died"
	EventContainerOOM       StackEventType = "container_oom"
	EventContainerHealthy   StackEventType = "container_healthy"
	EventContainerUnhealthy StackEventType = "container_unhealthy"
	EventGateHealthy        StackEventType = "gate_healthy"
	EventGateFailed         StackEventType = "gate_failed"
	EventServiceBlocked     StackEventType = "service_blocked"
)

// StackEvent represents a lifecycle event scoped to one stack.
type StackEvent struct {
	ID          int64          `json:"-"`
	ReferenceID string         `json:"id"`
	StackID     string         `json:"-"`
	Type        StackEventType `json:"type"`
	Service     string         `json:"service"`
	Message     string         `json:"message"`
	Timestamp   time.Time      `json:"timestamp"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewStackEvent creates a new stack event.
func NewStackEvent(referenceID, stackID string, eventType StackEventType, service, message string) StackEvent {
	now := time.Now()
	return StackEvent{
		ReferenceID: referenceID,
		StackID:     stackID,
		Type:        eventType,
		Service:     service,
		Message:     message,
		Timestamp:   now,
		CreatedAt:   now,
	}
}
