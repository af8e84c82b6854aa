package health

import "github.com/bargehq/barge/internal/core/domain"

// =============================================================================
// Health Aggregation (Pure Functions)
// =============================================================================

// AggregateHealth determines overall stack health from container states.
// This is a pure function - it takes container health values and returns a status.
func AggregateHealth(containers []domain.ContainerHealth) domain.HealthStatus {
	if len(containers) == 0 {
		return domain.HealthStatusUnknown
	}

	unhealthy := 0
	degraded := 0

	for _, c := range containers {
		switch c.Health {
		case domain.HealthStatusUnhealthy:
			unhealthy++
		case domain.HealthStatusDegraded:
			degraded++
		case domain.HealthStatusUnknown:
			// Unknown containers count as degraded
			degraded++
		}
	}

	// All unhealthy = unhealthy
	if unhealthy == len(containers) {
		return domain.HealthStatusUnhealthy
	}
	// Any unhealthy or degraded = degraded
	if unhealthy > 0 || degraded > 0 {
		return domain.HealthStatusDegraded
	}
	// All healthy = healthy
	return domain.HealthStatusHealthy
}

// DetermineContainerHealth determines health from container state and metrics.
// This is a pure function that maps container state to health status.
//
// Parameters:
// - status: Container status (running, stopped, paused, restarting, exited)
// - healthCheck: Docker health check result if available (healthy, unhealthy, starting)
// - restarts: Number of restarts since container creation
func DetermineContainerHealth(status string, healthCheck *string, restarts int) domain.HealthStatus {
	// Non-running containers are unhealthy
	if status != "running" {
		return domain.HealthStatusUnhealthy
	}

	// If Docker health check reports unhealthy
	if healthCheck != nil && *healthCheck == "unhealthy" {
		return domain.HealthStatusUnhealthy
	}

	// Many restarts indicate instability
	if restarts > 3 {
		return domain.HealthStatusDegraded
	}

	// Health check still starting
	if healthCheck != nil && *healthCheck == "starting" {
		return domain.HealthStatusDegraded
	}

	return domain.HealthStatusHealthy
}

// =============================================================================
// Event Message Generation (Pure Functions)
// =============================================================================

// EventMessage generates a human-readable message for stack events.
func EventMessage(eventType domain.StackEventType, service string) string {
	switch eventType {
	case domain.EventImageBuilding:
		return "Building image for " + service
	case domain.EventImageBuilt:
		return "Image for " + service + " built"
	case domain.EventImagePulling:
		return "Pulling image for " + service
	case domain.EventImagePulled:
		return "Image for " + service + " pulled"
	case domain.EventNetworkCreated:
		return "Network created"
	case domain.EventVolumeCreated:
		return "Volume " + service + " created"
	case domain.EventVolumeRemoved:
		return "Volume " + service + " removed"
	case domain.EventContainerCreated:
		return "Container " + service + " created"
	case domain.EventContainerStarted:
		return "Container " + service + " started successfully"
	case domain.EventContainerStopped:
		return "Container " + service + " stopped"
	case domain.EventContainerRestarted:
		return "Container " + service + " restarted"
	case domain.EventContainerDied:
		return "Container " + service + " died unexpectedly"
	case domain.EventContainerOOM:
		return "Container " + service + " killed due to out of memory"
	case domain.EventContainerHealthy:
		return "Container " + service + " reported healthy"
	case domain.EventContainerUnhealthy:
		return "Container " + service + " reported unhealthy"
	case domain.EventGateHealthy:
		return "Service " + service + " passed its health gate"
	case domain.EventGateFailed:
		return "Service " + service + " failed its health gate"
	case domain.EventServiceBlocked:
		return "Service " + service + " blocked by a failed dependency"
	default:
		return "Service " + service + " event: " + string(eventType)
	}
}
