package api

import "time"

// =============================================================================
// Response Types
// =============================================================================

// StackResponse is the stored view of a stack.
type StackResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	File         string     `json:"file"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	StoppedAt    *time.Time `json:"stopped_at,omitempty"`
}

// ListStacksResponse is the response for listing stacks.
type ListStacksResponse struct {
	Stacks []StackResponse `json:"stacks"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// StackDetailResponse is the stored stack merged with a live engine view
// of its services.
type StackDetailResponse struct {
	Stack    StackResponse     `json:"stack"`
	Health   string            `json:"health"`
	Services []ServiceResponse `json:"services"`
}

// ServiceResponse is the per-service record, with the live container state
// attached when the container still exists.
type ServiceResponse struct {
	Name           string                  `json:"name"`
	Image          string                  `json:"image"`
	ContainerID    string                  `json:"container_id,omitempty"`
	State          string                  `json:"state"`
	Gate           string                  `json:"gate"`
	ExitCode       *int                    `json:"exit_code,omitempty"`
	Restarts       int                     `json:"restarts"`
	Error          string                  `json:"error,omitempty"`
	Container      *ContainerStateResponse `json:"container,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
	StartedAt      *time.Time              `json:"started_at,omitempty"`
	FirstHealthyAt *time.Time              `json:"first_healthy_at,omitempty"`
	FailedAt       *time.Time              `json:"failed_at,omitempty"`
}

// ContainerStateResponse is the live engine view of a service container.
type ContainerStateResponse struct {
	State    string `json:"state"`
	Health   string `json:"health,omitempty"`
	ExitCode int    `json:"exit_code"`
	Restarts int    `json:"restarts"`
}

// ListServicesResponse is the response for listing service records.
type ListServicesResponse struct {
	Services []ServiceResponse `json:"services"`
	Total    int               `json:"total"`
}

// EventResponse is one recorded lifecycle event.
type EventResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Service   string    `json:"service,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ListEventsResponse is the response for listing stack events.
type ListEventsResponse struct {
	Events []EventResponse `json:"events"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
}

// LogEntry is one demuxed log line from a service container.
type LogEntry struct {
	Service   string `json:"service"`
	Stream    string `json:"stream"`
	Timestamp string `json:"timestamp,omitempty"`
	Message   string `json:"message"`
}

// LogsResponse is the response for container logs.
type LogsResponse struct {
	Logs    []LogEntry `json:"logs"`
	Service string     `json:"service,omitempty"`
	Tail    int        `json:"tail"`
	Since   string     `json:"since,omitempty"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
