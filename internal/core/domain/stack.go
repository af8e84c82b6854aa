package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Stack Errors
// =============================================================================

var (
	ErrInvalidStackName  = errors.New("stack name is invalid")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// =============================================================================
// Stack Status
// =============================================================================

type StackStatus string

const (
	StackPending  StackStatus = "pending"
	StackStarting StackStatus = "starting"
	StackRunning  StackStatus = "running"
	StackDegraded StackStatus = "degraded"
	StackStopping StackStatus = "stopping"
	StackStopped  StackStatus = "stopped"
	StackFailed   StackStatus = "failed"
)

// =============================================================================
// Stack
// =============================================================================

// Stack represents one topology file brought under management: a named set
// of services, their containers, and the durable resources (network,
// volumes) that belong to them.
type Stack struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	File         string      `json:"file"`
	ConfigHash   string      `json:"config_hash,omitempty"`
	Status       StackStatus `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	StoppedAt    *time.Time  `json:"stopped_at,omitempty"`
}

// NewStack creates a stack record in pending status. The name is slugified
// so it is safe to embed in container, network, and volume names.
func NewStack(name, file string) (*Stack, error) {
	slug := Slugify(name)
	if slug == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStackName, name)
	}

	now := time.Now().UTC()
	return &Stack{
		ID:        uuid.New().String(),
		Name:      slug,
		File:      file,
		Status:    StackPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Transition attempts to transition the stack to a new status.
func (s *Stack) Transition(to StackStatus) error {
	if err := ValidateTransition(s.Status, to); err != nil {
		return err
	}

	s.Status = to
	s.UpdatedAt = time.Now().UTC()

	// Clear error on retry
	if to == StackStarting {
		s.ErrorMessage = ""
	}

	if to == StackRunning {
		now := time.Now().UTC()
		s.StartedAt = &now
	}
	if to == StackStopped {
		now := time.Now().UTC()
		s.StoppedAt = &now
	}

	return nil
}

// TransitionToFailed transitions to failed status with an error message.
func (s *Stack) TransitionToFailed(errorMessage string) error {
	switch s.Status {
	case StackStarting, StackRunning, StackDegraded, StackStopping:
		s.Status = StackFailed
		s.ErrorMessage = errorMessage
		s.UpdatedAt = time.Now().UTC()
		return nil
	default:
		return ErrInvalidTransition
	}
}

// =============================================================================
// State Machine
// =============================================================================

// validTransitions defines the allowed state transitions.
var validTransitions = map[StackStatus][]StackStatus{
	StackPending:  {StackStarting},
	StackStarting: {StackRunning, StackDegraded, StackFailed, StackStopping},
	StackRunning:  {StackStarting, StackDegraded, StackStopping, StackFailed},
	StackDegraded: {StackStarting, StackRunning, StackStopping, StackFailed},
	StackStopping: {StackStopped},
	StackStopped:  {StackStarting},
	StackFailed:   {StackStarting, StackStopping},
}

// ValidateTransition checks if a status transition is valid.
func ValidateTransition(from, to StackStatus) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return ErrInvalidTransition
	}

	for _, s := range allowed {
		if s == to {
			return nil
		}
	}

	return ErrInvalidTransition
}

// =============================================================================
// Service Records
// =============================================================================

// ServiceState is the run state of one service within a stack.
type ServiceState string

const (
	// ServicePending: recorded but not yet acted on.
	ServicePending ServiceState = "pending"
	// ServiceWaiting: held back until dependency conditions release it.
	ServiceWaiting ServiceState = "waiting"
	// ServiceStarted: container created and started.
	ServiceStarted ServiceState = "started"
	// ServiceExited: container stopped on its own or was stopped.
	ServiceExited ServiceState = "exited"
	// ServiceFailed: start failed or the health gate gave up.
	ServiceFailed ServiceState = "failed"
	// ServiceBlocked: never started because a dependency failed.
	ServiceBlocked ServiceState = "blocked"
)

// GateHealth is the persisted view of a service's health gate.
type GateHealth string

const (
	// GateNone: the service declares no probe and is never gated on.
	GateNone GateHealth = "none"
	GatePending GateHealth = "pending"
	GateHealthy GateHealth = "healthy"
	GateFailed  GateHealth = "failed"
)

// ServiceRecord tracks one service of a stack across its lifetime. The
// timestamps are load-bearing: StartedAt and FirstHealthyAt are how the
// ordering contract (a dependent starts only at or after its dependency's
// first healthy moment) is checked after the fact.
type ServiceRecord struct {
	ID             int64        `json:"-"`
	StackID        string       `json:"-"`
	Name           string       `json:"name"`
	ContainerID    string       `json:"container_id,omitempty"`
	Image          string       `json:"image"`
	State          ServiceState `json:"state"`
	Gate           GateHealth   `json:"gate"`
	ExitCode       *int         `json:"exit_code,omitempty"`
	Restarts       int          `json:"restarts"`
	Error          string       `json:"error,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	StartedAt      *time.Time   `json:"started_at,omitempty"`
	FirstHealthyAt *time.Time   `json:"first_healthy_at,omitempty"`
	FailedAt       *time.Time   `json:"failed_at,omitempty"`
}

// NewServiceRecord creates a pending record for a service of a stack.
func NewServiceRecord(stackID, name, image string, gated bool) ServiceRecord {
	now := time.Now().UTC()
	gate := GateNone
	if gated {
		gate = GatePending
	}
	return ServiceRecord{
		StackID:   stackID,
		Name:      name,
		Image:     image,
		State:     ServicePending,
		Gate:      gate,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RecordStarted marks the service container as started at t.
func (r *ServiceRecord) RecordStarted(containerID string, t time.Time) {
	r.ContainerID = containerID
	r.State = ServiceStarted
	r.StartedAt = &t
	r.UpdatedAt = t
}

// RecordExited marks the service container as exited with a code.
func (r *ServiceRecord) RecordExited(code int, t time.Time) {
	r.State = ServiceExited
	r.ExitCode = &code
	r.UpdatedAt = t
}

// RecordHealthy marks the first moment the gate observed a passing probe.
// Later calls keep the first timestamp.
func (r *ServiceRecord) RecordHealthy(t time.Time) {
	r.Gate = GateHealthy
	if r.FirstHealthyAt == nil {
		r.FirstHealthyAt = &t
	}
	r.UpdatedAt = t
}

// RecordFailed marks the service failed with a reason.
func (r *ServiceRecord) RecordFailed(reason string, t time.Time) {
	r.State = ServiceFailed
	if r.Gate == GatePending {
		r.Gate = GateFailed
	}
	r.Error = reason
	r.FailedAt = &t
	r.UpdatedAt = t
}

// RecordBlocked marks the service as never started because a dependency
// failed its gate.
func (r *ServiceRecord) RecordBlocked(reason string, t time.Time) {
	r.State = ServiceBlocked
	r.Error = reason
	r.UpdatedAt = t
}

// =============================================================================
// Failure Classes
// =============================================================================

// FailureClass buckets service failures for reporting.
type FailureClass string

const (
	// FailureConfig: the topology or its inputs are invalid.
	FailureConfig FailureClass = "config"
	// FailureImage: an image could not be built or pulled.
	FailureImage FailureClass = "image"
	// FailureRuntime: the engine rejected or lost the container.
	FailureRuntime FailureClass = "runtime"
	// FailureTimeout: a health gate exhausted its retry ceiling.
	FailureTimeout FailureClass = "timeout"
	// FailureInternal: barge itself misbehaved.
	FailureInternal FailureClass = "internal"
)

// ServiceFailure describes why one service did not reach its goal state.
type ServiceFailure struct {
	Service string       `json:"service"`
	Class   FailureClass `json:"class"`
	Message string       `json:"message"`
}

// Error implements the error interface.
func (f ServiceFailure) Error() string {
	return fmt.Sprintf("service %q: %s failure: %s", f.Service, f.Class, f.Message)
}
