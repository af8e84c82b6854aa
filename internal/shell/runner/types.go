package runner

import (
	"fmt"
	"time"

	"github.com/bargehq/barge/internal/core/compose"
	"github.com/bargehq/barge/internal/core/domain"
	"github.com/bargehq/barge/internal/shell/docker"
)

// =============================================================================
// Options
// =============================================================================

// UpOptions configures an up operation.
type UpOptions struct {
	// File is the topology file path. Defaults to "barge.yaml".
	File string

	// ProjectName overrides the stack name. Defaults to the slug of the
	// topology file's directory name.
	ProjectName string

	// EnvFiles provide ${VAR} interpolation values for the topology, in
	// order, later files winning. The host environment wins over all of
	// them.
	EnvFiles []string

	// ForceBuild rebuilds build-backed images even when an image for the
	// current fingerprint already exists.
	ForceBuild bool

	// Timeout bounds the whole launch, gates included. Zero means no
	// deadline.
	Timeout time.Duration
}

// DownOptions configures a down operation.
type DownOptions struct {
	// ProjectName names the stack to tear down.
	ProjectName string

	// RemoveVolumes also removes the stack's named volumes, so the next
	// up starts from empty state.
	RemoveVolumes bool

	// Timeout bounds each container stop before the engine kills it.
	// Zero means the default stop timeout.
	Timeout time.Duration
}

// =============================================================================
// Results
// =============================================================================

// UpResult reports what an up achieved. Failures and Blocked are in start
// order; a partial result still describes every service.
type UpResult struct {
	Stack    *domain.Stack
	Services []domain.ServiceRecord
	Failures []domain.ServiceFailure
	Blocked  []*GateError
}

// DownResult reports what a down removed.
type DownResult struct {
	Stack             *domain.Stack
	StoppedContainers int
	RemovedVolumes    []string
}

// ServiceStatus pairs a persisted service record with the live container
// state. Container is nil when the container no longer exists.
type ServiceStatus struct {
	Record    domain.ServiceRecord
	Container *docker.ContainerInfo
}

// StackStatus is the merged store and engine view of one stack.
type StackStatus struct {
	Stack    domain.Stack
	Services []ServiceStatus
	Health   domain.HealthStatus
}

// =============================================================================
// Gate Errors
// =============================================================================

// GateError reports a dependency edge that can never release: the
// dependency settled failed (or was itself blocked), so the dependent
// must not start.
type GateError struct {
	// Service is the dependency that failed.
	Service string
	// Edge is the dependent service held back by the failure.
	Edge string
	// Condition is what the edge was waiting for.
	Condition compose.StartCondition
	// Cause is the dependency's own failure.
	Cause error
}

func (e *GateError) Error() string {
	return fmt.Sprintf("service %q blocked: dependency %q did not reach %s", e.Edge, e.Service, e.Condition)
}

func (e *GateError) Unwrap() error { return e.Cause }
