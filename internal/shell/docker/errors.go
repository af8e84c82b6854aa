package docker

import (
	"errors"
	"fmt"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

// Sentinels classified from engine responses. Callers branch on these with
// errors.Is: the runner maps them onto its failure classes, and cleanup
// paths treat the not-found family as already done.
var (
	ErrContainerNotFound       = errors.New("container not found")
	ErrContainerAlreadyExists  = errors.New("container already exists")
	ErrContainerNotRunning     = errors.New("container is not running")
	ErrContainerAlreadyRunning = errors.New("container is already running")

	ErrNetworkNotFound      = errors.New("network not found")
	ErrNetworkAlreadyExists = errors.New("network already exists")
	ErrNetworkInUse         = errors.New("network has active endpoints")

	ErrVolumeNotFound = errors.New("volume not found")
	ErrVolumeInUse    = errors.New("volume is in use")

	ErrImageNotFound   = errors.New("image not found")
	ErrImagePullFailed = errors.New("image pull failed")
	ErrBuildFailed     = errors.New("image build failed")

	// ErrPortAlreadyAllocated surfaces a host port collision. The service
	// that asked for the port fails; nothing else is affected.
	ErrPortAlreadyAllocated = errors.New("port is already allocated")

	ErrConnectionFailed = errors.New("docker connection failed")
	ErrTimeout          = errors.New("operation timed out")
)

// =============================================================================
// DockerError
// =============================================================================

// DockerError carries the engine failure with enough context to report it:
// the client method that failed, the kind of resource it was touching, and
// the resource identity when one exists. Err holds the matching sentinel
// (or the raw engine error) for errors.Is classification.
type DockerError struct {
	Op      string
	Entity  string
	ID      string
	Message string
	Err     error
}

func (e *DockerError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *DockerError) Unwrap() error {
	return e.Err
}

// NewDockerError builds a DockerError. ID and err may be empty when the
// failure precedes resource resolution.
func NewDockerError(op, entity, id, message string, err error) *DockerError {
	return &DockerError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}
