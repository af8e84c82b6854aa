package plan

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bargehq/barge/internal/core/compose"
)

// =============================================================================
// Gate Spec Errors
// =============================================================================

var (
	ErrInvalidProbeCommand  = errors.New("invalid healthcheck command")
	ErrInvalidProbeDuration = errors.New("invalid healthcheck duration")
)

// =============================================================================
// Gate Spec
// =============================================================================

// Engine defaults, applied when the topology leaves a field unset.
const (
	DefaultGateInterval = 30 * time.Second
	DefaultGateTimeout  = 30 * time.Second
	DefaultGateRetries  = 3
)

// GateSpec is the health gate configuration for one service: the probe
// command to exec inside the container and the timing contract the gate
// drives it with. Command is plain argv; CMD and CMD-SHELL prefixes are
// already translated.
type GateSpec struct {
	Command     []string
	Interval    time.Duration
	Timeout     time.Duration
	StartPeriod time.Duration
	Retries     int
}

// BuildGateSpec translates a topology healthcheck into a gate spec.
// Returns (nil, nil) when the service declares no probe or disables it;
// such services are never gated on.
//
// Test forms follow the engine's convention:
//   - ["CMD", arg...]      exec argv directly
//   - ["CMD-SHELL", cmd]   run cmd through /bin/sh -c
//
// Durations use Go syntax ("5s", "1m30s"). Unset fields get the engine
// defaults: 30s interval, 30s timeout, 3 retries, no start period.
func BuildGateSpec(hc *compose.HealthCheck) (*GateSpec, error) {
	if hc == nil || hc.Disable || len(hc.Test) == 0 {
		return nil, nil
	}

	command, err := translateProbeCommand(hc.Test)
	if err != nil {
		return nil, err
	}

	spec := &GateSpec{
		Command:  command,
		Interval: DefaultGateInterval,
		Timeout:  DefaultGateTimeout,
		Retries:  DefaultGateRetries,
	}

	if spec.Interval, err = parseProbeDuration("interval", hc.Interval, DefaultGateInterval); err != nil {
		return nil, err
	}
	if spec.Timeout, err = parseProbeDuration("timeout", hc.Timeout, DefaultGateTimeout); err != nil {
		return nil, err
	}
	if spec.StartPeriod, err = parseProbeDuration("start_period", hc.StartPeriod, 0); err != nil {
		return nil, err
	}
	if hc.Retries > 0 {
		spec.Retries = hc.Retries
	}

	return spec, nil
}

// translateProbeCommand converts a healthcheck test list into exec argv.
func translateProbeCommand(test []string) ([]string, error) {
	switch test[0] {
	case "CMD":
		if len(test) < 2 {
			return nil, fmt.Errorf("%w: CMD requires arguments", ErrInvalidProbeCommand)
		}
		return test[1:], nil
	case "CMD-SHELL":
		if len(test) < 2 {
			return nil, fmt.Errorf("%w: CMD-SHELL requires a command", ErrInvalidProbeCommand)
		}
		return []string{"/bin/sh", "-c", strings.Join(test[1:], " ")}, nil
	default:
		return nil, fmt.Errorf("%w: test must start with CMD or CMD-SHELL, got %q", ErrInvalidProbeCommand, test[0])
	}
}

// parseProbeDuration parses a healthcheck duration field, applying the
// default when the field is unset.
func parseProbeDuration(field, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidProbeDuration, field, value)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalidProbeDuration, field)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
