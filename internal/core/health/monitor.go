package health

import (
	"context"
	"time"
)

// =============================================================================
// Probe
// =============================================================================

// Probe runs one health check against a service. The production probe
// execs the topology's healthcheck command inside the container; tests
// inject scripted results.
type Probe interface {
	Run(ctx context.Context, timeout time.Duration) ProbeResult
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context, timeout time.Duration) ProbeResult

func (f ProbeFunc) Run(ctx context.Context, timeout time.Duration) ProbeResult {
	return f(ctx, timeout)
}

// =============================================================================
// Monitor
// =============================================================================

// Outcome is the settled result of driving a gate.
type Outcome struct {
	State      State
	Checks     int
	Failures   int
	LastOutput string
	HealthyAt  time.Time
}

// Monitor drives a gate on a timer: probe, observe, wait an interval,
// repeat, until the gate settles. The first probe runs immediately after
// container start; the start period is honored by the gate, not by
// delaying probes.
type Monitor struct {
	gate  *Gate
	probe Probe
	clock Clock
}

// NewMonitor creates a monitor for one service's gate.
func NewMonitor(cfg Config, startedAt time.Time, probe Probe, clock Clock) *Monitor {
	if clock == nil {
		clock = SystemClock()
	}
	return &Monitor{
		gate:  NewGate(cfg, startedAt),
		probe: probe,
		clock: clock,
	}
}

// Gate returns the underlying gate, for observers that want live state.
func (m *Monitor) Gate() *Gate { return m.gate }

// Wait drives the gate until it settles and returns the outcome. The error
// is non-nil only when the context ends first; the outcome then carries
// the pending state the gate was left in. A failed gate is a settled
// outcome, not an error.
func (m *Monitor) Wait(ctx context.Context) (Outcome, error) {
	for {
		result := m.probe.Run(ctx, m.gate.Config().Timeout)
		state := m.gate.Observe(result, m.clock.Now())
		if state.Terminal() {
			return m.outcome(), nil
		}

		if err := ctx.Err(); err != nil {
			return m.outcome(), err
		}
		select {
		case <-ctx.Done():
			return m.outcome(), ctx.Err()
		case <-m.clock.After(m.gate.Config().Interval):
		}
	}
}

func (m *Monitor) outcome() Outcome {
	return Outcome{
		State:      m.gate.State(),
		Checks:     m.gate.Checks(),
		Failures:   m.gate.Failures(),
		LastOutput: m.gate.LastOutput(),
		HealthyAt:  m.gate.HealthyAt(),
	}
}
