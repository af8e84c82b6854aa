// Package health implements the health gate: the state machine that
// decides when a started service may release its dependents.
//
// A gate begins pending and moves exactly once, to healthy on the first
// passing probe or to failed when consecutive countable failures reach the
// retry ceiling. Both outcomes are terminal. Failures observed inside the
// start period are reported but never counted.
//
// The machine itself is pure: Gate.Observe takes a probe result and a
// timestamp and returns the new state. Monitor drives it on a timer, with
// the clock and the probe both injected so tests can run the whole gate
// without containers or real time.
package health

import "time"

// =============================================================================
// Gate State
// =============================================================================

// State is the position of a health gate.
type State string

const (
	// StatePending: no verdict yet; dependents stay held.
	StatePending State = "pending"
	// StateHealthy: a probe passed. Terminal.
	StateHealthy State = "healthy"
	// StateFailed: the retry ceiling was reached. Terminal.
	StateFailed State = "failed"
)

// Terminal reports whether the state can never change again.
func (s State) Terminal() bool {
	return s == StateHealthy || s == StateFailed
}

// =============================================================================
// Configuration
// =============================================================================

// Config is the timing contract for one gate.
type Config struct {
	// Interval between probe runs.
	Interval time.Duration
	// Timeout for a single probe run. Overrunning it is a failure.
	Timeout time.Duration
	// StartPeriod after container start during which failures are
	// observed but not counted.
	StartPeriod time.Duration
	// Retries is the consecutive countable failures that flip the gate
	// to failed.
	Retries int
}

// withDefaults fills unset fields with the engine defaults.
func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.StartPeriod < 0 {
		c.StartPeriod = 0
	}
	if c.Retries < 1 {
		c.Retries = 3
	}
	return c
}

// =============================================================================
// Probe Results
// =============================================================================

// ProbeResult is the outcome of one probe run.
type ProbeResult struct {
	// OK is true when the probe command exited zero within the timeout.
	OK bool
	// ExitCode of the probe command, when it ran.
	ExitCode int
	// Output captured from the probe, for failure reports.
	Output string
	// TimedOut is true when the probe overran its timeout.
	TimedOut bool
	// Err is set when the probe could not be run at all.
	Err error
}

// =============================================================================
// Gate
// =============================================================================

// Gate is the pure health gate state machine for one service.
type Gate struct {
	config    Config
	startedAt time.Time
	state     State

	checks     int
	failures   int
	lastOutput string
	healthyAt  time.Time
}

// NewGate creates a pending gate for a service whose container started at
// startedAt.
func NewGate(cfg Config, startedAt time.Time) *Gate {
	return &Gate{
		config:    cfg.withDefaults(),
		startedAt: startedAt,
		state:     StatePending,
	}
}

// Observe feeds one probe result into the gate, taken at the given time,
// and returns the resulting state. Observing a terminal gate is a no-op.
func (g *Gate) Observe(result ProbeResult, at time.Time) State {
	if g.state.Terminal() {
		return g.state
	}

	g.checks++
	g.lastOutput = result.Output
	if result.Err != nil && g.lastOutput == "" {
		g.lastOutput = result.Err.Error()
	}

	if result.OK {
		g.state = StateHealthy
		g.healthyAt = at
		return g.state
	}

	// Failures inside the start period are observed, not counted.
	if at.Sub(g.startedAt) < g.config.StartPeriod {
		return g.state
	}

	g.failures++
	if g.failures >= g.config.Retries {
		g.state = StateFailed
	}
	return g.state
}

// State returns the gate's current state.
func (g *Gate) State() State { return g.state }

// Config returns the normalized timing contract the gate runs under.
func (g *Gate) Config() Config { return g.config }

// Checks returns how many probe results the gate has observed.
func (g *Gate) Checks() int { return g.checks }

// Failures returns how many countable failures have accumulated.
func (g *Gate) Failures() int { return g.failures }

// LastOutput returns the output of the most recent probe.
func (g *Gate) LastOutput() string { return g.lastOutput }

// HealthyAt returns the moment the gate turned healthy, or the zero time.
func (g *Gate) HealthyAt() time.Time { return g.healthyAt }
