package health

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var gateStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		Interval: 5 * time.Second,
		Timeout:  5 * time.Second,
		Retries:  3,
	}
}

// =============================================================================
// Gate Transition Tests
// =============================================================================

func TestGate_StartsPending(t *testing.T) {
	g := NewGate(testConfig(), gateStart)

	assert.Equal(t, StatePending, g.State())
	assert.Equal(t, 0, g.Checks())
	assert.Equal(t, 0, g.Failures())
}

func TestGate_FirstSuccessIsHealthy(t *testing.T) {
	g := NewGate(testConfig(), gateStart)

	at := gateStart.Add(5 * time.Second)
	state := g.Observe(ProbeResult{OK: true}, at)

	assert.Equal(t, StateHealthy, state)
	assert.Equal(t, at, g.HealthyAt())
	assert.Equal(t, 1, g.Checks())
}

func TestGate_HealthyIsTerminal(t *testing.T) {
	g := NewGate(testConfig(), gateStart)
	g.Observe(ProbeResult{OK: true}, gateStart.Add(time.Second))

	// A later failing probe must not move a settled gate.
	state := g.Observe(ProbeResult{OK: false, ExitCode: 1}, gateStart.Add(time.Minute))

	assert.Equal(t, StateHealthy, state)
	assert.Equal(t, 1, g.Checks())
}

func TestGate_FailuresBelowCeilingStayPending(t *testing.T) {
	g := NewGate(testConfig(), gateStart)

	state := g.Observe(ProbeResult{OK: false, ExitCode: 2}, gateStart.Add(1*time.Second))
	assert.Equal(t, StatePending, state)
	state = g.Observe(ProbeResult{OK: false, ExitCode: 2}, gateStart.Add(6*time.Second))
	assert.Equal(t, StatePending, state)

	assert.Equal(t, 2, g.Failures())
}

func TestGate_RetryCeilingFails(t *testing.T) {
	g := NewGate(testConfig(), gateStart)

	g.Observe(ProbeResult{OK: false}, gateStart.Add(1*time.Second))
	g.Observe(ProbeResult{OK: false}, gateStart.Add(6*time.Second))
	state := g.Observe(ProbeResult{OK: false}, gateStart.Add(11*time.Second))

	assert.Equal(t, StateFailed, state)
	assert.Equal(t, 3, g.Failures())
}

func TestGate_FailedIsTerminal(t *testing.T) {
	g := NewGate(Config{Retries: 1, Interval: time.Second, Timeout: time.Second}, gateStart)
	g.Observe(ProbeResult{OK: false}, gateStart.Add(time.Second))
	require.Equal(t, StateFailed, g.State())

	// A success after the ceiling must not resurrect the gate.
	state := g.Observe(ProbeResult{OK: true}, gateStart.Add(2*time.Second))

	assert.Equal(t, StateFailed, state)
}

func TestGate_RecoveryBeforeCeiling(t *testing.T) {
	g := NewGate(testConfig(), gateStart)

	g.Observe(ProbeResult{OK: false}, gateStart.Add(1*time.Second))
	g.Observe(ProbeResult{OK: false}, gateStart.Add(6*time.Second))
	state := g.Observe(ProbeResult{OK: true}, gateStart.Add(11*time.Second))

	assert.Equal(t, StateHealthy, state)
	assert.Equal(t, 2, g.Failures())
	assert.Equal(t, 3, g.Checks())
}

// =============================================================================
// Start Period Tests
// =============================================================================

func TestGate_StartPeriodFailuresNotCounted(t *testing.T) {
	cfg := testConfig()
	cfg.StartPeriod = 10 * time.Second
	g := NewGate(cfg, gateStart)

	g.Observe(ProbeResult{OK: false}, gateStart.Add(2*time.Second))
	g.Observe(ProbeResult{OK: false}, gateStart.Add(7*time.Second))

	assert.Equal(t, StatePending, g.State())
	assert.Equal(t, 0, g.Failures())
	assert.Equal(t, 2, g.Checks())
}

func TestGate_StartPeriodSuccessCounts(t *testing.T) {
	cfg := testConfig()
	cfg.StartPeriod = 10 * time.Second
	g := NewGate(cfg, gateStart)

	state := g.Observe(ProbeResult{OK: true}, gateStart.Add(2*time.Second))

	assert.Equal(t, StateHealthy, state)
}

func TestGate_FailuresCountAfterStartPeriod(t *testing.T) {
	cfg := testConfig()
	cfg.StartPeriod = 10 * time.Second
	cfg.Retries = 2
	g := NewGate(cfg, gateStart)

	g.Observe(ProbeResult{OK: false}, gateStart.Add(5*time.Second))  // grace
	g.Observe(ProbeResult{OK: false}, gateStart.Add(10*time.Second)) // counted
	state := g.Observe(ProbeResult{OK: false}, gateStart.Add(15*time.Second))

	assert.Equal(t, StateFailed, state)
	assert.Equal(t, 2, g.Failures())
	assert.Equal(t, 3, g.Checks())
}

// =============================================================================
// Probe Result Handling Tests
// =============================================================================

func TestGate_TimeoutIsFailure(t *testing.T) {
	g := NewGate(Config{Retries: 1, Interval: time.Second, Timeout: time.Second}, gateStart)

	state := g.Observe(ProbeResult{TimedOut: true}, gateStart.Add(time.Second))

	assert.Equal(t, StateFailed, state)
}

func TestGate_KeepsLastOutput(t *testing.T) {
	g := NewGate(testConfig(), gateStart)

	g.Observe(ProbeResult{OK: false, Output: "connection refused"}, gateStart.Add(time.Second))

	assert.Equal(t, "connection refused", g.LastOutput())
}

func TestGate_ProbeErrorUsedWhenNoOutput(t *testing.T) {
	g := NewGate(testConfig(), gateStart)

	g.Observe(ProbeResult{Err: errors.New("exec create failed")}, gateStart.Add(time.Second))

	assert.Equal(t, "exec create failed", g.LastOutput())
}

// =============================================================================
// Config Defaults Tests
// =============================================================================

func TestGate_ConfigDefaults(t *testing.T) {
	g := NewGate(Config{}, gateStart)

	cfg := g.Config()
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, time.Duration(0), cfg.StartPeriod)
}

func TestState_Terminal(t *testing.T) {
	assert.False(t, StatePending.Terminal())
	assert.True(t, StateHealthy.Terminal())
	assert.True(t, StateFailed.Terminal())
}
