package docker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bargehq/barge/internal/core/health"
)

// =============================================================================
// Exec Probe
// =============================================================================

// Executor runs commands inside containers. DockerClient satisfies it.
type Executor interface {
	Execute(ctx context.Context, containerID string, cmd []string) (*ExecResult, error)
}

// ExecProbe runs a health command inside a container through the engine's
// exec API. It implements health.Probe.
type ExecProbe struct {
	cli         Executor
	containerID string
	command     []string
}

// NewExecProbe creates a probe that runs command inside containerID.
func NewExecProbe(cli Executor, containerID string, command []string) *ExecProbe {
	return &ExecProbe{
		cli:         cli,
		containerID: containerID,
		command:     command,
	}
}

// Run executes the probe command once. A non-zero exit code is an
// unhealthy result; exceeding the timeout is reported as a timed-out run.
func (p *ExecProbe) Run(ctx context.Context, timeout time.Duration) health.ProbeResult {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := p.cli.Execute(runCtx, p.containerID, p.command)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return health.ProbeResult{
				TimedOut: true,
				Err:      fmt.Errorf("probe timed out after %s: %w", timeout, ErrTimeout),
			}
		}
		return health.ProbeResult{Err: err}
	}

	output := res.Stdout
	if res.Stderr != "" {
		if output != "" {
			output += "\n"
		}
		output += res.Stderr
	}

	return health.ProbeResult{
		OK:       res.ExitCode == 0,
		ExitCode: res.ExitCode,
		Output:   strings.TrimSpace(output),
	}
}
