// Package main provides the barge binary.
//
// Barge brings multi-service container stacks up on a single host from a
// declarative topology file, gating dependent services on declared health
// checks.
//
// Usage:
//
//	barge <command> [flags]
//
// Commands:
//
//	up        Bring a stack up
//	down      Tear a stack down
//	ps        Show service status for a stack
//	logs      Show container logs for a stack
//	events    Show recorded events for a stack
//	config    Render the normalized topology
//	validate  Validate a topology file
//	serve     Run the status API and background workers
//	version   Show version
package main

import (
	"errors"
	"fmt"
	"os"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess            = 0
	ExitConfigError        = 1
	ExitDatabaseError      = 2
	ExitDockerError        = 3
	ExitHTTPServerError    = 4
	ExitOrchestrationError = 5
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		var xerr *ExitError
		if errors.As(err, &xerr) {
			return xerr.ExitCode
		}
		return ExitConfigError
	}
	return ExitSuccess
}

// =============================================================================
// Exit Error
// =============================================================================

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ExitError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
