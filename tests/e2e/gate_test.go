package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bargehq/barge/internal/core/compose"
	"github.com/bargehq/barge/internal/core/domain"
	"github.com/bargehq/barge/internal/shell/runner"
)

// =============================================================================
// Health Gate Failure Tests
// =============================================================================
//
// The gate-wrongdb fixture probes a database that does not exist, so its
// health gate exhausts every retry. These tests pin down the terminal
// shape of that failure: the stack settles failed, the dependent is
// blocked without a container, and nothing is rolled back.

// TestE2E_GateFailure_WrongDatabase runs a stack whose database probe can
// never succeed and checks the failure surface end to end.
func TestE2E_GateFailure_WrongDatabase(t *testing.T) {
	requireDocker(t)
	if testing.Short() {
		t.Skip("skipping postgres stack in short mode")
	}

	ctx := context.Background()
	const stackName = "e2e-gate-wrongdb"
	t.Cleanup(func() {
		CleanupStack(context.Background(), t, testDocker, stackName)
	})

	result, err := testRunner.Up(ctx, runner.UpOptions{
		File:        fixturePath("gate-wrongdb.yaml"),
		ProjectName: stackName,
		Timeout:     120 * time.Second,
	})
	require.Error(t, err, "up must report the gate failure")
	require.NotNil(t, result, "a failed up still returns its result")
	StartLogCapture(ctx, t, testDocker, stackName)

	assert.Equal(t, domain.StackFailed, result.Stack.Status)
	assert.Contains(t, result.Stack.ErrorMessage, "failed to start")

	require.Len(t, result.Failures, 1)
	failure := result.Failures[0]
	assert.Equal(t, "db", failure.Service)
	assert.Equal(t, domain.FailureTimeout, failure.Class)
	assert.Contains(t, failure.Message, "health gate failed")

	require.Len(t, result.Blocked, 1)
	blocked := result.Blocked[0]
	assert.Equal(t, "db", blocked.Service)
	assert.Equal(t, "app", blocked.Edge)
	assert.Equal(t, compose.ConditionHealthy, blocked.Condition)

	db := getServiceRecord(t, stackName, "db")
	assert.Equal(t, domain.ServiceFailed, db.State)
	assert.Equal(t, domain.GateFailed, db.Gate)
	require.NotNil(t, db.FailedAt)

	app := getServiceRecord(t, stackName, "app")
	assert.Equal(t, domain.ServiceBlocked, app.State)
	assert.Empty(t, app.ContainerID, "blocked services never get a container")
	assert.Nil(t, app.StartedAt)

	events := getStackEvents(t, stackName)
	assert.True(t, hasEvent(events, domain.EventGateFailed, "db"))
	assert.True(t, hasEvent(events, domain.EventServiceBlocked, "app"))

	// No rollback: the database container keeps running even though its
	// gate failed. An operator can still exec in and diagnose.
	require.NotEmpty(t, db.ContainerID)
	info, ierr := testDocker.InspectContainer(ctx, db.ContainerID)
	require.NoError(t, ierr)
	assert.Equal(t, "running", info.State)

	// Down is valid from failed and stops the one container we created.
	down := downStack(t, stackName, false)
	assert.Equal(t, 1, down.StoppedContainers)
	assert.Equal(t, domain.StackStopped, getStack(t, stackName).Status)

	t.Log("PASS: Gate failure settled the stack without rollback")
}

// TestE2E_GateFailure_RecoversAfterFix deploys the broken probe, then
// redeploys with a corrected one under the same project name and expects
// a clean running stack.
func TestE2E_GateFailure_RecoversAfterFix(t *testing.T) {
	requireDocker(t)
	if testing.Short() {
		t.Skip("skipping postgres stack in short mode")
	}

	ctx := context.Background()
	const stackName = "e2e-gate-recover"
	t.Cleanup(func() {
		CleanupStack(context.Background(), t, testDocker, stackName)
	})

	broken, err := testRunner.Up(ctx, runner.UpOptions{
		File:        fixturePath("gate-wrongdb.yaml"),
		ProjectName: stackName,
		Timeout:     120 * time.Second,
	})
	require.Error(t, err)
	require.Equal(t, domain.StackFailed, broken.Stack.Status)

	// Same project, corrected probe. The failed stack is replaced, not
	// resurrected.
	fixed := upFixture(t, stackName, "gate-fixed.yaml")
	assert.Equal(t, domain.StackRunning, fixed.Stack.Status)
	assert.Empty(t, fixed.Failures)
	assert.Empty(t, fixed.Blocked)

	db := getServiceRecord(t, stackName, "db")
	assert.Equal(t, domain.ServiceStarted, db.State)
	assert.Equal(t, domain.GateHealthy, db.Gate)
	require.NotNil(t, db.FirstHealthyAt)

	app := getServiceRecord(t, stackName, "app")
	assert.Equal(t, domain.ServiceStarted, app.State)
	require.NotNil(t, app.StartedAt)
	assert.False(t, app.StartedAt.Before(*db.FirstHealthyAt),
		"dependent must wait for the corrected gate")

	downStack(t, stackName, false)

	t.Log("PASS: Corrected probe recovered the stack in place")
}
