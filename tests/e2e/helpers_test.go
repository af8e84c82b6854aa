// Package e2e provides end-to-end testing utilities for barge.
package e2e

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/require"

	"github.com/bargehq/barge/internal/core/domain"
	"github.com/bargehq/barge/internal/core/plan"
	"github.com/bargehq/barge/internal/shell/docker"
	"github.com/bargehq/barge/internal/shell/runner"
)

// testStackPrefix marks stacks the suite owns. Cleanup only ever touches
// resources whose stack label carries it, so real stacks on the same host
// survive a test run.
const testStackPrefix = "e2e-"

// =============================================================================
// Stack Lifecycle
// =============================================================================

func fixturePath(name string) string {
	return filepath.Join("fixtures", name)
}

// upFixture brings a fixture stack up and fails the test when the launch
// does not fully converge. Cleanup is registered before the first engine
// call, so a failed launch still removes what it created.
func upFixture(t *testing.T, stackName, fixture string) *runner.UpResult {
	t.Helper()

	t.Cleanup(func() {
		CleanupStack(context.Background(), t, testDocker, stackName)
	})

	result, err := testRunner.Up(context.Background(), runner.UpOptions{
		File:        fixturePath(fixture),
		ProjectName: stackName,
		Timeout:     120 * time.Second,
	})
	require.NoError(t, err, "up %s", stackName)
	require.NotNil(t, result)
	return result
}

// downStack tears a stack down and fails the test on error.
func downStack(t *testing.T, stackName string, removeVolumes bool) *runner.DownResult {
	t.Helper()

	result, err := testRunner.Down(context.Background(), runner.DownOptions{
		ProjectName:   stackName,
		RemoveVolumes: removeVolumes,
	})
	require.NoError(t, err, "down %s", stackName)
	return result
}

// =============================================================================
// Store Helpers
// =============================================================================

// getStack reads the persisted stack record.
func getStack(t *testing.T, stackName string) *domain.Stack {
	t.Helper()

	stack, err := testStore.GetStackByName(context.Background(), stackName)
	require.NoError(t, err, "load stack %q", stackName)
	return stack
}

// getServiceRecord reads the persisted record of one service.
func getServiceRecord(t *testing.T, stackName, service string) *domain.ServiceRecord {
	t.Helper()

	stack := getStack(t, stackName)
	rec, err := testStore.GetService(context.Background(), stack.ID, service)
	require.NoError(t, err, "load service %q of stack %q", service, stackName)
	return rec
}

// getStackEvents returns the stack's recorded lifecycle events.
func getStackEvents(t *testing.T, stackName string) []domain.StackEvent {
	t.Helper()

	stack := getStack(t, stackName)
	events, err := testStore.ListEvents(context.Background(), stack.ID, 200, nil)
	require.NoError(t, err, "list events of stack %q", stackName)
	return events
}

// hasEvent reports whether an event of the given type was recorded for the
// service. An empty service matches any.
func hasEvent(events []domain.StackEvent, typ domain.StackEventType, service string) bool {
	for _, ev := range events {
		if ev.Type == typ && (service == "" || ev.Service == service) {
			return true
		}
	}
	return false
}

// =============================================================================
// Log Capture
// =============================================================================

// LogCapture streams and stores container logs. Logs are our eyes into
// what happened inside a container; without them a failed scenario is
// undebuggable.
type LogCapture struct {
	mu       sync.Mutex
	logs     map[string]*bytes.Buffer // containerID -> demuxed output
	names    map[string]string        // containerID -> service name
	docker   docker.Client
	testName string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// StartLogCapture begins streaming logs for every container of a stack.
// Capture runs until the test ends; on failure the buffers are dumped to
// the test output and to logs/{testName}/.
func StartLogCapture(ctx context.Context, t *testing.T, d docker.Client, stackName string) *LogCapture {
	t.Helper()

	captureCtx, cancel := context.WithCancel(ctx)
	lc := &LogCapture{
		logs:     make(map[string]*bytes.Buffer),
		names:    make(map[string]string),
		docker:   d,
		testName: t.Name(),
		cancel:   cancel,
	}

	containers, err := GetContainersByStack(captureCtx, d, stackName)
	if err != nil {
		t.Logf("WARN: failed to list containers for log capture: %v", err)
		return lc
	}
	for _, c := range containers {
		lc.capture(captureCtx, c)
	}

	t.Cleanup(func() {
		lc.Stop()
		lc.DumpAllLogs(t)
	})
	return lc
}

// capture starts one background streamer for a container.
func (lc *LogCapture) capture(ctx context.Context, c docker.ContainerInfo) {
	lc.mu.Lock()
	if _, exists := lc.logs[c.ID]; exists {
		lc.mu.Unlock()
		return
	}
	buf := &bytes.Buffer{}
	lc.logs[c.ID] = buf
	lc.names[c.ID] = c.Labels[plan.LabelService]
	lc.mu.Unlock()

	lc.wg.Add(1)
	go func() {
		defer lc.wg.Done()

		reader, err := lc.docker.ContainerLogs(ctx, c.ID, docker.LogOptions{
			Follow:     true,
			Tail:       "all",
			Timestamps: true,
		})
		if err != nil {
			lc.mu.Lock()
			fmt.Fprintf(buf, "ERROR: failed to get logs: %v\n", err)
			lc.mu.Unlock()
			return
		}
		defer reader.Close()

		// The stream is multiplexed; demux stdout and stderr into the
		// same buffer. Cancelling the context ends the read.
		w := &lockedWriter{mu: &lc.mu, buf: buf}
		stdcopy.StdCopy(w, w, reader)
	}()
}

// lockedWriter serializes buffer writes against concurrent GetLogs calls.
type lockedWriter struct {
	mu  *sync.Mutex
	buf *bytes.Buffer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

// GetLogs returns captured logs for a container.
func (lc *LogCapture) GetLogs(containerID string) string {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if buf, exists := lc.logs[containerID]; exists {
		return buf.String()
	}
	return ""
}

// DumpAllLogs writes all captured logs to the test output on failure.
func (lc *LogCapture) DumpAllLogs(t *testing.T) {
	if !t.Failed() {
		return
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	for containerID, buf := range lc.logs {
		t.Logf("=== LOGS FOR %s (%s) ===\n%s\n=== END LOGS ===",
			lc.names[containerID], shortContainerID(containerID), buf.String())
	}

	if err := lc.dumpToFile(); err != nil {
		t.Logf("Failed to dump logs to file: %v", err)
	}
}

func (lc *LogCapture) dumpToFile() error {
	if len(lc.logs) == 0 {
		return nil
	}

	logDir := filepath.Join("logs", lc.testName)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}

	for containerID, buf := range lc.logs {
		name := lc.names[containerID]
		if name == "" {
			name = "container"
		}
		logFile := filepath.Join(logDir, name+"-"+shortContainerID(containerID)+".log")
		if err := os.WriteFile(logFile, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write log file: %w", err)
		}
	}

	return nil
}

// Stop stops all log capturing.
func (lc *LogCapture) Stop() {
	if lc.cancel != nil {
		lc.cancel()
	}
	lc.wg.Wait()
}

func shortContainerID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// =============================================================================
// Container Waiting
// =============================================================================

// WaitForRunning polls a container until it is in running state.
func WaitForRunning(ctx context.Context, t *testing.T, d docker.Client, containerID string, timeout time.Duration) error {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		info, err := d.InspectContainer(ctx, containerID)
		if err != nil {
			return fmt.Errorf("inspect failed: %w", err)
		}
		if info.State == "running" {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for container to start (current state: %s)", info.State)
		}

		t.Logf("Container %s state: %s", shortContainerID(containerID), info.State)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

// WaitForHealthy polls a container until the engine reports it healthy. A
// container without a healthcheck counts as healthy once it is running.
func WaitForHealthy(ctx context.Context, t *testing.T, d docker.Client, containerID string, timeout time.Duration) error {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		info, err := d.InspectContainer(ctx, containerID)
		if err != nil {
			return fmt.Errorf("inspect failed: %w", err)
		}
		t.Logf("Container %s: status=%s health=%s", shortContainerID(containerID), info.State, info.Health)

		switch info.Health {
		case "healthy":
			return nil
		case "unhealthy":
			return fmt.Errorf("container became unhealthy")
		case "":
			if info.State == "running" {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for container to become healthy (current: %s)", info.Health)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

// Eventually retries a condition function until it returns true or timeout.
func Eventually(t *testing.T, timeout, interval time.Duration, condition func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
	}
	return false
}

// assertHTTPOK polls a URL until it answers 200 or the timeout expires.
// Published ports can lag the container start by a moment, so a single
// GET would race the proxy setup.
func assertHTTPOK(t *testing.T, url string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		resp, err := testClient.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				return
			}
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
		} else {
			lastErr = err
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("GET %s never returned 200 within %s: %v", url, timeout, lastErr)
}

// =============================================================================
// Cleanup Utilities
// =============================================================================

// CleanupStack force-removes every engine resource of one stack:
// containers first, then the network, then labeled volumes.
func CleanupStack(ctx context.Context, t *testing.T, d docker.Client, stackName string) {
	t.Logf("Cleaning up stack: %s", stackName)

	containers, err := GetContainersByStack(ctx, d, stackName)
	if err != nil {
		t.Logf("WARN: failed to list containers: %v", err)
	}
	for _, c := range containers {
		timeout := 5 * time.Second
		if err := d.StopContainer(ctx, c.ID, &timeout); err != nil && !errors.Is(err, docker.ErrContainerNotFound) && !errors.Is(err, docker.ErrContainerNotRunning) {
			t.Logf("WARN: stop failed for %s: %v", shortContainerID(c.ID), err)
		}
		if err := d.RemoveContainer(ctx, c.ID, docker.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil && !errors.Is(err, docker.ErrContainerNotFound) {
			t.Logf("WARN: remove failed for %s: %v", shortContainerID(c.ID), err)
		}
	}

	if err := d.RemoveNetwork(ctx, plan.NetworkName(stackName)); err != nil && !errors.Is(err, docker.ErrNetworkNotFound) {
		t.Logf("WARN: failed to remove network: %v", err)
	}

	volumes, err := d.ListVolumes(ctx, map[string]string{
		"label": plan.LabelStack + "=" + stackName,
	})
	if err != nil {
		t.Logf("WARN: failed to list volumes: %v", err)
	}
	for _, v := range volumes {
		if err := d.RemoveVolume(ctx, v.Name, true); err != nil {
			t.Logf("WARN: failed to remove volume %s: %v", v.Name, err)
		}
	}
}

// CleanupAllTestResources removes every barge-managed resource whose stack
// label carries the e2e prefix. Use this in TestMain setup and teardown.
func CleanupAllTestResources(ctx context.Context, d docker.Client) error {
	containers, err := d.ListContainers(ctx, docker.ListOptions{
		All: true,
		Filters: map[string]string{
			"label": plan.LabelManaged + "=true",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	stacks := make(map[string]bool)
	for _, c := range containers {
		stack := c.Labels[plan.LabelStack]
		if !strings.HasPrefix(stack, testStackPrefix) {
			continue
		}
		stacks[stack] = true
		timeout := 5 * time.Second
		_ = d.StopContainer(ctx, c.ID, &timeout)
		_ = d.RemoveContainer(ctx, c.ID, docker.RemoveOptions{Force: true, RemoveVolumes: true})
	}

	volumes, err := d.ListVolumes(ctx, map[string]string{
		"label": plan.LabelManaged + "=true",
	})
	if err != nil {
		return fmt.Errorf("failed to list volumes: %w", err)
	}
	for _, v := range volumes {
		stack := v.Labels[plan.LabelStack]
		if !strings.HasPrefix(stack, testStackPrefix) {
			continue
		}
		stacks[stack] = true
		_ = d.RemoveVolume(ctx, v.Name, true)
	}

	for stack := range stacks {
		_ = d.RemoveNetwork(ctx, plan.NetworkName(stack))
	}
	return nil
}

// =============================================================================
// Container Info Helpers
// =============================================================================

// GetContainersByStack returns all containers of a stack.
func GetContainersByStack(ctx context.Context, d docker.Client, stackName string) ([]docker.ContainerInfo, error) {
	return d.ListContainers(ctx, docker.ListOptions{
		All: true,
		Filters: map[string]string{
			"label": plan.LabelStack + "=" + stackName,
		},
	})
}
