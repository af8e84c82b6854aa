package docker

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// =============================================================================
// Container Stats
// =============================================================================

// ContainerStats returns a one-shot resource usage snapshot for a container.
func (d *DockerClient) ContainerStats(ctx context.Context, containerID string) (*ContainerResourceStats, error) {
	resp, err := d.cli.ContainerStats(ctx, containerID, false)
	if err != nil {
		if client.IsErrNotFound(err) || strings.Contains(err.Error(), "No such container") {
			return nil, NewDockerError("ContainerStats", "container", containerID, "container not found", ErrContainerNotFound)
		}
		return nil, NewDockerError("ContainerStats", "container", containerID, err.Error(), err)
	}
	defer resp.Body.Close()

	var raw container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, NewDockerError("ContainerStats", "container", containerID, "failed to parse stats: "+err.Error(), err)
	}

	return calculateStats(&raw), nil
}

// calculateStats converts the engine's raw counters into percentages and
// totals. CPU usage derives from the delta between the two samples the
// one-shot endpoint returns.
func calculateStats(stats *container.StatsResponse) *ContainerResourceStats {
	result := &ContainerResourceStats{}

	// CPU percentage
	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage - stats.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(stats.CPUStats.SystemUsage - stats.PreCPUStats.SystemUsage)
	cpuCount := float64(stats.CPUStats.OnlineCPUs)
	if cpuCount == 0 {
		cpuCount = 1
	}
	if systemDelta > 0 && cpuDelta > 0 {
		result.CPUPercent = (cpuDelta / systemDelta) * cpuCount * 100.0
	}

	// Memory
	result.MemoryUsageBytes = int64(stats.MemoryStats.Usage)
	result.MemoryLimitBytes = int64(stats.MemoryStats.Limit)
	if result.MemoryLimitBytes > 0 {
		result.MemoryPercent = float64(result.MemoryUsageBytes) / float64(result.MemoryLimitBytes) * 100.0
	}

	// Network I/O
	for _, netStats := range stats.Networks {
		result.NetworkRxBytes += int64(netStats.RxBytes)
		result.NetworkTxBytes += int64(netStats.TxBytes)
	}

	// Block I/O
	for _, bioEntry := range stats.BlkioStats.IoServiceBytesRecursive {
		switch bioEntry.Op {
		case "Read", "read":
			result.BlockReadBytes += int64(bioEntry.Value)
		case "Write", "write":
			result.BlockWriteBytes += int64(bioEntry.Value)
		}
	}

	// PIDs
	result.PIDs = int(stats.PidsStats.Current)

	return result
}
