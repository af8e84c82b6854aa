package api

import (
	"bufio"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bargehq/barge/internal/core/domain"
	"github.com/bargehq/barge/internal/shell/docker"
	"github.com/go-chi/chi/v5"
)

// =============================================================================
// Logs Handler
// =============================================================================

// handleLogs returns recent log lines from a stack's containers.
// GET /api/v1/stacks/{name}/logs?service=&tail=&since=
func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	stack, err := h.store.GetStackByName(r.Context(), domain.Slugify(name))
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "stack not found", "stack_not_found")
			return
		}
		h.logger.Error("failed to get stack", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get stack", "internal_error")
		return
	}

	records, err := h.store.ListServices(r.Context(), stack.ID)
	if err != nil {
		h.logger.Error("failed to list services", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list services", "internal_error")
		return
	}

	// Parse query parameters
	tail := 100
	if t := r.URL.Query().Get("tail"); t != "" {
		if parsed, err := strconv.Atoi(t); err == nil && parsed > 0 {
			tail = parsed
		}
	}
	serviceFilter := r.URL.Query().Get("service")
	sinceStr := r.URL.Query().Get("since")
	var since time.Time
	if sinceStr != "" {
		since, _ = time.Parse(time.RFC3339, sinceStr)
	}

	logs := []LogEntry{}
	for _, rec := range records {
		if serviceFilter != "" && rec.Name != serviceFilter {
			continue
		}
		// Blocked or never-started services have no container to read.
		if rec.ContainerID == "" {
			continue
		}

		reader, err := h.docker.ContainerLogs(r.Context(), rec.ContainerID, docker.LogOptions{
			Tail:       strconv.Itoa(tail),
			Timestamps: true,
			Since:      since,
		})
		if err != nil {
			h.logger.Warn("failed to read container logs", "service", rec.Name, "error", err)
			continue
		}
		logs = append(logs, demuxLogs(reader, rec.Name)...)
		reader.Close()
	}

	h.writeJSON(w, http.StatusOK, LogsResponse{
		Logs:    logs,
		Service: serviceFilter,
		Tail:    tail,
		Since:   sinceStr,
	})
}

// =============================================================================
// Log Parsing
// =============================================================================

// demuxLogs parses engine log output into per-line entries. Containers
// without a TTY multiplex stdout and stderr into one stream, framed with
// an 8-byte header whose first byte names the stream (1=stdout, 2=stderr).
// TTY output carries no header and is treated as stdout.
func demuxLogs(reader io.Reader, service string) []LogEntry {
	var entries []LogEntry
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		stream := "stdout"
		if line[0] == 1 || line[0] == 2 {
			if line[0] == 2 {
				stream = "stderr"
			}
			if len(line) <= 8 {
				continue
			}
			line = line[8:]
		}

		timestamp, message := splitLogTimestamp(string(line))
		entries = append(entries, LogEntry{
			Service:   service,
			Stream:    stream,
			Timestamp: timestamp,
			Message:   message,
		})
	}

	return entries
}

// splitLogTimestamp peels off the RFC3339Nano timestamp the engine prepends
// when timestamps are requested. Lines without one keep their full text.
func splitLogTimestamp(line string) (timestamp, message string) {
	if i := strings.IndexByte(line, ' '); i > 0 {
		if t, err := time.Parse(time.RFC3339Nano, line[:i]); err == nil {
			return t.UTC().Format(time.RFC3339Nano), strings.TrimRight(line[i+1:], "\r")
		}
	}
	return "", strings.TrimRight(line, "\r")
}
