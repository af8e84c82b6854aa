// Package api provides the read-only HTTP status surface for barge.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bargehq/barge/internal/core/domain"
	"github.com/bargehq/barge/internal/shell/api/openapi"
	"github.com/bargehq/barge/internal/shell/docker"
	"github.com/bargehq/barge/internal/shell/runner"
	"github.com/bargehq/barge/internal/shell/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the status API. All endpoints are
// read-only: mutation happens through the CLI, the API only reports.
type Handler struct {
	store  store.Store
	docker docker.Client
	runner *runner.Runner
	logger *slog.Logger
	spec   *openapi.Generator
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, d docker.Client, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{
		store:  s,
		docker: d,
		runner: runner.New(d, s, l),
		logger: l,
		spec:   newSpecGenerator(),
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
	r.Get("/openapi.json", h.spec.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/stacks", func(r chi.Router) {
			r.Get("/", h.handleListStacks)
			r.Get("/{name}", h.handleGetStack)
			r.Get("/{name}/services", h.handleListServices)
			r.Get("/{name}/events", h.handleListEvents)
			r.Get("/{name}/logs", h.handleLogs)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	// Check database (implicit - if we got here, store was created)
	checks["database"] = "ok"

	// Check the engine
	if err := h.docker.Ping(r.Context()); err != nil {
		checks["docker"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["docker"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Stack Handlers
// =============================================================================

func (h *Handler) handleListStacks(w http.ResponseWriter, r *http.Request) {
	opts := store.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}

	stacks, err := h.store.ListStacks(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list stacks", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list stacks", "internal_error")
		return
	}

	resp := ListStacksResponse{
		Stacks: make([]StackResponse, 0, len(stacks)),
		Total:  len(stacks),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	for _, s := range stacks {
		resp.Stacks = append(resp.Stacks, stackToResponse(&s))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetStack(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	status, err := h.runner.Status(r.Context(), name)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "stack not found", "stack_not_found")
			return
		}
		h.logger.Error("failed to get stack status", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get stack", "internal_error")
		return
	}

	resp := StackDetailResponse{
		Stack:    stackToResponse(&status.Stack),
		Health:   string(status.Health),
		Services: make([]ServiceResponse, 0, len(status.Services)),
	}
	for _, svc := range status.Services {
		resp.Services = append(resp.Services, serviceToResponse(svc.Record, svc.Container))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListServices(w http.ResponseWriter, r *http.Request) {
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

	resp := ListServicesResponse{
		Services: make([]ServiceResponse, 0, len(records)),
		Total:    len(records),
	}
	for _, rec := range records {
		resp.Services = append(resp.Services, serviceToResponse(rec, nil))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
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

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	var eventType *string
	if t := r.URL.Query().Get("type"); t != "" {
		eventType = &t
	}

	events, err := h.store.ListEvents(r.Context(), stack.ID, limit, eventType)
	if err != nil {
		h.logger.Error("failed to list events", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list events", "internal_error")
		return
	}

	resp := ListEventsResponse{
		Events: make([]EventResponse, 0, len(events)),
		Total:  len(events),
		Limit:  limit,
	}
	for _, e := range events {
		resp.Events = append(resp.Events, EventResponse{
			ID:        e.ReferenceID,
			Type:      string(e.Type),
			Service:   e.Service,
			Message:   e.Message,
			Timestamp: e.Timestamp,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func stackToResponse(s *domain.Stack) StackResponse {
	return StackResponse{
		ID:           s.ID,
		Name:         s.Name,
		File:         s.File,
		Status:       string(s.Status),
		ErrorMessage: s.ErrorMessage,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		StartedAt:    s.StartedAt,
		StoppedAt:    s.StoppedAt,
	}
}

func serviceToResponse(rec domain.ServiceRecord, info *docker.ContainerInfo) ServiceResponse {
	resp := ServiceResponse{
		Name:           rec.Name,
		Image:          rec.Image,
		ContainerID:    rec.ContainerID,
		State:          string(rec.State),
		Gate:           string(rec.Gate),
		ExitCode:       rec.ExitCode,
		Restarts:       rec.Restarts,
		Error:          rec.Error,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
		StartedAt:      rec.StartedAt,
		FirstHealthyAt: rec.FirstHealthyAt,
		FailedAt:       rec.FailedAt,
	}
	if info != nil {
		resp.Container = &ContainerStateResponse{
			State:    info.State,
			Health:   info.Health,
			ExitCode: info.ExitCode,
			Restarts: info.RestartCount,
		}
	}
	return resp
}

// isNotFound checks if an error is a not found error.
func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
