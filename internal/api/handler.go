// Package api serves the stored Midgard history over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"midgard-history/internal/domain"
	"midgard-history/internal/observability"
	"midgard-history/internal/service"
	"midgard-history/internal/storage"
)

// HistoryService is the read side of service.Service.
type HistoryService interface {
	GetDepths(ctx context.Context, spec storage.QuerySpec) ([]*domain.DepthRecord, error)
	GetSwaps(ctx context.Context, spec storage.QuerySpec) ([]*domain.SwapRecord, error)
	GetEarnings(ctx context.Context, spec storage.QuerySpec) ([]*domain.EarningsRecord, error)
	GetRunePool(ctx context.Context, spec storage.QuerySpec) ([]*domain.RunePoolRecord, error)
	GetPoolActivity(ctx context.Context, poolID string, spec storage.QuerySpec) ([]*domain.PoolActivityRecord, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the router.
type Options struct {
	Service HistoryService
	// Checks are pinged by /health, keyed by dependency name.
	Checks map[string]Pinger
	// LastCycle, if set, backs /status.
	LastCycle func() (service.CycleReport, bool)
	Logger    *slog.Logger
}

// Handler exposes the history endpoints.
type Handler struct {
	svc       HistoryService
	checks    map[string]Pinger
	lastCycle func() (service.CycleReport, bool)
	logger    *slog.Logger
	started   time.Time
}

// NewHandler creates a Handler.
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:       opts.Service,
		checks:    opts.Checks,
		lastCycle: opts.LastCycle,
		logger:    logger,
		started:   time.Now(),
	}
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(opts Options) http.Handler {
	h := NewHandler(opts)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	r.Get("/status", h.Status)
	r.Method(http.MethodGet, "/metrics", observability.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/depth-history", h.DepthHistory)
		r.Get("/swaps-history", h.SwapsHistory)
		r.Get("/earnings-history", h.EarningsHistory)
		r.Get("/runepool-history", h.RunePoolHistory)
		r.Get("/pool-activity/{pool_id}", h.PoolActivity)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusNotFound, "not found")
	})
	return r
}

// DepthHistory handles GET /api/depth-history.
func (h *Handler) DepthHistory(w http.ResponseWriter, r *http.Request) {
	serveList(h, w, r, "depth history", h.svc.GetDepths)
}

// SwapsHistory handles GET /api/swaps-history.
func (h *Handler) SwapsHistory(w http.ResponseWriter, r *http.Request) {
	serveList(h, w, r, "swaps history", h.svc.GetSwaps)
}

// EarningsHistory handles GET /api/earnings-history.
func (h *Handler) EarningsHistory(w http.ResponseWriter, r *http.Request) {
	serveList(h, w, r, "earnings history", h.svc.GetEarnings)
}

// RunePoolHistory handles GET /api/runepool-history.
func (h *Handler) RunePoolHistory(w http.ResponseWriter, r *http.Request) {
	serveList(h, w, r, "runepool history", h.svc.GetRunePool)
}

// PoolActivity handles GET /api/pool-activity/{pool_id}.
func (h *Handler) PoolActivity(w http.ResponseWriter, r *http.Request) {
	poolID := chi.URLParam(r, "pool_id")
	if poolID == "" {
		writeErr(w, http.StatusBadRequest, "pool id is required")
		return
	}
	serveList(h, w, r, "pool activity", func(ctx context.Context, spec storage.QuerySpec) ([]*domain.PoolActivityRecord, error) {
		return h.svc.GetPoolActivity(ctx, poolID, spec)
	})
}

// serveList parses the query, runs it and renders the rows as a JSON array.
func serveList[T any](h *Handler, w http.ResponseWriter, r *http.Request, what string, query func(context.Context, storage.QuerySpec) ([]*T, error)) {
	spec, err := ParseQuerySpec(r.URL.Query())
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := query(r.Context(), spec)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidQuery) {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("query failed", "what", what, "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeErr(w, http.StatusInternalServerError, "failed to query "+what)
		return
	}
	if rows == nil {
		rows = []*T{}
	}
	writeJSON(w, http.StatusOK, rows)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health pings every configured dependency. Any failure yields 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok"}
	status := http.StatusOK
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", "dependency", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status    string               `json:"status"`
	Uptime    string               `json:"uptime"`
	LastCycle *service.CycleReport `json:"last_cycle,omitempty"`
}

// Status reports uptime and the outcome of the most recent ingestion cycle.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Status: "running",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	}
	if h.lastCycle != nil {
		if report, ok := h.lastCycle(); ok {
			resp.LastCycle = &report
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
