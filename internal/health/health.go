// Package health exposes the probe endpoints consumed by the
// gateway and container orchestration: /health, /ready, /live,
// /status and /ping.
package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	orderstore "github.com/KretovDmitry/order-store-service/internal/order"
	"github.com/KretovDmitry/order-store-service/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// StatsSource provides the order aggregates reported by /status.
type StatsSource interface {
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) ([]orderstore.StatusCount, error)
}

type dependency struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type payload struct {
	Status       string                `json:"status"`
	Service      string                `json:"service"`
	Timestamp    time.Time             `json:"timestamp"`
	Database     string                `json:"database"`
	Uptime       string                `json:"uptime"`
	Version      string                `json:"version,omitempty"`
	Environment  string                `json:"environment,omitempty"`
	Dependencies map[string]dependency `json:"dependencies,omitempty"`
	Orders       *orderSnapshot        `json:"orders,omitempty"`
}

type orderSnapshot struct {
	Total        int                      `json:"total"`
	StatusCounts []orderstore.StatusCount `json:"statusCounts"`
}

type Handler struct {
	db      *sql.DB
	stats   StatsSource
	logger  logger.Logger
	start   time.Time
	service string
	version string
	env     string
}

func NewHandler(db *sql.DB, stats StatsSource, version, env string, logger logger.Logger) (*Handler, error) {
	if db == nil {
		return nil, errors.New("nil dependency: database")
	}

	return &Handler{
		db:      db,
		stats:   stats,
		logger:  logger,
		start:   time.Now(),
		service: "order-store-service",
		version: version,
		env:     env,
	}, nil
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Get("/live", h.Live)
	r.Get("/status", h.Status)
	r.Get("/ping", h.Ping)
}

// Health reports overall service health including the database
// dependency (GET /health).
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	p := h.snapshot(r.Context())

	code := http.StatusOK
	if p.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, p)
}

// Ready reports whether the service can accept traffic: the answer
// is negative until the database responds (GET /ready).
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.pingDB(r.Context()); err != nil {
		h.logger.Warnf("readiness check: %s", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Live always answers 200 while the process runs (GET /live).
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Status returns the health payload extended with order aggregates
// (GET /status).
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	p := h.snapshot(r.Context())

	if h.stats != nil && p.Database == "healthy" {
		total, err := h.stats.Count(r.Context())
		if err == nil {
			counts, err := h.stats.CountByStatus(r.Context())
			if err == nil {
				p.Orders = &orderSnapshot{Total: total, StatusCounts: counts}
			}
		}
		if p.Orders == nil {
			h.logger.Warnf("status order snapshot unavailable")
		}
	}

	code := http.StatusOK
	if p.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, p)
}

// Ping answers pong (GET /ping).
func (h *Handler) Ping(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
}

func (h *Handler) snapshot(ctx context.Context) payload {
	p := payload{
		Status:      "healthy",
		Service:     h.service,
		Timestamp:   time.Now().UTC(),
		Database:    "healthy",
		Uptime:      time.Since(h.start).Truncate(time.Second).String(),
		Version:     h.version,
		Environment: h.env,
	}

	dep := dependency{Status: "healthy"}
	if err := h.pingDB(ctx); err != nil {
		p.Status = "unhealthy"
		p.Database = "unhealthy"
		dep = dependency{Status: "unhealthy", Error: err.Error()}
	}
	p.Dependencies = map[string]dependency{"database": dep}

	return p
}

func (h *Handler) pingDB(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return h.db.PingContext(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
