package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/maltedev/amazonlight/internal/directive"
	"github.com/maltedev/amazonlight/internal/marketplace"
	"github.com/maltedev/amazonlight/internal/pipeline"
)

// maxDocumentSize bounds POST /document bodies.
const maxDocumentSize = 1 << 20

// Renderer is satisfied by *pipeline.Pipeline.
type Renderer interface {
	Render(ctx context.Context, token string) pipeline.Result
	ExpandDocument(ctx context.Context, doc string) string
	Defaults(ctx context.Context) directive.Defaults
}

// HealthCheck reports whether an optional dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	renderer Renderer
	source   string
	checks   map[string]HealthCheck
	logger   *slog.Logger
}

func NewHandlers(renderer Renderer, source string, checks map[string]HealthCheck, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		renderer: renderer,
		source:   source,
		checks:   checks,
		logger:   logger.With("component", "api"),
	}
}

// Health reports the fetcher source and the state of each dependency.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string, len(h.checks))
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", "dependency", name, "error", err)
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	health := map[string]interface{}{
		"status":       "ok",
		"source":       h.source,
		"dependencies": deps,
	}
	if status != http.StatusOK {
		health["status"] = "degraded"
	}

	h.respondJSON(w, status, health)
}

// RenderDirective handles GET /render?d=<directive>.
func (h *Handlers) RenderDirective(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("d")
	if token == "" {
		h.respondError(w, http.StatusBadRequest, "query parameter d is required")
		return
	}

	h.respondJSON(w, http.StatusOK, h.renderer.Render(r.Context(), token))
}

// ParseDirective handles GET /parse?d=<directive> without fetching anything.
func (h *Handlers) ParseDirective(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("d")
	if token == "" {
		h.respondError(w, http.StatusBadRequest, "query parameter d is required")
		return
	}

	req, err := directive.Parse(token, h.renderer.Defaults(r.Context()))
	if err != nil {
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, req)
}

// ExpandDocument handles POST /document with a plain text body and returns
// the body with every directive replaced by its markup.
func (h *Handlers) ExpandDocument(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentSize))
	if err != nil {
		h.respondError(w, http.StatusRequestEntityTooLarge, "document too large")
		return
	}

	out := h.renderer.ExpandDocument(r.Context(), string(body))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, out); err != nil {
		h.logger.Error("failed to write document", "error", err)
	}
}

type marketplaceInfo struct {
	Country   string `json:"country"`
	Host      string `json:"host"`
	Region    string `json:"region"`
	LinkLabel string `json:"link_label"`
}

// ListMarketplaces returns the supported countries in registry order.
func (h *Handlers) ListMarketplaces(w http.ResponseWriter, r *http.Request) {
	countries := marketplace.Countries()
	out := make([]marketplaceInfo, 0, len(countries))
	for _, code := range countries {
		entry := marketplace.Lookup(code)
		out = append(out, marketplaceInfo{
			Country:   entry.Country,
			Host:      entry.Host,
			Region:    entry.Region,
			LinkLabel: entry.LinkLabel,
		})
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"default":      marketplace.DefaultCountry,
		"aliases":      marketplace.Aliases,
		"marketplaces": out,
	})
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
