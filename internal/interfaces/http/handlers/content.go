package handlers

import (
	"net/http"
	"time"

	"github.com/sawpanic/contentrun/internal/persistence"
	"github.com/sawpanic/contentrun/internal/scoring"
	"github.com/sawpanic/contentrun/internal/supply"
)

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Version:   h.deps.Version,
		Timestamp: time.Now().UTC(),
		Platforms: h.deps.Engine.Registry().Len(),
		Database:  persistence.HealthCheck{Healthy: true, LastCheck: time.Now().UTC()},
	}
	if h.deps.Health != nil {
		resp.Database = h.deps.Health.Health(r.Context())
	}
	if h.deps.Feed != nil {
		resp.FeedClients = h.deps.Feed.Clients()
	}
	if st, ok := supply.Inspect(h.deps.Supplier); ok {
		resp.Supplier = &st
	}

	status := http.StatusOK
	if !resp.Database.Healthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, resp)
}

// Platforms handles GET /platforms
func (h *Handlers) Platforms(w http.ResponseWriter, r *http.Request) {
	profiles := h.deps.Engine.Registry().All()
	h.writeJSON(w, http.StatusOK, PlatformsResponse{Count: len(profiles), Platforms: profiles})
}

// Score handles POST /score. Unknown platforms get the fallback report, as
// the engine does.
func (h *Handlers) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	draft := scoring.Draft{Text: req.Text, Platform: req.Platform}

	if h.deps.Scores == nil {
		w.Header().Set("X-Cache", "BYPASS")
		h.writeJSON(w, http.StatusOK, h.deps.Engine.Score(draft))
		return
	}

	report, hit := h.deps.Scores.Score(r.Context(), draft, h.deps.Engine.Score)
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	h.writeJSON(w, http.StatusOK, report)
}

// Format handles POST /format
func (h *Handlers) Format(w http.ResponseWriter, r *http.Request) {
	var req FormatRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Platform == "" {
		h.fail(w, r, badRequest("platform is required"))
		return
	}

	text, err := h.deps.Engine.Format(req.Text, req.Platform)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, FormatResponse{Platform: req.Platform, Text: text})
}
