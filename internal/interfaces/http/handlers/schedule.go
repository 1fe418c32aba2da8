package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/contentrun/internal/application"
	"github.com/sawpanic/contentrun/internal/persistence"
	"github.com/sawpanic/contentrun/internal/scheduler"
)

// GenerateSchedule handles POST /schedule: plan around the stored entries,
// commit the batch, then publish it on the feed
func (h *Handlers) GenerateSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	horizon := req.HorizonDays
	if horizon == 0 {
		horizon = h.deps.Engine.SchedulerConfig().DefaultHorizonDays
	}
	if horizon < 1 {
		h.fail(w, r, badRequest("horizon_days must be positive, got %d", horizon))
		return
	}
	for _, id := range req.Platforms {
		if _, err := h.deps.Engine.Registry().Lookup(id); err != nil {
			h.fail(w, r, badRequest("%v (registered: %v)", err, h.deps.Engine.Registry().IDs()))
			return
		}
	}

	h.scheduleMu.Lock()
	defer h.scheduleMu.Unlock()

	now := h.deps.Engine.Now()
	window := persistence.TimeRange{
		From: now.Truncate(time.Hour),
		To:   now.AddDate(0, 0, horizon),
	}
	existing, err := h.deps.Repo.ListRange(r.Context(), window)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	entries, err := h.deps.Engine.Plan(r.Context(), application.PlanRequest{
		Existing:    existing,
		HorizonDays: horizon,
		Platforms:   req.Platforms,
		Seed:        req.Seed,
	}, h.deps.Supplier)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if len(entries) > 0 {
		if err := h.deps.Repo.InsertBatch(r.Context(), entries); err != nil {
			h.fail(w, r, err)
			return
		}
		h.publish(ScheduleEvent{Type: EventScheduleCommitted, Count: len(entries), Entries: entries})
	}

	log.Info().
		Str("request_id", RequestID(r.Context())).
		Int("horizon_days", horizon).
		Int("existing", len(existing)).
		Int("entries", len(entries)).
		Msg("Schedule committed")

	h.writeJSON(w, http.StatusCreated, ScheduleResponse{
		From:    window.From,
		To:      window.To,
		Count:   len(entries),
		Entries: nonNil(entries),
	})
}

// ListSchedule handles GET /schedule?from=&to= (RFC 3339). The window
// defaults to the configured horizon starting now.
func (h *Handlers) ListSchedule(w http.ResponseWriter, r *http.Request) {
	window, err := h.listWindow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	entries, err := h.deps.Repo.ListRange(r.Context(), window)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ScheduleResponse{
		From:    window.From,
		To:      window.To,
		Count:   len(entries),
		Entries: nonNil(entries),
	})
}

func (h *Handlers) listWindow(r *http.Request) (persistence.TimeRange, error) {
	q := r.URL.Query()
	window := persistence.TimeRange{From: h.deps.Engine.Now()}

	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return window, badRequest("from: %v", err)
		}
		window.From = from
	}
	window.To = window.From.AddDate(0, 0, h.deps.Engine.SchedulerConfig().DefaultHorizonDays)
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return window, badRequest("to: %v", err)
		}
		window.To = to
	}
	if err := window.Validate(); err != nil {
		return window, badRequest("%v", err)
	}
	return window, nil
}

// GetEntry handles GET /schedule/{id}
func (h *Handlers) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.deps.Repo.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

// UpdateStatus handles PATCH /schedule/{id}
func (h *Handlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req StatusRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if !req.Status.Valid() {
		h.fail(w, r, badRequest("status must be %q or %q", scheduler.StatusDraft, scheduler.StatusScheduled))
		return
	}

	if err := h.deps.Repo.UpdateStatus(r.Context(), id, req.Status); err != nil {
		h.fail(w, r, err)
		return
	}
	entry, err := h.deps.Repo.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.publish(ScheduleEvent{Type: EventEntryUpdated, Count: 1, Entries: []scheduler.Entry{*entry}, EntryID: id})
	h.writeJSON(w, http.StatusOK, entry)
}

// DeleteEntry handles DELETE /schedule/{id}
func (h *Handlers) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.deps.Repo.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(ScheduleEvent{Type: EventEntryDeleted, Count: 1, EntryID: id})
	w.WriteHeader(http.StatusNoContent)
}

func nonNil(entries []scheduler.Entry) []scheduler.Entry {
	if entries == nil {
		return []scheduler.Entry{}
	}
	return entries
}
