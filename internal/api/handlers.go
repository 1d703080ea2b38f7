package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/signalgrid/controlplane/internal/engine"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeStoreError translates engine errors into HTTP status codes,
// centrally instead of per handler.
func writeStoreError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, engine.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

type manualRequest struct {
	Status   string `json:"status"`
	Duration *int   `json:"duration,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// applyManual implements POST /admin/traffic-lights/{light_id}/manual.
func (a *API) applyManual(w http.ResponseWriter, r *http.Request) {
	lightID, err := uuid.Parse(chi.URLParam(r, "light_id"))
	if err != nil {
		http.Error(w, "invalid light id", http.StatusBadRequest)
		return
	}

	var req manualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := a.override.Apply(r.Context(), lightID, engine.Color(req.Status), req.Duration); err != nil {
		writeStoreError(w, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "manual override applied"})
}

// clearManual implements DELETE /admin/traffic-lights/{light_id}/manual.
// This does not broadcast; the dashboard recovers on the next Cycle Engine
// tick.
func (a *API) clearManual(w http.ResponseWriter, r *http.Request) {
	lightID, err := uuid.Parse(chi.URLParam(r, "light_id"))
	if err != nil {
		http.Error(w, "invalid light id", http.StatusBadRequest)
		return
	}

	if err := a.override.ClearManual(r.Context(), lightID); err != nil {
		writeStoreError(w, a.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// setDuration implements PUT /admin/traffic-lights/{light_id}/duration.
func (a *API) setDuration(w http.ResponseWriter, r *http.Request) {
	lightID, err := uuid.Parse(chi.URLParam(r, "light_id"))
	if err != nil {
		http.Error(w, "invalid light id", http.StatusBadRequest)
		return
	}

	duration, err := strconv.Atoi(r.URL.Query().Get("duration"))
	if err != nil || duration <= 0 {
		http.Error(w, "duration query parameter must be a positive integer", http.StatusBadRequest)
		return
	}

	if err := a.store.SetDuration(r.Context(), lightID, duration); err != nil {
		writeStoreError(w, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "duration updated"})
}

// resetIntersection implements POST /intersections/{intersection_id}/reset.
func (a *API) resetIntersection(w http.ResponseWriter, r *http.Request) {
	intersectionID, err := uuid.Parse(chi.URLParam(r, "intersection_id"))
	if err != nil {
		http.Error(w, "invalid intersection id", http.StatusBadRequest)
		return
	}

	signals, err := a.reset.Apply(r.Context(), intersectionID)
	if err != nil {
		writeStoreError(w, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, signals)
}

// simulateDensity implements POST /frontend/simulate/{light_id}/density.
// current_density is stored but never feeds the cycle.
func (a *API) simulateDensity(w http.ResponseWriter, r *http.Request) {
	lightID, err := uuid.Parse(chi.URLParam(r, "light_id"))
	if err != nil {
		http.Error(w, "invalid light id", http.StatusBadRequest)
		return
	}

	value, err := strconv.Atoi(r.URL.Query().Get("value"))
	if err != nil {
		http.Error(w, "value query parameter must be an integer", http.StatusBadRequest)
		return
	}

	if err := a.store.SetDensity(r.Context(), lightID, value); err != nil {
		writeStoreError(w, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "density updated"})
}

type syncEntry struct {
	Status  engine.Color `json:"status"`
	EndTime float64      `json:"end_time"`
}

// sync implements GET /frontend/sync: a mapping light_id -> {status,
// end_time} assembled from the Phase Cache with Signal Store fallback,
// used by dashboards to bootstrap before their first broadcast arrives.
// By default it covers every signal; intersection_id narrows it to one
// intersection.
func (a *API) sync(w http.ResponseWriter, r *http.Request) {
	var signals []engine.Signal
	var err error
	if raw := r.URL.Query().Get("intersection_id"); raw != "" {
		id, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			http.Error(w, "invalid intersection_id", http.StatusBadRequest)
			return
		}
		signals, err = a.store.IntersectionSignals(r.Context(), id)
	} else {
		signals, err = a.store.AllSignals(r.Context())
	}
	if err != nil {
		writeStoreError(w, a.log, err)
		return
	}

	out := make(map[uuid.UUID]syncEntry, len(signals))
	for _, sig := range signals {
		if state, ok := a.cache.SignalState(r.Context(), sig.ID); ok {
			out[sig.ID] = syncEntry{Status: state.Color, EndTime: state.EndTime}
			continue
		}
		// Phase Cache miss: fall back to the Signal Store's committed color
		// with no countdown.
		out[sig.ID] = syncEntry{Status: sig.Color}
	}

	writeJSON(w, http.StatusOK, out)
}
