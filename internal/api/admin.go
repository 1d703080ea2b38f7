package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type createCityRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

func (a *API) createCity(w http.ResponseWriter, r *http.Request) {
	var req createCityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Code == "" {
		http.Error(w, "name and code are required", http.StatusBadRequest)
		return
	}

	city, err := a.admin.CreateCity(r.Context(), req.Name, req.Code)
	if err != nil {
		a.log.Error("create city failed", "error", err)
		http.Error(w, "failed to create city", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, city)
}

type createAreaRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

func (a *API) createArea(w http.ResponseWriter, r *http.Request) {
	cityID, err := uuid.Parse(chi.URLParam(r, "city_id"))
	if err != nil {
		http.Error(w, "invalid city id", http.StatusBadRequest)
		return
	}

	var req createAreaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Code == "" {
		http.Error(w, "name and code are required", http.StatusBadRequest)
		return
	}

	area, err := a.admin.CreateArea(r.Context(), cityID, req.Name, req.Code)
	if err != nil {
		a.log.Error("create traffic area failed", "error", err)
		http.Error(w, "failed to create traffic area", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, area)
}

type createIntersectionRequest struct {
	AreaID   uuid.UUID `json:"area_id"`
	Name     string    `json:"name"`
	Code     string    `json:"code"`
	Location string    `json:"location"`
}

// createIntersection auto-provisions the intersection's four signals
// (N/S GREEN, E/W RED, duration 60).
func (a *API) createIntersection(w http.ResponseWriter, r *http.Request) {
	var req createIntersectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AreaID == uuid.Nil || req.Name == "" || req.Code == "" {
		http.Error(w, "area_id, name and code are required", http.StatusBadRequest)
		return
	}

	in, err := a.admin.CreateIntersection(r.Context(), req.AreaID, req.Name, req.Code, req.Location)
	if err != nil {
		a.log.Error("create intersection failed", "error", err)
		http.Error(w, "failed to create intersection", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, in)
}

func (a *API) getIntersection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid intersection id", http.StatusBadRequest)
		return
	}

	in, err := a.admin.GetIntersection(r.Context(), id)
	if err != nil {
		writeStoreError(w, a.log, err)
		return
	}

	writeJSON(w, http.StatusOK, in)
}
