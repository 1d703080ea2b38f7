package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalgrid/controlplane/internal/engine"
	"github.com/signalgrid/controlplane/internal/store"
)

// fakeAdminStore implements AdminStore over an in-memory map, mirroring the
// shape of *store.Store without a database.
type fakeAdminStore struct {
	intersections map[uuid.UUID]store.Intersection
}

func newFakeAdminStore() *fakeAdminStore {
	return &fakeAdminStore{intersections: make(map[uuid.UUID]store.Intersection)}
}

func (a *fakeAdminStore) CreateCity(ctx context.Context, name, code string) (store.City, error) {
	return store.City{ID: uuid.New(), Name: name, Code: code}, nil
}

func (a *fakeAdminStore) CreateArea(ctx context.Context, cityID uuid.UUID, name, code string) (store.TrafficArea, error) {
	return store.TrafficArea{ID: uuid.New(), CityID: cityID, Name: name, Code: code}, nil
}

func (a *fakeAdminStore) CreateIntersection(ctx context.Context, areaID uuid.UUID, name, code, location string) (store.Intersection, error) {
	in := store.Intersection{ID: uuid.New(), AreaID: areaID, Name: name, Code: code, Location: location}
	for _, d := range engine.Directions {
		color := engine.Red
		if d.IsNS() {
			color = engine.Green
		}
		in.Signals = append(in.Signals, engine.Signal{
			ID:              uuid.New(),
			IntersectionID:  in.ID,
			Direction:       d,
			Color:           color,
			DurationSeconds: 60,
		})
	}
	a.intersections[in.ID] = in
	return in, nil
}

func (a *fakeAdminStore) GetIntersection(ctx context.Context, id uuid.UUID) (store.Intersection, error) {
	in, ok := a.intersections[id]
	if !ok {
		return store.Intersection{}, engine.ErrNotFound
	}
	return in, nil
}

func newTestAPIWithAdmin(t *testing.T) (*API, *fakeAdminStore) {
	t.Helper()
	a, _, _ := newTestAPI(t)
	admin := newFakeAdminStore()
	a.admin = admin
	return a, admin
}

func TestAPI_CreateCity(t *testing.T) {
	t.Parallel()
	a, _ := newTestAPIWithAdmin(t)

	body, _ := json.Marshal(createCityRequest{Name: "Metropolis", Code: "MET"})
	req := httptest.NewRequest(http.MethodPost, "/admin/cities", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var out store.City
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Metropolis", out.Name)
	assert.NotEqual(t, uuid.Nil, out.ID)
}

func TestAPI_CreateCity_RequiresNameAndCode(t *testing.T) {
	t.Parallel()
	a, _ := newTestAPIWithAdmin(t)

	body, _ := json.Marshal(createCityRequest{Name: "Metropolis"})
	req := httptest.NewRequest(http.MethodPost, "/admin/cities", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_CreateArea(t *testing.T) {
	t.Parallel()
	a, _ := newTestAPIWithAdmin(t)
	cityID := uuid.New()

	body, _ := json.Marshal(createAreaRequest{Name: "Downtown", Code: "DT"})
	req := httptest.NewRequest(http.MethodPost, "/admin/cities/"+cityID.String()+"/areas", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var out store.TrafficArea
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, cityID, out.CityID)
}

func TestAPI_CreateIntersection_ProvisionsFourSignals(t *testing.T) {
	t.Parallel()
	a, _ := newTestAPIWithAdmin(t)
	areaID := uuid.New()

	body, _ := json.Marshal(createIntersectionRequest{AreaID: areaID, Name: "Main & 1st", Code: "M1", Location: "downtown"})
	req := httptest.NewRequest(http.MethodPost, "/admin/intersections", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var out store.Intersection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out.Signals, 4)
}

func TestAPI_GetIntersection_NotFound(t *testing.T) {
	t.Parallel()
	a, _ := newTestAPIWithAdmin(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/intersections/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_GetIntersection_Found(t *testing.T) {
	t.Parallel()
	a, admin := newTestAPIWithAdmin(t)

	in, err := admin.CreateIntersection(context.Background(), uuid.New(), "Main & 1st", "M1", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/intersections/"+in.ID.String(), nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out store.Intersection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, in.ID, out.ID)
}
