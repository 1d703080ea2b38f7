package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/signalgrid/controlplane/internal/engine"
)

// City is the root of the city/area/intersection hierarchy. Relations are
// foreign-key identifiers looked up by id, not back-pointer object graphs.
type City struct {
	ID   uuid.UUID
	Name string
	Code string
}

// TrafficArea groups intersections under a city.
type TrafficArea struct {
	ID     uuid.UUID
	CityID uuid.UUID
	Name   string
	Code   string
}

// Intersection is an administrative record with its four signals.
type Intersection struct {
	ID         uuid.UUID
	AreaID     uuid.UUID
	Name       string
	Code       string
	Location   string
	IsFavorite bool
	Signals    []engine.Signal
}

// defaultSignalDuration is the nominal green duration a newly-provisioned
// intersection's signals start with.
const defaultSignalDuration = 60

// CreateCity inserts a city.
func (s *Store) CreateCity(ctx context.Context, name, code string) (City, error) {
	c := City{ID: uuid.New(), Name: name, Code: code}
	_, err := s.pool.Exec(ctx, `INSERT INTO cities (id, name, code) VALUES ($1, $2, $3)`, c.ID, c.Name, c.Code)
	if err != nil {
		return City{}, fmt.Errorf("create city: %w", err)
	}
	return c, nil
}

// CreateArea inserts a traffic area under cityID.
func (s *Store) CreateArea(ctx context.Context, cityID uuid.UUID, name, code string) (TrafficArea, error) {
	a := TrafficArea{ID: uuid.New(), CityID: cityID, Name: name, Code: code}
	_, err := s.pool.Exec(ctx, `INSERT INTO traffic_areas (id, city_id, name, code) VALUES ($1, $2, $3, $4)`,
		a.ID, a.CityID, a.Name, a.Code)
	if err != nil {
		return TrafficArea{}, fmt.Errorf("create traffic area: %w", err)
	}
	return a, nil
}

// CreateIntersection inserts an intersection under areaID and
// auto-provisions its four signals N/S GREEN, E/W RED at the default
// duration. It does not touch the Phase Cache or Broadcast Bus: the next
// Cycle Engine tick discovers the new intersection via cache-miss
// initialization.
func (s *Store) CreateIntersection(ctx context.Context, areaID uuid.UUID, name, code, location string) (Intersection, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Intersection{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	in := Intersection{ID: uuid.New(), AreaID: areaID, Name: name, Code: code, Location: location}
	_, err = tx.Exec(ctx, `
		INSERT INTO intersections (id, area_id, name, code, location) VALUES ($1, $2, $3, $4, $5)
	`, in.ID, in.AreaID, in.Name, in.Code, in.Location)
	if err != nil {
		return Intersection{}, fmt.Errorf("create intersection: %w", err)
	}

	for _, d := range engine.Directions {
		color := engine.Red
		if d.IsNS() {
			color = engine.Green
		}
		sig := engine.Signal{
			ID:              uuid.New(),
			IntersectionID:  in.ID,
			Direction:       d,
			Color:           color,
			DurationSeconds: defaultSignalDuration,
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO traffic_lights (id, intersection_id, direction, color, duration_seconds, last_updated)
			VALUES ($1, $2, $3, $4, $5, NOW())
		`, sig.ID, sig.IntersectionID, sig.Direction, sig.Color, sig.DurationSeconds)
		if err != nil {
			return Intersection{}, fmt.Errorf("provision signal %s: %w", d, err)
		}
		in.Signals = append(in.Signals, sig)
	}

	if err := tx.Commit(ctx); err != nil {
		return Intersection{}, fmt.Errorf("commit intersection creation: %w", err)
	}
	return in, nil
}

// GetIntersection reads an intersection with its signals.
func (s *Store) GetIntersection(ctx context.Context, id uuid.UUID) (Intersection, error) {
	var in Intersection
	in.ID = id
	row := s.pool.QueryRow(ctx, `SELECT area_id, name, code, location, is_favorite FROM intersections WHERE id = $1`, id)
	if err := row.Scan(&in.AreaID, &in.Name, &in.Code, &in.Location, &in.IsFavorite); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Intersection{}, engine.ErrNotFound
		}
		return Intersection{}, fmt.Errorf("get intersection: %w", err)
	}

	signals, err := s.IntersectionSignals(ctx, id)
	if err != nil && !errors.Is(err, engine.ErrNotFound) {
		return Intersection{}, err
	}
	in.Signals = signals
	return in, nil
}
