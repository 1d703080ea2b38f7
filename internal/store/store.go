// Package store implements the Signal Store on Postgres via pgxpool, with
// migrations run in-code at startup.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signalgrid/controlplane/internal/engine"
)

// Store is a Postgres-backed engine.Store.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// Config configures a Store.
type Config struct {
	Logger      *slog.Logger
	DatabaseURL string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MinConns == 0 {
		c.MinConns = 2
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 30 * time.Minute
	}
	return nil
}

// New connects to Postgres, pings it, and runs migrations.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &Store{pool: pool, log: cfg.Logger}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	s.log.Info("connected to postgres signal store")
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS cities (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			code VARCHAR(64) NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS traffic_areas (
			id UUID PRIMARY KEY,
			city_id UUID NOT NULL REFERENCES cities(id),
			name VARCHAR(255) NOT NULL,
			code VARCHAR(64) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS intersections (
			id UUID PRIMARY KEY,
			area_id UUID NOT NULL REFERENCES traffic_areas(id),
			name VARCHAR(255) NOT NULL,
			code VARCHAR(64) NOT NULL UNIQUE,
			location VARCHAR(255) NOT NULL DEFAULT '',
			is_favorite BOOLEAN NOT NULL DEFAULT false
		)`,
		`CREATE TABLE IF NOT EXISTS traffic_lights (
			id UUID PRIMARY KEY,
			intersection_id UUID NOT NULL REFERENCES intersections(id),
			direction VARCHAR(5) NOT NULL CHECK (direction IN ('North','South','East','West')),
			color VARCHAR(6) NOT NULL CHECK (color IN ('RED','YELLOW','GREEN')),
			current_density INTEGER NOT NULL DEFAULT 0,
			duration_seconds INTEGER NOT NULL DEFAULT 60,
			last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			is_manual BOOLEAN NOT NULL DEFAULT false,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (intersection_id, direction)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_traffic_lights_intersection ON traffic_lights (intersection_id)`,
		`CREATE INDEX IF NOT EXISTS idx_traffic_lights_manual_expiry ON traffic_lights (is_manual, last_updated)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func scanSignal(row pgx.Row) (engine.Signal, error) {
	var s engine.Signal
	err := row.Scan(&s.ID, &s.IntersectionID, &s.Direction, &s.Color, &s.DurationSeconds,
		&s.IsManual, &s.LastUpdated, &s.CurrentDensity)
	return s, err
}

const signalColumns = `id, intersection_id, direction, color, duration_seconds, is_manual, last_updated, current_density`

// IntersectionSignals returns every signal belonging to intersectionID.
func (s *Store) IntersectionSignals(ctx context.Context, intersectionID uuid.UUID) ([]engine.Signal, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+signalColumns+` FROM traffic_lights WHERE intersection_id = $1`, intersectionID)
	if err != nil {
		return nil, fmt.Errorf("query intersection signals: %w", err)
	}
	defer rows.Close()

	var out []engine.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, engine.ErrNotFound
	}
	return out, nil
}

// AllSignals returns every signal in the Signal Store, for the global
// dashboard bootstrap read.
func (s *Store) AllSignals(ctx context.Context) ([]engine.Signal, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+signalColumns+` FROM traffic_lights`)
	if err != nil {
		return nil, fmt.Errorf("query all signals: %w", err)
	}
	defer rows.Close()

	var out []engine.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// Signal returns a single signal by id.
func (s *Store) Signal(ctx context.Context, signalID uuid.UUID) (engine.Signal, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+signalColumns+` FROM traffic_lights WHERE id = $1`, signalID)
	sig, err := scanSignal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return engine.Signal{}, engine.ErrNotFound
	}
	if err != nil {
		return engine.Signal{}, fmt.Errorf("query signal: %w", err)
	}
	return sig, nil
}

// ExpiredManualSignals returns every manual signal whose override has
// elapsed as of now (UTC epoch seconds).
func (s *Store) ExpiredManualSignals(ctx context.Context, now int64) ([]engine.Signal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+signalColumns+` FROM traffic_lights
		WHERE is_manual = true
		AND EXTRACT(EPOCH FROM last_updated)::bigint + duration_seconds < $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("query expired manual signals: %w", err)
	}
	defer rows.Close()

	var out []engine.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// AllIntersectionIDs returns every intersection id in the Signal Store.
func (s *Store) AllIntersectionIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM intersections`)
	if err != nil {
		return nil, fmt.Errorf("query intersection ids: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// commitUpdates applies every SignalColorUpdate inside a single
// transaction, retrying transient failures with an exponential backoff.
func (s *Store) commitUpdates(ctx context.Context, updates []engine.SignalColorUpdate) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.commitUpdatesOnce(ctx, updates)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
	return err
}

func (s *Store) commitUpdatesOnce(ctx context.Context, updates []engine.SignalColorUpdate) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, u := range updates {
		if u.DurationSeconds != nil {
			_, err = tx.Exec(ctx, `
				UPDATE traffic_lights
				SET color = $2, is_manual = $3, last_updated = to_timestamp($4), duration_seconds = $5, updated_at = NOW()
				WHERE id = $1
			`, u.SignalID, u.Color, u.IsManual, u.LastUpdated, *u.DurationSeconds)
		} else {
			_, err = tx.Exec(ctx, `
				UPDATE traffic_lights
				SET color = $2, is_manual = $3, last_updated = to_timestamp($4), updated_at = NOW()
				WHERE id = $1
			`, u.SignalID, u.Color, u.IsManual, u.LastUpdated)
		}
		if err != nil {
			return fmt.Errorf("update signal %s: %w", u.SignalID, err)
		}
	}

	return tx.Commit(ctx)
}

// CommitTransition implements engine.Store.
func (s *Store) CommitTransition(ctx context.Context, updates []engine.SignalColorUpdate) error {
	return s.commitUpdates(ctx, updates)
}

// CommitResync implements engine.Store.
func (s *Store) CommitResync(ctx context.Context, update engine.SignalColorUpdate) error {
	return s.commitUpdates(ctx, []engine.SignalColorUpdate{update})
}

// CommitOverride implements engine.Store.
func (s *Store) CommitOverride(ctx context.Context, updates []engine.SignalColorUpdate) error {
	return s.commitUpdates(ctx, updates)
}

// CommitReset implements engine.Store.
func (s *Store) CommitReset(ctx context.Context, updates []engine.SignalColorUpdate) error {
	return s.commitUpdates(ctx, updates)
}

// ClearManual implements engine.Store.
func (s *Store) ClearManual(ctx context.Context, signalID uuid.UUID, now int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE traffic_lights SET is_manual = false, last_updated = to_timestamp($2), updated_at = NOW()
		WHERE id = $1
	`, signalID, now)
	return err
}

// SetDuration implements engine.Store.
func (s *Store) SetDuration(ctx context.Context, signalID uuid.UUID, durationSeconds int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE traffic_lights SET duration_seconds = $2, updated_at = NOW() WHERE id = $1
	`, signalID, durationSeconds)
	return err
}

// SetDensity implements engine.Store.
func (s *Store) SetDensity(ctx context.Context, signalID uuid.UUID, density int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE traffic_lights SET current_density = $2, updated_at = NOW() WHERE id = $1
	`, signalID, density)
	return err
}

var _ engine.Store = (*Store)(nil)
