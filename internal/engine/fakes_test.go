package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// memStore is an in-memory Store used only by this package's tests.
type memStore struct {
	mu      sync.Mutex
	signals map[uuid.UUID]Signal
}

func newMemStore() *memStore {
	return &memStore{signals: map[uuid.UUID]Signal{}}
}

func (m *memStore) put(s Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[s.ID] = s
}

func (m *memStore) IntersectionSignals(ctx context.Context, intersectionID uuid.UUID) ([]Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Signal
	for _, s := range m.signals {
		if s.IntersectionID == intersectionID {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (m *memStore) Signal(ctx context.Context, signalID uuid.UUID) (Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signals[signalID]
	if !ok {
		return Signal{}, ErrNotFound
	}
	return s, nil
}

func (m *memStore) ExpiredManualSignals(ctx context.Context, now int64) ([]Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Signal
	for _, s := range m.signals {
		if s.IsManual && s.LastUpdated.Unix()+int64(s.DurationSeconds) < now {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) AllIntersectionIDs(ctx context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[uuid.UUID]struct{}{}
	var out []uuid.UUID
	for _, s := range m.signals {
		if _, ok := seen[s.IntersectionID]; !ok {
			seen[s.IntersectionID] = struct{}{}
			out = append(out, s.IntersectionID)
		}
	}
	return out, nil
}

func (m *memStore) apply(u SignalColorUpdate) {
	s := m.signals[u.SignalID]
	s.Color = u.Color
	s.IsManual = u.IsManual
	s.LastUpdated = unixTime(u.LastUpdated)
	if u.DurationSeconds != nil {
		s.DurationSeconds = *u.DurationSeconds
	}
	m.signals[u.SignalID] = s
}

func (m *memStore) CommitTransition(ctx context.Context, updates []SignalColorUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range updates {
		m.apply(u)
	}
	return nil
}

func (m *memStore) CommitResync(ctx context.Context, update SignalColorUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apply(update)
	return nil
}

func (m *memStore) CommitOverride(ctx context.Context, updates []SignalColorUpdate) error {
	return m.CommitTransition(ctx, updates)
}

func (m *memStore) CommitReset(ctx context.Context, updates []SignalColorUpdate) error {
	return m.CommitTransition(ctx, updates)
}

func (m *memStore) ClearManual(ctx context.Context, signalID uuid.UUID, now int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.signals[signalID]
	s.IsManual = false
	s.LastUpdated = unixTime(now)
	m.signals[signalID] = s
	return nil
}

func (m *memStore) SetDuration(ctx context.Context, signalID uuid.UUID, durationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.signals[signalID]
	s.DurationSeconds = durationSeconds
	m.signals[signalID] = s
	return nil
}

func (m *memStore) SetDensity(ctx context.Context, signalID uuid.UUID, density int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.signals[signalID]
	s.CurrentDensity = density
	m.signals[signalID] = s
	return nil
}

// memCache is an in-memory Cache used only by this package's tests.
type memCache struct {
	mu     sync.Mutex
	phases map[uuid.UUID]PhaseRecord
	states map[uuid.UUID]SignalState
}

func newMemCache() *memCache {
	return &memCache{phases: map[uuid.UUID]PhaseRecord{}, states: map[uuid.UUID]SignalState{}}
}

func (c *memCache) PhaseRecord(ctx context.Context, intersectionID uuid.UUID) (PhaseRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.phases[intersectionID]
	return rec, ok
}

func (c *memCache) SetPhaseRecord(ctx context.Context, intersectionID uuid.UUID, rec PhaseRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phases[intersectionID] = rec
}

func (c *memCache) SignalState(ctx context.Context, signalID uuid.UUID) (SignalState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[signalID]
	return st, ok
}

func (c *memCache) SetSignalState(ctx context.Context, signalID uuid.UUID, state SignalState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[signalID] = state
}

// recordingPublisher records every envelope published to it.
type recordingPublisher struct {
	mu   sync.Mutex
	envs []Envelope
}

func (p *recordingPublisher) Publish(env Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envs = append(p.envs, env)
}

func (p *recordingPublisher) all() []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Envelope, len(p.envs))
	copy(out, p.envs)
	return out
}
