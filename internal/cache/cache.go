// Package cache implements the Phase Cache on ttlcache/v3. The Phase Cache
// is TTL-less; every entry is written with ttlcache.NoTTL and survives
// until overwritten.
package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/signalgrid/controlplane/internal/engine"
)

// Cache is a ttlcache-backed engine.Cache. Keys follow four fixed shapes:
// intersection:{id}:phase, intersection:{id}:phase_end,
// traffic_light:{id}:status, traffic_light:{id}:end_time.
type Cache struct {
	store *ttlcache.Cache[string, string]
}

// New constructs an empty Cache.
func New() *Cache {
	return &Cache{store: ttlcache.New(ttlcache.WithDisableTouchOnHit[string, string]())}
}

func phaseKey(intersectionID uuid.UUID) string    { return fmt.Sprintf("intersection:%s:phase", intersectionID) }
func phaseEndKey(intersectionID uuid.UUID) string { return fmt.Sprintf("intersection:%s:phase_end", intersectionID) }
func statusKey(signalID uuid.UUID) string         { return fmt.Sprintf("traffic_light:%s:status", signalID) }
func endTimeKey(signalID uuid.UUID) string        { return fmt.Sprintf("traffic_light:%s:end_time", signalID) }

// PhaseRecord implements engine.Cache.
func (c *Cache) PhaseRecord(ctx context.Context, intersectionID uuid.UUID) (engine.PhaseRecord, bool) {
	phaseItem := c.store.Get(phaseKey(intersectionID))
	endItem := c.store.Get(phaseEndKey(intersectionID))
	if phaseItem == nil || endItem == nil {
		return engine.PhaseRecord{}, false
	}

	phaseVal, err := strconv.Atoi(phaseItem.Value())
	if err != nil {
		return engine.PhaseRecord{}, false
	}
	endVal, err := strconv.ParseFloat(endItem.Value(), 64)
	if err != nil {
		return engine.PhaseRecord{}, false
	}
	return engine.PhaseRecord{Phase: engine.Phase(phaseVal), PhaseEnd: endVal}, true
}

// SetPhaseRecord implements engine.Cache.
func (c *Cache) SetPhaseRecord(ctx context.Context, intersectionID uuid.UUID, rec engine.PhaseRecord) {
	c.store.Set(phaseKey(intersectionID), strconv.Itoa(int(rec.Phase)), ttlcache.NoTTL)
	c.store.Set(phaseEndKey(intersectionID), strconv.FormatFloat(rec.PhaseEnd, 'f', -1, 64), ttlcache.NoTTL)
}

// SignalState implements engine.Cache.
func (c *Cache) SignalState(ctx context.Context, signalID uuid.UUID) (engine.SignalState, bool) {
	colorItem := c.store.Get(statusKey(signalID))
	endItem := c.store.Get(endTimeKey(signalID))
	if colorItem == nil || endItem == nil {
		return engine.SignalState{}, false
	}
	endVal, err := strconv.ParseFloat(endItem.Value(), 64)
	if err != nil {
		return engine.SignalState{}, false
	}
	return engine.SignalState{Color: engine.Color(colorItem.Value()), EndTime: endVal}, true
}

// SetSignalState implements engine.Cache.
func (c *Cache) SetSignalState(ctx context.Context, signalID uuid.UUID, state engine.SignalState) {
	c.store.Set(statusKey(signalID), string(state.Color), ttlcache.NoTTL)
	c.store.Set(endTimeKey(signalID), strconv.FormatFloat(state.EndTime, 'f', -1, 64), ttlcache.NoTTL)
}

var _ engine.Cache = (*Cache)(nil)
