package cache

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalgrid/controlplane/internal/engine"
)

func TestCache_PhaseRecord_MissReturnsFalse(t *testing.T) {
	t.Parallel()

	c := New()
	_, ok := c.PhaseRecord(context.Background(), uuid.New())
	assert.False(t, ok)
}

func TestCache_SetPhaseRecord_RoundTrips(t *testing.T) {
	t.Parallel()

	c := New()
	id := uuid.New()
	want := engine.PhaseRecord{Phase: engine.EWGreen, PhaseEnd: 1_700_000_064}

	c.SetPhaseRecord(context.Background(), id, want)

	got, ok := c.PhaseRecord(context.Background(), id)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestCache_SignalState_MissReturnsFalse(t *testing.T) {
	t.Parallel()

	c := New()
	_, ok := c.SignalState(context.Background(), uuid.New())
	assert.False(t, ok)
}

func TestCache_SetSignalState_RoundTrips(t *testing.T) {
	t.Parallel()

	c := New()
	id := uuid.New()
	want := engine.SignalState{Color: engine.Red, EndTime: 1_700_000_128}

	c.SetSignalState(context.Background(), id, want)

	got, ok := c.SignalState(context.Background(), id)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestCache_SetPhaseRecord_Overwrites(t *testing.T) {
	t.Parallel()

	c := New()
	id := uuid.New()

	c.SetPhaseRecord(context.Background(), id, engine.PhaseRecord{Phase: engine.NSGreen, PhaseEnd: 10})
	c.SetPhaseRecord(context.Background(), id, engine.PhaseRecord{Phase: engine.NSYellow, PhaseEnd: 20})

	got, ok := c.PhaseRecord(context.Background(), id)
	require.True(t, ok)
	assert.Equal(t, engine.NSYellow, got.Phase)
	assert.Equal(t, float64(20), got.PhaseEnd)
}

func TestCache_DistinctSignalsDoNotCollide(t *testing.T) {
	t.Parallel()

	c := New()
	a, b := uuid.New(), uuid.New()

	c.SetSignalState(context.Background(), a, engine.SignalState{Color: engine.Green, EndTime: 1})
	c.SetSignalState(context.Background(), b, engine.SignalState{Color: engine.Red, EndTime: 2})

	gotA, ok := c.SignalState(context.Background(), a)
	require.True(t, ok)
	gotB, ok := c.SignalState(context.Background(), b)
	require.True(t, ok)

	assert.Equal(t, engine.Green, gotA.Color)
	assert.Equal(t, engine.Red, gotB.Color)
}
