package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/signalgrid/controlplane/internal/metrics"
)

// OverrideHandler applies an operator's manual color command to one
// signal, mirrors it to its partner, and coerces the perpendicular axis to
// a safe color. It runs synchronously on the HTTP request path,
// potentially concurrently with the Cycle Engine and other overrides.
type OverrideHandler struct {
	log *slog.Logger
	clk Clock
	st  Store
	ca  Cache
	pub Publisher
}

// Clock is the minimal time source the request-path handlers need; the
// Cycle Engine uses the richer clockwork.Clock for its ticker.
type Clock interface {
	Now() time.Time
}

// NewOverrideHandler constructs an OverrideHandler.
func NewOverrideHandler(log *slog.Logger, clk Clock, st Store, ca Cache, pub Publisher) *OverrideHandler {
	if log == nil {
		log = slog.Default()
	}
	return &OverrideHandler{log: log, clk: clk, st: st, ca: ca, pub: pub}
}

// Apply executes one (light_id, desired color, optional duration) command:
// target and partner take the desired color, conflicts are coerced to a
// safe color, and all four signals become manual with synced durations.
func (h *OverrideHandler) Apply(ctx context.Context, lightID uuid.UUID, desired Color, duration *int) ([]Signal, error) {
	if !desired.Valid() {
		return nil, errValidationf("invalid color: " + string(desired))
	}

	target, err := h.st.Signal(ctx, lightID)
	if err != nil {
		return nil, err
	}

	siblings, err := h.st.IntersectionSignals(ctx, target.IntersectionID)
	if err != nil {
		return nil, err
	}

	byDirection := make(map[Direction]Signal, len(siblings))
	for _, s := range siblings {
		byDirection[s.Direction] = s
	}

	now := h.clk.Now().UTC()
	effectiveDuration := target.DurationSeconds
	if duration != nil && *duration > 0 {
		effectiveDuration = *duration
	}

	updates := make([]SignalColorUpdate, 0, 4)
	result := make([]Signal, 0, 4)

	appendUpdate := func(sig Signal, color Color, dur int) {
		d := dur
		updates = append(updates, SignalColorUpdate{
			SignalID:        sig.ID,
			Color:           color,
			IsManual:        true,
			DurationSeconds: &d,
			LastUpdated:     now.Unix(),
		})
		sig.Color = color
		sig.IsManual = true
		sig.DurationSeconds = dur
		sig.LastUpdated = now
		result = append(result, sig)
	}

	// Target and partner always share color.
	appendUpdate(target, desired, effectiveDuration)
	if partner, ok := byDirection[target.Direction.Partner()]; ok && partner.ID != target.ID {
		appendUpdate(partner, desired, effectiveDuration)
	}

	// A desired GREEN/YELLOW forces conflicts RED. A desired RED hands
	// GREEN to the cross-traffic axis: an operator stopping one axis
	// means cross-traffic may proceed.
	conflictColor := Red
	if desired == Red {
		conflictColor = Green
	}
	for _, cd := range target.Direction.Conflicts() {
		if sig, ok := byDirection[cd]; ok {
			appendUpdate(sig, conflictColor, effectiveDuration)
		}
	}

	if err := h.st.CommitOverride(ctx, updates); err != nil {
		return nil, err
	}

	endTime := float64(now.Unix() + int64(effectiveDuration))
	batch := make([]BatchedUpdate, 0, len(result))
	for _, sig := range result {
		h.ca.SetSignalState(ctx, sig.ID, SignalState{Color: sig.Color, EndTime: endTime})
		batch = append(batch, BatchedUpdate{LightID: sig.ID, State: SignalUpdate{Status: sig.Color, EndTime: endTime}})
	}
	h.pub.Publish(BatchUpdate(batch))
	metrics.ManualOverridesTotal.WithLabelValues(string(desired)).Inc()

	return result, nil
}

// ClearManual clears is_manual for a single signal without broadcasting.
// Resynchronization happens lazily on the next Cycle Engine tick.
func (h *OverrideHandler) ClearManual(ctx context.Context, lightID uuid.UUID) error {
	return h.st.ClearManual(ctx, lightID, h.clk.Now().UTC().Unix())
}
