package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// ResetHandler restores an intersection to automatic mode.
type ResetHandler struct {
	log *slog.Logger
	clk Clock
	st  Store
	ca  Cache
	pub Publisher
}

// NewResetHandler constructs a ResetHandler.
func NewResetHandler(log *slog.Logger, clk Clock, st Store, ca Cache, pub Publisher) *ResetHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ResetHandler{log: log, clk: clk, st: st, ca: ca, pub: pub}
}

// Apply clears every signal's manual flag and re-anchors N/S to GREEN and
// E/W to RED. It deliberately does not touch the intersection's
// PhaseRecord: the next Cycle Engine tick observes state consistent with
// phase 0 and either initializes it (if missing) or re-aligns at the next
// natural transition.
func (h *ResetHandler) Apply(ctx context.Context, intersectionID uuid.UUID) ([]Signal, error) {
	signals, err := h.st.IntersectionSignals(ctx, intersectionID)
	if err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return nil, ErrNotFound
	}

	now := h.clk.Now().UTC()
	nowSec := now.Unix()

	updates := make([]SignalColorUpdate, 0, len(signals))
	result := make([]Signal, 0, len(signals))
	for _, sig := range signals {
		color := Red
		if sig.Direction.IsNS() {
			color = Green
		}
		updates = append(updates, SignalColorUpdate{
			SignalID:    sig.ID,
			Color:       color,
			IsManual:    false,
			LastUpdated: nowSec,
		})
		sig.Color = color
		sig.IsManual = false
		sig.LastUpdated = now
		result = append(result, sig)
	}

	if err := h.st.CommitReset(ctx, updates); err != nil {
		return nil, err
	}

	for _, sig := range result {
		endTime := float64(nowSec + int64(sig.DurationSeconds))
		h.ca.SetSignalState(ctx, sig.ID, SignalState{Color: sig.Color, EndTime: endTime})
		h.pub.Publish(SingleUpdate(sig.ID, SignalUpdate{Status: sig.Color, EndTime: endTime}))
	}

	return result, nil
}
