package engine

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/signalgrid/controlplane/internal/metrics"
)

const (
	defaultTickInterval = 1 * time.Second
	failureBackoff      = 5 * time.Second
)

// CycleEngineConfig configures a CycleEngine.
type CycleEngineConfig struct {
	Logger       *slog.Logger
	Clock        clockwork.Clock
	Store        Store
	Cache        Cache
	Publisher    Publisher
	TickInterval time.Duration
}

func (c *CycleEngineConfig) validate() error {
	if c.Store == nil {
		return errValidationf("store is required")
	}
	if c.Cache == nil {
		return errValidationf("cache is required")
	}
	if c.Publisher == nil {
		return errValidationf("publisher is required")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	return nil
}

// CycleEngine is the single long-lived cooperative task that advances every
// intersection's phase, expires manual overrides, and re-synchronizes them.
// Start it once at service bootstrap; it has no cancellation beyond process
// shutdown via its context.
type CycleEngine struct {
	log          *slog.Logger
	clk          clockwork.Clock
	st           Store
	ca           Cache
	pub          Publisher
	tickInterval time.Duration
}

// NewCycleEngine constructs a CycleEngine from cfg.
func NewCycleEngine(cfg CycleEngineConfig) (*CycleEngine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &CycleEngine{
		log:          cfg.Logger,
		clk:          cfg.Clock,
		st:           cfg.Store,
		ca:           cfg.Cache,
		pub:          cfg.Publisher,
		tickInterval: cfg.TickInterval,
	}, nil
}

// Run blocks, ticking once per tick interval (one second by default) until
// ctx is cancelled. A failed
// sweep is logged and suppressed; the loop then sleeps failureBackoff
// before resuming, rather than retrying within the same tick.
func (e *CycleEngine) Run(ctx context.Context) error {
	ticker := e.clk.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if err := e.tick(ctx); err != nil {
				e.log.Error("tick failed, backing off", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-e.clk.After(failureBackoff):
				}
			}
		}
	}
}

// tick runs one full sweep: expire manual overrides, then advance every
// intersection whose phase has expired.
func (e *CycleEngine) tick(ctx context.Context) error {
	now := e.clk.Now().UTC()

	if err := e.expireManualOverrides(ctx, now); err != nil {
		metrics.TicksTotal.WithLabelValues("error").Inc()
		return err
	}

	ids, err := e.st.AllIntersectionIDs(ctx)
	if err != nil {
		metrics.TicksTotal.WithLabelValues("error").Inc()
		return err
	}

	for _, id := range ids {
		if err := e.tickIntersection(ctx, id, now); err != nil {
			// A single intersection's failure does not abort the sweep;
			// it is logged and retried implicitly on the next tick.
			e.log.Error("intersection tick failed", "intersection_id", id, "error", err)
		}
	}
	metrics.TicksTotal.WithLabelValues("ok").Inc()
	return nil
}

// expireManualOverrides resynchronizes every signal whose manual override
// has expired to its intersection's current dictated color.
func (e *CycleEngine) expireManualOverrides(ctx context.Context, now time.Time) error {
	expired, err := e.st.ExpiredManualSignals(ctx, now.Unix())
	if err != nil {
		return err
	}

	for _, sig := range expired {
		rec, ok := e.ca.PhaseRecord(ctx, sig.IntersectionID)
		if !ok {
			// No phase to resync against yet; the next tick's
			// per-intersection pass will initialize it.
			continue
		}

		color := Colors(rec.Phase, sig.Direction)
		update := SignalColorUpdate{
			SignalID:    sig.ID,
			Color:       color,
			IsManual:    false,
			LastUpdated: now.Unix(),
		}
		if err := e.st.CommitResync(ctx, update); err != nil {
			e.log.Error("resync commit failed", "signal_id", sig.ID, "error", err)
			continue
		}

		e.ca.SetSignalState(ctx, sig.ID, SignalState{Color: color, EndTime: rec.PhaseEnd})
		e.pub.Publish(SingleUpdate(sig.ID, SignalUpdate{Status: color, EndTime: rec.PhaseEnd}))
		metrics.ManualResyncsTotal.Inc()
	}
	return nil
}

// tickIntersection advances one intersection: initializes a missing phase
// record, and once the current phase expires, writes the next phase's
// colors to all non-manual signals and broadcasts the batch.
func (e *CycleEngine) tickIntersection(ctx context.Context, intersectionID uuid.UUID, now time.Time) error {
	rec, ok := e.ca.PhaseRecord(ctx, intersectionID)
	if !ok {
		signals, err := e.st.IntersectionSignals(ctx, intersectionID)
		if err != nil {
			return err
		}
		ns := findDuration(signals, North, 60)
		e.ca.SetPhaseRecord(ctx, intersectionID, PhaseRecord{
			Phase:    NSGreen,
			PhaseEnd: float64(now.Unix() + int64(ns)),
		})
		return nil
	}

	if float64(now.Unix()) < rec.PhaseEnd {
		return nil
	}

	signals, err := e.st.IntersectionSignals(ctx, intersectionID)
	if err != nil {
		return err
	}

	nsDuration := findDuration(signals, North, 60)
	ewDuration := findDuration(signals, East, 60)
	nextPhase := Next(rec.Phase)
	nextDuration := Duration(nextPhase, nsDuration, ewDuration)
	nowSec := now.Unix()

	updates := make([]SignalColorUpdate, 0, 4)
	batch := make([]BatchedUpdate, 0, 4)
	for _, sig := range signals {
		if sig.IsManual {
			continue
		}
		color := Colors(nextPhase, sig.Direction)

		var endTime float64
		if color == Red {
			endTime = float64(nowSec + int64(TimeUntilGreen(nextPhase, sig.Direction, nsDuration, ewDuration)))
		} else {
			endTime = float64(nowSec + int64(nextDuration))
		}

		updates = append(updates, SignalColorUpdate{
			SignalID:    sig.ID,
			Color:       color,
			IsManual:    false,
			LastUpdated: nowSec,
		})
		batch = append(batch, BatchedUpdate{LightID: sig.ID, State: SignalUpdate{Status: color, EndTime: endTime}})
	}

	if len(updates) == 0 {
		// All four signals are manual; still advance the phase record so
		// the intersection re-synchronizes once overrides expire.
		e.ca.SetPhaseRecord(ctx, intersectionID, PhaseRecord{Phase: nextPhase, PhaseEnd: float64(nowSec + int64(nextDuration))})
		return nil
	}

	if err := e.st.CommitTransition(ctx, updates); err != nil {
		// Store write failure aborts this intersection's transition for
		// this tick; no partial broadcast.
		return err
	}

	for i, u := range updates {
		e.ca.SetSignalState(ctx, u.SignalID, SignalState{Color: u.Color, EndTime: batch[i].State.EndTime})
	}
	e.ca.SetPhaseRecord(ctx, intersectionID, PhaseRecord{Phase: nextPhase, PhaseEnd: float64(nowSec + int64(nextDuration))})
	e.pub.Publish(BatchUpdate(batch))
	metrics.PhaseTransitionsTotal.WithLabelValues(strconv.Itoa(int(nextPhase))).Inc()
	return nil
}

func findDuration(signals []Signal, d Direction, fallback int) int {
	for _, s := range signals {
		if s.Direction == d {
			return s.DurationSeconds
		}
	}
	return fallback
}

func errValidationf(msg string) error {
	return &validationError{msg: msg}
}

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Unwrap() error { return ErrValidation }
