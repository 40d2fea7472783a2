package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/tracklight/tracklight-api/internal/models"
	appErrors "github.com/tracklight/tracklight-api/pkg/errors"
)

// ProgressFunc receives throttled phase progress while a long-running
// pass executes. The final call always reports completed == total.
type ProgressFunc func(phase models.SyncPhase, completed, total int)

type allocationEventSource interface {
	CollectRange(ctx context.Context, from, to time.Time, skipAllDay bool) ([]models.Event, error)
}

type durationWriter interface {
	UpdateEffectiveMinutes(ctx context.Context, id string, minutes int) error
}

// AllocationService recomputes effective durations. Overlapping time is
// split fairly: each atomic slice between interval boundaries is dealt
// out minute by minute across the events active during it.
type AllocationService struct {
	events allocationEventSource
	writer durationWriter
	logger *zap.Logger

	windowPadding time.Duration
	progressBatch int
}

// AllocationConfig tunes the engine.
type AllocationConfig struct {
	WindowPadding     time.Duration
	ProgressBatchSize int
}

// NewAllocationService constructs the engine.
func NewAllocationService(events allocationEventSource, writer durationWriter, logger *zap.Logger, cfg AllocationConfig) *AllocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WindowPadding <= 0 {
		cfg.WindowPadding = time.Hour
	}
	if cfg.ProgressBatchSize <= 0 {
		cfg.ProgressBatchSize = 25
	}
	return &AllocationService{
		events:        events,
		writer:        writer,
		logger:        logger,
		windowPadding: cfg.WindowPadding,
		progressBatch: cfg.ProgressBatchSize,
	}
}

// Recalculate recomputes effective minutes for every non-all-day event
// that starts no later than to and ends no earlier than the padded
// lower bound, persisting the results before returning. Only the lower
// bound is padded: an event starting after to is left untouched, since
// its own later neighbours would be invisible to this pass and a
// rewrite could clobber a correct stored split. Returns the number of
// events updated.
func (s *AllocationService) Recalculate(ctx context.Context, from, to time.Time, progress ProgressFunc) (int, error) {
	if to.Before(from) {
		return 0, appErrors.Clone(appErrors.ErrValidation, "recalculation window end precedes start")
	}

	events, err := s.events.CollectRange(ctx, from.Add(-s.windowPadding), to, true)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch events for recalculation")
	}
	if len(events) == 0 {
		return 0, nil
	}

	totals := allocateMinutes(events)

	throttle := newProgressThrottle(progress, s.progressBatch)
	updated := 0
	for i := range events {
		minutes := int(math.Round(totals[events[i].ID]))
		if minutes < 0 {
			minutes = 0
		}
		if err := s.writer.UpdateEffectiveMinutes(ctx, events[i].ID, minutes); err != nil {
			return updated, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist effective duration")
		}
		updated++
		throttle.Tick(models.PhaseRecalculating, updated, len(events))
	}

	s.logger.Debug("durations recalculated",
		zap.Time("from", from), zap.Time("to", to), zap.Int("events", updated))
	return updated, nil
}

// allocateMinutes runs the boundary decomposition and round-robin split
// and returns per-event minute totals. Every fetched event appears in
// the result, reset to zero if it received no slice time.
func allocateMinutes(events []models.Event) map[string]float64 {
	totals := make(map[string]float64, len(events))
	for i := range events {
		totals[events[i].ID] = 0
	}

	boundaries := intervalBoundaries(events)
	active := make([]string, 0, len(events))

	for i := 0; i+1 < len(boundaries); i++ {
		sliceStart := boundaries[i]
		sliceEnd := boundaries[i+1]

		active = active[:0]
		for j := range events {
			e := &events[j]
			if !e.Timed() {
				continue
			}
			if !e.StartTime.After(sliceStart) && !e.EndTime.Before(sliceEnd) {
				active = append(active, e.ID)
			}
		}
		if len(active) == 0 {
			continue
		}

		// Deal the slice out one minute per turn, cycling through the
		// active events; the fractional tail goes to whoever's turn it
		// is when the slice runs out.
		remaining := sliceEnd.Sub(sliceStart).Minutes()
		turn := 0
		for remaining > 0 {
			grant := 1.0
			if remaining < grant {
				grant = remaining
			}
			totals[active[turn%len(active)]] += grant
			remaining -= grant
			turn++
		}
	}

	return totals
}

// progressThrottle coalesces progress callbacks, reporting every Nth
// update and always the final one.
type progressThrottle struct {
	fn    ProgressFunc
	every int
}

func newProgressThrottle(fn ProgressFunc, every int) *progressThrottle {
	if every <= 0 {
		every = 25
	}
	return &progressThrottle{fn: fn, every: every}
}

func (t *progressThrottle) Tick(phase models.SyncPhase, completed, total int) {
	if t == nil || t.fn == nil {
		return
	}
	if completed == total || completed%t.every == 0 {
		t.fn(phase, completed, total)
	}
}
