package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tracklight/tracklight-api/internal/models"
	appErrors "github.com/tracklight/tracklight-api/pkg/errors"
)

// Widths shrink by a quarter per concurrently active event, never below
// the floor.
const (
	layoutWidthStep  = 0.25
	layoutWidthFloor = 0.25
)

const sweepKeyFormat = "2006-01-02T15:04:05.000000000Z"

type layoutEventSource interface {
	Collect(ctx context.Context, filter models.EventPageFilter) ([]models.Event, error)
}

// LayoutService packs a day column's events into fractional-width
// blocks for the week grid.
type LayoutService struct {
	events   layoutEventSource
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewLayoutService constructs the packing engine.
func NewLayoutService(events layoutEventSource, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *LayoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &LayoutService{events: events, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// DayLayout computes block layouts for one day column. Results are
// cached until the next sync invalidates them.
func (s *LayoutService) DayLayout(ctx context.Context, day time.Time, calendarIDs []string) ([]models.EventBlockLayout, error) {
	key := dayLayoutCacheKey(day, calendarIDs)

	var cached []models.EventBlockLayout
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.Add(24 * time.Hour)
	events, err := s.events.Collect(ctx, models.EventPageFilter{
		From:        &from,
		To:          &to,
		CalendarIDs: calendarIDs,
		SkipAllDay:  true,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch events for layout")
	}

	layouts := s.PackColumn(events)
	_ = s.cache.Set(ctx, key, layouts, s.cacheTTL)
	return layouts, nil
}

// PackColumn annotates chronologically sorted events with widths in
// (0,1]. Input order must be ascending by start time.
func (s *LayoutService) PackColumn(events []models.Event) []models.EventBlockLayout {
	layouts := make([]models.EventBlockLayout, 0, len(events))
	for _, group := range groupOverlapping(events) {
		layouts = append(layouts, s.packGroup(group)...)
	}
	return layouts
}

// groupOverlapping clusters events into overlap groups by linear scan:
// an event joins the current group when it overlaps any member,
// otherwise it opens a new group.
func groupOverlapping(events []models.Event) [][]models.Event {
	var groups [][]models.Event
	for i := range events {
		e := events[i]
		if !e.Timed() {
			continue
		}
		joined := false
		if len(groups) > 0 {
			current := groups[len(groups)-1]
			for j := range current {
				if e.Overlaps(&current[j]) {
					groups[len(groups)-1] = append(current, e)
					joined = true
					break
				}
			}
		}
		if !joined {
			groups = append(groups, []models.Event{e})
		}
	}
	return groups
}

func (s *LayoutService) packGroup(group []models.Event) []models.EventBlockLayout {
	if len(group) == 1 {
		return []models.EventBlockLayout{{Event: group[0], Width: 1}}
	}
	if identicalSpan(group) {
		return stackIdenticalSpan(group)
	}
	return s.sweepGroup(group)
}

func identicalSpan(group []models.Event) bool {
	first := group[0]
	for i := 1; i < len(group); i++ {
		if !group[i].StartTime.Equal(*first.StartTime) || !group[i].EndTime.Equal(*first.EndTime) {
			return false
		}
	}
	return true
}

// stackIdenticalSpan lays out events sharing an identical span from
// full width downward: the first keeps width 1 and each subsequent one
// loses 1/groupSize. The grid renders these stacked, not side by side.
func stackIdenticalSpan(group []models.Event) []models.EventBlockLayout {
	step := 1.0 / float64(len(group))
	layouts := make([]models.EventBlockLayout, len(group))
	for i, e := range group {
		layouts[i] = models.EventBlockLayout{Event: e, Width: 1 - float64(i)*step}
	}
	return layouts
}

type sweepMark struct {
	starts []int
	ends   []int
}

// sweepGroup assigns widths by sweeping the group's boundaries in
// ascending key order. At each boundary deactivations apply before
// activations; a newly activated event's width is fixed from the count
// of events already active and never revised afterwards.
func (s *LayoutService) sweepGroup(group []models.Event) []models.EventBlockLayout {
	marks := make(map[string]*sweepMark)
	markAt := func(key string) *sweepMark {
		m, ok := marks[key]
		if !ok {
			m = &sweepMark{}
			marks[key] = m
		}
		return m
	}
	for i := range group {
		start := group[i].StartTime.UTC().Format(sweepKeyFormat)
		end := group[i].EndTime.UTC().Format(sweepKeyFormat)
		m := markAt(start)
		m.starts = append(m.starts, i)
		m = markAt(end)
		m.ends = append(m.ends, i)
	}

	keys := make([]string, 0, len(marks))
	for key := range marks {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	widths := make([]float64, len(group))
	assigned := make([]bool, len(group))
	active := make(map[int]struct{})

	for _, key := range keys {
		mark := marks[key]
		for _, idx := range mark.ends {
			delete(active, idx)
		}
		for _, idx := range mark.starts {
			width := 1 - float64(len(active))*layoutWidthStep
			if width < layoutWidthFloor {
				width = layoutWidthFloor
			}
			widths[idx] = width
			assigned[idx] = true
			active[idx] = struct{}{}
		}
	}

	if len(active) != 0 {
		s.logger.Warn("layout sweep ended with active events", zap.Int("leftover", len(active)))
	}

	layouts := make([]models.EventBlockLayout, len(group))
	for i, e := range group {
		width := widths[i]
		if !assigned[i] {
			s.logger.Warn("layout sweep missed an event", zap.String("event_id", e.ID))
			width = 1
		}
		layouts[i] = models.EventBlockLayout{Event: e, Width: width}
	}
	return layouts
}

func dayLayoutCacheKey(day time.Time, calendarIDs []string) string {
	ids := append([]string(nil), calendarIDs...)
	sort.Strings(ids)
	return fmt.Sprintf("layout:day:%s:%s", day.Format("2006-01-02"), strings.Join(ids, ","))
}
