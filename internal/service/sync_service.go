package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tracklight/tracklight-api/internal/models"
	"github.com/tracklight/tracklight-api/internal/provider"
	appErrors "github.com/tracklight/tracklight-api/pkg/errors"
)

const lastSyncCacheKey = "sync:last"

type syncCalendarStore interface {
	List(ctx context.Context) ([]models.Calendar, error)
	Upsert(ctx context.Context, calendar *models.Calendar) error
	UpdateSyncState(ctx context.Context, id string, syncToken *string, syncedAt time.Time) error
	DeleteAll(ctx context.Context) error
}

type syncEventStore interface {
	Upsert(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

type syncClassifier interface {
	Refresh()
	ClassifyAll(ctx context.Context, ids []string) (*models.ClassificationStats, error)
}

type syncAllocator interface {
	Recalculate(ctx context.Context, from, to time.Time, progress ProgressFunc) (int, error)
}

// SyncService drives the full pipeline: pull remote calendars, page
// through each enabled calendar's events with continuation tokens,
// classify what changed, then recompute effective durations over the
// touched range.
//
// Runs are single-flight: a SyncAll while one is in progress is
// rejected with ErrSyncInProgress.
type SyncService struct {
	provider   provider.CalendarProvider
	calendars  syncCalendarStore
	events     syncEventStore
	classifier syncClassifier
	allocator  syncAllocator
	cache      *CacheService
	metrics    *MetricsService
	logger     *zap.Logger

	pageSize int

	running atomic.Bool

	mu       sync.Mutex
	progress models.SyncProgress
	last     *models.SyncSummary
}

// SyncServiceConfig tunes the pipeline.
type SyncServiceConfig struct {
	PageSize int
}

// NewSyncService wires the orchestrator.
func NewSyncService(
	calendarProvider provider.CalendarProvider,
	calendars syncCalendarStore,
	events syncEventStore,
	classifier syncClassifier,
	allocator syncAllocator,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg SyncServiceConfig,
) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 250
	}
	return &SyncService{
		provider:   calendarProvider,
		calendars:  calendars,
		events:     events,
		classifier: classifier,
		allocator:  allocator,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		pageSize:   cfg.PageSize,
		progress:   models.SyncProgress{Phase: models.PhaseIdle},
	}
}

// Status returns the current pipeline progress snapshot.
func (s *SyncService) Status() models.SyncProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// LastSummary returns the most recent completed sync summary, falling
// back to the cached copy across restarts.
func (s *SyncService) LastSummary(ctx context.Context) (*models.SyncSummary, error) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last != nil {
		return last, nil
	}

	var cached models.SyncSummary
	if hit, err := s.cache.Get(ctx, lastSyncCacheKey, &cached); err == nil && hit {
		return &cached, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "no sync has completed yet")
}

// SyncAll runs the full pipeline. Individual calendar failures are
// collected into the summary's error list without aborting the run; a
// failed calendar-list fetch aborts with an error after recording the
// partial summary.
func (s *SyncService) SyncAll(ctx context.Context, forceResync bool) (*models.SyncSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, appErrors.ErrSyncInProgress
	}
	defer s.running.Store(false)
	defer s.setProgress(models.SyncProgress{Phase: models.PhaseIdle})

	started := time.Now()
	summary := &models.SyncSummary{SyncedAt: time.Now().UTC()}

	if forceResync {
		if err := s.events.DeleteAll(ctx); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset events")
		}
		if err := s.calendars.DeleteAll(ctx); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset calendars")
		}
	}

	s.setProgress(models.SyncProgress{Phase: models.PhaseSyncingCalendars})
	remote, err := s.provider.ListCalendars(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("calendar list: %v", err))
		s.finish(ctx, summary, started, false)
		return nil, appErrors.Wrap(err, appErrors.ErrProviderFailure.Code, appErrors.ErrProviderFailure.Status, "failed to list remote calendars")
	}

	for i, rc := range remote {
		calendar := &models.Calendar{ID: rc.ID, Title: rc.Summary, TimeZone: rc.TimeZone, Enabled: true}
		if err := s.calendars.Upsert(ctx, calendar); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("calendar %s: %v", rc.ID, err))
			continue
		}
		summary.CalendarsSynced++
		s.setProgress(models.SyncProgress{Phase: models.PhaseSyncingCalendars, Processed: i + 1, Total: len(remote)})
	}

	locals, err := s.calendars.List(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("calendar load: %v", err))
		s.finish(ctx, summary, started, false)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stored calendars")
	}

	var earliest, latest *time.Time
	for i := range locals {
		calendar := &locals[i]
		if !calendar.Enabled {
			continue
		}
		synced, lo, hi, err := s.syncCalendarEvents(ctx, calendar, forceResync)
		summary.EventsSynced += synced
		if err != nil {
			s.logger.Warn("calendar sync failed", zap.String("calendar_id", calendar.ID), zap.Error(err))
			summary.Errors = append(summary.Errors, fmt.Sprintf("calendar %s: %v", calendar.ID, err))
			continue
		}
		earliest = minTime(earliest, lo)
		latest = maxTime(latest, hi)
	}

	s.setProgress(models.SyncProgress{Phase: models.PhaseCategorizing})
	s.classifier.Refresh()
	if stats, err := s.classifier.ClassifyAll(ctx, nil); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("classification: %v", err))
	} else {
		summary.EventsCategorized = stats.Categorized
	}

	if earliest != nil && latest != nil {
		s.setProgress(models.SyncProgress{Phase: models.PhaseRecalculating})
		updated, err := s.allocator.Recalculate(ctx, *earliest, *latest, s.onProgress)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("duration recalculation: %v", err))
		}
		s.metrics.ObserveAllocation(updated)
	}

	s.finish(ctx, summary, started, true)
	return summary, nil
}

// syncCalendarEvents pages through one calendar's events. The stored
// continuation token rides on the first page only; a token returned
// with the final page is persisted together with the sync time.
func (s *SyncService) syncCalendarEvents(ctx context.Context, calendar *models.Calendar, forceResync bool) (synced int, earliest, latest *time.Time, err error) {
	location := calendar.Location()

	syncToken := ""
	if !forceResync && calendar.SyncToken != nil {
		syncToken = *calendar.SyncToken
	}

	pageToken := ""
	newSyncToken := ""
	firstPage := true

	for {
		req := provider.ListEventsRequest{
			CalendarID: calendar.ID,
			PageToken:  pageToken,
			MaxResults: s.pageSize,
		}
		if firstPage {
			req.SyncToken = syncToken
		}

		page, err := s.provider.ListEvents(ctx, req)
		if err != nil {
			return synced, earliest, latest, fmt.Errorf("list events page: %w", err)
		}
		firstPage = false

		for _, item := range page.Items {
			if item.Cancelled() {
				if err := s.events.Delete(ctx, item.ID); err != nil {
					s.logger.Warn("failed to delete cancelled event", zap.String("event_id", item.ID), zap.Error(err))
				}
				continue
			}

			event := eventFromProvider(calendar.ID, item, location)
			if err := s.events.Upsert(ctx, event); err != nil {
				s.logger.Warn("failed to upsert event", zap.String("event_id", item.ID), zap.Error(err))
				continue
			}
			synced++
			if event.StartTime != nil {
				earliest = minTime(earliest, event.StartTime)
			}
			if event.EndTime != nil {
				latest = maxTime(latest, event.EndTime)
			}
			s.setProgress(models.SyncProgress{Phase: models.PhaseSyncingEvents, Calendar: calendar.Title, Processed: synced})
		}

		if page.NextSyncToken != "" {
			newSyncToken = page.NextSyncToken
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	if newSyncToken != "" {
		if err := s.calendars.UpdateSyncState(ctx, calendar.ID, &newSyncToken, time.Now().UTC()); err != nil {
			return synced, earliest, latest, fmt.Errorf("persist sync token: %w", err)
		}
	}
	return synced, earliest, latest, nil
}

func (s *SyncService) finish(ctx context.Context, summary *models.SyncSummary, started time.Time, success bool) {
	s.mu.Lock()
	s.last = summary
	s.mu.Unlock()

	_ = s.cache.Set(ctx, lastSyncCacheKey, summary, 0)
	_ = s.cache.Invalidate(ctx, "layout:*")
	s.metrics.ObserveSyncRun(time.Since(started), summary.EventsSynced, success)

	s.logger.Info("sync finished",
		zap.Bool("success", success),
		zap.Int("calendars", summary.CalendarsSynced),
		zap.Int("events", summary.EventsSynced),
		zap.Int("categorized", summary.EventsCategorized),
		zap.Int("errors", len(summary.Errors)),
		zap.Duration("took", time.Since(started)))
}

func (s *SyncService) onProgress(phase models.SyncPhase, completed, total int) {
	s.setProgress(models.SyncProgress{Phase: phase, Processed: completed, Total: total})
}

func (s *SyncService) setProgress(p models.SyncProgress) {
	if p.Total > 0 {
		p.Percent = completedPercent(p.Processed, p.Total)
	}
	s.mu.Lock()
	s.progress = p
	s.mu.Unlock()
}

func completedPercent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	percent := completed * 100 / total
	if percent > 100 {
		percent = 100
	}
	return percent
}

// eventFromProvider maps a remote item to the local model. A date-only
// payload marks an all-day event anchored at local midnight in the
// calendar's timezone. Effective minutes start as wall-clock duration
// until the allocation engine overwrites them.
func eventFromProvider(calendarID string, item provider.Event, location *time.Location) *models.Event {
	start, startAllDay := resolveEventTime(item.Start, location)
	end, endAllDay := resolveEventTime(item.End, location)

	event := &models.Event{
		ID:          item.ID,
		CalendarID:  calendarID,
		Title:       item.Summary,
		Description: item.Description,
		EventType:   item.EventType,
		AllDay:      startAllDay || endAllDay,
		StartTime:   start,
		EndTime:     end,
	}
	event.EffectiveMinutes = event.WallClockMinutes()
	return event
}

func resolveEventTime(t provider.EventTime, location *time.Location) (*time.Time, bool) {
	if t.DateTime != nil {
		value := *t.DateTime
		return &value, false
	}
	if t.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", t.Date, location)
		if err == nil {
			return &parsed, true
		}
	}
	return nil, false
}

func minTime(current, candidate *time.Time) *time.Time {
	if candidate == nil {
		return current
	}
	if current == nil || candidate.Before(*current) {
		value := *candidate
		return &value
	}
	return current
}

func maxTime(current, candidate *time.Time) *time.Time {
	if candidate == nil {
		return current
	}
	if current == nil || candidate.After(*current) {
		value := *candidate
		return &value
	}
	return current
}
