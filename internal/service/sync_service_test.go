package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tracklight/tracklight-api/internal/models"
	"github.com/tracklight/tracklight-api/internal/provider"
	appErrors "github.com/tracklight/tracklight-api/pkg/errors"
)

type providerStub struct {
	calendars    []provider.Calendar
	calendarsErr error
	listStarted  chan struct{}
	listRelease  chan struct{}

	pages    map[string][]provider.EventPage
	pagesErr map[string]error
	requests []provider.ListEventsRequest
}

func (p *providerStub) ListCalendars(ctx context.Context) ([]provider.Calendar, error) {
	if p.listStarted != nil {
		close(p.listStarted)
		p.listStarted = nil
	}
	if p.listRelease != nil {
		<-p.listRelease
	}
	if p.calendarsErr != nil {
		return nil, p.calendarsErr
	}
	return p.calendars, nil
}

func (p *providerStub) ListEvents(ctx context.Context, req provider.ListEventsRequest) (*provider.EventPage, error) {
	p.requests = append(p.requests, req)
	if err := p.pagesErr[req.CalendarID]; err != nil {
		return nil, err
	}
	queue := p.pages[req.CalendarID]
	if len(queue) == 0 {
		return &provider.EventPage{}, nil
	}
	page := queue[0]
	p.pages[req.CalendarID] = queue[1:]
	return &page, nil
}

type syncCalendarStoreStub struct {
	stored     map[string]*models.Calendar
	syncTokens map[string]string
	deletedAll bool
}

func newSyncCalendarStoreStub(calendars ...*models.Calendar) *syncCalendarStoreStub {
	s := &syncCalendarStoreStub{
		stored:     make(map[string]*models.Calendar),
		syncTokens: make(map[string]string),
	}
	for _, calendar := range calendars {
		s.stored[calendar.ID] = calendar
	}
	return s
}

func (s *syncCalendarStoreStub) List(ctx context.Context) ([]models.Calendar, error) {
	ids := make([]string, 0, len(s.stored))
	for id := range s.stored {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	calendars := make([]models.Calendar, 0, len(ids))
	for _, id := range ids {
		calendars = append(calendars, *s.stored[id])
	}
	return calendars, nil
}

// Upsert mirrors the store's conflict clause: a re-listed calendar
// keeps its enabled flag and sync token.
func (s *syncCalendarStoreStub) Upsert(ctx context.Context, calendar *models.Calendar) error {
	if existing, ok := s.stored[calendar.ID]; ok {
		existing.Title = calendar.Title
		existing.TimeZone = calendar.TimeZone
		return nil
	}
	cp := *calendar
	s.stored[calendar.ID] = &cp
	return nil
}

func (s *syncCalendarStoreStub) UpdateSyncState(ctx context.Context, id string, syncToken *string, syncedAt time.Time) error {
	if syncToken != nil {
		s.syncTokens[id] = *syncToken
	}
	return nil
}

func (s *syncCalendarStoreStub) DeleteAll(ctx context.Context) error {
	s.deletedAll = true
	s.stored = make(map[string]*models.Calendar)
	return nil
}

type syncEventStoreStub struct {
	upserted   map[string]*models.Event
	deleted    []string
	deletedAll bool
}

func newSyncEventStoreStub() *syncEventStoreStub {
	return &syncEventStoreStub{upserted: make(map[string]*models.Event)}
}

func (s *syncEventStoreStub) Upsert(ctx context.Context, event *models.Event) error {
	cp := *event
	s.upserted[event.ID] = &cp
	return nil
}

func (s *syncEventStoreStub) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *syncEventStoreStub) DeleteAll(ctx context.Context) error {
	s.deletedAll = true
	return nil
}

type syncClassifierStub struct {
	refreshes int
	stats     models.ClassificationStats
}

func (s *syncClassifierStub) Refresh() { s.refreshes++ }

func (s *syncClassifierStub) ClassifyAll(ctx context.Context, ids []string) (*models.ClassificationStats, error) {
	stats := s.stats
	return &stats, nil
}

type syncAllocatorStub struct {
	calls int
	from  time.Time
	to    time.Time
}

func (s *syncAllocatorStub) Recalculate(ctx context.Context, from, to time.Time, progress ProgressFunc) (int, error) {
	s.calls++
	s.from, s.to = from, to
	return 0, nil
}

func timedProviderEvent(id string, start, end time.Time) provider.Event {
	s, e := start, end
	return provider.Event{
		ID:      id,
		Summary: id,
		Status:  "confirmed",
		Start:   provider.EventTime{DateTime: &s},
		End:     provider.EventTime{DateTime: &e},
	}
}

func newSyncFixture(p *providerStub, calendars *syncCalendarStoreStub) (*SyncService, *syncEventStoreStub, *syncClassifierStub, *syncAllocatorStub) {
	events := newSyncEventStoreStub()
	classifier := &syncClassifierStub{stats: models.ClassificationStats{Categorized: 1}}
	allocator := &syncAllocatorStub{}
	svc := NewSyncService(p, calendars, events, classifier, allocator, nil, nil, zap.NewNop(), SyncServiceConfig{PageSize: 50})
	return svc, events, classifier, allocator
}

func TestSyncAllHappyPath(t *testing.T) {
	p := &providerStub{
		calendars: []provider.Calendar{{ID: "cal-1", Summary: "Primary", TimeZone: "UTC"}},
		pages: map[string][]provider.EventPage{
			"cal-1": {
				{
					Items: []provider.Event{
						timedProviderEvent("e1", at(9, 0), at(10, 0)),
						timedProviderEvent("e2", at(9, 30), at(10, 30)),
					},
					NextPageToken: "p2",
				},
				{
					Items:         []provider.Event{timedProviderEvent("e3", at(11, 0), at(12, 0))},
					NextSyncToken: "tok-1",
				},
			},
		},
	}
	svc, events, classifier, allocator := newSyncFixture(p, newSyncCalendarStoreStub())

	summary, err := svc.SyncAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CalendarsSynced)
	assert.Equal(t, 3, summary.EventsSynced)
	assert.Equal(t, 1, summary.EventsCategorized)
	assert.Empty(t, summary.Errors)

	assert.Len(t, events.upserted, 3)
	assert.Equal(t, 60, events.upserted["e1"].EffectiveMinutes)

	assert.Equal(t, 1, classifier.refreshes)

	// token persisted after the last page
	stores := svc.calendars.(*syncCalendarStoreStub)
	assert.Equal(t, "tok-1", stores.syncTokens["cal-1"])

	// recalculation covers the full touched range
	assert.Equal(t, 1, allocator.calls)
	assert.True(t, allocator.from.Equal(at(9, 0)))
	assert.True(t, allocator.to.Equal(at(12, 0)))

	assert.Equal(t, models.PhaseIdle, svc.Status().Phase)

	last, err := svc.LastSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, summary.EventsSynced, last.EventsSynced)
}

func TestSyncSendsStoredTokenOnFirstPageOnly(t *testing.T) {
	token := "old-tok"
	calendars := newSyncCalendarStoreStub(&models.Calendar{ID: "cal-1", Title: "Primary", Enabled: true, SyncToken: &token})
	p := &providerStub{
		calendars: []provider.Calendar{{ID: "cal-1", Summary: "Primary"}},
		pages: map[string][]provider.EventPage{
			"cal-1": {
				{Items: []provider.Event{timedProviderEvent("e1", at(9, 0), at(10, 0))}, NextPageToken: "p2"},
				{NextSyncToken: "new-tok"},
			},
		},
	}
	svc, _, _, _ := newSyncFixture(p, calendars)

	_, err := svc.SyncAll(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, p.requests, 2)
	assert.Equal(t, "old-tok", p.requests[0].SyncToken)
	assert.Equal(t, "", p.requests[0].PageToken)
	assert.Equal(t, "", p.requests[1].SyncToken)
	assert.Equal(t, "p2", p.requests[1].PageToken)

	assert.Equal(t, "new-tok", calendars.syncTokens["cal-1"])
}

func TestSyncCancelledEventsAreDeleted(t *testing.T) {
	cancelled := timedProviderEvent("gone", at(9, 0), at(10, 0))
	cancelled.Status = "cancelled"
	p := &providerStub{
		calendars: []provider.Calendar{{ID: "cal-1", Summary: "Primary"}},
		pages: map[string][]provider.EventPage{
			"cal-1": {{Items: []provider.Event{
				cancelled,
				timedProviderEvent("kept", at(11, 0), at(12, 0)),
			}}},
		},
	}
	svc, events, _, _ := newSyncFixture(p, newSyncCalendarStoreStub())

	summary, err := svc.SyncAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EventsSynced)
	assert.Equal(t, []string{"gone"}, events.deleted)
	assert.Contains(t, events.upserted, "kept")
	assert.NotContains(t, events.upserted, "gone")
}

func TestSyncCalendarFailureDoesNotAbortRun(t *testing.T) {
	p := &providerStub{
		calendars: []provider.Calendar{
			{ID: "cal-bad", Summary: "Broken"},
			{ID: "cal-good", Summary: "Fine"},
		},
		pages: map[string][]provider.EventPage{
			"cal-good": {{Items: []provider.Event{timedProviderEvent("e1", at(9, 0), at(10, 0))}}},
		},
		pagesErr: map[string]error{"cal-bad": errors.New("boom")},
	}
	svc, events, _, _ := newSyncFixture(p, newSyncCalendarStoreStub())

	summary, err := svc.SyncAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EventsSynced)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "cal-bad")
	assert.Contains(t, events.upserted, "e1")
}

func TestSyncCalendarListFailureRecordsSummary(t *testing.T) {
	p := &providerStub{calendarsErr: errors.New("remote down")}
	svc, _, _, allocator := newSyncFixture(p, newSyncCalendarStoreStub())

	_, err := svc.SyncAll(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, 0, allocator.calls)

	last, lastErr := svc.LastSummary(context.Background())
	require.NoError(t, lastErr)
	require.Len(t, last.Errors, 1)
	assert.Contains(t, last.Errors[0], "calendar list")
}

func TestSyncRejectsConcurrentRuns(t *testing.T) {
	p := &providerStub{
		listStarted: make(chan struct{}),
		listRelease: make(chan struct{}),
	}
	started := p.listStarted
	svc, _, _, _ := newSyncFixture(p, newSyncCalendarStoreStub())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = svc.SyncAll(context.Background(), false)
	}()

	<-started
	_, err := svc.SyncAll(context.Background(), false)
	assert.ErrorIs(t, err, appErrors.ErrSyncInProgress)

	close(p.listRelease)
	wg.Wait()

	// finished runs release the guard
	_, err = svc.SyncAll(context.Background(), false)
	require.NoError(t, err)
}

func TestSyncAllDayEventInference(t *testing.T) {
	p := &providerStub{
		calendars: []provider.Calendar{{ID: "cal-1", Summary: "Primary", TimeZone: "UTC"}},
		pages: map[string][]provider.EventPage{
			"cal-1": {{Items: []provider.Event{{
				ID:      "holiday",
				Summary: "Holiday",
				Status:  "confirmed",
				Start:   provider.EventTime{Date: "2026-03-02"},
				End:     provider.EventTime{Date: "2026-03-03"},
			}}}},
		},
	}
	svc, events, _, _ := newSyncFixture(p, newSyncCalendarStoreStub())

	_, err := svc.SyncAll(context.Background(), false)
	require.NoError(t, err)

	event := events.upserted["holiday"]
	require.NotNil(t, event)
	assert.True(t, event.AllDay)
	require.NotNil(t, event.StartTime)
	assert.True(t, event.StartTime.Equal(time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 24*60, event.EffectiveMinutes)
}

func TestSyncForceResyncClearsStoresAndIgnoresToken(t *testing.T) {
	token := "stale"
	calendars := newSyncCalendarStoreStub(&models.Calendar{ID: "cal-1", Title: "Primary", Enabled: true, SyncToken: &token})
	p := &providerStub{
		calendars: []provider.Calendar{{ID: "cal-1", Summary: "Primary"}},
		pages: map[string][]provider.EventPage{
			"cal-1": {{Items: []provider.Event{timedProviderEvent("e1", at(9, 0), at(10, 0))}}},
		},
	}
	svc, events, _, _ := newSyncFixture(p, calendars)

	_, err := svc.SyncAll(context.Background(), true)
	require.NoError(t, err)

	assert.True(t, events.deletedAll)
	assert.True(t, calendars.deletedAll)
	require.NotEmpty(t, p.requests)
	assert.Equal(t, "", p.requests[0].SyncToken)
}

func TestSyncSkipsDisabledCalendars(t *testing.T) {
	calendars := newSyncCalendarStoreStub(&models.Calendar{ID: "cal-off", Title: "Muted", Enabled: false})
	p := &providerStub{
		calendars: []provider.Calendar{},
		pages:     map[string][]provider.EventPage{},
	}
	svc, _, _, _ := newSyncFixture(p, calendars)

	summary, err := svc.SyncAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.EventsSynced)
	assert.Empty(t, p.requests)
}
