package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tracklight/tracklight-api/internal/models"
	appErrors "github.com/tracklight/tracklight-api/pkg/errors"
)

const collectPageSize = 500

type eventPager interface {
	ListPage(ctx context.Context, filter models.EventPageFilter) ([]models.Event, error)
}

// EventQueryService provides cursor-paginated event access over the
// store. Both the UI surface and the allocation engine's bulk fetch go
// through it.
type EventQueryService struct {
	repo   eventPager
	logger *zap.Logger
}

// NewEventQueryService constructs the query service.
func NewEventQueryService(repo eventPager, logger *zap.Logger) *EventQueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventQueryService{repo: repo, logger: logger}
}

// EventPageRequest describes one page request.
type EventPageRequest struct {
	Cursor      string
	Direction   models.PageDirection
	Limit       int
	From        *time.Time
	To          *time.Time
	CalendarIDs []string
	SkipAllDay  bool
}

// Page returns one page of events in ascending (start, id) order plus
// cursors for continuing in either direction.
func (s *EventQueryService) Page(ctx context.Context, req EventPageRequest) ([]models.Event, *models.CursorPageInfo, error) {
	filter := models.EventPageFilter{
		Direction:   req.Direction,
		Limit:       req.Limit,
		From:        req.From,
		To:          req.To,
		CalendarIDs: req.CalendarIDs,
		SkipAllDay:  req.SkipAllDay,
	}
	if filter.Direction == "" {
		filter.Direction = models.PageForward
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	if req.Cursor != "" {
		start, id, err := decodeCursor(req.Cursor)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid cursor")
		}
		filter.AfterStart = &start
		filter.AfterID = id
	}

	events, err := s.repo.ListPage(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to page events")
	}

	if filter.Direction == models.PageBackward {
		reverseEvents(events)
	}

	page := &models.CursorPageInfo{Limit: filter.Limit}
	if len(events) > 0 {
		first := events[0]
		last := events[len(events)-1]
		if first.StartTime != nil {
			prev := encodeCursor(*first.StartTime, first.ID)
			page.PrevCursor = &prev
		}
		if last.StartTime != nil {
			next := encodeCursor(*last.StartTime, last.ID)
			page.NextCursor = &next
		}
	}
	return events, page, nil
}

// Collect drains every page matching the filter in forward order.
func (s *EventQueryService) Collect(ctx context.Context, filter models.EventPageFilter) ([]models.Event, error) {
	filter.Direction = models.PageForward
	filter.Limit = collectPageSize

	var all []models.Event
	for {
		batch, err := s.repo.ListPage(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("collect events: %w", err)
		}
		all = append(all, batch...)
		if len(batch) < filter.Limit {
			return all, nil
		}
		last := batch[len(batch)-1]
		filter.AfterStart = last.StartTime
		filter.AfterID = last.ID
	}
}

// CollectRange fetches every timed event intersecting [from, to],
// optionally skipping all-day events.
func (s *EventQueryService) CollectRange(ctx context.Context, from, to time.Time, skipAllDay bool) ([]models.Event, error) {
	return s.Collect(ctx, models.EventPageFilter{From: &from, To: &to, SkipAllDay: skipAllDay})
}

func encodeCursor(start time.Time, id string) string {
	raw := strconv.FormatInt(start.UnixNano(), 10) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("malformed cursor")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, "", err
	}
	return time.Unix(0, nanos).UTC(), parts[1], nil
}

func reverseEvents(events []models.Event) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}
