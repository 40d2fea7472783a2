package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/tracklight/tracklight-api/internal/models"
	appErrors "github.com/tracklight/tracklight-api/pkg/errors"
)

type eventStore interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
	SetCategory(ctx context.Context, id string, categoryID *string, manual *bool) error
}

type eventCategoryChecker interface {
	GetByID(ctx context.Context, id string) (*models.Category, error)
}

// EventService covers direct event mutations, currently manual
// categorization.
type EventService struct {
	events     eventStore
	categories eventCategoryChecker
	logger     *zap.Logger
}

// NewEventService constructs the service.
func NewEventService(events eventStore, categories eventCategoryChecker, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{events: events, categories: categories, logger: logger}
}

// SetCategory manually assigns a category, marking the event immune to
// auto-reclassification. A nil category clears the assignment and the
// manual flag, handing the event back to the classifier.
func (s *EventService) SetCategory(ctx context.Context, eventID string, categoryID *string) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}

	if categoryID == nil {
		event.CategoryID = nil
		event.ManuallyCategorized = nil
		if err := s.events.SetCategory(ctx, eventID, nil, nil); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear category")
		}
		return event, nil
	}

	if _, err := s.categories.GetByID(ctx, *categoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "category not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}

	manual := true
	event.CategoryID = categoryID
	event.ManuallyCategorized = &manual
	if err := s.events.SetCategory(ctx, eventID, categoryID, &manual); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set category")
	}
	return event, nil
}
