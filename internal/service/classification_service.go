package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tracklight/tracklight-api/internal/models"
	appErrors "github.com/tracklight/tracklight-api/pkg/errors"
)

type classificationCategorySource interface {
	List(ctx context.Context) ([]models.Category, error)
}

type classificationEventStore interface {
	ListAutoAssignable(ctx context.Context) ([]models.Event, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Event, error)
	ListAutoAssignedTo(ctx context.Context, categoryID string) ([]models.Event, error)
	SetCategory(ctx context.Context, id string, categoryID *string, manual *bool) error
}

// ClassificationService assigns categories to events by first-match-wins
// rule evaluation across categories ordered by priority descending,
// name ascending. Events flagged as manually categorized are never
// touched.
//
// The priority-sorted category list is cached per instance; Refresh
// drops the cache and the next classification reloads it. Callers must
// Refresh after any category or rule mutation.
type ClassificationService struct {
	categories classificationCategorySource
	events     classificationEventStore
	matcher    *RuleMatcher
	logger     *zap.Logger

	mu     sync.Mutex
	cached []models.Category
	loaded bool
}

// NewClassificationService constructs the engine.
func NewClassificationService(categories classificationCategorySource, events classificationEventStore, matcher *RuleMatcher, logger *zap.Logger) *ClassificationService {
	if matcher == nil {
		matcher = NewRuleMatcher(logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassificationService{categories: categories, events: events, matcher: matcher, logger: logger}
}

// Refresh invalidates the cached rule set.
func (s *ClassificationService) Refresh() {
	s.mu.Lock()
	s.cached = nil
	s.loaded = false
	s.mu.Unlock()
}

func (s *ClassificationService) ruleSet(ctx context.Context) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.cached, nil
	}
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load categories")
	}
	s.cached = categories
	s.loaded = true
	return s.cached, nil
}

// Classify evaluates the rule set against one event and persists the
// resulting assignment. It returns true when the stored assignment
// changed. A previously auto-assigned event whose title no longer
// matches anything is cleared; manually categorized events pass through
// untouched.
func (s *ClassificationService) Classify(ctx context.Context, event *models.Event) (bool, error) {
	if event.ManuallyCategorized != nil && *event.ManuallyCategorized {
		return false, nil
	}

	categories, err := s.ruleSet(ctx)
	if err != nil {
		return false, err
	}

	title := event.Title
	for i := range categories {
		category := &categories[i]
		for _, rule := range category.Rules {
			if !s.matcher.Matches(title, rule) {
				continue
			}
			if event.CategoryID != nil && *event.CategoryID == category.ID &&
				event.ManuallyCategorized != nil && !*event.ManuallyCategorized {
				return false, nil
			}
			categoryID := category.ID
			auto := false
			event.CategoryID = &categoryID
			event.ManuallyCategorized = &auto
			if err := s.events.SetCategory(ctx, event.ID, event.CategoryID, event.ManuallyCategorized); err != nil {
				return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist classification")
			}
			return true, nil
		}
	}

	if event.CategoryID != nil {
		event.CategoryID = nil
		event.ManuallyCategorized = nil
		if err := s.events.SetCategory(ctx, event.ID, nil, nil); err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear classification")
		}
		return true, nil
	}
	return false, nil
}

// ClassifyAll classifies the given event ids, or every auto-assignable
// event when ids is empty, and reports aggregate stats.
func (s *ClassificationService) ClassifyAll(ctx context.Context, ids []string) (*models.ClassificationStats, error) {
	var (
		events []models.Event
		err    error
	)
	if len(ids) > 0 {
		events, err = s.events.ListByIDs(ctx, ids)
	} else {
		events, err = s.events.ListAutoAssignable(ctx)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load events for classification")
	}

	stats := &models.ClassificationStats{PerCategory: make(map[string]int)}
	for i := range events {
		event := &events[i]
		stats.Considered++
		if _, err := s.Classify(ctx, event); err != nil {
			return nil, err
		}
		if event.CategoryID != nil {
			stats.Categorized++
			stats.PerCategory[*event.CategoryID]++
		} else {
			stats.Uncategorized++
		}
	}

	s.logger.Debug("classification pass complete",
		zap.Int("considered", stats.Considered),
		zap.Int("categorized", stats.Categorized),
		zap.Int("uncategorized", stats.Uncategorized))
	return stats, nil
}

// RecategorizeForCategory handles a category whose rules changed: every
// event currently auto-assigned to it is cleared and re-run against the
// full rule set, which may reassign it elsewhere or leave it
// uncategorized.
func (s *ClassificationService) RecategorizeForCategory(ctx context.Context, categoryID string) error {
	events, err := s.events.ListAutoAssignedTo(ctx, categoryID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load events for recategorization")
	}

	s.Refresh()
	for i := range events {
		event := &events[i]
		if err := s.events.SetCategory(ctx, event.ID, nil, nil); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear assignment")
		}
		event.CategoryID = nil
		event.ManuallyCategorized = nil
		if _, err := s.Classify(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
