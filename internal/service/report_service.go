package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tracklight/tracklight-api/internal/dto"
	"github.com/tracklight/tracklight-api/internal/models"
	appErrors "github.com/tracklight/tracklight-api/pkg/errors"
)

type durationRollupSource interface {
	SumMinutesByCategory(ctx context.Context, from, to time.Time) ([]models.CategoryMinutes, error)
}

type reportCategorySource interface {
	List(ctx context.Context) ([]models.Category, error)
}

// ReportService rolls effective durations up per category for the
// statistics views.
type ReportService struct {
	events     durationRollupSource
	categories reportCategorySource
	logger     *zap.Logger
}

// NewReportService constructs the service.
func NewReportService(events durationRollupSource, categories reportCategorySource, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{events: events, categories: categories, logger: logger}
}

// DurationsByCategory sums effective minutes per category over the
// window. Unassigned events land in the virtual uncategorized bucket.
func (s *ReportService) DurationsByCategory(ctx context.Context, from, to time.Time) ([]dto.CategoryDuration, error) {
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "report window end precedes start")
	}

	rows, err := s.events.SumMinutesByCategory(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum durations")
	}

	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	names := make(map[string]models.Category, len(categories))
	for _, category := range categories {
		names[category.ID] = category
	}

	report := make([]dto.CategoryDuration, 0, len(rows))
	for _, row := range rows {
		entry := dto.CategoryDuration{Minutes: row.Minutes}
		if row.CategoryID == nil {
			entry.CategoryID = models.UncategorizedID
			entry.Name = "Uncategorized"
		} else if category, ok := names[*row.CategoryID]; ok {
			entry.CategoryID = category.ID
			entry.Name = category.Name
			entry.Color = category.Color
		} else {
			entry.CategoryID = *row.CategoryID
			entry.Name = *row.CategoryID
		}
		report = append(report, entry)
	}
	return report, nil
}
