package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tracklight/tracklight-api/internal/models"
)

type rollupSourceStub struct {
	rows []models.CategoryMinutes
}

func (s *rollupSourceStub) SumMinutesByCategory(ctx context.Context, from, to time.Time) ([]models.CategoryMinutes, error) {
	return s.rows, nil
}

func TestDurationsByCategoryResolvesNames(t *testing.T) {
	workID := "work"
	ghostID := "ghost"
	rollup := &rollupSourceStub{rows: []models.CategoryMinutes{
		{CategoryID: &workID, Minutes: 120},
		{CategoryID: nil, Minutes: 45},
		{CategoryID: &ghostID, Minutes: 10},
	}}
	categories := &categorySourceStub{items: []models.Category{
		{ID: "work", Name: "Work", Color: "#336699"},
	}}
	svc := NewReportService(rollup, categories, zap.NewNop())

	report, err := svc.DurationsByCategory(context.Background(), at(0, 0), at(23, 59))
	require.NoError(t, err)
	require.Len(t, report, 3)

	assert.Equal(t, "work", report[0].CategoryID)
	assert.Equal(t, "Work", report[0].Name)
	assert.Equal(t, "#336699", report[0].Color)
	assert.Equal(t, 120, report[0].Minutes)

	assert.Equal(t, models.UncategorizedID, report[1].CategoryID)
	assert.Equal(t, "Uncategorized", report[1].Name)

	// a stale id with no matching category falls back to the raw id
	assert.Equal(t, "ghost", report[2].CategoryID)
	assert.Equal(t, "ghost", report[2].Name)
}

func TestDurationsByCategoryRejectsInvertedWindow(t *testing.T) {
	svc := NewReportService(&rollupSourceStub{}, &categorySourceStub{}, zap.NewNop())

	_, err := svc.DurationsByCategory(context.Background(), at(10, 0), at(9, 0))
	require.Error(t, err)
}
