package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tracklight/tracklight-api/internal/models"
)

// CalendarRepository persists synced calendars.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs a calendar repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// List returns all known calendars ordered by title.
func (r *CalendarRepository) List(ctx context.Context) ([]models.Calendar, error) {
	const query = `SELECT id, title, time_zone, sync_token, last_synced_at, enabled, created_at, updated_at
FROM calendars ORDER BY title ASC`
	var calendars []models.Calendar
	if err := r.db.SelectContext(ctx, &calendars, query); err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	return calendars, nil
}

// GetByID fetches one calendar.
func (r *CalendarRepository) GetByID(ctx context.Context, id string) (*models.Calendar, error) {
	const query = `SELECT id, title, time_zone, sync_token, last_synced_at, enabled, created_at, updated_at
FROM calendars WHERE id = $1`
	var calendar models.Calendar
	if err := r.db.GetContext(ctx, &calendar, query, id); err != nil {
		return nil, err
	}
	return &calendar, nil
}

// Upsert inserts or refreshes a calendar by remote id. The local
// enabled flag and sync token survive conflicts so a re-listed calendar
// keeps its user settings and incremental cursor.
func (r *CalendarRepository) Upsert(ctx context.Context, calendar *models.Calendar) error {
	now := time.Now().UTC()
	if calendar.CreatedAt.IsZero() {
		calendar.CreatedAt = now
	}
	calendar.UpdatedAt = now
	const query = `INSERT INTO calendars (id, title, time_zone, enabled, created_at, updated_at)
VALUES (:id, :title, :time_zone, :enabled, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, time_zone = EXCLUDED.time_zone, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, calendar); err != nil {
		return fmt.Errorf("upsert calendar %s: %w", calendar.ID, err)
	}
	return nil
}

// UpdateSyncState stores the continuation token and last-sync time
// after a calendar's pages are exhausted.
func (r *CalendarRepository) UpdateSyncState(ctx context.Context, id string, syncToken *string, syncedAt time.Time) error {
	const query = `UPDATE calendars SET sync_token = $2, last_synced_at = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, syncToken, syncedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update sync state for calendar %s: %w", id, err)
	}
	return nil
}

// SetEnabled toggles whether the calendar participates in future syncs.
func (r *CalendarRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE calendars SET enabled = $2, updated_at = $3 WHERE id = $1`, id, enabled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set calendar %s enabled: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("set calendar %s enabled: no such calendar", id)
	}
	return nil
}

// DeleteAll removes every calendar. Used by forced full resyncs.
func (r *CalendarRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM calendars`); err != nil {
		return fmt.Errorf("delete all calendars: %w", err)
	}
	return nil
}
