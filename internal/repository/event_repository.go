package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tracklight/tracklight-api/internal/models"
)

const eventColumns = `id, calendar_id, title, description, event_type, all_day, start_time, end_time, effective_minutes, category_id, manually_categorized, created_at, updated_at`

// EventRepository persists synced events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs an event repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Upsert inserts or refreshes an event by remote id. Category
// assignment and the manual flag survive conflicts so sync passes never
// clobber classification state.
func (r *EventRepository) Upsert(ctx context.Context, event *models.Event) error {
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	const query = `INSERT INTO events (` + eventColumns + `)
VALUES (:id, :calendar_id, :title, :description, :event_type, :all_day, :start_time, :end_time, :effective_minutes, :category_id, :manually_categorized, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE SET
	calendar_id = EXCLUDED.calendar_id,
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	event_type = EXCLUDED.event_type,
	all_day = EXCLUDED.all_day,
	start_time = EXCLUDED.start_time,
	end_time = EXCLUDED.end_time,
	effective_minutes = EXCLUDED.effective_minutes,
	updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("upsert event %s: %w", event.ID, err)
	}
	return nil
}

// GetByID fetches one event.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	if err := r.db.GetContext(ctx, &event, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// Delete removes an event by id.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return nil
}

// DeleteAll removes every event. Used by forced full resyncs.
func (r *EventRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("delete all events: %w", err)
	}
	return nil
}

// ListPage returns one cursor page of timed events ordered by
// (start_time, id). Backward pages are returned in descending scan
// order; callers reverse them.
func (r *EventRepository) ListPage(ctx context.Context, filter models.EventPageFilter) ([]models.Event, error) {
	where := []string{"start_time IS NOT NULL", "end_time IS NOT NULL"}
	args := []interface{}{}

	if filter.SkipAllDay {
		where = append(where, "all_day = FALSE")
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("end_time >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("start_time <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if len(filter.CalendarIDs) > 0 {
		where = append(where, fmt.Sprintf("calendar_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.CalendarIDs))
	}

	order := "ORDER BY start_time ASC, id ASC"
	if filter.Direction == models.PageBackward {
		order = "ORDER BY start_time DESC, id DESC"
		if filter.AfterStart != nil {
			where = append(where, fmt.Sprintf("(start_time, id) < ($%d, $%d)", len(args)+1, len(args)+2))
			args = append(args, *filter.AfterStart, filter.AfterID)
		}
	} else if filter.AfterStart != nil {
		where = append(where, fmt.Sprintf("(start_time, id) > ($%d, $%d)", len(args)+1, len(args)+2))
		args = append(args, *filter.AfterStart, filter.AfterID)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT %s FROM events WHERE %s %s LIMIT %d`,
		eventColumns, strings.Join(where, " AND "), order, limit)
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list event page: %w", err)
	}
	return events, nil
}

// UpdateEffectiveMinutes persists a recomputed duration.
func (r *EventRepository) UpdateEffectiveMinutes(ctx context.Context, id string, minutes int) error {
	const query = `UPDATE events SET effective_minutes = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, minutes, time.Now().UTC()); err != nil {
		return fmt.Errorf("update effective minutes for event %s: %w", id, err)
	}
	return nil
}

// SetCategory writes a category assignment together with the manual
// flag. Both nil clears the assignment entirely.
func (r *EventRepository) SetCategory(ctx context.Context, id string, categoryID *string, manual *bool) error {
	const query = `UPDATE events SET category_id = $2, manually_categorized = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, categoryID, manual, time.Now().UTC()); err != nil {
		return fmt.Errorf("set category for event %s: %w", id, err)
	}
	return nil
}

// ListByIDs fetches the given events in id order.
func (r *EventRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var events []models.Event
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ANY($1) ORDER BY id ASC`
	if err := r.db.SelectContext(ctx, &events, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list events by ids: %w", err)
	}
	return events, nil
}

// ListAutoAssignable returns events the classifier may touch, i.e. not
// manually categorized.
func (r *EventRepository) ListAutoAssignable(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	query := `SELECT ` + eventColumns + ` FROM events WHERE manually_categorized IS NOT TRUE ORDER BY id ASC`
	if err := r.db.SelectContext(ctx, &events, query); err != nil {
		return nil, fmt.Errorf("list auto-assignable events: %w", err)
	}
	return events, nil
}

// ListAutoAssignedTo returns events auto-assigned to one category.
func (r *EventRepository) ListAutoAssignedTo(ctx context.Context, categoryID string) ([]models.Event, error) {
	var events []models.Event
	query := `SELECT ` + eventColumns + ` FROM events WHERE category_id = $1 AND manually_categorized IS NOT TRUE ORDER BY id ASC`
	if err := r.db.SelectContext(ctx, &events, query, categoryID); err != nil {
		return nil, fmt.Errorf("list events auto-assigned to %s: %w", categoryID, err)
	}
	return events, nil
}

// SumMinutesByCategory rolls up effective minutes per category over the
// window. Events without a category come back with a NULL category_id.
func (r *EventRepository) SumMinutesByCategory(ctx context.Context, from, to time.Time) ([]models.CategoryMinutes, error) {
	const query = `SELECT category_id, COALESCE(SUM(effective_minutes), 0) AS minutes
FROM events
WHERE start_time IS NOT NULL AND end_time IS NOT NULL AND end_time >= $1 AND start_time <= $2
GROUP BY category_id
ORDER BY minutes DESC`
	var rows []models.CategoryMinutes
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("sum minutes by category: %w", err)
	}
	return rows, nil
}
