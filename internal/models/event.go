package models

import "time"

// Event is one synced calendar event. The remote source owns the id, so
// upserts key on it across sync passes.
type Event struct {
	ID                  string     `db:"id" json:"id"`
	CalendarID          string     `db:"calendar_id" json:"calendar_id"`
	Title               string     `db:"title" json:"title"`
	Description         *string    `db:"description" json:"description,omitempty"`
	EventType           *string    `db:"event_type" json:"event_type,omitempty"`
	AllDay              bool       `db:"all_day" json:"all_day"`
	StartTime           *time.Time `db:"start_time" json:"start_time,omitempty"`
	EndTime             *time.Time `db:"end_time" json:"end_time,omitempty"`
	EffectiveMinutes    int        `db:"effective_minutes" json:"effective_minutes"`
	CategoryID          *string    `db:"category_id" json:"category_id,omitempty"`
	ManuallyCategorized *bool      `db:"manually_categorized" json:"manually_categorized,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// Timed reports whether the event carries both endpoints.
func (e *Event) Timed() bool {
	return e != nil && e.StartTime != nil && e.EndTime != nil
}

// Overlaps reports temporal overlap with another timed event.
func (e *Event) Overlaps(other *Event) bool {
	if !e.Timed() || !other.Timed() {
		return false
	}
	return e.StartTime.Before(*other.EndTime) && e.EndTime.After(*other.StartTime)
}

// WallClockMinutes is the plain end-start duration in whole minutes.
func (e *Event) WallClockMinutes() int {
	if !e.Timed() {
		return 0
	}
	d := e.EndTime.Sub(*e.StartTime)
	if d < 0 {
		return 0
	}
	return int(d.Minutes())
}

// PageDirection selects cursor scan direction.
type PageDirection string

const (
	PageForward  PageDirection = "forward"
	PageBackward PageDirection = "backward"
)

// EventPageFilter narrows a cursor scan over events.
type EventPageFilter struct {
	AfterStart  *time.Time
	AfterID     string
	Direction   PageDirection
	Limit       int
	From        *time.Time
	To          *time.Time
	CalendarIDs []string
	SkipAllDay  bool
}

// CursorPageInfo carries opaque cursors for the next and previous page.
type CursorPageInfo struct {
	NextCursor *string `json:"next_cursor,omitempty"`
	PrevCursor *string `json:"prev_cursor,omitempty"`
	Limit      int     `json:"limit"`
}
