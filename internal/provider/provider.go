// Package provider defines the abstract paginated calendar source the
// sync pipeline consumes. Concrete transports (Google Calendar, CalDAV
// bridges) implement CalendarProvider outside this core.
package provider

import (
	"context"
	"time"
)

// Calendar is one calendar as reported by the remote source.
type Calendar struct {
	ID       string
	Summary  string
	TimeZone string
}

// EventTime is a remote event boundary: DateTime for timed events,
// Date (YYYY-MM-DD) for all-day events.
type EventTime struct {
	DateTime *time.Time
	Date     string
}

// StatusCancelled marks events deleted on the remote side.
const StatusCancelled = "cancelled"

// Event is one remote event item from a sync page.
type Event struct {
	ID          string
	Summary     string
	Description *string
	EventType   *string
	Start       EventTime
	End         EventTime
	Status      string
}

// Cancelled reports whether the remote marked the event deleted.
func (e Event) Cancelled() bool {
	return e.Status == StatusCancelled
}

// ListEventsRequest drives one page fetch. SyncToken is only honoured
// on the first page of a pass; PageToken continues a paginated pass.
type ListEventsRequest struct {
	CalendarID string
	PageToken  string
	SyncToken  string
	MaxResults int
}

// EventPage is one page of the paginated event listing. NextSyncToken
// is only present on the final page.
type EventPage struct {
	Items         []Event
	NextPageToken string
	NextSyncToken string
}

// CalendarProvider is the remote calendar API contract.
type CalendarProvider interface {
	ListCalendars(ctx context.Context) ([]Calendar, error)
	ListEvents(ctx context.Context, req ListEventsRequest) (*EventPage, error)
}
