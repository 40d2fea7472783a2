package models

import "time"

// SyncPhase is one stage of the sync pipeline state machine.
type SyncPhase string

const (
	PhaseIdle             SyncPhase = "idle"
	PhaseSyncingCalendars SyncPhase = "syncing-calendars"
	PhaseSyncingEvents    SyncPhase = "syncing-events"
	PhaseCategorizing     SyncPhase = "categorizing"
	PhaseRecalculating    SyncPhase = "recalculating-durations"
)

// SyncProgress is a transient snapshot of the running pipeline.
type SyncProgress struct {
	Phase     SyncPhase `json:"phase"`
	Calendar  string    `json:"calendar,omitempty"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	Percent   int       `json:"percent"`
}

// SyncSummary records the outcome of the last completed sync.
type SyncSummary struct {
	SyncedAt          time.Time `json:"synced_at"`
	CalendarsSynced   int       `json:"calendars_synced"`
	EventsSynced      int       `json:"events_synced"`
	EventsCategorized int       `json:"events_categorized"`
	Errors            []string  `json:"errors,omitempty"`
}
