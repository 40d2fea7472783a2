package dto

// SyncRequest triggers a sync pass.
type SyncRequest struct {
	ForceResync bool `json:"force_resync"`
}

// SetCalendarEnabledRequest toggles a calendar's sync participation.
type SetCalendarEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}
