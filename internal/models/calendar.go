package models

import "time"

// Calendar mirrors one remote calendar tracked by the sync pipeline.
type Calendar struct {
	ID           string     `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	TimeZone     string     `db:"time_zone" json:"time_zone"`
	SyncToken    *string    `db:"sync_token" json:"-"`
	LastSyncedAt *time.Time `db:"last_synced_at" json:"last_synced_at,omitempty"`
	Enabled      bool       `db:"enabled" json:"enabled"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Location resolves the calendar's IANA timezone, falling back to UTC.
func (c *Calendar) Location() *time.Location {
	if c == nil || c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
