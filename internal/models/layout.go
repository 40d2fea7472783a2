package models

// EventBlockLayout annotates an event with its horizontal share of a
// display column. Derived on demand, never persisted.
type EventBlockLayout struct {
	Event Event   `json:"event"`
	Width float64 `json:"width"`
}
