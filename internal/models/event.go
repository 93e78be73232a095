package models

import "time"

// Event is one campus sighting as served by the event board API. JSON tags
// match the wire contract of both the REST snapshot and the push channel.
type Event struct {
	ID            uint      `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Latitude      float64   `json:"lat"`
	Longitude     float64   `json:"lng"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	VerifiedCount int       `json:"verified_count"`
	Verifiers     []string  `json:"verifiers,omitempty"`
	IsApproved    bool      `json:"is_approved"`
	CreatorName   string    `json:"creator_name,omitempty"`
}

// Expired reports whether the event's validity window has passed.
func (e Event) Expired(now time.Time) bool {
	return !e.EndTime.IsZero() && e.EndTime.Before(now)
}
