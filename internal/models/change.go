package models

import "time"

// ChangeKind classifies what a reconciled message did to the snapshot.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeVerified ChangeKind = "verified"
	ChangeUpdated  ChangeKind = "updated"
	ChangeDeleted  ChangeKind = "deleted"
)

// Change describes one applied mutation for ephemeral UI notification. For
// deletions the title and category are captured before removal.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	EventID  uint       `json:"event_id"`
	Title    string     `json:"title"`
	Category string     `json:"category"`
	UserName string     `json:"user_name,omitempty"`
	At       time.Time  `json:"at"`
}
