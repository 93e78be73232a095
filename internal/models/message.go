package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Push channel actions.
const (
	ActionNewEvent    = "new_event"
	ActionVerifyEvent = "verify_event"
	ActionUpdateEvent = "update_event"
	ActionDeleteEvent = "delete_event"
	ActionUserCount   = "user_count"
)

// Message is one decoded push-channel frame. The concrete types below form a
// closed set; reconciliation switches over them exhaustively.
type Message interface {
	Action() string
}

// NewEvent announces an event not previously on the board.
type NewEvent struct {
	Event Event
}

func (NewEvent) Action() string { return ActionNewEvent }

// VerifyEvent carries the server-side verified count after an endorsement.
type VerifyEvent struct {
	ID            uint
	VerifiedCount int
	UserName      string
}

func (VerifyEvent) Action() string { return ActionVerifyEvent }

// UpdateEvent is a field-level patch pushed by the moderation surface. Nil
// fields were absent or null on the wire and must leave the stored value
// untouched.
type UpdateEvent struct {
	ID            uint
	Title         *string
	Description   *string
	Category      *string
	VerifiedCount *int
	StartTime     *time.Time
	EndTime       *time.Time
	IsApproved    *bool
}

func (UpdateEvent) Action() string { return ActionUpdateEvent }

// DeleteEvent removes an event from the board.
type DeleteEvent struct {
	ID uint
}

func (DeleteEvent) Action() string { return ActionDeleteEvent }

// UserCount is ambient connection metadata, not an event mutation.
type UserCount struct {
	Count int
}

func (UserCount) Action() string { return ActionUserCount }

type envelope struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type verifyPayload struct {
	ID            uint   `json:"id"`
	VerifiedCount int    `json:"verified_count"`
	UserName      string `json:"user_name"`
}

type updatePayload struct {
	ID            uint       `json:"id"`
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	Category      *string    `json:"category"`
	VerifiedCount *int       `json:"verified_count"`
	StartTime     *time.Time `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	IsApproved    *bool      `json:"is_approved"`
}

type deletePayload struct {
	ID uint `json:"id"`
}

type countPayload struct {
	Count int `json:"count"`
}

// DecodeMessage parses a raw push-channel frame into a typed Message. Unknown
// actions and malformed payloads are errors; callers log and drop them.
func DecodeMessage(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	// A missing or null payload would unmarshal into a zero value and smuggle
	// a phantom event into the snapshot.
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("empty payload for action %q", env.Action)
	}

	switch env.Action {
	case ActionNewEvent:
		var ev Event
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return nil, fmt.Errorf("decode new_event: %w", err)
		}
		return NewEvent{Event: ev}, nil

	case ActionVerifyEvent:
		var p verifyPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode verify_event: %w", err)
		}
		return VerifyEvent{ID: p.ID, VerifiedCount: p.VerifiedCount, UserName: p.UserName}, nil

	case ActionUpdateEvent:
		var p updatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode update_event: %w", err)
		}
		return UpdateEvent{
			ID:            p.ID,
			Title:         p.Title,
			Description:   p.Description,
			Category:      p.Category,
			VerifiedCount: p.VerifiedCount,
			StartTime:     p.StartTime,
			EndTime:       p.EndTime,
			IsApproved:    p.IsApproved,
		}, nil

	case ActionDeleteEvent:
		var p deletePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode delete_event: %w", err)
		}
		return DeleteEvent{ID: p.ID}, nil

	case ActionUserCount:
		var p countPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode user_count: %w", err)
		}
		return UserCount{Count: p.Count}, nil

	default:
		return nil, fmt.Errorf("unknown action %q", env.Action)
	}
}
