package models

import "time"

// ConnState is the push-channel lifecycle state, owned by the connection
// manager.
type ConnState string

const (
	StateDisconnected  ConnState = "disconnected"
	StateConnecting    ConnState = "connecting"
	StateConnected     ConnState = "connected"
	StateAwaitingRetry ConnState = "awaiting_retry"
)

// ConnStatus is a point-in-time view of the connection for UI display.
// Attempt and RetryIn are meaningful only in StateAwaitingRetry.
type ConnStatus struct {
	State   ConnState     `json:"state"`
	Attempt int           `json:"attempt,omitempty"`
	RetryIn time.Duration `json:"retry_in,omitempty"`
}
