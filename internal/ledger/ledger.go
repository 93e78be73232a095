// Package ledger guarantees at-most-one local endorsement per event id,
// durable across restarts. Backends share one contract: RecordVote is
// idempotent and HasVoted reflects every recorded vote, so duplicate verify
// attempts are suppressed here rather than at the network layer.
package ledger

import (
	"context"
	"sync"

	appErrors "github.com/parsaabbasian/unispot-sync/pkg/errors"
)

// Ledger is the durable idempotent set of event ids this identity endorsed.
type Ledger interface {
	HasVoted(ctx context.Context, eventID uint) (bool, error)
	RecordVote(ctx context.Context, eventID uint) error
	Close() error
}

// Memory is an in-process ledger. It backs tests and acts as the fallback
// when no durable store is configured.
type Memory struct {
	mu     sync.RWMutex
	voted  map[uint]struct{}
	closed bool
}

// NewMemory builds an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{voted: make(map[uint]struct{})}
}

func (m *Memory) HasVoted(_ context.Context, eventID uint) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, appErrors.ErrLedgerClosed
	}
	_, ok := m.voted[eventID]
	return ok, nil
}

func (m *Memory) RecordVote(_ context.Context, eventID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return appErrors.ErrLedgerClosed
	}
	m.voted[eventID] = struct{}{}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
