package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	appErrors "github.com/parsaabbasian/unispot-sync/pkg/errors"
	"github.com/parsaabbasian/unispot-sync/pkg/storage"
)

// File is a ledger persisted as a JSON array of event ids under the local
// data directory, the durable analogue of the browser's saved-votes key. The
// full set is rewritten on every recorded vote; vote volume per identity is
// tiny, so the simplicity wins.
type File struct {
	store    *storage.LocalStorage
	filename string

	mu     sync.Mutex
	voted  map[uint]struct{}
	closed bool
}

// NewFile loads (or initialises) the ledger file for the given identity.
func NewFile(store *storage.LocalStorage, identityID string) (*File, error) {
	f := &File{
		store:    store,
		filename: fmt.Sprintf("votes_%s.json", identityID),
		voted:    make(map[uint]struct{}),
	}

	raw, err := store.Load(f.filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("load vote ledger: %w", err)
	}

	var ids []uint
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("parse vote ledger: %w", err)
	}
	for _, id := range ids {
		f.voted[id] = struct{}{}
	}
	return f, nil
}

func (f *File) HasVoted(_ context.Context, eventID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, appErrors.ErrLedgerClosed
	}
	_, ok := f.voted[eventID]
	return ok, nil
}

func (f *File) RecordVote(_ context.Context, eventID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return appErrors.ErrLedgerClosed
	}
	if _, ok := f.voted[eventID]; ok {
		return nil
	}
	f.voted[eventID] = struct{}{}
	if err := f.persist(); err != nil {
		// Keep the set consistent with what is on disk.
		delete(f.voted, eventID)
		return err
	}
	return nil
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *File) persist() error {
	ids := make([]uint, 0, len(f.voted))
	for id := range f.voted {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode vote ledger: %w", err)
	}
	if err := f.store.Save(f.filename, raw); err != nil {
		return fmt.Errorf("save vote ledger: %w", err)
	}
	return nil
}
