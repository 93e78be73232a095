package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/parsaabbasian/unispot-sync/pkg/errors"
	"github.com/parsaabbasian/unispot-sync/pkg/storage"
)

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()
	l := NewMemory()
	defer l.Close() //nolint:errcheck

	voted, err := l.HasVoted(ctx, 1)
	require.NoError(t, err)
	assert.False(t, voted)

	require.NoError(t, l.RecordVote(ctx, 1))
	require.NoError(t, l.RecordVote(ctx, 1), "recording twice is a no-op")

	voted, err = l.HasVoted(ctx, 1)
	require.NoError(t, err)
	assert.True(t, voted)

	voted, err = l.HasVoted(ctx, 2)
	require.NoError(t, err)
	assert.False(t, voted, "votes are per event")
}

func TestClosedLedgerRefusesUse(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	m := NewMemory()
	require.NoError(t, m.RecordVote(ctx, 1))
	require.NoError(t, m.Close())

	_, err = m.HasVoted(ctx, 1)
	assert.True(t, appErrors.Is(err, appErrors.ErrLedgerClosed))
	assert.True(t, appErrors.Is(m.RecordVote(ctx, 2), appErrors.ErrLedgerClosed))

	f, err := NewFile(store, "device-a")
	require.NoError(t, err)
	require.NoError(t, f.RecordVote(ctx, 1))
	require.NoError(t, f.Close())

	_, err = f.HasVoted(ctx, 1)
	assert.True(t, appErrors.Is(err, appErrors.ErrLedgerClosed))
	assert.True(t, appErrors.Is(f.RecordVote(ctx, 2), appErrors.ErrLedgerClosed))

	// Votes recorded before Close are still on disk for the next run.
	reopened, err := NewFile(store, "device-a")
	require.NoError(t, err)
	voted, err := reopened.HasVoted(ctx, 1)
	require.NoError(t, err)
	assert.True(t, voted)
}

func TestFileLedgerSurvivesReload(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	l, err := NewFile(store, "device-a")
	require.NoError(t, err)

	require.NoError(t, l.RecordVote(ctx, 7))
	require.NoError(t, l.RecordVote(ctx, 9))
	require.NoError(t, l.RecordVote(ctx, 7))

	// Same identity, fresh process.
	reloaded, err := NewFile(store, "device-a")
	require.NoError(t, err)

	voted, err := reloaded.HasVoted(ctx, 7)
	require.NoError(t, err)
	assert.True(t, voted)

	voted, err = reloaded.HasVoted(ctx, 9)
	require.NoError(t, err)
	assert.True(t, voted)

	voted, err = reloaded.HasVoted(ctx, 8)
	require.NoError(t, err)
	assert.False(t, voted)
}

func TestFileLedgerIsolatesIdentities(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	a, err := NewFile(store, "device-a")
	require.NoError(t, err)
	require.NoError(t, a.RecordVote(ctx, 3))

	b, err := NewFile(store, "device-b")
	require.NoError(t, err)

	voted, err := b.HasVoted(ctx, 3)
	require.NoError(t, err)
	assert.False(t, voted, "each device id keeps its own ledger file")
}

func TestFileLedgerRejectsCorruptFile(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save("votes_device-a.json", []byte("not json")))

	_, err = NewFile(store, "device-a")
	assert.Error(t, err)
}
