package ledger

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLedger(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck

	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewPostgres(sqlxDB, "device-a"), mock
}

func TestPostgresHasVoted(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("device-a", int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	voted, err := l.HasVoted(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, voted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordVote(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectExec("INSERT INTO votes").
		WithArgs("device-a", int64(42), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, l.RecordVote(context.Background(), 42))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordVoteConflictIsSilent(t *testing.T) {
	l, mock := newMockLedger(t)

	// ON CONFLICT DO NOTHING reports zero affected rows; that is success.
	mock.ExpectExec("INSERT INTO votes").
		WithArgs("device-a", int64(42), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, l.RecordVote(context.Background(), 42))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnsureSchema(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS votes").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, l.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
