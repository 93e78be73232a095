package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Postgres stores votes in a table with a composite primary key on
// (identity_id, event_id); ON CONFLICT DO NOTHING makes RecordVote idempotent
// the same way the server's unique verification index does.
type Postgres struct {
	db         *sqlx.DB
	identityID string
}

// NewPostgres builds a postgres-backed ledger for the given identity.
func NewPostgres(db *sqlx.DB, identityID string) *Postgres {
	return &Postgres{db: db, identityID: identityID}
}

// EnsureSchema creates the votes table when it does not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS votes (
			identity_id TEXT NOT NULL,
			event_id BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (identity_id, event_id)
		)`)
	if err != nil {
		return fmt.Errorf("ensure votes schema: %w", err)
	}
	return nil
}

func (p *Postgres) HasVoted(ctx context.Context, eventID uint) (bool, error) {
	var voted bool
	err := p.db.GetContext(ctx, &voted,
		"SELECT EXISTS (SELECT 1 FROM votes WHERE identity_id = $1 AND event_id = $2)",
		p.identityID, int64(eventID))
	if err != nil {
		return false, fmt.Errorf("query vote: %w", err)
	}
	return voted, nil
}

func (p *Postgres) RecordVote(ctx context.Context, eventID uint) error {
	_, err := p.db.ExecContext(ctx,
		"INSERT INTO votes (identity_id, event_id, created_at) VALUES ($1, $2, $3) ON CONFLICT (identity_id, event_id) DO NOTHING",
		p.identityID, int64(eventID), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record vote: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
