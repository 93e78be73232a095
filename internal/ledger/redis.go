package ledger

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis stores the vote set as a Redis SET keyed by identity, for deployments
// where the watcher runs alongside shared infrastructure.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis builds a redis-backed ledger namespaced to the given identity.
func NewRedis(client *redis.Client, identityID string) *Redis {
	return &Redis{
		client: client,
		key:    fmt.Sprintf("unispot:votes:%s", identityID),
	}
}

func (r *Redis) HasVoted(ctx context.Context, eventID uint) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, member(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember %s: %w", r.key, err)
	}
	return ok, nil
}

func (r *Redis) RecordVote(ctx context.Context, eventID uint) error {
	// SADD is idempotent: re-adding an existing member is a no-op.
	if err := r.client.SAdd(ctx, r.key, member(eventID)).Err(); err != nil {
		return fmt.Errorf("redis sadd %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func member(eventID uint) string {
	return fmt.Sprintf("%d", eventID)
}
