package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrContention is returned when another client changed the actor's state
// between read and write. Nothing was written; the caller may retry.
var ErrContention = errors.New("rate limit state changed concurrently")

// RedisStore keeps one hash per actor (ratelimit:<actor>) with a field per
// operation key holding unix milliseconds.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

func (s *RedisStore) key(actorID string) string {
	return s.prefix + actorID
}

func (s *RedisStore) Record(ctx context.Context, actorID, op string, now time.Time, decide func(last time.Time, found bool) Decision) (Decision, error) {
	key := s.key(actorID)
	var decision Decision

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		var (
			last  time.Time
			found bool
		)

		raw, err := tx.HGet(ctx, key, op).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("read state: %w", err)
		default:
			ms, perr := strconv.ParseInt(raw, 10, 64)
			if perr != nil {
				return fmt.Errorf("parse state %q: %w", raw, perr)
			}
			last = time.UnixMilli(ms)
			found = true
		}

		decision = decide(last, found)
		if !decision.Allowed {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, op, now.UnixMilli())
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return Decision{}, ErrContention
	}
	if err != nil {
		return Decision{}, err
	}
	return decision, nil
}
