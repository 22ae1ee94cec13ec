package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock is a per-document mutex in Redis. It keeps at-least-once task
// delivery from running two pipelines for the same document at once.
type RunLock struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRunLock(rdb redis.UniversalClient, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RunLock{rdb: rdb, ttl: ttl, prefix: "document-summarizer:run:"}
}

func (l *RunLock) key(documentID string) string {
	return l.prefix + documentID
}

// Acquire returns ok=false when another holder owns the lock.
func (l *RunLock) Acquire(ctx context.Context, documentID string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key(documentID), token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *RunLock) Release(ctx context.Context, documentID, token string) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key(documentID)}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis release: %w", err)
	}
	return nil
}
