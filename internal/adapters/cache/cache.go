// Package cache keeps day verdicts, training flags and per-user sync locks in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/okian/vitalsync/internal/domain/scoring"
	"github.com/okian/vitalsync/pkg/metrics"
)

const keyPrefix = "vitalsync:"

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Cache wraps a Redis client.
type Cache struct {
	client      *redis.Client
	verdictTTL  time.Duration
	lockTTL     time.Duration
	trainingTTL time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr, password string, db int, opts ...Option) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     50,
		MinIdleConns: 5,
		MaxRetries:   3,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewFromClient(client, opts...), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{
		client:      client,
		verdictTTL:  10 * time.Minute,
		lockTTL:     10 * time.Minute,
		trainingTTL: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func verdictKey(userID string) string  { return keyPrefix + "verdicts:" + userID }
func trainingKey(userID string) string { return keyPrefix + "training:" + userID }
func lockKey(userID string) string     { return keyPrefix + "sync-lock:" + userID }

// GetVerdict returns a cached verdict for the user's date.
func (c *Cache) GetVerdict(ctx context.Context, userID, date string) (scoring.Verdict, bool, error) {
	raw, err := c.client.HGet(ctx, verdictKey(userID), date).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheLookup("verdict", false)
		return scoring.Verdict{}, false, nil
	}
	if err != nil {
		return scoring.Verdict{}, false, fmt.Errorf("get verdict: %w", err)
	}
	var v scoring.Verdict
	if err := json.Unmarshal(raw, &v); err != nil {
		metrics.RecordCacheLookup("verdict", false)
		return scoring.Verdict{}, false, nil
	}
	metrics.RecordCacheLookup("verdict", true)
	return v, true, nil
}

// PutVerdict caches v under its date.
func (c *Cache) PutVerdict(ctx context.Context, userID string, v scoring.Verdict) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	key := verdictKey(userID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, v.Date, raw)
	pipe.Expire(ctx, key, c.verdictTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put verdict: %w", err)
	}
	return nil
}

// InvalidateVerdicts drops every cached verdict of the user.
func (c *Cache) InvalidateVerdicts(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, verdictKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate verdicts: %w", err)
	}
	return nil
}

// SetTraining marks a training run in progress. The flag expires on its own
// if the process dies mid-run.
func (c *Cache) SetTraining(ctx context.Context, userID string) error {
	return c.client.Set(ctx, trainingKey(userID), time.Now().UTC().Format(time.RFC3339), c.trainingTTL).Err()
}

// ClearTraining removes the training flag.
func (c *Cache) ClearTraining(ctx context.Context, userID string) error {
	return c.client.Del(ctx, trainingKey(userID)).Err()
}

// IsTraining reports whether the training flag is set.
func (c *Cache) IsTraining(ctx context.Context, userID string) (bool, error) {
	n, err := c.client.Exists(ctx, trainingKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("training flag: %w", err)
	}
	return n > 0, nil
}

// AcquireSyncLock takes the per-user sync lock. ok is false when another
// holder has it. release is safe to call after the lock expired.
func (c *Cache) AcquireSyncLock(ctx context.Context, userID string) (release func(context.Context) error, ok bool, err error) {
	token := uuid.NewString()
	key := lockKey(userID)
	ok, err = c.client.SetNX(ctx, key, token, c.lockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, c.client, []string{key}, token).Err()
	}, true, nil
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}
