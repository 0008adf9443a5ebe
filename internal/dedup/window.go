// Package dedup remembers recently delivered provider message ids so a
// redelivery inside the window is dropped instead of routed twice.
package dedup

import (
	"context"
	"fmt"
	"time"

	apperrors "commrouter/internal/errors"
	"commrouter/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Window claims message ids for a bounded period
type Window interface {
	// Claim returns false when messageID was already claimed inside the window.
	Claim(ctx context.Context, messageID string) (bool, error)
	// Release drops a claim after processing failed so a redelivery is retried.
	Release(ctx context.Context, messageID string) error
}

// MessageClaimer is the storage side of the SQL window
type MessageClaimer interface {
	ClaimMessage(ctx context.Context, messageID string, window time.Duration) (bool, error)
	ReleaseMessage(ctx context.Context, messageID string) error
}

// SQLWindow keeps claims in the processed_messages table
type SQLWindow struct {
	store  MessageClaimer
	window time.Duration
}

func NewSQLWindow(store MessageClaimer, window time.Duration) *SQLWindow {
	return &SQLWindow{store: store, window: window}
}

func (w *SQLWindow) Claim(ctx context.Context, messageID string) (bool, error) {
	return w.store.ClaimMessage(ctx, messageID, w.window)
}

func (w *SQLWindow) Release(ctx context.Context, messageID string) error {
	return w.store.ReleaseMessage(ctx, messageID)
}

// redisClient is the subset of *redis.Client the window needs
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisWindow keeps claims as expiring keys so several instances share one window
type RedisWindow struct {
	client redisClient
	prefix string
	window time.Duration
}

func NewRedisWindow(client redisClient, prefix string, window time.Duration) *RedisWindow {
	if prefix == "" {
		prefix = "commrouter:msg:"
	}
	return &RedisWindow{client: client, prefix: prefix, window: window}
}

func (w *RedisWindow) Claim(ctx context.Context, messageID string) (bool, error) {
	ok, err := w.client.SetNX(ctx, w.prefix+messageID, time.Now().UnixMilli(), w.window).Result()
	if err != nil {
		return false, apperrors.NewTransientStorageError("claim message", err)
	}
	return ok, nil
}

func (w *RedisWindow) Release(ctx context.Context, messageID string) error {
	if err := w.client.Del(ctx, w.prefix+messageID).Err(); err != nil {
		return apperrors.NewTransientStorageError("release message", err)
	}
	return nil
}

// New builds the configured window. The returned close function releases the
// Redis connection and is a no-op for the SQL window.
func New(ctx context.Context, cfg models.DedupConfig, store MessageClaimer, window time.Duration, logger *logrus.Logger) (Window, func() error, error) {
	switch cfg.Backend {
	case "", models.DedupSQLite:
		return NewSQLWindow(store, window), func() error { return nil }, nil
	case models.DedupRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.WithField("addr", cfg.RedisAddr).Info("Duplicate window backed by Redis")
		return NewRedisWindow(client, cfg.KeyPrefix, window), client.Close, nil
	default:
		return nil, nil, apperrors.NewConfigError("dedup.backend", fmt.Sprintf("unsupported backend %q", cfg.Backend))
	}
}
