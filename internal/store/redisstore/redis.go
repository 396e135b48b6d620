// Package redisstore keeps the consumed setup-token IDs in Redis.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "setup-token:used:"

type Ledger struct {
	client *redis.Client
}

// Connect pings the server, retrying a few times while it comes up.
func Connect(ctx context.Context, addr, password string, db int, log *zap.Logger) (*Ledger, error) {
	const maxRetries = 5
	const retryDelay = 2 * time.Second

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = client.Ping(ctx).Err(); err == nil {
			log.Info("connected to Redis", zap.String("addr", addr))
			return &Ledger{client: client}, nil
		}
		log.Warn("failed to connect to Redis",
			zap.Int("attempt", i+1), zap.Int("maxAttempts", maxRetries), zap.Error(err))
		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	_ = client.Close()
	return nil, fmt.Errorf("connect to Redis after %d attempts: %w", maxRetries, err)
}

func New(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

// Consume uses SETNX so only one caller can claim a token ID.
func (l *Ledger) Consume(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, keyPrefix+id, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("consume token %s: %w", id, err)
	}
	return ok, nil
}

func (l *Ledger) Release(ctx context.Context, id string) error {
	if err := l.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("release token %s: %w", id, err)
	}
	return nil
}

func (l *Ledger) Close() error {
	return l.client.Close()
}
