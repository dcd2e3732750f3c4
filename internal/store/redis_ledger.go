package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/models"
	"github.com/redis/go-redis/v9"
)

const redisLedgerPrefix = "refresh:"

// RedisLedger is a TokenLedger backed by Redis. Entries expire with the
// refresh lifetime, so dead sessions also disappear without a cleanup pass.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, ttl: ttl}
}

func (l *RedisLedger) Store(ctx context.Context, token string, userID uint) error {
	key := redisLedgerPrefix + hashToken(token)
	ok, err := l.client.SetNX(ctx, key, strconv.FormatUint(uint64(userID), 10), l.ttl).Result()
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	if !ok {
		return errors.New("store refresh token: token already present")
	}
	return nil
}

func (l *RedisLedger) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	hash := hashToken(token)
	val, err := l.client.Get(ctx, redisLedgerPrefix+hash).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	userID, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("find refresh token: corrupt entry: %w", err)
	}
	return &models.RefreshToken{UserID: uint(userID), TokenHash: hash}, nil
}

func (l *RedisLedger) Delete(ctx context.Context, token string) (int64, error) {
	n, err := l.client.Del(ctx, redisLedgerPrefix+hashToken(token)).Result()
	if err != nil {
		return 0, fmt.Errorf("delete refresh token: %w", err)
	}
	return n, nil
}
