package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rollcall/internal/ceremony/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

const keyPrefix = "rollcall:ceremony:"

// RedisStore shares ceremonies between instances. Redis expiry enforces the
// TTL and GETDEL makes Take single-use.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(kind models.Kind, id domain.CeremonyID) string {
	return keyPrefix + string(kind) + ":" + id.String()
}

func (s *RedisStore) Put(ctx context.Context, c *models.Ceremony, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal ceremony: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(c.Kind, c.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store ceremony: %w", err)
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, kind models.Kind, id domain.CeremonyID) (*models.Ceremony, error) {
	payload, err := s.client.GetDel(ctx, redisKey(kind, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("take ceremony: %w", err)
	}
	var c models.Ceremony
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("decode ceremony: %w", err)
	}
	return &c, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
