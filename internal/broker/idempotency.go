package broker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const guardKeyPrefix = "events:processed:"

// RedisGuard implements the opt-in duplicate check with a SETNX claim per
// event id. A claim expires after the TTL, so the guard suppresses broker
// redeliveries, not business-level repeats beyond that window.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	return g.client.SetNX(ctx, guardKeyPrefix+eventID, 1, g.ttl).Result()
}

func (g *RedisGuard) Release(ctx context.Context, eventID string) error {
	return g.client.Del(ctx, guardKeyPrefix+eventID).Err()
}
