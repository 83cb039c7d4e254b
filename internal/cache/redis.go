package cache

import (
	"context"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"moff.io/frame-bridge/internal/config"
	"moff.io/frame-bridge/pkg/errors"
	"strconv"
)

type Redis struct {
	client  *redis.Client
	limiter *redis_rate.Limiter
}

// NewRedis connects to the configured redis and pings it.
func NewRedis(ctx context.Context, cred *config.DBCredential) (*Redis, error) {
	db, _ := strconv.ParseInt(cred.Database, 10, 64)
	client := redis.NewClient(&redis.Options{
		Addr:     cred.GetRedisAddress(),
		Password: cred.Password,
		DB:       int(db),
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, errors.WrapfAndReport(err, "ping to redis %v", cred.GetRedisAddress())
	}
	return &Redis{client: client, limiter: redis_rate.NewLimiter(client)}, nil
}

// Limiter shares the connection for http rate limiting.
func (r *Redis) Limiter() *redis_rate.Limiter {
	return r.limiter
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.WrapAndReport(err, "get cache")
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return errors.WrapAndReport(err, "set cache")
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return errors.WrapAndReport(err, "delete caches")
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
