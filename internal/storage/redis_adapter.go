package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	imageKeyPrefix     = "img:"
	workspaceKeyPrefix = "ws:"
)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) GetImage(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, imageKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisAdapter) SetImage(ctx context.Context, key, dataURI string, ttl time.Duration) error {
	return r.client.Set(ctx, imageKeyPrefix+key, dataURI, ttl).Err()
}

func (r *RedisAdapter) SaveSnapshot(ctx context.Context, sid string, data []byte, ttl time.Duration) error {
	return r.client.Set(ctx, workspaceKeyPrefix+sid, data, ttl).Err()
}

func (r *RedisAdapter) LoadSnapshot(ctx context.Context, sid string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, workspaceKeyPrefix+sid).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisAdapter) DeleteSnapshot(ctx context.Context, sid string) error {
	return r.client.Del(ctx, workspaceKeyPrefix+sid).Err()
}
