package sessionRepo

import (
	"context"
	"fmt"

	"flexify/models"

	"github.com/go-redis/redis/v8"
)

// RedisSessionStorage keeps the session under a per-profile namespace so
// several client profiles can share one Redis database.
type RedisSessionStorage struct {
	client    *redis.Client
	namespace string
}

// NewRedisSessionStorage creates a Redis backed SessionStorage.
func NewRedisSessionStorage(client *redis.Client, namespace string) SessionStorage {
	if namespace == "" {
		namespace = "default"
	}
	return &RedisSessionStorage{client: client, namespace: namespace}
}

func (r *RedisSessionStorage) key(k string) string {
	return "session:" + r.namespace + ":" + k
}

func (r *RedisSessionStorage) keys() []string {
	out := make([]string, len(Keys))
	for i, k := range Keys {
		out[i] = r.key(k)
	}
	return out
}

func (r *RedisSessionStorage) Load(ctx context.Context) (models.PersistedSession, error) {
	vals, err := r.client.MGet(ctx, r.keys()...).Result()
	if err != nil {
		return models.PersistedSession{}, fmt.Errorf("failed to load session: %w", err)
	}
	str := func(i int) string {
		if i >= len(vals) || vals[i] == nil {
			return ""
		}
		s, _ := vals[i].(string)
		return s
	}
	return models.PersistedSession{
		Token:        str(0),
		RefreshToken: str(1),
		User:         str(2),
		Role:         str(3),
	}, nil
}

func (r *RedisSessionStorage) Save(ctx context.Context, s models.PersistedSession) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(KeyToken), s.Token, 0)
		pipe.Set(ctx, r.key(KeyRefreshToken), s.RefreshToken, 0)
		pipe.Set(ctx, r.key(KeyUser), s.User, 0)
		pipe.Set(ctx, r.key(KeyRole), s.Role, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *RedisSessionStorage) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.keys()...).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
