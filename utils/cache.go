// File: utils/cache.go
package utils

import (
	"context"
	"fmt"
	"time"

	"flexify/config"

	"github.com/go-redis/redis/v8"
)

var (
	// CacheClient backs the nearby-search cache.
	CacheClient *redis.Client
	// SessionClient backs persisted session storage.
	SessionClient *redis.Client
)

func newRedisClient(db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis db %d: %w", db, err)
	}
	return client, nil
}

// RedisEnabled reports whether a Redis address is configured.
func RedisEnabled() bool {
	return config.AppConfig.RedisAddr != ""
}

// GetCacheClient returns the search cache client, connecting on first use.
func GetCacheClient() (*redis.Client, error) {
	if CacheClient == nil {
		client, err := newRedisClient(config.AppConfig.RedisCacheDB)
		if err != nil {
			return nil, err
		}
		CacheClient = client
	}
	return CacheClient, nil
}

// GetSessionClient returns the session storage client, connecting on first use.
func GetSessionClient() (*redis.Client, error) {
	if SessionClient == nil {
		client, err := newRedisClient(config.AppConfig.RedisSessionDB)
		if err != nil {
			return nil, err
		}
		SessionClient = client
	}
	return SessionClient, nil
}
