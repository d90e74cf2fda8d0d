package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/cms-timetable/pkg/config"
)

const pingTimeout = 3 * time.Second

// Addr returns the host:port of cfg.
func Addr(cfg config.RedisConfig) string {
	return cfg.Host + ":" + strconv.Itoa(cfg.Port)
}

// NewRedis connects to Redis and verifies the connection with a ping. Callers
// treat an error as "run uncached".
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         Addr(cfg),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  pingTimeout,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", Addr(cfg), err)
	}
	return client, nil
}
