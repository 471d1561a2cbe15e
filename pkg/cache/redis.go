package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/timesheet-api/pkg/config"
)

// Addrs resolves the Redis endpoints. REDIS_ADDRS wins over host and port; several
// addresses select a cluster client.
func Addrs(cfg config.RedisConfig) []string {
	if len(cfg.Addrs) > 0 {
		return cfg.Addrs
	}
	return []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)}
}

// NewRedis returns a connected client. Callers treat a failure as "run without cache".
func NewRedis(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	addrs := Addrs(cfg)
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        addrs,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", strings.Join(addrs, ","), err)
	}

	return client, nil
}
