// README: Redis client for session snapshots and their pub/sub channel.
package infra

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedis connects using rawURL when set, otherwise addr, and pings the
// server before returning.
func NewRedis(ctx context.Context, rawURL, addr string) (*redis.Client, error) {
	opt := &redis.Options{Addr: addr}
	if rawURL != "" {
		parsed, err := redis.ParseURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opt = parsed
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
