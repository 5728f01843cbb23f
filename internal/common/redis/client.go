// Package redis holds the Redis plumbing shared by the board: the connection used for the board
// cache and escalation claims, and the Redis Streams helpers behind the discharge event feed.
package redis

import (
	"context"
	"fmt"

	"wisefido-discharge-board/internal/common/config"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient 创建Redis客户端 (lazy; call Ping to verify the address)
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping 测试Redis连接; the error names the address that failed.
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis at %s: %w", client.Options().Addr, err)
	}
	return nil
}

// Close 关闭Redis连接
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
