package cache

import (
	"context"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client stays nil when Redis is unreachable; live snapshots are then only
// served in-process.
var Client *redis.Client

var (
	newRedisClient = func(opts *redis.Options) *redis.Client {
		return redis.NewClient(opts)
	}
	pingRedis = func(ctx context.Context, client *redis.Client) error {
		return client.Ping(ctx).Err()
	}
	parseRedisURL = redis.ParseURL
)

func InitRedis(ctx context.Context, logger *zap.Logger) {
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		addr = "localhost:6379"
	}

	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := parseRedisURL(addr)
		if err != nil {
			logger.Warn("failed to parse REDIS_URL, snapshot cache disabled", zap.Error(err))
			return
		}
		opts = parsed
	}

	client := newRedisClient(opts)
	if err := pingRedis(ctx, client); err != nil {
		logger.Warn("failed to connect to Redis, snapshot cache disabled", zap.String("addr", opts.Addr), zap.Error(err))
		_ = client.Close()
		return
	}
	Client = client
	logger.Info("Connected to Redis", zap.String("addr", opts.Addr))
}
