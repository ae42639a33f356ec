package db

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Pool is nil when DATABASE_URL is unset or unreachable; callers fall back
// to the other rate sources.
var Pool *pgxpool.Pool

var (
	newPool  = pgxpool.New
	pingPool = func(ctx context.Context, pool *pgxpool.Pool) error {
		return pool.Ping(ctx)
	}
)

func InitPostgres(ctx context.Context, logger *zap.Logger) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Info("DATABASE_URL not set, skipping Postgres rate source")
		return
	}

	pool, err := newPool(ctx, dsn)
	if err != nil {
		logger.Warn("failed to create Postgres pool", zap.Error(err))
		return
	}
	if err := pingPool(ctx, pool); err != nil {
		logger.Warn("failed to connect to Postgres", zap.Error(err))
		pool.Close()
		return
	}
	Pool = pool
	logger.Info("Connected to Postgres")
}
