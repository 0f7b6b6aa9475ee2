package application

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"thirdcoast.systems/shorts/internal/config"
)

var (
	dbOpenBackoffBase  = 1 * time.Second
	dbOpenBackoffScale = 1.618
)

func dbBackoff(attempt int) time.Duration {
	return time.Duration(float64(dbOpenBackoffBase) * math.Pow(dbOpenBackoffScale, float64(attempt)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// OpenDBPoolWithRetry opens a pgx pool and waits until the database answers a ping.
func OpenDBPoolWithRetry(ctx context.Context, conf config.Config) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(conf.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	attempts := max(conf.DatabaseRetries, 1)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	slog.Info("Connecting to database", "host", cfg.ConnConfig.Host)
	var lastErr error
	for i := range attempts {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		lastErr = pool.Ping(pingCtx)
		cancel()
		if lastErr == nil {
			slog.Info("Connected to database", "host", cfg.ConnConfig.Host)
			return pool, nil
		}

		backoff := dbBackoff(i)
		slog.Warn("Database not ready, retrying", "error", lastErr, "retry_in", backoff)
		if err := sleepCtx(ctx, backoff); err != nil {
			pool.Close()
			return nil, err
		}
	}

	pool.Close()
	return nil, fmt.Errorf("failed to ping database after %d attempts: %w", attempts, lastErr)
}
