package pg

import (
	"context"
	"time"

	"PNotify/tools/errs"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	DSN           string
	MaxConns      int32
	MinConns      int32
	RetryAttempts int
	RetryInterval time.Duration
}

// Connect opens a pool and pings it, retrying with a linearly growing wait.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, errs.ErrConfig.WrapMsg("empty postgres dsn")
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.ErrConfig.WrapMsg("parse postgres dsn", "err", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Second
	}

	var lastErr error
	for i := range cfg.RetryAttempts {
		pool, err := pgxpool.NewWithConfig(ctx, pc)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, errs.WrapMsg(ctx.Err(), "postgres not ready")
		case <-time.After(time.Duration(i+1) * cfg.RetryInterval):
		}
	}
	return nil, errs.WrapMsg(lastErr, "postgres not ready", "attempts", cfg.RetryAttempts)
}

// Healthcheck pings the pool, for the health endpoint.
func Healthcheck(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}
