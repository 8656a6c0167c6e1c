package mgo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"PNotify/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultMaxPoolSize = 100
	defaultMaxRetry    = 3
)

// Config 优先使用 URI，其次使用地址列表
type Config struct {
	URI         string
	Address     []string
	Database    string
	Username    string
	Password    string
	AuthSource  string
	MaxPoolSize int
	MaxRetry    int
}

func (c *Config) validate() error {
	if c.URI == "" && len(c.Address) == 0 {
		return errs.ErrConfig.WrapMsg("mongo uri or address is required")
	}
	if c.Database == "" {
		return errs.ErrConfig.WrapMsg("mongo database is required")
	}
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = defaultMaxPoolSize
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = defaultMaxRetry
	}
	if c.URI == "" {
		authSource := c.AuthSource
		if authSource == "" {
			authSource = c.Database
		}
		c.URI = buildURI(c, authSource)
	}
	return nil
}

func buildURI(c *Config, authSource string) string {
	credentials := ""
	if c.Username != "" && c.Password != "" {
		credentials = c.Username + ":" + c.Password + "@"
	}
	return fmt.Sprintf("mongodb://%s%s/%s?authSource=%s&maxPoolSize=%d",
		credentials, strings.Join(c.Address, ","), c.Database, authSource, c.MaxPoolSize)
}

func clientOptions(c *Config) *options.ClientOptions {
	opts := options.Client().ApplyURI(c.URI).SetMaxPoolSize(uint64(c.MaxPoolSize))
	// 单独给出的账号覆盖 URI 中的认证
	if c.Username != "" {
		opts.SetAuth(options.Credential{
			Username:   c.Username,
			Password:   c.Password,
			AuthSource: c.AuthSource,
		})
	}
	return opts
}

// shouldRetry is false for auth failures (codes 13 and 18) and a done ctx.
func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code != 13 && cmdErr.Code != 18
	}
	return true
}

// Connect dials and pings, retrying transient failures.
func Connect(ctx context.Context, cfg Config) (*mongo.Database, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	opts := clientOptions(&cfg)

	var lastErr error
	for i := 0; i < cfg.MaxRetry; i++ {
		cli, err := mongo.Connect(ctx, opts)
		if err == nil {
			if err = cli.Ping(ctx, nil); err == nil {
				return cli.Database(cfg.Database), nil
			}
			_ = cli.Disconnect(context.Background())
		}
		lastErr = err
		if !shouldRetry(ctx, err) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errs.WrapMsg(ctx.Err(), "mongo not ready")
		case <-time.After(time.Second / 2):
		}
	}
	return nil, errs.WrapMsg(lastErr, "mongo not ready", "database", cfg.Database)
}

// Healthcheck pings the database's client, for the health endpoint.
func Healthcheck(db *mongo.Database) func(context.Context) error {
	return func(ctx context.Context) error {
		return db.Client().Ping(ctx, nil)
	}
}
