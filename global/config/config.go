package config

import (
	"errors"
	"os"

	"PNotify/tools/errs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Load reads the given .env files (default ".env", missing files are
// skipped) and then parses the environment. Real environment variables win
// over .env values.
func Load(envFiles ...string) (*AppConfig, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, errs.ErrConfig.WrapMsg("load env file", "file", f, "err", err)
		}
	}

	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, errs.ErrConfig.WrapMsg("parse env", "err", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c *AppConfig) Validate() error {
	if c.NodeID < 0 || c.NodeID > 1023 {
		return errs.ErrConfig.WrapMsg("NODE_ID out of range", "node_id", c.NodeID)
	}
	if c.Queue.MaxPerIdentity < 0 {
		return errs.ErrConfig.WrapMsg("OFFLINE_QUEUE_MAX must be >= 0")
	}
	if c.Gateway.PingInterval >= c.Gateway.PongWait {
		return errs.ErrConfig.WrapMsg("WS_PING_INTERVAL must be below WS_PONG_WAIT",
			"ping", c.Gateway.PingInterval, "pong", c.Gateway.PongWait)
	}
	// presence is renewed on every keepalive ping
	if c.Session.PresenceTTL <= c.Gateway.PingInterval {
		return errs.ErrConfig.WrapMsg("PRESENCE_TTL must exceed WS_PING_INTERVAL",
			"ttl", c.Session.PresenceTTL, "ping", c.Gateway.PingInterval)
	}
	if c.Gateway.WSPath == "" || c.Gateway.WSPath[0] != '/' {
		return errs.ErrConfig.WrapMsg("WS_PATH must start with /", "path", c.Gateway.WSPath)
	}
	if c.Client.MaxAttempts <= 0 {
		return errs.ErrConfig.WrapMsg("CLIENT_MAX_ATTEMPTS must be > 0")
	}
	return nil
}
