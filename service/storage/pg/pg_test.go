package pg

import (
	"context"
	"testing"

	"PNotify/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_ConfigErrors(t *testing.T) {
	_, err := Connect(context.Background(), Config{})
	require.Error(t, err)
	assert.Equal(t, errs.ConfigError, errs.Code(err))

	_, err = Connect(context.Background(), Config{DSN: "postgres://%zz"})
	require.Error(t, err)
	assert.Equal(t, errs.ConfigError, errs.Code(err))
}

func TestConnect_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Connect(ctx, Config{DSN: "postgres://u:p@127.0.0.1:1/db?connect_timeout=1", RetryAttempts: 5})
	require.Error(t, err)
}
