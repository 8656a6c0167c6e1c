package redis

import (
	"context"
	"testing"
	"time"

	"PNotify/tools/errs"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := Connect(context.Background(), Config{URL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	defer rdb.Close()

	require.NoError(t, Healthcheck(rdb)(context.Background()))
}

func TestConnect_BadURL(t *testing.T) {
	_, err := Connect(context.Background(), Config{URL: "://nope"})
	require.Error(t, err)
	assert.Equal(t, errs.ConfigError, errs.Code(err))
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), Config{
		URL:           "redis://" + addr,
		RetryAttempts: 2,
		RetryInterval: time.Millisecond,
	})
	require.Error(t, err)
}
