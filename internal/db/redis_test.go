package db

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStorePing(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rs := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer rs.Close()
	assert.NoError(t, rs.Ping(context.Background()))

	mr.Close()
	assert.Error(t, rs.Ping(context.Background()))
}

func TestNilRedisStorePing(t *testing.T) {
	var rs *RedisStore
	assert.ErrorIs(t, rs.Ping(context.Background()), ErrNilRedisStore)
	rs.Close()
}
