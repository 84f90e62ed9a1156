package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	ctx := context.Background()

	t.Run("connects", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := DefaultConfig()
		cfg.RedisURL = "redis://" + mr.Addr()

		client, err := NewRedisClient(ctx, cfg)
		require.NoError(t, err)
		defer client.Close()

		assert.NoError(t, client.Ping(ctx).Err())
	})

	t.Run("invalid URL", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RedisURL = "invalid://url"
		_, err := NewRedisClient(ctx, cfg)
		assert.Error(t, err)
	})

	t.Run("connection failure", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RedisURL = "redis://localhost:1"
		cfg.RedisMaxRetries = 1
		_, err := NewRedisClient(ctx, cfg)
		assert.Error(t, err)
	})
}
