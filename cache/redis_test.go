package cache

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/saga/config"
)

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	c, err := NewRedisCache(config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	require.False(t, c.Enabled())

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, SagaInstanceKey("i-1"), map[string]string{"id": "i-1"}))

	var out map[string]string
	require.ErrorIs(t, c.Get(ctx, SagaInstanceKey("i-1"), &out), ErrMiss)
	require.NoError(t, c.Delete(ctx, SagaInstanceKey("i-1")))
	require.NoError(t, c.Close())
}

func TestNilCacheIsDisabled(t *testing.T) {
	var c *RedisCache
	require.False(t, c.Enabled())
	require.ErrorIs(t, c.Get(context.Background(), "k", &struct{}{}), ErrMiss)
}

func TestCloseReleasesClient(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	c := &RedisCache{client: client, enabled: true}

	require.NoError(t, c.Close())
	require.Error(t, client.Ping(context.Background()).Err())
}

func TestKeys(t *testing.T) {
	require.Equal(t, "saga_instance:abc", SagaInstanceKey("abc"))
	require.Equal(t, "saga_step:abc", SagaStepKey("abc"))
}
