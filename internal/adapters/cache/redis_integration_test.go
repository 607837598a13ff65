//go:build integration

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startRedis(t *testing.T) *RedisCache {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	addr, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := Connect(ctx, addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client)
}

func TestIncrWithTTL(t *testing.T) {
	c := startRedis(t)
	ctx := context.Background()

	t.Run("counts within the window and expires", func(t *testing.T) {
		key := "directory:lookup:window"
		for i := int64(1); i <= 3; i++ {
			n, err := c.IncrWithTTL(ctx, key, time.Second)
			require.NoError(t, err)
			assert.Equal(t, i, n)
		}
		ttl, err := c.client.PTTL(ctx, key).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Second)

		require.Eventually(t, func() bool {
			n, err := c.IncrWithTTL(ctx, key, time.Second)
			return err == nil && n == 1
		}, 5*time.Second, 200*time.Millisecond)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		key := "directory:lookup:concurrent"
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := c.IncrWithTTL(ctx, key, time.Minute)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		n, err := c.client.Get(ctx, key).Int64()
		require.NoError(t, err)
		assert.Equal(t, int64(50), n)
	})
}
