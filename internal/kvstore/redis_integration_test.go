//go:build integration
// +build integration

package kvstore

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redisContainer "github.com/testcontainers/testcontainers-go/modules/redis"
)

// setupRedisContainer starts a Redis container that is terminated when the test completes.
func setupRedisContainer(t *testing.T) *redisContainer.RedisContainer {
	ctx := context.Background()

	container, err := redisContainer.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	})
	return container
}

func TestRedisStore_Integration(t *testing.T) {
	ctx := context.Background()
	container := setupRedisContainer(t)

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	s, err := NewRedisStore(ctx, url, "annotator-test:")
	require.NoError(t, err)
	storeContract(t, s)
}

func TestRedisStore_PrefixAndSharedClient(t *testing.T) {
	ctx := context.Background()
	container := setupRedisContainer(t)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: endpoint, DB: 1})
	t.Cleanup(func() { _ = client.Close() })

	a := NewRedisStoreWithClient(client, "a:")
	b := NewRedisStoreWithClient(client, "b:")

	require.NoError(t, a.Save(ctx, KeyScores, []byte("from-a")))
	_, err = b.Load(ctx, KeyScores)
	require.ErrorIs(t, err, ErrNotFound, "prefixes isolate sessions")

	raw, err := client.Get(ctx, "a:"+KeyScores).Result()
	require.NoError(t, err)
	assert.Equal(t, "from-a", raw)

	require.NoError(t, a.Close())
	require.NoError(t, client.Ping(ctx).Err(), "close leaves a shared client open")
}
