package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T) *Client {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		t.Skip("Skipping redisclient tests: REDIS_ADDR not set")
	}

	single := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})
	client := NewClient(single)

	err := client.Ping(context.Background()).Err()
	require.NoError(t, err)

	return client
}

func TestClient_SetGetDel(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	key := "rupiya_sync_test:roundtrip"
	defer client.Del(ctx, key)

	err := client.Set(ctx, key, "value", time.Minute).Err()
	require.NoError(t, err)

	val, err := client.Get(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, "value", val)

	n, err := client.Del(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = client.Get(ctx, key).Result()
	assert.Equal(t, redis.Nil, err)
}

func TestClient_Exists(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	key := "rupiya_sync_test:exists"
	defer client.Del(ctx, key)

	n, err := client.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, client.Set(ctx, key, "x", time.Minute).Err())

	n, err = client.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
