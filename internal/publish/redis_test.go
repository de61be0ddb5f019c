package publish

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	return mr, client
}

func TestRedisSinkPublish(t *testing.T) {
	mr, client := setupTestRedis(t)
	sink := NewRedisSink(client, "seat:status", 0, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, sink.Publish(ctx, sampleResult(1)))
	require.NoError(t, sink.Publish(ctx, sampleResult(2)))

	msgs, err := client.XRange(ctx, "seat:status", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	first := msgs[0].Values
	assert.Equal(t, "s-1", first["session_id"])
	assert.Equal(t, "1", first["frame_number"])
	assert.Equal(t, "09:30:05", first["timestamp"])

	var codes map[string]int
	require.NoError(t, json.Unmarshal([]byte(first["status_codes"].(string)), &codes))
	assert.Equal(t, map[string]int{"T1": 1, "T2": 2, "T3": 3}, codes)

	assert.Equal(t, "2", mr.HGet("seat:status:seats", "T2"))
	require.NoError(t, sink.Close())
}

func TestRedisSinkReportsFailure(t *testing.T) {
	mr, client := setupTestRedis(t)
	sink := NewRedisSink(client, "seat:status", 0, nil)
	mr.Close()

	err := sink.Publish(context.Background(), sampleResult(1))
	assert.Error(t, err)
}

func TestNewRedisClientUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), RedisOptions{Addr: addr})
	assert.Error(t, err)
}
