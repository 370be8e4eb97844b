package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerSecond(t *testing.T) {
	assert.Equal(t, Limit{Rate: 5, Period: time.Second, Burst: 10}, PerSecond(5, 10))
	assert.Equal(t, 5, PerSecond(5, 0).Burst)
	assert.True(t, PerSecond(0, 10).IsZero())
	assert.False(t, PerSecond(1, 1).IsZero())
}

func TestZeroLimitSkipsRedis(t *testing.T) {
	// 未连接的客户端：零规则不应触达 Redis
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer rdb.Close()

	l := NewRedisRateLimiter(rdb, "")
	assert.Equal(t, DefaultPrefix, l.prefix)

	res, err := l.Allow(context.Background(), "api:10.0.0.1", Limit{})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
