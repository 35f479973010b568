package querycache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_GetSet(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := NewRedisStore(client, "", 0)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "diff:2024-01-01:2024-01-02:all", []byte(`[1]`)))
	assert.True(t, mr.Exists(DefaultRedisPrefix+"diff:2024-01-01:2024-01-02:all"))

	got, ok, err := s.Get(ctx, "diff:2024-01-01:2024-01-02:all")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[1]`, string(got))
}

func TestRedisStore_TTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := NewRedisStore(client, "t:", time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	mr.FastForward(2 * time.Minute)

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_FlushOnlyPrefix(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := NewRedisStore(client, "t:", 0)
	ctx := context.Background()

	for i := 0; i < flushBatch+5; i++ {
		require.NoError(t, s.Set(ctx, fmt.Sprintf("k%d", i), []byte("v")))
	}
	require.NoError(t, mr.Set("other:key", "keep"))

	require.NoError(t, s.Flush(ctx))

	assert.Equal(t, []string{"other:key"}, mr.Keys())
}

func TestRedisStore_GetError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	s := NewRedisStore(client, "", 0)
	mr.Close()

	_, _, err = s.Get(context.Background(), "k")
	require.Error(t, err)
}

func TestCache_WithRedisStore(t *testing.T) {
	_, client := setupTestRedis(t)
	log, _ := test.NewNullLogger()
	c := New(NewRedisStore(client, "", 0), log)
	ctx := context.Background()

	var calls int
	compute := func(context.Context) (map[string]int, error) {
		calls++
		return map[string]int{"X001": 60}, nil
	}

	_, err := GetOrCompute(ctx, c, NewKey(KindRange, "a"), compute)
	require.NoError(t, err)
	got, err := GetOrCompute(ctx, c, NewKey(KindRange, "a"), compute)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 60, got["X001"])

	require.NoError(t, c.Flush(ctx))
	_, err = GetOrCompute(ctx, c, NewKey(KindRange, "a"), compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCache_RedisFlushDropsEveryEntry(t *testing.T) {
	_, client := setupTestRedis(t)
	log, _ := test.NewNullLogger()
	c := New(NewRedisStore(client, "t:", 0), log)
	ctx := context.Background()

	n := flushBatch + 5
	for i := 0; i < n; i++ {
		_, err := GetOrCompute(ctx, c, NewKey("test", fmt.Sprint(i)), func(context.Context) (int, error) {
			return i, nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, c.Flush(ctx))

	recomputed := 0
	for i := 0; i < n; i++ {
		_, err := GetOrCompute(ctx, c, NewKey("test", fmt.Sprint(i)), func(context.Context) (int, error) {
			recomputed++
			return -1, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, n, recomputed)
}
