package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBackend_KeyLayout(t *testing.T) {
	b, mr := newRedisForTest(t)
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, []string{"https://a.b/1.html", "https://a.b/2.html"}))
	require.NoError(t, b.IncrementVisit(ctx, "a.b"))

	list, err := mr.List("test:urls")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.b/1.html", "https://a.b/2.html"}, list)
	assert.Equal(t, "1", mr.HGet("test:counts", "a.b"))
}

func TestRedisBackend_PrefixIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	first, err := NewRedisBackend(ctx, RedisOptions{Addr: mr.Addr(), KeyPrefix: "one:"})
	require.NoError(t, err)
	defer first.Close()
	second, err := NewRedisBackend(ctx, RedisOptions{Addr: mr.Addr(), KeyPrefix: "two:"})
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, first.Enqueue(ctx, []string{"https://a.b/"}))

	n, err := second.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisBackend_DefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	b, err := NewRedisBackend(ctx, RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.IncrementVisit(ctx, "a.b"))
	assert.True(t, mr.Exists(DefaultKeyPrefix+"counts"))
}

func TestRedisBackend_Reset(t *testing.T) {
	b, mr := newRedisForTest(t)
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, []string{"https://a.b/"}))
	require.NoError(t, b.SetMeta(ctx, "run_id", "x"))
	require.NoError(t, b.Reset(ctx))

	assert.False(t, mr.Exists("test:urls"))
	assert.False(t, mr.Exists("test:meta"))
}

func TestRedisBackend_ServerDown(t *testing.T) {
	b, mr := newRedisForTest(t)
	ctx := context.Background()
	mr.Close()

	_, err := b.FetchBatch(ctx, 10)
	assert.Error(t, err)
	assert.Error(t, b.Enqueue(ctx, []string{"https://a.b/"}))
	_, err = b.VisitCount(ctx, "a.b")
	assert.Error(t, err)
}

func TestNewRedisBackend_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisBackend(context.Background(), RedisOptions{Addr: addr})
	assert.Error(t, err)
}

func TestRedisBackend_WrongType(t *testing.T) {
	b, mr := newRedisForTest(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("test:urls", "not a list"))

	_, err := b.FetchBatch(ctx, 1)
	assert.Error(t, err)
}
