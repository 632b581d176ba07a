package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Versioned {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVersioned(client, "links", time.Minute)
}

func TestFetchJSONCachesUntilBump(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return []int64{int64(calls)}, nil
	}

	key, err := c.Key(ctx, "shop", "1")
	require.NoError(t, err)
	require.Equal(t, "links:shop:1:v1", key)

	var got []int64
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, []int64{1}, got)
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, 1, calls)

	require.NoError(t, c.Bump(ctx))
	key, err = c.Key(ctx, "shop", "1")
	require.NoError(t, err)
	require.Equal(t, "links:shop:1:v2", key)
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, []int64{2}, got)
	require.Equal(t, 2, calls)
}

func TestNilClientLoadsDirectly(t *testing.T) {
	c := NewVersioned(nil, "links", time.Minute)
	ctx := context.Background()
	key, err := c.Key(ctx, "depot", "9")
	require.NoError(t, err)
	require.Equal(t, "links:depot:9", key)

	var got []int64
	require.NoError(t, c.FetchJSON(ctx, key, &got, func(context.Context) (any, error) {
		return []int64{4, 5}, nil
	}))
	require.Equal(t, []int64{4, 5}, got)
	require.NoError(t, c.Bump(ctx))
}
