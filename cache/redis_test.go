package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestStoreSetGet(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	store := NewStore(client)

	type payload struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}
	require.NoError(t, store.Set(ctx, "k", payload{Name: "ana", Score: 7}, time.Minute))

	var got payload
	require.NoError(t, store.Get(ctx, "k", &got))
	assert.Equal(t, payload{Name: "ana", Score: 7}, got)

	err := store.Get(ctx, "missing", &got)
	assert.True(t, errors.Is(err, ErrMiss))
}

func TestStoreDeletePattern(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	store := NewStore(client)

	for i := 0; i < 250; i++ {
		require.NoError(t, mr.Set(PublicKey("/api/leaderboard", fmt.Sprintf("limit=%d", i)), "x"))
	}
	require.NoError(t, mr.Set(UserKey("u1", "/api/dashboard", ""), "x"))
	require.NoError(t, mr.Set(UserKey("u2", "/api/dashboard", ""), "x"))

	require.NoError(t, store.InvalidateUser(ctx, "u1"))

	assert.Equal(t, []string{UserKey("u2", "/api/dashboard", "")}, mr.Keys())
}

func TestStoreInvalidateAll(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	store := NewStore(client)

	for i := 0; i < 120; i++ {
		require.NoError(t, mr.Set(UserKey(fmt.Sprintf("u%d", i), "/api/dashboard", ""), "x"))
	}
	require.NoError(t, mr.Set(PublicKey("/api/leaderboard", ""), "x"))
	require.NoError(t, mr.Set("rate_limit:auth:10.0.0.1", "3"))

	require.NoError(t, store.InvalidateAll(ctx))

	assert.Equal(t, []string{"rate_limit:auth:10.0.0.1"}, mr.Keys())
}

func TestStoreIncrementCounter(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	store := NewStore(client)

	for want := int64(1); want <= 3; want++ {
		got, err := store.IncrementCounter(ctx, "rl", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, time.Minute, mr.TTL("rl"))

	mr.FastForward(time.Minute + time.Second)
	got, err := store.IncrementCounter(ctx, "rl", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestStoreCloseNil(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Close())
}
