package rediscache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusebox/fusebox/pkg/cache/rediscache"
)

// newTestStore connects to the Redis instance named by FUSEBOX_TEST_REDIS
// and skips the test when none is configured.
func newTestStore(t *testing.T) *rediscache.Store {
	t.Helper()

	addr := os.Getenv("FUSEBOX_TEST_REDIS")
	if addr == "" {
		t.Skip("FUSEBOX_TEST_REDIS not set")
	}

	store, err := rediscache.New(context.Background(), rediscache.Config{
		Addr:      addr,
		KeyPrefix: "fusebox-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = store.DeleteByPattern(context.Background(), "*")
		_ = store.Close()
	})
	return store
}

func TestStore_SetGetRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "user:1", []byte(`{"id":1}`), time.Minute))

	value, found, err := store.Get(ctx, "user:1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte(`{"id":1}`), value)
}

func TestStore_MissingKey(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "user:1", []byte("v"), time.Minute))

	existed, err := store.Delete(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestStore_DeleteByPattern(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "user:1", []byte("a"), time.Minute))
	require.NoError(t, store.Set(ctx, "user:2", []byte("b"), time.Minute))
	require.NoError(t, store.Set(ctx, "order:9", []byte("c"), time.Minute))

	n, err := store.DeleteByPattern(ctx, "user:*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, found, err := store.Get(ctx, "order:9")
	require.NoError(t, err)
	assert.True(t, found)
}
