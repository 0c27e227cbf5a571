package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/software-marketplace/internal/config"
)

func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	t.Cleanup(func() { mr.Close() })

	cfg := config.RedisConnection{
		AddressRedis: mr.Addr(),
	}

	r, err := NewRedis(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestRedis_SetAndGet(t *testing.T) {
	r, _ := setupTestRedis(t)
	ctx := context.Background()

	expected := testStruct{Name: "Alice", Age: 30}
	require.NoError(t, r.Set(ctx, "User_1", expected, time.Minute))

	var actual testStruct
	found, err := r.Get(ctx, "User_1", &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected, actual)
}

func TestRedis_GetNotFound(t *testing.T) {
	r, _ := setupTestRedis(t)

	var out testStruct
	found, err := r.Get(context.Background(), "no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedis_Expiration(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "User_1", testStruct{Name: "Bob"}, time.Hour))
	assert.Equal(t, time.Hour, mr.TTL("User_1"))

	mr.FastForward(time.Hour)

	var out testStruct
	found, err := r.Get(ctx, "User_1", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedis_Delete(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, r.Set(ctx, "b", 2, time.Minute))
	require.NoError(t, r.Delete(ctx, "a", "b", "missing"))
	require.NoError(t, r.Delete(ctx))

	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
}

func TestRedis_ConnectionRefused(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedis(context.Background(), config.RedisConnection{AddressRedis: addr, DialTimeout: 200 * time.Millisecond})
	assert.Error(t, err)
}

func TestCache_OverRedis(t *testing.T) {
	r, mr := setupTestRedis(t)
	c := New(r, time.Hour, newNoopLogger(), nil)
	ctx := context.Background()
	var calls atomic.Int32

	_, err := GetOrSet(ctx, c, UserKey("u1"), countingPopulate(&calls, &testStruct{Name: "Alice"}))
	require.NoError(t, err)
	_, err = GetOrSet(ctx, c, UserSequenceKey(7), countingPopulate(&calls, &testStruct{Name: "Alice"}))
	require.NoError(t, err)
	got, err := GetOrSet(ctx, c, UserKey("u1"), countingPopulate(&calls, nil))
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, int32(2), calls.Load())

	require.NoError(t, c.ClearAll(ctx))
	assert.False(t, mr.Exists("User_u1"))
	assert.False(t, mr.Exists("User_7"))
}
