package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/software-marketplace/internal/lib/clock"
)

func TestMemory_SetGetDelete(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", testStruct{Name: "Alice", Age: 30}, time.Minute))

	var out testStruct
	found, err := m.Get(ctx, "k", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, testStruct{Name: "Alice", Age: 30}, out)

	require.NoError(t, m.Delete(ctx, "k"))
	found, err = m.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_Sweep(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	m := NewMemory(clk)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "short", 1, time.Minute))
	require.NoError(t, m.Set(ctx, "long", 2, time.Hour))

	clk.Advance(2 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())

	var v int
	found, err := m.Get(ctx, "long", &v)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, v)
}

func TestMemory_ExpiredEntryIsEvictedOnRead(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	m := NewMemory(clk)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", time.Second))
	clk.Advance(time.Second)

	var v string
	found, err := m.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_DecodeError(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k", "not a struct", time.Minute))

	var out testStruct
	_, err := m.Get(ctx, "k", &out)
	assert.Error(t, err)
}
