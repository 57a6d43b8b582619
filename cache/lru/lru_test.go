package lru

import (
	"context"
	"testing"
	"time"

	"github.com/anoixa/menu-storage/cache/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_Expiry(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "short", 1, time.Second))
	require.NoError(t, c.Set(ctx, "forever", 2, 0))

	now = now.Add(2 * time.Second)

	var v int
	assert.True(t, types.IsCacheMiss(c.Get(ctx, "short", &v)))
	require.NoError(t, c.Get(ctx, "forever", &v))
	assert.Equal(t, 2, v)
}

func TestLRU_Eviction(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, c.Set(ctx, "b", 2, time.Minute))
	require.NoError(t, c.Set(ctx, "c", 3, time.Minute))

	exists, err := c.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 2, c.Len())
}
