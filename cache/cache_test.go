package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type meta struct {
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

func TestProviders_RoundTrip(t *testing.T) {
	ctx := context.Background()

	for _, typ := range []string{"memory", "lru"} {
		t.Run(typ, func(t *testing.T) {
			p, err := New(ctx, Config{Type: typ})
			require.NoError(t, err)
			defer p.Close()

			assert.Equal(t, typ, p.Name())

			key := ObjectMeta.Build("local", "uploads/a.png")
			require.NoError(t, p.Set(ctx, key, meta{Size: 42, ContentType: "image/png"}, time.Minute))

			var got meta
			require.NoError(t, p.Get(ctx, key, &got))
			assert.Equal(t, meta{Size: 42, ContentType: "image/png"}, got)

			exists, err := p.Exists(ctx, key)
			require.NoError(t, err)
			assert.True(t, exists)

			require.NoError(t, p.Delete(ctx, key))
			err = p.Get(ctx, key, &got)
			assert.True(t, IsCacheMiss(err))
		})
	}
}

func TestNew_Unsupported(t *testing.T) {
	_, err := New(context.Background(), Config{Type: "memcached"})
	assert.Error(t, err)
}

func TestNew_RedisUnreachable(t *testing.T) {
	_, err := New(context.Background(), Config{Type: "redis", RedisAddress: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	p, err := New(context.Background(), Config{Type: "none"})
	require.NoError(t, err)

	require.NoError(t, p.Set(context.Background(), "k", "v", time.Minute))
	var v string
	assert.True(t, IsCacheMiss(p.Get(context.Background(), "k", &v)))
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, Config{Type: "lru"})
	require.NoError(t, err)

	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"local", "aws-s3"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Remember(ctx, p, ProviderHealth.Build("all"), time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, []string{"local", "aws-s3"}, got)
	}
	assert.Equal(t, 1, calls)

	// ttl 为 0 时不缓存
	_, err = Remember(ctx, p, ProviderHealth.Build("nocache"), 0, load)
	require.NoError(t, err)
	_, err = Remember(ctx, p, ProviderHealth.Build("nocache"), 0, load)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRemember_LoadErrorNotCached(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, Config{Type: "memory"})
	require.NoError(t, err)
	defer p.Close()

	boom := errors.New("backend down")
	_, err = Remember(ctx, p, "k", time.Minute, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	exists, err := p.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRememberWhen_SkipsStoreWhenNotCacheable(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, Config{Type: "lru"})
	require.NoError(t, err)
	defer p.Close()

	calls := 0
	load := func(context.Context) (string, bool, error) {
		calls++
		return "from-fallback", false, nil
	}

	for i := 0; i < 2; i++ {
		got, err := RememberWhen(ctx, p, "k", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, "from-fallback", got)
	}
	assert.Equal(t, 2, calls)

	exists, err := p.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAddJitter(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := addJitter(time.Minute)
		assert.GreaterOrEqual(t, d, time.Minute)
		assert.Less(t, d, time.Minute+6*time.Second)
	}
	assert.Equal(t, time.Duration(5), addJitter(5))
}
