package cache

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/anoixa/menu-storage/cache/lru"
	"github.com/anoixa/menu-storage/cache/memory"
	"github.com/anoixa/menu-storage/cache/redis"
	"github.com/anoixa/menu-storage/cache/types"
)

// Provider 缓存提供者接口 - 依赖倒置的核心抽象
type Provider = types.Cache

// ErrCacheMiss 缓存未命中错误
var ErrCacheMiss = types.ErrCacheMiss

// IsCacheMiss 判断是否为缓存未命中错误
func IsCacheMiss(err error) bool {
	return types.IsCacheMiss(err)
}

// Config 缓存配置
type Config struct {
	Type string // memory, lru, redis, none

	MaxCost int64 // memory
	Size    int   // lru

	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// New 按类型创建缓存提供者，空类型使用 memory
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "memory":
		mc := memory.DefaultConfig()
		if cfg.MaxCost > 0 {
			mc.MaxCost = cfg.MaxCost
		}
		return memory.NewMemory(mc)
	case "lru":
		return lru.New(cfg.Size)
	case "redis":
		return redis.NewRedis(ctx, redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case "none", "off", "disabled":
		return Nop{}, nil
	}
	return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
}

// Nop 不缓存任何内容
type Nop struct{}

func (Nop) Set(context.Context, string, interface{}, time.Duration) error { return nil }
func (Nop) Get(context.Context, string, interface{}) error { return ErrCacheMiss }
func (Nop) Delete(context.Context, string) error { return nil }
func (Nop) Exists(context.Context, string) (bool, error) { return false, nil }
func (Nop) Close() error { return nil }
func (Nop) Name() string { return "none" }

// addJitter 添加随机抖动（+0~10%），防止缓存同时失效
func addJitter(duration time.Duration) time.Duration {
	if duration < 10 {
		return duration
	}
	jitter := time.Duration(rand.Int63n(int64(duration) / 10))
	return duration + jitter
}

// Remember 读取缓存，未命中时调用 load 并写回
// 缓存读写失败只影响性能，不影响结果；ttl <= 0 时直接调用 load
func Remember[T any](ctx context.Context, p Provider, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	return RememberWhen(ctx, p, key, ttl, func(ctx context.Context) (T, bool, error) {
		v, err := load(ctx)
		return v, true, err
	})
}

// RememberWhen 同 Remember，load 返回 false 时结果不写回缓存
func RememberWhen[T any](ctx context.Context, p Provider, key string, ttl time.Duration, load func(context.Context) (T, bool, error)) (T, error) {
	if p == nil || ttl <= 0 {
		v, _, err := load(ctx)
		return v, err
	}

	var cached T
	if err := p.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	value, store, err := load(ctx)
	if err != nil || !store {
		return value, err
	}
	_ = p.Set(ctx, key, value, addJitter(ttl))
	return value, nil
}
