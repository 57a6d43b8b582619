package lru

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anoixa/menu-storage/cache/types"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultSize = 1024

type entry struct {
	data      []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// LRU 固定条目数的进程内缓存，单条过期时间在读取时检查
type LRU struct {
	cache *lru.Cache[string, entry]
	now   func() time.Time
}

var _ types.Cache = (*LRU)(nil)

// New 创建 LRU 缓存，size <= 0 时使用 1024
func New(size int) (*LRU, error) {
	if size <= 0 {
		size = defaultSize
	}
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &LRU{cache: c, now: time.Now}, nil
}

// Set 设置缓存项
func (l *LRU) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	e := entry{data: data}
	if expiration > 0 {
		e.expiresAt = l.now().Add(expiration)
	}
	l.cache.Add(key, e)
	return nil
}

func (l *LRU) lookup(key string) (entry, bool) {
	e, ok := l.cache.Get(key)
	if !ok {
		return entry{}, false
	}
	if e.expired(l.now()) {
		l.cache.Remove(key)
		return entry{}, false
	}
	return e, true
}

// Get 获取缓存项
func (l *LRU) Get(ctx context.Context, key string, dest interface{}) error {
	e, ok := l.lookup(key)
	if !ok {
		return types.ErrCacheMiss
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		return types.ErrCacheMiss
	}
	return nil
}

// Delete 删除缓存项
func (l *LRU) Delete(ctx context.Context, key string) error {
	l.cache.Remove(key)
	return nil
}

// Exists 检查缓存项是否存在
func (l *LRU) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := l.lookup(key)
	return ok, nil
}

// Len 当前条目数（含未清理的过期条目）
func (l *LRU) Len() int {
	return l.cache.Len()
}

// Close 清空缓存
func (l *LRU) Close() error {
	l.cache.Purge()
	return nil
}

// Name 返回缓存提供者名称
func (l *LRU) Name() string {
	return "lru"
}
