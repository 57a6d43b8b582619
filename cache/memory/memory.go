package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anoixa/menu-storage/cache/types"
	"github.com/dgraph-io/ristretto"
)

// Memory 基于 ristretto 的内存缓存
// 值统一序列化为 JSON，按字节数计入 cost
type Memory struct {
	client *ristretto.Cache
}

var _ types.Cache = (*Memory)(nil)

// Config 内存缓存配置
type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
}

// DefaultConfig 64MB 上限
func DefaultConfig() Config {
	return Config{
		NumCounters: 100000,
		MaxCost:     64 << 20,
		BufferItems: 64,
	}
}

// NewMemory 未设置的字段取 DefaultConfig
func NewMemory(config Config) (*Memory, error) {
	def := DefaultConfig()
	if config.NumCounters <= 0 {
		config.NumCounters = def.NumCounters
	}
	if config.MaxCost <= 0 {
		config.MaxCost = def.MaxCost
	}
	if config.BufferItems <= 0 {
		config.BufferItems = def.BufferItems
	}

	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: config.NumCounters,
		MaxCost:     config.MaxCost,
		BufferItems: config.BufferItems,
	})
	if err != nil {
		return nil, err
	}

	return &Memory{
		client: client,
	}, nil
}

// Set 设置缓存项
func (m *Memory) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if expiration < 0 {
		expiration = 0
	}
	if m.client.SetWithTTL(key, data, int64(len(data)), expiration) {
		// 等待值被实际写入，保证随后的 Get 可见
		m.client.Wait()
	}
	return nil
}

// Get 获取缓存项
func (m *Memory) Get(ctx context.Context, key string, dest interface{}) error {
	value, found := m.client.Get(key)
	if !found {
		return types.ErrCacheMiss
	}

	data, ok := value.([]byte)
	if !ok || json.Unmarshal(data, dest) != nil {
		return types.ErrCacheMiss
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.client.Del(key)
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	_, found := m.client.Get(key)
	return found, nil
}

func (m *Memory) Close() error {
	m.client.Close()
	return nil
}

// Name 返回缓存提供者名称
func (m *Memory) Name() string {
	return "memory"
}
