package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Constructor 根据配置构造提供者实例
type Constructor func(ctx context.Context, cfg *ProviderConfig) (Provider, error)

// Registry 存储工厂 - ProviderType 到构造函数的映射
type Registry struct {
	mu           sync.RWMutex
	constructors map[ProviderType]Constructor
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[ProviderType]Constructor),
	}
}

// DefaultRegistry 注册了全部内置提供者的注册表
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ProviderLocal, newLocalProvider)
	r.Register(ProviderS3, newS3Provider)
	r.Register(ProviderGCS, newGCSProvider)
	r.Register(ProviderCloudinary, newCloudinaryProvider)
	r.Register(ProviderAzure, newAzureProvider)
	r.Register(ProviderAppwrite, newAppwriteProvider)
	return r
}

// Register 注册或替换构造函数
func (r *Registry) Register(t ProviderType, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[t] = c
}

// Build 校验配置并构造实例
// 配置非法返回 KindConfiguration；构造过程中的网络错误保留为 KindTransport
func (r *Registry) Build(ctx context.Context, cfg *ProviderConfig) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	c, ok := r.constructors[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, Configuration(cfg.Type, "build", fmt.Errorf("no constructor registered for '%s'", cfg.Type))
	}

	p, err := c(ctx, cfg)
	if err != nil {
		return nil, Transport(cfg.Type, "build", err)
	}
	return p, nil
}

// Types 已注册的类型
func (r *Registry) Types() []ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]ProviderType, 0, len(r.constructors))
	for t := range r.constructors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Order() < types[j].Order() })
	return types
}
