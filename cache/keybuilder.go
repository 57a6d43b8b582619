package cache

import "strings"

// KeyBuilder 以固定前缀拼接缓存键，各段以 ":" 分隔
type KeyBuilder struct {
	prefix string
	sep    string
}

// NewKeyBuilder 创建新的键构建器
func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{
		prefix: prefix,
		sep:    ":",
	}
}

// Build 构建缓存键
func (kb *KeyBuilder) Build(parts ...string) string {
	if len(parts) == 0 {
		return kb.prefix
	}
	return kb.prefix + kb.sep + strings.Join(parts, kb.sep)
}

var (
	// ObjectMeta 对象元数据，按 provider + key 缓存
	ObjectMeta = NewKeyBuilder("object_meta")

	// ProviderHealth 健康检查报告
	ProviderHealth = NewKeyBuilder("provider_health")
)
