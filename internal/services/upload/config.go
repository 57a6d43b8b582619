package upload

import (
	"context"
	"fmt"

	"github.com/anoixa/menu-storage/cache"
	"github.com/anoixa/menu-storage/storage"
)

// ConfigPatch 配置的部分更新，nil 字段保持不变
type ConfigPatch struct {
	// FallbackProvider 指向空字符串表示关闭备用提供者
	FallbackProvider *storage.ProviderType                  `json:"fallback_provider,omitempty"`
	Constraints      *ConstraintsPatch                      `json:"upload_constraints,omitempty"`
	Providers        map[storage.ProviderType]ProviderPatch `json:"providers,omitempty"`
}

// ConstraintsPatch 上传约束的部分更新
type ConstraintsPatch struct {
	MaxFileSize       *int64    `json:"max_file_size,omitempty"`
	AllowedMimeTypes  *[]string `json:"allowed_mime_types,omitempty"`
	AllowedExtensions *[]string `json:"allowed_extensions,omitempty"`
}

// ProviderPatch 单个提供者的部分更新，Settings 与现有配置逐项合并
type ProviderPatch struct {
	Enabled  *bool          `json:"enabled,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

// UpdateConfig 应用部分更新
// 任一项非法时整个更新被拒绝，配置保持不变；配置发生变化的提供者实例会被重建
func (s *Service) UpdateConfig(patch ConfigPatch) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.cfg.Load()
	next := cur.Clone()

	for t, pp := range patch.Providers {
		pc, err := patchProvider(cur.Provider(t), t, pp)
		if err != nil {
			return err
		}
		next.Providers[t] = pc
	}

	if c := patch.Constraints; c != nil {
		if c.MaxFileSize != nil {
			if *c.MaxFileSize < 0 {
				return storage.Configuration("", "update", fmt.Errorf("max_file_size must not be negative"))
			}
			next.Constraints.MaxFileSize = *c.MaxFileSize
		}
		if c.AllowedMimeTypes != nil {
			next.Constraints.AllowedMimeTypes = append([]string(nil), (*c.AllowedMimeTypes)...)
		}
		if c.AllowedExtensions != nil {
			next.Constraints.AllowedExtensions = storage.NormalizeExtensions(*c.AllowedExtensions)
		}
	}

	if patch.FallbackProvider != nil {
		fb := *patch.FallbackProvider
		if fb != "" && !fb.Valid() {
			return storage.Configuration(fb, "update", fmt.Errorf("unknown fallback provider '%s'", fb))
		}
		next.FallbackProvider = fb
	}

	// 默认提供者只能通过 SwitchProvider 更换，这里不允许把它改成不可用
	if cur.Provider(cur.DefaultProvider).Usable() {
		if err := next.Provider(next.DefaultProvider).Validate(); err != nil {
			return storage.Configuration(next.DefaultProvider, "update",
				fmt.Errorf("default provider would become unusable, switch provider first: %w", err))
		}
	}

	s.cfg.Store(next)
	s.invalidate(next)
	_ = s.cache.Delete(context.Background(), healthCacheKey)

	s.logger.Info("storage configuration updated",
		"default", next.DefaultProvider, "fallback", next.FallbackProvider, "providers", len(patch.Providers))
	return nil
}

func patchProvider(cur *storage.ProviderConfig, t storage.ProviderType, pp ProviderPatch) (*storage.ProviderConfig, error) {
	if !t.Valid() {
		return nil, storage.Configuration(t, "update", fmt.Errorf("unknown provider type '%s'", t))
	}

	var next storage.ProviderConfig
	if cur != nil {
		next = *cur
	} else {
		next.Type = t
	}

	switch {
	case next.Settings == nil:
		settings, err := storage.DecodeSettings(t, pp.Settings)
		if err != nil {
			return nil, err
		}
		next.Settings = settings
	case pp.Settings != nil:
		settings, err := storage.MergeSettings(next.Settings, pp.Settings)
		if err != nil {
			return nil, err
		}
		next.Settings = settings
	}

	if pp.Enabled != nil {
		next.Enabled = *pp.Enabled
	}

	// 启用状态的提供者必须通过校验
	if next.Enabled {
		if err := next.Validate(); err != nil {
			return nil, err
		}
	}
	return &next, nil
}

var healthCacheKey = cache.ProviderHealth.Build("report")
