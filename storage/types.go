package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ProviderType 存储提供者类型（封闭枚举）
type ProviderType string

const (
	ProviderLocal      ProviderType = "local"
	ProviderS3         ProviderType = "aws-s3"
	ProviderGCS        ProviderType = "gcs"
	ProviderCloudinary ProviderType = "cloudinary"
	ProviderAzure      ProviderType = "azure"
	ProviderAppwrite   ProviderType = "appwrite"
)

// AllProviderTypes 返回所有提供者类型，顺序固定
func AllProviderTypes() []ProviderType {
	return []ProviderType{
		ProviderLocal,
		ProviderS3,
		ProviderGCS,
		ProviderCloudinary,
		ProviderAzure,
		ProviderAppwrite,
	}
}

// ParseProviderType 解析提供者类型，兼容 "s3" 这类简写
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return ProviderLocal, nil
	case "aws-s3", "s3", "aws":
		return ProviderS3, nil
	case "gcs", "google":
		return ProviderGCS, nil
	case "cloudinary":
		return ProviderCloudinary, nil
	case "azure", "azure-blob":
		return ProviderAzure, nil
	case "appwrite":
		return ProviderAppwrite, nil
	}
	return "", fmt.Errorf("unknown storage provider type '%s'", s)
}

// Valid 是否为已知类型（只接受规范名称）
func (t ProviderType) Valid() bool {
	return t.Order() < len(AllProviderTypes())
}

// Order 在 AllProviderTypes 中的位置，用于稳定排序
func (t ProviderType) Order() int {
	for i, p := range AllProviderTypes() {
		if p == t {
			return i
		}
	}
	return len(AllProviderTypes())
}

// ProviderConfig 单个提供者的配置
type ProviderConfig struct {
	Type     ProviderType `json:"type"`
	Enabled  bool         `json:"enabled"`
	Settings Settings     `json:"settings"`
}

// Validate 检查配置是否可用：启用且必填项齐全
func (c *ProviderConfig) Validate() error {
	if c == nil {
		return NewError(KindConfiguration, "", "validate", fmt.Errorf("provider is not configured"))
	}
	if !c.Enabled {
		return NewError(KindConfiguration, c.Type, "validate", fmt.Errorf("provider '%s' is disabled", c.Type))
	}
	if c.Settings == nil {
		return NewError(KindConfiguration, c.Type, "validate", fmt.Errorf("provider '%s' has no settings", c.Type))
	}
	if c.Settings.Type() != c.Type {
		return NewError(KindConfiguration, c.Type, "validate",
			fmt.Errorf("settings of type '%s' attached to provider '%s'", c.Settings.Type(), c.Type))
	}
	if err := c.Settings.Validate(); err != nil {
		return NewError(KindConfiguration, c.Type, "validate", err)
	}
	return nil
}

// Usable 启用且校验通过
func (c *ProviderConfig) Usable() bool {
	return c.Validate() == nil
}

// Redacted 返回隐藏了密钥的副本
func (c *ProviderConfig) Redacted() *ProviderConfig {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Settings != nil {
		cp.Settings = c.Settings.Redact()
	}
	return &cp
}

// UploadConstraints 上传约束
type UploadConstraints struct {
	MaxFileSize       int64    `json:"max_file_size"`
	AllowedMimeTypes  []string `json:"allowed_mime_types"`
	AllowedExtensions []string `json:"allowed_extensions"`
}

// Clone 深拷贝
func (c UploadConstraints) Clone() UploadConstraints {
	return UploadConstraints{
		MaxFileSize:       c.MaxFileSize,
		AllowedMimeTypes:  append([]string(nil), c.AllowedMimeTypes...),
		AllowedExtensions: append([]string(nil), c.AllowedExtensions...),
	}
}

// NormalizeExtensions 统一扩展名格式：小写、带前导点
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// ServiceConfig 上传服务配置，作为不可变快照使用
type ServiceConfig struct {
	DefaultProvider  ProviderType                     `json:"default_provider"`
	FallbackProvider ProviderType                     `json:"fallback_provider"`
	Providers        map[ProviderType]*ProviderConfig `json:"providers"`
	Constraints      UploadConstraints                `json:"upload_constraints"`
}

// Provider 获取指定类型的配置
func (c *ServiceConfig) Provider(t ProviderType) *ProviderConfig {
	if c == nil || c.Providers == nil {
		return nil
	}
	return c.Providers[t]
}

// Clone 浅拷贝 providers map，ProviderConfig 指针共享（写时复制）
func (c *ServiceConfig) Clone() *ServiceConfig {
	cp := &ServiceConfig{
		DefaultProvider:  c.DefaultProvider,
		FallbackProvider: c.FallbackProvider,
		Providers:        make(map[ProviderType]*ProviderConfig, len(c.Providers)),
		Constraints:      c.Constraints.Clone(),
	}
	for t, pc := range c.Providers {
		cp.Providers[t] = pc
	}
	return cp
}

// DeepCopy 完整副本，修改不会影响原配置
func (c *ServiceConfig) DeepCopy() *ServiceConfig {
	cp := c.Clone()
	for t, pc := range cp.Providers {
		if pc == nil {
			continue
		}
		pcCopy := *pc
		if pc.Settings != nil {
			pcCopy.Settings = pc.Settings.Clone()
		}
		cp.Providers[t] = &pcCopy
	}
	return cp
}

// Redacted 返回可以对外展示的副本
func (c *ServiceConfig) Redacted() *ServiceConfig {
	cp := c.Clone()
	for t, pc := range cp.Providers {
		cp.Providers[t] = pc.Redacted()
	}
	return cp
}

// UploadFile 待上传文件
type UploadFile struct {
	Data         []byte
	OriginalName string
	MimeType     string
	Size         int64
	// Key 为空时由服务生成
	Key string
	// Folder 业务实体范围，如 restaurants/42/logos
	Folder string
}

// Ext 原始文件扩展名（小写）
func (f *UploadFile) Ext() string {
	return strings.ToLower(filepath.Ext(f.OriginalName))
}

// UploadResult 上传结果，Success 区分成功与失败两种形态
type UploadResult struct {
	Success      bool              `json:"success"`
	URL          string            `json:"url,omitempty"`
	Key          string            `json:"key,omitempty"`
	OriginalName string            `json:"original_name,omitempty"`
	Size         int64             `json:"size,omitempty"`
	MimeType     string            `json:"mime_type,omitempty"`
	Provider     ProviderType      `json:"provider"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	FallbackUsed bool              `json:"fallback_used,omitempty"`

	Error string    `json:"error,omitempty"`
	Code  string    `json:"code,omitempty"`
	Kind  ErrorKind `json:"kind,omitempty"`
}

// FailedUpload 从错误构造失败结果
func FailedUpload(provider ProviderType, originalName string, err error) *UploadResult {
	res := &UploadResult{
		Success:      false,
		Provider:     provider,
		OriginalName: originalName,
		Error:        err.Error(),
		Kind:         KindOf(err),
		Code:         CodeOf(err),
	}
	return res
}

// DeleteResult 删除结果
type DeleteResult struct {
	Success  bool         `json:"success"`
	Key      string       `json:"key"`
	Provider ProviderType `json:"provider"`
	Error    string       `json:"error,omitempty"`
	Kind     ErrorKind    `json:"kind,omitempty"`
}

// ProviderHealth 提供者健康状态
type ProviderHealth struct {
	Provider  ProviderType  `json:"provider"`
	Available bool          `json:"available"`
	CheckedAt time.Time     `json:"checked_at"`
	Detail    string        `json:"detail,omitempty"`
	Latency   time.Duration `json:"latency"`
}

// BatchSummary 批量上传汇总
type BatchSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// Summarize 汇总批量结果
func Summarize(results []*UploadResult) BatchSummary {
	s := BatchSummary{Total: len(results)}
	for _, r := range results {
		if r != nil && r.Success {
			s.Successful++
		} else {
			s.Failed++
		}
	}
	return s
}
