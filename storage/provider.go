package storage

import (
	"context"
)

// Provider 存储提供者接口 - 依赖倒置的核心抽象
// 所有后端（本地、S3、GCS、Cloudinary、Azure、Appwrite）必须遵循此接口，
// 返回的错误必须是 *Error，SDK 自身的错误类型不允许越过这一层
type Provider interface {
	// Type 返回提供者类型
	Type() ProviderType

	// Upload 将文件写入 key，返回带完整 URL 的成功结果
	Upload(ctx context.Context, key string, file *UploadFile) (*UploadResult, error)

	// Delete 删除 key，对象不存在时返回 nil
	Delete(ctx context.Context, key string) error

	// GetURL 计算访问地址，不发起网络请求
	GetURL(key string) string

	// Exists 检查对象是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// GetMetadata 获取对象元数据，不支持或不存在时返回 nil, nil
	GetMetadata(ctx context.Context, key string) (map[string]string, error)

	// Health 轻量级存活检查
	Health(ctx context.Context) error
}

// uploaded 构造成功结果
func uploaded(t ProviderType, key, url string, file *UploadFile, metadata map[string]string) *UploadResult {
	return &UploadResult{
		Success:      true,
		URL:          url,
		Key:          key,
		OriginalName: file.OriginalName,
		Size:         file.Size,
		MimeType:     file.MimeType,
		Provider:     t,
		Metadata:     metadata,
	}
}
