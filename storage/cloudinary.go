package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryStorage Cloudinary 媒体存储
// public_id 由 key 去掉扩展名得到（raw 资源保留扩展名），folder 配置作为前缀
type CloudinaryStorage struct {
	cld          *cloudinary.Cloudinary
	cloudName    string
	folder       string
	resourceType string
	cdnURL       string
}

var _ Provider = (*CloudinaryStorage)(nil)

func newCloudinaryProvider(_ context.Context, cfg *ProviderConfig) (Provider, error) {
	settings, ok := cfg.Settings.(*CloudinarySettings)
	if !ok {
		return nil, Configuration(ProviderCloudinary, "build", fmt.Errorf("unexpected settings type %T", cfg.Settings))
	}
	return NewCloudinaryStorage(*settings)
}

// NewCloudinaryStorage 创建 Cloudinary 存储提供者
func NewCloudinaryStorage(settings CloudinarySettings) (*CloudinaryStorage, error) {
	cld, err := cloudinary.NewFromParams(settings.CloudName, settings.APIKey, settings.APISecret)
	if err != nil {
		return nil, Configuration(ProviderCloudinary, "build", fmt.Errorf("failed to initialize cloudinary client: %w", err))
	}

	resourceType := settings.ResourceType
	if resourceType == "" {
		resourceType = "image"
	}

	return &CloudinaryStorage{
		cld:          cld,
		cloudName:    settings.CloudName,
		folder:       strings.Trim(settings.Folder, "/"),
		resourceType: resourceType,
		cdnURL:       settings.CDNURL,
	}, nil
}

// publicID key 到 public_id 的映射
func (s *CloudinaryStorage) publicID(key string) string {
	id := key
	if s.resourceType != "raw" {
		id = strings.TrimSuffix(key, path.Ext(key))
	}
	if s.folder != "" {
		id = s.folder + "/" + id
	}
	return id
}

// Upload 上传到 Cloudinary，同一 public_id 覆盖
func (s *CloudinaryStorage) Upload(ctx context.Context, key string, file *UploadFile) (*UploadResult, error) {
	resp, err := s.cld.Upload.Upload(ctx, bytes.NewReader(file.Data), uploader.UploadParams{
		PublicID:     s.publicID(key),
		ResourceType: s.resourceType,
	})
	if err != nil {
		return nil, Transport(ProviderCloudinary, "upload", fmt.Errorf("failed to upload '%s': %w", key, err))
	}
	if resp.Error.Message != "" {
		return nil, Transport(ProviderCloudinary, "upload", fmt.Errorf("failed to upload '%s': %s", key, resp.Error.Message))
	}

	url := s.GetURL(key)
	if s.cdnURL == "" && resp.SecureURL != "" {
		url = resp.SecureURL
	}

	return uploaded(ProviderCloudinary, key, url, file, map[string]string{
		"public_id": resp.PublicID,
		"version":   strconv.Itoa(resp.Version),
		"format":    resp.Format,
	}), nil
}

// Delete 删除资源，"not found" 视为成功
func (s *CloudinaryStorage) Delete(ctx context.Context, key string) error {
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     s.publicID(key),
		ResourceType: s.resourceType,
	})
	if err != nil {
		return Transport(ProviderCloudinary, "delete", fmt.Errorf("failed to delete '%s': %w", key, err))
	}
	if resp.Error.Message != "" {
		return Transport(ProviderCloudinary, "delete", fmt.Errorf("failed to delete '%s': %s", key, resp.Error.Message))
	}
	switch resp.Result {
	case "ok", "not found":
		return nil
	}
	return Transport(ProviderCloudinary, "delete", fmt.Errorf("unexpected destroy result '%s' for '%s'", resp.Result, key))
}

// GetURL 交付地址：https://res.cloudinary.com/<cloud>/<type>/upload/<public_id><ext>
// 配置 cdn_url（自定义交付域名）时替换 https://res.cloudinary.com/<cloud> 部分
func (s *CloudinaryStorage) GetURL(key string) string {
	id := s.publicID(key)
	if s.resourceType != "raw" {
		id += path.Ext(key)
	}
	asset := s.resourceType + "/upload/" + id
	if s.cdnURL != "" {
		return joinURL(s.cdnURL, asset)
	}
	return fmt.Sprintf("https://res.cloudinary.com/%s/%s", s.cloudName, asset)
}

// Exists 通过 Admin API 查询资源
func (s *CloudinaryStorage) Exists(ctx context.Context, key string) (bool, error) {
	meta, err := s.GetMetadata(ctx, key)
	if err != nil {
		return false, err
	}
	return meta != nil, nil
}

// GetMetadata 读取资源信息
func (s *CloudinaryStorage) GetMetadata(ctx context.Context, key string) (map[string]string, error) {
	asset, err := s.cld.Admin.Asset(ctx, admin.AssetParams{
		PublicID:  s.publicID(key),
		AssetType: api.AssetType(s.resourceType),
	})
	if err != nil {
		return nil, Transport(ProviderCloudinary, "metadata", err)
	}
	if asset.Error.Message != "" {
		// Admin API 对不存在的资源只返回文本错误
		if strings.Contains(strings.ToLower(asset.Error.Message), "not found") {
			return nil, nil
		}
		return nil, Transport(ProviderCloudinary, "metadata", errors.New(asset.Error.Message))
	}

	return map[string]string{
		"public_id":  asset.PublicID,
		"size":       strconv.Itoa(asset.Bytes),
		"format":     asset.Format,
		"url":        asset.SecureURL,
		"created_at": asset.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

// Health Admin API ping
func (s *CloudinaryStorage) Health(ctx context.Context) error {
	resp, err := s.cld.Admin.Ping(ctx)
	if err != nil {
		return Transport(ProviderCloudinary, "health", err)
	}
	if resp.Error.Message != "" {
		return Transport(ProviderCloudinary, "health", errors.New(resp.Error.Message))
	}
	return nil
}

// Type 返回存储类型
func (s *CloudinaryStorage) Type() ProviderType {
	return ProviderCloudinary
}
