package storage

import (
	"context"
	"fmt"
)

// GCSStorage Google Cloud Storage
// 使用 XML 互操作 API（HMAC 密钥），协议与 S3 一致
type GCSStorage struct {
	*minioStore
}

var _ Provider = (*GCSStorage)(nil)

func newGCSProvider(ctx context.Context, cfg *ProviderConfig) (Provider, error) {
	settings, ok := cfg.Settings.(*GCSSettings)
	if !ok {
		return nil, Configuration(ProviderGCS, "build", fmt.Errorf("unexpected settings type %T", cfg.Settings))
	}
	return NewGCSStorage(ctx, *settings)
}

// NewGCSStorage 创建 GCS 存储提供者
func NewGCSStorage(ctx context.Context, settings GCSSettings) (*GCSStorage, error) {
	endpoint := settings.Endpoint
	if endpoint == "" {
		endpoint = "storage.googleapis.com"
	}

	store, err := newMinioStore(ctx, ProviderGCS, minioOptions{
		Endpoint:        endpoint,
		// 预签名时不查询 bucket location
		Region:          "auto",
		AccessKeyID:     settings.HMACAccessKey,
		SecretAccessKey: settings.HMACSecret,
		UseSSL:          true,
		Bucket:          settings.Bucket,
		Prefix:          settings.Prefix,
		CDNURL:          settings.CDNURL,
		PresignExpiry:   settings.PresignExpiry,
	})
	if err != nil {
		return nil, err
	}
	return &GCSStorage{minioStore: store}, nil
}
