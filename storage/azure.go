package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// AzureStorage Azure Blob Storage
type AzureStorage struct {
	client    *azblob.Client
	container *container.Client
	name      string
	baseURL   string
	cdnURL    string
}

var _ Provider = (*AzureStorage)(nil)

func newAzureProvider(_ context.Context, cfg *ProviderConfig) (Provider, error) {
	settings, ok := cfg.Settings.(*AzureSettings)
	if !ok {
		return nil, Configuration(ProviderAzure, "build", fmt.Errorf("unexpected settings type %T", cfg.Settings))
	}
	return NewAzureStorage(*settings)
}

// NewAzureStorage 创建 Azure 存储提供者
// 优先使用连接字符串，否则使用账户名 + 共享密钥
func NewAzureStorage(settings AzureSettings) (*AzureStorage, error) {
	var (
		client *azblob.Client
		err    error
	)
	if settings.ConnectionString != "" {
		client, err = azblob.NewClientFromConnectionString(settings.ConnectionString, nil)
	} else {
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(settings.AccountName, settings.AccountKey)
		if err == nil {
			client, err = azblob.NewClientWithSharedKeyCredential(settings.ServiceURL(), cred, nil)
		}
	}
	if err != nil {
		return nil, Configuration(ProviderAzure, "build", fmt.Errorf("failed to initialize azure client: %w", err))
	}

	return &AzureStorage{
		client:    client,
		container: client.ServiceClient().NewContainerClient(settings.Container),
		name:      settings.Container,
		baseURL:   joinURL(client.URL(), settings.Container),
		cdnURL:    settings.CDNURL,
	}, nil
}

func isAzureNotFound(err error) bool {
	return bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ResourceNotFound)
}

// Upload 以 block blob 写入，同名覆盖
func (s *AzureStorage) Upload(ctx context.Context, key string, file *UploadFile) (*UploadResult, error) {
	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	originalName := sanitizeHeaderValue(file.OriginalName)

	resp, err := s.client.UploadBuffer(ctx, s.name, key, file.Data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
		Metadata:    map[string]*string{"original_name": &originalName},
	})
	if err != nil {
		return nil, Transport(ProviderAzure, "upload", fmt.Errorf("failed to upload blob '%s': %w", key, err))
	}

	meta := map[string]string{"container": s.name}
	if resp.ETag != nil {
		meta["etag"] = string(*resp.ETag)
	}
	if resp.VersionID != nil {
		meta["version_id"] = *resp.VersionID
	}
	return uploaded(ProviderAzure, key, s.GetURL(key), file, meta), nil
}

// Delete 删除 blob，BlobNotFound 视为成功
func (s *AzureStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteBlob(ctx, s.name, key, nil); err != nil {
		if isAzureNotFound(err) {
			return nil
		}
		return Transport(ProviderAzure, "delete", fmt.Errorf("failed to delete blob '%s': %w", key, err))
	}
	return nil
}

// GetURL CDN 优先，否则为 <service>/<container>/<key>
func (s *AzureStorage) GetURL(key string) string {
	if s.cdnURL != "" {
		return joinURL(s.cdnURL, key)
	}
	return joinURL(s.baseURL, key)
}

// Exists 检查 blob 是否存在
func (s *AzureStorage) Exists(ctx context.Context, key string) (bool, error) {
	meta, err := s.GetMetadata(ctx, key)
	if err != nil {
		return false, err
	}
	return meta != nil, nil
}

// GetMetadata 读取 blob 属性
func (s *AzureStorage) GetMetadata(ctx context.Context, key string) (map[string]string, error) {
	props, err := s.container.NewBlobClient(key).GetProperties(ctx, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return nil, nil
		}
		return nil, Transport(ProviderAzure, "metadata", err)
	}

	meta := map[string]string{}
	if props.ContentLength != nil {
		meta["size"] = strconv.FormatInt(*props.ContentLength, 10)
	}
	if props.ContentType != nil {
		meta["content_type"] = *props.ContentType
	}
	if props.LastModified != nil {
		meta["last_modified"] = props.LastModified.UTC().Format(time.RFC3339)
	}
	if props.ETag != nil {
		meta["etag"] = string(*props.ETag)
	}
	return meta, nil
}

// Health 检查容器可访问
func (s *AzureStorage) Health(ctx context.Context) error {
	if _, err := s.container.GetProperties(ctx, nil); err != nil {
		return Transport(ProviderAzure, "health", fmt.Errorf("container '%s' is not reachable: %w", s.name, err))
	}
	return nil
}

// Type 返回存储类型
func (s *AzureStorage) Type() ProviderType {
	return ProviderAzure
}
