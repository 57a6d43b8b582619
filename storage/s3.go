package storage

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// minioStore S3 协议对象存储，S3 与 GCS（互操作 API）共用
type minioStore struct {
	providerType  ProviderType
	client        *minio.Client
	bucketName    string
	prefix        string
	cdnURL        string
	publicBase    string
	presignExpiry time.Duration
}

type minioOptions struct {
	Endpoint            string
	Region              string
	AccessKeyID         string
	SecretAccessKey     string
	SessionToken        string
	UseSSL              bool
	Bucket              string
	Prefix              string
	CDNURL              string
	PresignExpiry       time.Duration
	CreateBucket        bool
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// S3Storage S3 兼容存储（AWS S3、MinIO、R2 等）
type S3Storage struct {
	*minioStore
}

var _ Provider = (*S3Storage)(nil)

func newS3Provider(ctx context.Context, cfg *ProviderConfig) (Provider, error) {
	settings, ok := cfg.Settings.(*S3Settings)
	if !ok {
		return nil, Configuration(ProviderS3, "build", fmt.Errorf("unexpected settings type %T", cfg.Settings))
	}
	return NewS3Storage(ctx, *settings)
}

// NewS3Storage 创建 S3 兼容存储提供者
func NewS3Storage(ctx context.Context, settings S3Settings) (*S3Storage, error) {
	store, err := newMinioStore(ctx, ProviderS3, minioOptions{
		Endpoint:            settings.Endpoint,
		Region:              settings.Region,
		AccessKeyID:         settings.AccessKeyID,
		SecretAccessKey:     settings.SecretAccessKey,
		SessionToken:        settings.SessionToken,
		UseSSL:              settings.UseSSL,
		Bucket:              settings.Bucket,
		Prefix:              settings.Prefix,
		CDNURL:              settings.CDNURL,
		PresignExpiry:       settings.PresignExpiry,
		CreateBucket:        settings.CreateBucket,
		MaxIdleConns:        settings.MaxIdleConns,
		MaxIdleConnsPerHost: settings.MaxIdleConnsPerHost,
		IdleConnTimeout:     settings.IdleConnTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &S3Storage{minioStore: store}, nil
}

// getOrDefaultInt 获取整数值或默认值
func getOrDefaultInt(value int, defaultValue int) int {
	if value <= 0 {
		return defaultValue
	}
	return value
}

// getOrDefaultDuration 获取时长或默认值
func getOrDefaultDuration(value, defaultValue time.Duration) time.Duration {
	if value <= 0 {
		return defaultValue
	}
	return value
}

// mustGetSystemCertPool 获取系统证书池
func mustGetSystemCertPool() *x509.CertPool {
	pool, err := x509.SystemCertPool()
	if err != nil {
		slog.Warn("failed to load system cert pool", "error", err)
		return x509.NewCertPool()
	}
	return pool
}

func newMinioTransport(opts minioOptions) *http.Transport {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          getOrDefaultInt(opts.MaxIdleConns, 256),
		MaxIdleConnsPerHost:   getOrDefaultInt(opts.MaxIdleConnsPerHost, 16),
		IdleConnTimeout:       getOrDefaultDuration(opts.IdleConnTimeout, time.Minute),
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 10 * time.Second,
		DisableCompression:    true,
	}

	// SSL
	if opts.UseSSL {
		transport.TLSClientConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		if f := os.Getenv("SSL_CERT_FILE"); f != "" {
			rootCAs := mustGetSystemCertPool()
			data, err := os.ReadFile(f)
			if err == nil {
				rootCAs.AppendCertsFromPEM(data)
			}
			transport.TLSClientConfig.RootCAs = rootCAs
		}
	}
	return transport
}

func newMinioStore(ctx context.Context, t ProviderType, opts minioOptions) (*minioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		Secure:    opts.UseSSL,
		Region:    opts.Region,
		Transport: newMinioTransport(opts),
	})
	if err != nil {
		return nil, Configuration(t, "build", fmt.Errorf("failed to initialize client: %w", err))
	}

	if opts.CreateBucket {
		exists, err := client.BucketExists(ctx, opts.Bucket)
		if err != nil {
			return nil, Transport(t, "build", fmt.Errorf("failed to check if bucket '%s' exists: %w", opts.Bucket, err))
		}
		if !exists {
			if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
				return nil, Transport(t, "build", fmt.Errorf("failed to create bucket '%s': %w", opts.Bucket, err))
			}
			slog.Info("created bucket", "provider", t, "bucket", opts.Bucket)
		}
	}

	scheme := "http"
	if opts.UseSSL {
		scheme = "https"
	}

	return &minioStore{
		providerType:  t,
		client:        client,
		bucketName:    opts.Bucket,
		prefix:        strings.Trim(opts.Prefix, "/"),
		cdnURL:        opts.CDNURL,
		publicBase:    fmt.Sprintf("%s://%s/%s", scheme, opts.Endpoint, opts.Bucket),
		presignExpiry: opts.PresignExpiry,
	}, nil
}

// objectName key 加上前缀
func (s *minioStore) objectName(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// isMinioNotFound 判断是否为对象不存在
func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NotFound" || resp.StatusCode == http.StatusNotFound
}

func (s *minioStore) Type() ProviderType {
	return s.providerType
}

// Upload 上传对象
func (s *minioStore) Upload(ctx context.Context, key string, file *UploadFile) (*UploadResult, error) {
	objectName := s.objectName(key)

	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := s.client.PutObject(ctx, s.bucketName, objectName, bytes.NewReader(file.Data), int64(len(file.Data)), minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"original-name": sanitizeHeaderValue(file.OriginalName),
		},
	})
	if err != nil {
		return nil, Transport(s.providerType, "upload", fmt.Errorf("failed to upload object '%s': %w", objectName, err))
	}

	meta := map[string]string{
		"bucket": s.bucketName,
		"etag":   info.ETag,
	}
	if info.VersionID != "" {
		meta["version_id"] = info.VersionID
	}
	return uploaded(s.providerType, key, s.GetURL(key), file, meta), nil
}

// Delete 删除对象，S3 对不存在的 key 本身就返回成功
func (s *minioStore) Delete(ctx context.Context, key string) error {
	objectName := s.objectName(key)

	err := s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return nil
		}
		return Transport(s.providerType, "delete", fmt.Errorf("failed to delete object '%s': %w", objectName, err))
	}
	return nil
}

// GetURL CDN 优先；配置了 presign_expiry 时返回预签名地址，否则返回公共地址
func (s *minioStore) GetURL(key string) string {
	if s.cdnURL != "" {
		return joinURL(s.cdnURL, key)
	}
	objectName := s.objectName(key)
	if s.presignExpiry > 0 {
		u, err := s.client.PresignedGetObject(context.Background(), s.bucketName, objectName, s.presignExpiry, nil)
		if err == nil {
			return u.String()
		}
		slog.Warn("failed to presign object url, using public url", "provider", s.providerType, "key", key, "error", err)
	}
	return joinURL(s.publicBase, objectName)
}

// Exists 检查对象是否存在
func (s *minioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucketName, s.objectName(key), minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return false, nil
		}
		return false, Transport(s.providerType, "exists", err)
	}
	return true, nil
}

// GetMetadata 读取对象属性
func (s *minioStore) GetMetadata(ctx context.Context, key string) (map[string]string, error) {
	info, err := s.client.StatObject(ctx, s.bucketName, s.objectName(key), minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return nil, nil
		}
		return nil, Transport(s.providerType, "metadata", err)
	}

	meta := map[string]string{
		"size":          strconv.FormatInt(info.Size, 10),
		"content_type":  info.ContentType,
		"last_modified": info.LastModified.UTC().Format(time.RFC3339),
		"etag":          info.ETag,
	}
	if info.VersionID != "" {
		meta["version_id"] = info.VersionID
	}
	return meta, nil
}

// Health 检查 bucket 可访问
func (s *minioStore) Health(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return Transport(s.providerType, "health", err)
	}
	if !exists {
		return Transport(s.providerType, "health", fmt.Errorf("bucket '%s' does not exist", s.bucketName))
	}
	return nil
}

// sanitizeHeaderValue 元数据头只允许可打印 ASCII
func sanitizeHeaderValue(v string) string {
	var sb strings.Builder
	for _, r := range v {
		if r >= 0x20 && r < 0x7f {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
