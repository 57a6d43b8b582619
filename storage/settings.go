package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

const redactedValue = "******"

// Settings 提供者专属配置，每种 ProviderType 对应一个强类型结构体
type Settings interface {
	// Type 返回所属提供者类型
	Type() ProviderType
	// Validate 检查必填项
	Validate() error
	// Redact 返回隐藏密钥后的副本
	Redact() Settings
	// Clone 返回副本
	Clone() Settings
}

type defaulter interface {
	applyDefaults()
}

// LocalSettings 本地磁盘
type LocalSettings struct {
	Directory string `mapstructure:"directory" json:"directory"`
	BaseURL   string `mapstructure:"base_url" json:"base_url"`
}

func (s *LocalSettings) Type() ProviderType { return ProviderLocal }

func (s *LocalSettings) Validate() error {
	if strings.TrimSpace(s.Directory) == "" {
		return errors.New("local directory is required")
	}
	return nil
}

func (s *LocalSettings) Clone() Settings {
	cp := *s
	return &cp
}

func (s *LocalSettings) Redact() Settings {
	cp := *s
	return &cp
}

func (s *LocalSettings) applyDefaults() {
	if s.BaseURL == "" {
		s.BaseURL = "/uploads"
	}
}

// S3Settings S3 兼容对象存储
type S3Settings struct {
	Endpoint        string        `mapstructure:"endpoint" json:"endpoint"`
	Region          string        `mapstructure:"region" json:"region"`
	Bucket          string        `mapstructure:"bucket" json:"bucket"`
	AccessKeyID     string        `mapstructure:"access_key_id" json:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key" json:"secret_access_key"`
	SessionToken    string        `mapstructure:"session_token" json:"session_token,omitempty"`
	UseSSL          bool          `mapstructure:"use_ssl" json:"use_ssl"`
	CDNURL          string        `mapstructure:"cdn_url" json:"cdn_url,omitempty"`
	Prefix          string        `mapstructure:"prefix" json:"prefix,omitempty"`
	CreateBucket    bool          `mapstructure:"create_bucket" json:"create_bucket"`
	// PresignExpiry 大于 0 时 GetURL 返回预签名地址，有效期即此值（最长 7 天）
	PresignExpiry       time.Duration `mapstructure:"presign_expiry" json:"presign_expiry,omitempty"`
	MaxIdleConns        int           `mapstructure:"max_idle_conns" json:"max_idle_conns,omitempty"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host" json:"max_idle_conns_per_host,omitempty"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout" json:"idle_conn_timeout,omitempty"`
}

func (s *S3Settings) Type() ProviderType { return ProviderS3 }

func (s *S3Settings) Validate() error {
	var missing []string
	if s.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if s.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if s.AccessKeyID == "" {
		missing = append(missing, "access_key_id")
	}
	if s.SecretAccessKey == "" {
		missing = append(missing, "secret_access_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("s3 settings missing: %s", strings.Join(missing, ", "))
	}
	if strings.Contains(s.Endpoint, "://") {
		return fmt.Errorf("s3 endpoint must be host[:port] without scheme, got '%s'", s.Endpoint)
	}
	if err := validatePresignExpiry(s.PresignExpiry); err != nil {
		return err
	}
	return validateOptionalURL("cdn_url", s.CDNURL)
}

func (s *S3Settings) Clone() Settings {
	cp := *s
	return &cp
}

func (s *S3Settings) Redact() Settings {
	cp := *s
	cp.SecretAccessKey = redact(cp.SecretAccessKey)
	cp.SessionToken = redact(cp.SessionToken)
	return &cp
}

func (s *S3Settings) applyDefaults() {
	if s.Endpoint == "" {
		s.Endpoint = "s3.amazonaws.com"
	}
}

// GCSSettings Google Cloud Storage，通过 XML 互操作 API 与 HMAC 密钥访问
type GCSSettings struct {
	Endpoint      string        `mapstructure:"endpoint" json:"endpoint"`
	Bucket        string        `mapstructure:"bucket" json:"bucket"`
	HMACAccessKey string        `mapstructure:"hmac_access_key" json:"hmac_access_key"`
	HMACSecret    string        `mapstructure:"hmac_secret" json:"hmac_secret"`
	CDNURL        string        `mapstructure:"cdn_url" json:"cdn_url,omitempty"`
	Prefix        string        `mapstructure:"prefix" json:"prefix,omitempty"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry" json:"presign_expiry,omitempty"`
}

func (s *GCSSettings) Type() ProviderType { return ProviderGCS }

func (s *GCSSettings) Validate() error {
	var missing []string
	if s.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if s.HMACAccessKey == "" {
		missing = append(missing, "hmac_access_key")
	}
	if s.HMACSecret == "" {
		missing = append(missing, "hmac_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("gcs settings missing: %s", strings.Join(missing, ", "))
	}
	if err := validatePresignExpiry(s.PresignExpiry); err != nil {
		return err
	}
	return validateOptionalURL("cdn_url", s.CDNURL)
}

func (s *GCSSettings) Clone() Settings {
	cp := *s
	return &cp
}

func (s *GCSSettings) Redact() Settings {
	cp := *s
	cp.HMACSecret = redact(cp.HMACSecret)
	return &cp
}

func (s *GCSSettings) applyDefaults() {
	if s.Endpoint == "" {
		s.Endpoint = "storage.googleapis.com"
	}
}

// CloudinarySettings Cloudinary 媒体服务
type CloudinarySettings struct {
	CloudName    string `mapstructure:"cloud_name" json:"cloud_name"`
	APIKey       string `mapstructure:"api_key" json:"api_key"`
	APISecret    string `mapstructure:"api_secret" json:"api_secret"`
	Folder       string `mapstructure:"folder" json:"folder,omitempty"`
	ResourceType string `mapstructure:"resource_type" json:"resource_type"`
	CDNURL       string `mapstructure:"cdn_url" json:"cdn_url,omitempty"`
}

func (s *CloudinarySettings) Type() ProviderType { return ProviderCloudinary }

func (s *CloudinarySettings) Validate() error {
	var missing []string
	if s.CloudName == "" {
		missing = append(missing, "cloud_name")
	}
	if s.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if s.APISecret == "" {
		missing = append(missing, "api_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("cloudinary settings missing: %s", strings.Join(missing, ", "))
	}
	switch s.ResourceType {
	case "image", "video", "raw":
	default:
		return fmt.Errorf("cloudinary resource_type must be image, video or raw, got '%s'", s.ResourceType)
	}
	return validateOptionalURL("cdn_url", s.CDNURL)
}

func (s *CloudinarySettings) Clone() Settings {
	cp := *s
	return &cp
}

func (s *CloudinarySettings) Redact() Settings {
	cp := *s
	cp.APISecret = redact(cp.APISecret)
	return &cp
}

func (s *CloudinarySettings) applyDefaults() {
	if s.ResourceType == "" {
		s.ResourceType = "image"
	}
}

// AzureSettings Azure Blob Storage，连接串与账户密钥二选一
type AzureSettings struct {
	AccountName      string `mapstructure:"account_name" json:"account_name,omitempty"`
	AccountKey       string `mapstructure:"account_key" json:"account_key,omitempty"`
	ConnectionString string `mapstructure:"connection_string" json:"connection_string,omitempty"`
	Container        string `mapstructure:"container" json:"container"`
	// Endpoint 覆盖服务地址（Azurite 等），默认 https://<account>.blob.core.windows.net
	Endpoint string `mapstructure:"endpoint" json:"endpoint,omitempty"`
	CDNURL   string `mapstructure:"cdn_url" json:"cdn_url,omitempty"`
}

func (s *AzureSettings) Type() ProviderType { return ProviderAzure }

func (s *AzureSettings) Validate() error {
	if s.Container == "" {
		return errors.New("azure container is required")
	}
	if s.ConnectionString == "" && (s.AccountName == "" || s.AccountKey == "") {
		return errors.New("azure requires connection_string or account_name with account_key")
	}
	if err := validateOptionalURL("endpoint", s.Endpoint); err != nil {
		return err
	}
	return validateOptionalURL("cdn_url", s.CDNURL)
}

func (s *AzureSettings) Clone() Settings {
	cp := *s
	return &cp
}

func (s *AzureSettings) Redact() Settings {
	cp := *s
	cp.AccountKey = redact(cp.AccountKey)
	cp.ConnectionString = redact(cp.ConnectionString)
	return &cp
}

// ServiceURL 服务根地址
func (s *AzureSettings) ServiceURL() string {
	if s.Endpoint != "" {
		return strings.TrimRight(s.Endpoint, "/")
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net", s.AccountName)
}

// AppwriteSettings Appwrite Storage
type AppwriteSettings struct {
	// Endpoint 形如 https://cloud.appwrite.io/v1
	Endpoint  string        `mapstructure:"endpoint" json:"endpoint"`
	ProjectID string        `mapstructure:"project_id" json:"project_id"`
	APIKey    string        `mapstructure:"api_key" json:"api_key"`
	BucketID  string        `mapstructure:"bucket_id" json:"bucket_id"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout,omitempty"`
}

func (s *AppwriteSettings) Type() ProviderType { return ProviderAppwrite }

func (s *AppwriteSettings) Validate() error {
	var missing []string
	if s.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if s.ProjectID == "" {
		missing = append(missing, "project_id")
	}
	if s.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if s.BucketID == "" {
		missing = append(missing, "bucket_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("appwrite settings missing: %s", strings.Join(missing, ", "))
	}
	return validateOptionalURL("endpoint", s.Endpoint)
}

func (s *AppwriteSettings) Clone() Settings {
	cp := *s
	return &cp
}

func (s *AppwriteSettings) Redact() Settings {
	cp := *s
	cp.APIKey = redact(cp.APIKey)
	return &cp
}

func (s *AppwriteSettings) applyDefaults() {
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
}

// NewSettings 返回指定类型的空配置
func NewSettings(t ProviderType) (Settings, error) {
	switch t {
	case ProviderLocal:
		return &LocalSettings{}, nil
	case ProviderS3:
		return &S3Settings{UseSSL: true}, nil
	case ProviderGCS:
		return &GCSSettings{}, nil
	case ProviderCloudinary:
		return &CloudinarySettings{}, nil
	case ProviderAzure:
		return &AzureSettings{}, nil
	case ProviderAppwrite:
		return &AppwriteSettings{}, nil
	}
	return nil, Configuration(t, "settings", fmt.Errorf("unknown provider type '%s'", t))
}

// DecodeSettings 将松散的 map 解码为强类型配置并填充默认值（不做必填校验）
func DecodeSettings(t ProviderType, raw map[string]any) (Settings, error) {
	settings, err := NewSettings(t)
	if err != nil {
		return nil, err
	}
	if err := decodeInto(settings, raw); err != nil {
		return nil, Configuration(t, "settings", err)
	}
	if d, ok := settings.(defaulter); ok {
		d.applyDefaults()
	}
	return settings, nil
}

// MergeSettings 在现有配置上叠加 patch，返回新对象，原对象不变
func MergeSettings(base Settings, patch map[string]any) (Settings, error) {
	if base == nil {
		return nil, errors.New("base settings is nil")
	}
	current := map[string]any{}
	if err := mapstructure.Decode(base, &current); err != nil {
		return nil, Configuration(base.Type(), "settings", fmt.Errorf("failed to read current settings: %w", err))
	}
	for k, v := range patch {
		// 回传的脱敏值保持原值
		if sv, ok := v.(string); ok && sv == redactedValue {
			continue
		}
		current[strings.ToLower(k)] = v
	}
	return DecodeSettings(base.Type(), current)
}

func decodeInto(dst Settings, raw map[string]any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

func validatePresignExpiry(d time.Duration) error {
	if d < 0 || d > 7*24*time.Hour {
		return fmt.Errorf("presign_expiry must be between 0 and 168h, got %s", d)
	}
	return nil
}

func validateOptionalURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got '%s'", field, raw)
	}
	return nil
}

func redact(v string) string {
	if v == "" {
		return ""
	}
	return redactedValue
}

// joinURL 拼接基础地址与对象 key
func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
