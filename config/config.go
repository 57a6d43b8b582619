package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anoixa/menu-storage/storage"
	"github.com/anoixa/menu-storage/utils"
	"github.com/anoixa/menu-storage/utils/format"
	"github.com/spf13/viper"
)

var (
	globalConfig *Config
	mu           sync.RWMutex
)

// Config 扁平化配置结构体
type Config struct {
	// 服务器配置
	ServerHost         string        `mapstructure:"server_host"`
	ServerPort         int           `mapstructure:"server_port"`
	ServerDomain       string        `mapstructure:"server_domain"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout"`

	// 日志
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// 管理接口鉴权，为空时管理接口全部拒绝
	AuthJWTSecret string `mapstructure:"auth_jwt_secret"`

	// 限流配置
	RateLimitApiRPS     float64       `mapstructure:"rate_limit_api_rps"`
	RateLimitApiBurst   int           `mapstructure:"rate_limit_api_burst"`
	RateLimitExpireTime time.Duration `mapstructure:"rate_limit_expire_time"`

	// 上传配置
	UploadMaxSizeMB         int           `mapstructure:"upload_max_size_mb"`
	UploadAllowedMimeTypes  []string      `mapstructure:"upload_allowed_mime_types"`
	UploadAllowedExtensions []string      `mapstructure:"upload_allowed_extensions"`
	UploadMaxBatchFiles     int           `mapstructure:"upload_max_batch_files"`
	UploadTimeout           time.Duration `mapstructure:"upload_timeout"`
	UploadBatchWorkers      int           `mapstructure:"upload_batch_workers"`
	UploadDefaultFolder     string        `mapstructure:"upload_default_folder"`

	// 存储提供者，各提供者的配置以 storage_<name>_ 为前缀，见 providerPrefixes
	StorageDefaultProvider  string `mapstructure:"storage_default_provider"`
	StorageFallbackProvider string `mapstructure:"storage_fallback_provider"`

	// 健康检查
	HealthTimeout  time.Duration `mapstructure:"health_timeout"`
	HealthCacheTTL time.Duration `mapstructure:"health_cache_ttl"`

	// 缓存提供者配置
	CacheType          string        `mapstructure:"cache_type"`
	CacheMaxSizeMB     int           `mapstructure:"cache_max_size_mb"`
	CacheLRUSize       int           `mapstructure:"cache_lru_size"`
	CacheRedisAddr     string        `mapstructure:"cache_redis_addr"`
	CacheRedisPassword string        `mapstructure:"cache_redis_password"`
	CacheRedisDB       int           `mapstructure:"cache_redis_db"`
	CacheRedisPrefix   string        `mapstructure:"cache_redis_prefix"`
	CacheMetadataTTL   time.Duration `mapstructure:"cache_metadata_ttl"`

	MetricsEnabled bool `mapstructure:"metrics_enabled"`

	providers map[storage.ProviderType]providerEntry
}

type providerEntry struct {
	enabled  bool
	settings map[string]any
}

// providerPrefixes 环境变量前缀到提供者类型
var providerPrefixes = map[string]storage.ProviderType{
	"local":      storage.ProviderLocal,
	"s3":         storage.ProviderS3,
	"gcs":        storage.ProviderGCS,
	"cloudinary": storage.ProviderCloudinary,
	"azure":      storage.ProviderAzure,
	"appwrite":   storage.ProviderAppwrite,
}

// InitConfig 加载配置并设为全局配置，path 为空时读取当前目录的 .env
func InitConfig(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	mu.Lock()
	globalConfig = cfg
	mu.Unlock()
	return nil
}

// Get 返回全局配置，未初始化时按默认值加载
func Get() *Config {
	mu.RLock()
	cfg := globalConfig
	mu.RUnlock()
	if cfg != nil {
		return cfg
	}

	cfg, err := Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Unable to load config, %v\n", err)
		os.Exit(1)
	}
	mu.Lock()
	globalConfig = cfg
	mu.Unlock()
	return cfg
}

// Load 读取 .env 文件和环境变量，环境变量优先
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = ".env"
	}
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.AutomaticEnv()
	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	cfg.UploadAllowedMimeTypes = splitList(cfg.UploadAllowedMimeTypes)
	cfg.UploadAllowedExtensions = splitList(cfg.UploadAllowedExtensions)
	cfg.providers = collectProviders(v)
	return cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// 服务器配置默认值
	v.SetDefault("server_host", "127.0.0.1")
	v.SetDefault("server_port", 8080)
	v.SetDefault("server_domain", "")
	v.SetDefault("server_read_timeout", "15s")
	v.SetDefault("server_write_timeout", "120s")
	v.SetDefault("server_idle_timeout", "120s")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("auth_jwt_secret", "")

	// 限流配置默认值
	v.SetDefault("rate_limit_api_rps", 30.0)
	v.SetDefault("rate_limit_api_burst", 60)
	v.SetDefault("rate_limit_expire_time", "10m")

	// 上传配置默认值
	v.SetDefault("upload_max_size_mb", 10)
	v.SetDefault("upload_allowed_mime_types", []string{"image/jpeg", "image/png", "image/webp", "image/gif"})
	v.SetDefault("upload_allowed_extensions", []string{".jpg", ".jpeg", ".png", ".webp", ".gif"})
	v.SetDefault("upload_max_batch_files", 20)
	v.SetDefault("upload_timeout", "60s")
	v.SetDefault("upload_batch_workers", 4)
	v.SetDefault("upload_default_folder", "uploads")

	// 存储默认值：只启用本地磁盘
	v.SetDefault("storage_default_provider", string(storage.ProviderLocal))
	v.SetDefault("storage_fallback_provider", "")
	for prefix := range providerPrefixes {
		v.SetDefault("storage_"+prefix+"_enabled", prefix == "local")
	}
	v.SetDefault("storage_local_directory", utils.DefaultUploadDir())
	v.SetDefault("storage_local_base_url", "/uploads")

	v.SetDefault("health_timeout", "5s")
	v.SetDefault("health_cache_ttl", "15s")

	// 缓存提供者配置默认值
	v.SetDefault("cache_type", "memory")
	v.SetDefault("cache_max_size_mb", 64)
	v.SetDefault("cache_lru_size", 1024)
	v.SetDefault("cache_redis_addr", "localhost:6379")
	v.SetDefault("cache_redis_password", "")
	v.SetDefault("cache_redis_db", 0)
	v.SetDefault("cache_redis_prefix", "menu-storage:")
	v.SetDefault("cache_metadata_ttl", "5m")

	v.SetDefault("metrics_enabled", true)
}

// collectProviders 按前缀收集 storage_<name>_<setting>
// 环境变量不会出现在 AllKeys 中，需要单独扫描
func collectProviders(v *viper.Viper) map[storage.ProviderType]providerEntry {
	keys := map[string]struct{}{}
	for _, k := range v.AllKeys() {
		keys[k] = struct{}{}
	}
	for _, kv := range os.Environ() {
		if k, _, ok := strings.Cut(kv, "="); ok {
			keys[strings.ToLower(k)] = struct{}{}
		}
	}

	out := make(map[storage.ProviderType]providerEntry)
	for key := range keys {
		rest, ok := strings.CutPrefix(key, "storage_")
		if !ok {
			continue
		}
		for prefix, t := range providerPrefixes {
			setting, ok := strings.CutPrefix(rest, prefix+"_")
			if !ok || setting == "" {
				continue
			}
			entry := out[t]
			if setting == "enabled" {
				entry.enabled = v.GetBool(key)
			} else {
				if entry.settings == nil {
					entry.settings = map[string]any{}
				}
				entry.settings[setting] = v.Get(key)
			}
			out[t] = entry
		}
	}
	return out
}

func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// StorageServiceConfig 构建上传服务配置
// 只负责解析，提供者必填项的校验在首次使用或切换时进行
func (c *Config) StorageServiceConfig() (*storage.ServiceConfig, error) {
	def, err := storage.ParseProviderType(c.StorageDefaultProvider)
	if err != nil {
		return nil, storage.Configuration("", "config", err)
	}

	var fb storage.ProviderType
	if strings.TrimSpace(c.StorageFallbackProvider) != "" {
		if fb, err = storage.ParseProviderType(c.StorageFallbackProvider); err != nil {
			return nil, storage.Configuration("", "config", err)
		}
	}

	sc := &storage.ServiceConfig{
		DefaultProvider:  def,
		FallbackProvider: fb,
		Providers:        make(map[storage.ProviderType]*storage.ProviderConfig),
		Constraints: storage.UploadConstraints{
			MaxFileSize:       format.MegabytesToBytes(c.UploadMaxSizeMB),
			AllowedMimeTypes:  c.UploadAllowedMimeTypes,
			AllowedExtensions: storage.NormalizeExtensions(c.UploadAllowedExtensions),
		},
	}

	for _, t := range c.ProviderTypes() {
		entry := c.providers[t]
		settings, err := storage.DecodeSettings(t, entry.settings)
		if err != nil {
			return nil, fmt.Errorf("invalid settings for provider %s: %w", t, err)
		}
		sc.Providers[t] = &storage.ProviderConfig{
			Type:     t,
			Enabled:  entry.enabled,
			Settings: settings,
		}
	}
	return sc, nil
}

// ProviderTypes 出现在配置中的提供者，按固定顺序
func (c *Config) ProviderTypes() []storage.ProviderType {
	out := make([]storage.ProviderType, 0, len(c.providers))
	for t, entry := range c.providers {
		if entry.enabled || len(entry.settings) > 0 {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order() < out[j].Order() })
	return out
}

// Addr 返回监听地址，格式为 "host:port"
func (c *Config) Addr() string {
	host := c.ServerHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.ServerPort
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// BaseURL 返回基础 URL，用于拼接本地文件的访问地址
func (c *Config) BaseURL() string {
	if c.ServerDomain != "" {
		return strings.TrimRight(c.ServerDomain, "/")
	}
	host := c.ServerHost
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.ServerPort)
}
