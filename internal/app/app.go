package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anoixa/menu-storage/cache"
	"github.com/anoixa/menu-storage/config"
	"github.com/anoixa/menu-storage/internal/services/upload"
	"github.com/anoixa/menu-storage/utils/generator"
	"github.com/anoixa/menu-storage/utils/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricsNamespace = "menu_storage"

// Container 依赖注入容器 - 管理所有服务的生命周期
type Container struct {
	config   *config.Config
	logger   *slog.Logger
	cache    cache.Provider
	registry *prometheus.Registry
	uploads  *upload.Service
}

// NewContainer 创建新的依赖注入容器
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
	}
}

// Init 按顺序初始化日志、缓存、指标与上传服务
func (c *Container) Init(ctx context.Context) error {
	c.logger = logger.Setup(logger.Config{
		Level:  c.config.LogLevel,
		Format: c.config.LogFormat,
	})

	if err := c.initCache(ctx); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	c.initMetrics()
	if err := c.initUploadService(); err != nil {
		return fmt.Errorf("failed to initialize upload service: %w", err)
	}

	c.logger.Info("container initialized",
		"version", config.VersionString(),
		"cache", c.cache.Name(),
		"default_provider", c.uploads.GetConfig().DefaultProvider,
	)
	return nil
}

func (c *Container) initCache(ctx context.Context) error {
	p, err := cache.New(ctx, cache.Config{
		Type:          c.config.CacheType,
		MaxCost:       int64(c.config.CacheMaxSizeMB) << 20,
		Size:          c.config.CacheLRUSize,
		RedisAddress:  c.config.CacheRedisAddr,
		RedisPassword: c.config.CacheRedisPassword,
		RedisDB:       c.config.CacheRedisDB,
		RedisPrefix:   c.config.CacheRedisPrefix,
	})
	if err != nil {
		return err
	}
	c.cache = p
	return nil
}

func (c *Container) initMetrics() {
	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func (c *Container) initUploadService() error {
	sc, err := c.config.StorageServiceConfig()
	if err != nil {
		return err
	}

	var observer upload.Observer
	if c.config.MetricsEnabled {
		if observer, err = upload.NewPrometheusObserver(metricsNamespace, c.registry); err != nil {
			return err
		}
	}

	svc, err := upload.NewService(sc, upload.Options{
		KeyGenerator:     generator.NewKeyGenerator(c.config.UploadDefaultFolder),
		Logger:           c.logger,
		Observer:         observer,
		Cache:            c.cache,
		OperationTimeout: c.config.UploadTimeout,
		BatchWorkers:     c.config.UploadBatchWorkers,
		MaxBatchFiles:    c.config.UploadMaxBatchFiles,
		HealthTimeout:    c.config.HealthTimeout,
		HealthCacheTTL:   c.config.HealthCacheTTL,
		MetadataCacheTTL: c.config.CacheMetadataTTL,
	})
	if err != nil {
		return err
	}
	c.uploads = svc
	return nil
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger 获取日志
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// Cache 获取缓存提供者
func (c *Container) Cache() cache.Provider {
	return c.cache
}

// Registry 获取指标注册表
func (c *Container) Registry() *prometheus.Registry {
	return c.registry
}

// Uploads 获取上传服务
func (c *Container) Uploads() *upload.Service {
	return c.uploads
}

// Close 释放资源
func (c *Container) Close() error {
	if c.uploads != nil {
		_ = c.uploads.Close()
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			return fmt.Errorf("failed to close cache: %w", err)
		}
	}
	return nil
}
