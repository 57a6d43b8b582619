package core

import (
	"fmt"
	"net/http"
	"time"

	"github.com/anoixa/menu-storage/api/middleware"
	"github.com/anoixa/menu-storage/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter 创建 gin 引擎并注册全部路由，返回的 cleanup 用于停止限流器的后台清理
func NewRouter(deps *RouterDependencies) (*gin.Engine, func(), error) {
	cfg := deps.Config
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if deps.Logger != nil {
		router.Use(middleware.RequestLogger(deps.Logger))
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.BaseURL()},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, nil, fmt.Errorf("failed to configure trusted proxies: %w", err)
	}

	// 单个文件上限之外留出表单字段的余量，超出部分写入临时文件
	router.MaxMultipartMemory = int64(cfg.UploadMaxSizeMB+1) << 20

	if deps.Registry != nil && cfg.MetricsEnabled && deps.HTTPMetrics == nil {
		m, err := middleware.NewHTTPMetrics("menu_storage", deps.Registry)
		if err != nil {
			return nil, nil, err
		}
		deps.HTTPMetrics = m
	}
	if deps.HTTPMetrics != nil {
		router.Use(deps.HTTPMetrics.Middleware())
	}

	if deps.APIRateLimiter == nil {
		deps.APIRateLimiter = middleware.NewIPRateLimiter(cfg.RateLimitApiRPS, cfg.RateLimitApiBurst, cfg.RateLimitExpireTime)
	}
	if deps.UploadLimiter == nil {
		deps.UploadLimiter = middleware.NewUploadLimiter(int64(cfg.UploadBatchWorkers)*4, 10*time.Second)
	}

	RegisterRoutes(router, deps)
	return router, deps.APIRateLimiter.StopCleanup, nil
}

// StartServer 创建 http.Server
func StartServer(deps *RouterDependencies) (*http.Server, func(), error) {
	cfg := deps.Config
	router, cleanup, err := NewRouter(deps)
	if err != nil {
		return nil, nil, err
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}
	return srv, cleanup, nil
}
