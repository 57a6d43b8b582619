package core

import (
	"log/slog"
	"strings"

	"github.com/anoixa/menu-storage/api/handler/admin"
	"github.com/anoixa/menu-storage/api/handler/uploads"
	"github.com/anoixa/menu-storage/api/middleware"
	"github.com/anoixa/menu-storage/cache"
	"github.com/anoixa/menu-storage/config"
	"github.com/anoixa/menu-storage/internal/services/upload"
	"github.com/anoixa/menu-storage/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDependencies 路由注册依赖
type RouterDependencies struct {
	Config   *config.Config
	Uploads  *upload.Service
	Cache    cache.Provider
	Logger   *slog.Logger
	Registry *prometheus.Registry

	APIRateLimiter *middleware.IPRateLimiter
	UploadLimiter  *middleware.UploadLimiter
	HTTPMetrics    *middleware.HTTPMetrics
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(router *gin.Engine, deps *RouterDependencies) {
	registerBasicRoutes(router, deps)
	registerStaticRoutes(router, deps)
	registerAPIRoutes(router, deps)
}

// registerBasicRoutes 注册基础路由
func registerBasicRoutes(router *gin.Engine, deps *RouterDependencies) {
	healthHandler := NewHealthHandler(deps.Uploads, deps.Cache)
	router.GET("/health", healthHandler.Handle)

	if deps.Registry != nil && deps.Config.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}
}

// registerStaticRoutes 本地提供者启用且使用相对地址时，由本服务提供文件访问
func registerStaticRoutes(router *gin.Engine, deps *RouterDependencies) {
	pc := deps.Uploads.GetConfig().Provider(storage.ProviderLocal)
	if pc == nil || !pc.Enabled {
		return
	}
	settings, ok := pc.Settings.(*storage.LocalSettings)
	if !ok || settings.Directory == "" {
		return
	}
	prefix := strings.TrimRight(settings.BaseURL, "/")
	if !strings.HasPrefix(prefix, "/") {
		return
	}

	files := router.Group(prefix)
	files.Use(func(c *gin.Context) {
		c.Header("Cache-Control", "public, max-age=31536000, immutable")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Next()
	})
	files.Static("/", settings.Directory)
}

// registerAPIRoutes 注册 API 路由
func registerAPIRoutes(router *gin.Engine, deps *RouterDependencies) {
	uploadHandler := uploads.NewHandler(deps.Uploads)
	storageHandler := admin.NewStorageHandler(deps.Uploads)

	apiGroup := router.Group("/api")
	apiGroup.Use(func(context *gin.Context) {
		context.Header("Cache-Control", "no-store")
		context.Next()
	})

	v1 := apiGroup.Group("/v1")
	if deps.APIRateLimiter != nil {
		v1.Use(deps.APIRateLimiter.Middleware())
	}
	{
		// 上传与删除需要任意角色的有效 token，管理接口另需 admin 角色
		uploadsGroup := v1.Group("/uploads")
		uploadsGroup.Use(middleware.JWTAuth(deps.Config.AuthJWTSecret))
		{
			writes := uploadsGroup.Group("")
			if deps.UploadLimiter != nil {
				writes.Use(deps.UploadLimiter.Middleware())
			}
			writes.POST("", uploadHandler.Upload)            // POST /api/v1/uploads
			writes.POST("/batch", uploadHandler.UploadBatch) // POST /api/v1/uploads/batch

			uploadsGroup.DELETE("", uploadHandler.Delete)         // DELETE /api/v1/uploads?key=
			uploadsGroup.GET("/metadata", uploadHandler.Metadata) // GET /api/v1/uploads/metadata?key=
		}

		adminGroup := v1.Group("/admin")
		adminGroup.Use(middleware.JWTAuth(deps.Config.AuthJWTSecret))
		adminGroup.Use(middleware.RequireRole(middleware.RoleAdmin))
		{
			storageGroup := adminGroup.Group("/storage")
			storageGroup.GET("/config", storageHandler.GetConfig)        // GET /api/v1/admin/storage/config
			storageGroup.PATCH("/config", storageHandler.UpdateConfig)   // PATCH /api/v1/admin/storage/config
			storageGroup.POST("/switch", storageHandler.SwitchProvider)  // POST /api/v1/admin/storage/switch
			storageGroup.GET("/providers", storageHandler.ListProviders) // GET /api/v1/admin/storage/providers
			storageGroup.GET("/health", storageHandler.Health)           // GET /api/v1/admin/storage/health
		}
	}
}
