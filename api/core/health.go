package core

import (
	"net/http"
	"time"

	"github.com/anoixa/menu-storage/cache"
	"github.com/anoixa/menu-storage/config"
	"github.com/anoixa/menu-storage/internal/services/upload"
	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// HealthHandler 进程存活检查，只做静态判断，不探测存储后端
type HealthHandler struct {
	uploads *upload.Service
	cache   cache.Provider
}

func NewHealthHandler(uploads *upload.Service, c cache.Provider) *HealthHandler {
	return &HealthHandler{uploads: uploads, cache: c}
}

func (h *HealthHandler) Handle(c *gin.Context) {
	checks := gin.H{
		"cache":   checkCacheHealth(h.cache),
		"storage": checkStorageHealth(h.uploads),
	}

	httpStatus := http.StatusOK
	status := "ok"
	for _, result := range checks {
		if result != "ok" {
			httpStatus = http.StatusServiceUnavailable
			status = "degraded"
			break
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":  status,
		"uptime":  time.Since(startTime).Round(time.Second).String(),
		"version": config.VersionString(),
		"checks":  checks,
	})
}

func checkCacheHealth(c cache.Provider) string {
	if c == nil {
		return "not initialized"
	}
	return "ok"
}

func checkStorageHealth(uploads *upload.Service) string {
	if uploads == nil {
		return "not initialized"
	}
	def := uploads.GetConfig().DefaultProvider
	for _, t := range uploads.GetAvailableProviders() {
		if t == def {
			return "ok"
		}
	}
	return "error: default provider " + string(def) + " is not available"
}
