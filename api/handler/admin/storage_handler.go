package admin

import (
	"context"
	"net/http"

	"github.com/anoixa/menu-storage/api/common"
	"github.com/anoixa/menu-storage/internal/services/upload"
	"github.com/anoixa/menu-storage/storage"
	"github.com/gin-gonic/gin"
)

// StorageService 存储管理接口依赖的服务
type StorageService interface {
	GetConfig() *storage.ServiceConfig
	UpdateConfig(patch upload.ConfigPatch) error
	SwitchProvider(t storage.ProviderType) error
	GetAvailableProviders() []storage.ProviderType
	GetProviderHealth(ctx context.Context) []storage.ProviderHealth
}

// StorageHandler 存储提供者管理
type StorageHandler struct {
	svc StorageService
}

func NewStorageHandler(svc StorageService) *StorageHandler {
	return &StorageHandler{svc: svc}
}

// ProviderInfo 提供者状态
type ProviderInfo struct {
	Type       storage.ProviderType `json:"type"`
	Configured bool                 `json:"configured"`
	Enabled    bool                 `json:"enabled"`
	Available  bool                 `json:"available"`
	Default    bool                 `json:"default"`
	Fallback   bool                 `json:"fallback"`
	Error      string               `json:"error,omitempty"`
}

type switchRequest struct {
	Provider string `json:"provider" binding:"required"`
}

// GetConfig 返回脱敏后的当前配置
func (h *StorageHandler) GetConfig(c *gin.Context) {
	common.RespondSuccess(c, h.svc.GetConfig().Redacted())
}

// UpdateConfig 部分更新配置，回传的脱敏值保持原值
func (h *StorageHandler) UpdateConfig(c *gin.Context) {
	var patch upload.ConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := h.svc.UpdateConfig(patch); err != nil {
		common.RespondStorageError(c, err)
		return
	}
	common.RespondSuccessMessage(c, "Storage configuration updated", h.svc.GetConfig().Redacted())
}

// SwitchProvider 切换默认提供者
func (h *StorageHandler) SwitchProvider(c *gin.Context) {
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	t, err := storage.ParseProviderType(req.Provider)
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.SwitchProvider(t); err != nil {
		common.RespondStorageError(c, err)
		return
	}
	common.RespondSuccessMessage(c, "Default storage provider switched", gin.H{"default_provider": t})
}

// ListProviders 列出全部提供者类型及其状态，不做网络探测
func (h *StorageHandler) ListProviders(c *gin.Context) {
	cfg := h.svc.GetConfig()
	available := map[storage.ProviderType]bool{}
	for _, t := range h.svc.GetAvailableProviders() {
		available[t] = true
	}

	infos := make([]ProviderInfo, 0, len(storage.AllProviderTypes()))
	for _, t := range storage.AllProviderTypes() {
		pc := cfg.Provider(t)
		info := ProviderInfo{
			Type:       t,
			Configured: pc != nil,
			Available:  available[t],
			Default:    cfg.DefaultProvider == t,
			Fallback:   cfg.FallbackProvider == t,
		}
		if pc != nil {
			info.Enabled = pc.Enabled
			if pc.Enabled {
				if err := pc.Validate(); err != nil {
					info.Error = err.Error()
				}
			}
		}
		infos = append(infos, info)
	}
	common.RespondSuccess(c, infos)
}

// Health 探测所有可用提供者
func (h *StorageHandler) Health(c *gin.Context) {
	report := h.svc.GetProviderHealth(c.Request.Context())
	healthy := len(report) > 0
	for _, r := range report {
		if !r.Available {
			healthy = false
			break
		}
	}
	common.RespondSuccess(c, gin.H{
		"healthy":   healthy,
		"providers": report,
	})
}
