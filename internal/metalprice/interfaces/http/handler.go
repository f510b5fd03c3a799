// Package http 暴露贵金属行情的 REST 接口
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/metalprice/internal/metalprice/application"
	"github.com/wyfcoding/metalprice/internal/metalprice/domain"
	"github.com/wyfcoding/metalprice/pkg/response"
)

// PriceHandler 贵金属行情 HTTP 处理器
type PriceHandler struct {
	service *application.PriceService
	// 手动刷新前执行的中间件，通常为限流
	refreshGuards []gin.HandlerFunc
}

// NewPriceHandler 创建处理器，refreshGuards 仅作用于手动刷新接口
func NewPriceHandler(service *application.PriceService, refreshGuards ...gin.HandlerFunc) *PriceHandler {
	return &PriceHandler{service: service, refreshGuards: refreshGuards}
}

// RegisterRoutes 在 /v1/metals 下注册行情路由
func (h *PriceHandler) RegisterRoutes(r *gin.RouterGroup) {
	v1 := r.Group("/v1/metals")
	{
		v1.GET("/prices", h.GetPrices)
		v1.GET("/prices/:metal", h.GetPrice)
		v1.POST("/prices/refresh", append(h.refreshGuards, h.RefreshPrices)...)
		v1.DELETE("/history", h.ResetHistory)
	}
}

func (h *PriceHandler) GetPrices(c *gin.Context) {
	snapshot := h.service.GetLivePrices(c.Request.Context())
	response.Success(c, h.service.ToSnapshotDTO(snapshot))
}

func (h *PriceHandler) GetPrice(c *gin.Context) {
	metal, err := domain.ParseMetal(c.Param("metal"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "unknown metal", c.Param("metal"))
		return
	}

	record, err := h.service.GetPrice(c.Request.Context(), metal)
	if errors.Is(err, domain.ErrPriceNotFound) {
		response.ErrorWithStatus(c, http.StatusNotFound, "price not available", metal.String())
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, application.ToPriceRecordDTO(*record))
}

func (h *PriceHandler) RefreshPrices(c *gin.Context) {
	snapshot := h.service.RefreshLivePrices(c.Request.Context())
	response.Success(c, h.service.ToSnapshotDTO(snapshot))
}

func (h *PriceHandler) ResetHistory(c *gin.Context) {
	if err := h.service.ResetHistory(c.Request.Context()); err != nil {
		response.ErrorWithStatus(c, http.StatusServiceUnavailable, "failed to reset price history", err.Error())
		return
	}
	response.Success(c, gin.H{"reset": true})
}
