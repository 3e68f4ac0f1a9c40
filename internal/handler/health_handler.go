package handler

import (
	"github.com/gin-gonic/gin"

	"report-desk/internal/service"
)

// HealthHandler 返回报告服务的连通性和日志 sink 的状态。
type HealthHandler struct {
	healthService service.HealthService
}

// NewHealthHandler 创建一个新的 HealthHandler。
func NewHealthHandler(healthService service.HealthService) *HealthHandler {
	return &HealthHandler{healthService: healthService}
}

// Check 处理健康检查请求，总是返回 200。
func (h *HealthHandler) Check(c *gin.Context) {
	ok(c, h.healthService.Check(c.Request.Context()))
}
