package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"report-desk/internal/middleware"
	"report-desk/internal/service"
	"report-desk/pkg/log"
)

// ReportHandler 负责同步的报告生成请求。
type ReportHandler struct {
	reportService service.ReportService
}

// NewReportHandler 创建一个新的 ReportHandler。
func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// GenerateRequest 是报告生成 API 的请求体。
type GenerateRequest struct {
	Input string `json:"input" binding:"required"`
	service.RequestConfig
}

// Generate 处理报告生成请求，阻塞直到远程服务返回或超时。
func (h *ReportHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Generate: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载：input 不能为空", "data": nil})
		return
	}

	sessionID := middleware.SessionID(c)
	outcome, err := h.reportService.Submit(c.Request.Context(), sessionID, req.Input, req.RequestConfig, nil)
	if err != nil {
		if errors.Is(err, service.ErrRequestPending) {
			log.Infof("会话 %s 已有进行中的请求，忽略重复提交", sessionID)
		}
		if outcome == nil {
			fail(c, err)
			return
		}
		log.Errorf("报告已生成但会话保存失败: %v", err)
	}
	ok(c, newOutcomeView(outcome))
}
