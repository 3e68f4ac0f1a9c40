package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"report-desk/internal/middleware"
	"report-desk/internal/service"
	"report-desk/pkg/log"
)

// FeedbackHandler 负责报告反馈。
type FeedbackHandler struct {
	feedbackService service.FeedbackService
}

// NewFeedbackHandler 创建一个新的 FeedbackHandler。
func NewFeedbackHandler(feedbackService service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// Submit 提交一条反馈。远程服务拒绝时返回 502，并带上失败提示。
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req service.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Feedback: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	req.SessionID = middleware.SessionID(c)

	outcome, err := h.feedbackService.Submit(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	if !outcome.Success {
		c.JSON(http.StatusBadGateway, gin.H{"code": http.StatusBadGateway, "message": outcome.Message, "data": outcome})
		return
	}
	ok(c, outcome)
}
