// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"report-desk/internal/model"
	"report-desk/internal/repository"
	"report-desk/internal/service"
)

// ok 返回统一的成功响应。
func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

// fail 根据错误类型返回统一的错误响应。
func fail(c *gin.Context, err error) {
	status := statusOf(err)
	c.JSON(status, gin.H{"code": status, "message": err.Error(), "data": nil})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrRequestPending):
		return http.StatusConflict
	case errors.Is(err, repository.ErrSessionNotFound), errors.Is(err, service.ErrArtifactNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// MessageView 是对话记录中的一条消息，文档只返回摘要和下载地址。
type MessageView struct {
	Index       int                 `json:"index"`
	Role        model.Role          `json:"role"`
	Content     string              `json:"content"`
	Timestamp   time.Time           `json:"timestamp"`
	TraceID     *string             `json:"trace_id,omitempty"`
	ReportType  model.ReportType    `json:"report_type,omitempty"`
	Artifact    *model.ArtifactInfo `json:"artifact,omitempty"`
	DownloadURL string              `json:"download_url,omitempty"`
}

func newMessageView(index int, m model.Message) MessageView {
	v := MessageView{
		Index:      index,
		Role:       m.Role,
		Content:    m.Content,
		Timestamp:  m.Timestamp,
		TraceID:    m.TraceID,
		ReportType: m.ReportType,
		Artifact:   m.Artifact.Info(),
	}
	if m.Artifact != nil {
		v.DownloadURL = fmt.Sprintf("/api/v1/sessions/me/messages/%d/artifact", index)
	}
	return v
}

// SessionView 是 GET /sessions/me 的返回体。
type SessionView struct {
	SessionID  string                `json:"session_id"`
	State      model.RequestState    `json:"state"`
	Generating bool                  `json:"generating"`
	Pending    *model.PendingRequest `json:"pending,omitempty"`
	Messages   []MessageView         `json:"messages"`
}

func newSessionView(s *model.Session) SessionView {
	v := SessionView{
		SessionID:  s.ID,
		State:      s.State,
		Generating: s.Generating(),
		Pending:    s.Pending,
		Messages:   make([]MessageView, 0, len(s.Messages)),
	}
	for i, m := range s.Messages {
		v.Messages = append(v.Messages, newMessageView(i, m))
	}
	return v
}

// OutcomeView 是一次报告请求的返回体。
type OutcomeView struct {
	Kind       service.OutcomeKind `json:"kind"`
	Success    bool                `json:"success"`
	StatusCode int                 `json:"status_code,omitempty"`
	ElapsedSec float64             `json:"elapsed_seconds"`
	Message    MessageView         `json:"message"`
}

func newOutcomeView(o *service.RequestOutcome) OutcomeView {
	return OutcomeView{
		Kind:       o.Kind,
		Success:    o.Success(),
		StatusCode: o.StatusCode,
		ElapsedSec: o.Elapsed.Seconds(),
		Message:    newMessageView(o.Index, o.Message),
	}
}
