package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"report-desk/internal/middleware"
	"report-desk/internal/service"
	"report-desk/pkg/log"
	"report-desk/pkg/token"
)

// SessionHandler 负责会话的创建、查看、清空和文档下载。
type SessionHandler struct {
	sessionService service.SessionService
	jwtManager     *token.JWTManager
}

// NewSessionHandler 创建一个新的 SessionHandler。
func NewSessionHandler(sessionService service.SessionService, jwtManager *token.JWTManager) *SessionHandler {
	return &SessionHandler{sessionService: sessionService, jwtManager: jwtManager}
}

// Create 创建一个新会话并签发会话令牌。
func (h *SessionHandler) Create(c *gin.Context) {
	session, err := h.sessionService.Create(c.Request.Context())
	if err != nil {
		log.Errorf("创建会话失败: %v", err)
		fail(c, err)
		return
	}
	tokenString, err := h.jwtManager.GenerateToken(session.ID)
	if err != nil {
		log.Errorf("签发会话令牌失败: %v", err)
		fail(c, err)
		return
	}
	log.Infof("新会话已创建: %s", session.ID)
	ok(c, gin.H{"session_id": session.ID, "token": tokenString})
}

// Get 返回当前会话的对话记录。
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.sessionService.Get(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, newSessionView(session))
}

// Clear 清空对话记录。
func (h *SessionHandler) Clear(c *gin.Context) {
	if err := h.sessionService.Clear(c.Request.Context(), middleware.SessionID(c)); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

// DownloadArtifact 以附件形式返回某条消息的文档。
func (h *SessionHandler) DownloadArtifact(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的消息序号", "data": nil})
		return
	}
	artifact, err := h.sessionService.Artifact(c.Request.Context(), middleware.SessionID(c), index)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	c.Data(http.StatusOK, artifact.MIMEType, artifact.Data)
}
