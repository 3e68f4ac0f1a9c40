package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"report-desk/internal/service"
	"report-desk/pkg/log"
	"report-desk/pkg/token"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// 推送给客户端的帧类型
const (
	frameSubmit     = "submit"
	frameProgress   = "progress"
	frameMessage    = "message"
	frameCompletion = "completion"
	frameError      = "error"
)

// ChatHandler 负责 WebSocket 连接上的报告生成，生成过程中推送进度提示。
type ChatHandler struct {
	reportService service.ReportService
	jwtManager    *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(reportService service.ReportService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{reportService: reportService, jwtManager: jwtManager}
}

// chatRequest 是客户端发送的一帧：{"type":"submit","input":"...", ...报告设置}
type chatRequest struct {
	Type  string `json:"type"`
	Input string `json:"input"`
	service.RequestConfig
}

// Handle 处理一个传入的 WebSocket 连接。
func (h *ChatHandler) Handle(c *gin.Context) {
	claims, err := h.jwtManager.VerifyToken(c.Param("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}
	sessionID := claims.SessionID

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，会话: %s", sessionID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			break
		}

		var req chatRequest
		if err := json.Unmarshal(message, &req); err != nil || req.Type != frameSubmit {
			writeFrame(conn, gin.H{"type": frameError, "error": "unsupported message, expected {\"type\":\"submit\"}"})
			continue
		}

		progress := func(step service.ProgressStep, text string) {
			writeFrame(conn, gin.H{"type": frameProgress, "step": step, "message": text})
		}
		outcome, err := h.reportService.Submit(c.Request.Context(), sessionID, req.Input, req.RequestConfig, progress)
		if err != nil && outcome == nil {
			if errors.Is(err, service.ErrRequestPending) {
				log.Infof("会话 %s 已有进行中的请求，忽略重复提交", sessionID)
			}
			writeFrame(conn, gin.H{"type": frameError, "error": err.Error()})
			continue
		}
		if err != nil {
			log.Errorf("报告已生成但会话保存失败: %v", err)
		}

		writeFrame(conn, gin.H{"type": frameMessage, "outcome": newOutcomeView(outcome)})
		writeFrame(conn, gin.H{
			"type":      frameCompletion,
			"status":    "finished",
			"timestamp": time.Now().UnixMilli(),
		})
	}
}

// writeFrame 写一帧 JSON。连接断开时写入失败只记录日志，生成结果已经保存在会话中。
func writeFrame(conn *websocket.Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Errorf("序列化 WebSocket 帧失败: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warnf("写入 WebSocket 帧失败: %v", err)
	}
}
