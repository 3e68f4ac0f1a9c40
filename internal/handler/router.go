package handler

import (
	"github.com/gin-gonic/gin"

	"report-desk/internal/middleware"
	"report-desk/pkg/token"
)

// Handlers 汇总所有控制器。
type Handlers struct {
	Session  *SessionHandler
	Report   *ReportHandler
	Feedback *FeedbackHandler
	Health   *HealthHandler
	Chat     *ChatHandler
}

// RegisterRoutes 注册全部路由。
func RegisterRoutes(r *gin.Engine, h Handlers, jwtManager *token.JWTManager) {
	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/health", h.Health.Check)
		apiV1.POST("/sessions", h.Session.Create)

		// 需要会话令牌的路由
		me := apiV1.Group("/sessions/me")
		me.Use(middleware.AuthMiddleware(jwtManager))
		{
			me.GET("", h.Session.Get)
			me.DELETE("/messages", h.Session.Clear)
			me.GET("/messages/:index/artifact", h.Session.DownloadArtifact)
			me.POST("/reports", h.Report.Generate)
			me.POST("/feedback", h.Feedback.Submit)
		}
	}

	// Chat 路由 (WebSocket)，令牌放在路径中
	r.GET("/chat/:token", h.Chat.Handle)
}
