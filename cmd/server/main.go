// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"report-desk/internal/config"
	"report-desk/internal/handler"
	"report-desk/internal/logsink"
	"report-desk/internal/middleware"
	"report-desk/internal/repository"
	"report-desk/internal/service"
	"report-desk/pkg/database"
	"report-desk/pkg/kafka"
	"report-desk/pkg/log"
	"report-desk/pkg/report"
	"report-desk/pkg/token"
)

// 生成中的会话超过远程调用超时再加上这段时间，视为被遗弃
const staleGrace = time.Minute

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml", ".secrets.toml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化会话存储
	sessionRepo := newSessionRepository(cfg)

	// 4. 初始化日志 sink，首次使用时才会认证
	sink, err := logsink.NewFromConfig(&cfg)
	if err != nil {
		log.Fatalf("日志 sink 配置错误: %v", err)
	}

	// 5. 选择日志投递方式：直接写入或经由 Kafka
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	var recorder logsink.Recorder = sink
	if cfg.Sink.Dispatch == "kafka" {
		publisher := kafka.NewPublisher(cfg.Kafka)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Errorf("关闭 Kafka 生产者失败: %v", err)
			}
		}()
		recorder = publisher
		go kafka.StartConsumer(consumerCtx, cfg.Kafka, sink)
	}

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.Session.TTL)
	reportClient := report.NewClient(cfg.Report)
	locks := service.NewSessionLocks()
	sessionService := service.NewSessionService(sessionRepo, locks, nil)
	reportService := service.NewReportService(sessionRepo, reportClient, recorder, locks, service.ReportOptions{
		ProgressDelay: cfg.Report.ProgressDelay,
		StaleAfter:    cfg.Report.GenerateTimeout + staleGrace,
	})
	feedbackService := service.NewFeedbackService(sessionRepo, reportClient, recorder, nil)
	healthService := service.NewHealthService(reportClient, sink)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	handler.RegisterRoutes(r, handler.Handlers{
		Session:  handler.NewSessionHandler(sessionService, jwtManager),
		Report:   handler.NewReportHandler(reportService),
		Feedback: handler.NewFeedbackHandler(feedbackService),
		Health:   handler.NewHealthHandler(healthService),
		Chat:     handler.NewChatHandler(reportService, jwtManager),
	}, jwtManager)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s，报告服务地址 %s", srv.Addr, cfg.Report.BaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	stopConsumer()
	log.Info("服务已优雅关闭")
}

// newSessionRepository 按 session.store 选择会话存储，Redis 不可用时直接退出。
func newSessionRepository(cfg config.Config) repository.SessionRepository {
	switch cfg.Session.Store {
	case "memory":
		log.Warnf("使用进程内会话存储，重启后会话将丢失")
		return repository.NewMemorySessionRepository(cfg.Session.TTL)
	case "", "redis":
		rdb, err := database.OpenRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Redis 初始化失败: %v", err)
		}
		return repository.NewRedisSessionRepository(rdb, cfg.Session.TTL)
	default:
		log.Fatalf("未知的会话存储类型: %s", cfg.Session.Store)
		return nil
	}
}
