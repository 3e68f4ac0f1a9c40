package service

import (
	"context"

	"report-desk/internal/logsink"
	"report-desk/pkg/report"
)

// SinkStatuser 返回日志 sink 的状态。
type SinkStatuser interface {
	Status(ctx context.Context) logsink.Status
}

// HealthReport 是健康检查的返回体。
type HealthReport struct {
	Report report.HealthStatus `json:"report_service"`
	Sink   *logsink.Status     `json:"log_sink,omitempty"`
}

// HealthService 定义了健康检查接口。
type HealthService interface {
	Check(ctx context.Context) HealthReport
}

type healthService struct {
	client report.Client
	sink   SinkStatuser
}

// NewHealthService 创建一个新的 HealthService，sink 可以为 nil。
func NewHealthService(client report.Client, sink SinkStatuser) HealthService {
	return &healthService{client: client, sink: sink}
}

// Check 探测报告服务并汇总 sink 状态，从不失败。
func (s *healthService) Check(ctx context.Context) HealthReport {
	r := HealthReport{Report: s.client.Health(ctx)}
	if s.sink != nil {
		st := s.sink.Status(ctx)
		r.Sink = &st
	}
	return r
}
