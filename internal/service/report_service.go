package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"report-desk/internal/logsink"
	"report-desk/internal/model"
	"report-desk/internal/repository"
	"report-desk/pkg/log"
	"report-desk/pkg/report"
)

var (
	// ErrEmptyInput 表示用户输入为空。
	ErrEmptyInput = fmt.Errorf("%w: input must not be empty", ErrValidation)
	// ErrInvalidConfig 表示报告类型、输出格式或日期不合法。
	ErrInvalidConfig = fmt.Errorf("%w: invalid report configuration", ErrValidation)
)

// 固定的提示文案。
const (
	TimeoutMessage    = "❌ The request timed out. Narrow the date range or try again later."
	ConnectionMessage = "❌ Cannot reach the report server. Check that the server is running."
)

// OutcomeKind 标识一次生成调用的结果类别，同时写入日志表的 Status 列。
type OutcomeKind string

const (
	OutcomeSuccess         OutcomeKind = "success"
	OutcomeHTTPError       OutcomeKind = "http_error"
	OutcomeTimeout         OutcomeKind = "timeout"
	OutcomeConnectionError OutcomeKind = "connection_error"
	OutcomeUnexpected      OutcomeKind = "unexpected"
)

// ProgressStep 是进度提示的五个步骤，只用于展示。
type ProgressStep string

const (
	StepStart   ProgressStep = "start"
	StepSearch  ProgressStep = "search"
	StepAnalyze ProgressStep = "analyze"
	StepWrite   ProgressStep = "write"
	StepFinish  ProgressStep = "finish"
)

var progressText = map[ProgressStep]string{
	StepStart:   "🚀 Starting the report generation request...",
	StepSearch:  "🔍 Searching related documents...",
	StepAnalyze: "🤖 AI is analyzing the documents...",
	StepWrite:   "📝 Writing the report...",
	StepFinish:  "✅ Report generation complete!",
}

// ProgressFunc 接收进度提示。
type ProgressFunc func(step ProgressStep, text string)

// RequestConfig 是用户在侧边栏里选择的报告设置。
type RequestConfig struct {
	ReportType    model.ReportType   `json:"report_type"`
	OutputFormat  model.OutputFormat `json:"output_format"`
	Author        string             `json:"author"`
	UseDateFilter bool               `json:"use_date_filter"`
	StartDate     string             `json:"start_date"`
	EndDate       string             `json:"end_date"`
}

// RequestOutcome 是一次提交的最终结果。
type RequestOutcome struct {
	Kind       OutcomeKind   `json:"kind"`
	Message    model.Message `json:"message"`
	Index      int           `json:"index"`
	Elapsed    time.Duration `json:"elapsed"`
	StatusCode int           `json:"status_code,omitempty"`
}

// Success 判断是否生成成功。
func (o *RequestOutcome) Success() bool {
	return o.Kind == OutcomeSuccess
}

// ReportService 定义了报告生成的编排接口。
type ReportService interface {
	Submit(ctx context.Context, sessionID, input string, cfg RequestConfig, progress ProgressFunc) (*RequestOutcome, error)
}

// ReportOptions 控制进度提示节奏等非关键参数。
type ReportOptions struct {
	ProgressDelay time.Duration
	// StaleAfter 之后仍处于生成中的会话视为被遗弃，可以重新提交。
	StaleAfter time.Duration
	Now        Clock
}

type reportService struct {
	repo   repository.SessionRepository
	client report.Client
	sink   logsink.Recorder
	locks  *SessionLocks
	opts   ReportOptions
}

// NewReportService 创建一个新的 ReportService 实例。
func NewReportService(repo repository.SessionRepository, client report.Client, sink logsink.Recorder, locks *SessionLocks, opts ReportOptions) ReportService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if sink == nil {
		sink = logsink.Nop{}
	}
	return &reportService{repo: repo, client: client, sink: sink, locks: locks, opts: opts}
}

// BuildPendingRequest 校验输入并构造请求参数，未设置的可选字段保持为空。
func BuildPendingRequest(input string, cfg RequestConfig) (model.PendingRequest, error) {
	question := strings.TrimSpace(input)
	if question == "" {
		return model.PendingRequest{}, ErrEmptyInput
	}
	if cfg.ReportType == "" {
		cfg.ReportType = model.ReportTypeWeekly
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = model.OutputFormatPDF
	}
	if !cfg.ReportType.Valid() {
		return model.PendingRequest{}, fmt.Errorf("%w: report_type %q", ErrInvalidConfig, cfg.ReportType)
	}
	if !cfg.OutputFormat.Valid() {
		return model.PendingRequest{}, fmt.Errorf("%w: output_format %q", ErrInvalidConfig, cfg.OutputFormat)
	}

	req := model.PendingRequest{
		ReportType:   cfg.ReportType,
		OutputFormat: cfg.OutputFormat,
		Question:     question,
		Author:       strings.TrimSpace(cfg.Author),
	}
	if cfg.UseDateFilter {
		for _, d := range []string{cfg.StartDate, cfg.EndDate} {
			if d == "" {
				continue
			}
			if _, err := time.Parse(model.ISODate, d); err != nil {
				return model.PendingRequest{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidConfig, d)
			}
		}
		req.StartDate = cfg.StartDate
		req.EndDate = cfg.EndDate
	}
	return req, nil
}

// Submit 执行一次完整的请求生命周期：Idle → Pending → InFlight → Idle。
// 远程调用的所有失败都会转换为一条 assistant 消息；返回的 error 只表示校验或会话存取问题。
func (s *reportService) Submit(ctx context.Context, sessionID, input string, cfg RequestConfig, progress ProgressFunc) (*RequestOutcome, error) {
	pending, err := BuildPendingRequest(input, cfg)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(ProgressStep, string) {}
	}

	if err := s.begin(ctx, sessionID, pending); err != nil {
		return nil, err
	}

	// 调用一旦发出就不再随客户端断开而取消，只受固定超时约束
	callCtx := context.WithoutCancel(ctx)
	emit(progress, StepStart)
	s.pause()
	emit(progress, StepSearch)
	s.pause()
	emit(progress, StepAnalyze)

	start := time.Now()
	result, callErr := s.generate(callCtx, pending)
	elapsed := time.Since(start)

	emit(progress, StepWrite)
	outcome := s.buildOutcome(pending, result, callErr, elapsed)
	if outcome.Success() {
		emit(progress, StepFinish)
	}

	saveErr := s.resolve(callCtx, sessionID, outcome)

	row := model.RequestLogRow{
		Timestamp:    s.opts.Now(),
		UserInput:    pending.Question,
		ReportType:   pending.ReportType,
		OutputFormat: pending.OutputFormat,
		Author:       pending.Author,
		StartDate:    pending.StartDate,
		EndDate:      pending.EndDate,
		ResponseTime: elapsed,
		Status:       string(outcome.Kind),
		SessionID:    sessionID,
	}
	if callErr != nil {
		row.ErrorMessage = callErr.Error()
	}
	s.sink.LogRequest(callCtx, row)

	log.Infow("报告请求已完成",
		"sessionId", sessionID,
		"kind", outcome.Kind,
		"elapsed", elapsed.String(),
		"reportType", pending.ReportType,
		"outputFormat", pending.OutputFormat,
	)
	if saveErr != nil {
		return outcome, saveErr
	}
	return outcome, nil
}

// begin 在会话锁内完成重复提交检查并进入 InFlight。
func (s *reportService) begin(ctx context.Context, sessionID string, pending model.PendingRequest) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	now := s.opts.Now()
	if session.Generating() {
		if s.opts.StaleAfter <= 0 || now.Sub(session.UpdatedAt) < s.opts.StaleAfter {
			return ErrRequestPending
		}
		log.Warnf("会话 %s 的生成请求已超时遗留，重置为空闲", sessionID)
		session.Pending = nil
		session.State = model.StateIdle
	}
	if err := session.Validate(); err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}

	session.Begin(pending, now)
	if err := s.repo.Save(ctx, session); err != nil {
		return err
	}
	session.Dispatch(s.opts.Now())
	return s.repo.Save(ctx, session)
}

// resolve 追加结果消息并清除待处理请求。
func (s *reportService) resolve(ctx context.Context, sessionID string, outcome *RequestOutcome) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		log.Errorf("保存生成结果失败，会话 %s 不可用: %v", sessionID, err)
		return fmt.Errorf("failed to load session after generation: %w", err)
	}
	session.Resolve(outcome.Message, s.opts.Now())
	outcome.Index = len(session.Messages) - 1
	if err := s.repo.Save(ctx, session); err != nil {
		log.Errorf("保存生成结果失败: %v", err)
		return err
	}
	return nil
}

// generate 调用远程服务，把 panic 也转换为普通错误。
func (s *reportService) generate(ctx context.Context, pending model.PendingRequest) (result *report.GenerateResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic during report generation: %v", r)
		}
	}()
	return s.client.GenerateReport(ctx, pending)
}

func (s *reportService) buildOutcome(pending model.PendingRequest, result *report.GenerateResult, err error, elapsed time.Duration) *RequestOutcome {
	now := s.opts.Now()
	outcome := &RequestOutcome{Elapsed: elapsed}
	msg := model.Message{Role: model.RoleAssistant, Timestamp: now}

	var httpErr *report.HTTPError
	switch {
	case err == nil && result != nil:
		outcome.Kind = OutcomeSuccess
		outcome.StatusCode = 200
		msg.Content = fmt.Sprintf("✅ Report generated successfully! (%.2fs)", elapsed.Seconds())
		msg.Artifact = model.NewArtifact(result.Body, pending.ReportType, pending.OutputFormat, now)
		msg.TraceID = result.TraceID
		msg.ReportType = pending.ReportType
	case errors.As(err, &httpErr):
		outcome.Kind = OutcomeHTTPError
		outcome.StatusCode = httpErr.StatusCode
		msg.Content = fmt.Sprintf("❌ Request failed (status code: %d)\n\nDetail: %s", httpErr.StatusCode, httpErr.Detail)
	case errors.Is(err, report.ErrTimeout):
		outcome.Kind = OutcomeTimeout
		msg.Content = TimeoutMessage
	case errors.Is(err, report.ErrConnection):
		outcome.Kind = OutcomeConnectionError
		msg.Content = ConnectionMessage
	default:
		if err == nil {
			err = errors.New("empty response from report service")
		}
		outcome.Kind = OutcomeUnexpected
		msg.Content = fmt.Sprintf("❌ An unexpected error occurred: %v", err)
	}
	outcome.Message = msg
	return outcome
}

func (s *reportService) pause() {
	if s.opts.ProgressDelay > 0 {
		time.Sleep(s.opts.ProgressDelay)
	}
}

func emit(progress ProgressFunc, step ProgressStep) {
	progress(step, progressText[step])
}
