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
	// ErrMissingTraceID 表示消息没有 trace id，无法关联反馈。
	ErrMissingTraceID = fmt.Errorf("%w: trace id is required for feedback", ErrValidation)
	// ErrScoreOutOfRange 表示评分不在 1 到 10 之间。
	ErrScoreOutOfRange = fmt.Errorf("%w: score must be between 1 and 10", ErrValidation)
)

const (
	minScore = 1
	maxScore = 10

	feedbackSavedMessage = "✅ Feedback saved successfully!"
)

// FeedbackRequest 是一次反馈提交。SessionID 为空时不写反馈日志。
type FeedbackRequest struct {
	SessionID string  `json:"-"`
	TraceID   *string `json:"trace_id"`
	Score     int     `json:"score"`
	Comment   string  `json:"comment"`
}

// FeedbackOutcome 描述反馈是否被远程服务接受。
type FeedbackOutcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// FeedbackService 定义了反馈提交接口。
type FeedbackService interface {
	Submit(ctx context.Context, req FeedbackRequest) (*FeedbackOutcome, error)
}

type feedbackService struct {
	repo   repository.SessionRepository
	client report.Client
	sink   logsink.Recorder
	now    Clock
}

// NewFeedbackService 创建一个新的 FeedbackService。
func NewFeedbackService(repo repository.SessionRepository, client report.Client, sink logsink.Recorder, now Clock) FeedbackService {
	if now == nil {
		now = time.Now
	}
	if sink == nil {
		sink = logsink.Nop{}
	}
	return &feedbackService{repo: repo, client: client, sink: sink, now: now}
}

// ValidateFeedback 在任何网络调用之前校验反馈。
func ValidateFeedback(req FeedbackRequest) error {
	if req.TraceID == nil || strings.TrimSpace(*req.TraceID) == "" {
		return ErrMissingTraceID
	}
	if req.Score < minScore || req.Score > maxScore {
		return fmt.Errorf("%w: got %d", ErrScoreOutOfRange, req.Score)
	}
	return nil
}

// Submit 校验并提交反馈。远程失败转换为 Success=false 的结果，返回的 error 只用于校验失败。
func (s *feedbackService) Submit(ctx context.Context, req FeedbackRequest) (*FeedbackOutcome, error) {
	if err := ValidateFeedback(req); err != nil {
		return nil, err
	}

	fb := report.Feedback{
		TraceID:      *req.TraceID,
		Score:        req.Score,
		FeedbackType: report.FeedbackTypeUserSatisfaction,
	}
	comment := strings.TrimSpace(req.Comment)
	if comment != "" {
		fb.Comment = &comment
	}

	ctx = context.WithoutCancel(ctx)
	if err := s.client.SubmitFeedback(ctx, fb); err != nil {
		log.Warnw("反馈提交失败", "traceId", fb.TraceID, "error", err)
		return &FeedbackOutcome{Success: false, Message: feedbackFailure(err)}, nil
	}

	log.Infow("反馈提交成功", "traceId", fb.TraceID, "score", fb.Score)
	s.record(ctx, req, comment)
	return &FeedbackOutcome{Success: true, Message: feedbackSavedMessage}, nil
}

// record 把反馈写入日志表，报告类型和用户输入从会话记录中查找。
func (s *feedbackService) record(ctx context.Context, req FeedbackRequest, comment string) {
	if req.SessionID == "" {
		return
	}
	row := model.FeedbackLogRow{
		Timestamp:    s.now(),
		SessionID:    req.SessionID,
		Rating:       req.Score,
		FeedbackText: comment,
	}
	if s.repo != nil {
		if session, err := s.repo.Get(ctx, req.SessionID); err == nil {
			if msg, input := session.FindByTraceID(*req.TraceID); msg != nil {
				row.ReportType = msg.ReportType
				row.UserInput = input
			}
		} else {
			log.Warnf("查找反馈对应的会话失败: %v", err)
		}
	}
	s.sink.LogFeedback(ctx, row)
}

func feedbackFailure(err error) string {
	var httpErr *report.HTTPError
	if errors.As(err, &httpErr) {
		return "❌ Failed to save feedback: " + httpErr.Body
	}
	return fmt.Sprintf("❌ An error occurred while submitting feedback: %v", err)
}
