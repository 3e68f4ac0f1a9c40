// Package logsink 把请求日志和反馈日志追加到两张只追加的外部表中。
//
// 写日志永远是尽力而为：任何失败都只记录到 zap 和 Status 中，从不返回给调用方。
package logsink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"report-desk/internal/model"
	"report-desk/pkg/log"
)

// ErrDisabled 由 Opener 返回，表示缺少必要配置，sink 在整个进程生命周期内禁用。
var ErrDisabled = errors.New("log sink disabled")

// Workbook 是一个包含多张表的存储后端（Google 电子表格或 MySQL）。
type Workbook interface {
	ID() string
	URL() string
	SheetTitles(ctx context.Context) ([]string, error)
	// AddSheet 创建一张表并写入表头行。
	AddSheet(ctx context.Context, title string, header []string) error
	AppendRow(ctx context.Context, title string, cells []string) error
}

// Opener 用凭证完成认证并打开 Workbook。
type Opener func(ctx context.Context, credentials []byte) (Workbook, error)

// Recorder 是业务层依赖的日志接口。
type Recorder interface {
	LogRequest(ctx context.Context, row model.RequestLogRow)
	LogFeedback(ctx context.Context, row model.FeedbackLogRow)
}

// State 是 sink 的初始化状态。
type State string

const (
	StateUninitialized State = "uninitialized"
	StateDisabled      State = "disabled"
	StateReady         State = "ready"
	StateFailed        State = "failed"
)

// Status 是可查询的健康信息。
type Status struct {
	State             State      `json:"state"`
	Reason            string     `json:"reason,omitempty"`
	CredentialsSource string     `json:"credentials_source,omitempty"`
	SpreadsheetID     string     `json:"spreadsheet_id,omitempty"`
	SpreadsheetURL    string     `json:"spreadsheet_url,omitempty"`
	Appended          int64      `json:"appended"`
	Failed            int64      `json:"failed"`
	LastError         string     `json:"last_error,omitempty"`
	LastErrorAt       *time.Time `json:"last_error_at,omitempty"`
}

// Options 配置一个 Sink。
type Options struct {
	Credentials       []byte
	CredentialsSource string
	Open              Opener
	// Timeout 约束初始化和每次追加，默认 30 秒。
	Timeout time.Duration
}

// Sink 在首次使用时惰性初始化，之后在所有会话间共享。
type Sink struct {
	opts Options
	once sync.Once

	mu     sync.Mutex
	wb     Workbook
	status Status
}

// New 创建一个尚未初始化的 Sink。
func New(opts Options) *Sink {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Sink{
		opts:   opts,
		status: Status{State: StateUninitialized, CredentialsSource: opts.CredentialsSource},
	}
}

// EnsureTables 确保 Logs 和 Feedback 两张表存在。已存在的表保持原样，重复调用不会产生重复的表或表头。
func EnsureTables(ctx context.Context, wb Workbook) error {
	titles, err := wb.SheetTitles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sheets: %w", err)
	}
	existing := make(map[string]bool, len(titles))
	for _, t := range titles {
		existing[t] = true
	}

	tables := []struct {
		title  string
		header []string
	}{
		{model.RequestLogTable, model.RequestLogHeader},
		{model.FeedbackLogTable, model.FeedbackLogHeader},
	}
	for _, tbl := range tables {
		if existing[tbl.title] {
			continue
		}
		if err := wb.AddSheet(ctx, tbl.title, tbl.header); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", tbl.title, err)
		}
		log.Infof("日志表 '%s' 不存在，已创建", tbl.title)
	}
	return nil
}

func (s *Sink) init(ctx context.Context) {
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeout)
		defer cancel()

		if s.opts.Open == nil {
			s.setInitState(StateDisabled, "no backend configured", nil)
			return
		}
		wb, err := s.opts.Open(ctx, s.opts.Credentials)
		if errors.Is(err, ErrDisabled) {
			log.Warnf("日志 sink 已禁用: %v", err)
			s.setInitState(StateDisabled, err.Error(), nil)
			return
		}
		if err != nil {
			log.Error("日志 sink 初始化失败", err)
			s.setInitState(StateFailed, "open failed", err)
			return
		}
		if err := EnsureTables(ctx, wb); err != nil {
			log.Error("日志表初始化失败", err)
			s.setInitState(StateFailed, "ensure tables failed", err)
			return
		}

		s.mu.Lock()
		s.wb = wb
		s.status.State = StateReady
		s.status.Reason = ""
		s.status.SpreadsheetID = wb.ID()
		s.status.SpreadsheetURL = wb.URL()
		s.mu.Unlock()
		log.Infow("日志 sink 初始化完成", "spreadsheetId", wb.ID(), "url", wb.URL())
	})
}

func (s *Sink) setInitState(state State, reason string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = state
	s.status.Reason = reason
	if err != nil {
		s.recordErrorLocked(err)
	}
}

func (s *Sink) recordErrorLocked(err error) {
	now := time.Now()
	s.status.LastError = err.Error()
	s.status.LastErrorAt = &now
}

// Status 返回当前状态的副本，必要时触发初始化。
func (s *Sink) Status(ctx context.Context) Status {
	s.init(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	if st.LastErrorAt != nil {
		at := *st.LastErrorAt
		st.LastErrorAt = &at
	}
	return st
}

// LogRequest 追加一行请求日志。
func (s *Sink) LogRequest(ctx context.Context, row model.RequestLogRow) {
	s.append(ctx, model.RequestLogTable, row.Cells())
}

// LogFeedback 追加一行反馈日志。
func (s *Sink) LogFeedback(ctx context.Context, row model.FeedbackLogRow) {
	s.append(ctx, model.FeedbackLogTable, row.Cells())
}

func (s *Sink) append(ctx context.Context, table string, cells []string) {
	s.init(ctx)

	s.mu.Lock()
	wb := s.wb
	s.mu.Unlock()
	if wb == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeout)
	defer cancel()

	err := wb.AppendRow(ctx, table, cells)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.status.Failed++
		s.recordErrorLocked(err)
		log.Warnw("日志写入失败", "table", table, "error", err)
		return
	}
	s.status.Appended++
	log.Debugf("日志已写入表 %s", table)
}

// Nop 是什么都不做的 Recorder。
type Nop struct{}

func (Nop) LogRequest(context.Context, model.RequestLogRow)   {}
func (Nop) LogFeedback(context.Context, model.FeedbackLogRow) {}
