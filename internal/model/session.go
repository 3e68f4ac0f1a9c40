// Package model 包含了应用的数据模型定义。
package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role 是对话消息的发送方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message 代表会话记录中的一条消息，追加后不再修改。
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Timestamp  time.Time  `json:"timestamp"`
	Artifact   *Artifact  `json:"artifact,omitempty"`
	TraceID    *string    `json:"trace_id,omitempty"`
	ReportType ReportType `json:"report_type,omitempty"`
}

// PendingRequest 是一次生成调用的参数。可选字段为空时表示未设置。
type PendingRequest struct {
	ReportType   ReportType   `json:"report_type"`
	OutputFormat OutputFormat `json:"output_format"`
	Question     string       `json:"question"`
	Author       string       `json:"author,omitempty"`
	StartDate    string       `json:"start_date,omitempty"`
	EndDate      string       `json:"end_date,omitempty"`
}

// RequestState 是会话内请求生命周期的状态。
type RequestState string

const (
	StateIdle     RequestState = "idle"
	StatePending  RequestState = "pending"
	StateInFlight RequestState = "in_flight"
)

// ErrInconsistentSession 表示状态与 PendingRequest 不一致。
var ErrInconsistentSession = errors.New("session state disagrees with pending request")

// Session 对应一个浏览器会话。
type Session struct {
	ID        string          `json:"id"`
	Messages  []Message       `json:"messages"`
	State     RequestState    `json:"state"`
	Pending   *PendingRequest `json:"pending,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewSession 创建一个空闲状态的新会话，ID 在整个生命周期内不变。
func NewSession(now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Messages:  []Message{},
		State:     StateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Generating 当且仅当存在未完成的请求时为 true。
func (s *Session) Generating() bool {
	return s.State != StateIdle
}

// Validate 拒绝 State 与 Pending 不一致的会话。
func (s *Session) Validate() error {
	switch s.State {
	case StateIdle:
		if s.Pending != nil {
			return ErrInconsistentSession
		}
	case StatePending, StateInFlight:
		if s.Pending == nil {
			return ErrInconsistentSession
		}
	default:
		return ErrInconsistentSession
	}
	return nil
}

// Begin 执行 Idle → Pending，同时记录用户消息。
func (s *Session) Begin(req PendingRequest, now time.Time) {
	s.Messages = append(s.Messages, Message{Role: RoleUser, Content: req.Question, Timestamp: now})
	s.Pending = &req
	s.State = StatePending
	s.UpdatedAt = now
}

// Dispatch 执行 Pending → InFlight。
func (s *Session) Dispatch(now time.Time) {
	s.State = StateInFlight
	s.UpdatedAt = now
}

// Resolve 追加唯一的结果消息并回到 Idle。
func (s *Session) Resolve(msg Message, now time.Time) {
	s.Messages = append(s.Messages, msg)
	s.Pending = nil
	s.State = StateIdle
	s.UpdatedAt = now
}

// Clear 清空对话记录。
func (s *Session) Clear(now time.Time) {
	s.Messages = []Message{}
	s.UpdatedAt = now
}

// FindByTraceID 返回携带该 trace id 的 assistant 消息及其前一条用户输入。
func (s *Session) FindByTraceID(traceID string) (*Message, string) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Role != RoleAssistant || m.TraceID == nil || *m.TraceID != traceID {
			continue
		}
		var input string
		for j := i - 1; j >= 0; j-- {
			if s.Messages[j].Role == RoleUser {
				input = s.Messages[j].Content
				break
			}
		}
		return &s.Messages[i], input
	}
	return nil, ""
}
