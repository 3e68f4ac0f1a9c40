// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"report-desk/internal/model"
	"report-desk/internal/repository"
)

var (
	// ErrValidation 是所有输入校验错误的根。
	ErrValidation = errors.New("validation failed")
	// ErrRequestPending 表示会话中已有未完成的生成请求。
	ErrRequestPending = errors.New("a report request is already in progress")
	// ErrArtifactNotFound 表示指定的消息没有附带文档。
	ErrArtifactNotFound = errors.New("artifact not found")
)

// Clock 返回当前时间，测试中可替换。
type Clock func() time.Time

// SessionLocks 为每个会话提供一把互斥锁，保证"检查是否有待处理请求再写入"是原子的。
type SessionLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewSessionLocks() *SessionLocks {
	return &SessionLocks{locks: make(map[string]*lockEntry)}
}

// lock 锁住一个会话，返回解锁函数。
func (l *SessionLocks) lock(sessionID string) func() {
	l.mu.Lock()
	e, ok := l.locks[sessionID]
	if !ok {
		e = &lockEntry{}
		l.locks[sessionID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, sessionID)
		}
		l.mu.Unlock()
	}
}

// SessionService 定义了会话的业务逻辑接口。
type SessionService interface {
	Create(ctx context.Context) (*model.Session, error)
	Get(ctx context.Context, sessionID string) (*model.Session, error)
	Clear(ctx context.Context, sessionID string) error
	Artifact(ctx context.Context, sessionID string, index int) (*model.Artifact, error)
}

type sessionService struct {
	repo  repository.SessionRepository
	locks *SessionLocks
	now   Clock
}

// NewSessionService 创建一个新的 SessionService。
func NewSessionService(repo repository.SessionRepository, locks *SessionLocks, now Clock) SessionService {
	if now == nil {
		now = time.Now
	}
	return &sessionService{repo: repo, locks: locks, now: now}
}

// Create 创建并保存一个新会话。
func (s *sessionService) Create(ctx context.Context) (*model.Session, error) {
	session := model.NewSession(s.now())
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get 读取会话并校验其状态一致性。
func (s *sessionService) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	return session, nil
}

// Clear 清空对话记录。生成过程中不允许清空。
func (s *sessionService) Clear(ctx context.Context, sessionID string) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Generating() {
		return ErrRequestPending
	}
	session.Clear(s.now())
	return s.repo.Save(ctx, session)
}

// Artifact 返回第 index 条消息附带的文档。
func (s *sessionService) Artifact(ctx context.Context, sessionID string, index int) (*model.Artifact, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(session.Messages) || session.Messages[index].Artifact == nil {
		return nil, ErrArtifactNotFound
	}
	return session.Messages[index].Artifact, nil
}
