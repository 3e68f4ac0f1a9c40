package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-desk/internal/config"
	"report-desk/internal/model"
	"report-desk/internal/repository"
	"report-desk/pkg/report"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type fakeClient struct {
	mu            sync.Mutex
	generateCalls int
	feedbackCalls int
	lastFeedback  report.Feedback
	result        *report.GenerateResult
	err           error
	feedbackErr   error
	// block 不为 nil 时，GenerateReport 会等待它关闭
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeClient) Health(context.Context) report.HealthStatus { return report.HealthConnected }

func (f *fakeClient) GenerateReport(_ context.Context, _ model.PendingRequest) (*report.GenerateResult, error) {
	f.mu.Lock()
	f.generateCalls++
	f.mu.Unlock()
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	return f.result, f.err
}

func (f *fakeClient) SubmitFeedback(_ context.Context, fb report.Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedbackCalls++
	f.lastFeedback = fb
	return f.feedbackErr
}

type recordingSink struct {
	mu        sync.Mutex
	requests  []model.RequestLogRow
	feedbacks []model.FeedbackLogRow
}

func (r *recordingSink) LogRequest(_ context.Context, row model.RequestLogRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, row)
}

func (r *recordingSink) LogFeedback(_ context.Context, row model.FeedbackLogRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedbacks = append(r.feedbacks, row)
}

type fixture struct {
	repo     repository.SessionRepository
	sessions SessionService
	reports  ReportService
	sink     *recordingSink
	session  *model.Session
}

func newFixture(t *testing.T, client report.Client) *fixture {
	t.Helper()
	repo := repository.NewMemorySessionRepository(time.Hour)
	locks := NewSessionLocks()
	sink := &recordingSink{}
	f := &fixture{
		repo:     repo,
		sessions: NewSessionService(repo, locks, fixedClock),
		reports:  NewReportService(repo, client, sink, locks, ReportOptions{Now: fixedClock}),
		sink:     sink,
	}
	s, err := f.sessions.Create(context.Background())
	require.NoError(t, err)
	f.session = s
	return f
}

func traceID(s string) *string { return &s }

func TestSubmitSuccessAgainstReportServer(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate-report", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set(report.TraceHeader, "t-123")
		_, _ = w.Write([]byte("%PDF-1.7 fake"))
	}))
	defer server.Close()

	client := report.NewClient(config.ReportConfig{BaseURL: server.URL, GenerateTimeout: 5 * time.Second})
	f := newFixture(t, client)

	var steps []ProgressStep
	outcome, err := f.reports.Submit(context.Background(), f.session.ID, "weekly report", RequestConfig{
		ReportType:   model.ReportTypeWeekly,
		OutputFormat: model.OutputFormatPDF,
	}, func(step ProgressStep, _ string) { steps = append(steps, step) })
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Equal(t, 1, outcome.Index)
	assert.Equal(t, []ProgressStep{StepStart, StepSearch, StepAnalyze, StepWrite, StepFinish}, steps)
	assert.Equal(t, "weekly report", payload["question"])
	assert.NotContains(t, payload, "author")
	assert.NotContains(t, payload, "start_date")

	session, err := f.sessions.Get(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.False(t, session.Generating())
	require.Len(t, session.Messages, 2)

	msg := session.Messages[1]
	assert.Equal(t, model.RoleAssistant, msg.Role)
	assert.Contains(t, msg.Content, "✅ Report generated successfully!")
	require.NotNil(t, msg.TraceID)
	assert.Equal(t, "t-123", *msg.TraceID)
	require.NotNil(t, msg.Artifact)
	assert.Equal(t, []byte("%PDF-1.7 fake"), msg.Artifact.Data)
	assert.Equal(t, "weekly_report_20250314_092653.pdf", msg.Artifact.Filename)
	assert.Equal(t, "application/pdf", msg.Artifact.MIMEType)

	require.Len(t, f.sink.requests, 1)
	assert.Equal(t, "success", f.sink.requests[0].Status)
	assert.Equal(t, f.session.ID, f.sink.requests[0].SessionID)
}

func TestSubmitHTTPErrorKeepsStatusCode(t *testing.T) {
	client := &fakeClient{err: &report.HTTPError{StatusCode: 503, Body: `{"detail":"busy"}`, Detail: "busy"}}
	f := newFixture(t, client)

	outcome, err := f.reports.Submit(context.Background(), f.session.ID, "weekly report", RequestConfig{}, nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeHTTPError, outcome.Kind)
	assert.Equal(t, 503, outcome.StatusCode)
	assert.Contains(t, outcome.Message.Content, "503")
	assert.Contains(t, outcome.Message.Content, "busy")
	assert.Nil(t, outcome.Message.Artifact)
	require.Len(t, f.sink.requests, 1)
	assert.Equal(t, "http_error", f.sink.requests[0].Status)
	assert.NotEmpty(t, f.sink.requests[0].ErrorMessage)
}

func TestSubmitTimeoutClearsPending(t *testing.T) {
	client := &fakeClient{err: report.ErrTimeout}
	f := newFixture(t, client)

	outcome, err := f.reports.Submit(context.Background(), f.session.ID, "weekly report", RequestConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimeout, outcome.Kind)
	assert.Equal(t, TimeoutMessage, outcome.Message.Content)

	session, err := f.sessions.Get(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.Nil(t, session.Pending)
	assert.Equal(t, model.StateIdle, session.State)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, TimeoutMessage, session.Messages[1].Content)
}

func TestSubmitConnectionAndUnexpectedErrors(t *testing.T) {
	f := newFixture(t, &fakeClient{err: report.ErrConnection})
	outcome, err := f.reports.Submit(context.Background(), f.session.ID, "weekly report", RequestConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConnectionError, outcome.Kind)
	assert.Equal(t, ConnectionMessage, outcome.Message.Content)

	f = newFixture(t, &fakeClient{err: errors.New("boom")})
	outcome, err = f.reports.Submit(context.Background(), f.session.ID, "weekly report", RequestConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnexpected, outcome.Kind)
	assert.Equal(t, "❌ An unexpected error occurred: boom", outcome.Message.Content)
}

func TestSubmitWhilePendingIsNoOp(t *testing.T) {
	client := &fakeClient{
		result:  &report.GenerateResult{Body: []byte("doc")},
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	f := newFixture(t, client)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := f.reports.Submit(ctx, f.session.ID, "first", RequestConfig{}, nil)
		assert.NoError(t, err)
	}()
	<-client.entered

	_, err := f.reports.Submit(ctx, f.session.ID, "second", RequestConfig{}, nil)
	assert.ErrorIs(t, err, ErrRequestPending)
	assert.ErrorIs(t, f.sessions.Clear(ctx, f.session.ID), ErrRequestPending)

	session, err := f.sessions.Get(ctx, f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateInFlight, session.State)
	require.Len(t, session.Messages, 1)
	assert.Equal(t, "first", session.Messages[0].Content)

	close(client.block)
	<-done

	assert.Equal(t, 1, client.generateCalls)
	session, err = f.sessions.Get(ctx, f.session.ID)
	require.NoError(t, err)
	assert.Len(t, session.Messages, 2)
	assert.False(t, session.Generating())
}

func TestSubmitResetsStaleInFlightSession(t *testing.T) {
	repo := repository.NewMemorySessionRepository(time.Hour)
	locks := NewSessionLocks()
	client := &fakeClient{result: &report.GenerateResult{Body: []byte("doc")}}
	svc := NewReportService(repo, client, nil, locks, ReportOptions{Now: fixedClock, StaleAfter: time.Minute})

	stale := model.NewSession(fixedNow.Add(-time.Hour))
	stale.Begin(model.PendingRequest{ReportType: model.ReportTypeWeekly, OutputFormat: model.OutputFormatPDF, Question: "lost"}, fixedNow.Add(-time.Hour))
	stale.Dispatch(fixedNow.Add(-time.Hour))
	require.NoError(t, repo.Save(context.Background(), stale))

	outcome, err := svc.Submit(context.Background(), stale.ID, "retry", RequestConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Equal(t, 1, client.generateCalls)
}

func TestSubmitRecoversFromPanickingClient(t *testing.T) {
	f := newFixture(t, panicClient{&fakeClient{}})
	outcome, err := f.reports.Submit(context.Background(), f.session.ID, "weekly report", RequestConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnexpected, outcome.Kind)

	session, err := f.sessions.Get(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.False(t, session.Generating())
}

type panicClient struct{ *fakeClient }

func (panicClient) GenerateReport(context.Context, model.PendingRequest) (*report.GenerateResult, error) {
	panic("nil map")
}

func TestSubmitValidation(t *testing.T) {
	client := &fakeClient{}
	f := newFixture(t, client)
	ctx := context.Background()

	_, err := f.reports.Submit(ctx, f.session.ID, "   ", RequestConfig{}, nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.reports.Submit(ctx, f.session.ID, "weekly report", RequestConfig{ReportType: "monthly"}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = f.reports.Submit(ctx, f.session.ID, "weekly report", RequestConfig{UseDateFilter: true, StartDate: "14/03/2025"}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = f.reports.Submit(ctx, "missing", "weekly report", RequestConfig{}, nil)
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)

	assert.Zero(t, client.generateCalls)
}

func TestBuildPendingRequestDateFilter(t *testing.T) {
	req, err := BuildPendingRequest("q", RequestConfig{StartDate: "2025-01-01", EndDate: "2025-01-31"})
	require.NoError(t, err)
	assert.Empty(t, req.StartDate, "dates are ignored when the filter is off")
	assert.Equal(t, model.ReportTypeWeekly, req.ReportType)
	assert.Equal(t, model.OutputFormatPDF, req.OutputFormat)

	req, err = BuildPendingRequest("q", RequestConfig{
		ReportType:    model.ReportTypeExecutive,
		OutputFormat:  model.OutputFormatDOCX,
		Author:        " kim ",
		UseDateFilter: true,
		StartDate:     "2025-01-01",
		EndDate:       "2025-01-31",
	})
	require.NoError(t, err)
	assert.Equal(t, "kim", req.Author)
	assert.Equal(t, "2025-01-01", req.StartDate)
	assert.Equal(t, "2025-01-31", req.EndDate)
}
