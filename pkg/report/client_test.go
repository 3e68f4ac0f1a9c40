package report

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-desk/internal/config"
	"report-desk/internal/model"
)

func testConfig(baseURL string) config.ReportConfig {
	return config.ReportConfig{
		BaseURL:         baseURL,
		GenerateTimeout: 2 * time.Second,
		FeedbackTimeout: 2 * time.Second,
		HealthTimeout:   time.Second,
	}
}

func TestGenerateReport_Success(t *testing.T) {
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate-report", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set(TraceHeader, "t-123")
		_, _ = w.Write([]byte("%PDF-1.4..."))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	res, err := client.GenerateReport(context.Background(), model.PendingRequest{
		ReportType:   model.ReportTypeWeekly,
		OutputFormat: model.OutputFormatPDF,
		Question:     "weekly report",
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("%PDF-1.4..."), res.Body)
	require.NotNil(t, res.TraceID)
	assert.Equal(t, "t-123", *res.TraceID)
	assert.Equal(t, "application/pdf", res.ContentType)

	// 未设置的可选字段不出现在请求体中
	assert.Equal(t, map[string]interface{}{
		"report_type":   "weekly",
		"output_format": "pdf",
		"question":      "weekly report",
	}, payload)
}

func TestGenerateReport_OptionalFieldsAndMissingTrace(t *testing.T) {
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte("docx-bytes"))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL + "/"))
	res, err := client.GenerateReport(context.Background(), model.PendingRequest{
		ReportType:   model.ReportTypeExecutive,
		OutputFormat: model.OutputFormatDOCX,
		Question:     "exec summary",
		Author:       "Kim",
		StartDate:    "2026-01-01",
		EndDate:      "2026-01-07",
	})
	require.NoError(t, err)
	assert.Nil(t, res.TraceID)
	assert.Equal(t, "Kim", payload["author"])
	assert.Equal(t, "2026-01-01", payload["start_date"])
	assert.Equal(t, "2026-01-07", payload["end_date"])
}

func TestGenerateReport_HTTPErrorWithDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"question is required"}`))
	}))
	defer server.Close()

	_, err := NewClient(testConfig(server.URL)).GenerateReport(context.Background(), model.PendingRequest{Question: "x"})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.StatusCode)
	assert.Equal(t, "question is required", httpErr.Detail)
}

func TestGenerateReport_HTTPErrorRawBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	_, err := NewClient(testConfig(server.URL)).GenerateReport(context.Background(), model.PendingRequest{Question: "x"})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.Equal(t, "upstream exploded", httpErr.Detail)
}

func TestGenerateReport_NonStringDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":[{"loc":["body","question"]}]}`))
	}))
	defer server.Close()

	_, err := NewClient(testConfig(server.URL)).GenerateReport(context.Background(), model.PendingRequest{Question: "x"})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, `[{"loc":["body","question"]}]`, httpErr.Detail)
}

func TestGenerateReport_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.GenerateTimeout = 50 * time.Millisecond
	_, err := NewClient(cfg).GenerateReport(context.Background(), model.PendingRequest{Question: "x"})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestGenerateReport_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(testConfig(url)).GenerateReport(context.Background(), model.PendingRequest{Question: "x"})
	assert.ErrorIs(t, err, ErrConnection)
}

func TestSubmitFeedback(t *testing.T) {
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/feedback", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := NewClient(testConfig(server.URL)).SubmitFeedback(context.Background(), Feedback{TraceID: "t-1", Score: 8})
	require.NoError(t, err)
	assert.Equal(t, "t-1", payload["trace_id"])
	assert.Equal(t, float64(8), payload["score"])
	assert.Equal(t, FeedbackTypeUserSatisfaction, payload["feedback_type"])
	_, hasComment := payload["comment"]
	assert.False(t, hasComment)
}

func TestSubmitFeedback_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("trace not found"))
	}))
	defer server.Close()

	err := NewClient(testConfig(server.URL)).SubmitFeedback(context.Background(), Feedback{TraceID: "t-1", Score: 8})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "trace not found", httpErr.Body)
}

func TestHealth(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer bad.Close()
	gone := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	goneURL := gone.URL
	gone.Close()

	ctx := context.Background()
	assert.Equal(t, HealthConnected, NewClient(testConfig(ok.URL)).Health(ctx))
	assert.Equal(t, HealthError, NewClient(testConfig(bad.URL)).Health(ctx))
	assert.Equal(t, HealthDisconnected, NewClient(testConfig(goneURL)).Health(ctx))
}
