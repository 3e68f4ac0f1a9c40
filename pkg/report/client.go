// Package report provides a client for the remote report-generation service.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"report-desk/internal/config"
	"report-desk/internal/model"
)

// TraceHeader carries the trace identifier of one generation call.
const TraceHeader = "X-Trace-ID"

// FeedbackTypeUserSatisfaction is the only feedback category the service accepts from the desk.
const FeedbackTypeUserSatisfaction = "user_satisfaction"

var (
	// ErrTimeout means the call did not finish within its fixed timeout.
	ErrTimeout = errors.New("report service call timed out")
	// ErrConnection means the service could not be reached at all.
	ErrConnection = errors.New("report service unreachable")
)

// HTTPError is returned for any non-200 response.
type HTTPError struct {
	StatusCode int
	Body       string
	// Detail is the JSON "detail" field when present, otherwise the raw body.
	Detail string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("report service returned status %d: %s", e.StatusCode, e.Detail)
}

// HealthStatus is the coarse connectivity of the service.
type HealthStatus string

const (
	HealthConnected    HealthStatus = "connected"
	HealthError        HealthStatus = "error"
	HealthDisconnected HealthStatus = "disconnected"
)

// GenerateResult is a successful generation response.
type GenerateResult struct {
	Body        []byte
	ContentType string
	TraceID     *string
	Elapsed     time.Duration
}

// Feedback is the payload of POST /feedback.
type Feedback struct {
	TraceID      string  `json:"trace_id"`
	Score        int     `json:"score"`
	Comment      *string `json:"comment,omitempty"`
	FeedbackType string  `json:"feedback_type"`
}

// Client defines the operations the desk needs from the report service.
type Client interface {
	Health(ctx context.Context) HealthStatus
	GenerateReport(ctx context.Context, req model.PendingRequest) (*GenerateResult, error)
	SubmitFeedback(ctx context.Context, fb Feedback) error
}

type httpClient struct {
	cfg    config.ReportConfig
	client *http.Client
}

// NewClient creates a report service client. Timeouts come from cfg and are applied per call.
func NewClient(cfg config.ReportConfig) Client {
	return &httpClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

func (c *httpClient) url(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

// Health probes GET /health. Failures only change the returned status.
func (c *httpClient) Health(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/health"), nil)
	if err != nil {
		return HealthDisconnected
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return HealthDisconnected
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return HealthError
	}
	return HealthConnected
}

// GenerateReport calls POST /generate-report and returns the raw document bytes.
// The payload omits every optional field that is not set.
func (c *httpClient) GenerateReport(ctx context.Context, pending model.PendingRequest) (*GenerateResult, error) {
	reqBytes, err := json.Marshal(pending)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.GenerateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/generate-report"), bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return nil, classify(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(resp.StatusCode, body)
	}

	result := &GenerateResult{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Elapsed:     elapsed,
	}
	if trace := resp.Header.Get(TraceHeader); trace != "" {
		result.TraceID = &trace
	}
	return result, nil
}

// SubmitFeedback calls POST /feedback.
func (c *httpClient) SubmitFeedback(ctx context.Context, fb Feedback) error {
	if fb.FeedbackType == "" {
		fb.FeedbackType = FeedbackTypeUserSatisfaction
	}
	reqBytes, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.FeedbackTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/feedback"), bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create feedback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return newHTTPError(resp.StatusCode, body)
	}
	return nil
}

func newHTTPError(status int, body []byte) *HTTPError {
	e := &HTTPError{StatusCode: status, Body: string(body), Detail: string(body)}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return e
	}
	raw, ok := parsed["detail"]
	if !ok {
		return e
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		e.Detail = s
	} else {
		e.Detail = string(raw)
	}
	return e
}

// classify maps transport errors onto ErrTimeout / ErrConnection; anything else is returned as is.
func classify(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return err
}
