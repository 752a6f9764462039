package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"teamboard/pkg/circuitbreaker"
	"teamboard/pkg/metrics"
	"teamboard/pkg/trace"
)

var (
	ErrUnavailable = errors.New("classifier unavailable")
)

// StatusError is a non-2xx answer from the classifier.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("classifier %s returned %d: %s", e.Endpoint, e.Code, e.Body)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker // 熔断器
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	cbConfig := circuitbreaker.Config{
		FailureThreshold:    3,                // 连续失败3次后打开
		SuccessThreshold:    2,                // 半开状态下成功2次后关闭
		Timeout:             30 * time.Second, // 打开状态持续30秒
		HalfOpenMaxRequests: 2,
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.Warn("Classifier circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cb:     circuitbreaker.NewCircuitBreaker(cbConfig),
		logger: logger,
	}
}

// Chat classifies a message (plus optional file text and history).
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.post(ctx, "/api/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Analyze asks the classifier for a short insight on a task description.
func (c *Client) Analyze(ctx context.Context, description string) (*AnalyzeResponse, error) {
	var out AnalyzeResponse
	if err := c.post(ctx, "/api/analyze", AnalyzeRequest{Description: description}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, endpoint string, in, out any) error {
	err := c.cb.ExecuteContext(ctx, func(ctx context.Context) error {
		start := time.Now()
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(b))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		// 传播 trace_id
		if traceID := trace.FromContext(ctx); traceID != "" {
			req.Header.Set(trace.HeaderName(), traceID)
		}

		resp, err := c.httpClient.Do(req)
		latency := time.Since(start)
		if err != nil {
			metrics.RecordAgentCallLatency(endpoint, "error", latency)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			metrics.RecordAgentCallLatency(endpoint, fmt.Sprintf("%d", resp.StatusCode), latency)
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: string(body)}
		}

		metrics.RecordAgentCallLatency(endpoint, "success", latency)
		return json.NewDecoder(resp.Body).Decode(out)
	})

	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err != nil {
		c.logger.Warn("Classifier call failed", zap.String("endpoint", endpoint), zap.Error(err))
	}
	return err
}
