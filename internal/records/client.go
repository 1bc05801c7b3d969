package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/farm-records-service/internal/observability"
	"github.com/kjstillabower/farm-records-service/internal/traffic"
)

var (
	ErrUnauthorized    = errors.New("invalid API key")
	ErrNotFound        = errors.New("record not found")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrCircuitOpen     = errors.New("circuit breaker open")
)

// Operation labels used in metrics and logs.
const (
	OpFetch  = "fetch"
	OpGet    = "get"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// HTTPClient talks to the record backend over JSON/HTTP with retries and an
// optional circuit breaker.
type HTTPClient struct {
	apiKey         string
	projectID      string
	baseURL        string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *gobreaker.CircuitBreaker
}

func NewHTTPClient(baseURL, apiKey, projectID string, timeout time.Duration) (*HTTPClient, error) {
	return NewHTTPClientWithRetry(baseURL, apiKey, projectID, timeout, 1, 100*time.Millisecond, 2*time.Second)
}

func NewHTTPClientWithRetry(baseURL, apiKey, projectID string, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*HTTPClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrUnauthorized)
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid records API URL %q", baseURL)
	}
	if retryAttempts <= 0 {
		retryAttempts = 1
	}

	return &HTTPClient{
		apiKey:         apiKey,
		projectID:      projectID,
		baseURL:        strings.TrimRight(baseURL, "/"),
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker routes every attempt through cb. Only retryable failures
// (5xx, 429, timeouts, network) count against the breaker.
func (c *HTTPClient) SetCircuitBreaker(cb *gobreaker.CircuitBreaker) {
	c.breaker = cb
}

// BreakerState reports the breaker state, or "disabled".
func (c *HTTPClient) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// NewBreaker builds the breaker used in front of the record backend. It opens
// after failureThreshold consecutive failures and lets one call through again after timeout.
func NewBreaker(name string, failureThreshold uint32, timeout time.Duration, onChange func(from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	if failureThreshold == 0 {
		failureThreshold = 5
	}
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
	}
	if onChange != nil {
		st.OnStateChange = func(_ string, from, to gobreaker.State) {
			onChange(from, to)
		}
	}
	return gobreaker.NewCircuitBreaker(st)
}

func (c *HTTPClient) FetchRecords(ctx context.Context, table string, params FetchParams) (*FetchResponse, error) {
	var out FetchResponse
	if err := c.do(ctx, OpFetch, table, http.MethodPost, []string{"tables", table, "records", "query"}, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetRecordByID(ctx context.Context, table string, id int, params FetchParams) (*GetResponse, error) {
	var out GetResponse
	path := []string{"tables", table, "records", strconv.Itoa(id), "query"}
	if err := c.do(ctx, OpGet, table, http.MethodPost, path, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateRecord(ctx context.Context, table string, req MutationRequest) (*MutationResponse, error) {
	var out MutationResponse
	if err := c.do(ctx, OpCreate, table, http.MethodPost, []string{"tables", table, "records"}, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateRecord(ctx context.Context, table string, req MutationRequest) (*MutationResponse, error) {
	var out MutationResponse
	if err := c.do(ctx, OpUpdate, table, http.MethodPatch, []string{"tables", table, "records"}, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteRecord(ctx context.Context, table string, req DeleteRequest) (*MutationResponse, error) {
	var out MutationResponse
	if err := c.do(ctx, OpDelete, table, http.MethodDelete, []string{"tables", table, "records"}, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do runs one logical call and records its final outcome. Only reads are
// retried; a mutation is sent once because a lost response may hide a commit.
func (c *HTTPClient) do(ctx context.Context, op, table, method string, path []string, body, out interface{}) error {
	attempts := c.retryAttempts
	if !isRead(op) {
		attempts = 1
	}
	err := c.withRetry(ctx, op, table, attempts, func() error {
		return c.attempt(ctx, op, table, method, path, body, out)
	})
	if err != nil {
		traffic.RecordError()
		observability.RecordsAPIErrorsTotal.WithLabelValues(table, op, string(CategorizeError(err))).Inc()
		return fmt.Errorf("%s %s: %w", op, table, err)
	}
	traffic.RecordSuccess()
	return nil
}

func isRead(op string) bool {
	return op == OpFetch || op == OpGet
}

func (c *HTTPClient) withRetry(ctx context.Context, op, table string, attempts int, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			observability.RecordsAPIRetriesTotal.WithLabelValues(table, op).Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if !c.isRetryable(err) {
			return err
		}
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *HTTPClient) attempt(ctx context.Context, op, table, method string, path []string, body, out interface{}) error {
	if c.breaker == nil {
		return c.callAPI(ctx, op, table, method, path, body, out)
	}

	var callErr error
	_, err := c.breaker.Execute(func() (interface{}, error) {
		callErr = c.callAPI(ctx, op, table, method, path, body, out)
		if callErr != nil && c.isRetryable(callErr) {
			return nil, callErr
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		return err
	}
	return callErr
}

func (c *HTTPClient) callAPI(ctx context.Context, op, table, method string, path []string, body, out interface{}) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, method, path, body)
	if err != nil {
		observability.RecordsAPICallsTotal.WithLabelValues(table, op, "error").Inc()
		return fmt.Errorf("build request: %w", err)
	}

	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.RecordsAPICallsTotal.WithLabelValues(table, op, "error").Inc()
		observability.RecordsAPIDuration.WithLabelValues(table, op, "error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.RecordsAPICallsTotal.WithLabelValues(table, op, status).Inc()
	observability.RecordsAPIDuration.WithLabelValues(table, op, status).Observe(time.Since(start).Seconds())

	if err := c.handleErrorResponse(resp); err != nil {
		return err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *HTTPClient) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded") ||
		strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "http request failed") {
		return true
	}
	return false
}

func (c *HTTPClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func (c *HTTPClient) buildRequest(ctx context.Context, method string, path []string, body interface{}) (*http.Request, error) {
	endpoint, err := url.JoinPath(c.baseURL, path...)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.projectID != "" {
		req.Header.Set("X-Project-ID", c.projectID)
	}
	return req, nil
}

// handleErrorResponse maps transport-level statuses to sentinel errors. 400
// and 422 carry the backend envelope with success=false and are decoded as
// ordinary responses.
func (c *HTTPClient) handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrUnauthorized, resp.StatusCode)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return nil
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
