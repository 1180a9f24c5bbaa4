package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/creco/imaikura/pkg/config"
	"github.com/creco/imaikura/pkg/logger"
)

// NetworkErrorMessage is reported when every attempt failed below the HTTP layer
const NetworkErrorMessage = "ネットワークエラーが発生しました"

// APIError describes a request that ultimately failed
type APIError struct {
	Status  int // HTTP status; 0 for network-level failures
	Message string
	Network bool
	Err     error // underlying transport error, if any
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Client is an HTTP client wrapper with retry logic, pacing and logging
// ⭐ SSOT: 外部 HTTP リクエストはすべてこのクライアント経由
type Client struct {
	httpClient  *http.Client
	logger      *logger.Logger
	retryConfig RetryConfig
	limiter     *rate.Limiter
	sleep       func(ctx context.Context, d time.Duration) error
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// New creates a new HTTP client from the rate provider settings
// ⭐ SSOT: http.Client インスタンスはここでのみ生成
func New(cfg *config.Config, log *logger.Logger) *Client {
	timeout := cfg.Rates.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
		retryConfig: RetryConfig{
			MaxRetries:   cfg.Rates.MaxRetries,
			InitialDelay: cfg.Rates.RetryDelay,
			MaxDelay:     30 * time.Second,
		},
		sleep: wait,
	}

	if cfg.Rates.RequestsPerSecond > 0 {
		burst := int(cfg.Rates.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.Rates.RequestsPerSecond), burst)
	}

	return c
}

// Get performs a GET request. Any non-2xx final status is returned as *APIError
// and the response body is already closed in that case.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

// GetJSON performs a GET request and decodes the JSON body into dest
func (c *Client) GetJSON(ctx context.Context, url string, dest interface{}) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// do executes the request with retry logic and logging
func (c *Client) do(req *http.Request) (*http.Response, error) {
	startTime := time.Now()
	url := req.URL.String()

	c.logger.WithFields(map[string]interface{}{
		"method": req.Method,
		"url":    url,
	}).Debug("HTTP request started")

	resp, err := c.doWithRetry(req, c.retryConfig.MaxRetries)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"method":   req.Method,
			"url":      url,
			"duration": duration,
			"error":    err.Error(),
		}).Warn("HTTP request failed")
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"method":      req.Method,
		"url":         url,
		"status_code": resp.StatusCode,
		"duration":    duration,
	}).Debug("HTTP request completed")

	return resp, nil
}

// doWithRetry retries 5xx responses and transport failures with exponential
// backoff (InitialDelay * 2^attempt, capped at MaxDelay). 4xx responses are
// never retried.
func (c *Client) doWithRetry(req *http.Request, maxRetries int) (*http.Response, error) {
	ctx := req.Context()
	delay := c.retryConfig.InitialDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		isLastAttempt := attempt == maxRetries

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait failed: %w", err)
			}
		}

		resp, err := c.httpClient.Do(req)

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if isLastAttempt {
				return nil, &APIError{Message: NetworkErrorMessage, Network: true, Err: err}
			}
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil
		default:
			drain(resp)
			apiErr := &APIError{
				Status:  resp.StatusCode,
				Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			}
			if !IsRetryableStatus(resp.StatusCode) || isLastAttempt {
				return nil, apiErr
			}
		}

		c.logger.WithFields(map[string]interface{}{
			"attempt": attempt + 1,
			"delay":   delay,
			"url":     req.URL.String(),
		}).Warn("Retrying HTTP request")

		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}

		delay *= 2
		if c.retryConfig.MaxDelay > 0 && delay > c.retryConfig.MaxDelay {
			delay = c.retryConfig.MaxDelay
		}
	}

	return nil, &APIError{Message: "リトライ上限に達しました"}
}

// IsRetryableStatus reports whether an HTTP status should be retried.
// Only server errors are; 4xx (including 429) fails fast.
func IsRetryableStatus(statusCode int) bool {
	return statusCode >= 500
}

// IsNetworkError reports whether err is a network-level *APIError
func IsNetworkError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Network
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
