// Package upstream holds the HTTP clients of the CRM and payments services.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"

	"gitlab.com/timkado/api/account-cache-service/internal/adapters/config"
	"gitlab.com/timkado/api/account-cache-service/internal/adapters/metrics"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
	"gitlab.com/timkado/api/account-cache-service/pkg/contextkeys"
)

// errNotFound is returned by getJSON on 404 so callers can decide what absence means.
var errNotFound = errors.New("upstream resource not found")

// Request outcomes for metrics.
const (
	outcomeSuccess     = "success"
	outcomeNotFound    = "not_found"
	outcomeRejected    = "rejected"
	outcomeUnavailable = "unavailable"
)

// maxErrorBodyBytes bounds how much of an error response is kept for logging.
const maxErrorBodyBytes = 512

// Client performs JSON GETs against one upstream service with retries, an overall deadline and a
// circuit breaker.
type Client struct {
	name    string
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *retryablehttp.Client
	breaker *gobreaker.CircuitBreaker
	logger  domain.Logger
}

// NewClient builds the client for the named service from its config.
func NewClient(name string, cfg config.UpstreamServiceConfig, logger domain.Logger) *Client {
	if logger == nil {
		panic("logger cannot be nil in upstream.NewClient")
	}
	logger = logger.With("upstream", name)

	rc := &retryablehttp.Client{
		HTTPClient:   &http.Client{Timeout: time.Duration(cfg.AttemptTimeoutMs) * time.Millisecond},
		RetryWaitMin: time.Duration(cfg.RetryWaitMinMs) * time.Millisecond,
		RetryWaitMax: time.Duration(cfg.RetryWaitMaxMs) * time.Millisecond,
		RetryMax:     cfg.RetryMax,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
		Logger:       &leveledLogger{logger: logger},
	}

	threshold := uint32(cfg.BreakerFailureThreshold)
	if threshold == 0 {
		threshold = 5
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: time.Duration(cfg.BreakerOpenSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			metrics.IncrementCircuitBreakerStateChange(name, to.String())
			logger.Warn(context.Background(), "Upstream circuit breaker state changed", "from", from.String(), "to", to.String())
		},
		// Rejections and absences are answers from a healthy service.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrUpstreamRejected) || errors.Is(err, errNotFound)
		},
	})

	return &Client{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		http:    rc,
		breaker: breaker,
		logger:  logger,
	}
}

// Name returns the upstream service name.
func (c *Client) Name() string {
	return c.name
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// getJSON fetches path and decodes the response body into out. Errors wrap domain.ErrUpstreamUnavailable,
// domain.ErrUpstreamRejected or errNotFound.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	start := time.Now()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, path, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %s circuit breaker: %v", domain.ErrUpstreamUnavailable, c.name, err)
	}

	outcome := outcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, errNotFound):
		outcome = outcomeNotFound
	case errors.Is(err, domain.ErrUpstreamRejected):
		outcome = outcomeRejected
	default:
		outcome = outcomeUnavailable
	}
	metrics.ObserveUpstreamRequest(c.name, outcome, time.Since(start))

	if err != nil && outcome != outcomeNotFound {
		c.logger.Warn(ctx, "Upstream request failed", "path", path, "outcome", outcome, "error", err)
	}
	return err
}

func (c *Client) do(ctx context.Context, path string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: building %s request: %v", domain.ErrUpstreamRejected, c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if requestID, ok := ctx.Value(contextkeys.RequestIDKey).(string); ok && requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return fmt.Errorf("%w: %s request failed: %v", domain.ErrUpstreamUnavailable, c.name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: %s returned malformed JSON: %v", domain.ErrUpstreamRejected, c.name, err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return errNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s responded %d: %s", domain.ErrUpstreamUnavailable, c.name, resp.StatusCode, readSnippet(resp.Body))
	default:
		return fmt.Errorf("%w: %s responded %d: %s", domain.ErrUpstreamRejected, c.name, resp.StatusCode, readSnippet(resp.Body))
	}
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	return strings.TrimSpace(string(b))
}

// leveledLogger routes retryablehttp's logs through domain.Logger.
type leveledLogger struct {
	logger domain.Logger
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(context.Background(), msg, keysAndValues...)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(context.Background(), msg, keysAndValues...)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(context.Background(), msg, keysAndValues...)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(context.Background(), msg, keysAndValues...)
}

var _ retryablehttp.LeveledLogger = (*leveledLogger)(nil)
