// Package analysis talks to the remote diagnosis API: it builds the request,
// retries on rate limiting, and classifies every failure as an *Error.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/dotcommander/errfix/internal/models"
)

// Defaults mirror the app settings defaults.
const (
	DefaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultModel          = "gemini-2.5-flash"
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRetries     = 2
	DefaultRetryDelay     = 3 * time.Second

	defaultRateLimit = 1.0 // requests per second
	defaultBurst     = 2

	maxResponseBytes = 10 << 20
)

// Config holds client settings. Zero values take the defaults above, except
// MaxRetries which is used as given (negative means zero).
type Config struct {
	APIKey         string `json:"-"`
	Model          string
	BaseURL        string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration

	// RateLimit paces outgoing requests; 0 uses the default, rate.Inf disables.
	RateLimit  rate.Limit
	HTTPClient *http.Client
}

// Client performs analysis calls.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	inFlight   atomic.Int32
}

// NewClient returns a Client for cfg.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = rate.Limit(defaultRateLimit)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		cfg:        cfg,
		httpClient: hc,
		limiter:    rate.NewLimiter(cfg.RateLimit, defaultBurst),
	}
}

// HasAPIKey reports whether a credential is configured.
func (c *Client) HasAPIKey() bool {
	return c.cfg.APIKey != ""
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// InFlight reports whether any request is outstanding.
func (c *Client) InFlight() bool {
	return c.inFlight.Load() > 0
}

// Analyze requests a diagnosis for e. source may be empty. Rate-limited
// attempts are retried after RetryDelay, at most MaxRetries times; every other
// failure is returned immediately. All errors are *Error.
func (c *Client) Analyze(ctx context.Context, e *models.CapturedError, source string) (*models.AnalysisResult, error) {
	if c.cfg.APIKey == "" {
		return nil, errConfig()
	}
	if e == nil {
		return nil, &Error{Kind: KindConfig, Message: "no error selected"}
	}
	body, err := BuildRequestBody(e, source)
	if err != nil {
		return nil, &Error{Kind: KindConfig, Err: err, Message: fmt.Sprintf("build request: %v", err)}
	}

	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	attempt := 0
	var raw []byte
	op := func() error {
		attempt++
		b, err := c.post(ctx, c.cfg.APIKey, body)
		if err == nil {
			raw = b
			return nil
		}
		if IsKind(err, KindRateLimited) {
			slog.Info("analysis rate limited", "attempt", attempt, "max_retries", c.cfg.MaxRetries)
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.RetryDelay), uint64(c.cfg.MaxRetries)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		if _, ok := asError(err); ok {
			return nil, err
		}
		return nil, errNetwork(err)
	}

	result, err := ParseResponse(raw)
	if err != nil {
		slog.Warn("analysis response unreadable", "error", err, "payload", truncate(string(raw), 2000))
		return nil, err
	}
	return result, nil
}

// TestCredential sends one minimal, non-retried request with key and reports
// whether the key was accepted along with an operator-facing message.
func (c *Client) TestCredential(ctx context.Context, key string) (bool, string) {
	if strings.TrimSpace(key) == "" {
		return false, errConfig().Message
	}
	body, err := buildProbeBody()
	if err != nil {
		return false, err.Error()
	}

	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	if _, err := c.post(ctx, key, body); err != nil {
		return false, err.Error()
	}
	return true, "API key is valid."
}

func (c *Client) endpoint(key string) string {
	return fmt.Sprintf("%s/%s:generateContent?key=%s", c.cfg.BaseURL, url.PathEscape(c.cfg.Model), url.QueryEscape(key))
}

// post performs one attempt bounded by RequestTimeout.
func (c *Client) post(ctx context.Context, key string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errNetwork(fmt.Errorf("rate limiter: %w", err))
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint(key), bytes.NewReader(body))
	if err != nil {
		return nil, errNetwork(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errNetwork(fmt.Errorf("request timed out after %s", c.cfg.RequestTimeout))
		}
		// Strip the URL so the key never reaches logs or the operator.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, errNetwork(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errNetwork(fmt.Errorf("read response: %w", err))
	}

	code, msg := apiError(raw)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || code == http.StatusTooManyRequests:
		return nil, errRateLimited(resp.StatusCode)
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return nil, errInvalidCredential(resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, errHTTP(resp.StatusCode, msg)
	case code != 0:
		return nil, errHTTP(code, msg)
	}
	return raw, nil
}

func asError(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
