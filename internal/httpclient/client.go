// Package httpclient wraps net/http with per-call timeouts, bounded retries
// with exponential backoff, and redacted logging. Retry exhaustion and
// permanent failures surface as ordinary *Error values so callers can branch
// on the failure kind without string matching.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/logger"
)

// maxBodyBytes bounds how much of a response body is read and logged.
const maxBodyBytes = 1 << 20

// ErrorKind classifies a request failure.
type ErrorKind int

const (
	// KindTransport covers connection failures and timeouts.
	KindTransport ErrorKind = iota
	// KindStatus covers non-2xx HTTP responses.
	KindStatus
	// KindDecode covers responses whose body is not the expected JSON shape.
	KindDecode
)

// Error is the typed failure returned by all client operations.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Op         string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("%s: http status %d", e.Op, e.StatusCode)
	case KindDecode:
		return fmt.Sprintf("%s: decode response: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth retrying: transport errors,
// timeouts, HTTP 429, and 5xx. Other 4xx are permanent.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTransport:
		return true
	case KindStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	default:
		return false
	}
}

// Config holds the retry and timeout policy.
type Config struct {
	// Timeout applies to every individual HTTP call.
	Timeout time.Duration
	// MaxAttempts is the total number of tries per request, including the
	// first one.
	MaxAttempts int
	// BackoffInitial and BackoffMax bound the exponential backoff between
	// attempts; jitter is applied by the backoff implementation.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// DefaultConfig returns the policy used when fields are left zero.
func DefaultConfig() Config {
	return Config{
		Timeout:        20 * time.Second,
		MaxAttempts:    5,
		BackoffInitial: 500 * time.Millisecond,
		BackoffMax:     10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = def.BackoffInitial
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = def.BackoffMax
	}
	return c
}

// Client is a retrying JSON HTTP client bound to an optional base URL.
type Client struct {
	baseURL string
	http    *http.Client
	cfg     Config
	log     *logrus.Logger
}

// New creates a client. baseURL may be empty when callers pass absolute URLs.
func New(baseURL string, cfg Config, log *logrus.Logger) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		log:     log,
	}
}

func (c *Client) buildURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if c.baseURL == "" {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// GetJSON performs a GET and decodes the response body into a JSON object.
func (c *Client) GetJSON(ctx context.Context, path string) (map[string]any, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	op := "GET " + logger.RedactURL(c.buildURL(path))
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &Error{Kind: KindDecode, Op: op, Err: err}
	}
	return out, nil
}

// GetJSONAny performs a GET and decodes the response body into any JSON value
// (object or array).
func (c *Client) GetJSONAny(ctx context.Context, path string) (any, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	op := "GET " + logger.RedactURL(c.buildURL(path))
	var out any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &Error{Kind: KindDecode, Op: op, Err: err}
	}
	switch out.(type) {
	case map[string]any, []any:
		return out, nil
	default:
		return nil, &Error{Kind: KindDecode, Op: op, Err: fmt.Errorf("expected JSON object or array")}
	}
}

// PostJSON marshals body and performs a POST with the given extra headers.
func (c *Client) PostJSON(ctx context.Context, path string, body any, headers map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return &Error{Kind: KindDecode, Op: "POST " + logger.RedactURL(c.buildURL(path)), Err: err}
	}
	_, err = c.do(ctx, http.MethodPost, path, data, headers)
	return err
}

// do runs one request with the retry policy and returns the response body.
func (c *Client) do(ctx context.Context, method, path string, body []byte, headers map[string]string) ([]byte, error) {
	u := c.buildURL(path)
	op := method + " " + logger.RedactURL(u)

	var out []byte
	attempt := 0

	operation := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(&Error{Kind: KindTransport, Op: op, Err: err})
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.log.WithFields(logrus.Fields{
				"op":      op,
				"attempt": attempt,
				"error":   err.Error(),
			}).Warn("http transport error")
			return &Error{Kind: KindTransport, Op: op, Err: err}
		}
		defer resp.Body.Close()

		data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			c.log.WithFields(logrus.Fields{
				"op":      op,
				"attempt": attempt,
				"error":   readErr.Error(),
			}).Warn("http body read error")
			return &Error{Kind: KindTransport, Op: op, Err: readErr}
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			out = data
			return nil
		}

		herr := &Error{Kind: KindStatus, StatusCode: resp.StatusCode, Op: op}
		if herr.Retryable() {
			c.log.WithFields(logrus.Fields{
				"op":      op,
				"attempt": attempt,
				"status":  resp.StatusCode,
			}).Warn("http retryable status")
			return herr
		}
		c.log.WithFields(logrus.Fields{
			"op":     op,
			"status": resp.StatusCode,
		}).Error("http permanent failure")
		return backoff.Permanent(herr)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.BackoffInitial
	policy.MaxInterval = c.cfg.BackoffMax
	policy.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	wrapped := backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(c.cfg.MaxAttempts-1)),
		ctx,
	)

	if err := backoff.Retry(operation, wrapped); err != nil {
		return nil, err
	}
	return out, nil
}
