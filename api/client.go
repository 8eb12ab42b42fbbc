// Package api is the typed HTTP binding to the LegID backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-legid-client/internal/config"
	apperrors "github.com/jrsteele09/go-legid-client/internal/errors"
	"github.com/jrsteele09/go-legid-client/sessions"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	headerRequestID = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

// Client talks JSON over HTTP to the backend. Reads are retried on
// transport and 5xx failures; mutations and logins never are.
type Client struct {
	baseURL       *url.URL
	httpClient    *http.Client
	limiter       *rate.Limiter
	retryAttempts uint
	retryDelay    time.Duration
	logger        zerolog.Logger
	nowTime       func() time.Time
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithRateLimit caps outgoing requests per second. A non positive limit
// disables limiting.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithRetry sets the total attempts for idempotent reads and the base delay
// between them.
func WithRetry(attempts int, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.retryAttempts = uint(max(attempts, 1))
		c.retryDelay = delay
	}
}

func WithNowTime(nowTime func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowTime = nowTime
	}
}

func NewClient(baseURL string, options ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[NewClient] base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("[NewClient] invalid base URL %q", baseURL)
	}
	c := &Client{
		baseURL:       u,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		retryAttempts: 3,
		retryDelay:    200 * time.Millisecond,
		logger:        zerolog.Nop(),
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// NewClientFromConfig applies the API section of cfg before options.
func NewClientFromConfig(cfg config.APIConfig, options ...ClientOption) (*Client, error) {
	base := []ClientOption{
		WithHTTPClient(&http.Client{Timeout: cfg.GetRequestTimeout()}),
		WithRateLimit(cfg.GetRateLimit(), cfg.GetRateBurst()),
		WithRetry(cfg.GetRetryAttempts(), 200*time.Millisecond),
	}
	return NewClient(cfg.GetAPIBaseURL(), append(base, options...)...)
}

type request struct {
	op      string
	method  string
	path    string
	query   url.Values
	body    any
	session *sessions.Session
}

// do performs one HTTP exchange and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, transportError(r.op, err)
		}
	}

	u := c.baseURL.JoinPath(r.path)
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("[%s] marshal: %w", r.op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("[%s] new request: %w", r.op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(headerRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.session != nil && r.session.Token != "" {
		r.session.OAuth2Token().SetAuthHeader(req)
	}

	logger := c.logger.With().
		Str("op", r.op).
		Str("method", r.method).
		Str("path", u.Path).
		Str("request_id", requestID).
		Logger()

	start := c.nowTime()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn().Err(err).Msg("backend request failed")
		return nil, transportError(r.op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		logger.Warn().Err(err).Int("status", resp.StatusCode).Msg("reading backend response failed")
		return nil, transportError(r.op, err)
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("elapsed", c.nowTime().Sub(start)).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := statusError(r.op, resp.StatusCode, data)
		logger.Info().Int("status", resp.StatusCode).Str("code", apiErr.Code).Msg(apiErr.Detail)
		return nil, apiErr
	}
	return data, nil
}

// get is do with retries. Only ErrUnavailable is retried, and only while
// the caller's context is alive.
func (c *Client) get(ctx context.Context, r request) ([]byte, error) {
	r.method = http.MethodGet
	return retry.DoWithData(
		func() ([]byte, error) {
			return c.do(ctx, r)
		},
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && apperrors.Is(err, apperrors.ErrUnavailable)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug().Err(err).Uint("attempt", n+1).Str("op", r.op).Msg("retrying")
		}),
	)
}

func decode[T any](op string, data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, unexpected(op, err)
	}
	return &v, nil
}

// unexpected reports a 2xx body the client cannot understand. It is a
// backend fault, so it is classed as unavailable.
func unexpected(op string, cause error) error {
	return &Error{Op: op, Class: apperrors.ErrUnavailable, Detail: "unexpected response", Cause: cause}
}
