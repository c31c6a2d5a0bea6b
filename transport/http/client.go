// Package transporthttp is the shared REST transport for the presence and
// profile fetchers: bounded retries for 5xx and 429, Retry-After support,
// an optional bearer token and a per-request correlation id.
package transporthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ceskypane/statuscard/internal/backoff"
	"github.com/google/uuid"
)

var (
	ErrUnauthorized = errors.New("transport/http: unauthorized")
	ErrTooManyRetry = errors.New("transport/http: too many requests after retries")
)

type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider for long-lived personal tokens. An empty
// token sends no Authorization header.
type StaticToken string

func (t StaticToken) AccessToken(context.Context) (string, error) {
	return strings.TrimSpace(string(t)), nil
}

type Config struct {
	MaxRetries int
	MinBackoff time.Duration
	MaxBackoff time.Duration

	CorrelationIDHeader string
	CorrelationID       func() string
	UserAgent           string
}

type Request struct {
	Method        string
	URL           string
	Headers       map[string]string
	Body          []byte
	CorrelationID string
}

type Response struct {
	StatusCode int
	Headers    stdhttp.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// DecodeJSON unmarshals the response body into out.
func (r Response) DecodeJSON(out any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return fmt.Errorf("transport/http: empty body (status %d)", r.StatusCode)
	}

	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("transport/http: decode body: %w", err)
	}

	return nil
}

type Client struct {
	httpClient    *stdhttp.Client
	tokenProvider TokenProvider
	cfg           Config
	after         backoff.After
}

func NewClient(httpClient *stdhttp.Client, tokenProvider TokenProvider, cfg Config) *Client {
	if httpClient == nil {
		httpClient = stdhttp.DefaultClient
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 100 * time.Millisecond
	}

	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 2 * time.Second
	}

	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}

	if cfg.CorrelationIDHeader == "" {
		cfg.CorrelationIDHeader = "X-Correlation-Id"
	}

	if cfg.CorrelationID == nil {
		cfg.CorrelationID = uuid.NewString
	}

	return &Client{
		httpClient:    httpClient,
		tokenProvider: tokenProvider,
		cfg:           cfg,
	}
}

// Get issues a GET with an Accept: application/json header.
func (c *Client) Get(ctx context.Context, url string) (Response, error) {
	return c.Request(ctx, Request{
		Method:  stdhttp.MethodGet,
		URL:     url,
		Headers: map[string]string{"Accept": "application/json"},
	})
}

// Request sends req, retrying transport errors, 5xx and 429 up to
// MaxRetries times. Retry delays stop as soon as ctx is done.
func (c *Client) Request(ctx context.Context, req Request) (Response, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.accessToken(ctx)
		if err != nil {
			return Response{}, err
		}

		resp, err := c.doRequest(ctx, req, token)

		delay, retry, err := c.classify(ctx, resp, err, attempt)
		if !retry {
			return resp, err
		}

		if !backoff.Wait(ctx, delay, c.after) {
			return Response{}, ctx.Err()
		}
	}
}

// classify reports whether a result should be retried and after what
// delay. Final results carry the error the caller sees.
func (c *Client) classify(ctx context.Context, resp Response, err error, attempt int) (time.Duration, bool, error) {
	exhausted := attempt >= c.cfg.MaxRetries

	switch {
	case err != nil:
		if ctx.Err() != nil || exhausted {
			return 0, false, err
		}

		return c.backoff(attempt), true, nil
	case resp.StatusCode == stdhttp.StatusUnauthorized:
		return 0, false, ErrUnauthorized
	case resp.StatusCode == stdhttp.StatusTooManyRequests:
		if exhausted {
			return 0, false, ErrTooManyRetry
		}

		return retryAfterDelay(resp.Headers.Get("Retry-After"), c.backoff(attempt)), true, nil
	case resp.StatusCode >= 500 && resp.StatusCode <= 599:
		if exhausted {
			return 0, false, fmt.Errorf("transport/http: upstream %d after retries", resp.StatusCode)
		}

		return c.backoff(attempt), true, nil
	default:
		return 0, false, nil
	}
}

func (c *Client) doRequest(ctx context.Context, req Request, accessToken string) (Response, error) {
	method := req.Method
	if method == "" {
		method = stdhttp.MethodGet
	}

	httpReq, err := stdhttp.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return Response{}, err
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if accessToken != "" && httpReq.Header.Get("Authorization") == "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}

	if c.cfg.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = c.cfg.CorrelationID()
	}
	if correlationID != "" {
		httpReq.Header.Set(c.cfg.CorrelationIDHeader, correlationID)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, err
	}

	return Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header.Clone(),
		Body:       body,
	}, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.tokenProvider == nil {
		return "", nil
	}

	token, err := c.tokenProvider.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("transport/http: access token: %w", err)
	}

	return token, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	return backoff.Exponential(attempt, c.cfg.MinBackoff, c.cfg.MaxBackoff)
}

func retryAfterDelay(header string, fallback time.Duration) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return fallback
	}

	if sec, err := strconv.Atoi(header); err == nil {
		if sec < 0 {
			return fallback
		}

		return time.Duration(sec) * time.Second
	}

	if ts, err := stdhttp.ParseTime(header); err == nil {
		delay := time.Until(ts)
		if delay > 0 {
			return delay
		}
	}

	return fallback
}
