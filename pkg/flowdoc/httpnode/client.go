package httpnode

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	fderrors "github.com/randalmurphal/flowdoc/pkg/flowdoc/errors"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/params"
)

// DefaultMaxBody caps how much of a response body is read.
const DefaultMaxBody = 10 << 20

// maxErrorBody caps the response text kept on an HTTPError.
const maxErrorBody = 200

// Response is the result of a node call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Output returns the response in the shape of the node's output params,
// ready to be used as template variables downstream.
func (r *Response) Output() map[string]any {
	headers := make(map[string]any, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}
	return map[string]any{
		"status":  r.StatusCode,
		"headers": headers,
		"body":    string(r.Body),
	}
}

// Client executes HTTP node trees.
type Client struct {
	http     *http.Client
	retry    fderrors.RetryConfig
	retryAll bool
	maxBody  int64
	logger   *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithRetry sets the retry policy for every method, POST and PUT included. Only
// transient failures are retried.
func WithRetry(cfg fderrors.RetryConfig) ClientOption {
	return func(cl *Client) {
		cl.retry = cfg
		cl.retryAll = true
	}
}

// WithMaxBody caps the response body size.
func WithMaxBody(n int64) ClientOption {
	return func(cl *Client) {
		if n > 0 {
			cl.maxBody = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates a Client using http.DefaultClient. Without WithRetry,
// safe methods use DefaultRetry and the rest are tried once.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:    http.DefaultClient,
		retry:   fderrors.DefaultRetry,
		maxBody: DefaultMaxBody,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do issues the request described by t. Each attempt is bounded by the
// node timeout. A non-2xx status is returned as *errors.HTTPError.
func (c *Client) Do(ctx context.Context, t params.Tree, vars map[string]any) (*Response, error) {
	timeout := time.Duration(TimeoutMillis(t)) * time.Millisecond
	retry := c.retry
	if !c.retryAll && !safe(Method(t)) {
		retry = fderrors.NoRetry
	}

	res := fderrors.WithRetryContext(ctx, retry, func(ctx context.Context) (*Response, error) {
		return c.attempt(ctx, t, vars, timeout)
	})
	if res.Err != nil {
		if c.logger != nil {
			c.logger.Warn("http node call failed",
				slog.String("url", URL(t)),
				slog.Int("attempts", res.Attempts),
				slog.String("error", res.Err.Error()),
			)
		}
		return nil, res.Err
	}
	if c.logger != nil {
		c.logger.Debug("http node call",
			slog.String("url", URL(t)),
			slog.Int("status", res.Value.StatusCode),
			slog.Int("attempts", res.Attempts),
		)
	}
	return res.Value, nil
}

func (c *Client) attempt(ctx context.Context, t params.Tree, vars map[string]any, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := BuildRequest(ctx, t, vars)
	if err != nil {
		return nil, fderrors.Permanent(err, "build request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &fderrors.TimeoutError{Operation: req.Method + " " + req.URL.Redacted(), Duration: timeout}
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, fderrors.Transient(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &fderrors.HTTPError{
			StatusCode: resp.StatusCode,
			Method:     req.Method,
			Endpoint:   req.URL.Redacted(),
			Message:    truncate(body, maxErrorBody),
		}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// safe follows RFC 9110 section 9.2.1.
func safe(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// truncate returns at most n bytes of b without splitting a rune.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return string(b[:n])
}
