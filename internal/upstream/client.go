// Package upstream is the resource client for the store API. It attaches the
// session credential, issues the request and normalizes the
// {status, message, data} envelope into data or an apperr error.
package upstream

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

	"go.uber.org/zap"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/session"
)

const (
	statusSuccess = "success"
	maxBodyBytes  = 10 << 20
)

// Envelope is the response shape every store API endpoint uses.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Request describes one call to the store API.
type Request struct {
	Method   string
	Path     string // relative to the base URL, e.g. "/orders/abc"
	RawQuery string // already encoded
	Body     any    // JSON-encoded when non-nil
	Route    string // low-cardinality label for metrics, e.g. "/orders/:id"; defaults to Path
}

// Doer is what the workflows need from the client.
type Doer interface {
	Do(ctx context.Context, sc *session.Context, r Request, out any) error
}

// Client issues authenticated requests to the store API.
type Client struct {
	baseURL string
	http    *http.Client
	guard   *session.Guard
	metrics *Metrics
	logger  *zap.Logger
}

// New creates a store API client. baseURL has no trailing slash.
func New(baseURL string, httpClient *http.Client, guard *session.Guard, metrics *Metrics, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		guard:   guard,
		metrics: metrics,
		logger:  logger,
	}
}

// Do executes r for the session and decodes the envelope data into out (may be nil).
//
// Without a credential it fails with ErrAuthenticationRequired before touching the
// network. A 401 clears the session through the guard and yields ErrSessionExpired.
// An envelope status other than "success" is a RequestError whatever the HTTP code.
func (c *Client) Do(ctx context.Context, sc *session.Context, r Request, out any) error {
	route := r.Route
	if route == "" {
		route = r.Path
	}
	if sc == nil || sc.Token == "" || !sc.Authenticated {
		c.metrics.observe(r.Method, route, outcomeAuth, 0)
		return apperr.ErrAuthenticationRequired
	}

	req, err := c.newRequest(ctx, r)
	if err != nil {
		return err
	}
	c.guard.Attach(req, *sc)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observe(r.Method, route, outcomeTransport, time.Since(start))
		c.logger.Warn("upstream request failed", zap.String("method", r.Method), zap.String("route", route), zap.Error(err))
		return &apperr.RequestError{Message: transportMessage(err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	latency := time.Since(start)
	if err != nil {
		c.metrics.observe(r.Method, route, outcomeTransport, latency)
		return &apperr.RequestError{StatusCode: resp.StatusCode, Message: "read response: " + err.Error(), Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.metrics.observe(r.Method, route, outcomeAuth, latency)
		c.guard.OnUnauthorized(ctx, sc)
		return apperr.ErrSessionExpired
	}

	env, decoded := decodeEnvelope(raw)
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if decoded && env.Status != "" && env.Status != statusSuccess {
		ok = false
	}
	if !ok {
		c.metrics.observe(r.Method, route, outcomeError, latency)
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		c.logger.Info("upstream rejected request",
			zap.String("method", r.Method), zap.String("route", route),
			zap.Int("status", resp.StatusCode), zap.String("message", msg))
		return &apperr.RequestError{StatusCode: resp.StatusCode, Message: msg}
	}
	c.metrics.observe(r.Method, route, outcomeSuccess, latency)

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &apperr.RequestError{StatusCode: resp.StatusCode, Message: "malformed response data", Err: err}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	u := c.baseURL + r.Path
	if r.RawQuery != "" {
		u += "?" + r.RawQuery
	}
	var body io.Reader
	if r.Body != nil {
		b, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func decodeEnvelope(raw []byte) (Envelope, bool) {
	var env Envelope
	if len(bytes.TrimSpace(raw)) == 0 {
		return env, false
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, false
	}
	return env, true
}

func transportMessage(err error) string {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err.Error()
	}
	return err.Error()
}

// PathEscape escapes an identifier used as a path segment.
func PathEscape(id string) string {
	return url.PathEscape(id)
}
