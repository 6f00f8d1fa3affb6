// Package apiclient provides the HTTP request client for the console API.
//
// Every outbound call attaches the current session credential, temp
// challenge token, and tenant header. On a 401 for a refresh-eligible path
// the client coalesces all concurrently failing requests onto a single
// refresh attempt, then retries each original request exactly once.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	admin "github.com/pressroomhq/admin-go"
	"github.com/pressroomhq/admin-go/classify"
	"github.com/pressroomhq/admin-go/metrics"
)

// Header names used on every authenticated call.
const (
	HeaderTenant    = "X-Site"
	HeaderTempToken = "X-Temp-Auth-Token"
	HeaderRequestID = "X-Request-ID"
)

// Doer abstracts the underlying HTTP transport for testing.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues HTTP calls against the console API and owns the session
// credential at runtime.
type Client struct {
	baseURL string
	http    Doer
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu          sync.RWMutex
	accessToken string
	tempToken   string
	tenant      string

	lmu       sync.Mutex
	listeners []admin.AuthListener

	sf singleflight.Group
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP transport.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.http = d }
}

// WithLogger sets a structured logger for the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClock sets the time source used for request timing.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a request client for the given API base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  slog.Default(),
		metrics: metrics.New(false),
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetAccessToken installs the session credential attached as the
// Authorization bearer on subsequent calls.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

// AccessToken returns the current session credential, or "".
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// ClearAccessToken removes the session credential.
func (c *Client) ClearAccessToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

// SetTempToken installs the challenge temp credential attached as the
// X-Temp-Auth-Token header on subsequent calls.
func (c *Client) SetTempToken(token string) {
	c.mu.Lock()
	c.tempToken = token
	c.mu.Unlock()
}

// ClearTempToken removes the challenge temp credential.
func (c *Client) ClearTempToken() {
	c.mu.Lock()
	c.tempToken = ""
	c.mu.Unlock()
}

// SetTenant selects the tenant attached as the X-Site header on every call.
// Independent of the credential lifecycle.
func (c *Client) SetTenant(tenant string) {
	c.mu.Lock()
	c.tenant = tenant
	c.mu.Unlock()
}

// Tenant returns the selected tenant, or "".
func (c *Client) Tenant() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tenant
}

// RegisterListener adds an observer for credential lifecycle transitions.
// Each transition is emitted exactly once regardless of listener count.
func (c *Client) RegisterListener(l admin.AuthListener) {
	c.lmu.Lock()
	c.listeners = append(c.listeners, l)
	c.lmu.Unlock()
}

func (c *Client) emitTokenRefreshed(token string) {
	c.lmu.Lock()
	ls := make([]admin.AuthListener, len(c.listeners))
	copy(ls, c.listeners)
	c.lmu.Unlock()
	for _, l := range ls {
		l.TokenRefreshed(token)
	}
}

func (c *Client) emitAuthenticationLost() {
	c.lmu.Lock()
	ls := make([]admin.AuthListener, len(c.listeners))
	copy(ls, c.listeners)
	c.lmu.Unlock()
	for _, l := range ls {
		l.AuthenticationLost()
	}
}

// Response is a successful API response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}
	return nil
}

// noRefresh lists paths that must fail on their own terms rather than
// trigger the refresh cycle.
var noRefresh = map[string]struct{}{
	"/auth/login":           {},
	"/auth/verify-otp":      {},
	"/auth/refresh":         {},
	"/auth/logout":          {},
	"/auth/forgot-password": {},
	"/auth/reset-password":  {},
	"/otp/generate":         {},
}

func refreshEligible(path string) bool {
	_, excluded := noRefresh[path]
	return !excluded
}

// Do issues a request against the API. body, when non-nil, is JSON-encoded.
// Failures of any kind are returned as *admin.Classification errors; a nil
// error guarantees a 2xx response.
func (c *Client) Do(ctx context.Context, method, path string, body any, header http.Header) (*Response, error) {
	stale := c.AccessToken()
	resp, err := c.send(ctx, method, path, body, header)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusUnauthorized || !refreshEligible(path) || stale == "" {
		// With no credential held there is nothing to refresh: a 401 during
		// the challenge step or while anonymous fails on its own terms.
		return c.finish(resp)
	}

	// Expired credential on an eligible path: coalesce onto one refresh,
	// then retry the original request exactly once.
	if err := c.refreshIfCurrent(ctx, stale); err != nil {
		// Refresh failure is visible to every coalesced caller as the
		// original 401, classified.
		return nil, c.classifyFailure(resp)
	}

	retry, err := c.send(ctx, method, path, body, header)
	if err != nil {
		return nil, err
	}
	// A second 401 here means the server is rejecting a freshly issued
	// credential; retrying again would loop forever.
	return c.finish(retry)
}

// finish converts a transport response into a Response or a classified error.
func (c *Client) finish(resp *Response) (*Response, error) {
	if resp.Status >= 400 {
		return nil, c.classifyFailure(resp)
	}
	return resp, nil
}

func (c *Client) classifyFailure(resp *Response) error {
	return classify.Map(resp.Status, serverMessage(resp.Body))
}

// send performs one HTTP round trip with all session headers attached.
func (c *Client) send(ctx context.Context, method, path string, body any, header http.Header) (*Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	c.mu.RLock()
	access, temp, tenant := c.accessToken, c.tempToken, c.tenant
	c.mu.RUnlock()

	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	if temp != "" {
		req.Header.Set(HeaderTempToken, temp)
	}
	if t := admin.TenantFromContext(ctx); t != "" {
		tenant = t
	}
	if tenant != "" {
		req.Header.Set(HeaderTenant, tenant)
	}

	id := admin.RequestIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	req.Header.Set(HeaderRequestID, id)

	start := c.now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordRequest(method, 0, c.now().Sub(start).Seconds())
		c.logger.Warn("request failed before a response was received",
			"method", method, "path", path, "request_id", id, "error", err)
		return nil, classify.NetworkError(err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.metrics.RecordRequest(method, 0, c.now().Sub(start).Seconds())
		return nil, classify.NetworkError(err)
	}

	c.metrics.RecordRequest(method, httpResp.StatusCode, c.now().Sub(start).Seconds())
	c.logger.Debug("request completed",
		"method", method, "path", path, "status", httpResp.StatusCode, "request_id", id)

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   respBody,
	}, nil
}

// serverMessage extracts the message field from an error response body.
func serverMessage(body []byte) string {
	var p struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return ""
	}
	return p.Message
}
