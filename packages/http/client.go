package http

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"sync"
	"time"
)

const (
	// DefaultTimeout is the default per-call timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

// InstanceConfig is the mutable default configuration of a Client.
type InstanceConfig struct {
	BaseURL string
	Headers *Headers
	Timeout time.Duration
}

// Clone returns a deep copy.
func (c InstanceConfig) Clone() InstanceConfig {
	c.Headers = c.Headers.Clone()
	return c
}

// Client executes calls through the request pipeline. It is safe for
// concurrent use; every call works on its own copy of the configuration.
type Client struct {
	doer   Doer
	logger *slog.Logger

	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string

	mu     sync.RWMutex
	config InstanceConfig

	requestTransforms  hookList[RequestTransform]
	responseTransforms hookList[ResponseTransform]
	monitors           hookList[Monitor]
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		config: InstanceConfig{
			Headers: NewHeaders(),
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.doer == nil {
		c.doer = c.newHTTPClient()
	}

	return c
}

// newHTTPClient builds the default transport. Deadlines are enforced per call
// by the pipeline, so the http.Client itself carries no timeout.
func (c *Client) newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	if !c.validateSSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	if c.proxyURL != "" {
		proxyURL, err := neturl.Parse(c.proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			c.logger.Warn("ignoring invalid proxy url", "proxy", c.proxyURL, "error", err)
		}
	}

	followRedirect, maxRedirects := c.followRedirect, c.maxRedirects
	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !followRedirect {
			return http.ErrUseLastResponse
		}
		if len(via) >= maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	return &http.Client{
		Transport:     transport,
		CheckRedirect: redirectPolicy,
	}
}

// WithTimeout sets the default per-call timeout. Zero disables it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.config.Timeout = d
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.config.Headers.Set(key, value)
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		HeadersOf(headers).Each(c.config.Headers.Set)
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithBaseURL sets the base that relative call targets are joined onto.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		c.config.BaseURL = base
	}
}

// WithTransport replaces the default *http.Client. Redirect, TLS and proxy
// options have no effect on a custom transport.
func WithTransport(doer Doer) ClientOption {
	return func(c *Client) {
		c.doer = doer
	}
}

// WithLogger sets the logger used for monitor failures and call tracing.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithRequestTransform(t RequestTransform) ClientOption {
	return func(c *Client) {
		c.requestTransforms.add(t)
	}
}

func WithResponseTransform(t ResponseTransform) ClientOption {
	return func(c *Client) {
		c.responseTransforms.add(t)
	}
}

func WithMonitor(m Monitor) ClientOption {
	return func(c *Client) {
		c.monitors.add(m)
	}
}

// Get issues a GET call.
func (c *Client) Get(ctx context.Context, path string, query Query, opts ...RequestOption) *Envelope {
	return c.call(ctx, http.MethodGet, path, query, nil, opts)
}

func (c *Client) Delete(ctx context.Context, path string, query Query, opts ...RequestOption) *Envelope {
	return c.call(ctx, http.MethodDelete, path, query, nil, opts)
}

func (c *Client) Head(ctx context.Context, path string, query Query, opts ...RequestOption) *Envelope {
	return c.call(ctx, http.MethodHead, path, query, nil, opts)
}

func (c *Client) Link(ctx context.Context, path string, query Query, opts ...RequestOption) *Envelope {
	return c.call(ctx, "LINK", path, query, nil, opts)
}

func (c *Client) Unlink(ctx context.Context, path string, query Query, opts ...RequestOption) *Envelope {
	return c.call(ctx, "UNLINK", path, query, nil, opts)
}

// Post issues a POST call. data is sent as JSON unless it is a string,
// []byte, io.Reader, Form, url.Values or *Multipart.
func (c *Client) Post(ctx context.Context, path string, data any, opts ...RequestOption) *Envelope {
	return c.call(ctx, http.MethodPost, path, nil, data, opts)
}

func (c *Client) Put(ctx context.Context, path string, data any, opts ...RequestOption) *Envelope {
	return c.call(ctx, http.MethodPut, path, nil, data, opts)
}

func (c *Client) Patch(ctx context.Context, path string, data any, opts ...RequestOption) *Envelope {
	return c.call(ctx, http.MethodPatch, path, nil, data, opts)
}

// Any issues a call with an arbitrary method token, including verbs
// net/http has no constant for.
func (c *Client) Any(ctx context.Context, method, path string, data any, opts ...RequestOption) *Envelope {
	return c.call(ctx, method, path, nil, data, opts)
}

func (c *Client) call(ctx context.Context, method, path string, query Query, data any, opts []RequestOption) *Envelope {
	cfg := &RequestConfig{
		Method: method,
		URL:    path,
		Query:  query,
		Data:   data,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return c.Request(ctx, cfg)
}

// AddRequestTransform appends t to the request stage.
func (c *Client) AddRequestTransform(t RequestTransform) HookID {
	return c.requestTransforms.add(t)
}

// RemoveRequestTransform reports false when id is not registered.
func (c *Client) RemoveRequestTransform(id HookID) bool {
	return c.requestTransforms.remove(id)
}

func (c *Client) ClearRequestTransforms() {
	c.requestTransforms.clear()
}

func (c *Client) AddResponseTransform(t ResponseTransform) HookID {
	return c.responseTransforms.add(t)
}

func (c *Client) RemoveResponseTransform(id HookID) bool {
	return c.responseTransforms.remove(id)
}

func (c *Client) ClearResponseTransforms() {
	c.responseTransforms.clear()
}

func (c *Client) AddMonitor(m Monitor) HookID {
	return c.monitors.add(m)
}

func (c *Client) RemoveMonitor(id HookID) bool {
	return c.monitors.remove(id)
}

func (c *Client) ClearMonitors() {
	c.monitors.clear()
}

func (c *Client) SetBaseURL(base string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config.BaseURL = base
}

func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config.BaseURL
}

// SetHeader sets a default header sent with every call.
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config.Headers.Set(key, value)
}

// SetHeaders overlays h onto the default headers.
func (c *Client) SetHeaders(h *Headers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h.Each(c.config.Headers.Set)
}

// DeleteHeader removes a default header and reports whether it was set.
func (c *Client) DeleteHeader(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.Headers.Del(key)
}

// Headers returns a copy of the default headers.
func (c *Client) Headers() *Headers {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config.Headers.Clone()
}

func (c *Client) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config.Timeout = d
}

// Config returns a snapshot of the instance configuration. Mutating it
// does not affect the client.
func (c *Client) Config() InstanceConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config.Clone()
}
