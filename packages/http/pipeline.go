package http

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Request runs one call through the pipeline and always returns an
// envelope. cfg is not modified; transforms operate on a merged copy.
//
// Stages run strictly in order: request transforms, dispatch, response
// transforms, monitors. A failure in any stage before monitoring becomes a
// failure envelope that still passes through the remaining stages, so
// monitors observe every call exactly once.
func (c *Client) Request(ctx context.Context, cfg *RequestConfig) *Envelope {
	started := time.Now()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg == nil {
		cfg = &RequestConfig{}
	}

	call := c.merge(cfg)
	if call.Context != nil {
		ctx = call.Context
	}

	env := c.dispatch(ctx, call, started)
	env = c.applyResponseTransforms(ctx, env, started)
	c.notifyMonitors(ctx, env)

	c.logger.Debug("request completed",
		"method", env.Method(),
		"url", env.URL,
		"status", env.Status,
		"problem", env.Problem.String(),
		"duration_ms", env.DurationMs(),
	)
	return env
}

// merge layers the call onto a snapshot of the instance configuration.
// Call-site fields win field by field.
func (c *Client) merge(cfg *RequestConfig) *RequestConfig {
	call := cfg.Clone()

	c.mu.RLock()
	instance := c.config.Clone()
	c.mu.RUnlock()

	call.Headers.Each(instance.Headers.Set)
	call.Headers = instance.Headers
	if call.BaseURL == nil {
		call.BaseURL = &instance.BaseURL
	}
	if call.Timeout == nil {
		call.Timeout = &instance.Timeout
	}
	return call
}

func (c *Client) dispatch(ctx context.Context, call *RequestConfig, started time.Time) *Envelope {
	for _, t := range c.requestTransforms.snapshot() {
		if err := guard("request transform", func() error { return t(ctx, call) }); err != nil {
			return normalizePreflight(call, resolveURL(call), err, started)
		}
	}

	// A transform may have attached its own cancellation signal.
	if call.Context != nil {
		ctx = call.Context
	}

	url := resolveURL(call)
	if strings.TrimSpace(call.Method) == "" {
		return normalizePreflight(call, url, ErrEmptyMethod, started)
	}
	if err := ValidateURL(url); err != nil {
		return normalizePreflight(call, url, err, started)
	}

	var prepared any
	if ShouldCarryBody(call.Method) {
		var err error
		if prepared, err = PrepareOutgoing(call.Data); err != nil {
			return normalizePreflight(call, url, err, started)
		}
	}
	body, contentType, err := encodeBody(prepared)
	if err != nil {
		return normalizePreflight(call, url, err, started)
	}

	headers := MergeHeaders(prepared, call.Headers)
	if contentType != "" {
		headers.Set("Content-Type", contentType)
	}

	var timeout time.Duration
	if call.Timeout != nil {
		timeout = *call.Timeout
	}

	ex, err := invokeTimed(ctx, c.doer, timeout, func(reqCtx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(reqCtx, call.Method, url, body)
		if err != nil {
			return nil, err
		}
		req.Header = headers.HTTPHeader()
		if host := headers.Get("Host"); host != "" {
			req.Host = host
		}
		return req, nil
	})
	if err != nil {
		return normalizeFailure(call, url, err, started)
	}
	return normalizeExchange(call, url, ex, started)
}

// applyResponseTransforms runs every response transform on the same
// envelope. The first failure replaces the envelope with a failure envelope
// and ends the stage.
func (c *Client) applyResponseTransforms(ctx context.Context, env *Envelope, started time.Time) *Envelope {
	for _, t := range c.responseTransforms.snapshot() {
		if err := guard("response transform", func() error { return t(ctx, env) }); err != nil {
			return normalizePreflight(env.Config, env.URL, err, started)
		}
	}
	return env
}

// notifyMonitors hands each monitor its own copy of the envelope. Monitor
// errors and panics are logged and never reach the caller.
func (c *Client) notifyMonitors(ctx context.Context, env *Envelope) {
	for _, m := range c.monitors.snapshot() {
		snapshot := env.Clone()
		if err := guard("monitor", func() error { return m(ctx, snapshot) }); err != nil {
			c.logger.Warn("monitor failed",
				"method", env.Method(),
				"url", env.URL,
				"error", err,
			)
		}
	}
}

func resolveURL(call *RequestConfig) string {
	var base string
	if call.BaseURL != nil {
		base = *call.BaseURL
	}
	return BuildURL(base, call.URL, call.Query)
}
