package http

import (
	"context"
	"encoding/base64"
	"time"
)

// RequestConfig describes one call. It is built fresh for every call and may
// be mutated by request transforms before dispatch.
type RequestConfig struct {
	Method  string
	URL     string // path relative to BaseURL, or an absolute URL
	Query   Query
	Data    any
	Headers *Headers

	// Per-call overrides; nil means "use the client default".
	Timeout *time.Duration
	BaseURL *string

	// Context is the external cancellation signal for this call.
	Context context.Context
}

// RequestOption adjusts a RequestConfig at the call site.
type RequestOption func(*RequestConfig)

// CallQuery sets the query parameters of a call.
func CallQuery(q Query) RequestOption {
	return func(r *RequestConfig) {
		r.Query = q
	}
}

// CallHeader sets a single per-call header.
func CallHeader(key, value string) RequestOption {
	return func(r *RequestConfig) {
		if r.Headers == nil {
			r.Headers = NewHeaders()
		}
		r.Headers.Set(key, value)
	}
}

// CallHeaders overlays a header set onto the per-call headers.
func CallHeaders(h *Headers) RequestOption {
	return func(r *RequestConfig) {
		if r.Headers == nil {
			r.Headers = NewHeaders()
		}
		h.Each(r.Headers.Set)
	}
}

// CallTimeout overrides the client timeout. Zero disables the timer.
func CallTimeout(d time.Duration) RequestOption {
	return func(r *RequestConfig) {
		r.Timeout = &d
	}
}

// CallBaseURL overrides the client base URL.
func CallBaseURL(base string) RequestOption {
	return func(r *RequestConfig) {
		r.BaseURL = &base
	}
}

// CallContext attaches an external cancellation signal that takes the place
// of the context passed to the verb.
func CallContext(ctx context.Context) RequestOption {
	return func(r *RequestConfig) {
		r.Context = ctx
	}
}

// SetHeader sets a header on the call, creating the set if needed.
func (r *RequestConfig) SetHeader(key, value string) *RequestConfig {
	if r.Headers == nil {
		r.Headers = NewHeaders()
	}
	r.Headers.Set(key, value)
	return r
}

// SetQueryParam sets a query parameter on the call.
func (r *RequestConfig) SetQueryParam(key string, value any) *RequestConfig {
	r.Query = r.Query.Set(key, value)
	return r
}

// SetTimeout overrides the timeout for this call.
func (r *RequestConfig) SetTimeout(d time.Duration) *RequestConfig {
	r.Timeout = &d
	return r
}

// Clone returns a copy whose headers and query can be mutated independently.
func (r *RequestConfig) Clone() *RequestConfig {
	if r == nil {
		return nil
	}
	out := *r
	out.Query = r.Query.Clone()
	if r.Headers != nil {
		out.Headers = r.Headers.Clone()
	}
	if r.Timeout != nil {
		d := *r.Timeout
		out.Timeout = &d
	}
	if r.BaseURL != nil {
		b := *r.BaseURL
		out.BaseURL = &b
	}
	return &out
}

// BasicAuth returns a request transform that sets HTTP basic credentials.
func BasicAuth(username, password string) RequestTransform {
	encoded := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return func(_ context.Context, r *RequestConfig) error {
		r.SetHeader("Authorization", "Basic "+encoded)
		return nil
	}
}

// BearerAuth returns a request transform that sets a bearer token.
func BearerAuth(token string) RequestTransform {
	return func(_ context.Context, r *RequestConfig) error {
		r.SetHeader("Authorization", "Bearer "+token)
		return nil
	}
}

// APIKeyHeader returns a request transform that sets an API key header.
func APIKeyHeader(name, key string) RequestTransform {
	return func(_ context.Context, r *RequestConfig) error {
		r.SetHeader(name, key)
		return nil
	}
}

// APIKeyQuery returns a request transform that adds an API key query parameter.
func APIKeyQuery(name, key string) RequestTransform {
	return func(_ context.Context, r *RequestConfig) error {
		r.SetQueryParam(name, key)
		return nil
	}
}
