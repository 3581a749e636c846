package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Envelope is the uniform result of every call. Exactly one of
// {OK with ProblemNone, !OK with a Problem} holds, and OriginalError is
// non-nil iff !OK.
type Envelope struct {
	OK            bool
	Problem       Problem
	OriginalError error

	// Data is the parsed body. It is nil when no response arrived.
	Data any
	Body []byte

	// Status and Headers are zero when no response arrived.
	Status     int
	StatusText string
	Headers    *Headers

	Duration time.Duration
	URL      string
	Config   *RequestConfig
	Raw      *http.Response
}

// StatusError describes a response outside the 2xx range.
type StatusError struct {
	Method     string
	URL        string
	Status     int
	StatusText string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: request failed with status %d %s", e.Method, e.URL, e.Status, e.StatusText)
}

// DurationMs returns the call duration in milliseconds.
func (e *Envelope) DurationMs() int64 {
	return e.Duration.Milliseconds()
}

// BodyString returns the raw body as a string.
func (e *Envelope) BodyString() string {
	return string(e.Body)
}

// Header returns a response header, case-insensitively.
func (e *Envelope) Header(key string) string {
	return e.Headers.Get(key)
}

// ContentType returns the response Content-Type header.
func (e *Envelope) ContentType() string {
	return e.Header("Content-Type")
}

// IsJSON reports whether the response declares a JSON content type.
func (e *Envelope) IsJSON() bool {
	return strings.Contains(e.ContentType(), "json")
}

// IsClientError reports whether the call failed with a 4xx status.
func (e *Envelope) IsClientError() bool {
	return e.Problem == ProblemClient
}

// IsServerError reports whether the call failed with a 5xx status.
func (e *Envelope) IsServerError() bool {
	return e.Problem == ProblemServer
}

// Method returns the method of the call that produced the envelope.
func (e *Envelope) Method() string {
	if e.Config == nil {
		return ""
	}
	return e.Config.Method
}

// Clone returns a copy safe to hand to observers. Body, headers and the
// parsed data are copied; Raw is shared.
func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}
	out := *e
	if e.Body != nil {
		out.Body = bytes.Clone(e.Body)
	}
	if e.Headers != nil {
		out.Headers = e.Headers.Clone()
	}
	out.Data = cloneData(e.Data)
	out.Config = e.Config.Clone()
	return &out
}

// cloneData deep-copies the shapes ParseIncoming produces. Other values are
// returned as is.
func cloneData(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if val == nil {
			return val
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneData(item)
		}
		return out
	case []any:
		if val == nil {
			return val
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneData(item)
		}
		return out
	case []byte:
		return bytes.Clone(val)
	}
	return v
}

// normalizeExchange builds the envelope for a call that received a response.
func normalizeExchange(cfg *RequestConfig, url string, ex *exchange, started time.Time) *Envelope {
	headers := HeadersFromHTTP(ex.resp.Header)
	env := &Envelope{
		Data:       ParseIncoming(headers, bytes.NewReader(ex.body)),
		Body:       ex.body,
		Status:     ex.resp.StatusCode,
		StatusText: statusText(ex.resp),
		Headers:    headers,
		Duration:   time.Since(started),
		URL:        url,
		Config:     cfg,
		Raw:        ex.resp,
	}

	if env.Status >= 200 && env.Status <= 299 {
		env.OK = true
		env.Problem = ProblemNone
		return env
	}

	err := &StatusError{
		Method:     cfg.Method,
		URL:        url,
		Status:     env.Status,
		StatusText: env.StatusText,
	}
	env.OriginalError = err
	env.Problem = Classify(env.Status, nil)
	return env
}

// normalizePreflight builds the envelope for a call that failed before the
// transport was called, or whose transform failed.
func normalizePreflight(cfg *RequestConfig, url string, err error, started time.Time) *Envelope {
	env := normalizeFailure(cfg, url, err, started)
	env.Problem = classifyLocal(err)
	return env
}

// normalizeFailure builds the envelope for a call that never got a response.
func normalizeFailure(cfg *RequestConfig, url string, err error, started time.Time) *Envelope {
	return &Envelope{
		Problem:       Classify(0, err),
		OriginalError: err,
		Duration:      time.Since(started),
		URL:           url,
		Config:        cfg,
	}
}

func statusText(resp *http.Response) string {
	if text := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode))); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
