package http

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Headers is an ordered, case-insensitive header set. Keys keep the casing
// of their first insertion; lookups and overwrites ignore case.
type Headers struct {
	names  []string
	values map[string]string
}

// NewHeaders returns an empty header set.
func NewHeaders() *Headers {
	return &Headers{values: make(map[string]string)}
}

// HeadersOf converts a plain map. Keys are sorted so merge order is stable.
func HeadersOf(m map[string]string) *Headers {
	h := NewHeaders()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Set(k, m[k])
	}
	return h
}

// HeadersFromHTTP flattens a net/http header, joining repeated values with ", ".
func HeadersFromHTTP(src http.Header) *Headers {
	h := NewHeaders()
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Set(k, strings.Join(src[k], ", "))
	}
	return h
}

// HeadersFromPairs converts a list of name/value pairs, later pairs winning.
func HeadersFromPairs(pairs ...[2]string) *Headers {
	h := NewHeaders()
	for _, p := range pairs {
		h.Set(p[0], p[1])
	}
	return h
}

// Set stores value under name, replacing any value with the same name in any case.
func (h *Headers) Set(name, value string) {
	if h.values == nil {
		h.values = make(map[string]string)
	}
	key := strings.ToLower(name)
	if _, ok := h.values[key]; !ok {
		h.names = append(h.names, name)
	}
	h.values[key] = value
}

// Get returns the value for name, or "" when absent.
func (h *Headers) Get(name string) string {
	if h == nil {
		return ""
	}
	return h.values[strings.ToLower(name)]
}

// Lookup returns the value for name and whether it is present.
func (h *Headers) Lookup(name string) (string, bool) {
	if h == nil {
		return "", false
	}
	v, ok := h.values[strings.ToLower(name)]
	return v, ok
}

// Del removes name and reports whether it was present.
func (h *Headers) Del(name string) bool {
	if h == nil {
		return false
	}
	key := strings.ToLower(name)
	if _, ok := h.values[key]; !ok {
		return false
	}
	delete(h.values, key)
	for i, n := range h.names {
		if strings.ToLower(n) == key {
			h.names = append(h.names[:i], h.names[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of distinct header names.
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.names)
}

// Keys returns header names in insertion order.
func (h *Headers) Keys() []string {
	if h == nil {
		return nil
	}
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Each calls fn for every header in insertion order.
func (h *Headers) Each(fn func(name, value string)) {
	if h == nil {
		return
	}
	for _, n := range h.names {
		fn(n, h.values[strings.ToLower(n)])
	}
}

// Map returns a plain copy keyed by the stored names.
func (h *Headers) Map() map[string]string {
	out := make(map[string]string, h.Len())
	h.Each(func(name, value string) {
		out[name] = value
	})
	return out
}

// Clone returns a deep copy. Cloning nil yields an empty set.
func (h *Headers) Clone() *Headers {
	out := NewHeaders()
	h.Each(out.Set)
	return out
}

// HTTPHeader converts to a net/http header for the transport.
func (h *Headers) HTTPHeader() http.Header {
	out := make(http.Header, h.Len())
	h.Each(out.Set)
	return out
}

// DefaultHeaders are applied under every call unless the body is a form.
func DefaultHeaders() *Headers {
	return HeadersFromPairs(
		[2]string{"Accept", "application/json"},
		[2]string{"Content-Type", "application/json"},
	)
}

// MergeHeaders merges sources in increasing precedence on top of
// DefaultHeaders. Defaults are skipped entirely for form bodies so the
// codec can choose the content type and boundary.
func MergeHeaders(body any, sources ...*Headers) *Headers {
	merged := NewHeaders()
	if !isFormBody(body) {
		DefaultHeaders().Each(merged.Set)
	}
	for _, src := range sources {
		src.Each(merged.Set)
	}
	return merged
}

func isFormBody(body any) bool {
	switch body.(type) {
	case Form, url.Values, *Multipart:
		return true
	}
	return false
}
