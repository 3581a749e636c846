package http

import (
	"fmt"
	neturl "net/url"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

var absoluteURLPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*://`)

// Param is a single query parameter. Value may be nil (omitted), a scalar,
// or a slice of scalars (one pair per element).
type Param struct {
	Key   string
	Value any
}

// Query is an ordered list of query parameters. Pairs are serialized in
// list order.
type Query []Param

// Set replaces the first parameter named key, or appends it.
func (q Query) Set(key string, value any) Query {
	for i := range q {
		if q[i].Key == key {
			q[i].Value = value
			return q
		}
	}
	return append(q, Param{Key: key, Value: value})
}

// Get returns the value of the first parameter named key.
func (q Query) Get(key string) (any, bool) {
	for _, p := range q {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Clone returns a copy that can be mutated independently.
func (q Query) Clone() Query {
	if q == nil {
		return nil
	}
	out := make(Query, len(q))
	copy(out, q)
	return out
}

// QueryOf converts a map into a Query. Go maps have no stable order, so
// keys are sorted to keep URL construction deterministic.
func QueryOf(m map[string]any) Query {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := make(Query, 0, len(keys))
	for _, k := range keys {
		q = append(q, Param{Key: k, Value: m[k]})
	}
	return q
}

// IsAbsoluteURL reports whether target starts with a scheme.
func IsAbsoluteURL(target string) bool {
	return absoluteURLPattern.MatchString(target)
}

// BuildURL composes base, target and query into one request target.
// An absolute target ignores base.
func BuildURL(base, target string, query Query) string {
	var u string
	switch {
	case IsAbsoluteURL(target):
		u = target
	case base == "":
		u = target
	default:
		u = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(target, "/")
	}

	qs := EncodeQuery(query)
	if qs == "" {
		return u
	}
	if strings.Contains(u, "?") {
		return u + "&" + qs
	}
	return u + "?" + qs
}

// EncodeQuery serializes query pairs in order. Nil values are skipped and
// list values repeat the key once per element.
func EncodeQuery(query Query) string {
	var b strings.Builder
	write := func(key string, value any) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(neturl.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(neturl.QueryEscape(stringify(value)))
	}

	for _, p := range query {
		v, ok := indirect(p.Value)
		if !ok {
			continue
		}
		rv := reflect.ValueOf(v)
		if isList(rv) {
			for i := 0; i < rv.Len(); i++ {
				if item, ok := indirect(rv.Index(i).Interface()); ok {
					write(p.Key, item)
				}
			}
			continue
		}
		write(p.Key, v)
	}
	return b.String()
}

// indirect follows pointers and interfaces down to a value, stopping at a
// fmt.Stringer. It reports false for nil.
func indirect(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		if s, ok := rv.Interface().(fmt.Stringer); ok {
			return s, true
		}
		rv = rv.Elem()
	}
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map) && rv.IsNil() {
		return nil, false
	}
	return rv.Interface(), true
}

// isList reports slices and arrays, except byte slices which encode as text.
func isList(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Type().Elem().Kind() != reflect.Uint8
	}
	return false
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// ValidateURL checks that a built target is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}
