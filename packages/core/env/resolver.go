package env

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/hitfetch/packages/builtin"
	"github.com/abdul-hamid-achik/hitfetch/packages/http"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Resolver handles variable resolution with thread-safe access to variables and captures.
// Captures take precedence over variables of the same name.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	captures  map[string]any
	funcs     *builtin.Registry
	warnFunc  WarnFunc
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]any),
		captures:  make(map[string]any),
		funcs:     builtin.NewRegistry(),
	}
}

// Funcs exposes the function registry so callers can register their own.
func (r *Resolver) Funcs() *builtin.Registry {
	return r.funcs
}

// SetWarnFunc sets a function to be called when warnings occur (e.g., unresolved variables)
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

// SetCapture stores a value captured from a response under both
// "source.name" and the bare name.
func (r *Resolver) SetCapture(source, name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if source != "" {
		r.captures[source+"."+name] = value
	}
	r.captures[name] = value
}

func (r *Resolver) GetCapture(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.captures[name]
	return v, ok
}

func (r *Resolver) GetVariable(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.captures[name]; ok {
		return v, true
	}
	if v, ok := r.variables[name]; ok {
		return v, true
	}
	return nil, false
}

func (r *Resolver) HasVariable(name string) bool {
	_, ok := r.GetVariable(name)
	return ok
}

// lookup evaluates the inside of one {{...}} placeholder.
func (r *Resolver) lookup(expr string) (string, bool) {
	if name, ok := strings.CutPrefix(expr, "$"); ok {
		if val, set := os.LookupEnv(name); set {
			return val, true
		}
		r.warn("unresolved environment variable: $%s", name)
		return "", false
	}

	if builtin.IsCall(expr) {
		result, err := r.funcs.Call(expr)
		if err != nil {
			r.warn("function call %s failed: %v", expr, err)
			return "", false
		}
		return fmt.Sprint(result), true
	}

	if val, ok := r.GetVariable(expr); ok {
		return fmt.Sprint(val), true
	}
	r.warn("unresolved variable: %s", expr)
	return "", false
}

// Resolve replaces every placeholder it can evaluate. Unresolvable
// placeholders are left in place.
func (r *Resolver) Resolve(input string) string {
	if !strings.Contains(input, "{{") {
		return input
	}
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		if val, ok := r.lookup(strings.TrimSpace(match[2 : len(match)-2])); ok {
			return val
		}
		return match
	})
}

// ResolveValue resolves strings nested in maps and slices. Other values are
// returned unchanged.
func (r *Resolver) ResolveValue(v any) any {
	switch val := v.(type) {
	case string:
		return r.Resolve(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = r.ResolveValue(item)
		}
		return out
	case map[string]string:
		return r.ResolveAll(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.ResolveValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = r.Resolve(item)
		}
		return out
	case http.Form:
		return http.Form(r.ResolveAll(val))
	}
	return v
}

func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

// UnresolvedVariables lists the placeholders in input that cannot be
// evaluated, in order of appearance. Function calls and $ENV lookups are
// not checked.
func (r *Resolver) UnresolvedVariables(input string) []string {
	var missing []string
	seen := make(map[string]bool)
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if strings.HasPrefix(expr, "$") || builtin.IsCall(expr) || seen[expr] {
			continue
		}
		if !r.HasVariable(expr) {
			seen[expr] = true
			missing = append(missing, expr)
		}
	}
	return missing
}

func (r *Resolver) HasUnresolvedVariables(input string) bool {
	return len(r.UnresolvedVariables(input)) > 0
}

// Transform returns a request transform that resolves placeholders in the
// call's URL, base URL, query values, header values and body.
func (r *Resolver) Transform() http.RequestTransform {
	return func(_ context.Context, req *http.RequestConfig) error {
		req.URL = r.Resolve(req.URL)
		if req.BaseURL != nil {
			base := r.Resolve(*req.BaseURL)
			req.BaseURL = &base
		}
		for i := range req.Query {
			req.Query[i].Value = r.ResolveValue(req.Query[i].Value)
		}
		if req.Headers != nil {
			for _, name := range req.Headers.Keys() {
				req.Headers.Set(name, r.Resolve(req.Headers.Get(name)))
			}
		}
		req.Data = r.ResolveValue(req.Data)

		if missing := r.UnresolvedVariables(req.URL); len(missing) > 0 {
			return fmt.Errorf("unresolved variables in url: %s", strings.Join(missing, ", "))
		}
		return nil
	}
}

func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewResolver()
	clone.funcs = r.funcs
	clone.warnFunc = r.warnFunc
	for k, v := range r.variables {
		clone.variables[k] = v
	}
	for k, v := range r.captures {
		clone.captures[k] = v
	}
	return clone
}
