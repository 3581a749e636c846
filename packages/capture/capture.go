package capture

import (
	"context"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitfetch/packages/core/env"
	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/tidwall/gjson"
)

// Source is where a captured value comes from.
type Source string

const (
	SourceBody     Source = "body"
	SourceHeader   Source = "header"
	SourceStatus   Source = "status"
	SourceDuration Source = "duration"
	SourceProblem  Source = "problem"
)

// Rule captures one value under Name.
type Rule struct {
	Name   string
	Source Source
	Path   string // gjson path for body, header name for header
}

// ParseRule parses "name=body.path.to.field", "name=body", "name=header X-Id",
// "name=status", "name=duration" or "name=problem".
func ParseRule(s string) (Rule, error) {
	name, expr, ok := strings.Cut(s, "=")
	name, expr = strings.TrimSpace(name), strings.TrimSpace(expr)
	if !ok || name == "" || expr == "" {
		return Rule{}, fmt.Errorf("invalid capture %q, expected name=source", s)
	}

	switch {
	case expr == "body":
		return Rule{Name: name, Source: SourceBody}, nil
	case strings.HasPrefix(expr, "body."):
		return Rule{Name: name, Source: SourceBody, Path: strings.TrimPrefix(expr, "body.")}, nil
	case strings.HasPrefix(expr, "header "):
		return Rule{Name: name, Source: SourceHeader, Path: strings.TrimSpace(strings.TrimPrefix(expr, "header "))}, nil
	case expr == string(SourceStatus), expr == string(SourceDuration), expr == string(SourceProblem):
		return Rule{Name: name, Source: Source(expr)}, nil
	}
	return Rule{}, fmt.Errorf("invalid capture source %q", expr)
}

type Extractor struct {
	env      *http.Envelope
	bodyJSON gjson.Result
	isJSON   bool
}

func NewExtractor(e *http.Envelope) *Extractor {
	x := &Extractor{env: e}
	if len(e.Body) > 0 && (e.IsJSON() || gjson.ValidBytes(e.Body)) {
		x.bodyJSON = gjson.ParseBytes(e.Body)
		x.isJSON = true
	}
	return x
}

func (x *Extractor) Extract(rule Rule) (any, bool) {
	switch rule.Source {
	case SourceBody:
		return x.extractFromBody(rule.Path)
	case SourceHeader:
		return x.extractFromHeader(rule.Path)
	case SourceStatus:
		if x.env.Status == 0 {
			return nil, false
		}
		return x.env.Status, true
	case SourceDuration:
		return x.env.DurationMs(), true
	case SourceProblem:
		return x.env.Problem.String(), true
	default:
		return nil, false
	}
}

// Path returns the raw gjson result for path, for callers that need more
// than the decoded value.
func (x *Extractor) Path(path string) gjson.Result {
	if !x.isJSON {
		return gjson.Result{}
	}
	return x.bodyJSON.Get(path)
}

func (x *Extractor) extractFromBody(path string) (any, bool) {
	if !x.isJSON {
		if path == "" && len(x.env.Body) > 0 {
			return x.env.BodyString(), true
		}
		return nil, false
	}

	if path == "" {
		return x.bodyJSON.Value(), true
	}

	result := x.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (x *Extractor) extractFromHeader(name string) (any, bool) {
	value, ok := x.env.Headers.Lookup(name)
	if !ok {
		return nil, false
	}
	return value, true
}

// ExtractAll applies every rule, skipping values that are absent.
func ExtractAll(e *http.Envelope, rules []Rule) map[string]any {
	extractor := NewExtractor(e)
	results := make(map[string]any)

	for _, r := range rules {
		if value, ok := extractor.Extract(r); ok {
			results[r.Name] = value
		}
	}

	return results
}

// Monitor returns a monitor that stores captured values in resolver under
// source.name and name. Only successful calls are captured.
func Monitor(resolver *env.Resolver, source string, rules []Rule) http.Monitor {
	return func(_ context.Context, e *http.Envelope) error {
		if !e.OK {
			return nil
		}
		for name, value := range ExtractAll(e, rules) {
			resolver.SetCapture(source, name, value)
		}
		return nil
	}
}
