package env

import (
	"context"
	"fmt"
	"testing"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverResolve(t *testing.T) {
	t.Setenv("HITFETCH_TEST_HOST", "api.example.com")

	tests := []struct {
		name      string
		input     string
		variables map[string]any
		captures  map[string]any
		expected  string
	}{
		{name: "no variables", input: "hello world", expected: "hello world"},
		{name: "simple variable", input: "hello {{name}}", variables: map[string]any{"name": "world"}, expected: "hello world"},
		{name: "whitespace in braces", input: "{{ name }}", variables: map[string]any{"name": "x"}, expected: "x"},
		{name: "non-string variable", input: "page {{page}}", variables: map[string]any{"page": 2}, expected: "page 2"},
		{name: "capture wins over variable", input: "{{id}}", variables: map[string]any{"id": "var"}, captures: map[string]any{"id": "cap"}, expected: "cap"},
		{name: "namespaced capture", input: "project {{setup.projectId}}", captures: map[string]any{"projectId": "456"}, expected: "project 456"},
		{name: "process environment", input: "https://{{$HITFETCH_TEST_HOST}}/v1", expected: "https://api.example.com/v1"},
		{name: "function call", input: `{{base64("a:b")}}`, expected: "YTpi"},
		{name: "unresolved stays as-is", input: "hello {{unknown}}", expected: "hello {{unknown}}"},
		{name: "failing function stays as-is", input: "{{nope()}}", expected: "{{nope()}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			r.SetVariables(tt.variables)
			for k, v := range tt.captures {
				r.SetCapture("setup", k, v)
			}
			assert.Equal(t, tt.expected, r.Resolve(tt.input))
		})
	}
}

func TestResolverUnresolvedVariables(t *testing.T) {
	r := NewResolver()
	r.SetVariable("bar", "middle")
	r.SetCapture("setupProject", "projectId", "123")

	assert.Nil(t, r.UnresolvedVariables("hello world"))
	assert.Equal(t, []string{"foo", "baz"}, r.UnresolvedVariables("{{foo}} {{bar}} {{baz}} {{foo}}"))
	assert.Empty(t, r.UnresolvedVariables("{{setupProject.projectId}}/tasks {{uuid()}} {{$HOME}}"))
	assert.True(t, r.HasUnresolvedVariables("{{other.projectId}}"))
	assert.False(t, r.HasUnresolvedVariables("{{bar}}"))
}

func TestResolverWarnings(t *testing.T) {
	r := NewResolver()
	var warnings []string
	r.SetWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	r.Resolve("{{missing}} {{$HITFETCH_TEST_UNSET_VAR}}")

	assert.Equal(t, []string{
		"unresolved variable: missing",
		"unresolved environment variable: $HITFETCH_TEST_UNSET_VAR",
	}, warnings)
}

func TestResolverResolveValue(t *testing.T) {
	r := NewResolver()
	r.SetVariable("name", "alice")

	got := r.ResolveValue(map[string]any{
		"user":  "{{name}}",
		"tags":  []any{"{{name}}", 1},
		"count": 3,
	})

	assert.Equal(t, map[string]any{
		"user":  "alice",
		"tags":  []any{"alice", 1},
		"count": 3,
	}, got)
	assert.Equal(t, http.Form{"u": "alice"}, r.ResolveValue(http.Form{"u": "{{name}}"}))
}

func TestResolverTransform(t *testing.T) {
	r := NewResolver()
	r.SetVariables(map[string]any{"id": 42, "token": "secret", "host": "https://api.example.com"})

	base := "{{host}}"
	req := &http.RequestConfig{
		Method:  "POST",
		URL:     "/users/{{id}}",
		BaseURL: &base,
		Query:   http.Query{{Key: "expand", Value: "{{id}}"}},
		Headers: http.HeadersFromPairs([2]string{"Authorization", "Bearer {{token}}"}),
		Data:    map[string]any{"owner": "{{id}}"},
	}

	require.NoError(t, r.Transform()(context.Background(), req))

	assert.Equal(t, "/users/42", req.URL)
	assert.Equal(t, "https://api.example.com", *req.BaseURL)
	assert.Equal(t, "42", req.Query[0].Value)
	assert.Equal(t, "Bearer secret", req.Headers.Get("authorization"))
	assert.Equal(t, map[string]any{"owner": "42"}, req.Data)
}

func TestResolverTransform_UnresolvedURL(t *testing.T) {
	req := &http.RequestConfig{Method: "GET", URL: "/users/{{userId}}"}
	err := NewResolver().Transform()(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "userId")
}

func TestResolverClone(t *testing.T) {
	r := NewResolver()
	r.SetVariable("a", 1)
	clone := r.Clone()
	clone.SetVariable("a", 2)

	v, _ := r.GetVariable("a")
	assert.Equal(t, 1, v)
}
