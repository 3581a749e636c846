package http

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldCarryBody(t *testing.T) {
	for _, m := range []string{"GET", "get", "HEAD", "Delete"} {
		assert.False(t, ShouldCarryBody(m), m)
	}
	for _, m := range []string{"POST", "put", "PATCH", "LINK", "PROPFIND"} {
		assert.True(t, ShouldCarryBody(m), m)
	}
}

func TestPrepareOutgoing(t *testing.T) {
	out, err := PrepareOutgoing(nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = PrepareOutgoing("raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", out)

	form := Form{"a": "1"}
	out, err = PrepareOutgoing(form)
	require.NoError(t, err)
	assert.Equal(t, form, out)

	out, err = PrepareOutgoing(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, out)

	_, err = PrepareOutgoing(make(chan int))
	assert.Error(t, err)
}

func TestCodec_RoundTrip(t *testing.T) {
	values := []any{
		map[string]any{"name": "a", "tags": []any{"x", "y"}, "n": 1.5, "ok": true, "none": nil},
		[]any{1.0, "two", map[string]any{"three": 3.0}},
		"text",
		42.0,
	}

	jsonHeaders := HeadersFromPairs([2]string{"Content-Type", "application/json; charset=utf-8"})
	for _, v := range values {
		prepared, err := PrepareOutgoing(v)
		require.NoError(t, err)

		// plain strings pass through untouched, so encode them the same way
		// the codec would encode any other value
		if s, ok := v.(string); ok {
			prepared = `"` + s + `"`
		}

		got := ParseIncoming(jsonHeaders, strings.NewReader(prepared.(string)))
		assert.Equal(t, v, got)
	}
}

func TestParseIncoming(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        any
	}{
		{"no type text", "", "hello", "hello"},
		{"no type empty", "", "", nil},
		{"json", "application/json", `{"a":1}`, map[string]any{"a": 1.0}},
		{"json problem type", "application/problem+json", `{"title":"x"}`, map[string]any{"title": "x"}},
		{"invalid json", "application/json", `{"a":`, nil},
		{"empty json", "application/json", "", nil},
		{"text", "text/plain", "hi", "hi"},
		{"xml", "application/xml", "<a/>", "<a/>"},
		{"binary", "application/octet-stream", "\x00\x01", []byte{0, 1}},
		{"fallback", "image/png", "png", "png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHeaders()
			if tt.contentType != "" {
				h.Set("Content-Type", tt.contentType)
			}
			assert.Equal(t, tt.want, ParseIncoming(h, strings.NewReader(tt.body)))
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestParseIncoming_NeverFails(t *testing.T) {
	assert.Nil(t, ParseIncoming(nil, nil))
	assert.Nil(t, ParseIncoming(nil, failingReader{}))
}

func TestEncodeBody(t *testing.T) {
	body, ct, err := encodeBody(url.Values{"a": {"1", "2"}})
	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", ct)
	raw, _ := io.ReadAll(body)
	assert.Equal(t, "a=1&a=2", string(raw))

	body, ct, err = encodeBody([]byte("bytes"))
	require.NoError(t, err)
	assert.Empty(t, ct)
	raw, _ = io.ReadAll(body)
	assert.Equal(t, "bytes", string(raw))

	_, _, err = encodeBody(42)
	assert.Error(t, err)
}

func TestBuildMultipartBody(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "avatar.txt"), []byte("file-content"), 0o644))

	buf, ct, err := BuildMultipartBody([]MultipartField{
		{Type: MultipartFieldValue, Name: "name", Value: "alice"},
		{Type: MultipartFieldFile, Name: "avatar", Path: "avatar.txt"},
	}, dir)
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(ct)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	form, err := multipart.NewReader(bytes.NewReader(buf.Bytes()), params["boundary"]).ReadForm(1 << 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, form.Value["name"])
	require.Len(t, form.File["avatar"], 1)
	assert.Equal(t, "avatar.txt", form.File["avatar"][0].Filename)
}

func TestBuildMultipartBody_PathTraversal(t *testing.T) {
	dir := t.TempDir()
	_, _, err := BuildMultipartBody([]MultipartField{
		{Type: MultipartFieldFile, Name: "f", Path: "../../etc/passwd"},
	}, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal")
}

func TestParseFormBody(t *testing.T) {
	form := ParseFormBody("a=1&b=hello+world&broken")
	assert.Equal(t, Form{"a": "1", "b": "hello world"}, form)
}

func TestAs(t *testing.T) {
	env := &Envelope{Body: []byte(`{"id": 7}`)}
	out, err := As[map[string]int](env)
	require.NoError(t, err)
	assert.Equal(t, 7, out["id"])

	_, err = As[int](&Envelope{Body: []byte("nope")})
	assert.Error(t, err)

	zero, err := As[string](nil)
	require.NoError(t, err)
	assert.Empty(t, zero)
}
