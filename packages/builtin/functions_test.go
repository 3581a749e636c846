package builtin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Call(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		expr string
		want any
	}{
		{`base64("user:pass")`, "dXNlcjpwYXNz"},
		{`base64Decode('dXNlcjpwYXNz')`, "user:pass"},
		{`basicAuth("user", "pass")`, "Basic dXNlcjpwYXNz"},
		{`sha256("abc")`, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{`hmacSHA256("key", "The quick brown fox jumps over the lazy dog")`, "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8"},
		{`urlEncode("a b&c")`, "a+b%26c"},
		{`urlDecode("a+b%26c")`, "a b&c"},
		{`random(5, 5)`, 5},
		{`date("2006")`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := r.Call(tt.expr)
			require.NoError(t, err)
			if tt.want != nil {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestRegistry_Generated(t *testing.T) {
	r := NewRegistry()

	id, err := r.Call("uuid()")
	require.NoError(t, err)
	assert.Len(t, id, 36)

	s, err := r.Call("randomString(12)")
	require.NoError(t, err)
	assert.Len(t, s, 12)

	ts, err := r.Call("timestamp()")
	require.NoError(t, err)
	assert.Positive(t, ts)
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()

	_, err := r.Call("nope()")
	assert.True(t, errors.Is(err, ErrUnknownFunction))

	_, err = r.Call("random(a, 2)")
	assert.Error(t, err)

	_, err = r.Call("base64()")
	assert.Error(t, err)

	_, err = r.Call("not a call")
	assert.Error(t, err)
}

func TestRegistry_Env(t *testing.T) {
	t.Setenv("HITFETCH_TEST_TOKEN", "abc")
	r := NewRegistry()

	v, err := r.Call(`env("HITFETCH_TEST_TOKEN")`)
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	v, err = r.Call(`env("HITFETCH_TEST_MISSING", "fallback")`)
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	_, err = r.Call(`env("HITFETCH_TEST_MISSING")`)
	assert.Error(t, err)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register("tenant", func(args []string) (any, error) { return "acme", nil })

	v, err := r.Call("tenant()")
	require.NoError(t, err)
	assert.Equal(t, "acme", v)
	assert.Contains(t, r.Names(), "tenant")
	assert.True(t, IsCall(" tenant() "))
	assert.False(t, IsCall("tenant"))
}
