package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_NewSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultDir, DefaultFile)
	store := NewStore(path, WithUpdate(true))

	res := store.Compare("getUser", map[string]any{"id": 1, "name": "John"})
	assert.True(t, res.Passed, res.Message)
	assert.True(t, res.IsNew)

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestStore_MissingWithoutUpdate(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "s.json"))

	res := store.Compare("getUser", map[string]any{"id": 1})
	assert.False(t, res.Passed)
	assert.Contains(t, res.Message, "does not exist")
}

func TestStore_MatchAfterReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	data := map[string]any{"id": 1, "tags": []string{"a", "b"}}

	require.True(t, NewStore(path, WithUpdate(true)).Compare("getUser", data).Passed)

	res := NewStore(path).Compare("getUser", data)
	assert.True(t, res.Passed, res.Message)
	assert.False(t, res.IsNew)
}

func TestStore_Mismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	require.True(t, NewStore(path, WithUpdate(true)).Compare("getUser", map[string]any{"name": "John"}).Passed)

	res := NewStore(path).Compare("getUser", map[string]any{"name": "Jane"})
	assert.False(t, res.Passed)
	assert.Equal(t, "snapshot mismatch", res.Message)
	assert.Equal(t, map[string]any{"name": "John"}, res.Expected)
	assert.Equal(t, map[string]any{"name": "Jane"}, res.Actual)
}

func TestStore_UpdateMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	require.True(t, NewStore(path, WithUpdate(true)).Compare("getUser", "v1").Passed)

	res := NewStore(path, WithUpdate(true)).Compare("getUser", "v2")
	assert.True(t, res.Passed)
	assert.True(t, res.WasUpdated)

	assert.True(t, NewStore(path).Compare("getUser", "v2").Passed)
}

func TestStore_Ignore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	first := map[string]any{
		"id":    1,
		"meta":  map[string]any{"requestId": "a", "version": 2},
		"items": []any{map[string]any{"id": 1, "at": "10:00"}},
	}
	second := map[string]any{
		"id":    1,
		"meta":  map[string]any{"requestId": "b", "version": 2},
		"items": []any{map[string]any{"id": 1, "at": "11:00"}},
	}

	require.True(t, NewStore(path, WithUpdate(true), WithIgnore("meta.requestId", "items.*.at")).Compare("x", first).Passed)

	assert.False(t, NewStore(path).Compare("x", second).Passed)
	res := NewStore(path, WithIgnore("meta.requestId", "items.*.at")).Compare("x", second)
	assert.True(t, res.Passed, res.Message)
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))

	res := NewStore(path, WithUpdate(true)).Compare("x", 1)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Message, "failed to load snapshots")
}

func TestStore_Monitor(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "s.json"), WithUpdate(true))
	env := &http.Envelope{
		OK:     true,
		Status: 200,
		Data:   map[string]any{"id": 7.0},
		URL:    "https://api.example.com/users/7",
		Config: &http.RequestConfig{Method: "GET"},
	}

	var got *Result
	mon := store.Monitor("", func(r *Result) { got = r })
	require.NoError(t, mon(context.Background(), env))
	require.NotNil(t, got)
	assert.Equal(t, "GET https://api.example.com/users/7", got.Name)
	assert.True(t, got.IsNew)

	// failures are not compared
	got = nil
	require.NoError(t, mon(context.Background(), &http.Envelope{Problem: http.ProblemServer}))
	assert.Nil(t, got)

	strict := NewStore(store.Path())
	env.Data = map[string]any{"id": 8.0}
	assert.Error(t, strict.Monitor("", nil)(context.Background(), env))
}
