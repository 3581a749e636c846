package db

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	hfhttp "github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient("sqlite://" + filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestParseConnectionString(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"sqlite:///tmp/a.db", "/tmp/a.db", false},
		{"sqlite:./a.db", "./a.db", false},
		{"history.db", "history.db", false},
		{"postgres://u:p@h/db", "", true},
		{"  ", "", true},
	}
	for _, tt := range tests {
		got, err := parseConnectionString(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestRecordEnvelope_Recent(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	ok := &hfhttp.Envelope{
		OK:       true,
		Status:   200,
		Body:     []byte("hello"),
		Duration: 12 * time.Millisecond,
		URL:      "https://api.example.com/a",
		Config:   &hfhttp.RequestConfig{Method: "GET"},
	}
	failed := &hfhttp.Envelope{
		Problem:       hfhttp.ProblemConnection,
		OriginalError: errors.New("connection refused"),
		URL:           "https://api.example.com/b",
		Config:        &hfhttp.RequestConfig{Method: "POST"},
	}

	_, err := client.RecordEnvelope(ctx, ok)
	require.NoError(t, err)
	id, err := client.RecordEnvelope(ctx, failed)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	entries, err := client.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "POST", entries[0].Method)
	assert.False(t, entries[0].OK)
	assert.Equal(t, "CONNECTION_ERROR", entries[0].Problem)
	assert.Equal(t, "connection refused", entries[0].Error)

	assert.Equal(t, "GET", entries[1].Method)
	assert.True(t, entries[1].OK)
	assert.Equal(t, 200, entries[1].Status)
	assert.Equal(t, int64(12), entries[1].DurationMs)
	assert.Equal(t, 5, entries[1].BodySize)

	limited, err := client.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPrune(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.RecordEnvelope(ctx, &hfhttp.Envelope{OK: true, Status: 200, URL: "https://x"})
	require.NoError(t, err)

	n, err := client.Prune(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = client.Prune(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMonitor_RecordsClientCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(t)
	hc := hfhttp.NewClient(hfhttp.WithBaseURL(server.URL), hfhttp.WithMonitor(client.Monitor()))
	hc.Delete(context.Background(), "/items/1", nil)

	result, err := client.Query(context.Background(), "SELECT method, status FROM history")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "DELETE", result.Rows[0]["method"])
	assert.Equal(t, int64(204), result.Rows[0]["status"])
}
