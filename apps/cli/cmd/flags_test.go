package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitfetch/packages/core/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	h, err := parseHeaders([]string{"Authorization: Bearer x", "X-Empty:", "accept:text/plain"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer x", h.Get("authorization"))
	assert.Equal(t, "", h.Get("X-Empty"))
	assert.Equal(t, "text/plain", h.Get("Accept"))

	_, err = parseHeaders([]string{"no-colon"})
	assert.Error(t, err)
	_, err = parseHeaders([]string{": value"})
	assert.Error(t, err)
}

func TestParsePairs(t *testing.T) {
	q, err := parsePairs("query", []string{"tag=a", "page=2", "tag=b", "tag=c", "empty="})
	require.NoError(t, err)

	tags, ok := q.Get("tag")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, tags)

	page, _ := q.Get("page")
	assert.Equal(t, "2", page)

	empty, ok := q.Get("empty")
	assert.True(t, ok)
	assert.Equal(t, "", empty)

	_, err = parsePairs("query", []string{"novalue"})
	assert.ErrorContains(t, err, "invalid query")
}

func TestParseTimeout(t *testing.T) {
	d, err := parseTimeout("1500")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, err = parseTimeout("2s")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	d, err = parseTimeout("0")
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = parseTimeout("soon")
	assert.Error(t, err)
}

func TestReadData(t *testing.T) {
	v, err := readData(`{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	path := filepath.Join(t.TempDir(), "body.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"from":"file"}`), 0o644))
	v, err = readData("@" + path)
	require.NoError(t, err)
	assert.Equal(t, `{"from":"file"}`, v)

	_, err = readData("@" + filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "cannot read data")
}

func TestApplyFlags(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)

	baseURLFlag = "https://api.example.com"
	timeoutFlag = "250ms"
	insecureFlag = true
	noFollowFlag = true
	verboseFlag = 2
	slackWebhookFlag = "https://hooks.slack.example/x"

	cfg := config.DefaultConfig()
	cfg.Notify = &config.NotifyConfig{Teams: "https://teams.example/y", On: "always"}
	require.NoError(t, applyFlags(cfg))

	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.Equal(t, 250, cfg.Timeout)
	assert.False(t, cfg.GetValidateSSL())
	assert.False(t, cfg.GetFollowRedirects())
	assert.True(t, cfg.GetVerbose())
	assert.Equal(t, "https://hooks.slack.example/x", cfg.Notify.Slack)
	assert.Equal(t, "https://teams.example/y", cfg.Notify.Teams)
	assert.Equal(t, "always", cfg.Notify.On)

	timeoutFlag = "later"
	assert.Error(t, applyFlags(config.DefaultConfig()))
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("HITFETCH_TEST_BOOL", "yes")
	t.Setenv("HITFETCH_TEST_INT", "7")
	t.Setenv("HITFETCH_TEST_FLOAT", "2.5")
	t.Setenv("HITFETCH_TEST_BAD_INT", "x")

	assert.True(t, getEnvBool("HITFETCH_TEST_BOOL", false))
	assert.Equal(t, 7, getEnvInt("HITFETCH_TEST_INT", 0))
	assert.Equal(t, 2.5, getEnvFloat("HITFETCH_TEST_FLOAT", 0))
	assert.Equal(t, 3, getEnvInt("HITFETCH_TEST_BAD_INT", 3))
	assert.Equal(t, "fallback", getEnvString("HITFETCH_TEST_UNSET", "fallback"))
}
