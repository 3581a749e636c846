package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDotEnv(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected map[string]string
	}{
		{"simple key-value", "API_KEY=secret123", map[string]string{"API_KEY": "secret123"}},
		{"multiple keys", "KEY1=value1\nKEY2=value2", map[string]string{"KEY1": "value1", "KEY2": "value2"}},
		{"double quoted value", `API_KEY="secret with spaces"`, map[string]string{"API_KEY": "secret with spaces"}},
		{"single quoted value", `API_KEY='secret with spaces'`, map[string]string{"API_KEY": "secret with spaces"}},
		{"quoted value keeps hash", `API_KEY="a # b" # note`, map[string]string{"API_KEY": "a # b"}},
		{"comments and blank lines", "# comment\n\nAPI_KEY=secret\n", map[string]string{"API_KEY": "secret"}},
		{"whitespace trimmed", "  API_KEY  =  secret  ", map[string]string{"API_KEY": "secret"}},
		{"value with equals sign", "DSN=postgres://u:p@host/db?ssl=true", map[string]string{"DSN": "postgres://u:p@host/db?ssl=true"}},
		{"export prefix", "export TOKEN=abc", map[string]string{"TOKEN": "abc"}},
		{"trailing comment", "API_KEY=secret # rotated weekly", map[string]string{"API_KEY": "secret"}},
		{"hash without space", "COLOR=#fff", map[string]string{"COLOR": "#fff"}},
		{"lines without equals are skipped", "garbage\n=novalue\nOK=1", map[string]string{"OK": "1"}},
		{"empty file", "", map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := LoadDotEnv(writeEnvFile(t, tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLoadDotEnvFileNotFound(t *testing.T) {
	_, err := LoadDotEnv("/nonexistent/path/.env")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadAndExportDotEnv(t *testing.T) {
	t.Setenv("HITFETCH_EXISTING", "keep")
	path := writeEnvFile(t, "HITFETCH_EXISTING=overwrite\nHITFETCH_FRESH=new")
	t.Cleanup(func() { os.Unsetenv("HITFETCH_FRESH") })

	_, err := LoadAndExportDotEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "keep", os.Getenv("HITFETCH_EXISTING"))
	assert.Equal(t, "new", os.Getenv("HITFETCH_FRESH"))
}

func TestLoadEnvironment(t *testing.T) {
	sections := map[string]map[string]any{
		"staging": {"host": "staging.example.com", "token": "config"},
	}
	dotenv := writeEnvFile(t, "token=dotenv\nextra=1")
	t.Setenv(VariablePrefix+"extra", "process")

	env, err := LoadEnvironment("staging", sections, dotenv)
	require.NoError(t, err)

	assert.Equal(t, "staging", env.Name)
	assert.Equal(t, "staging.example.com", env.Variables["host"])
	assert.Equal(t, "dotenv", env.Variables["token"])
	assert.Equal(t, "process", env.Variables["extra"])
}

func TestLoadEnvironment_Errors(t *testing.T) {
	_, err := LoadEnvironment("prod", map[string]map[string]any{"dev": {}}, "")
	assert.Error(t, err)

	env, err := LoadEnvironment("", nil, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.NotNil(t, env.Variables)
}
