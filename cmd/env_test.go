package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabd/annotate/internal/config"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `# comment
TABD_LOG_LEVEL=debug
export TABD_SERVER_PORT="9000"
TABD_SETTINGS_CUSTOM_DOMAINS='example.com'
not a pair
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("TABD_LOG_LEVEL", "")
	t.Setenv("TABD_SERVER_PORT", "")
	t.Setenv("TABD_SETTINGS_CUSTOM_DOMAINS", "")
	require.NoError(t, LoadEnvFile(path))

	assert.Equal(t, "debug", os.Getenv("TABD_LOG_LEVEL"))
	assert.Equal(t, "9000", os.Getenv("TABD_SERVER_PORT"))
	assert.Equal(t, "example.com", os.Getenv("TABD_SETTINGS_CUSTOM_DOMAINS"))
}

func TestLoadEnvFile_Missing(t *testing.T) {
	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing")))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "gh****yz", maskSecret("ghp_abcdefxyz"))
}

func TestCheckEnvConfig(t *testing.T) {
	t.Setenv("TABD_SETTINGS_GITHUB_TOKEN", "ghp_1234567890")
	t.Setenv("TABD_LOG_LEVEL", "warn")

	var cfg config.Config
	res := CheckEnvConfig(&cfg)

	assert.Equal(t, "gh****90", res.Present["TABD_SETTINGS_GITHUB_TOKEN"])
	assert.Equal(t, "warn", res.Present["TABD_LOG_LEVEL"])
	assert.Len(t, res.Warnings, 2)
}

func TestCheckFormat(t *testing.T) {
	for _, f := range []string{formatTerminal, formatHTML, formatJSON} {
		assert.NoError(t, checkFormat(f))
	}
	assert.Error(t, checkFormat("xml"))
}
