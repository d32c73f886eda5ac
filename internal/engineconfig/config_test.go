package engineconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithNoConfigFilePresent(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DOCENGINE_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Kernel.DefaultTimeoutSeconds)
	assert.Equal(t, "python3", cfg.Kernel.JupyterKernelName)
	assert.Equal(t, "stdio", cfg.Transport.Mode)
	assert.Equal(t, "*", cfg.Transport.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadExplicitPathOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docengine.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[kernel]
default_timeout_seconds = 90
sidecar_binary = "/usr/local/bin/Rscript"

[transport]
mode = "http"

[log]
level = "debug"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Kernel.DefaultTimeoutSeconds)
	assert.Equal(t, "/usr/local/bin/Rscript", cfg.Kernel.SidecarBinary)
	assert.Equal(t, "http", cfg.Transport.Mode)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "python3", cfg.Kernel.JupyterKernelName, "fields absent from the file keep their default")
}

func TestLoadExplicitPathMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	assert.Error(t, err)
}

func TestLoadUsesDocengineConfigEnvVarWhenExplicitEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[log]
level = "warn"
`), 0o644))
	t.Setenv("DOCENGINE_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesTakePrecedenceOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docengine.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[log]
level = "debug"
[transport]
mode = "http"
`), 0o644))

	t.Setenv("DOCENGINE_LOG_LEVEL", "error")
	t.Setenv("DOCENGINE_TRANSPORT", "stdio")
	t.Setenv("DOCENGINE_SIDECAR_BINARY", "/opt/R/bin/Rscript")
	t.Setenv("DOCENGINE_JUPYTER_KERNEL", "julia-1.9")
	t.Setenv("DOCENGINE_CORS_ORIGINS", "https://example.com")
	t.Setenv("DOCENGINE_KERNEL_TIMEOUT_SECONDS", "120")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "stdio", cfg.Transport.Mode)
	assert.Equal(t, "/opt/R/bin/Rscript", cfg.Kernel.SidecarBinary)
	assert.Equal(t, "julia-1.9", cfg.Kernel.JupyterKernelName)
	assert.Equal(t, "https://example.com", cfg.Transport.CORSOrigins)
	assert.Equal(t, 120, cfg.Kernel.DefaultTimeoutSeconds)
}

func TestLoadIgnoresInvalidKernelTimeoutEnvVar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docengine.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))
	t.Setenv("DOCENGINE_KERNEL_TIMEOUT_SECONDS", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Kernel.DefaultTimeoutSeconds)
}

func TestLoadIgnoresNonPositiveKernelTimeoutEnvVar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docengine.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))
	t.Setenv("DOCENGINE_KERNEL_TIMEOUT_SECONDS", "-5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Kernel.DefaultTimeoutSeconds)
}
