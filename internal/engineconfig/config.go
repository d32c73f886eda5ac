// Package engineconfig loads docengine's own configuration, modeled
// directly on the teacher's internal/config: a TOML file layered with
// environment-variable overrides, precedence env > file > defaults
// (spec.md §10, ambient stack).
package engineconfig

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the docengine server.
type Config struct {
	Kernel    KernelConfig    `toml:"kernel"`
	Transport TransportConfig `toml:"transport"`
	Log       LogConfig       `toml:"log"`
}

// KernelConfig controls default kernel supervisor behavior.
type KernelConfig struct {
	DefaultTimeoutSeconds int    `toml:"default_timeout_seconds"`
	SidecarBinary         string `toml:"sidecar_binary"` // e.g. path to the R sidecar executable
	JupyterKernelName     string `toml:"jupyter_kernel_name"`
}

// TransportConfig controls the MCP client's outbound transport
// defaults.
type TransportConfig struct {
	Mode        string `toml:"mode"` // "stdio" or "http", default per-server-record
	CORSOrigins string `toml:"cors_origins"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// Load reads a TOML config file and layers environment variables on
// top. Config file search order (first found wins): explicit
// configPath, DOCENGINE_CONFIG env var, ./docengine.toml, then
// ~/.config/docengine/docengine.toml. All fields are optional.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Kernel: KernelConfig{
			DefaultTimeoutSeconds: 30,
			JupyterKernelName:     "python3",
		},
		Transport: TransportConfig{
			Mode:        "stdio",
			CORSOrigins: "*",
		},
		Log: LogConfig{Level: "info"},
	}

	if err := cfg.loadFile(configPath); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(configPath string) error {
	path := resolveConfigPath(configPath)
	if path == "" {
		return nil
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("DOCENGINE_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("docengine.toml"); err == nil {
		return "docengine.toml"
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := home + "/.config/docengine/docengine.toml"
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) applyEnv() {
	envOverride("DOCENGINE_SIDECAR_BINARY", &c.Kernel.SidecarBinary)
	envOverride("DOCENGINE_JUPYTER_KERNEL", &c.Kernel.JupyterKernelName)
	envOverride("DOCENGINE_TRANSPORT", &c.Transport.Mode)
	envOverride("DOCENGINE_CORS_ORIGINS", &c.Transport.CORSOrigins)
	envOverride("DOCENGINE_LOG_LEVEL", &c.Log.Level)

	if v := os.Getenv("DOCENGINE_KERNEL_TIMEOUT_SECONDS"); v != "" {
		var seconds int
		if _, err := fmt.Sscanf(v, "%d", &seconds); err == nil && seconds > 0 {
			c.Kernel.DefaultTimeoutSeconds = seconds
		}
	}
}

func envOverride(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
