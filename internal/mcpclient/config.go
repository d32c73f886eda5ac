package mcpclient

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// ServerRecord is the common configuration record every source
// normalizes to (spec.md §4.4.1).
type ServerRecord struct {
	ID      string
	Type    string // "stdio", "http", or "sse"
	Command string
	Args    []string
	Env     map[string]string
	URL     string
	Headers map[string]string
	Enabled bool
	Source  string // which of the seven sources produced this record
}

// Discover loads all seven configuration sources relative to
// workspaceDir (the absolute path of the current project) and merges
// them into a single, alphabetically sorted list. Every source is
// tolerant: a missing file is skipped, a JSON file that fails to parse
// logs a warning and is skipped, a Stencila or Codex TOML file that
// fails to parse is skipped without logging, and entries with insufficient transport
// detail are dropped individually rather than failing the whole source.
func Discover(workspaceDir string, logger *slog.Logger) ([]ServerRecord, error) {
	merged := map[string]ServerRecord{}

	apply := func(source string, records []ServerRecord) {
		for _, r := range records {
			r.Source = source
			merged[r.ID] = r
		}
	}

	home, _ := os.UserHomeDir()

	apply("stencila", loadStencilaTOML(home, workspaceDir, logger))
	apply("claude-user", loadClaudeUser(home, workspaceDir, logger))
	apply("codex-user", loadCodexTOML(filepath.Join(home, ".codex", "config.toml"), "codex-user", logger))
	apply("gemini-user", loadGeminiJSON(filepath.Join(home, ".gemini", "settings.json"), "gemini-user", logger))
	apply("claude-workspace", loadClaudeWorkspace(workspaceDir, logger))
	apply("codex-workspace", loadCodexTOML(filepath.Join(workspaceDir, ".codex", "config.toml"), "codex-workspace", logger))
	apply("gemini-workspace", loadGeminiJSON(filepath.Join(workspaceDir, ".gemini", "settings.json"), "gemini-workspace", logger))

	out := make([]ServerRecord, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// rawEntry is the shape a single server entry takes across Claude,
// Codex, and Gemini's JSON/TOML config files: a superset of fields,
// normalized into a ServerRecord by normalizeEntry.
type rawEntry struct {
	Type    string            `json:"type" toml:"type"`
	Command string            `json:"command" toml:"command"`
	Args    []string          `json:"args" toml:"args"`
	Env     map[string]string `json:"env" toml:"env"`
	URL     string            `json:"url" toml:"url"`
	Headers map[string]string `json:"headers" toml:"headers"`
}

// normalizeEntry applies the Claude-specific inference rule (spec.md
// §4.4.1): explicit type="http"/"sse" requires a url, type="stdio"
// requires a command, and an absent type is inferred from whichever of
// command/url is present. An entry with neither is dropped.
func normalizeEntry(id string, e rawEntry, enabled bool, logger *slog.Logger) (ServerRecord, bool) {
	t := e.Type
	if t == "" {
		switch {
		case e.Command != "":
			t = "stdio"
		case e.URL != "":
			t = "http"
		default:
			if logger != nil {
				logger.Warn("mcp config: entry has neither command nor url, skipping", "id", id)
			}
			return ServerRecord{}, false
		}
	}

	switch t {
	case "stdio":
		if e.Command == "" {
			if logger != nil {
				logger.Warn("mcp config: stdio entry missing command, skipping", "id", id)
			}
			return ServerRecord{}, false
		}
	case "http", "sse":
		if e.URL == "" {
			if logger != nil {
				logger.Warn("mcp config: http/sse entry missing url, skipping", "id", id)
			}
			return ServerRecord{}, false
		}
	default:
		if logger != nil {
			logger.Warn("mcp config: unknown transport type, skipping", "id", id, "type", t)
		}
		return ServerRecord{}, false
	}

	return ServerRecord{
		ID:      id,
		Type:    t,
		Command: e.Command,
		Args:    e.Args,
		Env:     e.Env,
		URL:     e.URL,
		Headers: e.Headers,
		Enabled: enabled,
	}, true
}

// --- Stencila (merged user+workspace TOML) ---

type stencilaConfig struct {
	MCP struct {
		Servers map[string]rawEntry `toml:"servers"`
	} `toml:"mcp"`
}

func loadStencilaTOML(home, workspaceDir string, logger *slog.Logger) []ServerRecord {
	var records []ServerRecord
	// User config, then workspace config layered on top (Stencila's own
	// config crate already performs this merge before handing the result
	// to the MCP client; here the two files are read independently and
	// the workspace entries simply overwrite user entries of the same id,
	// which is the same outcome).
	for _, path := range []string{
		filepath.Join(home, ".config", "stencila", "config.toml"),
		filepath.Join(workspaceDir, "stencila.toml"),
	} {
		var cfg stencilaConfig
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			continue
		}
		for id, e := range cfg.MCP.Servers {
			if rec, ok := normalizeEntry(id, e, true, logger); ok {
				records = append(records, rec)
			}
		}
	}
	return records
}

// --- Claude ---

type claudeProjectEntry struct {
	MCPServers         map[string]rawEntry `json:"mcpServers"`
	DisabledMCPServers []string            `json:"disabledMcpServers"`
}

type claudeUserConfig struct {
	Projects map[string]claudeProjectEntry `json:"projects"`
}

func loadClaudeUser(home, workspaceDir string, logger *slog.Logger) []ServerRecord {
	data, err := os.ReadFile(filepath.Join(home, ".claude.json"))
	if err != nil {
		return nil
	}
	var cfg claudeUserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		if logger != nil {
			logger.Warn("mcp config: failed to parse ~/.claude.json", "error", err)
		}
		return nil
	}
	project, ok := cfg.Projects[workspaceDir]
	if !ok {
		return nil
	}
	disabled := map[string]bool{}
	for _, id := range project.DisabledMCPServers {
		disabled[id] = true
	}

	var records []ServerRecord
	for id, e := range project.MCPServers {
		if rec, ok := normalizeEntry(id, e, !disabled[id], logger); ok {
			records = append(records, rec)
		}
	}
	return records
}

type claudeWorkspaceConfig struct {
	MCPServers map[string]rawEntry `json:"mcpServers"`
}

func loadClaudeWorkspace(workspaceDir string, logger *slog.Logger) []ServerRecord {
	data, err := os.ReadFile(filepath.Join(workspaceDir, ".mcp.json"))
	if err != nil {
		return nil
	}
	var cfg claudeWorkspaceConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		if logger != nil {
			logger.Warn("mcp config: failed to parse .mcp.json", "error", err)
		}
		return nil
	}
	var records []ServerRecord
	for id, e := range cfg.MCPServers {
		if rec, ok := normalizeEntry(id, e, true, logger); ok {
			records = append(records, rec)
		}
	}
	return records
}

// --- Codex (TOML) ---

type codexConfig struct {
	MCPServers map[string]rawEntry `toml:"mcp_servers"`
}

func loadCodexTOML(path, source string, logger *slog.Logger) []ServerRecord {
	var cfg codexConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil
	}
	var records []ServerRecord
	for id, e := range cfg.MCPServers {
		if rec, ok := normalizeEntry(id, e, true, logger); ok {
			records = append(records, rec)
		}
	}
	return records
}

// --- Gemini (JSON) ---

type geminiConfig struct {
	MCPServers map[string]rawEntry `json:"mcpServers"`
}

func loadGeminiJSON(path, source string, logger *slog.Logger) []ServerRecord {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var cfg geminiConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		if logger != nil {
			logger.Warn("mcp config: failed to parse gemini settings", "path", path, "error", err)
		}
		return nil
	}
	var records []ServerRecord
	for id, e := range cfg.MCPServers {
		if rec, ok := normalizeEntry(id, e, true, logger); ok {
			records = append(records, rec)
		}
	}
	return records
}
