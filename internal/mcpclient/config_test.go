package mcpclient

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEntryInfersStdioFromCommand(t *testing.T) {
	rec, ok := normalizeEntry("fs", rawEntry{Command: "docengine-mcp"}, true, nil)
	require.True(t, ok)
	assert.Equal(t, "stdio", rec.Type)
	assert.Equal(t, "docengine-mcp", rec.Command)
}

func TestNormalizeEntryInfersHTTPFromURL(t *testing.T) {
	rec, ok := normalizeEntry("remote", rawEntry{URL: "https://example.com/mcp"}, true, nil)
	require.True(t, ok)
	assert.Equal(t, "http", rec.Type)
}

func TestNormalizeEntryDropsEntryWithNeitherCommandNorURL(t *testing.T) {
	_, ok := normalizeEntry("broken", rawEntry{}, true, nil)
	assert.False(t, ok)
}

func TestNormalizeEntryDropsStdioMissingCommand(t *testing.T) {
	_, ok := normalizeEntry("broken", rawEntry{Type: "stdio"}, true, nil)
	assert.False(t, ok)
}

func TestNormalizeEntryDropsHTTPMissingURL(t *testing.T) {
	_, ok := normalizeEntry("broken", rawEntry{Type: "http"}, true, nil)
	assert.False(t, ok)
}

func TestNormalizeEntryDropsUnknownType(t *testing.T) {
	_, ok := normalizeEntry("broken", rawEntry{Type: "carrier-pigeon", Command: "x"}, true, nil)
	assert.False(t, ok)
}

func TestLoadStencilaTOMLMergesUserThenWorkspace(t *testing.T) {
	home := t.TempDir()
	workspace := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(home, ".config", "stencila"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".config", "stencila", "config.toml"), []byte(`
[mcp.servers.fs]
command = "docengine-mcp"
args = ["--user"]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "stencila.toml"), []byte(`
[mcp.servers.fs]
command = "docengine-mcp"
args = ["--workspace"]
`), 0o644))

	records := loadStencilaTOML(home, workspace, nil)
	require.Len(t, records, 2, "both files contribute a record; caller merges by id")
	assert.Equal(t, []string{"--user"}, records[0].Args)
	assert.Equal(t, []string{"--workspace"}, records[1].Args)
}

func TestLoadStencilaTOMLToleratesMissingFiles(t *testing.T) {
	records := loadStencilaTOML(t.TempDir(), t.TempDir(), nil)
	assert.Empty(t, records)
}

func TestLoadClaudeUserRespectsDisabledList(t *testing.T) {
	home := t.TempDir()
	workspace := "/workspace/project"

	body := `{"projects":{"/workspace/project":{"mcpServers":{"fs":{"command":"docengine-mcp"},"web":{"command":"docengine-web"}},"disabledMcpServers":["web"]}}}`
	require.NoError(t, os.WriteFile(filepath.Join(home, ".claude.json"), []byte(body), 0o644))

	records := loadClaudeUser(home, workspace, nil)
	byID := map[string]ServerRecord{}
	for _, r := range records {
		byID[r.ID] = r
	}
	require.Contains(t, byID, "fs")
	require.Contains(t, byID, "web")
	assert.True(t, byID["fs"].Enabled)
	assert.False(t, byID["web"].Enabled)
}

func TestLoadClaudeUserSkipsUnknownProject(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, ".claude.json"), []byte(`{"projects":{}}`), 0o644))
	records := loadClaudeUser(home, "/not/configured", nil)
	assert.Empty(t, records)
}

func TestLoadClaudeWorkspaceParsesMCPJSON(t *testing.T) {
	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, ".mcp.json"),
		[]byte(`{"mcpServers":{"fs":{"command":"docengine-mcp"}}}`), 0o644))

	records := loadClaudeWorkspace(workspace, nil)
	require.Len(t, records, 1)
	assert.Equal(t, "fs", records[0].ID)
}

func TestLoadCodexTOMLParsesServers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[mcp_servers.fs]
command = "docengine-mcp"
`), 0o644))

	records := loadCodexTOML(path, "codex-user", nil)
	require.Len(t, records, 1)
	assert.Equal(t, "fs", records[0].ID)
}

func TestLoadGeminiJSONParsesServers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mcpServers":{"fs":{"url":"http://localhost:9000/mcp"}}}`), 0o644))

	records := loadGeminiJSON(path, "gemini-user", nil)
	require.Len(t, records, 1)
	assert.Equal(t, "http", records[0].Type)
}

func TestDiscoverMergesSourcesAndSortsByID(t *testing.T) {
	home := t.TempDir()
	workspace := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, os.WriteFile(filepath.Join(workspace, ".mcp.json"),
		[]byte(`{"mcpServers":{"zeta":{"command":"zeta-server"},"alpha":{"command":"alpha-server"}}}`), 0o644))

	records, err := Discover(workspace, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "alpha", records[0].ID)
	assert.Equal(t, "zeta", records[1].ID)
	assert.Equal(t, "claude-workspace", records[0].Source)
}
