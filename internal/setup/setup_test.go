package setup

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureClaudeDesktop_NewFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "Claude", "claude_desktop_config.json")

	written, err := ConfigureClaudeDesktop(Options{
		BinaryPath: "/usr/local/bin/trial-match-mcp",
		ConfigPath: configPath,
		Provider:   "ollama",
		CacheDir:   "/var/cache/trials",
	})
	require.NoError(t, err)
	assert.Equal(t, configPath, written)

	config, err := LoadClaudeDesktopConfig(configPath)
	require.NoError(t, err)

	entry, ok := config.MCPServers[ServerEntryName]
	require.True(t, ok)
	assert.Equal(t, "/usr/local/bin/trial-match-mcp", entry.Command)
	assert.Equal(t, "ollama", entry.Env[EnvProvider])
	assert.Equal(t, "/var/cache/trials", entry.Env[EnvCacheDir])
	assert.NotContains(t, entry.Env, EnvConfigFile)
}

func TestConfigureClaudeDesktop_PreservesExistingEntries(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "claude_desktop_config.json")
	existing := `{
  "globalShortcut": "Ctrl+Space",
  "mcpServers": {
    "filesystem": {"command": "npx", "args": ["-y", "@modelcontextprotocol/server-filesystem"]}
  }
}`
	require.NoError(t, os.WriteFile(configPath, []byte(existing), 0644))

	_, err := ConfigureClaudeDesktop(Options{BinaryPath: "/opt/trial-match-mcp", ConfigPath: configPath})
	require.NoError(t, err)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `"Ctrl+Space"`, string(raw["globalShortcut"]))

	config, err := LoadClaudeDesktopConfig(configPath)
	require.NoError(t, err)
	assert.Contains(t, config.MCPServers, "filesystem")
	assert.Contains(t, config.MCPServers, ServerEntryName)
	assert.Equal(t, []string{"-y", "@modelcontextprotocol/server-filesystem"}, config.MCPServers["filesystem"].Args)
}

func TestLoadClaudeDesktopConfig_Invalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "claude_desktop_config.json")
	require.NoError(t, os.WriteFile(configPath, []byte("{not json"), 0644))

	_, err := LoadClaudeDesktopConfig(configPath)
	assert.Error(t, err)
}

func TestGetStatus(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "claude_desktop_config.json")

	status, err := GetStatus(configPath)
	require.NoError(t, err)
	assert.False(t, status.Registered)
	assert.NotEmpty(t, status.Issues)

	binary := filepath.Join(dir, "trial-match-mcp")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0755))
	_, err = ConfigureClaudeDesktop(Options{BinaryPath: binary, ConfigPath: configPath, Provider: "ollama"})
	require.NoError(t, err)

	status, err = GetStatus(configPath)
	require.NoError(t, err)
	assert.True(t, status.Registered)
	assert.Equal(t, binary, status.ServerPath)
	assert.Empty(t, status.Issues)
}

func TestGetStatus_MissingBinary(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "claude_desktop_config.json")
	_, err := ConfigureClaudeDesktop(Options{BinaryPath: "/does/not/exist", ConfigPath: configPath})
	require.NoError(t, err)

	status, err := GetStatus(configPath)
	require.NoError(t, err)
	require.Len(t, status.Issues, 1)
	assert.Contains(t, status.Issues[0], "not found")
}

func TestCLI_ClaudeDesktop(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "claude_desktop_config.json")
	var out bytes.Buffer
	cli := NewCLIWithIO("trial-match-mcp", strings.NewReader("y\n"), &out)

	err := cli.Run([]string{"claude-desktop", "--binary", "/opt/bin/trial-match-mcp", "--provider", "Anthropic", "--claude-config", configPath})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Registered trial-match-server")

	config, err := LoadClaudeDesktopConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", config.MCPServers[ServerEntryName].Env[EnvProvider])
}

func TestCLI_ClaudeDesktopCancelled(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "claude_desktop_config.json")
	var out bytes.Buffer
	cli := NewCLIWithIO("trial-match-mcp", strings.NewReader("n\n"), &out)

	require.NoError(t, cli.Run([]string{"claude-desktop", "--claude-config", configPath}))
	assert.Contains(t, out.String(), "Configuration cancelled.")

	_, err := os.Stat(configPath)
	assert.True(t, os.IsNotExist(err))
}

func TestCLI_BadOptions(t *testing.T) {
	cli := NewCLIWithIO("trial-match-mcp", strings.NewReader(""), &bytes.Buffer{})

	assert.Error(t, cli.Run([]string{"claude-desktop", "--provider", "palm", "-y"}))
	assert.Error(t, cli.Run([]string{"claude-desktop", "--binary"}))
	assert.Error(t, cli.Run([]string{"claude-desktop", "--bogus", "x"}))
}

func TestCLI_Status(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "claude_desktop_config.json")
	_, err := ConfigureClaudeDesktop(Options{BinaryPath: "/opt/trial-match-mcp", ConfigPath: configPath, Provider: "ollama"})
	require.NoError(t, err)

	var out bytes.Buffer
	cli := NewCLIWithIO("trial-match-mcp", strings.NewReader(""), &out)
	require.NoError(t, cli.Run([]string{"status", "--claude-config", configPath}))

	assert.Contains(t, out.String(), "Registered: true")
	assert.Contains(t, out.String(), EnvProvider+"=ollama")
}

func TestCLI_Help(t *testing.T) {
	var out bytes.Buffer
	cli := NewCLIWithIO("trial-match-mcp", strings.NewReader(""), &out)

	require.NoError(t, cli.Run(nil))
	assert.Contains(t, out.String(), "trial-match-mcp setup <command>")
}
