// Package setup registers the MCP server binary with Claude Desktop.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
)

// ServerEntryName is the key written under mcpServers
const ServerEntryName = "trial-match-server"

// Environment variables passed through to the registered server
const (
	EnvProvider   = "TRIAL_MATCH_LLM_PROVIDER"
	EnvCacheDir   = "TRIAL_MATCH_CACHE_DIR"
	EnvConfigFile = "TRIAL_MATCH_CONFIG"
)

// ClaudeDesktopConfig represents the Claude Desktop configuration file structure.
// Unknown top-level keys are preserved.
type ClaudeDesktopConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
	extra      map[string]json.RawMessage
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options contains options for registering the server.
type Options struct {
	BinaryPath string // defaults to the running executable
	ConfigPath string // Claude Desktop config file; defaults per OS
	Provider   string // ollama or anthropic
	CacheDir   string
	ConfigFile string // server config.yaml
}

// GetClaudeDesktopConfigPath returns the path to Claude Desktop's config file.
func GetClaudeDesktopConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "Claude")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClaudeDesktopConfig loads the existing configuration. A missing file
// yields an empty configuration.
func LoadClaudeDesktopConfig(configPath string) (*ClaudeDesktopConfig, error) {
	config := &ClaudeDesktopConfig{
		MCPServers: make(map[string]MCPServerConfig),
		extra:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &config.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := config.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &config.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(config.extra, "mcpServers")
	}
	if config.MCPServers == nil {
		config.MCPServers = make(map[string]MCPServerConfig)
	}

	return config, nil
}

// SaveClaudeDesktopConfig writes the configuration, creating the directory if needed.
func SaveClaudeDesktopConfig(configPath string, config *ClaudeDesktopConfig) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]any, len(config.extra)+1)
	for k, v := range config.extra {
		out[k] = v
	}
	out["mcpServers"] = config.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// BuildServerEntry returns the mcpServers entry for opts
func BuildServerEntry(opts Options) MCPServerConfig {
	entry := MCPServerConfig{
		Command: opts.BinaryPath,
		Env:     make(map[string]string),
	}
	if opts.Provider != "" {
		entry.Env[EnvProvider] = opts.Provider
	}
	if opts.CacheDir != "" {
		entry.Env[EnvCacheDir] = opts.CacheDir
	}
	if opts.ConfigFile != "" {
		entry.Env[EnvConfigFile] = opts.ConfigFile
	}
	return entry
}

// ConfigureClaudeDesktop adds or replaces the server entry and returns the
// config file path that was written.
func ConfigureClaudeDesktop(opts Options) (string, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		var err error
		if configPath, err = GetClaudeDesktopConfigPath(); err != nil {
			return "", err
		}
	}

	if opts.BinaryPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("could not determine server binary: %w", err)
		}
		opts.BinaryPath = execPath
	}
	if abs, err := filepath.Abs(opts.BinaryPath); err == nil {
		opts.BinaryPath = abs
	}

	config, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		return "", err
	}

	config.MCPServers[ServerEntryName] = BuildServerEntry(opts)

	if err := SaveClaudeDesktopConfig(configPath, config); err != nil {
		return "", err
	}
	return configPath, nil
}

// Status represents the current registration status.
type Status struct {
	ConfigPath string
	Registered bool
	ServerPath string
	Env        map[string]string
	Issues     []string
}

// GetStatus inspects the Claude Desktop configuration at configPath, or the
// default location when empty.
func GetStatus(configPath string) (*Status, error) {
	if configPath == "" {
		var err error
		if configPath, err = GetClaudeDesktopConfigPath(); err != nil {
			return nil, err
		}
	}

	status := &Status{ConfigPath: configPath, Issues: []string{}}

	config, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("Could not load Claude Desktop config: %v", err))
		return status, nil
	}

	entry, ok := config.MCPServers[ServerEntryName]
	if !ok {
		status.Issues = append(status.Issues, "Server is not registered with Claude Desktop")
		return status, nil
	}

	status.Registered = true
	status.ServerPath = entry.Command
	status.Env = entry.Env

	info, err := os.Stat(entry.Command)
	switch {
	case os.IsNotExist(err):
		status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found: %s", entry.Command))
	case err == nil && runtime.GOOS != "windows" && info.Mode()&0111 == 0:
		status.Issues = append(status.Issues, fmt.Sprintf("Server binary is not executable: %s", entry.Command))
	}

	if entry.Env[EnvProvider] == "anthropic" && os.Getenv("ANTHROPIC_API_KEY") == "" {
		status.Issues = append(status.Issues, "Provider is anthropic but ANTHROPIC_API_KEY is not set in this shell")
	}

	return status, nil
}

// sortedKeys returns map keys in order for stable output
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
