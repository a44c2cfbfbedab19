package setup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// CLI provides command-line interface for setup operations.
type CLI struct {
	binaryName string
	in         *bufio.Reader
	out        io.Writer
}

// NewCLI creates a CLI reading from stdin and writing to stdout.
func NewCLI(binaryName string) *CLI {
	return NewCLIWithIO(binaryName, os.Stdin, os.Stdout)
}

// NewCLIWithIO creates a CLI over the given streams.
func NewCLIWithIO(binaryName string, in io.Reader, out io.Writer) *CLI {
	return &CLI{
		binaryName: binaryName,
		in:         bufio.NewReader(in),
		out:        out,
	}
}

// Run executes the setup command based on the provided arguments.
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	switch args[0] {
	case "claude-desktop":
		return c.setupClaudeDesktop(args[1:])
	case "status":
		return c.showStatus(args[1:])
	case "help", "--help", "-h":
		return c.showHelp()
	default:
		fmt.Fprintf(c.out, "Unknown command: %s\n\n", args[0])
		return c.showHelp()
	}
}

func (c *CLI) showHelp() error {
	fmt.Fprintf(c.out, `
Trial Match MCP Server Setup

Usage:
  %[1]s setup <command> [options]

Commands:
  claude-desktop  Register this server with Claude Desktop
  status          Show current registration status

Options for claude-desktop:
  --binary, -b <path>      server binary (default: this executable)
  --provider, -p <name>    LLM provider: ollama or anthropic
  --cache-dir <dir>        result cache directory
  --config <file>          server config.yaml
  --claude-config <file>   Claude Desktop config file (default: per OS)
  --auto, -y               skip confirmation

Examples:
  %[1]s setup claude-desktop --provider ollama
  %[1]s setup status
`, c.binaryName)
	return nil
}

// parseOptions reads flag/value pairs. Unknown flags are rejected.
func parseOptions(args []string) (Options, bool, error) {
	var opts Options
	auto := false

	for i := 0; i < len(args); i++ {
		flag := args[i]
		if flag == "--auto" || flag == "-y" {
			auto = true
			continue
		}
		if i+1 >= len(args) {
			return opts, auto, fmt.Errorf("missing value for %s", flag)
		}
		value := args[i+1]
		i++

		switch flag {
		case "--binary", "-b":
			opts.BinaryPath = value
		case "--provider", "-p":
			value = strings.ToLower(value)
			if value != "ollama" && value != "anthropic" {
				return opts, auto, fmt.Errorf("unknown provider %q", value)
			}
			opts.Provider = value
		case "--cache-dir":
			opts.CacheDir = value
		case "--config":
			opts.ConfigFile = value
		case "--claude-config":
			opts.ConfigPath = value
		default:
			return opts, auto, fmt.Errorf("unknown option %s", flag)
		}
	}
	return opts, auto, nil
}

func (c *CLI) setupClaudeDesktop(args []string) error {
	opts, auto, err := parseOptions(args)
	if err != nil {
		return err
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath, _ = GetClaudeDesktopConfigPath()
	}
	fmt.Fprintln(c.out, "Claude Desktop Configuration")
	fmt.Fprintln(c.out, "============================")
	fmt.Fprintf(c.out, "Config file: %s\n", configPath)
	if opts.BinaryPath != "" {
		fmt.Fprintf(c.out, "Server binary: %s\n", opts.BinaryPath)
	}
	if opts.Provider != "" {
		fmt.Fprintf(c.out, "LLM provider: %s\n", opts.Provider)
	}
	fmt.Fprintln(c.out)

	if !auto {
		fmt.Fprint(c.out, "Proceed with configuration? [Y/n]: ")
		response, _ := c.in.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "" && response != "y" && response != "yes" {
			fmt.Fprintln(c.out, "Configuration cancelled.")
			return nil
		}
	}

	written, err := ConfigureClaudeDesktop(opts)
	if err != nil {
		return fmt.Errorf("failed to configure Claude Desktop: %w", err)
	}

	fmt.Fprintf(c.out, "\nRegistered %s in %s\n", ServerEntryName, written)
	fmt.Fprintln(c.out, "Restart Claude Desktop, then ask it to search for recruiting trials or match a patient.")
	return nil
}

func (c *CLI) showStatus(args []string) error {
	opts, _, err := parseOptions(args)
	if err != nil {
		return err
	}

	status, err := GetStatus(opts.ConfigPath)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "Trial Match MCP Server Status")
	fmt.Fprintln(c.out, "=============================")
	fmt.Fprintf(c.out, "Claude Desktop config: %s\n", status.ConfigPath)
	fmt.Fprintf(c.out, "Registered: %t\n", status.Registered)
	if status.Registered {
		fmt.Fprintf(c.out, "Server binary: %s\n", status.ServerPath)
		for _, k := range sortedKeys(status.Env) {
			fmt.Fprintf(c.out, "  %s=%s\n", k, status.Env[k])
		}
	}
	if len(status.Issues) > 0 {
		fmt.Fprintln(c.out, "\nIssues:")
		for _, issue := range status.Issues {
			fmt.Fprintf(c.out, "  - %s\n", issue)
		}
	}
	return nil
}
