// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/jeranaias/pplx-tui/internal/config"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdSearch
	CmdChat
	CmdSetup
	CmdTest
	CmdConfig
	CmdHistory
	CmdVersion
	CmdHelp
)

// commandNames maps names and aliases to commands.
var commandNames = map[string]Command{
	"tui":     CmdTUI,
	"search":  CmdSearch,
	"s":       CmdSearch,
	"ask":     CmdSearch,
	"chat":    CmdChat,
	"c":       CmdChat,
	"setup":   CmdSetup,
	"test":    CmdTest,
	"debug":   CmdTest,
	"config":  CmdConfig,
	"history": CmdHistory,
	"hist":    CmdHistory,
	"version": CmdVersion,
	"help":    CmdHelp,
}

// boolFlags never take a value.
var boolFlags = []string{
	"verbose", "v", "raw", "help", "h", "version", "V",
	"yes", "y", "no-shell", "no-test", "open", "no-metadata", "json",
}

// Args holds parsed CLI arguments.
type Args struct {
	Verbose bool
	Raw     bool // print responses without markdown rendering

	// Request overrides; empty means "use the config".
	Model       string
	MaxTokens   string
	Temperature string
	Format      string

	// Query is every positional after the command, joined by spaces.
	Query string
	// Subcommand is the first positional after the command.
	Subcommand string
	// Positional holds the positionals after the command.
	Positional []string

	Flags *ArgParser
}

const usageText = `pplx - Perplexity AI from the terminal

Usage:
  pplx                          Start the TUI (default)
  pplx search "query"           One search request (aliases: s, ask)
  pplx chat "message"           One chat request
  pplx chat                     Interactive chat that keeps context
  pplx setup                    Save and test an API key
  pplx test                     Send a probe request and dump the exchange
  pplx config [show|get|set|path]
  pplx history [list|show|search|delete|clear|export]
  pplx version

Request flags:
  --model NAME          Model (default sonar-pro)
  --max-tokens N        Maximum tokens, 1-128000 (default 1000)
  --temperature T       Sampling temperature, 0.0-2.0 (default 0.2)
  --format pretty|json  Output format (default pretty)
  --raw                 Do not render markdown on a terminal
  -v, --verbose         Log diagnostics to stderr

Setup flags:
  --key KEY             Use KEY instead of prompting
  -y, --yes             Answer yes to every question
  --no-shell            Do not offer to edit a shell profile
  --no-test             Skip the test request

History:
  pplx history list [--limit N] [--offset N]
  pplx history show ID
  pplx history search TEXT [--limit N]
  pplx history delete ID
  pplx history clear [-y]
  pplx history export [ID...] [--format md|html|json] [--output DIR] [--open]

TUI keys:
  Enter send, Alt+Enter newline, Esc cancel, Ctrl+T search/chat,
  Ctrl+S settings, Ctrl+E show all, Ctrl+L clear, F1 help, Ctrl+C quit

Environment:
  PERPLEXITY_API_KEY    API key used when none is saved
  PPLX_HOME             Config directory (default ~/.pplx)
  PPLX_CONFIG           Config file (default $PPLX_HOME/config.toml)
  PPLX_MODEL, PPLX_FORMAT, PPLX_BASE_URL
  PPLX_DEBUG=1          Debug logging

Examples:
  pplx search "latest Go release" --model sonar
  pplx chat "explain goroutines" --format json
  pplx config set request.temperature 0.7
  pplx history export a1b2c3d4 --format html --open

Version: %s
`

// =============================================================================
// PARSING
// =============================================================================

// Parse parses os.Args. Parse errors are reported and exit the process.
func Parse() (Command, Args) {
	cmd, args, err := ParseArgs(os.Args[1:])
	if err != nil {
		HandleErrorAndExit(err)
	}
	return cmd, args
}

// ParseArgs parses argv (without the program name).
func ParseArgs(argv []string) (Command, Args, error) {
	p := NewArgParser(argv, boolFlags...)
	args := Args{
		Verbose:     p.BoolFlag("verbose", "v"),
		Raw:         p.BoolFlag("raw"),
		Model:       p.Flag("model", "m"),
		MaxTokens:   p.Flag("max-tokens"),
		Temperature: p.Flag("temperature", "t"),
		Format:      p.Flag("format", "f"),
		Flags:       p,
	}

	rest := p.PositionalFrom(1)
	args.Positional = rest
	args.Query = strings.TrimSpace(strings.Join(rest, " "))
	if len(rest) > 0 {
		args.Subcommand = rest[0]
	}

	if p.BoolFlag("version", "V") {
		return CmdVersion, args, nil
	}
	if p.BoolFlag("help", "h") {
		return CmdHelp, args, nil
	}

	name := strings.ToLower(p.Subcommand())
	if name == "" {
		return CmdTUI, args, nil
	}
	cmd, ok := commandNames[name]
	if !ok {
		reason := "unknown command"
		if s := SuggestCommand(name); s != "" {
			reason = fmt.Sprintf("unknown command (did you mean %q?)", s)
		}
		return CmdHelp, args, NewValidationErrorWithExample("command", name, reason, "pplx help")
	}

	if cmd == CmdSearch && args.Query == "" {
		return cmd, args, ErrMissingArgument("query", `pplx search "what is the capital of France?"`)
	}
	return cmd, args, nil
}

// ApplyOverrides copies the request flags into cfg and validates the
// result.
func (a Args) ApplyOverrides(cfg *config.Config) error {
	overrides := []struct{ key, flag, value string }{
		{"request.model", "--model", a.Model},
		{"request.max_tokens", "--max-tokens", a.MaxTokens},
		{"request.temperature", "--temperature", a.Temperature},
		{"request.format", "--format", a.Format},
	}
	for _, o := range overrides {
		if o.value == "" {
			continue
		}
		if err := cfg.Set(o.key, o.value); err != nil {
			return NewValidationError(o.flag, o.value, err.Error())
		}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return &ValidationError{Field: "request flags", Reason: err.Error()}
	}
	return nil
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

// Env is what command handlers read from and write to.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader

	// ConfigPath overrides config.ConfigPath.
	ConfigPath string
	// HomeDir overrides os.UserHomeDir for shell profile edits.
	HomeDir string
	// Interactive enables markdown rendering of responses.
	Interactive bool
	// NewClient builds the API client; NewAPIClient when nil.
	NewClient func(cfg *config.Config) (API, error)

	Now func() time.Time
}

// DefaultEnv uses the process streams.
func DefaultEnv() *Env {
	return &Env{
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Stdin:       os.Stdin,
		Interactive: IsStdoutTTY(),
		Now:         time.Now,
	}
}

func (e *Env) configPath() (string, error) {
	if e.ConfigPath != "" {
		return e.ConfigPath, nil
	}
	return config.ConfigPath()
}

// loadConfig reads the config file and applies the request flags.
func (e *Env) loadConfig(args Args) (*config.Config, error) {
	path, err := e.configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	if err := args.ApplyOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (e *Env) client(cfg *config.Config) (API, error) {
	if e.NewClient != nil {
		return e.NewClient(cfg)
	}
	c, err := NewAPIClient(cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// =============================================================================
// DISPATCH
// =============================================================================

// Run executes every command except CmdTUI.
func Run(env *Env, cmd Command, args Args) error {
	switch cmd {
	case CmdSearch:
		return HandleSearch(env, args)
	case CmdChat:
		return HandleChat(env, args)
	case CmdSetup:
		return HandleSetup(env, args)
	case CmdTest:
		return HandleTest(env, args)
	case CmdConfig:
		return HandleConfig(env, args)
	case CmdHistory:
		return HandleHistory(env, args)
	case CmdVersion:
		PrintVersion(env.Stdout)
		return nil
	case CmdHelp:
		PrintUsage(env.Stdout)
		return nil
	default:
		return fmt.Errorf("command %d cannot be run here", cmd)
	}
}

// ConfigureLogging sends log output to stderr when verbose or PPLX_DEBUG
// is set, and discards it otherwise.
func ConfigureLogging(verbose bool) {
	if verbose || config.DebugEnabled() {
		log.SetOutput(os.Stderr)
		log.SetFlags(log.Ltime | log.Lmicroseconds)
		return
	}
	log.SetOutput(io.Discard)
}

// PrintUsage prints the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "pplx version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
