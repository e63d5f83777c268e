// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pplx-tui/internal/config"
	"github.com/jeranaias/pplx-tui/internal/perplexity"
	"github.com/jeranaias/pplx-tui/internal/storage"
)

const testAPIKey = "pplx-test-0123456789abcdefghijklmnop"

const okBody = `{
	"id": "resp-1",
	"model": "sonar-pro",
	"choices": [{
		"index": 0,
		"message": {"role": "assistant", "content": "Paris is the capital of France."},
		"finish_reason": "stop"
	}],
	"citations": ["https://example.com/paris"],
	"usage": {"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20}
}`

// =============================================================================
// TEST HELPERS
// =============================================================================

type testEnv struct {
	*Env
	out  *bytes.Buffer
	err  *bytes.Buffer
	home string
}

// newTestEnv isolates config, history and the API key in temp dirs.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PPLX_HOME", dir)
	t.Setenv("PPLX_CONFIG", "")
	t.Setenv("PPLX_MODEL", "")
	t.Setenv("PPLX_FORMAT", "")
	t.Setenv("PPLX_BASE_URL", "")
	t.Setenv("PPLX_DEBUG", "")
	t.Setenv(config.APIKeyEnv, testAPIKey)

	home := filepath.Join(dir, "home")
	require.NoError(t, os.MkdirAll(home, 0700))

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &testEnv{
		Env: &Env{
			Stdout:     out,
			Stderr:     errOut,
			Stdin:      strings.NewReader(""),
			ConfigPath: filepath.Join(dir, "config.toml"),
			HomeDir:    home,
			Now:        func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
		},
		out:  out,
		err:  errOut,
		home: home,
	}
}

// fakeAPI points the env at an httptest server answering status/body.
// It returns the number of requests served and the last request body.
func fakeAPI(t *testing.T, status int, body string) (*atomic.Int32, *perplexity.ChatRequest) {
	t.Helper()
	var calls atomic.Int32
	last := &perplexity.ChatRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, last); err != nil {
			t.Errorf("server: bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-Id", "req-42")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	t.Setenv("PPLX_BASE_URL", server.URL)
	return &calls, last
}

func mustParse(t *testing.T, argv ...string) (Command, Args) {
	t.Helper()
	cmd, args, err := ParseArgs(argv)
	require.NoError(t, err)
	return cmd, args
}

func run(t *testing.T, env *testEnv, argv ...string) error {
	t.Helper()
	cmd, args := mustParse(t, argv...)
	return Run(env.Env, cmd, args)
}

// =============================================================================
// PARSING
// =============================================================================

func TestParseArgs_Commands(t *testing.T) {
	tests := []struct {
		argv  []string
		want  Command
		query string
	}{
		{nil, CmdTUI, ""},
		{[]string{"search", "what", "is", "go"}, CmdSearch, "what is go"},
		{[]string{"s", "go"}, CmdSearch, "go"},
		{[]string{"ask", "go"}, CmdSearch, "go"},
		{[]string{"chat"}, CmdChat, ""},
		{[]string{"c", "hello there"}, CmdChat, "hello there"},
		{[]string{"setup"}, CmdSetup, ""},
		{[]string{"debug"}, CmdTest, ""},
		{[]string{"config", "get", "request.model"}, CmdConfig, "get request.model"},
		{[]string{"hist"}, CmdHistory, ""},
		{[]string{"version"}, CmdVersion, ""},
		{[]string{"--version"}, CmdVersion, ""},
		{[]string{"search", "x", "-h"}, CmdHelp, "x"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.argv, " "), func(t *testing.T) {
			cmd, args := mustParse(t, tt.argv...)
			assert.Equal(t, tt.want, cmd)
			assert.Equal(t, tt.query, args.Query)
		})
	}
}

func TestParseArgs_RequestFlags(t *testing.T) {
	_, args := mustParse(t, "search", "--model", "sonar", "--max-tokens=50", "-t", "0.7", "--format", "json", "--raw", "-v", "rust", "traits")

	assert.Equal(t, "sonar", args.Model)
	assert.Equal(t, "50", args.MaxTokens)
	assert.Equal(t, "0.7", args.Temperature)
	assert.Equal(t, "json", args.Format)
	assert.True(t, args.Raw)
	assert.True(t, args.Verbose)
	assert.Equal(t, "rust traits", args.Query)
}

func TestParseArgs_UnknownCommandSuggests(t *testing.T) {
	_, _, err := ParseArgs([]string{"serch", "go"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "search"`)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestParseArgs_SearchNeedsQuery(t *testing.T) {
	_, _, err := ParseArgs([]string{"search"})
	require.Error(t, err)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestArgParser(t *testing.T) {
	p := NewArgParser([]string{"history", "list", "--raw", "first", "--limit", "5", "--offset=-2", "--", "--not-a-flag"}, "raw")

	assert.Equal(t, "history", p.Subcommand())
	assert.True(t, p.BoolFlag("raw"))
	assert.Equal(t, "5", p.Flag("limit"))
	assert.Equal(t, "-2", p.Flag("offset"))
	assert.Equal(t, []string{"history", "list", "first", "--not-a-flag"}, p.PositionalFrom(0))
	assert.True(t, p.HasFlag("--limit"))
	assert.False(t, p.HasFlag("model"))

	n, err := p.FlagInt("limit", 20)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = p.FlagInt("missing", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

func TestArgParser_NegativeNumberIsValue(t *testing.T) {
	p := NewArgParser([]string{"--temperature", "-0.5"})
	assert.Equal(t, "-0.5", p.Flag("temperature"))
	assert.Equal(t, 0, p.PositionalCount())
}

func TestArgParser_BadInt(t *testing.T) {
	p := NewArgParser([]string{"--limit", "many"})
	_, err := p.FlagInt("limit", 20)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"y", "YES", "true", "1", "on"} {
		b, err := ParseBoolString(s)
		assert.NoError(t, err, s)
		assert.True(t, b, s)
	}
	for _, s := range []string{"n", "No", "false", "0", "off"} {
		b, err := ParseBoolString(s)
		assert.NoError(t, err, s)
		assert.False(t, b, s)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	args := Args{Model: "sonar", MaxTokens: "200", Temperature: "1.5", Format: "JSON"}
	require.NoError(t, args.ApplyOverrides(cfg))

	assert.Equal(t, "sonar", cfg.Request.Model)
	assert.Equal(t, 200, cfg.Request.MaxTokens)
	assert.InDelta(t, 1.5, cfg.Request.Temperature, 1e-9)
	assert.Equal(t, "json", cfg.Request.Format)
}

func TestApplyOverrides_Invalid(t *testing.T) {
	tests := []Args{
		{MaxTokens: "lots"},
		{MaxTokens: "0"},
		{Temperature: "3"},
		{Format: "yaml"},
	}
	for _, args := range tests {
		err := args.ApplyOverrides(config.Default())
		assert.Error(t, err, "%+v", args)
		assert.Equal(t, ExitUsageError, GetExitCode(err), "%+v", args)
	}
}

func TestSuggestCommand(t *testing.T) {
	assert.Equal(t, "search", SuggestCommand("serach"))
	assert.Equal(t, "history", SuggestCommand("histroy"))
	assert.Equal(t, "", SuggestCommand("search"))
	assert.Equal(t, "", SuggestCommand("zzzzzzzz"))
	assert.Equal(t, "", SuggestCommand("x"))
}

// =============================================================================
// EXIT CODES
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitGeneralError},
		{"validation", NewValidationError("--x", "y", "bad"), ExitUsageError},
		{"tty", &TTYRequiredError{Operation: "chat"}, ExitUsageError},
		{"ambiguous", fmt.Errorf("get: %w", storage.ErrAmbiguousID), ExitUsageError},
		{"no key", config.ErrNoAPIKey, ExitConfigError},
		{"bad config", fmt.Errorf("load: %w", config.ValidateErrors{{Field: "a", Message: "b"}}), ExitConfigError},
		{"unauthorized", &perplexity.APIError{StatusCode: 401, Message: "no"}, ExitAuthError},
		{"payment", &perplexity.APIError{StatusCode: 402, Message: "pay"}, ExitAuthError},
		{"rate limited", &perplexity.APIError{StatusCode: 429, Message: "slow"}, ExitNetworkError},
		{"server", &perplexity.APIError{StatusCode: 503, Message: "down"}, ExitNetworkError},
		{"not found", NewNotFoundError("exchange", "abcd"), ExitNotFoundError},
		{"store not found", storage.ErrNotFound, ExitNotFoundError},
		{"deadline", fmt.Errorf("request failed: %w", context.DeadlineExceeded), ExitTimeoutError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestDisplayError(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, errors.New("kaboom"))
	assert.Contains(t, buf.String(), "Error:")
	assert.Contains(t, buf.String(), "kaboom")

	buf.Reset()
	DisplayError(&buf, nil)
	assert.Empty(t, buf.String())
}

// =============================================================================
// CONVERSATION
// =============================================================================

func TestConversation_AskAnswerRollback(t *testing.T) {
	var c conversation
	sent := c.ask("hi")
	require.Len(t, sent, 1)
	c.answer("hello")
	assert.Equal(t, 1, c.turns())

	c.ask("second")
	c.rollback()
	assert.Len(t, c.messages, 2)
	assert.Equal(t, perplexity.RoleAssistant, c.messages[1].Role)

	// Nothing to roll back after an answer.
	c.rollback()
	assert.Len(t, c.messages, 2)

	c.reset()
	assert.Equal(t, 0, c.turns())
}

func TestConversation_SentHistoryIsNotShared(t *testing.T) {
	var c conversation
	c.messages = make([]perplexity.Message, 0, 8)
	sent := c.ask("first")

	// A cancelled turn is rolled back while the request may still be
	// reading sent; the next turn reuses the same backing array.
	c.rollback()
	c.ask("replacement")

	require.Len(t, sent, 1)
	assert.Equal(t, "first", sent[0].Content)
}

func TestConversation_TrimKeepsRecentTurns(t *testing.T) {
	var c conversation
	for i := 0; i < maxTurns+5; i++ {
		c.ask(fmt.Sprintf("q%d", i))
		c.answer(fmt.Sprintf("a%d", i))
	}
	sent := c.ask("last")

	assert.Len(t, sent, maxTurns*2+1)
	assert.Equal(t, perplexity.RoleUser, sent[0].Role)
	assert.Equal(t, "last", sent[len(sent)-1].Content)
	assert.Equal(t, fmt.Sprintf("q%d", 5), sent[0].Content)
}

func TestParseSlash(t *testing.T) {
	cmd, ok := parseSlash("  /Model sonar  ")
	require.True(t, ok)
	assert.Equal(t, "model", cmd.name)
	assert.Equal(t, "sonar", cmd.arg)

	_, ok = parseSlash("/")
	assert.False(t, ok)
	_, ok = parseSlash("what about /this")
	assert.False(t, ok)
}

func TestChatSession_SlashCommands(t *testing.T) {
	env := newTestEnv(t)
	s := &chatSession{env: env.Env, cfg: config.Default(), format: perplexity.FormatPretty}
	s.conv.ask("q")
	s.conv.answer("a")

	assert.False(t, s.handleSlash(slashCommand{name: "model", arg: "sonar"}))
	assert.Equal(t, "sonar", s.cfg.Request.Model)

	assert.False(t, s.handleSlash(slashCommand{name: "format", arg: "json"}))
	assert.Equal(t, perplexity.FormatJSON, s.format)

	assert.False(t, s.handleSlash(slashCommand{name: "format", arg: "xml"}))
	assert.Equal(t, perplexity.FormatJSON, s.format)

	assert.False(t, s.handleSlash(slashCommand{name: "clear"}))
	assert.Equal(t, 0, s.conv.turns())

	assert.True(t, s.handleSlash(slashCommand{name: "quit"}))
}

func TestChatSession_SendKeepsContext(t *testing.T) {
	env := newTestEnv(t)
	calls, last := fakeAPI(t, http.StatusOK, okBody)
	cfg, err := env.loadConfig(Args{})
	require.NoError(t, err)
	client, err := env.client(cfg)
	require.NoError(t, err)

	s := &chatSession{env: env.Env, cfg: cfg, client: client, format: perplexity.FormatPretty}
	s.send("capital of France?")
	s.send("and Spain?")

	assert.Equal(t, int32(2), calls.Load())
	// system, user, assistant, user
	require.Len(t, last.Messages, 4)
	assert.Equal(t, "and Spain?", last.Messages[3].Content)
	assert.Equal(t, 2, s.conv.turns())
	assert.Contains(t, env.out.String(), "Paris is the capital of France.")
}

func TestChatSession_SendErrorRollsBack(t *testing.T) {
	env := newTestEnv(t)
	fakeAPI(t, http.StatusUnauthorized, `{"error":{"message":"bad key"}}`)
	cfg, err := env.loadConfig(Args{})
	require.NoError(t, err)
	client, err := env.client(cfg)
	require.NoError(t, err)

	s := &chatSession{env: env.Env, cfg: cfg, client: client, format: perplexity.FormatPretty}
	s.send("hello")

	assert.Empty(t, s.conv.messages)
	assert.Contains(t, env.out.String(), "❌ Error:")
	assert.Contains(t, env.out.String(), "bad key")
}

// =============================================================================
// ONE-SHOT COMMANDS
// =============================================================================

func TestHandleSearch_PrintsAndRecords(t *testing.T) {
	env := newTestEnv(t)
	calls, last := fakeAPI(t, http.StatusOK, okBody)

	require.NoError(t, run(t, env, "search", "capital", "of", "France", "--model", "sonar"))

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "sonar", last.Model)
	require.Len(t, last.Messages, 2)
	assert.Equal(t, perplexity.SearchSystemPrompt, last.Messages[0].Content)
	assert.Equal(t, "capital of France", last.Messages[1].Content)

	out := env.out.String()
	assert.Contains(t, out, "🤖 Perplexity AI Response")
	assert.Contains(t, out, "Paris is the capital of France.")
	assert.Contains(t, out, "https://example.com/paris")

	cfg, _, err := env.loadSavedConfig()
	require.NoError(t, err)
	store, err := openHistory(cfg)
	require.NoError(t, err)
	defer store.Close()
	items, err := store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, config.CommandSearch, items[0].Command)
	assert.Equal(t, "capital of France", items[0].Prompt)
	assert.Equal(t, 20, items[0].TotalTokens)
}

func TestHandleChat_OneShotJSON(t *testing.T) {
	env := newTestEnv(t)
	_, last := fakeAPI(t, http.StatusOK, okBody)

	require.NoError(t, run(t, env, "chat", "hello", "--format", "json"))

	assert.Equal(t, perplexity.ChatSystemPrompt, last.Messages[0].Content)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &decoded))
	assert.Equal(t, "resp-1", decoded["id"])
}

func TestHandleSearch_HistoryDisabled(t *testing.T) {
	env := newTestEnv(t)
	fakeAPI(t, http.StatusOK, okBody)
	require.NoError(t, os.WriteFile(env.ConfigPath, []byte("[history]\nenabled = false\n"), 0600))

	require.NoError(t, run(t, env, "search", "go"))

	_, err := os.Stat(filepath.Join(os.Getenv("PPLX_HOME"), "history.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestHandleSearch_Errors(t *testing.T) {
	t.Run("unauthorized", func(t *testing.T) {
		env := newTestEnv(t)
		fakeAPI(t, http.StatusUnauthorized, `{"error":{"message":"invalid key"}}`)
		err := run(t, env, "search", "go")
		require.Error(t, err)
		assert.Equal(t, ExitAuthError, GetExitCode(err))
		assert.Contains(t, err.Error(), "invalid key")
	})

	t.Run("no key", func(t *testing.T) {
		env := newTestEnv(t)
		t.Setenv(config.APIKeyEnv, "")
		err := run(t, env, "search", "go")
		assert.ErrorIs(t, err, config.ErrNoAPIKey)
		assert.Equal(t, ExitConfigError, GetExitCode(err))
	})

	t.Run("bad flag", func(t *testing.T) {
		env := newTestEnv(t)
		calls, _ := fakeAPI(t, http.StatusOK, okBody)
		err := run(t, env, "search", "go", "--max-tokens", "0")
		assert.Equal(t, ExitUsageError, GetExitCode(err))
		assert.Equal(t, int32(0), calls.Load())
	})
}

func TestHandleTest_DumpsExchange(t *testing.T) {
	env := newTestEnv(t)
	_, last := fakeAPI(t, http.StatusOK, okBody)

	require.NoError(t, run(t, env, "test"))

	assert.Equal(t, perplexity.DefaultModel, last.Model)
	assert.Equal(t, probeMaxTokens, last.MaxTokens)
	require.Len(t, last.Messages, 1)
	assert.Equal(t, probeMessage, last.Messages[0].Content)

	out := env.out.String()
	assert.Contains(t, out, config.MaskKey(testAPIKey))
	assert.NotContains(t, out, testAPIKey)
	assert.Contains(t, out, "/chat/completions")
	assert.Contains(t, out, "X-Request-Id")
	assert.Contains(t, out, "200 OK")
	assert.Contains(t, out, `"max_tokens": 100`)
	assert.Contains(t, out, "API request successful")
}

func TestHandleTest_FailureStatus(t *testing.T) {
	env := newTestEnv(t)
	fakeAPI(t, http.StatusPaymentRequired, `{"error":"quota"}`)

	err := run(t, env, "test", "--message", "ping")
	require.Error(t, err)
	assert.Equal(t, ExitAuthError, GetExitCode(err))
	assert.Contains(t, env.out.String(), "API request failed")
	assert.Contains(t, env.out.String(), "quota")
}

// =============================================================================
// SETUP
// =============================================================================

func TestHandleSetup_SavesExportsAndTests(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv(config.APIKeyEnv, "")
	calls, last := fakeAPI(t, http.StatusOK, okBody)
	bashrc := filepath.Join(env.home, ".bashrc")
	require.NoError(t, os.WriteFile(bashrc, []byte("alias ll='ls -l'\n"), 0600))

	require.NoError(t, run(t, env, "setup", "--key", testAPIKey, "-y"))

	cfg, err := config.LoadFromPath(env.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, testAPIKey, cfg.API.Key)

	saved, err := config.LoadFile(env.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, config.Default().API.BaseURL, saved.API.BaseURL, "env base URL must not be saved")

	profile, err := os.ReadFile(bashrc)
	require.NoError(t, err)
	assert.Contains(t, string(profile), "# Perplexity API Key")
	assert.Contains(t, string(profile), fmt.Sprintf("export %s=%q", config.APIKeyEnv, testAPIKey))

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 10, last.MaxTokens)
	assert.Equal(t, "Hello", last.Messages[0].Content)
	assert.Contains(t, env.out.String(), "API key is working!")
}

func TestHandleSetup_PromptsForKey(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv(config.APIKeyEnv, "")
	// key, then "continue anyway?" for the missing prefix
	env.Stdin = strings.NewReader("not-a-pplx-key\ny\n")

	require.NoError(t, run(t, env, "setup", "--no-shell", "--no-test"))

	cfg, err := config.LoadFromPath(env.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, "not-a-pplx-key", cfg.API.Key)
	assert.Contains(t, env.out.String(), "doesn't start with")
}

func TestHandleSetup_KeepsExistingKey(t *testing.T) {
	env := newTestEnv(t)
	env.Stdin = strings.NewReader("n\n")

	require.NoError(t, run(t, env, "setup"))

	_, err := os.Stat(env.ConfigPath)
	assert.True(t, os.IsNotExist(err), "config should not be written")
	assert.Contains(t, env.out.String(), "already set (environment)")
}

func TestAppendShellExport_SkipsExisting(t *testing.T) {
	profile := filepath.Join(t.TempDir(), ".zshrc")
	require.NoError(t, os.WriteFile(profile, []byte("export PERPLEXITY_API_KEY=old\n"), 0600))

	added, err := appendShellExport(profile, testAPIKey)
	require.NoError(t, err)
	assert.False(t, added)

	data, err := os.ReadFile(profile)
	require.NoError(t, err)
	assert.Equal(t, "export PERPLEXITY_API_KEY=old\n", string(data))
}

func TestFindShellProfile_Order(t *testing.T) {
	home := t.TempDir()
	assert.Equal(t, "", findShellProfile(home))

	require.NoError(t, os.WriteFile(filepath.Join(home, ".profile"), nil, 0600))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".zshrc"), nil, 0600))
	assert.Equal(t, filepath.Join(home, ".zshrc"), findShellProfile(home))
}

// =============================================================================
// CONFIG
// =============================================================================

func TestHandleConfig_SetGet(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, run(t, env, "config", "set", "request.temperature", "0.7"))
	assert.Contains(t, env.out.String(), "request.temperature = 0.7")

	env.out.Reset()
	require.NoError(t, run(t, env, "config", "get", "request.temperature"))
	assert.Equal(t, "0.7\n", env.out.String())

	require.NoError(t, run(t, env, "config", "set", "api.key", testAPIKey))
	env.out.Reset()
	require.NoError(t, run(t, env, "config", "get", "api.key"))
	assert.Equal(t, config.MaskKey(testAPIKey)+"\n", env.out.String())
}

func TestHandleConfig_SetKeepsEnvOverridesOutOfFile(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("PPLX_BASE_URL", "http://127.0.0.1:9/staging")
	t.Setenv("PPLX_MODEL", "sonar-reasoning")

	require.NoError(t, run(t, env, "config", "set", "request.max_tokens", "2048"))

	t.Setenv("PPLX_BASE_URL", "")
	t.Setenv("PPLX_MODEL", "")
	cfg, err := config.LoadFromPath(env.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.Request.MaxTokens)
	assert.Equal(t, config.Default().API.BaseURL, cfg.API.BaseURL)
	assert.Equal(t, config.Default().Request.Model, cfg.Request.Model)
}

func TestHandleConfig_SetRejectsInvalid(t *testing.T) {
	env := newTestEnv(t)

	err := run(t, env, "config", "set", "request.temperature", "9")
	assert.Equal(t, ExitConfigError, GetExitCode(err))

	err = run(t, env, "config", "set", "request.nope", "1")
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	_, statErr := os.Stat(env.ConfigPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestHandleConfig_ShowMasksKey(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, run(t, env, "config", "set", "api.key", testAPIKey))
	env.out.Reset()

	require.NoError(t, run(t, env, "config", "show"))
	assert.NotContains(t, env.out.String(), testAPIKey)
	assert.Contains(t, env.out.String(), config.MaskKey(testAPIKey))

	env.out.Reset()
	require.NoError(t, run(t, env, "config", "show", "--json"))
	assert.NotContains(t, env.out.String(), testAPIKey)
	var decoded map[string]any
	assert.NoError(t, json.Unmarshal(env.out.Bytes(), &decoded))
}

func TestHandleConfig_Path(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, run(t, env, "config", "path"))
	assert.Equal(t, env.ConfigPath+"\n", env.out.String())
}

// =============================================================================
// HISTORY
// =============================================================================

func seedHistory(t *testing.T, env *testEnv, prompts ...string) []*storage.Exchange {
	t.Helper()
	cfg, _, err := env.loadSavedConfig()
	require.NoError(t, err)
	store, err := openHistory(cfg)
	require.NoError(t, err)
	defer store.Close()

	var out []*storage.Exchange
	for _, p := range prompts {
		ex := &storage.Exchange{
			Command:  config.CommandSearch,
			Model:    "sonar-pro",
			Prompt:   p,
			Response: "answer to " + p,
		}
		require.NoError(t, store.Record(context.Background(), ex))
		out = append(out, ex)
	}
	return out
}

func TestHandleHistory_ListShowSearch(t *testing.T) {
	env := newTestEnv(t)
	items := seedHistory(t, env, "goroutines", "channels")

	require.NoError(t, run(t, env, "history"))
	assert.Contains(t, env.out.String(), "goroutines")
	assert.Contains(t, env.out.String(), "channels")

	env.out.Reset()
	require.NoError(t, run(t, env, "history", "show", items[0].ShortID()))
	assert.Contains(t, env.out.String(), items[0].ID)
	assert.Contains(t, env.out.String(), "answer to goroutines")

	env.out.Reset()
	require.NoError(t, run(t, env, "history", "search", "CHANNELS"))
	assert.Contains(t, env.out.String(), "channels")
	assert.NotContains(t, env.out.String(), "goroutines")
}

func TestHandleHistory_EmptyList(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, run(t, env, "history", "list"))
	assert.Contains(t, env.out.String(), "No history yet.")
}

func TestHandleHistory_ShowMissing(t *testing.T) {
	env := newTestEnv(t)
	err := run(t, env, "history", "show", "deadbeef")
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

func TestHandleHistory_DeleteAndClear(t *testing.T) {
	env := newTestEnv(t)
	items := seedHistory(t, env, "one", "two", "three")

	require.NoError(t, run(t, env, "history", "delete", items[1].ID))
	env.out.Reset()
	require.NoError(t, run(t, env, "history", "list"))
	assert.NotContains(t, env.out.String(), "two")

	require.NoError(t, run(t, env, "history", "clear", "-y"))
	assert.Contains(t, env.out.String(), "Removed 2 exchange(s)")
}

func TestHandleHistory_Export(t *testing.T) {
	env := newTestEnv(t)
	items := seedHistory(t, env, "what is go")
	outDir := t.TempDir()

	require.NoError(t, run(t, env, "history", "export", items[0].ShortID(), "--format", "json", "--output", outDir))

	matches, err := filepath.Glob(filepath.Join(outDir, "pplx_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "what is go")
	assert.Contains(t, env.out.String(), "Exported 1 exchange(s)")
}

func TestHandleHistory_ExportNothing(t *testing.T) {
	env := newTestEnv(t)
	err := run(t, env, "history", "export", "--output", t.TempDir())
	assert.Error(t, err)
}

func TestRun_VersionAndHelp(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, run(t, env, "version"))
	assert.Contains(t, env.out.String(), "pplx version "+Version)

	env.out.Reset()
	require.NoError(t, run(t, env, "help"))
	assert.Contains(t, env.out.String(), "pplx search")
}
