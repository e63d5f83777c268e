// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/pplx-tui/internal/config"
	"github.com/jeranaias/pplx-tui/internal/perplexity"
	"github.com/jeranaias/pplx-tui/internal/worker"
)

// maxTurns bounds the context sent with each chat request.
const maxTurns = 20

// =============================================================================
// CONVERSATION
// =============================================================================

// conversation is the alternating user/assistant history of a chat.
type conversation struct {
	messages []perplexity.Message
}

// ask appends a user turn and returns a copy of the history to send. The
// copy is owned by the request, which may still be reading it after a
// cancel has rolled the turn back.
func (c *conversation) ask(text string) []perplexity.Message {
	c.messages = append(c.messages, perplexity.NewUserMessage(text))
	c.trim()
	return append([]perplexity.Message(nil), c.messages...)
}

// answer appends the assistant reply to the pending user turn.
func (c *conversation) answer(text string) {
	c.messages = append(c.messages, perplexity.NewAssistantMessage(text))
}

// rollback drops an unanswered user turn.
func (c *conversation) rollback() {
	if n := len(c.messages); n > 0 && c.messages[n-1].Role == perplexity.RoleUser {
		c.messages = c.messages[:n-1]
	}
}

func (c *conversation) reset() {
	c.messages = nil
}

// turns returns the number of answered exchanges.
func (c *conversation) turns() int {
	return len(c.messages) / 2
}

// trim keeps the most recent maxTurns exchanges plus the pending user
// turn. The kept history always starts with a user message.
func (c *conversation) trim() {
	limit := maxTurns*2 + 1
	if len(c.messages) <= limit {
		return
	}
	c.messages = append([]perplexity.Message(nil), c.messages[len(c.messages)-limit:]...)
}

// =============================================================================
// LINE EDITOR
// =============================================================================

// lineEditor wraps liner with a persistent input history.
type lineEditor struct {
	line        *liner.State
	historyFile string
}

func newLineEditor() *lineEditor {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	e := &lineEditor{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(e.historyFile); err == nil {
		e.line.ReadHistory(f)
		f.Close()
	}
	return e
}

func (e *lineEditor) prompt(p string) (string, error) {
	input, err := e.line.Prompt(p)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		e.line.AppendHistory(input)
	}
	return input, nil
}

// close saves the input history with 0600 permissions.
func (e *lineEditor) close() {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(e.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			e.line.WriteHistory(f)
			f.Close()
		}
	}
	e.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// slashCommand is a parsed "/name arg" line.
type slashCommand struct {
	name string
	arg  string
}

// parseSlash recognises lines starting with "/".
func parseSlash(line string) (slashCommand, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") || len(line) == 1 {
		return slashCommand{}, false
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	return slashCommand{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}

// chatSession is the state of one interactive chat.
type chatSession struct {
	env    *Env
	cfg    *config.Config
	client API
	conv   conversation
	format perplexity.Format
	raw    bool
}

func runREPL(env *Env, args Args) error {
	cfg, err := env.loadConfig(args)
	if err != nil {
		return err
	}
	format, err := perplexity.ParseFormat(cfg.Request.Format)
	if err != nil {
		return err
	}
	client, err := env.client(cfg)
	if err != nil {
		return err
	}

	s := &chatSession{env: env, cfg: cfg, client: client, format: format, raw: args.Raw}
	s.printWelcome()

	editor := newLineEditor()
	defer editor.close()

	for {
		input, err := editor.prompt("pplx> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(env.Stdout)
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if cmd, ok := parseSlash(input); ok {
			if quit := s.handleSlash(cmd); quit {
				break
			}
			continue
		}
		s.send(input)
	}

	fmt.Fprintf(env.Stdout, "%s\n", DimStyle.Render(fmt.Sprintf("Session ended after %d exchange(s).", s.conv.turns())))
	return nil
}

// send issues one chat turn. Ctrl+C cancels the request and keeps the
// session.
func (s *chatSession) send(input string) {
	history := s.conv.ask(input)
	opts := requestOptions(s.cfg)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	start := time.Now()
	task := worker.Start(context.Background(), func(ctx context.Context) (*perplexity.ChatResponse, error) {
		return s.client.Converse(ctx, history, opts)
	})
	fmt.Fprint(s.env.Stderr, DimStyle.Render("⏳ Please wait...")+"\r")
	select {
	case <-task.Done():
	case <-sigCtx.Done():
		task.Cancel()
	}
	stop()
	fmt.Fprint(s.env.Stderr, "\r\033[K")

	res := task.Result()
	if res.Err != nil {
		s.conv.rollback()
		if errors.Is(res.Err, worker.ErrCancelled) {
			fmt.Fprintln(s.env.Stdout, WarningStyle.Render("⚠️ Request cancelled."))
			return
		}
		fmt.Fprintln(s.env.Stdout, ErrorStyle.Render(perplexity.FormatError(res.Err)))
		return
	}

	resp := res.Value
	s.conv.answer(resp.Content())
	out, err := perplexity.FormatOutput(resp, s.format)
	if err != nil {
		fmt.Fprintln(s.env.Stdout, ErrorStyle.Render(perplexity.FormatError(err)))
		return
	}
	s.env.printResponse(out, s.format, s.raw)
	s.env.record(s.cfg, exchangeFrom(config.CommandChat, opts.Model, input, resp, time.Since(start)))
}

// handleSlash runs a slash command and reports whether to quit.
func (s *chatSession) handleSlash(cmd slashCommand) bool {
	out := s.env.Stdout
	switch cmd.name {
	case "quit", "exit", "q":
		return true
	case "help", "h", "?":
		s.printHelp()
	case "clear", "c":
		s.conv.reset()
		fmt.Fprintln(out, SuccessStyle.Render("Conversation cleared."))
	case "model", "m":
		if cmd.arg == "" {
			fmt.Fprintln(out, RenderField("Model", s.cfg.Request.Model))
			fmt.Fprintln(out, DimStyle.Render("Available: "+strings.Join(perplexity.Models, ", ")))
			break
		}
		s.cfg.Request.Model = cmd.arg
		if !perplexity.KnownModel(cmd.arg) {
			fmt.Fprintln(out, WarningStyle.Render("Unknown model, sending it as-is."))
		}
		fmt.Fprintln(out, SuccessStyle.Render("Model set to "+cmd.arg))
	case "format":
		f, err := perplexity.ParseFormat(cmd.arg)
		if err != nil {
			fmt.Fprintln(out, ErrorStyle.Render(err.Error()))
			break
		}
		s.format = f
		fmt.Fprintln(out, SuccessStyle.Render("Format set to "+string(f)))
	case "history":
		s.printHistory()
	default:
		fmt.Fprintln(out, WarningStyle.Render(fmt.Sprintf("Unknown command /%s (try /help)", cmd.name)))
	}
	return false
}

func (s *chatSession) printWelcome() {
	out := s.env.Stdout
	fmt.Fprintln(out, TitleStyle.Render("pplx chat"))
	fmt.Fprintln(out, RenderField("Model", s.cfg.Request.Model))
	fmt.Fprintln(out, DimStyle.Render("Type /help for commands, Ctrl+D to quit."))
	fmt.Fprintln(out)
}

func (s *chatSession) printHelp() {
	out := s.env.Stdout
	fmt.Fprintln(out, SectionStyle.Render("Commands"))
	for _, line := range [][2]string{
		{"/help", "Show this help"},
		{"/clear", "Forget the conversation"},
		{"/model [name]", "Show or switch the model"},
		{"/format pretty|json", "Switch the output format"},
		{"/history", "Show the conversation so far"},
		{"/quit", "Leave (also Ctrl+D)"},
		{"Ctrl+C", "Cancel a running request"},
	} {
		fmt.Fprintln(out, RenderField(line[0], line[1]))
	}
}

func (s *chatSession) printHistory() {
	out := s.env.Stdout
	if len(s.conv.messages) == 0 {
		fmt.Fprintln(out, DimStyle.Render("No messages yet."))
		return
	}
	for _, m := range s.conv.messages {
		label := PromptStyle.Render("you")
		if m.Role == perplexity.RoleAssistant {
			label = IDStyle.Render("pplx")
		}
		fmt.Fprintf(out, "%s  %s\n", label, RenderCell(m.Content, TerminalWidth()-8))
	}
}
