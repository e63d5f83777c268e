// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/jeranaias/pplx-tui/internal/config"
	"github.com/jeranaias/pplx-tui/internal/perplexity"
	"github.com/jeranaias/pplx-tui/internal/storage"
)

// =============================================================================
// ONE-SHOT REQUESTS
// =============================================================================

// HandleSearch handles "pplx search QUERY".
func HandleSearch(env *Env, args Args) error {
	return runOneShot(env, args, config.CommandSearch)
}

// HandleChat handles "pplx chat [MESSAGE]". Without a message it starts
// the interactive chat.
func HandleChat(env *Env, args Args) error {
	if args.Query == "" {
		return runREPL(env, args)
	}
	return runOneShot(env, args, config.CommandChat)
}

func runOneShot(env *Env, args Args, command string) error {
	cfg, err := env.loadConfig(args)
	if err != nil {
		return err
	}
	format, err := perplexity.ParseFormat(cfg.Request.Format)
	if err != nil {
		return NewValidationError("--format", cfg.Request.Format, err.Error())
	}
	client, err := env.client(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := requestOptions(cfg)
	start := time.Now()
	var resp *perplexity.ChatResponse
	if command == config.CommandChat {
		resp, err = client.Chat(ctx, args.Query, opts)
	} else {
		resp, err = client.Search(ctx, args.Query, opts)
	}
	if err != nil {
		return err
	}
	duration := time.Since(start)

	out, err := perplexity.FormatOutput(resp, format)
	if err != nil {
		return err
	}
	env.printResponse(out, format, args.Raw)

	env.record(cfg, exchangeFrom(command, opts.Model, args.Query, resp, duration))
	return nil
}

// =============================================================================
// HISTORY RECORDING
// =============================================================================

// exchangeFrom builds the history entry of a successful request.
func exchangeFrom(command, model, prompt string, resp *perplexity.ChatResponse, d time.Duration) *storage.Exchange {
	ex := &storage.Exchange{
		Command:      command,
		Model:        model,
		Prompt:       prompt,
		Response:     resp.Content(),
		FinishReason: resp.FinishReason(),
		Citations:    resp.Sources(),
		Duration:     d,
	}
	if resp.Model != "" {
		ex.Model = resp.Model
	}
	if u := resp.Usage; u != nil {
		ex.PromptTokens = u.PromptTokens
		ex.CompletionTokens = u.CompletionTokens
		ex.TotalTokens = u.TotalTokens
	}
	return ex
}

// openHistory opens the history database of cfg.
func openHistory(cfg *config.Config) (*storage.HistoryStore, error) {
	path, err := cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	return storage.Open(path)
}

// record stores ex when history is enabled. Failures are warnings: the
// response has already been printed.
func (e *Env) record(cfg *config.Config, ex *storage.Exchange) {
	if !cfg.History.Enabled {
		return
	}
	store, err := openHistory(cfg)
	if err != nil {
		fmt.Fprintf(e.Stderr, "%s could not open history: %v\n", WarningStyle.Render("Warning:"), err)
		return
	}
	defer store.Close()
	if err := store.Record(context.Background(), ex); err != nil {
		fmt.Fprintf(e.Stderr, "%s could not save to history: %v\n", WarningStyle.Render("Warning:"), err)
		return
	}
	log.Printf("cli: recorded exchange %s", ex.ShortID())
}
