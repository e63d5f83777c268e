// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/pplx-tui/internal/export"
	"github.com/jeranaias/pplx-tui/internal/perplexity"
	"github.com/jeranaias/pplx-tui/internal/storage"
)

// defaultHistoryLimit is how many exchanges list and search show.
const defaultHistoryLimit = 20

// HandleHistory handles "pplx history [list|show|search|delete|clear|export]".
func HandleHistory(env *Env, args Args) error {
	cfg, _, err := env.loadSavedConfig()
	if err != nil {
		return err
	}
	store, err := openHistory(cfg)
	if err != nil {
		return NewCommandError("history", "open", "could not open the history database", err)
	}
	defer store.Close()

	ctx := context.Background()
	p := args.Flags
	switch args.Subcommand {
	case "", "list", "ls":
		limit, err := p.FlagInt("limit", defaultHistoryLimit)
		if err != nil {
			return NewValidationError("--limit", p.Flag("limit"), err.Error())
		}
		offset, err := p.FlagInt("offset", 0)
		if err != nil {
			return NewValidationError("--offset", p.Flag("offset"), err.Error())
		}
		items, err := store.List(ctx, limit, offset)
		if err != nil {
			return err
		}
		return printExchangeTable(env, items, "No history yet.")

	case "show":
		id := p.Positional(2)
		if id == "" {
			return ErrMissingArgument("id", "pplx history show a1b2c3d4")
		}
		ex, err := getExchange(ctx, store, id)
		if err != nil {
			return err
		}
		printExchange(env, ex)
		return nil

	case "search", "find":
		query := strings.Join(p.PositionalFrom(2), " ")
		if strings.TrimSpace(query) == "" {
			return ErrMissingArgument("text", `pplx history search "goroutines"`)
		}
		limit, err := p.FlagInt("limit", defaultHistoryLimit)
		if err != nil {
			return NewValidationError("--limit", p.Flag("limit"), err.Error())
		}
		items, err := store.Search(ctx, query, limit)
		if err != nil {
			return err
		}
		return printExchangeTable(env, items, fmt.Sprintf("Nothing matches %q.", query))

	case "delete", "rm":
		id := p.Positional(2)
		if id == "" {
			return ErrMissingArgument("id", "pplx history delete a1b2c3d4")
		}
		if err := store.Delete(ctx, id); err != nil {
			return mapHistoryError(id, err)
		}
		fmt.Fprintf(env.Stdout, "%s Deleted %s\n", RenderStatus("ok"), id)
		return nil

	case "clear":
		if !p.BoolFlag("yes", "y") {
			ok, err := NewPrompter(env.Stdin, env.Stdout).Confirm("Delete the whole history?", false)
			if err != nil || !ok {
				return err
			}
		}
		n, err := store.Clear(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.Stdout, "%s Removed %d exchange(s)\n", RenderStatus("ok"), n)
		return nil

	case "export":
		return handleHistoryExport(ctx, env, args, store)

	default:
		return NewValidationErrorWithExample("subcommand", args.Subcommand,
			"unknown history subcommand", "pplx history [list|show|search|delete|clear|export]")
	}
}

// handleHistoryExport writes the named exchanges, or the most recent ones,
// oldest first.
func handleHistoryExport(ctx context.Context, env *Env, args Args, store *storage.HistoryStore) error {
	p := args.Flags
	opts := export.DefaultOptions()
	opts.OutputDir = p.FlagOrDefault("output", ".")
	opts.OpenAfterExport = p.BoolFlag("open")
	opts.IncludeMetadata = !p.BoolFlag("no-metadata")
	opts.Theme = p.FlagOrDefault("theme", opts.Theme)
	opts.Now = env.now

	exporter, err := export.ForFormat(p.Flag("format", "f"), opts)
	if err != nil {
		return NewValidationError("--format", p.Flag("format", "f"), err.Error())
	}

	var items []*storage.Exchange
	if ids := p.PositionalFrom(2); len(ids) > 0 {
		for _, id := range ids {
			ex, err := getExchange(ctx, store, id)
			if err != nil {
				return err
			}
			items = append(items, ex)
		}
	} else {
		limit, err := p.FlagInt("limit", defaultHistoryLimit)
		if err != nil {
			return NewValidationError("--limit", p.Flag("limit"), err.Error())
		}
		recent, err := store.List(ctx, limit, 0)
		if err != nil {
			return err
		}
		for i := len(recent) - 1; i >= 0; i-- {
			items = append(items, recent[i])
		}
	}
	if len(items) == 0 {
		return export.ErrNothingToExport
	}

	path, err := export.ToFile(items, exporter, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "%s Exported %d exchange(s) to %s\n", RenderStatus("ok"), len(items), path)
	return nil
}

func getExchange(ctx context.Context, store *storage.HistoryStore, id string) (*storage.Exchange, error) {
	ex, err := store.Get(ctx, id)
	if err != nil {
		return nil, mapHistoryError(id, err)
	}
	return ex, nil
}

// mapHistoryError turns a missing exchange into a NotFoundError.
func mapHistoryError(id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewNotFoundError("exchange", id)
	}
	return err
}

// =============================================================================
// OUTPUT
// =============================================================================

func printExchangeTable(env *Env, items []*storage.Exchange, empty string) error {
	out := env.Stdout
	if len(items) == 0 {
		fmt.Fprintln(out, DimStyle.Render(empty))
		return nil
	}
	width := TerminalWidth()
	promptWidth := max(width-50, 20)

	header := RenderCell("ID", 10) + RenderCell("WHEN", 18) + RenderCell("CMD", 8) +
		RenderCell("MODEL", 12) + "PROMPT"
	fmt.Fprintln(out, SectionStyle.Render(header))
	for _, ex := range items {
		fmt.Fprintln(out,
			IDStyle.Render(RenderCell(ex.ShortID(), 10))+
				DimStyle.Render(RenderCell(ex.CreatedAt.Local().Format("2006-01-02 15:04"), 18))+
				RenderCell(ex.Command, 8)+
				RenderCell(ex.Model, 12)+
				RenderCell(ex.Prompt, promptWidth))
	}
	return nil
}

func printExchange(env *Env, ex *storage.Exchange) {
	out := env.Stdout
	fmt.Fprintln(out, RenderField("ID", IDStyle.Render(ex.ID)))
	fmt.Fprintln(out, RenderField("When", ex.CreatedAt.Local().Format("2006-01-02 15:04:05")))
	fmt.Fprintln(out, RenderField("Command", ex.Command))
	fmt.Fprintln(out, RenderField("Model", ex.Model))
	if ex.TotalTokens > 0 {
		fmt.Fprintln(out, RenderField("Tokens", fmt.Sprintf("%d (%d prompt, %d completion)",
			ex.TotalTokens, ex.PromptTokens, ex.CompletionTokens)))
	}
	if ex.Duration > 0 {
		fmt.Fprintln(out, RenderField("Duration", ex.Duration.String()))
	}
	fmt.Fprintln(out, RenderSeparator())
	fmt.Fprintln(out, PromptStyle.Render("> ")+ex.Prompt)
	fmt.Fprintln(out)
	env.printResponse(ex.Response, perplexity.FormatPretty, false)
	if len(ex.Citations) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, SectionStyle.Render("Sources"))
		for i, c := range ex.Citations {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, c)
		}
	}
}
