// pplx - Perplexity AI in the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/pplx-tui/internal/cli"
	"github.com/jeranaias/pplx-tui/internal/config"
	"github.com/jeranaias/pplx-tui/internal/storage"
	"github.com/jeranaias/pplx-tui/internal/ui/chat"
	"github.com/jeranaias/pplx-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	if cmd == cli.CmdTUI {
		if err := runTUI(args); err != nil {
			cli.HandleErrorAndExit(err)
		}
		return
	}

	cli.ConfigureLogging(args.Verbose)
	if err := cli.Run(cli.DefaultEnv(), cmd, args); err != nil {
		cli.HandleErrorAndExit(err)
	}
}

// runTUI starts the interactive interface.
func runTUI(args cli.Args) error {
	if err := cli.RequiresTTY("the TUI"); err != nil {
		return err
	}

	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	// saved is what the settings panel writes back; the environment and
	// flags only ever apply to the copy the session runs with.
	saved, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	resolve := func(c *config.Config) (*config.Config, error) {
		return c.WithOverrides(args.ApplyOverrides)
	}
	cfg, err := resolve(saved)
	if err != nil {
		return err
	}

	if err := config.EnsureConfigDir(); err != nil {
		return err
	}

	// The TUI owns the terminal, so logs go to a file or nowhere.
	if args.Verbose || config.DebugEnabled() {
		logPath, err := config.DebugLogPath()
		if err != nil {
			return err
		}
		f, err := tea.LogToFile(logPath, "pplx")
		if err != nil {
			return fmt.Errorf("could not open debug log: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	opts := chat.Options{
		Config:     saved,
		Resolve:    resolve,
		ConfigPath: path,
		NewClient:  newRequester,
		Theme:      styles.NewTheme(cfg.UI.Theme),
	}
	if cfg.History.Enabled {
		store, err := openHistory(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: history disabled: %v\n", err)
		} else {
			defer store.Close()
			opts.History = store
		}
	}

	p := tea.NewProgram(chat.Start(opts), tea.WithAltScreen())

	watcher, err := config.Watch(path, config.DefaultWatchDebounce, func(c *config.Config, err error) {
		p.Send(chat.ConfigReloadedMsg{Config: c, Err: err})
	})
	if err != nil {
		log.Printf("main: config watch unavailable: %v", err)
	} else {
		defer watcher.Close()
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running pplx: %w", err)
	}
	return nil
}

// newRequester adapts the API client to the chat model.
func newRequester(cfg *config.Config) (chat.Requester, error) {
	c, err := cli.NewAPIClient(cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func openHistory(cfg *config.Config) (*storage.HistoryStore, error) {
	path, err := cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	return storage.Open(path)
}
