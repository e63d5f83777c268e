// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-TUI commands of
// pplx.
//
// # Key Types
//
//   - Command: the commands pplx understands
//   - Args: parsed flags and positionals
//   - Env: the streams, paths and client factory handlers use
//   - API: the subset of the Perplexity client the commands call
//
// # Usage
//
//	cmd, args := cli.Parse()
//	cli.ConfigureLogging(args.Verbose)
//	if cmd != cli.CmdTUI {
//	    cli.HandleErrorAndExit(cli.Run(cli.DefaultEnv(), cmd, args))
//	}
//
// # Commands
//
//   - search QUERY: one search request
//   - chat [MESSAGE]: one chat request, or an interactive chat
//   - setup: save, export and test an API key
//   - test: dump one raw request and response
//   - config: show, get, set, reset and locate settings
//   - history: list, show, search, delete, clear and export exchanges
//
// # Exit Codes
//
// GetExitCode maps errors to codes: 2 usage, 3 config, 4 auth,
// 5 network, 7 not found, 8 timeout, 1 anything else.
package cli
