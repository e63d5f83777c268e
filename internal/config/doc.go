// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for pplx.
//
// # Key Types
//
//   - Config: the settings file, split into api, request, ui and history
//   - ValidationError / ValidateErrors: every problem Validate found
//   - Watcher: reloads the file when it changes on disk
//
// # Configuration Precedence
//
//   - Environment variables (PPLX_MODEL, PPLX_FORMAT, PPLX_BASE_URL)
//   - ~/.pplx/config.toml (or $PPLX_CONFIG)
//   - Built-in defaults
//
// The API key is resolved separately by ResolveAPIKey: the saved key wins,
// then PERPLEXITY_API_KEY.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	key, _, err := config.ResolveAPIKey(cfg)
package config
