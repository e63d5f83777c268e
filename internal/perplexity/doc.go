// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package perplexity is a small client for the Perplexity chat completions
API.

Every call is a single blocking POST to /chat/completions with stream
disabled. Search and Chat wrap ChatCompletion with a fixed system prompt;
Converse sends a multi-turn history. Probe returns the raw exchange for
debugging.

Non-200 responses become *APIError, whose text is "HTTP <code>: <message>"
and which unwraps to ErrUnauthorized, ErrPaymentRequired, ErrNotFound,
ErrRateLimited or ErrServer.

FormatOutput renders a response either as the pretty report used by the
CLI and TUI or as indented JSON.

The API key is never logged; KeyFingerprint gives a stable short hash.
*/
package perplexity
