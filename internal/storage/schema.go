// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1
)

// Schema creates the history tables.
const Schema = `
-- Metadata table for schema version
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- One row per request/response exchange
CREATE TABLE IF NOT EXISTS exchanges (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,      -- Unix milliseconds
    command TEXT NOT NULL,            -- search | chat
    model TEXT NOT NULL,
    prompt TEXT NOT NULL,
    response TEXT NOT NULL,
    finish_reason TEXT NOT NULL DEFAULT '',
    prompt_tokens INTEGER NOT NULL DEFAULT 0,
    completion_tokens INTEGER NOT NULL DEFAULT 0,
    total_tokens INTEGER NOT NULL DEFAULT 0,
    citations TEXT NOT NULL DEFAULT '[]', -- JSON array of URLs
    duration_ms INTEGER NOT NULL DEFAULT 0,
    search_text TEXT NOT NULL         -- folded, NFC-normalised prompt + response
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_exchanges_created_at ON exchanges(created_at);
`
