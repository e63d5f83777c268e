// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage keeps a local history of completed requests.
//
// Each successful search or chat request is recorded as an Exchange in a
// SQLite database (default ~/.pplx/history.db). Exchanges can be listed
// newest first, looked up by full or short ID, searched by text, deleted
// and exported.
//
// # Usage
//
//	store, err := storage.Open(path)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	err = store.Record(ctx, &storage.Exchange{Prompt: "...", Response: "..."})
package storage
