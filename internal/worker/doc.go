// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package worker runs a single blocking request off the UI goroutine.
//
// A Task resolves exactly once with either a value or an error. Cancel
// resolves it with ErrCancelled if it had not finished, and any result the
// job produces afterwards is discarded. A Slot keeps the one task the UI
// is currently waiting on.
package worker
