// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the pplx packages.
//
//   - AtomicWriteFile: crash-safe file writes (config, exports)
//   - TruncateRunes, TruncateWidth, PadRight: display helpers that count
//     runes or terminal columns rather than bytes
//   - SingleLine: flattens multi-line text for one-line listings
package util
