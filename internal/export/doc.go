// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes stored exchanges to files.
//
// # Supported Formats
//
//   - Markdown: responses copied verbatim, prompts as headings
//   - JSON: the complete records
//   - HTML: responses rendered with goldmark (GFM), styled for browsers
//
// # Usage
//
//	exporter, err := export.ForFormat("html", nil)
//	if err != nil {
//	    return err
//	}
//	path, err := export.ToFile(exchanges, exporter, opts)
package export
