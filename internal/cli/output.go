// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/pplx-tui/internal/perplexity"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

var (
	markdownOnce     sync.Once
	markdownRenderer *glamour.TermRenderer
)

// renderMarkdown renders content for the terminal, returning it unchanged
// when the renderer is unavailable or fails.
func renderMarkdown(content string) string {
	markdownOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(TerminalWidth()-4),
			glamour.WithEmoji(),
		)
		if err != nil {
			log.Printf("cli: markdown renderer unavailable: %v", err)
			return
		}
		markdownRenderer = r
	})
	if markdownRenderer == nil {
		return content
	}
	out, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return out
}

// printResponse writes formatted output. Pretty output is rendered as
// markdown on a terminal unless raw is set; JSON is never rendered.
func (e *Env) printResponse(out string, format perplexity.Format, raw bool) {
	if format == perplexity.FormatPretty && e.Interactive && !raw {
		fmt.Fprint(e.Stdout, renderMarkdown(out))
		return
	}
	fmt.Fprint(e.Stdout, out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Fprintln(e.Stdout)
	}
}
