// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/pplx-tui/internal/storage"
	"github.com/jeranaias/pplx-tui/internal/util"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports exchanges to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts exchanges to Markdown. Responses are copied verbatim
// since they are already Markdown.
func (e *MarkdownExporter) Export(exchanges []*storage.Exchange) ([]byte, error) {
	if err := validate(exchanges); err != nil {
		return nil, err
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(title(exchanges)))
		fmt.Fprintf(&sb, "exchanges: %d\n", len(exchanges))
		fmt.Fprintf(&sb, "exported: %s\n", e.options.now().Format(time.RFC3339))
		sb.WriteString("generator: pplx\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(title(exchanges)))

	for i, ex := range exchanges {
		fmt.Fprintf(&sb, "## %s\n\n", escapeMarkdown(oneLine(ex.Prompt)))
		if e.options.IncludeMetadata {
			fmt.Fprintf(&sb, "- **ID**: `%s`\n", ex.ShortID())
			fmt.Fprintf(&sb, "- **Date**: %s\n", formatTimestamp(ex.CreatedAt))
			if ex.Model != "" {
				fmt.Fprintf(&sb, "- **Model**: %s\n", ex.Model)
			}
			if ex.Command != "" {
				fmt.Fprintf(&sb, "- **Mode**: %s\n", ex.Command)
			}
			sb.WriteString("\n")
		}

		if strings.Contains(ex.Prompt, "\n") {
			sb.WriteString("**Prompt**:\n\n")
			for _, line := range strings.Split(ex.Prompt, "\n") {
				sb.WriteString("> " + line + "\n")
			}
			sb.WriteString("\n")
		}

		sb.WriteString(strings.TrimSpace(ex.Response))
		sb.WriteString("\n\n")

		if len(ex.Citations) > 0 {
			sb.WriteString("**Sources**:\n\n")
			for n, url := range ex.Citations {
				fmt.Fprintf(&sb, "%d. <%s>\n", n+1, url)
			}
			sb.WriteString("\n")
		}

		if e.options.IncludeMetadata {
			if stats := statsLine(ex); stats != "" {
				fmt.Fprintf(&sb, "<sub>%s</sub>\n\n", stats)
			}
		}

		if i < len(exchanges)-1 {
			sb.WriteString("---\n\n")
		}
	}

	fmt.Fprintf(&sb, "---\n\n*Exported from pplx on %s*\n",
		e.options.now().Format("January 2, 2006 at 3:04 PM"))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

func oneLine(s string) string {
	s = util.SingleLine(s)
	if s == "" {
		return "(empty prompt)"
	}
	return s
}

// escapeMarkdown escapes characters that would break formatting in headings.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		"#", "\\#",
		"*", "\\*",
		"_", "\\_",
		"[", "\\[",
		"]", "\\]",
		"`", "\\`",
	)
	return r.Replace(s)
}

// escapeYAML quotes a YAML scalar when it contains special characters.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return "\"" + s + "\""
	}
	return s
}
