// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/jeranaias/pplx-tui/internal/storage"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports exchanges to a standalone HTML page with embedded
// CSS. Responses are rendered from Markdown; raw HTML in them is dropped.
type HTMLExporter struct {
	options *Options
	md      goldmark.Markdown
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Theme != "light" {
		opts.Theme = "dark"
	}
	return &HTMLExporter{
		options: opts,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
	}
}

// Export converts exchanges to HTML.
func (e *HTMLExporter) Export(exchanges []*storage.Exchange) ([]byte, error) {
	if err := validate(exchanges); err != nil {
		return nil, err
	}

	var sb strings.Builder
	t := html.EscapeString(title(exchanges))

	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", t)
	sb.WriteString("    <meta name=\"generator\" content=\"pplx\">\n")
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", e.options.Theme)
	sb.WriteString("<div class=\"container\">\n")
	fmt.Fprintf(&sb, "<header class=\"header\"><h1>%s</h1><span class=\"meta\">%d exchange(s)</span></header>\n",
		t, len(exchanges))

	sb.WriteString("<main>\n")
	for _, ex := range exchanges {
		section, err := e.renderExchange(ex)
		if err != nil {
			return nil, err
		}
		sb.WriteString(section)
	}
	sb.WriteString("</main>\n")

	fmt.Fprintf(&sb, "<footer class=\"footer\">Exported from <strong>pplx</strong> on %s</footer>\n",
		e.options.now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("</div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderExchange(ex *storage.Exchange) (string, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "<section class=\"exchange\" id=\"ex-%s\">\n", html.EscapeString(ex.ShortID()))
	fmt.Fprintf(&sb, "<div class=\"prompt\"><span class=\"label\">Prompt</span><p>%s</p></div>\n",
		strings.ReplaceAll(html.EscapeString(ex.Prompt), "\n", "<br>"))

	if e.options.IncludeMetadata {
		sb.WriteString("<div class=\"meta\">")
		fmt.Fprintf(&sb, "<span>%s</span>", formatTimestamp(ex.CreatedAt))
		if ex.Model != "" {
			fmt.Fprintf(&sb, "<span>%s</span>", html.EscapeString(ex.Model))
		}
		if ex.Command != "" {
			fmt.Fprintf(&sb, "<span>%s</span>", html.EscapeString(ex.Command))
		}
		sb.WriteString("</div>\n")
	}

	var body bytes.Buffer
	if err := e.md.Convert([]byte(ex.Response), &body); err != nil {
		return "", fmt.Errorf("render response %s: %w", ex.ShortID(), err)
	}
	sb.WriteString("<div class=\"response\">\n")
	sb.Write(body.Bytes())
	sb.WriteString("</div>\n")

	if len(ex.Citations) > 0 {
		sb.WriteString("<div class=\"sources\"><span class=\"label\">Sources</span><ol>\n")
		for _, url := range ex.Citations {
			u := html.EscapeString(url)
			if safeURL(url) {
				fmt.Fprintf(&sb, "<li><a href=\"%s\" rel=\"noopener noreferrer\">%s</a></li>\n", u, u)
			} else {
				fmt.Fprintf(&sb, "<li>%s</li>\n", u)
			}
		}
		sb.WriteString("</ol></div>\n")
	}

	if e.options.IncludeMetadata {
		if stats := statsLine(ex); stats != "" {
			fmt.Fprintf(&sb, "<div class=\"stats\">%s</div>\n", html.EscapeString(stats))
		}
	}

	sb.WriteString("</section>\n")
	return sb.String(), nil
}

// safeURL reports whether a citation may be emitted as a link.
func safeURL(u string) bool {
	lower := strings.ToLower(strings.TrimSpace(u))
	return strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://")
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

var css = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            --font-mono: "SF Mono", "Monaco", "Inconsolata", "Fira Code", "Source Code Pro", monospace;
        }
        .dark-theme {
            --bg-primary: #1a1b26; --bg-secondary: #24283b; --bg-tertiary: #414868;
            --text-primary: #c0caf5; --text-muted: #565f89; --border-color: #414868;
            --code-bg: #000000; --inline-code: #00ff00; --block-code: #2986cc; --accent: #7aa2f7;
        }
        .light-theme {
            --bg-primary: #ffffff; --bg-secondary: #f7f8fa; --bg-tertiary: #e1e4e8;
            --text-primary: #24292e; --text-muted: #6a737d; --border-color: #e1e4e8;
            --code-bg: #000000; --inline-code: #00ff00; --block-code: #2986cc; --accent: #0366d6;
        }
        body { font-family: var(--font-sans); line-height: 1.6; color: var(--text-primary); background: var(--bg-primary); padding: 20px; }
        .container { max-width: 900px; margin: 0 auto; background: var(--bg-secondary); border-radius: 12px; overflow: hidden; }
        .header { padding: 24px 32px; background: var(--bg-tertiary); }
        .header h1 { font-size: 24px; margin-bottom: 8px; }
        main { padding: 16px 32px; }
        .exchange { padding: 16px 0; border-bottom: 1px solid var(--border-color); }
        .label { display: block; font-weight: 700; color: var(--accent); margin-bottom: 4px; }
        .prompt { margin-bottom: 8px; }
        .meta, .stats { font-size: 13px; color: var(--text-muted); }
        .meta span { margin-right: 12px; }
        .response { margin: 12px 0; }
        .response p, .response ul, .response ol, .response pre, .response table { margin-bottom: 12px; }
        .response ul, .response ol, .sources ol { padding-left: 24px; }
        code { font-family: var(--font-mono); background: var(--code-bg); color: var(--inline-code); padding: 1px 4px; border-radius: 3px; }
        pre { background: var(--code-bg); padding: 12px; border-radius: 6px; overflow-x: auto; }
        pre code { color: var(--block-code); padding: 0; }
        a { color: var(--accent); }
        table { border-collapse: collapse; }
        th, td { border: 1px solid var(--border-color); padding: 4px 8px; }
        .footer { padding: 16px 32px; font-size: 13px; color: var(--text-muted); }
    </style>
`
