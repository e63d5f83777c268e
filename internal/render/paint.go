// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// =============================================================================
// DEFAULT CODE STYLES
// =============================================================================

var (
	// InlineCodeStyle paints inline code: green on black.
	InlineCodeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ff00")).
			Background(lipgloss.Color("#000000"))

	// CodeBlockStyle paints code block bodies: blue on black.
	CodeBlockStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#2986CC")).
			Background(lipgloss.Color("#000000"))
)

// =============================================================================
// PAINTER
// =============================================================================

// Painter converts frames into terminal strings.
type Painter struct {
	inline     lipgloss.Style
	block      lipgloss.Style
	highlight  bool
	plain      bool
	chromaName string
}

// PainterOption configures a Painter.
type PainterOption func(*Painter)

// WithCodeStyles replaces the inline and block code styles.
func WithCodeStyles(inline, block lipgloss.Style) PainterOption {
	return func(p *Painter) {
		p.inline = inline
		p.block = block
	}
}

// WithHighlighting enables chroma highlighting of code blocks whose
// language tag chroma recognises.
func WithHighlighting(enabled bool) PainterOption {
	return func(p *Painter) {
		p.highlight = enabled
	}
}

// WithChromaStyle selects the chroma style used for highlighting.
func WithChromaStyle(name string) PainterOption {
	return func(p *Painter) {
		p.chromaName = name
	}
}

// WithPlain disables all styling; Paint then returns Frame.Text().
func WithPlain(plain bool) PainterOption {
	return func(p *Painter) {
		p.plain = plain
	}
}

// NewPainter returns a painter using the default code styles.
func NewPainter(opts ...PainterOption) *Painter {
	p := &Painter{
		inline:     InlineCodeStyle,
		block:      CodeBlockStyle,
		chromaName: "monokai",
	}
	for _, opt := range opts {
		opt(p)
	}
	// Tabs are part of the text and must survive painting.
	p.inline = p.inline.TabWidth(lipgloss.NoTabConversion)
	p.block = p.block.TabWidth(lipgloss.NoTabConversion)
	return p
}

// Paint renders the frame. Each styled span is rendered on its own, so
// its escape sequences are reset before the next span starts. Stripping
// the escape sequences from the result gives back f.Text().
func (p *Painter) Paint(f Frame) string {
	if p.plain {
		return f.Text()
	}

	var sb strings.Builder
	for _, s := range f.Spans {
		switch s.Style {
		case StyleInlineCode:
			sb.WriteString(paintLines(p.inline, s.Text))
		case StyleCodeBlock:
			sb.WriteString(p.paintBlock(s))
		default:
			sb.WriteString(s.Text)
		}
	}
	return sb.String()
}

func (p *Painter) paintBlock(s Span) string {
	if p.highlight && s.Lang != "" {
		if out, ok := p.highlightCode(s.Text, s.Lang); ok {
			return out
		}
	}

	return paintLines(p.block, s.Text)
}

// paintLines styles each line on its own. Rendering a multi-line string in
// one call would pad the shorter lines to the widest one.
func paintLines(style lipgloss.Style, text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = style.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

func (p *Painter) highlightCode(code, lang string) (string, bool) {
	lexer := lexers.Get(lang)
	if lexer == nil {
		return "", false
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(p.chromaName)
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", false
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return "", false
	}
	// Some lexers append a newline the code does not have.
	if ansi.Strip(buf.String()) != code {
		return "", false
	}
	return buf.String(), true
}
