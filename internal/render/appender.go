// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
)

// =============================================================================
// STYLED SPANS
// =============================================================================

// Style identifies how a span is painted.
type Style int

const (
	// StylePlain is the default terminal style.
	StylePlain Style = iota
	// StyleInlineCode is used for the text between inline backticks.
	StyleInlineCode
	// StyleCodeBlock is used for the body of a fenced block.
	StyleCodeBlock
)

// Span is a run of visible text in a single style. Each span carries its
// own style, so nothing leaks into the span after it.
type Span struct {
	Text  string
	Style Style
	// Lang is the fence language tag; only set for StyleCodeBlock.
	Lang string
}

// Frame is the full visible content at one point of a reveal.
type Frame struct {
	Spans []Span
}

// Text returns the visible text without styling.
func (f Frame) Text() string {
	var sb strings.Builder
	for _, s := range f.Spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// Len returns the visible length in runes.
func (f Frame) Len() int {
	n := 0
	for _, s := range f.Spans {
		n += len([]rune(s.Text))
	}
	return n
}

// =============================================================================
// APPENDER
// =============================================================================

// Append renders prefix, which must be a prefix of seg.Raw, onto the end
// of frame. Spans already in frame are left untouched. Code styling is
// applied only when prefix is the whole segment, i.e. both delimiters are
// present; a partial span renders as plain text.
func Append(frame Frame, seg Segment, prefix string) Frame {
	if prefix == "" {
		return frame
	}

	complete := prefix == seg.Raw
	switch {
	case seg.Kind == InlineCode && complete:
		return appendInline(frame, prefix)
	case seg.Kind == CodeBlock && complete:
		return appendCodeBlock(frame, prefix)
	default:
		frame.Spans = append(frame.Spans, Span{Text: prefix, Style: StylePlain})
		return frame
	}
}

// AppendSegment renders a fully revealed segment.
func AppendSegment(frame Frame, seg Segment) Frame {
	return Append(frame, seg, seg.Raw)
}

// Render renders every segment in full.
func Render(segs []Segment) Frame {
	var f Frame
	for _, s := range segs {
		f = AppendSegment(f, s)
	}
	return f
}

func appendInline(frame Frame, raw string) Frame {
	inner := raw[1 : len(raw)-1]
	frame.Spans = append(frame.Spans, Span{Text: "`", Style: StylePlain})
	if inner != "" {
		frame.Spans = append(frame.Spans, Span{Text: inner, Style: StyleInlineCode})
	}
	frame.Spans = append(frame.Spans, Span{Text: "`", Style: StylePlain})
	return frame
}

func appendCodeBlock(frame Frame, raw string) Frame {
	lang, body := splitFence(raw)
	if body != "" {
		frame.Spans = append(frame.Spans, Span{Text: body, Style: StyleCodeBlock, Lang: lang})
	}
	return frame
}

// splitFence strips the fences and the opening line from a complete
// fenced block, returning the language tag and the body.
func splitFence(raw string) (lang, body string) {
	inner := strings.TrimSuffix(raw[len(fence):], fence)
	nl := strings.IndexByte(inner, '\n')
	if nl < 0 {
		return "", ""
	}
	lang = strings.TrimSpace(inner[:nl])
	return lang, inner[nl+1:]
}
