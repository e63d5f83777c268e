// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import "strings"

// =============================================================================
// SEGMENT TYPES
// =============================================================================

// Kind classifies a segment of response text.
type Kind int

const (
	// PlainText is text outside any code delimiter.
	PlainText Kind = iota
	// InlineCode is a `single backtick` span, delimiters included.
	InlineCode
	// CodeBlock is a fenced block, fences and language tag included.
	CodeBlock
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case PlainText:
		return "PlainText"
	case InlineCode:
		return "InlineCode"
	case CodeBlock:
		return "CodeBlock"
	default:
		return "Unknown"
	}
}

// Segment is one contiguous span of the original text.
type Segment struct {
	Kind Kind
	Raw  string
}

const fence = "```"

// =============================================================================
// SEGMENTER
// =============================================================================

// Split splits text into an ordered, lossless sequence of segments.
//
// A run of three or more backticks can only open a fenced block. If no
// closing fence follows, everything from that run to the end of the input
// is plain text. A lone backtick with no partner is plain text as well.
func Split(text string) []Segment {
	if text == "" {
		return nil
	}

	var segs []Segment
	gapStart := 0
	flushGap := func(end int) {
		if end > gapStart {
			segs = append(segs, Segment{Kind: PlainText, Raw: text[gapStart:end]})
		}
	}

	i := 0
	for i < len(text) {
		if text[i] != '`' {
			i++
			continue
		}

		if strings.HasPrefix(text[i:], fence) {
			end, ok := matchFence(text, i)
			if !ok {
				// Unterminated fence swallows the rest as plain text.
				break
			}
			flushGap(i)
			segs = append(segs, Segment{Kind: CodeBlock, Raw: text[i:end]})
			i = end
			gapStart = i
			continue
		}

		end, ok := matchInline(text, i)
		if !ok {
			i++
			continue
		}
		flushGap(i)
		segs = append(segs, Segment{Kind: InlineCode, Raw: text[i:end]})
		i = end
		gapStart = i
	}

	flushGap(len(text))
	return segs
}

// matchFence matches a fenced block opening at start and returns the
// index just past its closing fence.
func matchFence(text string, start int) (int, bool) {
	rest := text[start+len(fence):]
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 {
		return 0, false
	}
	bodyStart := start + len(fence) + nl + 1
	closeAt := strings.Index(text[bodyStart:], fence)
	if closeAt < 0 {
		return 0, false
	}
	return bodyStart + closeAt + len(fence), true
}

// matchInline matches an inline span opening at start. The closing
// backtick must not begin a fence, which keeps fences ahead of inline code.
func matchInline(text string, start int) (int, bool) {
	closeAt := strings.IndexByte(text[start+1:], '`')
	if closeAt < 0 {
		return 0, false
	}
	closeIdx := start + 1 + closeAt
	if strings.HasPrefix(text[closeIdx:], fence) {
		return 0, false
	}
	return closeIdx + 1, true
}
