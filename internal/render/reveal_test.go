// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// APPENDER
// =============================================================================

func TestRender_CodeBlockStripsFences(t *testing.T) {
	f := Render(Split("```py\ncode\n```"))
	require.Len(t, f.Spans, 1)
	assert.Equal(t, Span{Text: "code\n", Style: StyleCodeBlock, Lang: "py"}, f.Spans[0])
	assert.Equal(t, "code\n", f.Text())
}

func TestRender_CodeBlockCRLF(t *testing.T) {
	f := Render(Split("```go\r\nx := 1\r\n```"))
	require.Len(t, f.Spans, 1)
	assert.Equal(t, "go", f.Spans[0].Lang)
	assert.Equal(t, "x := 1\r\n", f.Spans[0].Text)
}

func TestRender_EmptyCodeBlock(t *testing.T) {
	f := Render(Split("a```\n```b"))
	assert.Equal(t, "ab", f.Text())
}

func TestRender_InlineKeepsBackticks(t *testing.T) {
	f := Render(Split("x `y` z"))
	assert.Equal(t, []Span{
		{Text: "x ", Style: StylePlain},
		{Text: "`", Style: StylePlain},
		{Text: "y", Style: StyleInlineCode},
		{Text: "`", Style: StylePlain},
		{Text: " z", Style: StylePlain},
	}, f.Spans)
	assert.Equal(t, "x `y` z", f.Text())
}

func TestAppend_PartialSpansArePlain(t *testing.T) {
	inline := Segment{Kind: InlineCode, Raw: "`abc`"}
	f := Append(Frame{}, inline, "`ab")
	assert.Equal(t, []Span{{Text: "`ab", Style: StylePlain}}, f.Spans)

	block := Segment{Kind: CodeBlock, Raw: "```sh\nls\n```"}
	f = Append(Frame{}, block, "```sh\nls\n``")
	assert.Equal(t, []Span{{Text: "```sh\nls\n``", Style: StylePlain}}, f.Spans)

	// A prefix that happens to end in three backticks is still partial.
	f = Append(Frame{}, block, "```")
	assert.Equal(t, "```", f.Text())
	assert.Equal(t, StylePlain, f.Spans[0].Style)
}

func TestAppend_DoesNotTouchEarlierSpans(t *testing.T) {
	base := Render(Split("`a`"))
	before := append([]Span(nil), base.Spans...)

	next := Append(base, Segment{Kind: PlainText, Raw: "tail"}, "ta")
	assert.Equal(t, before, next.Spans[:len(before)])
	assert.Equal(t, Span{Text: "ta", Style: StylePlain}, next.Spans[len(next.Spans)-1])
}

func TestAppend_StyledSpanFollowedByPlain(t *testing.T) {
	f := Render(Split("```\nx\n```after"))
	require.Len(t, f.Spans, 2)
	assert.Equal(t, StyleCodeBlock, f.Spans[0].Style)
	assert.Equal(t, StylePlain, f.Spans[1].Style)
	assert.Empty(t, f.Spans[1].Lang)
}

// =============================================================================
// DRIVER
// =============================================================================

func collect(d *Driver) []Frame {
	var frames []Frame
	for {
		f, ok := d.Step()
		if !ok {
			return frames
		}
		frames = append(frames, f)
	}
}

func TestDriver_EmptyInputIsTerminal(t *testing.T) {
	d := NewDriver("")
	assert.Empty(t, d.Segments())
	assert.True(t, d.Done())
	assert.Equal(t, Cursor{}, d.Cursor())
	assert.Equal(t, 0, d.Remaining())

	_, ok := d.Step()
	assert.False(t, ok)
}

func TestDriver_StepCount(t *testing.T) {
	input := "x `y` z"
	d := NewDriver(input)
	want := d.Remaining()

	frames := collect(d)
	// One step per rune plus one transition per segment.
	assert.Equal(t, utf8.RuneCountInString(input)+3, len(frames))
	assert.Equal(t, want, len(frames))
	assert.True(t, d.Done())
	assert.Equal(t, Cursor{Segment: 3, Char: 0}, d.Cursor())
}

func TestDriver_RevealsOneRunePerStep(t *testing.T) {
	d := NewDriver("héllo")
	f, ok := d.Step()
	require.True(t, ok)
	assert.Equal(t, "h", f.Text())
	f, _ = d.Step()
	assert.Equal(t, "hé", f.Text())
	assert.Equal(t, Cursor{Segment: 0, Char: 2}, d.Cursor())
}

func TestDriver_MonotonicWithoutFences(t *testing.T) {
	inputs := []string{
		"plain text only",
		"x `y` z",
		"a `b",
		"mixed `one` and `two` with ünïcödé",
		"``",
	}
	for _, in := range inputs {
		d := NewDriver(in)
		final := d.Final().Text()
		prev := ""
		for _, f := range collect(d) {
			text := f.Text()
			assert.True(t, strings.HasPrefix(text, prev), "%q: %q does not extend %q", in, text, prev)
			assert.LessOrEqual(t, len(text), len(final))
			prev = text
		}
		assert.Equal(t, final, prev, in)
	}
}

func TestDriver_FenceCollapsesOnClose(t *testing.T) {
	in := "run:\n```sh\nls\n```\nok"
	d := NewDriver(in)
	frames := collect(d)
	final := d.Final().Text()
	assert.Equal(t, "run:\nls\n\nok", final)
	assert.Equal(t, final, frames[len(frames)-1].Text())

	// The only step whose text does not extend the previous one is the
	// step that reveals the closing fence.
	shrinks := 0
	for i := 1; i < len(frames); i++ {
		if !strings.HasPrefix(frames[i].Text(), frames[i-1].Text()) {
			shrinks++
			assert.Equal(t, "run:\nls\n", frames[i].Text())
			assert.Equal(t, StyleCodeBlock, frames[i].Spans[len(frames[i].Spans)-1].Style)
		}
	}
	assert.Equal(t, 1, shrinks)
}

func TestDriver_InlineStyleAppearsWhenClosed(t *testing.T) {
	d := NewDriver("`ab`")
	var styled []bool
	for _, f := range collect(d) {
		has := false
		for _, s := range f.Spans {
			if s.Style == StyleInlineCode {
				has = true
			}
		}
		styled = append(styled, has)
	}
	// "`", "`a", "`ab", "`ab`", transition.
	assert.Equal(t, []bool{false, false, false, true, true}, styled)
}

func TestDriver_ResetDiscardsPreviousText(t *testing.T) {
	d := NewDriver("AAAA `aaaa`")
	for i := 0; i < 5; i++ {
		d.Step()
	}
	d.Reset("BBB")
	assert.Equal(t, Cursor{}, d.Cursor())

	f, ok := d.Step()
	require.True(t, ok)
	assert.Equal(t, "B", f.Text())
	assert.NotContains(t, f.Text(), "A")

	rest := collect(d)
	assert.Equal(t, "BBB", rest[len(rest)-1].Text())
}

func TestDriver_SkipToEnd(t *testing.T) {
	d := NewDriver("x `y` z")
	d.Step()
	f := d.SkipToEnd()
	assert.Equal(t, "x `y` z", f.Text())
	assert.True(t, d.Done())
	_, ok := d.Step()
	assert.False(t, ok)
}

// =============================================================================
// PAINTER
// =============================================================================

func TestPainter_PlainReturnsText(t *testing.T) {
	p := NewPainter(WithPlain(true))
	f := Render(Split("x `y` ```go\nfmt.Println()\n```"))
	assert.Equal(t, f.Text(), p.Paint(f))
}

func TestPainter_KeepsVisibleText(t *testing.T) {
	defer lipgloss.SetColorProfile(lipgloss.ColorProfile())
	lipgloss.SetColorProfile(termenv.TrueColor)

	tests := []struct {
		name      string
		input     string
		highlight bool
	}{
		{"inline code", "x `y` z", false},
		{"multi-line inline code", "x `a\nbbbbbb` z", false},
		{"tab in inline code", "x `a\tb` z", false},
		{"tab in code block", "```\nx := 1\n\ty\n```", false},
		{"ragged code block", "```\na\nbbbbbbbb\n\nc\n```", false},
		{"highlighted code block", "```go\nfunc main() {\n\tx := 1\n}\n```", true},
		{"highlighted block without newline", "```go\nx := 1", true},
		{"open inline code", "see `partial", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPainter(WithHighlighting(tt.highlight))
			f := Render(Split(tt.input))
			out := p.Paint(f)
			assert.Equal(t, f.Text(), ansi.Strip(out))
		})
	}
}

func TestPainter_StylesCode(t *testing.T) {
	defer lipgloss.SetColorProfile(lipgloss.ColorProfile())
	lipgloss.SetColorProfile(termenv.TrueColor)

	p := NewPainter(WithHighlighting(false))
	f := Render(Split("x `y` z"))
	out := p.Paint(f)
	assert.NotEqual(t, f.Text(), out)
	assert.True(t, strings.HasPrefix(out, "x `"))
	assert.True(t, strings.HasSuffix(out, "` z"))
}

func TestPainter_HighlightKnownLanguage(t *testing.T) {
	p := NewPainter(WithHighlighting(true))
	out, ok := p.highlightCode("package main\n", "go")
	require.True(t, ok)
	assert.Contains(t, out, "package")

	_, ok = p.highlightCode("x", "definitely-not-a-language")
	assert.False(t, ok)
}
