// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import "time"

// DefaultDelay is the pause between reveal steps.
const DefaultDelay = 10 * time.Millisecond

// =============================================================================
// REVEAL CURSOR
// =============================================================================

// Cursor tracks reveal progress. Segment == number of segments means the
// reveal is complete, and Char is then zero.
type Cursor struct {
	Segment int
	Char    int
}

// =============================================================================
// REVEAL DRIVER
// =============================================================================

// Driver reveals a segmented text one rune per Step. It is not safe for
// concurrent use; the owner (a UI update loop) calls Step from one
// goroutine.
type Driver struct {
	segs   []Segment
	runes  [][]rune
	cursor Cursor
}

// NewDriver segments text and returns a driver at the start of it.
func NewDriver(text string) *Driver {
	d := &Driver{}
	d.Reset(text)
	return d
}

// Reset discards the current segments and cursor and starts over on text.
func (d *Driver) Reset(text string) {
	d.segs = Split(text)
	d.runes = make([][]rune, len(d.segs))
	for i, s := range d.segs {
		d.runes[i] = []rune(s.Raw)
	}
	d.cursor = Cursor{}
}

// Segments returns the segments being revealed.
func (d *Driver) Segments() []Segment {
	return d.segs
}

// Cursor returns the current reveal position.
func (d *Driver) Cursor() Cursor {
	return d.cursor
}

// Done reports whether the cursor is terminal.
func (d *Driver) Done() bool {
	return d.cursor.Segment >= len(d.segs)
}

// Step advances the reveal by one tick and returns the recomputed frame.
// A tick either reveals one more rune of the current segment or, when the
// segment is exhausted, moves on to the next one. Step returns false once
// the reveal had already completed before the call.
func (d *Driver) Step() (Frame, bool) {
	if d.Done() {
		return Frame{}, false
	}

	if d.cursor.Char < len(d.runes[d.cursor.Segment]) {
		d.cursor.Char++
	} else {
		d.cursor.Segment++
		d.cursor.Char = 0
	}
	return d.Frame(), true
}

// Frame renders everything revealed so far, from scratch.
func (d *Driver) Frame() Frame {
	var f Frame
	for i := 0; i < d.cursor.Segment && i < len(d.segs); i++ {
		f = AppendSegment(f, d.segs[i])
	}
	if !d.Done() && d.cursor.Char > 0 {
		prefix := string(d.runes[d.cursor.Segment][:d.cursor.Char])
		f = Append(f, d.segs[d.cursor.Segment], prefix)
	}
	return f
}

// Final renders the whole text as it looks once the reveal completes.
func (d *Driver) Final() Frame {
	return Render(d.segs)
}

// Remaining returns the number of Step calls left before Step reports
// false.
func (d *Driver) Remaining() int {
	if d.Done() {
		return 0
	}
	n := len(d.runes[d.cursor.Segment]) - d.cursor.Char + 1
	for i := d.cursor.Segment + 1; i < len(d.segs); i++ {
		n += len(d.runes[i]) + 1
	}
	return n
}

// SkipToEnd completes the reveal immediately.
func (d *Driver) SkipToEnd() Frame {
	d.cursor = Cursor{Segment: len(d.segs)}
	return d.Frame()
}
