// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package render turns a complete response string into an animated,
styled reveal.

The pipeline has three stages:

  - Split splits the text into PlainText, InlineCode and CodeBlock
    segments. Concatenating the Raw field of every segment gives back the
    input exactly.
  - Append renders one segment, or a revealed prefix of one, as styled
    spans. Code styling only applies once a span is syntactically closed.
  - Driver reveals the text one rune per Step, rebuilding the whole Frame
    each time.

A Painter converts a Frame into terminal output. The package does not
own a clock: callers decide how often to call Step.

# Usage

	d := render.NewDriver(text)
	for {
		frame, ok := d.Step()
		if !ok {
			break
		}
		fmt.Print(painter.Paint(frame))
	}
*/
package render
