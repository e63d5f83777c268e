// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the interactive screen of pplx.

The screen has an input box, an output area and a status bar. Pressing
Enter sends the input as a search or chat request, depending on the
configured command. The request runs on a worker.Task so the update loop
never blocks; its result comes back as a message tagged with a
generation number, and results of superseded or cancelled requests are
dropped.

Every piece of text shown in the output area goes through a
render.Driver: one rune is revealed per tick, and the whole frame is
repainted each time so that code spans only pick up their styling once
they are closed.

# Keys

	Enter      send
	Alt-Enter  newline
	Esc        cancel the request, or finish the reveal
	Ctrl-T     toggle search / chat
	Ctrl-S     settings
	Ctrl-E     show the whole response at once
	Ctrl-L     clear the output
	F1         help
	Ctrl-C     quit

# Usage

	m := chat.Start(chat.Options{
		Config:    cfg,
		NewClient: factory,
		History:   store,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatal(err)
	}
*/
package chat
