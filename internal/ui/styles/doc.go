// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the color palette and theme of the pplx TUI.

Colors are Lip Gloss AdaptiveColors so they follow the terminal
background. The ui.theme setting can force dark or light.

Code spans keep fixed colors in both modes: inline code is bright green
on black, fenced blocks blue on black.
*/
package styles
