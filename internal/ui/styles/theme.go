// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by ui.theme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds the styled components of the chat screen.
type Theme struct {
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Header and status bar
	Header       lipgloss.Style
	HeaderBrand  lipgloss.Style
	HeaderDetail lipgloss.Style
	StatusBar    lipgloss.Style
	StatusKey    lipgloss.Style
	StatusValue  lipgloss.Style
	CommandBadge lipgloss.Style

	// Query and output areas
	InputBox       lipgloss.Style
	InputBoxActive lipgloss.Style
	OutputBox      lipgloss.Style
	PromptEcho     lipgloss.Style

	// Notices
	Pending lipgloss.Style
	Notice  lipgloss.Style
	Error   lipgloss.Style
	Spinner lipgloss.Style

	// Settings panel
	SettingsBox   lipgloss.Style
	SettingsTitle lipgloss.Style
	SettingsLabel lipgloss.Style
	SettingsFocus lipgloss.Style
	SettingsHint  lipgloss.Style

	// Code spans
	InlineCode lipgloss.Style
	CodeBlock  lipgloss.Style
}

// NewTheme creates a theme for mode ("auto", "dark" or "light"). An
// explicit mode overrides the detected terminal background.
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()
	isDark := true
	switch mode {
	case ModeDark:
		lipgloss.SetHasDarkBackground(true)
	case ModeLight:
		isDark = false
		lipgloss.SetHasDarkBackground(false)
	default:
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal)
	t.HeaderDetail = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.StatusKey = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true)
	t.StatusValue = lipgloss.NewStyle().
		Foreground(TextMuted)
	t.CommandBadge = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Teal).
		Bold(true).
		Padding(0, 1)

	t.InputBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.InputBoxActive = t.InputBox.
		BorderForeground(Teal)
	t.OutputBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.PromptEcho = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Bold(true)

	t.Pending = lipgloss.NewStyle().
		Foreground(Amber)
	t.Notice = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)
	t.Error = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)
	t.Spinner = lipgloss.NewStyle().
		Foreground(Teal)

	t.SettingsBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(1, 2)
	t.SettingsTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple).
		MarginBottom(1)
	t.SettingsLabel = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Width(14)
	t.SettingsFocus = t.SettingsLabel.
		Foreground(Purple).
		Bold(true)
	t.SettingsHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		MarginTop(1)

	t.InlineCode = lipgloss.NewStyle().
		Foreground(InlineCodeFg).
		Background(CodeBackground)
	t.CodeBlock = lipgloss.NewStyle().
		Foreground(CodeBlockFg).
		Background(CodeBackground)
}
