// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/pplx-tui/internal/ui/styles"
	"github.com/jeranaias/pplx-tui/internal/util"
)

// Fixed rows around the output box: header, spinner line, input box
// (2 lines + border), status bar, output border.
const chromeHeight = 9

// =============================================================================
// LAYOUT
// =============================================================================

// handleResize sizes the viewport and input to the terminal. The viewport
// height must match what View stacks around it.
func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	w := msg.Width - 4
	if w < 10 {
		w = 10
	}
	h := msg.Height - chromeHeight
	if h < 1 {
		h = 1
	}
	m.output.Width = w
	m.output.Height = h
	m.input.SetWidth(w)
	m.help.Width = msg.Width

	// Rewrap what is already visible.
	m.setFrame(m.frame)
	return m, nil
}

// =============================================================================
// MAIN RENDER
// =============================================================================

// View renders the chat screen.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	status := m.renderStatusBar()

	var body string
	if m.settings != nil {
		body = m.settings.view(m.theme, m.width)
	} else if m.showHelp {
		body = m.theme.OutputBox.Width(m.width - 2).Render(m.help.FullHelpView(m.keys.FullHelp()))
	} else {
		body = m.theme.OutputBox.Width(m.width - 2).Render(m.output.View())
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		body,
		m.renderActivity(),
		m.renderInput(),
		status,
	)
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	brand := m.theme.HeaderBrand.Render("pplx")
	badge := m.theme.CommandBadge.Render(m.cfg.Request.Command)
	detail := m.theme.HeaderDetail.Render(fmt.Sprintf(" %s | %s", m.cfg.Request.Model, m.cfg.Request.Format))
	return m.theme.Header.Width(m.width).Render(clampWidth(brand+" "+badge+detail, m.width-2))
}

// =============================================================================
// ACTIVITY LINE
// =============================================================================

// renderStatus marks text with the indicator for the current status kind.
func (m Model) renderStatus(text string) string {
	switch m.statusKind {
	case statusSuccess:
		return styles.RenderSuccess(text)
	case statusWarning:
		return styles.RenderWarning(text)
	case statusError:
		return styles.RenderError(text)
	default:
		return styles.RenderInfo(text)
	}
}

// renderActivity shows the spinner while a request is pending, and the
// last status notice otherwise.
func (m Model) renderActivity() string {
	switch {
	case m.pending:
		elapsed := time.Since(m.pendingSince).Truncate(100 * time.Millisecond)
		return m.theme.Pending.Render(fmt.Sprintf(" %s waiting for %s (%s, Esc to cancel)",
			m.spinner.View(), m.cfg.Request.Model, elapsed))
	case m.status != "":
		return " " + m.renderStatus(util.TruncateWidth(m.status, m.width-6))
	case m.revealing:
		return m.theme.Notice.Render(" C-e to show all")
	default:
		return ""
	}
}

// =============================================================================
// INPUT AREA
// =============================================================================

func (m Model) renderInput() string {
	box := m.theme.InputBox
	if m.input.Focused() && !m.pending {
		box = m.theme.InputBoxActive
	}
	return box.Width(m.width - 2).Render(m.input.View())
}

// =============================================================================
// STATUS BAR
// =============================================================================

func (m Model) renderStatusBar() string {
	right := m.theme.StatusValue.Render(keyLabel(m.cfg))
	if m.history != nil {
		right = m.theme.StatusValue.Render(fmt.Sprintf("%d saved", m.historyN)) + "  " + right
	}
	help := m.help.ShortHelpView(m.keys.ShortHelp())

	gap := m.width - 2 - lipgloss.Width(help) - lipgloss.Width(right)
	if gap < 1 {
		help = ""
		gap = m.width - 2 - lipgloss.Width(right)
		if gap < 0 {
			gap = 0
		}
	}
	line := help + util.PadRight("", gap) + right
	return m.theme.StatusBar.Width(m.width).Render(clampWidth(line, m.width))
}
