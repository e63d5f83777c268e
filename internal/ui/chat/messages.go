// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/pplx-tui/internal/config"
	"github.com/jeranaias/pplx-tui/internal/perplexity"
	"github.com/jeranaias/pplx-tui/internal/worker"
)

// =============================================================================
// REQUEST MESSAGES
// =============================================================================

// reply is what a background request produces.
type reply struct {
	Command  string
	Model    string
	Prompt   string
	Response *perplexity.ChatResponse
	Output   string // formatted for display
	Duration time.Duration
}

// responseMsg carries the resolved result of request gen. Results of
// older requests are ignored.
type responseMsg struct {
	gen    int
	result worker.Result[reply]
}

// waitForResponse blocks on task and reports its result.
func waitForResponse(gen int, task *worker.Task[reply]) tea.Cmd {
	return func() tea.Msg {
		return responseMsg{gen: gen, result: task.Result()}
	}
}

// =============================================================================
// REVEAL MESSAGES
// =============================================================================

// revealTickMsg advances reveal gen by one step.
type revealTickMsg struct {
	gen int
}

func revealTick(gen int, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return revealTickMsg{gen: gen}
	})
}

// =============================================================================
// SETTINGS AND HISTORY MESSAGES
// =============================================================================

// ConfigReloadedMsg reports that the settings file changed on disk. Config
// is the file as loaded, before any overrides.
type ConfigReloadedMsg struct {
	Config *config.Config
	Err    error
}

// settingsSavedMsg reports the outcome of saving the settings panel.
type settingsSavedMsg struct {
	cfg *config.Config
	err error
}

// historyMsg reports a recorded exchange and the new total.
type historyMsg struct {
	count int
	err   error
}
