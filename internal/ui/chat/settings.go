// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/pplx-tui/internal/config"
	"github.com/jeranaias/pplx-tui/internal/ui/styles"
)

// =============================================================================
// SETTINGS PANEL
// =============================================================================

// settingsField is one editable config key.
type settingsField struct {
	key   string
	label string
	hint  string
	input textinput.Model
}

var settingsLayout = []struct {
	key, label, hint string
	secret           bool
}{
	{"api.key", "API key", "empty uses " + config.APIKeyEnv, true},
	{"request.command", "Command", "search or chat", false},
	{"request.model", "Model", "e.g. sonar-pro", false},
	{"request.temperature", "Temperature", "0.0 - 2.0", false},
	{"request.max_tokens", "Max tokens", "1 - 128000", false},
	{"request.format", "Format", "pretty or json", false},
	{"ui.reveal_delay_ms", "Reveal delay", "ms per character", false},
}

// panelAction is what a key press in the panel asks the model to do.
type panelAction int

const (
	panelNone panelAction = iota
	panelSave
	panelClose
)

// settingsPanel edits the request settings in place of the output area.
type settingsPanel struct {
	fields []settingsField
	focus  int
	err    string
	keys   SettingsKeyMap
	help   help.Model
}

func newSettingsPanel(cfg *config.Config) *settingsPanel {
	p := &settingsPanel{keys: DefaultSettingsKeyMap(), help: help.New()}
	for _, l := range settingsLayout {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 256
		if l.secret {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		if v, err := cfg.Get(l.key); err == nil {
			ti.SetValue(fmt.Sprint(v))
		}
		p.fields = append(p.fields, settingsField{key: l.key, label: l.label, hint: l.hint, input: ti})
	}
	p.fields[0].input.Focus()
	return p
}

// value returns the current text of the field for key.
func (p *settingsPanel) value(key string) string {
	for _, f := range p.fields {
		if f.key == key {
			return f.input.Value()
		}
	}
	return ""
}

// setValue replaces the text of the field for key.
func (p *settingsPanel) setValue(key, v string) {
	for i := range p.fields {
		if p.fields[i].key == key {
			p.fields[i].input.SetValue(v)
		}
	}
}

func (p *settingsPanel) move(delta int) tea.Cmd {
	p.fields[p.focus].input.Blur()
	p.focus = (p.focus + delta + len(p.fields)) % len(p.fields)
	return p.fields[p.focus].input.Focus()
}

// update handles a key press while the panel is open.
func (p *settingsPanel) update(msg tea.KeyMsg) (panelAction, tea.Cmd) {
	switch {
	case key.Matches(msg, p.keys.Close):
		return panelClose, nil
	case key.Matches(msg, p.keys.Save):
		return panelSave, nil
	case key.Matches(msg, p.keys.Next):
		return panelNone, p.move(1)
	case key.Matches(msg, p.keys.Prev):
		return panelNone, p.move(-1)
	}
	var cmd tea.Cmd
	p.fields[p.focus].input, cmd = p.fields[p.focus].input.Update(msg)
	p.err = ""
	return panelNone, cmd
}

// apply returns a copy of cfg with the panel's values, validated.
func (p *settingsPanel) apply(cfg *config.Config) (*config.Config, error) {
	next := cfg.Clone()
	for _, f := range p.fields {
		if err := next.Set(f.key, f.input.Value()); err != nil {
			return nil, fmt.Errorf("%s: %w", strings.ToLower(f.label), err)
		}
	}
	next.SetDefaults()
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}

func (p *settingsPanel) view(theme *styles.Theme, width int) string {
	var sb strings.Builder
	sb.WriteString(theme.SettingsTitle.Render("Settings"))
	sb.WriteString("\n")

	inputWidth := width - 14 - 8
	if inputWidth < 10 {
		inputWidth = 10
	}
	for i, f := range p.fields {
		label := theme.SettingsLabel.Render(f.label)
		if i == p.focus {
			label = theme.SettingsFocus.Render(f.label)
		}
		f.input.Width = inputWidth
		sb.WriteString(label + f.input.View())
		if i == p.focus && f.hint != "" {
			sb.WriteString("  " + theme.StatusValue.Render(f.hint))
		}
		sb.WriteString("\n")
	}

	if p.err != "" {
		sb.WriteString("\n" + theme.Error.Render(p.err) + "\n")
	}
	sb.WriteString(theme.SettingsHint.Render(p.help.ShortHelpView(p.keys.ShortHelp())))

	boxWidth := width - 2
	if boxWidth < 20 {
		boxWidth = 20
	}
	return theme.SettingsBox.Width(boxWidth).Render(sb.String())
}

// keyLabel is shown in the status bar: the masked settings key, or where
// the key would come from.
func keyLabel(cfg *config.Config) string {
	_, source, err := config.ResolveAPIKey(cfg)
	if err != nil {
		return "no key"
	}
	if source == config.KeySourceEnv {
		return "key: env"
	}
	return "key: " + config.MaskKey(cfg.API.Key)
}

// clampWidth keeps a rendered block inside width columns.
func clampWidth(s string, width int) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}
