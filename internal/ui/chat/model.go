// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/pplx-tui/internal/config"
	"github.com/jeranaias/pplx-tui/internal/perplexity"
	"github.com/jeranaias/pplx-tui/internal/render"
	"github.com/jeranaias/pplx-tui/internal/storage"
	"github.com/jeranaias/pplx-tui/internal/ui/styles"
	"github.com/jeranaias/pplx-tui/internal/worker"
)

// Notices revealed in the output area.
const (
	PleaseWaitText  = "⏳ Please wait...\n"
	CancelledText   = "⚠️ Request cancelled.\n"
	EmptyPromptText = "Please enter a query or message.\n"
	WelcomeText     = "Type a question and press Enter. `ctrl+t` switches between search and chat, `ctrl+s` opens settings.\n"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Requester performs one request against the API.
type Requester interface {
	Search(ctx context.Context, query string, opts perplexity.Options) (*perplexity.ChatResponse, error)
	Chat(ctx context.Context, message string, opts perplexity.Options) (*perplexity.ChatResponse, error)
}

// ClientFactory builds a Requester for a config. It fails when no API key
// can be resolved.
type ClientFactory func(cfg *config.Config) (Requester, error)

// Resolver derives the config a session runs with from the saved one,
// e.g. by applying environment and command-line overrides. It must not
// modify its argument.
type Resolver func(saved *config.Config) (*config.Config, error)

// Recorder stores completed exchanges.
type Recorder interface {
	Record(ctx context.Context, ex *storage.Exchange) error
	Count(ctx context.Context) (int, error)
}

// Options configures a chat Model.
type Options struct {
	Config     *config.Config // settings as saved in the file
	Resolve    Resolver       // nil runs with Config unchanged
	ConfigPath string         // where the settings panel saves; "" uses the default path
	NewClient  ClientFactory
	History    Recorder // nil disables history
	Theme      *styles.Theme
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	// saved is what the settings panel edits and writes back. cfg is
	// saved with overrides applied and is what requests use.
	saved      *config.Config
	cfg        *config.Config
	resolve    Resolver
	configPath string
	newClient  ClientFactory
	client     Requester
	history    Recorder
	historyN   int

	theme   *styles.Theme
	painter *render.Painter
	keys    KeyMap
	help    help.Model

	input   textarea.Model
	output  viewport.Model
	spinner spinner.Model

	// Request state. gen tags each request so a stale result is dropped.
	slot         *worker.Slot[reply]
	gen          int
	pending      bool
	pendingSince time.Time

	// Reveal state. revealGen tags ticks so a restarted reveal ignores
	// ticks scheduled for the previous text.
	reveal    *render.Driver
	revealGen int
	revealing bool
	frame     render.Frame

	settings   *settingsPanel
	showHelp   bool
	status     string
	statusKind statusKind

	width  int
	height int
}

// New creates the chat model.
func New(opts Options) Model {
	saved := opts.Config
	if saved == nil {
		saved = config.Default()
	}
	cfg, err := resolveConfig(opts.Resolve, saved)
	if err != nil {
		log.Printf("chat: overrides not applied: %v", err)
		cfg = saved.Clone()
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(cfg.UI.Theme)
	}

	keys := DefaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = "Type your query or message here..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 8000
	ta.SetHeight(2)
	ta.KeyMap.InsertNewline = keys.Newline
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = styles.LineSpinner.Bubbles()
	sp.Style = theme.Spinner

	m := Model{
		saved:      saved,
		cfg:        cfg,
		resolve:    opts.Resolve,
		configPath: opts.ConfigPath,
		newClient:  opts.NewClient,
		history:    opts.History,
		theme:      theme,
		keys:       keys,
		help:       help.New(),
		input:      ta,
		output:     viewport.New(80, 10),
		spinner:    sp,
		slot:       &worker.Slot[reply]{},
		reveal:     render.NewDriver(""),
	}
	m.painter = m.newPainter()
	return m
}

func (m Model) newPainter() *render.Painter {
	return render.NewPainter(
		render.WithCodeStyles(m.theme.InlineCode, m.theme.CodeBlock),
		render.WithHighlighting(m.cfg.UI.HighlightCode),
	)
}

// Init starts the cursor blink, loads the history count and reveals the
// welcome text.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.revealTickCmd()}
	if m.history != nil {
		hist := m.history
		cmds = append(cmds, func() tea.Msg {
			n, err := hist.Count(context.Background())
			return historyMsg{count: n, err: err}
		})
	}
	return tea.Batch(cmds...)
}

// Start returns a model that has begun revealing the welcome text. Use it
// instead of New when the model is run directly by a program.
func Start(opts Options) Model {
	m := New(opts)
	m.showText(WelcomeText)
	return m
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case responseMsg:
		return m.handleResponse(msg)

	case revealTickMsg:
		return m.handleRevealTick(msg)

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ConfigReloadedMsg:
		return m.handleConfigReloaded(msg)

	case settingsSavedMsg:
		return m.handleSettingsSaved(msg)

	case historyMsg:
		if msg.err != nil {
			log.Printf("history: %v", msg.err)
			m.notify(statusWarning, "history: "+msg.err.Error())
			return m, nil
		}
		m.historyN = msg.count
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.output, cmd = m.output.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.slot.Clear()
		return m, tea.Quit
	}

	if m.settings != nil {
		return m.handleSettingsKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.Cancel):
		return m.cancel()

	case key.Matches(msg, m.keys.ToggleCommand):
		if m.cfg.Request.Command == config.CommandChat {
			m.cfg.Request.Command = config.CommandSearch
		} else {
			m.cfg.Request.Command = config.CommandChat
		}
		m.notify(statusInfo, "mode: "+m.cfg.Request.Command)
		return m, nil

	case key.Matches(msg, m.keys.Settings):
		m.settings = newSettingsPanel(m.saved)
		m.settings.setValue("request.command", m.cfg.Request.Command)
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.SkipReveal):
		if m.revealing {
			m.revealGen++
			m.revealing = false
			m.setFrame(m.reveal.SkipToEnd())
		}
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		m.revealGen++
		m.revealing = false
		m.reveal.Reset("")
		m.setFrame(render.Frame{})
		m.status = ""
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.output.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.output.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action, cmd := m.settings.update(msg)
	switch action {
	case panelClose:
		m.settings = nil
		focus := m.input.Focus()
		return m, focus
	case panelSave:
		next, err := m.settings.apply(m.saved)
		if err != nil {
			m.settings.err = err.Error()
			return m, nil
		}
		return m, m.saveConfig(next)
	}
	return m, cmd
}

func (m Model) saveConfig(cfg *config.Config) tea.Cmd {
	path := m.configPath
	return func() tea.Msg {
		var err error
		if path == "" {
			err = config.Save(cfg)
		} else {
			err = config.SaveTOML(cfg, path)
		}
		return settingsSavedMsg{cfg: cfg, err: err}
	}
}

// =============================================================================
// REQUESTS
// =============================================================================

// submit starts a request for the text in the input box.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.pending {
		m.notify(statusWarning, "a request is already running (Esc to cancel)")
		return m, nil
	}

	prompt := strings.TrimSpace(m.input.Value())
	if prompt == "" {
		cmd := m.showText(EmptyPromptText)
		return m, cmd
	}

	client, err := m.ensureClient()
	if err != nil {
		cmd := m.showText(perplexity.FormatError(err) + "\n")
		return m, cmd
	}

	format, err := perplexity.ParseFormat(m.cfg.Request.Format)
	if err != nil {
		cmd := m.showText(perplexity.FormatError(err) + "\n")
		return m, cmd
	}

	command := m.cfg.Request.Command
	opts := perplexity.Options{
		Model:       m.cfg.Request.Model,
		MaxTokens:   m.cfg.Request.MaxTokens,
		Temperature: m.cfg.Request.Temperature,
	}

	m.gen++
	gen := m.gen
	task := worker.Start(context.Background(), func(ctx context.Context) (reply, error) {
		start := time.Now()
		var resp *perplexity.ChatResponse
		var err error
		if command == config.CommandChat {
			resp, err = client.Chat(ctx, prompt, opts)
		} else {
			resp, err = client.Search(ctx, prompt, opts)
		}
		if err != nil {
			return reply{}, err
		}
		out, err := perplexity.FormatOutput(resp, format)
		if err != nil {
			return reply{}, err
		}
		return reply{
			Command:  command,
			Model:    opts.Model,
			Prompt:   prompt,
			Response: resp,
			Output:   out,
			Duration: time.Since(start),
		}, nil
	})
	m.slot.Replace(task)
	m.pending = true
	m.pendingSince = time.Now()
	m.status = ""
	m.input.Reset()

	log.Printf("chat: request %d started (%s, %s)", gen, command, opts.Model)
	reveal := m.showText(PleaseWaitText)
	return m, tea.Batch(waitForResponse(gen, task), m.spinner.Tick, reveal)
}

// cancel stops the in-flight request, or finishes a running reveal.
func (m Model) cancel() (tea.Model, tea.Cmd) {
	if m.pending {
		m.slot.Cancel()
		m.gen++
		m.pending = false
		log.Printf("chat: request cancelled")
		cmd := m.showText(CancelledText)
		return m, cmd
	}
	if m.revealing {
		m.revealGen++
		m.revealing = false
		m.setFrame(m.reveal.SkipToEnd())
	}
	return m, nil
}

func (m *Model) ensureClient() (Requester, error) {
	if m.client != nil {
		return m.client, nil
	}
	if m.newClient == nil {
		return nil, errors.New("no API client configured")
	}
	c, err := m.newClient(m.cfg)
	if err != nil {
		return nil, err
	}
	m.client = c
	return c, nil
}

func (m Model) handleResponse(msg responseMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.gen {
		return m, nil
	}
	m.pending = false

	res := msg.result
	if errors.Is(res.Err, worker.ErrCancelled) {
		return m, nil
	}
	if res.Err != nil {
		log.Printf("chat: request %d failed: %v", msg.gen, res.Err)
		cmd := m.showText(perplexity.FormatError(res.Err) + "\n")
		return m, cmd
	}

	r := res.Value
	log.Printf("chat: request %d finished in %s", msg.gen, r.Duration)
	reveal := m.showText(r.Output)
	return m, tea.Batch(reveal, m.recordCmd(r))
}

func (m Model) recordCmd(r reply) tea.Cmd {
	if m.history == nil || !m.cfg.History.Enabled || r.Response == nil {
		return nil
	}
	hist := m.history
	ex := &storage.Exchange{
		Command:      r.Command,
		Model:        r.Model,
		Prompt:       r.Prompt,
		Response:     r.Response.Content(),
		FinishReason: r.Response.FinishReason(),
		Citations:    r.Response.Sources(),
		Duration:     r.Duration,
	}
	if r.Response.Model != "" {
		ex.Model = r.Response.Model
	}
	if u := r.Response.Usage; u != nil {
		ex.PromptTokens = u.PromptTokens
		ex.CompletionTokens = u.CompletionTokens
		ex.TotalTokens = u.TotalTokens
	}
	return func() tea.Msg {
		ctx := context.Background()
		if err := hist.Record(ctx, ex); err != nil {
			return historyMsg{err: err}
		}
		n, err := hist.Count(ctx)
		return historyMsg{count: n, err: err}
	}
}

// =============================================================================
// REVEAL
// =============================================================================

// showText discards the current reveal and starts revealing text.
func (m *Model) showText(text string) tea.Cmd {
	m.revealGen++
	m.reveal.Reset(text)
	m.setFrame(render.Frame{})
	m.revealing = !m.reveal.Done()
	if !m.revealing {
		return nil
	}
	return m.revealTickCmd()
}

func (m Model) revealTickCmd() tea.Cmd {
	if m.reveal.Done() {
		return nil
	}
	return revealTick(m.revealGen, m.delay())
}

func (m Model) delay() time.Duration {
	if m.cfg.UI.RevealDelayMs <= 0 {
		return render.DefaultDelay
	}
	return time.Duration(m.cfg.UI.RevealDelayMs) * time.Millisecond
}

func (m Model) handleRevealTick(msg revealTickMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.revealGen {
		return m, nil
	}
	frame, ok := m.reveal.Step()
	if !ok {
		m.revealing = false
		return m, nil
	}
	m.setFrame(frame)
	if m.reveal.Done() {
		m.revealing = false
		return m, nil
	}
	m.revealing = true
	return m, revealTick(msg.gen, m.delay())
}

// setFrame paints frame into the output viewport.
func (m *Model) setFrame(frame render.Frame) {
	m.frame = frame
	content := m.painter.Paint(frame)
	if w := m.output.Width; w > 0 {
		content = lipgloss.NewStyle().Width(w).Render(content)
	}
	m.output.SetContent(content)
	m.output.GotoBottom()
}

// =============================================================================
// SETTINGS
// =============================================================================

func (m Model) handleSettingsSaved(msg settingsSavedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if m.settings != nil {
			m.settings.err = "save failed: " + msg.err.Error()
		}
		return m, nil
	}
	m.settings = nil
	if err := m.applySaved(msg.cfg); err != nil {
		m.notify(statusError, "settings saved, overrides failed: "+err.Error())
	} else {
		m.notify(statusSuccess, "settings saved")
	}
	focus := m.input.Focus()
	return m, focus
}

// statusKind selects the marker of a status notice.
type statusKind int

const (
	statusInfo statusKind = iota
	statusSuccess
	statusWarning
	statusError
)

func (m *Model) notify(kind statusKind, text string) {
	m.status, m.statusKind = text, kind
}

func (m Model) handleConfigReloaded(msg ConfigReloadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.notify(statusError, "config reload failed: "+msg.Err.Error())
		return m, nil
	}
	if msg.Config == nil {
		return m, nil
	}
	if err := m.applySaved(msg.Config); err != nil {
		m.notify(statusError, "config reload failed: "+err.Error())
		return m, nil
	}
	m.notify(statusSuccess, "settings reloaded")
	return m, nil
}

// applySaved adopts saved as the file's settings and switches to it with
// the overrides re-applied. On error the running config is kept.
func (m *Model) applySaved(saved *config.Config) error {
	m.saved = saved
	cfg, err := resolveConfig(m.resolve, saved)
	if err != nil {
		return err
	}
	m.applyConfig(cfg)
	return nil
}

func resolveConfig(resolve Resolver, saved *config.Config) (*config.Config, error) {
	if resolve == nil {
		return saved.Clone(), nil
	}
	return resolve(saved)
}

// applyConfig switches to cfg. The client is rebuilt on the next request.
func (m *Model) applyConfig(cfg *config.Config) {
	m.cfg = cfg
	m.client = nil
	m.painter = m.newPainter()
	m.setFrame(m.frame)
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Config returns the active settings.
func (m Model) Config() *config.Config {
	return m.cfg
}

// Pending reports whether a request is in flight.
func (m Model) Pending() bool {
	return m.pending
}

// Revealing reports whether the output is still being revealed.
func (m Model) Revealing() bool {
	return m.revealing
}

// VisibleText returns the unstyled text currently shown in the output.
func (m Model) VisibleText() string {
	return m.frame.Text()
}
