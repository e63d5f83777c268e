// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/jeranaias/pplx-tui/internal/storage"
	"github.com/jeranaias/pplx-tui/internal/util"
)

// ErrNothingToExport is returned when an exporter is given no exchanges.
var ErrNothingToExport = errors.New("no exchanges to export")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts stored exchanges to a file format.
type Exporter interface {
	// Export renders the exchanges, oldest first as given.
	Export(exchanges []*storage.Exchange) ([]byte, error)

	// FileExtension returns the file extension including the dot.
	FileExtension() string

	// MimeType returns the MIME type of the output.
	MimeType() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where files are written. Default: current directory.
	OutputDir string

	// OpenAfterExport opens the file in the default application.
	OpenAfterExport bool

	// IncludeMetadata adds model, token and citation details.
	IncludeMetadata bool

	// Theme for HTML export ("light" or "dark").
	Theme string

	// Now is used for the export timestamp; nil means time.Now.
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:       ".",
		IncludeMetadata: true,
		Theme:           "dark",
	}
}

func (o *Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// ForFormat returns the exporter for a format name.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "markdown", "md", "":
		return NewMarkdownExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ToFile renders the exchanges with exporter and writes them into
// opts.OutputDir. Returns the path written.
func ToFile(exchanges []*storage.Exchange, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(exchanges)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	filename := fmt.Sprintf("pplx_%s_%s%s",
		sanitizeFilename(title(exchanges)),
		opts.now().Format("20060102_150405"),
		exporter.FileExtension(),
	)
	outputPath := filepath.Join(dir, filename)

	if err := util.AtomicWriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	if opts.OpenAfterExport {
		if err := openFile(outputPath); err != nil {
			// The file exists either way.
			fmt.Fprintf(os.Stderr, "Warning: could not open file: %v\n", err)
		}
	}
	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func validate(exchanges []*storage.Exchange) error {
	if len(exchanges) == 0 {
		return ErrNothingToExport
	}
	for i, ex := range exchanges {
		if ex == nil {
			return fmt.Errorf("exchange %d is nil", i)
		}
	}
	return nil
}

// title is the first prompt, flattened to a single line.
func title(exchanges []*storage.Exchange) string {
	if len(exchanges) == 0 || exchanges[0] == nil {
		return "history"
	}
	t := util.SingleLine(exchanges[0].Prompt)
	if t == "" {
		return "history"
	}
	return util.TruncateRunes(t, 60)
}

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	runes := []rune(s)
	if len(runes) > 50 {
		runes = runes[:50]
	}

	replacer := map[rune]rune{
		'/': '-', '\\': '-', ':': '-', '*': '-', '?': '-',
		'"': '-', '<': '-', '>': '-', '|': '-',
		' ': '_', '\t': '_', '\n': '_', '\r': '_',
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "history"
	}
	return string(result)
}

// openFile opens a file in the default application for the OS.
func openFile(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", `""`, path)
	case "darwin":
		cmd = exec.Command("open", path)
	case "linux":
		cmd = exec.Command("xdg-open", path)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000.0
	if seconds < 60 {
		return fmt.Sprintf("%.2fs", seconds)
	}
	return fmt.Sprintf("%dm %ds", int(seconds/60), int(seconds)%60)
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// statsLine summarises an exchange's usage, or "" when nothing is known.
func statsLine(ex *storage.Exchange) string {
	var parts []string
	if ex.TotalTokens > 0 {
		parts = append(parts, fmt.Sprintf("Tokens: %d (%d prompt, %d completion)",
			ex.TotalTokens, ex.PromptTokens, ex.CompletionTokens))
	}
	if ex.Duration > 0 {
		parts = append(parts, "Duration: "+formatDuration(ex.Duration))
	}
	if ex.FinishReason != "" {
		parts = append(parts, "Finish: "+ex.FinishReason)
	}
	return strings.Join(parts, " | ")
}
