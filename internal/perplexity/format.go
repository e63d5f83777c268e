// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package perplexity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Format selects how a response is turned into text.
type Format string

const (
	FormatPretty Format = "pretty"
	FormatJSON   Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPretty, "":
		return FormatPretty, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use pretty or json)", s)
	}
}

// FormatOutput renders resp as pretty text or indented JSON.
func FormatOutput(resp *ChatResponse, format Format) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("nil response")
	}
	if format == FormatJSON {
		return formatJSON(resp)
	}
	return formatPretty(resp), nil
}

// FormatError renders err the way responses render failures.
func FormatError(err error) string {
	return "❌ Error: " + err.Error()
}

func formatJSON(resp *ChatResponse) (string, error) {
	if len(resp.Raw) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, resp.Raw, "", "  "); err == nil {
			return buf.String(), nil
		}
	}
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode response: %w", err)
	}
	return string(out), nil
}

func formatPretty(resp *ChatResponse) string {
	lines := []string{
		"🤖 Perplexity AI Response",
		strings.Repeat("=", 50),
	}

	if len(resp.Choices) > 0 {
		lines = append(lines, "\n📝 Response:\n", resp.Content())
		if reason := resp.FinishReason(); reason != "" {
			lines = append(lines, "\n🏁 Finish Reason: "+reason)
		}
	}

	if sources := resp.Sources(); len(sources) > 0 {
		lines = append(lines, "\n🔗 Sources:")
		for i, src := range sources {
			lines = append(lines, fmt.Sprintf("  %d. %s", i+1, src))
		}
	}

	if u := resp.Usage; u != nil {
		lines = append(lines,
			"\n📊 Token Usage:",
			fmt.Sprintf("  • Prompt tokens: %d", u.PromptTokens),
			fmt.Sprintf("  • Completion tokens: %d", u.CompletionTokens),
			fmt.Sprintf("  • Total tokens: %d", u.TotalTokens),
		)
	}

	return strings.Join(lines, "\n")
}
