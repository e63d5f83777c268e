// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/pplx-tui/internal/config"
	"github.com/jeranaias/pplx-tui/internal/perplexity"
)

// Probe defaults.
const (
	probeMessage   = "Hello, this is a test message."
	probeMaxTokens = 100
)

// HandleTest handles "pplx test": send one request and print every part
// of the exchange, for debugging keys and connectivity.
func HandleTest(env *Env, args Args) error {
	cfg, err := env.loadConfig(args)
	if err != nil {
		return err
	}
	key, source, err := config.ResolveAPIKey(cfg)
	if err != nil {
		return err
	}
	client, err := env.client(cfg)
	if err != nil {
		return err
	}

	message := args.Flags.FlagOrDefault("message", probeMessage)
	if args.Query != "" {
		message = args.Query
	}
	model := perplexity.DefaultModel
	if args.Model != "" {
		model = args.Model
	}
	req := &perplexity.ChatRequest{
		Model:       model,
		Messages:    []perplexity.Message{perplexity.NewUserMessage(message)},
		MaxTokens:   probeMaxTokens,
		Temperature: cfg.Request.Temperature,
	}

	out := env.Stdout
	fmt.Fprintln(out, TitleStyle.Render("🔍 Perplexity API Debug"))
	fmt.Fprintln(out, RenderSeparator(40))
	fmt.Fprintln(out, RenderField("API Key", fmt.Sprintf("%s (%s)", config.MaskKey(key), source)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	raw, err := client.Probe(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, RenderField("URL", raw.URL))
	fmt.Fprintln(out, SectionStyle.Render("Payload"))
	fmt.Fprintln(out, indentJSON(raw.Payload))
	fmt.Fprintln(out)
	fmt.Fprintln(out, RenderField("Status", raw.Status))
	fmt.Fprintln(out, RenderField("Duration", raw.Duration.Round(time.Millisecond).String()))
	fmt.Fprintln(out, SectionStyle.Render("Headers"))
	printHeaders(out, raw.Header)
	fmt.Fprintln(out, SectionStyle.Render("Response"))
	fmt.Fprintln(out, indentJSON(raw.Body))

	if raw.StatusCode != http.StatusOK {
		fmt.Fprintln(out)
		fmt.Fprintln(out, RenderStatus("fail")+" API request failed")
		return &perplexity.APIError{StatusCode: raw.StatusCode, Message: strings.TrimSpace(string(raw.Body))}
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, RenderStatus("ok")+" API request successful")
	return nil
}

// indentJSON pretty-prints data, returning it as text when it is not JSON.
func indentJSON(data []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}

func printHeaders(w io.Writer, h http.Header) {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %s\n", DimStyle.Render(name), strings.Join(h[name], ", "))
	}
}
