// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"log"
	"time"

	"github.com/jeranaias/pplx-tui/internal/config"
	"github.com/jeranaias/pplx-tui/internal/perplexity"
)

// API is the part of perplexity.Client the commands use.
type API interface {
	Search(ctx context.Context, query string, opts perplexity.Options) (*perplexity.ChatResponse, error)
	Chat(ctx context.Context, message string, opts perplexity.Options) (*perplexity.ChatResponse, error)
	Converse(ctx context.Context, history []perplexity.Message, opts perplexity.Options) (*perplexity.ChatResponse, error)
	ChatCompletion(ctx context.Context, req *perplexity.ChatRequest) (*perplexity.ChatResponse, error)
	Probe(ctx context.Context, req *perplexity.ChatRequest) (*perplexity.RawResponse, error)
}

// NewAPIClient builds a client from cfg. It fails with
// config.ErrNoAPIKey when no key can be resolved.
func NewAPIClient(cfg *config.Config) (*perplexity.Client, error) {
	key, source, err := config.ResolveAPIKey(cfg)
	if err != nil {
		return nil, err
	}
	return newClientWithKey(cfg, key, source), nil
}

func newClientWithKey(cfg *config.Config, key string, source config.KeySource) *perplexity.Client {
	c := perplexity.NewClient(key).
		WithBaseURL(cfg.API.BaseURL).
		WithTimeout(time.Duration(cfg.API.TimeoutSecs) * time.Second).
		WithRateLimit(cfg.API.RequestsPerMinute)
	log.Printf("cli: client for %s (key %s from %s)", c.Endpoint(), c.KeyFingerprint(), source)
	return c
}

// requestOptions returns the per-request options of cfg.
func requestOptions(cfg *config.Config) perplexity.Options {
	return perplexity.Options{
		Model:       cfg.Request.Model,
		MaxTokens:   cfg.Request.MaxTokens,
		Temperature: cfg.Request.Temperature,
	}
}
