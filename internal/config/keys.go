// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"strings"
)

// APIKeyEnv is the environment variable consulted when no key is saved.
const APIKeyEnv = "PERPLEXITY_API_KEY"

// KeyPrefix is the prefix every Perplexity API key starts with.
const KeyPrefix = "pplx-"

// ErrNoAPIKey is returned when neither the settings nor the environment
// provide a key.
var ErrNoAPIKey = errors.New("no API key configured (run 'pplx setup' or set " + APIKeyEnv + ")")

// KeySource says where a resolved key came from.
type KeySource string

const (
	KeySourceNone     KeySource = ""
	KeySourceSettings KeySource = "settings"
	KeySourceEnv      KeySource = "environment"
)

// ResolveAPIKey returns the saved key if set, otherwise the key from
// PERPLEXITY_API_KEY.
func ResolveAPIKey(cfg *Config) (string, KeySource, error) {
	if cfg != nil {
		if key := strings.TrimSpace(cfg.API.Key); key != "" {
			return key, KeySourceSettings, nil
		}
	}
	if key := strings.TrimSpace(os.Getenv(APIKeyEnv)); key != "" {
		return key, KeySourceEnv, nil
	}
	return "", KeySourceNone, ErrNoAPIKey
}

// MaskKey shows the first 10 and last 4 characters of a key. Short keys
// are fully masked.
func MaskKey(key string) string {
	if key == "" {
		return "[not set]"
	}
	if len(key) <= 14 {
		return strings.Repeat("*", len(key))
	}
	return key[:10] + "..." + key[len(key)-4:]
}

// HasKeyPrefix reports whether key looks like a Perplexity key.
func HasKeyPrefix(key string) bool {
	return strings.HasPrefix(strings.TrimSpace(key), KeyPrefix)
}
