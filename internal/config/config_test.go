// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a temp dir and clears env vars
// that would leak into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PPLX_HOME", dir)
	t.Setenv("PPLX_CONFIG", "")
	t.Setenv("PPLX_MODEL", "")
	t.Setenv("PPLX_FORMAT", "")
	t.Setenv("PPLX_BASE_URL", "")
	t.Setenv(APIKeyEnv, "")
	return dir
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sonar-pro", cfg.Request.Model)
	assert.Equal(t, 1000, cfg.Request.MaxTokens)
	assert.Equal(t, 0.2, cfg.Request.Temperature)
	assert.Equal(t, "pretty", cfg.Request.Format)
	assert.Equal(t, CommandSearch, cfg.Request.Command)
	assert.Equal(t, 10, cfg.UI.RevealDelayMs)
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := isolate(t)

	cfg := Default()
	cfg.API.Key = "pplx-abcdefghijklmnopqrstuvwxyz"
	cfg.Request.Model = "sonar"
	cfg.Request.Temperature = 1.5
	cfg.Request.MaxTokens = 4096
	cfg.Request.Format = "json"
	cfg.UI.HighlightCode = false
	require.NoError(t, Save(cfg))

	path := filepath.Join(dir, "config.toml")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[request]\nmodel = \"sonar\"\n"), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sonar", cfg.Request.Model)
	assert.Equal(t, 1000, cfg.Request.MaxTokens)
	assert.True(t, cfg.History.Enabled)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, os.WriteFile(path, []byte("[request\n"), 0600))
	_, err := Load()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("[request]\ntemperature = 3.5\n"), 0600))
	_, err = Load()
	require.Error(t, err)
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "request.temperature", verrs[0].Field)
}

func TestLoad_FixesPermissions(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ui]\ntheme = \"dark\"\n"), 0644))

	_, err := Load()
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigPath_EnvOverride(t *testing.T) {
	isolate(t)
	custom := filepath.Join(t.TempDir(), "custom.toml")
	t.Setenv("PPLX_CONFIG", custom)
	got, err := ConfigPath()
	require.NoError(t, err)
	assert.Equal(t, custom, got)
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PPLX_MODEL", "sonar-reasoning")
	t.Setenv("PPLX_FORMAT", "JSON")
	t.Setenv("PPLX_BASE_URL", "http://localhost:9999")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sonar-reasoning", cfg.Request.Model)
	assert.Equal(t, "json", cfg.Request.Format)
	assert.Equal(t, "http://localhost:9999", cfg.API.BaseURL)
}

func TestLoadFile_IgnoresEnvOverrides(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[request]\nmodel = \"sonar\"\n"), 0600))
	t.Setenv("PPLX_MODEL", "sonar-reasoning")
	t.Setenv("PPLX_BASE_URL", "http://127.0.0.1:9/staging")

	base, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sonar", base.Request.Model)
	assert.Equal(t, Default().API.BaseURL, base.API.BaseURL)

	effective, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "sonar-reasoning", effective.Request.Model)
	assert.Equal(t, "http://127.0.0.1:9/staging", effective.API.BaseURL)
}

func TestWithOverrides_LeavesBaseUntouched(t *testing.T) {
	isolate(t)
	t.Setenv("PPLX_FORMAT", "json")
	base := Default()

	cfg, err := base.WithOverrides(func(c *Config) error {
		c.Request.MaxTokens = 42
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Request.Format)
	assert.Equal(t, 42, cfg.Request.MaxTokens)
	assert.Equal(t, Default(), base)

	_, err = base.WithOverrides(func(c *Config) error {
		c.Request.Temperature = 9
		return nil
	})
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "request.temperature", verrs[0].Field)

	boom := errors.New("bad flag")
	_, err = base.WithOverrides(func(*Config) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestSaveAfterEnvOverride_KeepsFileClean(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	t.Setenv("PPLX_BASE_URL", "http://127.0.0.1:9/staging")

	base, err := LoadFile(path)
	require.NoError(t, err)
	base.Request.Model = "sonar"
	require.NoError(t, SaveTOML(base, path))

	t.Setenv("PPLX_BASE_URL", "")
	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "sonar", cfg.Request.Model)
	assert.Equal(t, Default().API.BaseURL, cfg.API.BaseURL)
}

func TestLoadTOML_UnknownKeysAreLogged(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[request]\nmodle = \"sonar\"\n"), 0600))

	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)

	_, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "unknown config keys")
	assert.Contains(t, buf.String(), "request.modle")
}

func TestValidate_Limits(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Config)
		field string
	}{
		{"temperature low", func(c *Config) { c.Request.Temperature = -0.1 }, "request.temperature"},
		{"temperature high", func(c *Config) { c.Request.Temperature = 2.01 }, "request.temperature"},
		{"tokens zero", func(c *Config) { c.Request.MaxTokens = 0 }, "request.max_tokens"},
		{"tokens high", func(c *Config) { c.Request.MaxTokens = 128001 }, "request.max_tokens"},
		{"format", func(c *Config) { c.Request.Format = "yaml" }, "request.format"},
		{"command", func(c *Config) { c.Request.Command = "ask" }, "request.command"},
		{"model", func(c *Config) { c.Request.Model = " " }, "request.model"},
		{"delay", func(c *Config) { c.UI.RevealDelayMs = 0 }, "ui.reveal_delay_ms"},
		{"theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"base url", func(c *Config) { c.API.BaseURL = "ftp://x" }, "api.base_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mod(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}

	cfg := Default()
	cfg.Request.Temperature = 2.0
	cfg.Request.MaxTokens = 128000
	assert.NoError(t, cfg.Validate(), "limits are inclusive")
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("request.model", "sonar"))
	require.NoError(t, cfg.Set("request.temperature", "0.9"))
	require.NoError(t, cfg.Set("request.max_tokens", "2048"))
	require.NoError(t, cfg.Set("ui.highlight_code", "off"))
	require.NoError(t, cfg.Set("API.Timeout_Secs", 30))

	assert.Equal(t, "sonar", cfg.Request.Model)
	assert.Equal(t, 0.9, cfg.Request.Temperature)
	assert.Equal(t, 2048, cfg.Request.MaxTokens)
	assert.False(t, cfg.UI.HighlightCode)
	assert.Equal(t, 30, cfg.API.TimeoutSecs)

	v, err := cfg.Get("request.max_tokens")
	require.NoError(t, err)
	assert.Equal(t, 2048, v)

	assert.Error(t, cfg.Set("request.nope", "x"))
	assert.Error(t, cfg.Set("request", "x"))
	assert.Error(t, cfg.Set("request.max_tokens", "many"))
	assert.Error(t, cfg.Set("ui.highlight_code", "maybe"))
	_, err = cfg.Get("nope.model")
	assert.Error(t, err)
}

func TestKeys_AllResolvable(t *testing.T) {
	cfg := Default()
	keys := Keys()
	assert.Contains(t, keys, "api.key")
	assert.Contains(t, keys, "request.max_tokens")
	assert.Contains(t, keys, "ui.reveal_delay_ms")
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestString_MasksKey(t *testing.T) {
	cfg := Default()
	cfg.API.Key = "pplx-1234567890abcdefghij"
	out := cfg.String()
	assert.NotContains(t, out, cfg.API.Key)
	assert.Contains(t, out, "pplx-12345...ghij")
}

func TestHistoryPath(t *testing.T) {
	dir := isolate(t)
	cfg := Default()
	p, err := cfg.HistoryPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "history.db"), p)

	cfg.History.Path = "/tmp/custom.db"
	p, err = cfg.HistoryPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", p)
}

// =============================================================================
// KEYS
// =============================================================================

func TestResolveAPIKey(t *testing.T) {
	isolate(t)
	cfg := Default()

	_, src, err := ResolveAPIKey(cfg)
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.Equal(t, KeySourceNone, src)

	t.Setenv(APIKeyEnv, " pplx-from-env ")
	key, src, err := ResolveAPIKey(cfg)
	require.NoError(t, err)
	assert.Equal(t, "pplx-from-env", key)
	assert.Equal(t, KeySourceEnv, src)

	cfg.API.Key = "pplx-from-settings"
	key, src, err = ResolveAPIKey(cfg)
	require.NoError(t, err)
	assert.Equal(t, "pplx-from-settings", key)
	assert.Equal(t, KeySourceSettings, src)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "[not set]", MaskKey(""))
	assert.Equal(t, "*****", MaskKey("short"))
	assert.Equal(t, "pplx-abcde...wxyz", MaskKey("pplx-abcdefghijklmnopqrstuvwxyz"))
	assert.True(t, HasKeyPrefix("pplx-abc"))
	assert.False(t, HasKeyPrefix("sk-abc"))
}

// =============================================================================
// WATCHER
// =============================================================================

func TestWatch_ReloadsOnSave(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	changes := make(chan *Config, 4)
	w, err := Watch(path, 20*time.Millisecond, func(cfg *Config, err error) {
		if err == nil {
			changes <- cfg
		}
	})
	require.NoError(t, err)
	defer w.Close()

	updated := Default()
	updated.Request.Model = "sonar-reasoning"
	require.NoError(t, SaveTOML(updated, path))

	select {
	case cfg := <-changes:
		assert.Equal(t, "sonar-reasoning", cfg.Request.Model)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after save")
	}
}

func TestWatch_DeliversFileOnly(t *testing.T) {
	isolate(t)
	t.Setenv("PPLX_MODEL", "sonar-reasoning")
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	changes := make(chan *Config, 4)
	w, err := Watch(path, 20*time.Millisecond, func(cfg *Config, err error) {
		if err == nil {
			changes <- cfg
		}
	})
	require.NoError(t, err)
	defer w.Close()

	updated := Default()
	updated.Request.MaxTokens = 2048
	require.NoError(t, SaveTOML(updated, path))

	select {
	case cfg := <-changes:
		assert.Equal(t, 2048, cfg.Request.MaxTokens)
		assert.Equal(t, "sonar-pro", cfg.Request.Model)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after save")
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	changes := make(chan struct{}, 4)
	w, err := Watch(path, 20*time.Millisecond, func(*Config, error) {
		changes <- struct{}{}
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600))
	select {
	case <-changes:
		t.Fatal("reload triggered by unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
	require.NoError(t, w.Close())
}

func TestValidateErrors_Message(t *testing.T) {
	errs := ValidateErrors{{Field: "a", Message: "x"}, {Field: "b", Message: "y"}}
	assert.Equal(t, "a: x; b: y", errs.Error())
	assert.True(t, strings.Contains(ValidateErrors{}.Error(), "no validation"))
}
