// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for pplx.
//
// Settings live in a TOML file, by default ~/.pplx/config.toml. Values are
// resolved in this order: built-in defaults, the file, then environment
// overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/pplx-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete pplx configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Request RequestConfig `toml:"request"`
	UI      UIConfig      `toml:"ui"`
	History HistoryConfig `toml:"history"`
}

// APIConfig holds connection settings.
type APIConfig struct {
	// Key is the Perplexity API key. Empty means fall back to
	// PERPLEXITY_API_KEY.
	Key               string `toml:"key"`
	BaseURL           string `toml:"base_url"`
	TimeoutSecs       int    `toml:"timeout_secs"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// RequestConfig holds the per-request defaults shown in the settings panel.
type RequestConfig struct {
	// Command is "search" or "chat"
	Command     string  `toml:"command"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
	// Format is "pretty" or "json"
	Format string `toml:"format"`
}

// UIConfig holds TUI settings.
type UIConfig struct {
	RevealDelayMs int    `toml:"reveal_delay_ms"`
	HighlightCode bool   `toml:"highlight_code"`
	Theme         string `toml:"theme"`
}

// HistoryConfig controls the exchange history database.
type HistoryConfig struct {
	Enabled bool `toml:"enabled"`
	// Path defaults to <config dir>/history.db
	Path string `toml:"path"`
}

// Limits enforced by Validate.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinMaxTokens   = 1
	MaxMaxTokens   = 128000
	MinRevealDelay = 1
	MaxRevealDelay = 1000
)

// Command names.
const (
	CommandSearch = "search"
	CommandChat   = "chat"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           "https://api.perplexity.ai",
			TimeoutSecs:       60,
			RequestsPerMinute: 30,
		},
		Request: RequestConfig{
			Command:     CommandSearch,
			Model:       "sonar-pro",
			Temperature: 0.2,
			MaxTokens:   1000,
			Format:      "pretty",
		},
		UI: UIConfig{
			RevealDelayMs: 10,
			HighlightCode: true,
			Theme:         "auto",
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the pplx configuration directory. PPLX_HOME overrides
// the default ~/.pplx.
func ConfigDir() (string, error) {
	if dir := os.Getenv("PPLX_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".pplx"), nil
}

// ConfigPath returns the config file path. PPLX_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := os.Getenv("PPLX_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// HistoryPath returns the resolved history database path.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// DebugLogPath returns the file used for TUI debug logging.
func DebugLogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "debug.log"), nil
}

// ensureSecurePermissions tightens the config file to 0600; it may hold
// the API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the config file if it exists, then applies environment
// overrides and validates. A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath is Load for an explicit path.
func LoadFromPath(path string) (*Config, error) {
	base, err := loadBase(path)
	if err != nil {
		return nil, err
	}
	cfg, err := base.WithOverrides()
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFile reads only the defaults and the file at path, with no
// environment overrides. This is the config that edits are applied to
// before it is saved back.
func LoadFile(path string) (*Config, error) {
	cfg, err := loadBase(path)
	if err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func loadBase(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config: %w", err)
	}
	return cfg, nil
}

// Override adjusts a runtime config, e.g. from command-line flags.
type Override func(*Config) error

// WithOverrides returns a validated copy of c with the environment
// overrides and then each of overrides applied. c is not modified, so it
// stays safe to save.
func (c *Config) WithOverrides(overrides ...Override) (*Config, error) {
	out := c.Clone()
	out.ApplyEnvOverrides()
	for _, o := range overrides {
		if o == nil {
			continue
		}
		if err := o(out); err != nil {
			return nil, err
		}
	}
	out.SetDefaults()
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadTOML decodes a TOML file over cfg. Problems that do not stop the
// load are logged.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		log.Printf("config: could not ensure secure permissions on %s: %v", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		log.Printf("config: unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Save writes cfg to the default config path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# pplx configuration file\n")
	buf.WriteString("# Generated by pplx - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every field and returns all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.API.BaseURL != "" && !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		add("api.base_url", "must start with http:// or https://")
	}
	if c.API.TimeoutSecs < 0 {
		add("api.timeout_secs", "must not be negative")
	}
	if c.API.RequestsPerMinute < 0 {
		add("api.requests_per_minute", "must not be negative")
	}

	switch c.Request.Command {
	case CommandSearch, CommandChat:
	default:
		add("request.command", "must be %q or %q, got %q", CommandSearch, CommandChat, c.Request.Command)
	}
	if strings.TrimSpace(c.Request.Model) == "" {
		add("request.model", "must not be empty")
	}
	if c.Request.Temperature < MinTemperature || c.Request.Temperature > MaxTemperature {
		add("request.temperature", "must be between %.1f and %.1f, got %g", MinTemperature, MaxTemperature, c.Request.Temperature)
	}
	if c.Request.MaxTokens < MinMaxTokens || c.Request.MaxTokens > MaxMaxTokens {
		add("request.max_tokens", "must be between %d and %d, got %d", MinMaxTokens, MaxMaxTokens, c.Request.MaxTokens)
	}
	switch c.Request.Format {
	case "pretty", "json":
	default:
		add("request.format", "must be \"pretty\" or \"json\", got %q", c.Request.Format)
	}

	if c.UI.RevealDelayMs < MinRevealDelay || c.UI.RevealDelayMs > MaxRevealDelay {
		add("ui.reveal_delay_ms", "must be between %d and %d, got %d", MinRevealDelay, MaxRevealDelay, c.UI.RevealDelayMs)
	}
	switch c.UI.Theme {
	case "auto", "dark", "light":
	default:
		add("ui.theme", "must be auto, dark or light, got %q", c.UI.Theme)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values that have no meaningful zero setting.
func (c *Config) SetDefaults() {
	d := Default()
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = d.API.TimeoutSecs
	}
	if c.Request.Command == "" {
		c.Request.Command = d.Request.Command
	}
	if c.Request.Model == "" {
		c.Request.Model = d.Request.Model
	}
	if c.Request.Format == "" {
		c.Request.Format = d.Request.Format
	}
	if c.UI.RevealDelayMs == 0 {
		c.UI.RevealDelayMs = d.UI.RevealDelayMs
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	c.Request.Command = strings.ToLower(c.Request.Command)
	c.Request.Format = strings.ToLower(c.Request.Format)
}

// ApplyEnvOverrides applies PPLX_* environment variables. The API key
// env var is not applied here; see ResolveAPIKey.
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("PPLX_MODEL"); model != "" {
		c.Request.Model = model
	}
	if format := os.Getenv("PPLX_FORMAT"); format != "" {
		c.Request.Format = format
	}
	if url := os.Getenv("PPLX_BASE_URL"); url != "" {
		c.API.BaseURL = url
	}
}

// DebugEnabled reports whether PPLX_DEBUG is set to a truthy value.
func DebugEnabled() bool {
	v := strings.ToLower(os.Getenv("PPLX_DEBUG"))
	return v == "1" || v == "true" || v == "yes"
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value by its dotted TOML key, e.g. "request.model".
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value by its dotted TOML key. String values are converted
// to the field's type. The config is not validated.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(strings.TrimSpace(key), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return reflect.Value{}, fmt.Errorf("invalid key %q (expected section.name)", key)
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		idx := fieldByTag(v.Type(), part)
		if idx < 0 {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		v = v.Field(idx)
	}
	if v.Kind() == reflect.Struct {
		return reflect.Value{}, fmt.Errorf("field %q is a section", key)
	}
	return v, nil
}

func fieldByTag(t reflect.Type, name string) int {
	for i := 0; i < t.NumField(); i++ {
		if strings.EqualFold(t.Field(i).Tag.Get("toml"), name) {
			return i
		}
	}
	return -1
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value any) error {
	if strVal, ok := value.(string); ok {
		strVal = strings.TrimSpace(strVal)
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %w", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %w", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				switch strings.ToLower(strVal) {
				case "yes", "on":
					boolVal = true
				case "no", "off":
					boolVal = false
				default:
					return fmt.Errorf("invalid boolean value: %q", strVal)
				}
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every settable key in dot notation.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, section.Tag.Get("toml")+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String renders the config as TOML with the API key masked.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.API.Key != "" {
		safe.API.Key = MaskKey(safe.API.Key)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(safe); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}
