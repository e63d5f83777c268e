// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jeranaias/pplx-tui/internal/config"
)

// secretKeys are masked by "config get".
var secretKeys = map[string]bool{"api.key": true}

// HandleConfig handles "pplx config [show|get|set|reset|keys|path]".
func HandleConfig(env *Env, args Args) error {
	switch args.Subcommand {
	case "", "show":
		return handleConfigShow(env, args.Flags.BoolFlag("json"))
	case "get":
		return handleConfigGet(env, args.Flags.Positional(2))
	case "set":
		return handleConfigSet(env, args.Flags.Positional(2), strings.Join(args.Flags.PositionalFrom(3), " "))
	case "reset":
		return handleConfigReset(env, args.Flags.BoolFlag("yes", "y"))
	case "keys":
		for _, k := range config.Keys() {
			fmt.Fprintln(env.Stdout, k)
		}
		return nil
	case "path":
		path, err := env.configPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(env.Stdout, path)
		return nil
	default:
		return NewValidationErrorWithExample("subcommand", args.Subcommand,
			"unknown config subcommand", "pplx config [show|get|set|reset|keys|path]")
	}
}

// loadSavedConfig loads the config without request flag overrides, which
// config and history commands interpret themselves.
func (e *Env) loadSavedConfig() (*config.Config, string, error) {
	path, err := e.configPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// loadFileConfig loads only what the config file says. Commands that save
// the config start from it, so environment overrides never reach the file.
func (e *Env) loadFileConfig() (*config.Config, string, error) {
	path, err := e.configPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func handleConfigShow(env *Env, asJSON bool) error {
	cfg, path, err := env.loadSavedConfig()
	if err != nil {
		return err
	}
	safe := cfg.Clone()
	if safe.API.Key != "" {
		safe.API.Key = config.MaskKey(safe.API.Key)
	}

	if asJSON {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(safe)
	}

	out := env.Stdout
	fmt.Fprintln(out, TitleStyle.Render("pplx configuration"))
	fmt.Fprintln(out, RenderField("File", path))
	if key, source, err := config.ResolveAPIKey(cfg); err == nil {
		fmt.Fprintln(out, RenderField("API key", fmt.Sprintf("%s (%s)", config.MaskKey(key), source)))
	} else {
		fmt.Fprintln(out, RenderField("API key", WarningStyle.Render("not set, run 'pplx setup'")))
	}
	fmt.Fprintln(out, RenderSeparator())
	fmt.Fprint(out, cfg.String())
	return nil
}

func handleConfigGet(env *Env, key string) error {
	if key == "" {
		return ErrMissingArgument("key", "pplx config get request.model")
	}
	cfg, _, err := env.loadSavedConfig()
	if err != nil {
		return err
	}
	value, err := cfg.Get(key)
	if err != nil {
		return NewValidationError("key", key, err.Error())
	}
	if secretKeys[strings.ToLower(key)] {
		value = config.MaskKey(fmt.Sprint(value))
	}
	fmt.Fprintln(env.Stdout, value)
	return nil
}

func handleConfigSet(env *Env, key, value string) error {
	if key == "" || value == "" {
		return ErrMissingArgument("key and value", "pplx config set request.temperature 0.7")
	}
	cfg, path, err := env.loadFileConfig()
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return NewValidationError(key, value, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return NewCommandError("config", "set", "could not write config", err)
	}

	shown := value
	if secretKeys[strings.ToLower(key)] {
		shown = config.MaskKey(value)
	}
	fmt.Fprintf(env.Stdout, "%s %s = %s\n", RenderStatus("ok"), key, shown)
	return nil
}

func handleConfigReset(env *Env, yes bool) error {
	path, err := env.configPath()
	if err != nil {
		return err
	}
	if !yes {
		ok, err := NewPrompter(env.Stdin, env.Stdout).Confirm("Reset every setting, including the saved API key?", false)
		if err != nil || !ok {
			return err
		}
	}
	if err := config.SaveTOML(config.Default(), path); err != nil {
		return NewCommandError("config", "reset", "could not write config", err)
	}
	fmt.Fprintf(env.Stdout, "%s Configuration reset: %s\n", RenderStatus("ok"), path)
	return nil
}
