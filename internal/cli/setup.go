// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/pplx-tui/internal/config"
	"github.com/jeranaias/pplx-tui/internal/perplexity"
)

// shellProfiles are tried in order; the first that exists is edited.
var shellProfiles = []string{".bashrc", ".zshrc", ".profile"}

// setupTestTimeout bounds the test request.
const setupTestTimeout = 30 * time.Second

// HandleSetup handles "pplx setup": save a key, optionally export it from
// the shell profile, then test it.
func HandleSetup(env *Env, args Args) error {
	out := env.Stdout
	base, path, err := env.loadFileConfig()
	if err != nil {
		return err
	}
	cfg, err := base.WithOverrides()
	if err != nil {
		return err
	}
	prompter := NewPrompter(env.Stdin, out)
	yes := args.Flags.BoolFlag("yes", "y")

	fmt.Fprintln(out, TitleStyle.Render("🔑 Perplexity API Key Setup"))
	fmt.Fprintln(out, RenderSeparator(40))

	if current, source, err := config.ResolveAPIKey(cfg); err == nil {
		fmt.Fprintf(out, "%s API key already set (%s): %s\n", RenderStatus("ok"), source, config.MaskKey(current))
		if args.Flags.Flag("key") == "" && !yes {
			update, err := prompter.Confirm("Do you want to update it?", false)
			if err != nil {
				return err
			}
			if !update {
				return nil
			}
		}
	}

	key := strings.TrimSpace(args.Flags.Flag("key"))
	if key == "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Enter your Perplexity API key")
		fmt.Fprintln(out, DimStyle.Render("  (find it at https://www.perplexity.ai/settings/api)"))
		key, err = prompter.ReadSecret("API Key: ")
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
	}
	if key == "" {
		return ErrMissingArgument("API key", "pplx setup --key pplx-...")
	}

	if !config.HasKeyPrefix(key) {
		fmt.Fprintf(out, "%s API key doesn't start with %q.\n", RenderStatus("warn"), config.KeyPrefix)
		if !yes {
			ok, err := prompter.Confirm("Continue anyway?", false)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}
	}

	base.API.Key = key
	if err := config.SaveTOML(base, path); err != nil {
		return NewCommandError("setup", "save", "could not write config", err)
	}
	fmt.Fprintf(out, "%s Saved %s to %s\n", RenderStatus("ok"), config.MaskKey(key), path)

	if !args.Flags.BoolFlag("no-shell") {
		if err := offerShellExport(env, prompter, key, yes); err != nil {
			fmt.Fprintf(out, "%s %v\n", RenderStatus("fail"), err)
		}
	}

	if args.Flags.BoolFlag("no-test") {
		return nil
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "🧪 Testing API key...")
	return testKey(env, cfg, key)
}

// offerShellExport appends an export line to the first shell profile
// found in the home directory.
func offerShellExport(env *Env, prompter *Prompter, key string, yes bool) error {
	home := env.HomeDir
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		home = h
	}
	profile := findShellProfile(home)
	if profile == "" {
		return nil
	}

	if !yes {
		ok, err := prompter.Confirm(fmt.Sprintf("\n💾 Add %s to %s?", config.APIKeyEnv, profile), false)
		if err != nil || !ok {
			return err
		}
	}

	added, err := appendShellExport(profile, key)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", profile, err)
	}
	if !added {
		fmt.Fprintf(env.Stdout, "%s %s already exists in %s\n", RenderStatus("warn"), config.APIKeyEnv, profile)
		return nil
	}
	fmt.Fprintf(env.Stdout, "%s Added to %s\n", RenderStatus("ok"), profile)
	fmt.Fprintln(env.Stdout, DimStyle.Render("  Run 'source "+profile+"' or restart your terminal to apply it."))
	return nil
}

// findShellProfile returns the first existing profile under home, or "".
func findShellProfile(home string) string {
	for _, name := range shellProfiles {
		p := filepath.Join(home, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// appendShellExport adds an export line unless the profile already
// mentions the variable. It reports whether the file changed.
func appendShellExport(profile, key string) (bool, error) {
	content, err := os.ReadFile(profile)
	if err != nil {
		return false, err
	}
	if strings.Contains(string(content), config.APIKeyEnv) {
		return false, nil
	}

	f, err := os.OpenFile(profile, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return false, err
	}
	defer f.Close()
	line := fmt.Sprintf("\n# Perplexity API Key\nexport %s=%q\n", config.APIKeyEnv, key)
	if _, err := f.WriteString(line); err != nil {
		return false, err
	}
	return true, nil
}

// testKey sends the smallest useful request with key.
func testKey(env *Env, cfg *config.Config, key string) error {
	test := cfg.Clone()
	test.API.Key = key
	client, err := env.client(test)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), setupTestTimeout)
	defer cancel()
	_, err = client.ChatCompletion(ctx, &perplexity.ChatRequest{
		Model:     perplexity.DefaultModel,
		Messages:  []perplexity.Message{perplexity.NewUserMessage("Hello")},
		MaxTokens: 10,
	})
	if err != nil {
		fmt.Fprintf(env.Stdout, "%s API test failed: %v\n", RenderStatus("fail"), err)
		return err
	}
	fmt.Fprintf(env.Stdout, "%s API key is working!\n", RenderStatus("ok"))
	return nil
}
