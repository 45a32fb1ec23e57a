package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/pdiddy/paper-loupe/pkg/types"
)

// loadConfig layers the viper-managed config file and environment over
// the built-in defaults. Command flags override individual fields after
// this returns.
func loadConfig() types.Config {
	cfg := types.DefaultConfig()

	if v := viper.GetStringSlice("questions"); len(v) > 0 {
		cfg.Questions = v
	}
	if v := viper.GetString("aggregation"); v != "" {
		cfg.Aggregation = types.Aggregation(v)
	}
	if v := viper.GetString("model"); v != "" {
		cfg.Model = v
	}
	if v := viper.GetString("store"); v != "" {
		cfg.Store = v
	}
	if v := viper.GetString("secrets"); v != "" {
		cfg.Secrets = v
	}
	if v := viper.GetString("mailbox.credentials"); v != "" {
		cfg.Mailbox.Credentials = v
	}
	if v := viper.GetString("mailbox.token"); v != "" {
		cfg.Mailbox.Token = v
	}
	if v := viper.GetDuration("lookup.base_interval"); v > 0 {
		cfg.Lookup.BaseInterval = v
	}
	if viper.IsSet("lookup.jitter") {
		cfg.Lookup.Jitter = viper.GetDuration("lookup.jitter")
	}
	if v := viper.GetInt("lookup.max_results"); v > 0 {
		cfg.Lookup.MaxResults = v
	}
	if v := viper.GetDuration("lookup.timeout"); v > 0 {
		cfg.Lookup.Timeout = v
	}
	if viper.IsSet("judge.requests_per_second") {
		cfg.Judge.RequestsPerSecond = viper.GetFloat64("judge.requests_per_second")
	}
	if v := viper.GetInt("judge.max_tokens"); v > 0 {
		cfg.Judge.MaxTokens = v
	}
	if v := viper.GetInt("judge.max_retries"); v > 0 {
		cfg.Judge.MaxRetries = v
	}

	cfg.Store = expandHome(cfg.Store)
	cfg.Secrets = expandHome(cfg.Secrets)
	cfg.Mailbox.Credentials = expandHome(cfg.Mailbox.Credentials)
	cfg.Mailbox.Token = expandHome(cfg.Mailbox.Token)
	return cfg
}

// expandHome resolves a leading ~/ against the user's home directory,
// so config files can use the conventional spelling.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
	}
	return path
}
