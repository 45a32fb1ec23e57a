// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-loupe/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// LookupConfig holds settings for the identity-resolution lookups.
type LookupConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseInterval is the minimum spacing between lookup calls (default 1s).
	BaseInterval time.Duration `json:"base_interval" yaml:"base_interval"`

	// Jitter is the magnitude of the random spacing offset (default 200ms).
	// Two calls are never issued closer together than BaseInterval - Jitter.
	Jitter time.Duration `json:"jitter" yaml:"jitter"`

	// MaxResults is the number of hits requested per query (default 5).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// MaxRetries is the number of retry attempts after a failed call
	// (default 4, i.e. five attempts total).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// JudgeConfig holds settings for the relevance judge.
type JudgeConfig struct {
	// RequestsPerSecond caps the client-side judge call rate (default 2).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// MaxTokens bounds the judge's response length (default 256).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// MaxRetries is the number of retry attempts after a failed call
	// (default 4, i.e. five attempts total).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// MailboxConfig holds the Gmail OAuth file locations.
type MailboxConfig struct {
	// Credentials is the path to the OAuth client credentials JSON.
	Credentials string `json:"credentials" yaml:"credentials"`

	// Token is the path where the exchanged OAuth token is cached.
	Token string `json:"token" yaml:"token"`
}

// Aggregation selects how per-question scores collapse into one
// paper-level score.
type Aggregation string

const (
	// AggregateMax ranks a paper by its strongest single-question score.
	// The default: triage favors a strong match on any one interest.
	AggregateMax Aggregation = "max"

	// AggregateMean ranks a paper by its average score across questions.
	AggregateMean Aggregation = "mean"
)

// Config groups all settings for a triage run.
type Config struct {
	// Questions are the user's research questions. Required, non-empty.
	Questions []string `json:"questions" yaml:"questions"`

	// Aggregation selects max or mean score aggregation (default max).
	Aggregation Aggregation `json:"aggregation" yaml:"aggregation"`

	// Model is the judge model key (see the model registry).
	Model string `json:"model" yaml:"model"`

	// Store is the path to the record-store database file.
	Store string `json:"store" yaml:"store"`

	// Secrets is the directory of plain-text API key files.
	Secrets string `json:"secrets" yaml:"secrets"`

	Mailbox MailboxConfig `json:"mailbox" yaml:"mailbox"`
	Lookup  LookupConfig  `json:"lookup" yaml:"lookup"`
	Judge   JudgeConfig   `json:"judge" yaml:"judge"`
}

// DefaultConfig returns a Config with every tunable at its default.
// Questions stays empty; a run cannot start without them.
func DefaultConfig() Config {
	return Config{
		Aggregation: AggregateMax,
		Model:       "claude-3-5-haiku",
		Store:       "paper-loupe.db",
		Secrets:     ".secrets",
		Mailbox: MailboxConfig{
			Credentials: "credentials.json",
			Token:       "token.json",
		},
		Lookup: LookupConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "paper-loupe/0.1",
			},
			BaseInterval: time.Second,
			Jitter:       200 * time.Millisecond,
			MaxResults:   5,
			MaxRetries:   4,
		},
		Judge: JudgeConfig{
			RequestsPerSecond: 2,
			MaxTokens:         256,
			MaxRetries:        4,
		},
	}
}

// Validate checks the structural constraints a run depends on.
func (c Config) Validate() error {
	if len(c.Questions) == 0 {
		return fmt.Errorf("config: at least one question is required")
	}
	for i, q := range c.Questions {
		if q == "" {
			return fmt.Errorf("config: question %d is empty", i+1)
		}
	}
	switch c.Aggregation {
	case AggregateMax, AggregateMean:
	default:
		return fmt.Errorf("config: unknown aggregation %q: use max or mean", c.Aggregation)
	}
	if c.Lookup.BaseInterval < 0 || c.Lookup.Jitter < 0 {
		return fmt.Errorf("config: lookup intervals must not be negative")
	}
	return nil
}
