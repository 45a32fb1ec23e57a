// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"fmt"
	"sort"

	"github.com/pdiddy/paper-loupe/pkg/types"
)

// Provider names a model API vendor.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// ModelInfo describes one judge model the tool knows how to drive.
type ModelInfo struct {
	// Key is the short name accepted on the command line.
	Key string

	// ID is the provider's model identifier sent on the wire.
	ID string

	// Provider selects which backend drives this model.
	Provider Provider

	// InputPer1M and OutputPer1M are USD prices per million tokens.
	InputPer1M  float64
	OutputPer1M float64

	// ContextWindow and MaxOutput are token limits.
	ContextWindow int
	MaxOutput     int
}

// Cost returns the USD cost of the given token usage at this model's
// prices.
func (m ModelInfo) Cost(u types.Usage) float64 {
	in := float64(u.InputTokens) * m.InputPer1M
	out := float64(u.OutputTokens) * m.OutputPer1M
	return (in + out) / 1_000_000
}

var modelRegistry = map[string]ModelInfo{
	"claude-3-5-haiku": {
		Key:           "claude-3-5-haiku",
		ID:            "claude-3-5-haiku-20241022",
		Provider:      ProviderAnthropic,
		InputPer1M:    0.80,
		OutputPer1M:   4.00,
		ContextWindow: 200000,
		MaxOutput:     8192,
	},
	"claude-3-7-sonnet": {
		Key:           "claude-3-7-sonnet",
		ID:            "claude-3-7-sonnet-20250219",
		Provider:      ProviderAnthropic,
		InputPer1M:    3.00,
		OutputPer1M:   15.00,
		ContextWindow: 200000,
		MaxOutput:     8192,
	},
	"gpt-4o": {
		Key:           "gpt-4o",
		ID:            "gpt-4o",
		Provider:      ProviderOpenAI,
		InputPer1M:    2.50,
		OutputPer1M:   10.00,
		ContextWindow: 128000,
		MaxOutput:     16384,
	},
	"gpt-4o-mini": {
		Key:           "gpt-4o-mini",
		ID:            "gpt-4o-mini",
		Provider:      ProviderOpenAI,
		InputPer1M:    0.15,
		OutputPer1M:   0.60,
		ContextWindow: 128000,
		MaxOutput:     16384,
	},
}

// Lookup resolves a model key to its registry entry.
func Lookup(key string) (ModelInfo, error) {
	info, ok := modelRegistry[key]
	if !ok {
		return ModelInfo{}, fmt.Errorf("unknown model %q (run 'paper-loupe models' for the list)", key)
	}
	return info, nil
}

// Models returns every registered model sorted by key.
func Models() []ModelInfo {
	out := make([]ModelInfo, 0, len(modelRegistry))
	for _, info := range modelRegistry {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Keys holds the API keys the backends may need. Only the key for the
// chosen model's provider has to be set.
type Keys struct {
	Anthropic string
	OpenAI    string
}

// NewBackend builds the backend that drives the given model.
func NewBackend(model ModelInfo, keys Keys, cfg types.JudgeConfig) (Backend, error) {
	switch model.Provider {
	case ProviderAnthropic:
		if keys.Anthropic == "" {
			return nil, fmt.Errorf("model %s requires an anthropic API key", model.Key)
		}
		return NewAnthropicBackend(keys.Anthropic, model, cfg), nil
	case ProviderOpenAI:
		if keys.OpenAI == "" {
			return nil, fmt.Errorf("model %s requires an openai API key", model.Key)
		}
		return NewOpenAIBackend(keys.OpenAI, model, cfg), nil
	default:
		return nil, fmt.Errorf("model %s has unknown provider %q", model.Key, model.Provider)
	}
}
