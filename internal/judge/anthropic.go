// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pdiddy/paper-loupe/internal/httputil"
	"github.com/pdiddy/paper-loupe/pkg/types"
)

// AnthropicBackend drives Claude models through the official SDK.
type AnthropicBackend struct {
	client    *anthropic.Client
	model     ModelInfo
	maxTokens int64
}

// NewAnthropicBackend builds a backend for the given Claude model. The
// SDK's own retries are disabled; callWithRetry owns the retry policy.
// Extra options are for tests, which point the client at a local server.
func NewAnthropicBackend(apiKey string, model ModelInfo, cfg types.JudgeConfig, opts ...option.RequestOption) *AnthropicBackend {
	all := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	client := anthropic.NewClient(all...)

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 256
	}
	return &AnthropicBackend{client: &client, model: model, maxTokens: maxTokens}
}

// Name identifies the model in logs and summaries.
func (b *AnthropicBackend) Name() string {
	return b.model.Key
}

// Judge sends one scoring prompt and returns the model's text reply.
func (b *AnthropicBackend) Judge(ctx context.Context, prompt string) (string, types.Usage, error) {
	resp, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model.ID),
		MaxTokens: b.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", types.Usage{}, anthropicErr(err)
	}

	usage := types.Usage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	if len(resp.Content) == 0 {
		return "", usage, errors.New("empty response from anthropic")
	}
	return resp.Content[0].Text, usage, nil
}

// anthropicErr folds key rejections onto httputil.ErrAuth so callers
// can tell a dead key from a transient fault.
func anthropicErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %v", httputil.ErrAuth, err)
		}
	}
	return err
}
