// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pdiddy/paper-loupe/internal/httputil"
	"github.com/pdiddy/paper-loupe/pkg/types"
)

// OpenAIBackend drives GPT models through the official SDK.
type OpenAIBackend struct {
	client    *openai.Client
	model     ModelInfo
	maxTokens int64
}

// NewOpenAIBackend builds a backend for the given GPT model. The SDK's
// own retries are disabled; callWithRetry owns the retry policy. Extra
// options are for tests, which point the client at a local server.
func NewOpenAIBackend(apiKey string, model ModelInfo, cfg types.JudgeConfig, opts ...option.RequestOption) *OpenAIBackend {
	all := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	client := openai.NewClient(all...)

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 256
	}
	return &OpenAIBackend{client: &client, model: model, maxTokens: maxTokens}
}

// Name identifies the model in logs and summaries.
func (b *OpenAIBackend) Name() string {
	return b.model.Key
}

// Judge sends one scoring prompt and returns the model's text reply.
func (b *OpenAIBackend) Judge(ctx context.Context, prompt string) (string, types.Usage, error) {
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(b.model.ID),
		MaxCompletionTokens: openai.Int(b.maxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", types.Usage{}, openaiErr(err)
	}

	usage := types.Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 {
		return "", usage, errors.New("empty response from openai")
	}
	return resp.Choices[0].Message.Content, usage, nil
}

// openaiErr folds key rejections onto httputil.ErrAuth so callers can
// tell a dead key from a transient fault.
func openaiErr(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %v", httputil.ErrAuth, err)
		}
	}
	return err
}
