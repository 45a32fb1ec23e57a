package judge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaiopt "github.com/openai/openai-go/option"

	"github.com/pdiddy/paper-loupe/internal/httputil"
	"github.com/pdiddy/paper-loupe/pkg/types"
)

// --- anthropic backend ---

func TestAnthropicBackendJudge(t *testing.T) {
	var gotPath, gotKey, gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-20241022",
			"content": [{"type": "text", "text": "{\"score\": 8, \"reason\": \"on point\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 120, "output_tokens": 18}
		}`))
	}))
	defer ts.Close()

	model, err := Lookup("claude-3-5-haiku")
	if err != nil {
		t.Fatal(err)
	}
	backend := NewAnthropicBackend("test-key", model, types.JudgeConfig{MaxTokens: 128},
		anthropicopt.WithBaseURL(ts.URL))

	raw, usage, err := backend.Judge(context.Background(), "judge this paper")
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}

	if !strings.Contains(raw, `"score": 8`) {
		t.Errorf("raw = %q", raw)
	}
	if usage.InputTokens != 120 || usage.OutputTokens != 18 {
		t.Errorf("usage = %+v, want 120 in / 18 out", usage)
	}
	if !strings.HasSuffix(gotPath, "/messages") {
		t.Errorf("path = %q, want .../messages", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("x-api-key = %q", gotKey)
	}

	var req struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
	}
	if err := json.Unmarshal([]byte(gotBody), &req); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if req.Model != "claude-3-5-haiku-20241022" {
		t.Errorf("request model = %q", req.Model)
	}
	if req.MaxTokens != 128 {
		t.Errorf("request max_tokens = %d, want 128", req.MaxTokens)
	}
	if !strings.Contains(gotBody, "judge this paper") {
		t.Error("request body should carry the prompt")
	}
}

func TestAnthropicBackendAuthError(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer ts.Close()

	model, _ := Lookup("claude-3-5-haiku")
	backend := NewAnthropicBackend("bad-key", model, types.JudgeConfig{},
		anthropicopt.WithBaseURL(ts.URL))

	_, _, err := backend.Judge(context.Background(), "prompt")
	if !errors.Is(err, httputil.ErrAuth) {
		t.Errorf("err = %v, want ErrAuth", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (SDK retries are disabled)", calls)
	}
}

func TestAnthropicBackendServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"overloaded"}}`))
	}))
	defer ts.Close()

	model, _ := Lookup("claude-3-5-haiku")
	backend := NewAnthropicBackend("key", model, types.JudgeConfig{},
		anthropicopt.WithBaseURL(ts.URL))

	_, _, err := backend.Judge(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}
	if errors.Is(err, httputil.ErrAuth) {
		t.Errorf("server fault must not map to ErrAuth: %v", err)
	}
}

// --- openai backend ---

func TestOpenAIBackendJudge(t *testing.T) {
	var gotPath, gotAuth, gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "{\"score\": 3, \"reason\": \"tangential\"}"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 95, "completion_tokens": 14, "total_tokens": 109}
		}`))
	}))
	defer ts.Close()

	model, err := Lookup("gpt-4o-mini")
	if err != nil {
		t.Fatal(err)
	}
	backend := NewOpenAIBackend("test-key", model, types.JudgeConfig{MaxTokens: 128},
		openaiopt.WithBaseURL(ts.URL))

	raw, usage, err := backend.Judge(context.Background(), "judge this paper")
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}

	if !strings.Contains(raw, `"score": 3`) {
		t.Errorf("raw = %q", raw)
	}
	if usage.InputTokens != 95 || usage.OutputTokens != 14 {
		t.Errorf("usage = %+v, want 95 in / 14 out", usage)
	}
	if !strings.HasSuffix(gotPath, "/chat/completions") {
		t.Errorf("path = %q, want .../chat/completions", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	var req struct {
		Model               string `json:"model"`
		MaxCompletionTokens int    `json:"max_completion_tokens"`
	}
	if err := json.Unmarshal([]byte(gotBody), &req); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if req.Model != "gpt-4o-mini" {
		t.Errorf("request model = %q", req.Model)
	}
	if req.MaxCompletionTokens != 128 {
		t.Errorf("request max_completion_tokens = %d, want 128", req.MaxCompletionTokens)
	}
	if !strings.Contains(gotBody, "judge this paper") {
		t.Error("request body should carry the prompt")
	}
}

func TestOpenAIBackendAuthError(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer ts.Close()

	model, _ := Lookup("gpt-4o-mini")
	backend := NewOpenAIBackend("bad-key", model, types.JudgeConfig{},
		openaiopt.WithBaseURL(ts.URL))

	_, _, err := backend.Judge(context.Background(), "prompt")
	if !errors.Is(err, httputil.ErrAuth) {
		t.Errorf("err = %v, want ErrAuth", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (SDK retries are disabled)", calls)
	}
}

func TestOpenAIBackendEmptyChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-2",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [],
			"usage": {"prompt_tokens": 50, "completion_tokens": 0, "total_tokens": 50}
		}`))
	}))
	defer ts.Close()

	model, _ := Lookup("gpt-4o-mini")
	backend := NewOpenAIBackend("key", model, types.JudgeConfig{},
		openaiopt.WithBaseURL(ts.URL))

	_, usage, err := backend.Judge(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
	if usage.InputTokens != 50 {
		t.Errorf("usage.InputTokens = %d, want 50 (usage survives the error)", usage.InputTokens)
	}
}
