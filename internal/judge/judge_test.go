package judge

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/paper-loupe/internal/httputil"
	"github.com/pdiddy/paper-loupe/pkg/types"
)

// --- mock backend ---

type mockBackend struct {
	responses map[string]string // prompt fragment → raw model output
	response  string            // fallback when responses has no match
	err       error             // forced error for retry testing
	usage     types.Usage       // usage reported per call
	calls     int
}

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) Judge(_ context.Context, prompt string) (string, types.Usage, error) {
	m.calls++
	if m.err != nil {
		return "", m.usage, m.err
	}
	for fragment, resp := range m.responses {
		if strings.Contains(prompt, fragment) {
			return resp, m.usage, nil
		}
	}
	return m.response, m.usage, nil
}

// failNTimesBackend fails the first N calls, then succeeds.
type failNTimesBackend struct {
	failures  int
	callCount int
	response  string
}

func (f *failNTimesBackend) Name() string { return "flaky" }

func (f *failNTimesBackend) Judge(_ context.Context, _ string) (string, types.Usage, error) {
	f.callCount++
	if f.callCount <= f.failures {
		return "", types.Usage{}, fmt.Errorf("transient error (call %d)", f.callCount)
	}
	return f.response, types.Usage{}, nil
}

func TestMain(m *testing.M) {
	// Override backoff to avoid real sleeps in retry tests.
	backoffBase = time.Millisecond
	os.Exit(m.Run())
}

func testJudge(backend Backend, questions ...string) *Judge {
	return New(backend, questions, types.JudgeConfig{
		RequestsPerSecond: 1000,
		MaxRetries:        2,
	})
}

func resolvedPaper(id, title string) types.ResolvedPaper {
	return types.ResolvedPaper{
		Stub:       types.PaperStub{Title: title, Venue: "NeurIPS 2025"},
		ExternalID: id,
		Confidence: types.MatchExact,
		Title:      title,
		Authors:    []string{"Ada Lovelace", "Charles Babbage"},
		Summary:    "We study " + title + " at length.",
	}
}

// --- ScoreAll ---

func TestScoreAll(t *testing.T) {
	backend := &mockBackend{
		response: `{"score": 7, "reason": "directly relevant"}`,
		usage:    types.Usage{InputTokens: 10, OutputTokens: 5},
	}
	j := testJudge(backend, "does it scale?")

	papers := []types.ResolvedPaper{
		resolvedPaper("2401.00001", "Sparse Attention at Scale"),
		resolvedPaper("2401.00002", "Mixture of Judges"),
	}

	var buf strings.Builder
	ranked, summary, err := j.ScoreAll(context.Background(), papers, &buf)
	if err != nil {
		t.Fatalf("ScoreAll: %v", err)
	}

	if len(ranked) != 2 {
		t.Fatalf("got %d ranked papers, want 2", len(ranked))
	}
	for i, rp := range ranked {
		if got := rp.Scores["does it scale?"]; got != 7 {
			t.Errorf("ranked[%d] score = %v, want 7", i, got)
		}
		if got := rp.Reasons["does it scale?"]; got != "directly relevant" {
			t.Errorf("ranked[%d] reason = %q", i, got)
		}
	}

	if summary.Papers != 2 || summary.Scored != 2 || summary.Missed != 0 {
		t.Errorf("summary = %+v, want 2 papers, 2 scored, 0 missed", summary)
	}
	if summary.Usage.InputTokens != 20 || summary.Usage.OutputTokens != 10 {
		t.Errorf("usage = %+v, want 20 in / 10 out", summary.Usage)
	}
	if !strings.Contains(buf.String(), "scored") {
		t.Errorf("output should contain 'scored': %s", buf.String())
	}
}

func TestScoreAllSkipsUnresolved(t *testing.T) {
	backend := &mockBackend{response: `{"score": 5, "reason": "maybe"}`}
	j := testJudge(backend, "q1")

	papers := []types.ResolvedPaper{
		resolvedPaper("2401.00001", "Resolved Paper"),
		{
			Stub:       types.PaperStub{Title: "Mystery Paper"},
			Confidence: types.MatchUnresolved,
			Title:      "Mystery Paper",
		},
	}

	var buf strings.Builder
	ranked, summary, err := j.ScoreAll(context.Background(), papers, &buf)
	if err != nil {
		t.Fatalf("ScoreAll: %v", err)
	}

	if len(ranked) != 1 {
		t.Fatalf("got %d ranked papers, want 1 (unresolved skipped)", len(ranked))
	}
	if ranked[0].Paper.Title != "Resolved Paper" {
		t.Errorf("ranked paper = %q", ranked[0].Paper.Title)
	}
	if backend.calls != 1 {
		t.Errorf("backend.calls = %d, want 1", backend.calls)
	}
	if summary.Papers != 1 {
		t.Errorf("summary.Papers = %d, want 1", summary.Papers)
	}
}

func TestScoreAllRecordsAbsentOnFailure(t *testing.T) {
	// First question parses, second returns garbage on every attempt.
	backend := &mockBackend{
		responses: map[string]string{
			"about compilers": `{"score": 8, "reason": "yes"}`,
			"about gardens":   "I would rather not answer in JSON.",
		},
	}
	j := testJudge(backend, "about compilers", "about gardens")

	papers := []types.ResolvedPaper{resolvedPaper("2401.00001", "A Compiler Paper")}

	var buf strings.Builder
	ranked, summary, err := j.ScoreAll(context.Background(), papers, &buf)
	if err != nil {
		t.Fatalf("ScoreAll should not fail for one missing pair: %v", err)
	}

	if len(ranked) != 1 {
		t.Fatalf("got %d ranked papers, want 1", len(ranked))
	}
	if _, ok := ranked[0].Scores["about compilers"]; !ok {
		t.Error("expected a score for 'about compilers'")
	}
	if _, ok := ranked[0].Scores["about gardens"]; ok {
		t.Error("'about gardens' should be absent, not present")
	}
	if summary.Scored != 1 || summary.Missed != 1 {
		t.Errorf("summary = %+v, want 1 scored / 1 missed", summary)
	}
	if !strings.Contains(buf.String(), "failed") {
		t.Errorf("output should contain 'failed': %s", buf.String())
	}
}

func TestScoreAllAuthAborts(t *testing.T) {
	backend := &mockBackend{err: fmt.Errorf("%w: http 401", httputil.ErrAuth)}
	j := testJudge(backend, "q1")

	papers := []types.ResolvedPaper{resolvedPaper("2401.00001", "Any Paper")}

	var buf strings.Builder
	_, _, err := j.ScoreAll(context.Background(), papers, &buf)
	if err == nil {
		t.Fatal("expected error for auth rejection")
	}
	if !strings.Contains(err.Error(), "authentication rejected") {
		t.Errorf("error = %v, want auth rejection", err)
	}
	if backend.calls != 1 {
		t.Errorf("backend.calls = %d, want 1 (auth errors must not retry)", backend.calls)
	}
}

func TestScoreAllContextCancelled(t *testing.T) {
	backend := &mockBackend{response: `{"score": 5}`}
	j := testJudge(backend, "q1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	papers := []types.ResolvedPaper{resolvedPaper("2401.00001", "Any Paper")}
	var buf strings.Builder
	_, _, err := j.ScoreAll(ctx, papers, &buf)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestScoreAllEmpty(t *testing.T) {
	backend := &mockBackend{response: `{"score": 5}`}
	j := testJudge(backend, "q1")

	var buf strings.Builder
	ranked, summary, err := j.ScoreAll(context.Background(), nil, &buf)
	if err != nil {
		t.Fatalf("ScoreAll: %v", err)
	}
	if len(ranked) != 0 || summary.Total() != 0 {
		t.Errorf("ranked = %v, summary = %+v, want empty", ranked, summary)
	}
}

// --- callWithRetry ---

func TestCallWithRetry(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		maxRetries int
		wantErr    bool
	}{
		{"succeeds first try", 0, 3, false},
		{"succeeds after 2 failures", 2, 3, false},
		{"fails after exhausting retries", 4, 3, true},
		{"succeeds on last retry", 3, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &failNTimesBackend{
				failures: tt.failures,
				response: `{"score": 7, "reason": "fine"}`,
			}
			j := &Judge{Backend: backend, MaxRetries: tt.maxRetries}

			js, _, err := j.callWithRetry(context.Background(), "test prompt")
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.wantErr && js.Score != 7 {
				t.Errorf("score = %v, want 7", js.Score)
			}
		})
	}
}

func TestCallWithRetryUnparseableOutput(t *testing.T) {
	backend := &mockBackend{response: "definitely not JSON"}
	j := &Judge{Backend: backend, MaxRetries: 2}

	_, _, err := j.callWithRetry(context.Background(), "test prompt")
	if err == nil {
		t.Fatal("expected error for unparseable output")
	}
	if backend.calls != 3 {
		t.Errorf("backend.calls = %d, want 3 (parse failures retry)", backend.calls)
	}
}

// --- Summary ---

func TestSummary(t *testing.T) {
	s := Summary{Papers: 3, Scored: 5, Missed: 1}
	if s.Total() != 6 {
		t.Errorf("Total() = %d, want 6", s.Total())
	}
	if !s.HasFailures() {
		t.Error("HasFailures() should return true")
	}

	s2 := Summary{Papers: 2, Scored: 4}
	if s2.HasFailures() {
		t.Error("HasFailures() should return false")
	}
}

// --- parseScore ---

func TestParseScore(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantScore  float64
		wantReason string
		wantErr    bool
	}{
		{
			name:       "plain JSON",
			raw:        `{"score": 7, "reason": "spot on"}`,
			wantScore:  7,
			wantReason: "spot on",
		},
		{
			name:       "fractional score",
			raw:        `{"score": 4.5, "reason": "partial overlap"}`,
			wantScore:  4.5,
			wantReason: "partial overlap",
		},
		{
			name:       "fenced JSON",
			raw:        "```json\n{\"score\": 9, \"reason\": \"central topic\"}\n```",
			wantScore:  9,
			wantReason: "central topic",
		},
		{
			name:       "prose around JSON",
			raw:        `Here is my verdict: {"score": 6, "reason": "adjacent"} as requested.`,
			wantScore:  6,
			wantReason: "adjacent",
		},
		{
			name:       "score above range clamped",
			raw:        `{"score": 42, "reason": "enthusiastic"}`,
			wantScore:  10,
			wantReason: "enthusiastic",
		},
		{
			name:      "negative score clamped",
			raw:       `{"score": -3}`,
			wantScore: 0,
		},
		{
			name:       "reason trimmed",
			raw:        `{"score": 5, "reason": "  padded  "}`,
			wantScore:  5,
			wantReason: "padded",
		},
		{
			name:    "garbage",
			raw:     "no json here",
			wantErr: true,
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			js, err := parseScore(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseScore: %v", err)
			}
			if js.Score != tt.wantScore {
				t.Errorf("score = %v, want %v", js.Score, tt.wantScore)
			}
			if js.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", js.Reason, tt.wantReason)
			}
		})
	}
}

// --- cleanJSONResponse ---

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain JSON unchanged",
			input: `{"score": 1}`,
			want:  `{"score": 1}`,
		},
		{
			name:  "strips json fenced block",
			input: "```json\n{\"score\": 1}\n```",
			want:  `{"score": 1}`,
		},
		{
			name:  "strips plain fenced block",
			input: "```\n{\"score\": 1}\n```",
			want:  `{"score": 1}`,
		},
		{
			name:  "trims surrounding whitespace",
			input: "  {\"score\": 1}  ",
			want:  `{"score": 1}`,
		},
		{
			name:  "extracts object from prose",
			input: `Sure! {"score": 1} Let me know.`,
			want:  `{"score": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cleanJSONResponse(tt.input)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// --- renderPrompt ---

func TestRenderPrompt(t *testing.T) {
	paper := resolvedPaper("2401.00001", "Sparse Attention at Scale")
	prompt, err := renderPrompt(paper, "does attention scale?")
	if err != nil {
		t.Fatalf("renderPrompt: %v", err)
	}

	for _, want := range []string{
		"does attention scale?",
		"Sparse Attention at Scale",
		"Ada Lovelace, Charles Babbage",
		"NeurIPS 2025",
		"We study Sparse Attention at Scale at length.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestRenderPromptMissingAbstract(t *testing.T) {
	paper := resolvedPaper("2401.00001", "Terse Paper")
	paper.Summary = ""
	paper.Stub.Venue = ""

	prompt, err := renderPrompt(paper, "q1")
	if err != nil {
		t.Fatalf("renderPrompt: %v", err)
	}
	if !strings.Contains(prompt, "(not available)") {
		t.Error("prompt should flag the missing abstract")
	}
	if strings.Contains(prompt, "Venue:") {
		t.Error("prompt should omit the venue line when empty")
	}
}

// --- model registry ---

func TestLookup(t *testing.T) {
	info, err := Lookup("claude-3-5-haiku")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if info.ID != "claude-3-5-haiku-20241022" {
		t.Errorf("ID = %q", info.ID)
	}
	if info.Provider != ProviderAnthropic {
		t.Errorf("Provider = %q", info.Provider)
	}

	if _, err := Lookup("gpt-7-prophecy"); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestModelsSorted(t *testing.T) {
	models := Models()
	if len(models) < 4 {
		t.Fatalf("got %d models, want at least 4", len(models))
	}
	for i := 1; i < len(models); i++ {
		if models[i].Key < models[i-1].Key {
			t.Errorf("models not sorted: %q before %q", models[i-1].Key, models[i].Key)
		}
	}
}

func TestCost(t *testing.T) {
	m := ModelInfo{InputPer1M: 1.00, OutputPer1M: 2.00}
	got := m.Cost(types.Usage{InputTokens: 1_000_000, OutputTokens: 500_000})
	if math.Abs(got-2.00) > 1e-9 {
		t.Errorf("Cost = %v, want 2.00", got)
	}

	zero := m.Cost(types.Usage{})
	if zero != 0 {
		t.Errorf("Cost of zero usage = %v, want 0", zero)
	}
}

func TestNewBackend(t *testing.T) {
	anthro, _ := Lookup("claude-3-5-haiku")
	oa, _ := Lookup("gpt-4o-mini")
	cfg := types.JudgeConfig{MaxTokens: 256}

	b, err := NewBackend(anthro, Keys{Anthropic: "key"}, cfg)
	if err != nil {
		t.Fatalf("NewBackend(anthropic): %v", err)
	}
	if _, ok := b.(*AnthropicBackend); !ok {
		t.Errorf("backend type = %T, want *AnthropicBackend", b)
	}
	if b.Name() != "claude-3-5-haiku" {
		t.Errorf("Name() = %q", b.Name())
	}

	b, err = NewBackend(oa, Keys{OpenAI: "key"}, cfg)
	if err != nil {
		t.Fatalf("NewBackend(openai): %v", err)
	}
	if _, ok := b.(*OpenAIBackend); !ok {
		t.Errorf("backend type = %T, want *OpenAIBackend", b)
	}

	if _, err := NewBackend(anthro, Keys{}, cfg); err == nil {
		t.Error("expected error when the provider's key is missing")
	}
}
