// Package judge scores papers against the user's research questions
// with an LLM acting as relevance judge.
//
// Each (paper, question) pair is one model call, rate limited client
// side. A pair whose call keeps failing is recorded as absent, never
// as zero: a missing score and a low score mean different things to
// the ranking. Unresolved papers are not judged at all.
package judge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-loupe/internal/httputil"
	"github.com/pdiddy/paper-loupe/pkg/types"
)

// Backend abstracts the model API so tests can supply a mock.
type Backend interface {
	// Name identifies the provider in logs and summaries.
	Name() string

	// Judge sends one scoring prompt and returns the raw model text.
	Judge(ctx context.Context, prompt string) (string, types.Usage, error)
}

// Summary holds counts from one judging pass.
type Summary struct {
	Papers int // resolved papers judged
	Scored int // (paper, question) pairs with a score
	Missed int // pairs recorded as absent after retries
	Usage  types.Usage
}

// Total returns the number of pairs attempted.
func (s Summary) Total() int {
	return s.Scored + s.Missed
}

// HasFailures reports whether any pair came back without a score.
func (s Summary) HasFailures() bool {
	return s.Missed > 0
}

// Judge runs the scoring pass.
type Judge struct {
	Backend    Backend
	Questions  []string
	Limiter    *rate.Limiter
	MaxRetries int
}

// New builds a Judge from config. The limiter spaces calls at the
// configured requests per second with no burst headroom.
func New(backend Backend, questions []string, cfg types.JudgeConfig) *Judge {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 4
	}
	return &Judge{
		Backend:    backend,
		Questions:  questions,
		Limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		MaxRetries: maxRetries,
	}
}

// ScoreAll judges every resolved paper against every question and
// returns one RankedPaper per resolved input, scores keyed by
// question. Unresolved papers are skipped. The returned error is
// fatal: an auth rejection or a cancelled context. Anything less
// leaves the pair absent and moves on.
func (j *Judge) ScoreAll(ctx context.Context, papers []types.ResolvedPaper, w io.Writer) ([]types.RankedPaper, Summary, error) {
	var summary Summary
	var ranked []types.RankedPaper

	for _, paper := range papers {
		if !paper.Resolved() {
			continue
		}

		rp := types.RankedPaper{
			Paper:   paper,
			Scores:  make(map[string]float64, len(j.Questions)),
			Reasons: make(map[string]string, len(j.Questions)),
		}

		for _, question := range j.Questions {
			if err := j.Limiter.Wait(ctx); err != nil {
				return nil, summary, fmt.Errorf("judging %q: %w", paper.Title, err)
			}

			prompt, err := renderPrompt(paper, question)
			if err != nil {
				return nil, summary, fmt.Errorf("judging %q: %w", paper.Title, err)
			}

			js, usage, err := j.callWithRetry(ctx, prompt)
			summary.Usage.Add(usage)
			if err != nil {
				if errors.Is(err, httputil.ErrAuth) || ctx.Err() != nil {
					return nil, summary, fmt.Errorf("judging %q: %w", paper.Title, err)
				}
				fmt.Fprintf(w, "failed  %s (%.40q): %v\n", paper.ExternalID, question, err)
				summary.Missed++
				continue
			}

			rp.Scores[question] = js.Score
			rp.Reasons[question] = js.Reason
			summary.Scored++
		}

		fmt.Fprintf(w, "scored  %s (%d/%d questions)\n", paper.Title, len(rp.Scores), len(j.Questions))
		summary.Papers++
		ranked = append(ranked, rp)
	}

	return ranked, summary, nil
}

// backoffBase controls the base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var backoffBase = time.Second

// backoffCap bounds a single wait between attempts.
var backoffCap = 32 * time.Second

// callWithRetry scores one pair with exponential backoff. A call that
// returns unparseable output counts as a failure and is retried like a
// transport fault. Auth rejections are returned immediately: a bad key
// does not heal.
func (j *Judge) callWithRetry(ctx context.Context, prompt string) (types.JudgeScore, types.Usage, error) {
	var total types.Usage
	var lastErr error
	for attempt := 0; attempt <= j.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			if backoff > backoffCap {
				backoff = backoffCap
			}
			select {
			case <-ctx.Done():
				return types.JudgeScore{}, total, ctx.Err()
			case <-time.After(backoff):
			}
		}

		raw, usage, err := j.Backend.Judge(ctx, prompt)
		total.Add(usage)
		if err == nil {
			js, perr := parseScore(raw)
			if perr == nil {
				return js, total, nil
			}
			lastErr = perr
			continue
		}
		if errors.Is(err, httputil.ErrAuth) {
			return types.JudgeScore{}, total, err
		}
		lastErr = err
	}
	return types.JudgeScore{}, total, fmt.Errorf("after %d retries: %w", j.MaxRetries, lastErr)
}
