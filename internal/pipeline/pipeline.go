// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one triage pass end to end: fetch digest
// emails, parse paper stubs, dedupe, resolve identities against arXiv,
// persist, judge relevance, and rank.
//
// Stages run strictly in sequence. The persisted store is the
// checkpoint: a run that dies after persisting loses no work, because
// the next run skips known titles at dedupe time and sweeps unscored
// rows back up at judging time.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-loupe/internal/dedupe"
	"github.com/pdiddy/paper-loupe/internal/digest"
	"github.com/pdiddy/paper-loupe/internal/judge"
	"github.com/pdiddy/paper-loupe/internal/mailbox"
	"github.com/pdiddy/paper-loupe/internal/rank"
	"github.com/pdiddy/paper-loupe/internal/store"
	"github.com/pdiddy/paper-loupe/pkg/types"
)

// Resolver turns a digest stub into a canonical paper identity.
type Resolver interface {
	Resolve(ctx context.Context, stub types.PaperStub) (types.ResolvedPaper, error)
}

// Judger scores resolved papers against the research questions.
type Judger interface {
	ScoreAll(ctx context.Context, papers []types.ResolvedPaper, w io.Writer) ([]types.RankedPaper, judge.Summary, error)
}

// Pipeline wires one run's stages together. A nil Judge skips the
// judging and ranking stages; the persisted papers wait in the
// unscored backlog for a later run.
type Pipeline struct {
	Source      mailbox.Source
	Resolver    Resolver
	Store       *store.Store
	Judge       Judger
	Aggregation types.Aggregation
	Log         zerolog.Logger
	Progress    io.Writer
}

// New assembles a pipeline with a nop logger and discarded progress
// output. Callers that want either set the fields directly.
func New(source mailbox.Source, resolver Resolver, st *store.Store, judger Judger, agg types.Aggregation) *Pipeline {
	return &Pipeline{
		Source:      source,
		Resolver:    resolver,
		Store:       st,
		Judge:       judger,
		Aggregation: agg,
		Log:         zerolog.Nop(),
		Progress:    io.Discard,
	}
}

// Result is what one run produced.
type Result struct {
	RunID      string
	Counts     store.RunCounts
	Merge      store.MergeSummary
	Judge      judge.Summary
	Ranked     []types.RankedPaper   // papers judged this run, presentation order
	Unresolved []types.ResolvedPaper // papers that defeated every search tier
}

// Run executes one triage pass over digests received after since.
func (p *Pipeline) Run(ctx context.Context, since time.Time) (*Result, error) {
	runID := uuid.NewString()
	startedAt := time.Now().UTC()
	if err := p.Store.BeginRun(ctx, runID, startedAt); err != nil {
		return nil, fmt.Errorf("starting run: %w", err)
	}

	res := &Result{RunID: runID}
	log := p.Log.With().Str("run", runID).Logger()

	fail := func(stage string, err error) (*Result, error) {
		log.Error().Str("stage", stage).Err(err).Msg("run failed")
		detail := fmt.Sprintf("%s: %v", stage, err)
		if ferr := p.Store.FinishRun(context.WithoutCancel(ctx), runID, store.RunFailed, res.Counts, detail); ferr != nil {
			log.Warn().Err(ferr).Msg("recording failed run")
		}
		return nil, fmt.Errorf("%s: %w", stage, err)
	}

	log.Info().Time("since", since).Msg("fetching digests")
	emails, err := p.Source.Fetch(ctx, since)
	if err != nil {
		return fail("fetch", err)
	}

	var stubs []types.PaperStub
	for _, email := range emails {
		if !digest.IsDigest(email.Subject) {
			continue
		}
		parsed, sum, err := digest.Parse(email)
		if err != nil {
			fmt.Fprintf(p.Progress, "failed:  %s (%v)\n", email.Subject, err)
			continue
		}
		log.Debug().Str("email", email.ID).Int("found", sum.Found).Int("dropped", sum.Dropped).
			Msg("parsed digest")
		res.Counts.Emails++
		res.Counts.Stubs += len(parsed)
		stubs = append(stubs, parsed...)
	}

	known, err := p.Store.KnownTitles(ctx)
	if err != nil {
		return fail("dedupe", err)
	}
	kept, surface := dedupe.Surface(stubs, known)
	log.Info().Int("emails", res.Counts.Emails).Int("stubs", len(stubs)).
		Int("kept", len(kept)).Int("repeats", surface.Dropped).Int("known", surface.Known).
		Msg("deduplicated")

	// A dead lookup service fails the run, but whatever resolved
	// before the fault is persisted first so the next run starts from
	// there.
	resolved := make([]types.ResolvedPaper, 0, len(kept))
	for _, stub := range kept {
		paper, rerr := p.Resolver.Resolve(ctx, stub)
		if rerr != nil {
			if perr := p.persist(context.WithoutCancel(ctx), res, resolved, runID, startedAt); perr != nil {
				log.Warn().Err(perr).Msg("persisting partial results")
			}
			return fail("resolve", rerr)
		}
		if paper.Resolved() {
			fmt.Fprintf(p.Progress, "resolved: %s (%s)\n", paper.Title, paper.ExternalID)
		} else {
			fmt.Fprintf(p.Progress, "unresolved: %s\n", paper.Title)
		}
		resolved = append(resolved, paper)
	}

	if err := p.persist(ctx, res, resolved, runID, startedAt); err != nil {
		return fail("persist", err)
	}

	if p.Judge == nil {
		log.Info().Msg("judging skipped")
		fmt.Fprint(p.Progress, runSummary(res))
		if err := p.Store.FinishRun(ctx, runID, store.RunCompleted, res.Counts, "judging skipped"); err != nil {
			return nil, fmt.Errorf("recording run: %w", err)
		}
		return res, nil
	}

	// Judge whatever the store has not scored yet. This run's papers
	// land there through the merge; rows from an interrupted earlier
	// run are swept up with them.
	pending, err := p.Store.Unscored(ctx)
	if err != nil {
		return fail("judge", err)
	}
	toJudge := make([]types.ResolvedPaper, 0, len(pending))
	for _, rec := range pending {
		toJudge = append(toJudge, rec.ResolvedPaper())
	}
	log.Info().Int("pending", len(toJudge)).Msg("judging")

	ranked, judgeSum, err := p.Judge.ScoreAll(ctx, toJudge, p.Progress)
	res.Judge = judgeSum
	res.Counts.Judged = judgeSum.Papers
	if err != nil {
		return fail("judge", err)
	}

	res.Ranked = rank.Finalize(ranked, p.Aggregation)
	if err := p.Store.SaveScores(ctx, res.Ranked); err != nil {
		return fail("rank", err)
	}

	fmt.Fprint(p.Progress, runSummary(res))
	if err := p.Store.FinishRun(ctx, runID, store.RunCompleted, res.Counts, ""); err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	log.Info().Int("resolved", res.Counts.Resolved).Int("unresolved", res.Counts.Unresolved).
		Int("judged", res.Counts.Judged).Msg("run completed")
	return res, nil
}

// persist collapses duplicate identities and merges the batch into
// the store, tallying counts and collecting unresolved papers for the
// report.
func (p *Pipeline) persist(ctx context.Context, res *Result, papers []types.ResolvedPaper, runID string, seenAt time.Time) error {
	unique, identity := dedupe.Identity(papers)
	p.Log.Debug().Int("papers", len(papers)).Int("merged", identity.Merged).Msg("identity dedupe")

	records := make([]store.Record, 0, len(unique))
	for _, paper := range unique {
		if paper.Resolved() {
			res.Counts.Resolved++
		} else {
			res.Counts.Unresolved++
			res.Unresolved = append(res.Unresolved, paper)
		}
		records = append(records, store.FromResolved(paper, runID, seenAt))
	}

	merge, err := p.Store.Merge(ctx, records)
	if err != nil {
		return err
	}
	res.Merge = merge
	return nil
}

func runSummary(res *Result) string {
	return fmt.Sprintf("\nRun summary: %d emails, %d stubs, %d resolved, %d unresolved, %d judged\n",
		res.Counts.Emails, res.Counts.Stubs, res.Counts.Resolved, res.Counts.Unresolved, res.Counts.Judged)
}
