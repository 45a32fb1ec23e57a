// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve matches paper stubs from alert digests to records in
// the external bibliographic source.
//
// Resolution escalates through search tiers in strict order, stopping
// at the first tier whose query returns a hit: exact-phrase title,
// loose title, then first-author surname plus a distinctive title
// phrase. A stub no tier can match comes back UNRESOLVED rather than
// as an error. Every query passes through the request gate first.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/pdiddy/paper-loupe/internal/httputil"
	"github.com/pdiddy/paper-loupe/pkg/types"
)

// ErrLookupBroken reports that every executed tier faulted. Zero hits
// is a normal outcome; zero answers means the service itself is down,
// and the run must checkpoint and stop instead of marking papers
// unresolved.
var ErrLookupBroken = errors.New("lookup service unavailable")

// Searcher issues one bibliographic query.
type Searcher interface {
	Search(ctx context.Context, query types.SearchQuery) ([]types.SearchHit, error)
}

// Waiter blocks until the next outbound call may go out.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Resolver escalates stubs through the search tiers.
type Resolver struct {
	Backend Searcher
	Gate    Waiter
}

// tier is one strategy in the escalating sequence. build returns false
// when the stub lacks the fields the tier needs, and the tier is
// skipped without a query.
type tier struct {
	confidence types.MatchConfidence
	build      func(stub types.PaperStub) (types.SearchQuery, bool)
}

func tiers() []tier {
	return []tier{
		{types.MatchExact, buildExact},
		{types.MatchPartial, buildLoose},
		{types.MatchAuthorPhrase, buildAuthorPhrase},
	}
}

// Resolve runs the tier ladder for one stub. A stub whose digest link
// already carried an external ID short-circuits with no queries. The
// returned error is fatal for the run: an auth rejection, a cancelled
// context, or ErrLookupBroken when every executed tier faulted.
func (r *Resolver) Resolve(ctx context.Context, stub types.PaperStub) (types.ResolvedPaper, error) {
	if stub.KnownID != "" {
		return types.ResolvedPaper{
			Stub:       stub,
			ExternalID: stub.KnownID,
			Confidence: types.MatchExact,
			Title:      stub.Title,
			Authors:    stub.Authors,
			Date:       stub.Date,
			Link:       stub.Link,
		}, nil
	}

	executed, faulted := 0, 0
	var lastErr error
	for _, t := range tiers() {
		query, ok := t.build(stub)
		if !ok {
			continue
		}
		executed++

		if err := r.Gate.Wait(ctx); err != nil {
			return types.ResolvedPaper{}, fmt.Errorf("resolving %q: %w", stub.Title, err)
		}
		hits, err := r.Backend.Search(ctx, query)
		if err != nil {
			if errors.Is(err, httputil.ErrAuth) || ctx.Err() != nil {
				return types.ResolvedPaper{}, fmt.Errorf("resolving %q: %w", stub.Title, err)
			}
			// Exhausted retries count as zero hits; escalate.
			faulted++
			lastErr = err
			continue
		}
		if len(hits) > 0 {
			return fromHit(stub, hits[0], t.confidence), nil
		}
	}

	if executed > 0 && faulted == executed {
		return types.ResolvedPaper{}, fmt.Errorf("resolving %q: %w: %v", stub.Title, ErrLookupBroken, lastErr)
	}

	return types.ResolvedPaper{
		Stub:       stub,
		Confidence: types.MatchUnresolved,
		Title:      stub.Title,
		Authors:    stub.Authors,
		Date:       stub.Date,
		Link:       stub.Link,
	}, nil
}

// fromHit builds the resolved record, falling back to stub fields the
// hit does not carry.
func fromHit(stub types.PaperStub, hit types.SearchHit, conf types.MatchConfidence) types.ResolvedPaper {
	p := types.ResolvedPaper{
		Stub:       stub,
		ExternalID: hit.ExternalID,
		Confidence: conf,
		Title:      hit.Title,
		Authors:    hit.Authors,
		Date:       hit.Date,
		Summary:    hit.Summary,
		Link:       hit.Link,
	}
	if p.Title == "" {
		p.Title = stub.Title
	}
	if len(p.Authors) == 0 {
		p.Authors = stub.Authors
	}
	if p.Date.IsZero() {
		p.Date = stub.Date
	}
	if p.Link == "" {
		p.Link = stub.Link
	}
	return p
}

// --- tier builders ---

func buildExact(stub types.PaperStub) (types.SearchQuery, bool) {
	title := strings.TrimSpace(stub.Title)
	if title == "" {
		return types.SearchQuery{}, false
	}
	return types.SearchQuery{Mode: types.ModeExactPhrase, Title: title}, true
}

func buildLoose(stub types.PaperStub) (types.SearchQuery, bool) {
	title := strings.TrimSpace(stub.Title)
	if title == "" {
		return types.SearchQuery{}, false
	}
	return types.SearchQuery{Mode: types.ModeLoose, Title: title}, true
}

func buildAuthorPhrase(stub types.PaperStub) (types.SearchQuery, bool) {
	surname := firstAuthorSurname(stub.Authors)
	phrase := distinctivePhrase(stub.Title)
	if surname == "" || phrase == "" {
		return types.SearchQuery{}, false
	}
	return types.SearchQuery{Mode: types.ModeAuthorPhrase, Author: surname, Phrase: phrase}, true
}

// stopwords excluded from the distinctive phrase.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "on": true, "of": true,
	"for": true, "and": true, "in": true, "to": true, "with": true,
}

// distinctivePhrase returns the first two non-stopword title words,
// trimmed of surrounding punctuation.
func distinctivePhrase(title string) string {
	var words []string
	for _, w := range strings.Fields(title) {
		w = strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if w == "" || stopwords[strings.ToLower(w)] {
			continue
		}
		words = append(words, w)
		if len(words) == 2 {
			break
		}
	}
	return strings.Join(words, " ")
}

// firstAuthorSurname returns the last name token of the first author.
func firstAuthorSurname(authors []string) string {
	if len(authors) == 0 {
		return ""
	}
	fields := strings.Fields(authors[0])
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
