// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedupe collapses duplicate papers in two passes: by
// normalized title before identity resolution, and by external ID
// after it. Alert digests overlap heavily week to week, so both
// passes matter.
package dedupe

import (
	"strings"
	"unicode"

	"github.com/pdiddy/paper-loupe/pkg/types"
)

// NormalizeTitle folds a title to a comparison key: lowercase, letters
// and digits only, single spaces. Punctuation and casing differences
// between digests collapse to the same key.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// SurfaceSummary counts the outcome of a title-level pass.
type SurfaceSummary struct {
	Kept    int
	Dropped int // duplicate title within the batch
	Known   int // title already resolved in the record store
}

// Total returns the number of stubs examined.
func (s SurfaceSummary) Total() int {
	return s.Kept + s.Dropped + s.Known
}

// Surface keeps the first stub per normalized title and drops the
// rest. Stubs whose title is in known (already resolved on an earlier
// run) are dropped too, so re-runs spend no lookups on them. Stub
// order is preserved.
func Surface(stubs []types.PaperStub, known map[string]bool) ([]types.PaperStub, SurfaceSummary) {
	var summary SurfaceSummary
	seen := make(map[string]bool, len(stubs))
	kept := make([]types.PaperStub, 0, len(stubs))

	for _, stub := range stubs {
		key := NormalizeTitle(stub.Title)
		switch {
		case known[key]:
			summary.Known++
		case seen[key]:
			summary.Dropped++
		default:
			seen[key] = true
			kept = append(kept, stub)
			summary.Kept++
		}
	}
	return kept, summary
}

// IdentitySummary counts the outcome of an external-ID pass.
type IdentitySummary struct {
	Kept   int
	Merged int // duplicate external ID folded into a kept record
}

// Identity collapses resolved papers that share an external ID,
// keeping the one with the highest match confidence. On equal
// confidence the earlier paper wins. Unresolved papers carry no
// external ID and always pass through. Paper order is preserved.
func Identity(papers []types.ResolvedPaper) ([]types.ResolvedPaper, IdentitySummary) {
	var summary IdentitySummary
	byID := make(map[string]int, len(papers))
	kept := make([]types.ResolvedPaper, 0, len(papers))

	for _, p := range papers {
		if p.ExternalID == "" {
			kept = append(kept, p)
			summary.Kept++
			continue
		}
		at, ok := byID[p.ExternalID]
		if !ok {
			byID[p.ExternalID] = len(kept)
			kept = append(kept, p)
			summary.Kept++
			continue
		}
		if p.Confidence.Rank() > kept[at].Confidence.Rank() {
			kept[at] = p
		}
		summary.Merged++
	}
	return kept, summary
}
