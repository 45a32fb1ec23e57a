// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank orders judged papers for presentation.
package rank

import (
	"sort"

	"github.com/pdiddy/paper-loupe/pkg/types"
)

// Aggregate collapses the available per-question scores into one
// paper-level figure. Absent pairs are excluded, not treated as zero.
// The second return is false when no scores are available at all.
func Aggregate(scores map[string]float64, agg types.Aggregation) (float64, bool) {
	if len(scores) == 0 {
		return 0, false
	}
	switch agg {
	case types.AggregateMean:
		var sum float64
		for _, s := range scores {
			sum += s
		}
		return sum / float64(len(scores)), true
	default:
		first := true
		var max float64
		for _, s := range scores {
			if first || s > max {
				max = s
				first = false
			}
		}
		return max, true
	}
}

// Finalize fills Aggregate and Scored on every paper and sorts the
// slice into presentation order: scored papers by aggregate descending,
// ties broken by earlier publication date (undated last), then title.
// Papers with no scores at all sort below every scored paper, ordered
// by title.
func Finalize(papers []types.RankedPaper, agg types.Aggregation) []types.RankedPaper {
	for i := range papers {
		papers[i].Aggregate, papers[i].Scored = Aggregate(papers[i].Scores, agg)
	}

	sort.SliceStable(papers, func(i, j int) bool {
		a, b := papers[i], papers[j]
		if a.Scored != b.Scored {
			return a.Scored
		}
		if !a.Scored {
			return a.Paper.Title < b.Paper.Title
		}
		if a.Aggregate != b.Aggregate {
			return a.Aggregate > b.Aggregate
		}
		aZero, bZero := a.Paper.Date.IsZero(), b.Paper.Date.IsZero()
		if aZero != bZero {
			return !aZero
		}
		if !a.Paper.Date.Equal(b.Paper.Date) {
			return a.Paper.Date.Before(b.Paper.Date)
		}
		return a.Paper.Title < b.Paper.Title
	})

	return papers
}

// Top returns the first n papers, or all of them when n is zero,
// negative, or past the end.
func Top(papers []types.RankedPaper, n int) []types.RankedPaper {
	if n <= 0 || n >= len(papers) {
		return papers
	}
	return papers[:n]
}
