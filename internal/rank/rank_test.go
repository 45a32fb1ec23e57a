// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rank

import (
	"math"
	"testing"
	"time"

	"github.com/pdiddy/paper-loupe/pkg/types"
)

func ranked(title string, date time.Time, scores map[string]float64) types.RankedPaper {
	return types.RankedPaper{
		Paper: types.ResolvedPaper{
			Title: title,
			Date:  date,
		},
		Scores: scores,
	}
}

// --- Aggregate ---

func TestAggregateMax(t *testing.T) {
	got, ok := Aggregate(map[string]float64{"q1": 3, "q2": 9, "q3": 6}, types.AggregateMax)
	if !ok || got != 9 {
		t.Errorf("Aggregate = (%v, %v), want (9, true)", got, ok)
	}
}

func TestAggregateMean(t *testing.T) {
	got, ok := Aggregate(map[string]float64{"q1": 4, "q2": 8}, types.AggregateMean)
	if !ok || math.Abs(got-6) > 1e-9 {
		t.Errorf("Aggregate = (%v, %v), want (6, true)", got, ok)
	}
}

func TestAggregateIgnoresAbsent(t *testing.T) {
	// One of three questions is absent from the map; the mean divides
	// by two, not three.
	got, ok := Aggregate(map[string]float64{"q1": 2, "q3": 4}, types.AggregateMean)
	if !ok || math.Abs(got-3) > 1e-9 {
		t.Errorf("Aggregate = (%v, %v), want (3, true)", got, ok)
	}
}

func TestAggregateEmpty(t *testing.T) {
	got, ok := Aggregate(nil, types.AggregateMax)
	if ok || got != 0 {
		t.Errorf("Aggregate = (%v, %v), want (0, false)", got, ok)
	}
}

func TestAggregateZeroScoreStillCounts(t *testing.T) {
	// A real zero is a verdict, not an absence.
	got, ok := Aggregate(map[string]float64{"q1": 0}, types.AggregateMax)
	if !ok || got != 0 {
		t.Errorf("Aggregate = (%v, %v), want (0, true)", got, ok)
	}
}

// --- Finalize ---

func TestFinalizeOrder(t *testing.T) {
	d2023 := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	d2024 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	papers := []types.RankedPaper{
		ranked("Low Score", d2023, map[string]float64{"q": 5}),
		ranked("Zebra Unscored", time.Time{}, nil),
		ranked("Tie Newer", d2024, map[string]float64{"q": 9}),
		ranked("Tie Older", d2023, map[string]float64{"q": 9}),
		ranked("Alpha Unscored", time.Time{}, nil),
		ranked("Tie Undated", time.Time{}, map[string]float64{"q": 9}),
	}

	got := Finalize(papers, types.AggregateMax)

	wantOrder := []string{
		"Tie Older",      // 9, earliest date
		"Tie Newer",      // 9, later date
		"Tie Undated",    // 9, no date sorts after dated ties
		"Low Score",      // 5
		"Alpha Unscored", // unscored, by title
		"Zebra Unscored",
	}
	if len(got) != len(wantOrder) {
		t.Fatalf("got %d papers, want %d", len(got), len(wantOrder))
	}
	for i, want := range wantOrder {
		if got[i].Paper.Title != want {
			t.Errorf("position %d = %q, want %q", i, got[i].Paper.Title, want)
		}
	}
}

func TestFinalizeFillsAggregates(t *testing.T) {
	papers := []types.RankedPaper{
		ranked("Scored", time.Time{}, map[string]float64{"q1": 4, "q2": 8}),
		ranked("Unscored", time.Time{}, nil),
	}

	got := Finalize(papers, types.AggregateMean)

	var scored, unscored *types.RankedPaper
	for i := range got {
		switch got[i].Paper.Title {
		case "Scored":
			scored = &got[i]
		case "Unscored":
			unscored = &got[i]
		}
	}
	if scored == nil || unscored == nil {
		t.Fatal("papers went missing in Finalize")
	}
	if !scored.Scored || math.Abs(scored.Aggregate-6) > 1e-9 {
		t.Errorf("scored paper = (%v, %v), want (6, true)", scored.Aggregate, scored.Scored)
	}
	if unscored.Scored || unscored.Aggregate != 0 {
		t.Errorf("unscored paper = (%v, %v), want (0, false)", unscored.Aggregate, unscored.Scored)
	}
}

func TestFinalizeScoredBeatsUnscoredRegardlessOfScore(t *testing.T) {
	papers := []types.RankedPaper{
		ranked("All Absent", time.Time{}, nil),
		ranked("Scored Zero", time.Time{}, map[string]float64{"q": 0}),
	}

	got := Finalize(papers, types.AggregateMax)
	if got[0].Paper.Title != "Scored Zero" {
		t.Errorf("a zero-scored paper must still rank above an unscored one, got %q first", got[0].Paper.Title)
	}
}

// --- Top ---

func TestTop(t *testing.T) {
	papers := []types.RankedPaper{
		ranked("A", time.Time{}, nil),
		ranked("B", time.Time{}, nil),
		ranked("C", time.Time{}, nil),
	}

	if got := Top(papers, 2); len(got) != 2 {
		t.Errorf("Top(2) = %d papers, want 2", len(got))
	}
	if got := Top(papers, 0); len(got) != 3 {
		t.Errorf("Top(0) = %d papers, want all 3", len(got))
	}
	if got := Top(papers, 10); len(got) != 3 {
		t.Errorf("Top(10) = %d papers, want all 3", len(got))
	}
}
