// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-loupe pipeline.
package types

import "time"

// MatchConfidence records which search tier produced a resolved match.
// Confidence ranks exact > partial > author_phrase > unresolved.
type MatchConfidence string

const (
	MatchExact        MatchConfidence = "exact"
	MatchPartial      MatchConfidence = "partial"
	MatchAuthorPhrase MatchConfidence = "author_phrase"
	MatchUnresolved   MatchConfidence = "unresolved"
)

// Rank returns the ordering value used when two records for the same paper
// disagree: higher wins.
func (c MatchConfidence) Rank() int {
	switch c {
	case MatchExact:
		return 3
	case MatchPartial:
		return 2
	case MatchAuthorPhrase:
		return 1
	default:
		return 0
	}
}

// PaperStub is a paper recommendation as extracted from a digest email,
// before resolution against arXiv. Identity at this stage is surface-level:
// two stubs are the same paper only when their normalized titles are equal.
type PaperStub struct {
	// Title is the recommendation title as it appeared in the digest.
	Title string `json:"title" yaml:"title"`

	// Authors lists the authors in digest order. Empty when the digest
	// block carried none or the author line failed to parse.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Date is the publication date from the digest block, when given.
	Date time.Time `json:"date,omitempty" yaml:"date,omitempty"`

	// Venue is the journal or conference named by the digest, when given.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// Link is the URL the digest pointed at for this recommendation.
	Link string `json:"link,omitempty" yaml:"link,omitempty"`

	// InboxRelevance is the digest's own 0-100 relevance figure.
	// Informational only; ranking never reads it.
	InboxRelevance int `json:"inbox_relevance,omitempty" yaml:"inbox_relevance,omitempty"`

	// KnownID is an arXiv identifier extracted from Link when the digest
	// pointed directly at an arXiv abstract page. A stub with a KnownID
	// resolves without any search query.
	KnownID string `json:"known_id,omitempty" yaml:"known_id,omitempty"`
}

// ResolvedPaper is the output of identity resolution. ExternalID is the
// canonical identity when present; an empty ExternalID means the paper
// could not be resolved and Confidence is MatchUnresolved.
type ResolvedPaper struct {
	// Stub is the originating digest record, preserved for audit.
	Stub PaperStub `json:"stub" yaml:"stub"`

	// ExternalID is the canonical arXiv identifier (e.g. "2301.07041").
	// Empty means not found.
	ExternalID string `json:"external_id,omitempty" yaml:"external_id,omitempty"`

	// Confidence records which search tier produced the match.
	Confidence MatchConfidence `json:"confidence" yaml:"confidence"`

	// Link is the abstract page URL for the resolved record.
	Link string `json:"link,omitempty" yaml:"link,omitempty"`

	// Title is the resolved title when a match was found, otherwise the
	// stub title. Always usable for display.
	Title string `json:"title" yaml:"title"`

	// Authors lists the resolved authors, falling back to the stub's.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Date is the resolved publication date, falling back to the stub's.
	Date time.Time `json:"date,omitempty" yaml:"date,omitempty"`

	// Summary is the abstract from the search response. Empty for
	// unresolved papers.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// Resolved reports whether the paper carries a canonical identity.
func (p ResolvedPaper) Resolved() bool {
	return p.ExternalID != ""
}

// RankedPaper is one row of the final output: a resolved paper plus its
// per-question relevance scores. A question absent from Scores was not
// scored; absence is distinct from a score of zero.
type RankedPaper struct {
	// Paper is the scored record.
	Paper ResolvedPaper `json:"paper" yaml:"paper"`

	// Scores maps question text to the judge's relevance score.
	Scores map[string]float64 `json:"scores,omitempty" yaml:"scores,omitempty"`

	// Reasons maps question text to the judge's one-line justification.
	Reasons map[string]string `json:"reasons,omitempty" yaml:"reasons,omitempty"`

	// Aggregate is the paper-level score derived from Scores. Zero when
	// Scored is false.
	Aggregate float64 `json:"aggregate" yaml:"aggregate"`

	// Scored is false when every per-question score is absent. Unscored
	// papers sort below every scored paper.
	Scored bool `json:"scored" yaml:"scored"`
}
