// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SearchMode selects how a lookup query is matched by the bibliographic
// source. Each resolution tier uses exactly one mode.
type SearchMode string

const (
	ModeExactPhrase  SearchMode = "exact_phrase"
	ModeLoose        SearchMode = "loose"
	ModeAuthorPhrase SearchMode = "author_phrase"
)

// SearchQuery holds the parameters for one lookup call.
type SearchQuery struct {
	// Mode selects exact-phrase, loose, or author+phrase matching.
	Mode SearchMode `json:"mode" yaml:"mode"`

	// Title is the title text searched in exact_phrase and loose modes.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Author is the first author's surname, used in author_phrase mode.
	Author string `json:"author,omitempty" yaml:"author,omitempty"`

	// Phrase is the distinctive title phrase, used in author_phrase mode.
	Phrase string `json:"phrase,omitempty" yaml:"phrase,omitempty"`

	// MaxResults caps the number of hits requested (default 5).
	MaxResults int `json:"max_results,omitempty" yaml:"max_results,omitempty"`
}

// SearchHit is one candidate record returned by the bibliographic source,
// ordered by relevance descending.
type SearchHit struct {
	// ExternalID is the canonical arXiv identifier.
	ExternalID string `json:"external_id" yaml:"external_id"`

	// Title is the title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Authors lists the authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Summary is the abstract.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`

	// Link is the abstract page URL.
	Link string `json:"link,omitempty" yaml:"link,omitempty"`

	// Date is the publication or preprint date.
	Date time.Time `json:"date,omitempty" yaml:"date,omitempty"`
}
