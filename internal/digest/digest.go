// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package digest parses Scholar Alert Digest emails into paper stubs.
//
// A digest carries up to a handful of recommendation blocks. The HTML
// form (the common case) wraps each recommendation in an <article>
// element with the title in an h2 link, the author list in the first
// paragraph, an inline "Relevance: N" span, and the venue in a
// float-right div. A plain-text fallback treats blank-line-separated
// blocks the same way.
package digest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/paper-loupe/internal/arxiv"
	"github.com/pdiddy/paper-loupe/pkg/types"
)

// subjectMarker identifies a digest among the mailbox query's matches.
const subjectMarker = "Scholar Alert Digest"

// maxStubsPerEmail caps how many recommendations one digest yields.
const maxStubsPerEmail = 5

var relevanceRe = regexp.MustCompile(`Relevance:\s*(\d+)`)

// IsDigest reports whether a subject line marks a digest email.
func IsDigest(subject string) bool {
	return strings.Contains(subject, subjectMarker)
}

// Summary counts the outcome of parsing one digest.
type Summary struct {
	Found   int // stubs extracted
	Dropped int // recommendation blocks missing a title
}

// Parse extracts paper stubs from one digest email. The HTML body is
// preferred; the plain-text body is the fallback. Blocks without a
// title are dropped and counted, never fatal. Stub dates come from the
// email date: digests do not carry per-paper dates.
func Parse(email types.Email) ([]types.PaperStub, Summary, error) {
	if email.HTML != "" {
		return parseHTML(email)
	}
	if email.Text != "" {
		stubs, summary := parseText(email)
		return stubs, summary, nil
	}
	return nil, Summary{}, fmt.Errorf("digest %s has no body", email.ID)
}

func parseHTML(email types.Email) ([]types.PaperStub, Summary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(email.HTML))
	if err != nil {
		return nil, Summary{}, fmt.Errorf("parsing digest %s: %w", email.ID, err)
	}

	var stubs []types.PaperStub
	var summary Summary
	doc.Find("article").EachWithBreak(func(_ int, article *goquery.Selection) bool {
		title := collapseSpace(article.Find("h2 a").First().Text())
		if title == "" {
			title = collapseSpace(article.Find("h2").First().Text())
		}
		if title == "" {
			summary.Dropped++
			return true
		}

		stub := types.PaperStub{
			Title: title,
			Date:  email.Date,
		}
		stub.Authors = splitAuthors(article.Find("p").First().Text())
		stub.Venue = collapseSpace(article.Find(`div[style*="float:right"]`).First().Text())

		if href, ok := article.Find("h2 a").First().Attr("href"); ok {
			stub.Link = strings.TrimSpace(href)
			stub.KnownID = arxiv.IDFromURL(stub.Link)
		}

		article.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
			if m := relevanceRe.FindStringSubmatch(span.Text()); m != nil {
				if n, convErr := strconv.Atoi(m[1]); convErr == nil {
					stub.InboxRelevance = n
				}
				return false
			}
			return true
		})

		stubs = append(stubs, stub)
		summary.Found++
		return summary.Found < maxStubsPerEmail
	})

	return stubs, summary, nil
}

// parseText handles the rare plain-text digest: blocks separated by
// blank lines, first line title, second line authors, an optional
// "Relevance: N" line anywhere in the block.
func parseText(email types.Email) ([]types.PaperStub, Summary) {
	var stubs []types.PaperStub
	var summary Summary

	for _, block := range strings.Split(email.Text, "\n\n") {
		if summary.Found >= maxStubsPerEmail {
			break
		}
		lines := nonEmptyLines(block)
		if len(lines) == 0 {
			continue
		}
		if looksLikeBoilerplate(lines[0]) {
			continue
		}

		stub := types.PaperStub{
			Title: collapseSpace(lines[0]),
			Date:  email.Date,
		}
		if stub.Title == "" {
			summary.Dropped++
			continue
		}
		if len(lines) > 1 {
			stub.Authors = splitAuthors(lines[1])
		}
		for _, line := range lines {
			if m := relevanceRe.FindStringSubmatch(line); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil {
					stub.InboxRelevance = n
				}
				break
			}
		}

		stubs = append(stubs, stub)
		summary.Found++
	}
	return stubs, summary
}

// looksLikeBoilerplate filters footer and greeting blocks out of the
// plain-text path.
func looksLikeBoilerplate(line string) bool {
	l := strings.ToLower(line)
	for _, marker := range []string{"unsubscribe", "view in browser", "this email was sent"} {
		if strings.Contains(l, marker) {
			return true
		}
	}
	return false
}

// splitAuthors turns "A. One, B. Two and C. Three" into a name list.
func splitAuthors(raw string) []string {
	raw = strings.ReplaceAll(raw, " and ", ", ")
	var authors []string
	for _, part := range strings.Split(raw, ",") {
		if name := collapseSpace(part); name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

func nonEmptyLines(block string) []string {
	var lines []string
	for _, line := range strings.Split(block, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

// collapseSpace trims and folds internal runs of whitespace, which
// digest HTML is full of.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
