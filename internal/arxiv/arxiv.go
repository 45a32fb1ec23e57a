// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package arxiv queries the arXiv Atom API for paper metadata.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/paper-loupe/internal/httputil"
	"github.com/pdiddy/paper-loupe/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

const defaultMaxResults = 5

// Client issues search queries against the arXiv API.
type Client struct {
	HTTP       *http.Client
	UserAgent  string
	MaxResults int
	MaxRetries int
}

// NewClient builds a Client from lookup settings.
func NewClient(cfg types.LookupConfig) *Client {
	return &Client{
		HTTP:       &http.Client{Timeout: cfg.Timeout},
		UserAgent:  cfg.UserAgent,
		MaxResults: cfg.MaxResults,
		MaxRetries: cfg.MaxRetries,
	}
}

// Search runs one query and returns the hits in relevance order.
// Transient failures are retried inside the call; an auth rejection
// surfaces as httputil.ErrAuth.
func (c *Client) Search(ctx context.Context, query types.SearchQuery) ([]types.SearchHit, error) {
	q, err := buildQuery(query)
	if err != nil {
		return nil, err
	}

	maxResults := query.MaxResults
	if maxResults <= 0 {
		maxResults = c.MaxResults
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	params := url.Values{}
	params.Set("search_query", q)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", "relevance")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, c.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	var hits []types.SearchHit
	for _, entry := range feed.Entries {
		id := IDFromURL(entry.ID)
		if id == "" {
			continue
		}

		hit := types.SearchHit{
			ExternalID: id,
			Title:      strings.TrimSpace(entry.Title),
			Summary:    strings.TrimSpace(entry.Summary),
			Link:       strings.TrimSpace(entry.ID),
		}
		for _, a := range entry.Authors {
			hit.Authors = append(hit.Authors, strings.TrimSpace(a.Name))
		}
		if t, parseErr := time.Parse(time.RFC3339, entry.Published); parseErr == nil {
			hit.Date = t
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// buildQuery constructs the search_query parameter for a mode. Double
// quotes inside phrase text would break the field syntax and are
// stripped.
func buildQuery(q types.SearchQuery) (string, error) {
	switch q.Mode {
	case types.ModeExactPhrase:
		if q.Title == "" {
			return "", fmt.Errorf("empty title for exact-phrase query")
		}
		return `ti:"` + stripQuotes(q.Title) + `"`, nil
	case types.ModeLoose:
		terms := strings.Fields(stripQuotes(q.Title))
		if len(terms) == 0 {
			return "", fmt.Errorf("empty title for loose query")
		}
		return "ti:" + strings.Join(terms, " "), nil
	case types.ModeAuthorPhrase:
		if q.Author == "" || q.Phrase == "" {
			return "", fmt.Errorf("author-phrase query needs both author and phrase")
		}
		return fmt.Sprintf(`au:%s AND ti:"%s"`, stripQuotes(q.Author), stripQuotes(q.Phrase)), nil
	}
	return "", fmt.Errorf("unknown search mode %q", q.Mode)
}

func stripQuotes(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Authors   []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

// IDFromURL pulls the arXiv ID from an abstract URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041").
// Returns "" when the URL is not an arXiv abstract link.
func IDFromURL(idURL string) string {
	const prefix = "/abs/"
	if !strings.Contains(idURL, "arxiv.org") {
		return ""
	}
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]
	if cut := strings.IndexAny(id, "?#"); cut >= 0 {
		id = id[:cut]
	}

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
