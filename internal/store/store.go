// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists resolved papers and run checkpoints in a
// SQLite database.
//
// The store is append-mostly: a paper row is inserted the first time a
// run resolves it, upgraded in place when a later run resolves the
// same paper at higher confidence, and otherwise left alone. Resolved
// rows are keyed by external ID, unresolved ones by normalized title,
// so an unresolved paper is retried on the next run and its row is
// replaced once the lookup finally lands.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-loupe/internal/dedupe"
	"github.com/pdiddy/paper-loupe/pkg/types"
)

// ErrNotFound reports a lookup for a paper the store has never seen.
var ErrNotFound = errors.New("paper not found")

// Run statuses recorded in the runs table.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Store manages the paper database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path, creating the schema on
// first use. The parent directory is created if needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			key TEXT PRIMARY KEY,
			external_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			norm_title TEXT NOT NULL,
			authors TEXT,
			date TEXT NOT NULL DEFAULT '',
			venue TEXT,
			link TEXT,
			summary TEXT,
			match_confidence TEXT NOT NULL,
			inbox_relevance INTEGER NOT NULL DEFAULT 0,
			first_seen_run TEXT,
			first_seen_at TEXT NOT NULL,
			scores TEXT,
			reasons TEXT,
			aggregate REAL NOT NULL DEFAULT 0,
			scored INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_norm_title ON papers(norm_title)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_external_id ON papers(external_id)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			status TEXT NOT NULL,
			emails INTEGER NOT NULL DEFAULT 0,
			stubs INTEGER NOT NULL DEFAULT 0,
			resolved INTEGER NOT NULL DEFAULT 0,
			unresolved INTEGER NOT NULL DEFAULT 0,
			judged INTEGER NOT NULL DEFAULT 0,
			detail TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='papers_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE papers_fts USING fts5(title, summary, content=papers, content_rowid=rowid)`,
			`CREATE TRIGGER papers_ai AFTER INSERT ON papers BEGIN
				INSERT INTO papers_fts(rowid, title, summary) VALUES (new.rowid, new.title, new.summary);
			END`,
			`CREATE TRIGGER papers_ad AFTER DELETE ON papers BEGIN
				INSERT INTO papers_fts(papers_fts, rowid, title, summary) VALUES('delete', old.rowid, old.title, old.summary);
			END`,
			`CREATE TRIGGER papers_au AFTER UPDATE ON papers BEGIN
				INSERT INTO papers_fts(papers_fts, rowid, title, summary) VALUES('delete', old.rowid, old.title, old.summary);
				INSERT INTO papers_fts(rowid, title, summary) VALUES (new.rowid, new.title, new.summary);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// Record is one persisted paper row.
type Record struct {
	Key            string                `json:"key"`
	ExternalID     string                `json:"external_id,omitempty"`
	Title          string                `json:"title"`
	NormTitle      string                `json:"-"`
	Authors        []string              `json:"authors,omitempty"`
	Date           time.Time             `json:"date,omitempty"`
	Venue          string                `json:"venue,omitempty"`
	Link           string                `json:"link,omitempty"`
	Summary        string                `json:"summary,omitempty"`
	Confidence     types.MatchConfidence `json:"match_confidence"`
	InboxRelevance int                   `json:"inbox_relevance,omitempty"`
	FirstSeenRun   string                `json:"first_seen_run,omitempty"`
	FirstSeenAt    time.Time             `json:"first_seen_at"`
	Scores         map[string]float64    `json:"scores,omitempty"`
	Reasons        map[string]string     `json:"reasons,omitempty"`
	Aggregate      float64               `json:"aggregate"`
	Scored         bool                  `json:"scored"`
}

// FromResolved converts a resolution outcome to a storable record.
func FromResolved(p types.ResolvedPaper, runID string, seenAt time.Time) Record {
	norm := dedupe.NormalizeTitle(p.Title)
	return Record{
		Key:            recordKey(p.ExternalID, norm),
		ExternalID:     p.ExternalID,
		Title:          p.Title,
		NormTitle:      norm,
		Authors:        p.Authors,
		Date:           p.Date,
		Venue:          p.Stub.Venue,
		Link:           p.Link,
		Summary:        p.Summary,
		Confidence:     p.Confidence,
		InboxRelevance: p.Stub.InboxRelevance,
		FirstSeenRun:   runID,
		FirstSeenAt:    seenAt,
	}
}

// recordKey builds the primary key: resolved papers key on external
// ID, unresolved ones on normalized title.
func recordKey(externalID, normTitle string) string {
	if externalID != "" {
		return "id:" + externalID
	}
	return "title:" + normTitle
}

// ResolvedPaper reconstructs the resolution outcome this record was
// built from, so stored rows can be fed back through the judge.
func (r Record) ResolvedPaper() types.ResolvedPaper {
	return types.ResolvedPaper{
		Stub: types.PaperStub{
			Title:          r.Title,
			Authors:        r.Authors,
			Date:           r.Date,
			Venue:          r.Venue,
			Link:           r.Link,
			InboxRelevance: r.InboxRelevance,
		},
		ExternalID: r.ExternalID,
		Confidence: r.Confidence,
		Link:       r.Link,
		Title:      r.Title,
		Authors:    r.Authors,
		Date:       r.Date,
		Summary:    r.Summary,
	}
}

// MergeSummary counts the outcome of merging one run's papers.
type MergeSummary struct {
	Added    int
	Upgraded int
	Skipped  int
}

// Total returns the number of records merged.
func (m MergeSummary) Total() int {
	return m.Added + m.Upgraded + m.Skipped
}

// Merge folds one run's resolutions into the store. New papers are
// inserted; a paper already present is upgraded in place when the new
// resolution has higher confidence and skipped otherwise. A resolved
// record replaces its formerly-unresolved title-keyed row. First-seen
// fields never change after insert.
func (s *Store) Merge(ctx context.Context, records []Record) (MergeSummary, error) {
	var summary MergeSummary

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		upgradedUnresolved := false
		if r.ExternalID != "" {
			res, err := tx.ExecContext(ctx,
				`DELETE FROM papers WHERE key = ? AND external_id = ''`,
				"title:"+r.NormTitle)
			if err != nil {
				return summary, fmt.Errorf("clearing unresolved row for %q: %w", r.Title, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				upgradedUnresolved = true
			}
		}

		var existing string
		err = tx.QueryRowContext(ctx,
			`SELECT match_confidence FROM papers WHERE key = ?`, r.Key,
		).Scan(&existing)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if err := insertRecord(ctx, tx, r); err != nil {
				return summary, err
			}
			if upgradedUnresolved {
				summary.Upgraded++
			} else {
				summary.Added++
			}
		case err != nil:
			return summary, fmt.Errorf("checking for %q: %w", r.Title, err)
		case r.Confidence.Rank() > types.MatchConfidence(existing).Rank():
			if err := upgradeRecord(ctx, tx, r); err != nil {
				return summary, err
			}
			summary.Upgraded++
		default:
			summary.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("committing merge: %w", err)
	}
	return summary, nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, r Record) error {
	authorsJSON, _ := json.Marshal(r.Authors)
	_, err := tx.ExecContext(ctx,
		`INSERT INTO papers (key, external_id, title, norm_title, authors, date, venue,
			link, summary, match_confidence, inbox_relevance, first_seen_run, first_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Key, r.ExternalID, r.Title, r.NormTitle, string(authorsJSON), dateText(r.Date),
		r.Venue, r.Link, r.Summary, string(r.Confidence), r.InboxRelevance,
		r.FirstSeenRun, r.FirstSeenAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting %q: %w", r.Title, err)
	}
	return nil
}

func upgradeRecord(ctx context.Context, tx *sql.Tx, r Record) error {
	authorsJSON, _ := json.Marshal(r.Authors)
	_, err := tx.ExecContext(ctx,
		`UPDATE papers SET external_id = ?, title = ?, norm_title = ?, authors = ?,
			date = ?, venue = ?, link = ?, summary = ?, match_confidence = ?,
			inbox_relevance = ?
		 WHERE key = ?`,
		r.ExternalID, r.Title, r.NormTitle, string(authorsJSON), dateText(r.Date),
		r.Venue, r.Link, r.Summary, string(r.Confidence), r.InboxRelevance, r.Key,
	)
	if err != nil {
		return fmt.Errorf("upgrading %q: %w", r.Title, err)
	}
	return nil
}

// SaveScores writes judge output back onto persisted rows. Rows are
// matched by the same key resolution used at merge time; papers the
// store does not hold are ignored.
func (s *Store) SaveScores(ctx context.Context, ranked []types.RankedPaper) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE papers SET scores = ?, reasons = ?, aggregate = ?, scored = ? WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("preparing score update: %w", err)
	}
	defer stmt.Close()

	for _, p := range ranked {
		key := recordKey(p.Paper.ExternalID, dedupe.NormalizeTitle(p.Paper.Title))
		scoresJSON, _ := json.Marshal(p.Scores)
		reasonsJSON, _ := json.Marshal(p.Reasons)
		if _, err := stmt.ExecContext(ctx,
			string(scoresJSON), string(reasonsJSON), p.Aggregate, boolInt(p.Scored), key,
		); err != nil {
			return fmt.Errorf("saving scores for %q: %w", p.Paper.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing scores: %w", err)
	}
	return nil
}

// KnownTitles returns the normalized titles of every resolved paper.
// Unresolved titles are deliberately left out so later runs retry
// them.
func (s *Store) KnownTitles(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT norm_title FROM papers WHERE external_id != ''`)
	if err != nil {
		return nil, fmt.Errorf("loading known titles: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scanning title: %w", err)
		}
		known[title] = true
	}
	return known, rows.Err()
}

const recordColumns = `key, external_id, title, norm_title, authors, date, venue, link,
	summary, match_confidence, inbox_relevance, first_seen_run, first_seen_at,
	scores, reasons, aggregate, scored`

// Load returns every stored paper in presentation order: scored above
// unscored, higher aggregate first, then earliest date with undated
// rows last, then title.
func (s *Store) Load(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM papers
		 ORDER BY scored DESC, aggregate DESC,
			CASE WHEN date = '' THEN 1 ELSE 0 END ASC, date ASC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("loading papers: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Unscored returns resolved papers the judge has not scored yet. A
// run interrupted between persisting and judging leaves such rows
// behind; the next run picks them up here.
func (s *Store) Unscored(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM papers
		 WHERE scored = 0 AND external_id != ''
		 ORDER BY first_seen_at ASC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("loading unscored papers: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Get fetches one paper by external ID.
func (s *Store) Get(ctx context.Context, externalID string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM papers WHERE external_id = ?`, externalID)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, externalID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("loading paper %s: %w", externalID, err)
	}
	return r, nil
}

// Search runs an FTS5 match over titles and summaries.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM papers_fts
		 JOIN papers ON papers.rowid = papers_fts.rowid
		 WHERE papers_fts MATCH ?
		 ORDER BY papers_fts.rank LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching papers: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		r                       Record
		authorsJSON             sql.NullString
		dateStr, firstSeenStr   string
		venue, link, summary    sql.NullString
		firstSeenRun            sql.NullString
		scoresJSON, reasonsJSON sql.NullString
		confidence              string
		scored                  int
	)
	err := row.Scan(&r.Key, &r.ExternalID, &r.Title, &r.NormTitle, &authorsJSON,
		&dateStr, &venue, &link, &summary, &confidence, &r.InboxRelevance,
		&firstSeenRun, &firstSeenStr, &scoresJSON, &reasonsJSON, &r.Aggregate, &scored)
	if err != nil {
		return Record{}, err
	}

	r.Confidence = types.MatchConfidence(confidence)
	r.Venue = venue.String
	r.Link = link.String
	r.Summary = summary.String
	r.FirstSeenRun = firstSeenRun.String
	r.Scored = scored != 0

	if authorsJSON.Valid && authorsJSON.String != "" {
		json.Unmarshal([]byte(authorsJSON.String), &r.Authors)
	}
	if scoresJSON.Valid && scoresJSON.String != "" {
		json.Unmarshal([]byte(scoresJSON.String), &r.Scores)
	}
	if reasonsJSON.Valid && reasonsJSON.String != "" {
		json.Unmarshal([]byte(reasonsJSON.String), &r.Reasons)
	}
	if dateStr != "" {
		if t, parseErr := time.Parse(time.RFC3339, dateStr); parseErr == nil {
			r.Date = t
		}
	}
	if t, parseErr := time.Parse(time.RFC3339, firstSeenStr); parseErr == nil {
		r.FirstSeenAt = t
	}
	return r, nil
}

func dateText(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
