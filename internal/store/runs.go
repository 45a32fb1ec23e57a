// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RunCounts are the stage totals checkpointed with a run.
type RunCounts struct {
	Emails     int `json:"emails"`
	Stubs      int `json:"stubs"`
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
	Judged     int `json:"judged"`
}

// Run is one pipeline execution's checkpoint row.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Status     string    `json:"status"`
	Counts     RunCounts `json:"counts"`
	Detail     string    `json:"detail,omitempty"`
}

// BeginRun checkpoints a run's start. A crash leaves the row in
// running state, which Recent surfaces.
func (s *Store) BeginRun(ctx context.Context, id string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status) VALUES (?, ?, ?)`,
		id, startedAt.UTC().Format(time.RFC3339Nano), RunRunning)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", id, err)
	}
	return nil
}

// FinishRun closes a run's checkpoint with its final status and
// counts. Detail carries the failure description for failed runs.
func (s *Store) FinishRun(ctx context.Context, id, status string, counts RunCounts, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, emails = ?, stubs = ?,
			resolved = ?, unresolved = ?, judged = ?, detail = ?
		 WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), status,
		counts.Emails, counts.Stubs, counts.Resolved, counts.Unresolved, counts.Judged,
		detail, id)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", id, err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, status, emails, stubs, resolved,
			unresolved, judged, detail
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("loading runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                   Run
			startedStr          string
			finishedStr, detail sql.NullString
		)
		if err := rows.Scan(&r.ID, &startedStr, &finishedStr, &r.Status,
			&r.Counts.Emails, &r.Counts.Stubs, &r.Counts.Resolved,
			&r.Counts.Unresolved, &r.Counts.Judged, &detail); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if t, parseErr := time.Parse(time.RFC3339, startedStr); parseErr == nil {
			r.StartedAt = t
		}
		if finishedStr.Valid && finishedStr.String != "" {
			if t, parseErr := time.Parse(time.RFC3339, finishedStr.String); parseErr == nil {
				r.FinishedAt = t
			}
		}
		r.Detail = detail.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
