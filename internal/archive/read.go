package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Run is one journaled run.
type Run struct {
	ID        string
	Mode      string
	BaseURL   string
	StartedAt time.Time
}

// Fetch is one journaled fetch, ok or failed.
type Fetch struct {
	ID        int64
	RunID     string
	Source    string
	Key       string
	Path      string // relative to the archive dir; empty for failed fetches
	Status    string
	Error     string
	FetchedAt time.Time
}

// OK reports whether the fetch captured a body.
func (f Fetch) OK() bool {
	return f.Status == "ok"
}

// ListRuns returns all journaled runs, newest first.
func (a *Archive) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT run_id, mode, base_url, started_at
		FROM runs
		ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt string
		if err := rows.Scan(&r.ID, &r.Mode, &r.BaseURL, &startedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Fetches returns the journaled fetches of a run for one source, in
// insertion order. Replay iterates these rows to reproduce the original
// arrival order of that source's records.
func (a *Archive) Fetches(ctx context.Context, runID, source string) ([]Fetch, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, run_id, source, key, path, status, error, fetched_at
		FROM fetches
		WHERE run_id = ? AND source = ?
		ORDER BY id
	`, runID, source)
	if err != nil {
		return nil, fmt.Errorf("fetches for run %s: %w", runID, err)
	}
	defer rows.Close()

	var fetches []Fetch
	for rows.Next() {
		var f Fetch
		var fetchedAt string
		if err := rows.Scan(&f.ID, &f.RunID, &f.Source, &f.Key, &f.Path, &f.Status, &f.Error, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scan fetch: %w", err)
		}
		f.FetchedAt, err = time.Parse(time.RFC3339Nano, fetchedAt)
		if err != nil {
			return nil, fmt.Errorf("parse fetch timestamp: %w", err)
		}
		fetches = append(fetches, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetches for run %s: %w", runID, err)
	}
	return fetches, nil
}

// HasRun reports whether runID exists in the journal.
func (a *Archive) HasRun(ctx context.Context, runID string) (bool, error) {
	var n int
	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM runs WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup run %s: %w", runID, err)
	}
	return n > 0, nil
}

// ReadBody loads a captured response body by its journal path.
func (a *Archive) ReadBody(rel string) ([]byte, error) {
	body, err := os.ReadFile(filepath.Join(a.dir, rel))
	if err != nil {
		return nil, fmt.Errorf("read capture %s: %w", rel, err)
	}
	return body, nil
}
