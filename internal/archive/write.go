package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunIDGenerator produces run identifiers. Implemented by UUIDv7Generator
// (production) and by fixed generators in tests, where deterministic IDs
// keep journal fixtures stable.
type RunIDGenerator interface {
	Generate() string
}

// BeginRun inserts a journal row for a new run and returns its ID.
func (a *Archive) BeginRun(ctx context.Context, gen RunIDGenerator, mode, baseURL string) (string, error) {
	runID := gen.Generate()
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, mode, base_url, started_at)
		VALUES (?, ?, ?, ?)
	`, runID, mode, baseURL, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return runID, nil
}

// SaveResponse captures a raw response body under the archive dir and
// journals the fetch. name identifies the capture within the source
// (an entity key, or "page-N" for roster pages). Returns the body path
// relative to the archive dir.
//
// An existing capture file for the same (source, name) is overwritten:
// within one run the same fetch is never issued twice, and across runs the
// newest body wins (last write wins, matching the engine's store policy).
func (a *Archive) SaveResponse(ctx context.Context, runID, source, name string, body []byte) (string, error) {
	rel := bodyPath(source, name)
	abs := filepath.Join(a.dir, rel)

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create capture dir: %w", err)
	}
	if err := os.WriteFile(abs, body, 0o644); err != nil {
		return "", fmt.Errorf("write capture %s: %w", rel, err)
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO fetches (run_id, source, key, path, status, fetched_at)
		VALUES (?, ?, ?, ?, 'ok', ?)
	`, runID, source, name, rel, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("journal fetch %s/%s: %w", source, name, err)
	}

	return rel, nil
}

// RecordError journals a failed fetch. No capture file is written; the row
// preserves what was attempted and why it failed for the audit trail.
func (a *Archive) RecordError(ctx context.Context, runID, source, name string, fetchErr error) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO fetches (run_id, source, key, status, error, fetched_at)
		VALUES (?, ?, ?, 'error', ?, ?)
	`, runID, source, name, fetchErr.Error(), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("journal fetch error %s/%s: %w", source, name, err)
	}
	return nil
}
