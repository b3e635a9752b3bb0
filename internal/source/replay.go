package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/licdata/licmerge/internal/archive"
)

// ArchiveRoster replays the base source from a journaled run: captured
// roster pages are walked in their original arrival order and parsed
// exactly as the live origin would have parsed them.
type ArchiveRoster struct {
	arch   *archive.Archive
	runID  string
	source string
}

// NewArchiveRoster creates a replay adapter for the roster source of a
// prior run.
func NewArchiveRoster(arch *archive.Archive, runID, source string) *ArchiveRoster {
	return &ArchiveRoster{arch: arch, runID: runID, source: source}
}

// Source implements Adapter.
func (r *ArchiveRoster) Source() string {
	return r.source
}

// Run implements Adapter. Journaled fetch failures replay as error events
// so a replayed run reports the same exit status as the original.
func (r *ArchiveRoster) Run(ctx context.Context, emit Emitter) {
	defer emit.Emit(Event{Source: r.source, Kind: KindEOF})

	fetches, err := r.arch.Fetches(ctx, r.runID, r.source)
	if err != nil {
		emit.Emit(Event{
			Source: r.source,
			Kind:   KindError,
			Err:    &FetchError{Source: r.source, Key: r.runID, Err: err},
		})
		return
	}

	for _, f := range fetches {
		if !f.OK() {
			emit.Emit(Event{
				Source: r.source,
				Kind:   KindError,
				Key:    f.Key,
				Err:    &FetchError{Source: r.source, Key: f.Key, Err: fmt.Errorf("archived failure: %s", f.Error)},
			})
			continue
		}

		body, err := r.arch.ReadBody(f.Path)
		if err != nil {
			emit.Emit(Event{
				Source: r.source,
				Kind:   KindError,
				Key:    f.Key,
				Err:    &FetchError{Source: r.source, Key: f.Key, Err: err},
			})
			continue
		}

		var p rosterPage
		if err := json.Unmarshal(body, &p); err != nil {
			emit.Emit(Event{
				Source: r.source,
				Kind:   KindError,
				Key:    f.Key,
				Err:    &FetchError{Source: r.source, Key: f.Key, Err: fmt.Errorf("decode page: %w", err)},
			})
			continue
		}

		for i, raw := range p.Licenses {
			key, fields, err := parseKeyed(raw)
			if err != nil {
				slog.Warn("archived roster record skipped",
					"source", r.source, "page", f.Key, "index", i, "error", err)
				emit.Emit(Event{
					Source: r.source,
					Kind:   KindError,
					Key:    fmt.Sprintf("%s[%d]", f.Key, i),
					Err:    &FetchError{Source: r.source, Key: f.Key, Err: err},
				})
				continue
			}
			emit.Emit(Event{Source: r.source, Kind: KindRecord, Key: key, Record: fields})
		}
	}
}

// ArchiveFetcher replays per-entity fetches from a journaled run. The
// journal rows for the source are indexed by key once at construction;
// each task then resolves synchronously from disk, which is why replay
// runs pair with the immediate scheduler.
type ArchiveFetcher struct {
	arch   *archive.Archive
	source string
	index  map[string]archive.Fetch
}

// NewArchiveFetcher loads the journal index for one source of a prior run.
func NewArchiveFetcher(ctx context.Context, arch *archive.Archive, runID, source string) (*ArchiveFetcher, error) {
	fetches, err := arch.Fetches(ctx, runID, source)
	if err != nil {
		return nil, fmt.Errorf("index archive for %s: %w", source, err)
	}
	index := make(map[string]archive.Fetch, len(fetches))
	for _, f := range fetches {
		index[f.Key] = f // later journal rows win, like the engine's store
	}
	return &ArchiveFetcher{arch: arch, source: source, index: index}, nil
}

// Source implements Fetcher.
func (a *ArchiveFetcher) Source() string {
	return a.source
}

// FetchTask implements Fetcher. The returned task completes synchronously.
func (a *ArchiveFetcher) FetchTask(ctx context.Context, key string, emit Emitter) func() {
	return func() {
		f, ok := a.index[key]
		if !ok {
			emit.Emit(Event{
				Source: a.source,
				Kind:   KindError,
				Key:    key,
				Err:    &FetchError{Source: a.source, Key: key, Err: fmt.Errorf("no archived capture")},
			})
			return
		}
		if !f.OK() {
			emit.Emit(Event{
				Source: a.source,
				Kind:   KindError,
				Key:    key,
				Err:    &FetchError{Source: a.source, Key: key, Err: fmt.Errorf("archived failure: %s", f.Error)},
			})
			return
		}

		body, err := a.arch.ReadBody(f.Path)
		if err != nil {
			emit.Emit(Event{
				Source: a.source,
				Kind:   KindError,
				Key:    key,
				Err:    &FetchError{Source: a.source, Key: key, Err: err},
			})
			return
		}

		_, fields, err := parseKeyed(body)
		if err != nil {
			emit.Emit(Event{
				Source: a.source,
				Kind:   KindError,
				Key:    key,
				Err:    &FetchError{Source: a.source, Key: key, Err: err},
			})
			return
		}
		if fields[KeyField] != key {
			fields[KeyField] = key
		}
		emit.Emit(Event{Source: a.source, Kind: KindRecord, Key: key, Record: fields})
	}
}
