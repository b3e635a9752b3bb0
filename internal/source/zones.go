package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/licdata/licmerge/internal/record"
)

// Zones streams the geographic-zone list from a local CSV file of
// `license_number,zone` rows (header optional). It feeds a secondary
// source: stored and queryable, never part of join completion.
type Zones struct {
	path   string
	source string
}

// NewZones creates a zones adapter reading path.
func NewZones(path, source string) *Zones {
	return &Zones{path: path, source: source}
}

// Source implements Adapter.
func (z *Zones) Source() string {
	return z.source
}

// Run implements Adapter.
func (z *Zones) Run(ctx context.Context, emit Emitter) {
	defer emit.Emit(Event{Source: z.source, Kind: KindEOF})

	f, err := os.Open(z.path)
	if err != nil {
		emit.Emit(Event{
			Source: z.source,
			Kind:   KindError,
			Err:    &FetchError{Source: z.source, Key: z.path, Err: err},
		})
		return
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			return
		}
		if err != nil {
			emit.Emit(Event{
				Source: z.source,
				Kind:   KindError,
				Key:    z.path,
				Err:    &FetchError{Source: z.source, Key: z.path, Err: fmt.Errorf("read zones: %w", err)},
			})
			return
		}
		if first {
			first = false
			if row[0] == KeyField {
				continue // header row
			}
		}

		key := record.Normalize(row[0])
		if key == "" {
			continue
		}
		emit.Emit(Event{
			Source: z.source,
			Kind:   KindRecord,
			Key:    key,
			Record: record.Fields{"zone": record.Normalize(row[1])},
		})
	}
}
