package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
)

// Adapter streams records for one named source into an emitter. Run emits
// zero or more record events, zero or more error events, and exactly one
// EOF event, then returns.
type Adapter interface {
	Source() string
	Run(ctx context.Context, emit Emitter)
}

// Roster is the live origin of the base primary source: it pages through
// the registry's bulk roster endpoint and emits one record per listed
// license.
type Roster struct {
	client *Client
	source string
	path   string
}

// NewRoster creates a live roster adapter reading pages from path
// (e.g. "/api/cdc/roster") and emitting under the given source name.
func NewRoster(client *Client, source, path string) *Roster {
	return &Roster{client: client, source: source, path: path}
}

// Source implements Adapter.
func (r *Roster) Source() string {
	return r.source
}

// Run pages until the service reports no further pages. A page-level fetch
// failure ends the stream (there is no way to know the next page); a
// malformed individual record is reported and skipped.
func (r *Roster) Run(ctx context.Context, emit Emitter) {
	defer emit.Emit(Event{Source: r.source, Kind: KindEOF})

	for page := 1; ; page++ {
		name := "page-" + strconv.Itoa(page)
		body, err := r.client.get(ctx, r.source, name, r.path, url.Values{
			"page": []string{strconv.Itoa(page)},
		})
		if err != nil {
			emit.Emit(Event{
				Source: r.source,
				Kind:   KindError,
				Key:    name,
				Err:    &FetchError{Source: r.source, Key: name, Err: err},
			})
			return
		}

		var p rosterPage
		if err := json.Unmarshal(body, &p); err != nil {
			emit.Emit(Event{
				Source: r.source,
				Kind:   KindError,
				Key:    name,
				Err:    &FetchError{Source: r.source, Key: name, Err: fmt.Errorf("decode page: %w", err)},
			})
			return
		}

		r.emitPage(name, p, emit)
		if !p.Next {
			return
		}
	}
}

// emitPage emits every parseable license on a page.
func (r *Roster) emitPage(name string, p rosterPage, emit Emitter) {
	for i, raw := range p.Licenses {
		key, fields, err := parseKeyed(raw)
		if err != nil {
			slog.Warn("roster record skipped",
				"source", r.source, "page", name, "index", i, "error", err)
			emit.Emit(Event{
				Source: r.source,
				Kind:   KindError,
				Key:    fmt.Sprintf("%s[%d]", name, i),
				Err:    &FetchError{Source: r.source, Key: name, Err: err},
			})
			continue
		}
		emit.Emit(Event{Source: r.source, Kind: KindRecord, Key: key, Record: fields})
	}
}
