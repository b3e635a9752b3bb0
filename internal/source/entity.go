package source

import (
	"context"
	"net/url"
)

// Fetcher builds dispatchable per-entity fetch tasks for one source. The
// returned task is handed to the dispatch scheduler: invoking it initiates
// the fetch and returns immediately; the result arrives later through the
// emitter.
type Fetcher interface {
	Source() string
	FetchTask(ctx context.Context, key string, emit Emitter) func()
}

// Entity is the live origin for per-entity endpoints (quicksearch,
// profile). The request URL is built per key by the configured shape.
type Entity struct {
	client *Client
	source string
	req    func(key string) (path string, query url.Values)
}

// NewQuicksearch creates a fetcher for the quicksearch endpoint, which
// takes the license number as a query parameter.
func NewQuicksearch(client *Client, source string) *Entity {
	return &Entity{
		client: client,
		source: source,
		req: func(key string) (string, url.Values) {
			return "/api/quicksearch", url.Values{"license": []string{key}}
		},
	}
}

// NewProfile creates a fetcher for the profile endpoint, which takes the
// license number as a path segment.
func NewProfile(client *Client, source string) *Entity {
	return &Entity{
		client: client,
		source: source,
		req: func(key string) (string, url.Values) {
			return "/api/profile/" + url.PathEscape(key), nil
		},
	}
}

// Source implements Fetcher.
func (e *Entity) Source() string {
	return e.source
}

// FetchTask returns a task that starts the fetch in its own goroutine.
// The task returns as soon as the fetch is initiated; the scheduler's
// dispatch delay therefore paces fetch starts, not completions.
func (e *Entity) FetchTask(ctx context.Context, key string, emit Emitter) func() {
	return func() {
		go e.fetch(ctx, key, emit)
	}
}

func (e *Entity) fetch(ctx context.Context, key string, emit Emitter) {
	path, query := e.req(key)
	body, err := e.client.get(ctx, e.source, key, path, query)
	if err != nil {
		emit.Emit(Event{
			Source: e.source,
			Kind:   KindError,
			Key:    key,
			Err:    &FetchError{Source: e.source, Key: key, Err: err},
		})
		return
	}

	_, fields, err := parseKeyed(body)
	if err != nil {
		emit.Emit(Event{
			Source: e.source,
			Kind:   KindError,
			Key:    key,
			Err:    &FetchError{Source: e.source, Key: key, Err: err},
		})
		return
	}

	// The record is stored under the requested key even if the payload
	// spells its own key differently; correlation is by what we asked for.
	if fields[KeyField] != key {
		fields[KeyField] = key
	}
	emit.Emit(Event{Source: e.source, Kind: KindRecord, Key: key, Record: fields})
}
