// Package engine implements the correlation core: a multi-source join keyed
// by entity key (a license number), with partial-completion signaling.
//
// The engine owns one key→record map per configured source. Primary sources
// are required for a key's join; the instant a key holds a record from every
// primary source it transitions to merged, exactly once, and the merged
// record is emitted. Secondary sources are stored and queryable but never
// participate in join completion.
//
// Thread-safety model (single-writer): all mutation happens on one logical
// timeline - the run loop goroutine. Update, Get, Has, IDs and SetExhausted
// are synchronous and unguarded; callers must serialize them through that
// timeline. IDs returns a defensive snapshot so an iteration started before
// further updates never observes a torn key set.
package engine
