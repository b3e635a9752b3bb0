// Package archive persists the raw material of a run: every response body
// fetched from the live registry is captured to disk, and a SQLite journal
// records which source produced which key, in arrival order.
//
// The journal serves two purposes. It is an audit trail of what the live
// service returned, and it is the input for replay runs: a replay walks the
// journal rows of a prior run in insertion order and feeds the captured
// bodies back through the same source adapters, so a run can be reproduced
// without touching the remote service.
//
// Join state is never persisted here; a restart always correlates from
// scratch.
package archive
