// Package world holds the gateway's in-memory view of every connected
// tab: url, viewport, the candidate map, and a bounded history of the
// deltas that produced it.
//
// Handlers are synchronous and idempotent in effect: replaying a delta
// is harmless (adds become overwrites, removals of absent ids are
// no-ops). Candidate names are sanitized on ingest because they are
// echoed back out through the HTTP read surface.
package world
