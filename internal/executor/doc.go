// Package executor converts commands into DOM-level input sequences and
// produces exactly one acknowledgment per command.
//
// Click, hover, and move_mouse synthesize the browser's native event
// order; type drives per-character keydown/input/keyup with optional
// inter-key delay; select and focus manipulate control state directly.
// Click and hover answer with a verify ack carrying a re-read of the
// target's bounds and hit test; scroll answers ok with the new scroll
// offsets, and the other commands answer ok (type and select carry the
// resulting value, query its matches).
package executor
