// Package policy performs pre-execution admission for commands: domain
// allow/block lists, dual-window rate limiting, and action-name pattern
// blocks for payment and destructive actions, plus structured audit
// logging of every decision.
//
// The configuration is process-wide and mutable at runtime; the
// rate-limit history is shared across tabs and controllers, so limits
// are coarse global ones by design.
package policy
