// Package agent hosts the in-page side of the pipeline: the perception
// engine and executor wired to a gateway websocket through a transport
// that survives disconnection.
//
// The transport queues telemetry while the link is down (with
// backpressure that keeps only the newest full-state messages), sends a
// heartbeat on an open link, and routes inbound commands to the
// executor. The mirror feeds a live browser page into the document
// surface over CDP so the engine's observers fire on real page change.
package agent
