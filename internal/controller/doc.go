// Package controller implements the controller-side client: typed
// request/response over the gateway websocket, a telemetry subscription
// stream, and high-level convenience operations built on candidate
// search.
package controller
