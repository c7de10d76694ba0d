// Package gateway brokers between perception agents and controllers: it
// aggregates agent telemetry into world state, fans it out to subscribed
// controllers, and runs the command pipeline (policy check, transmit,
// timeout, exactly-once acknowledgment).
//
// Each websocket frame is processed to completion before the next frame
// of that connection; shared state (world store, pending table, policy,
// connection registries) is internally synchronized so the gateway can
// serve connections from multiple goroutines.
package gateway
