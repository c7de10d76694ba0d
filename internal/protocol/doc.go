// Package protocol defines the wire types shared by the perception agent,
// the gateway, and controller clients.
//
// All messages are UTF-8 JSON, one message per websocket frame, each
// carrying a "type" discriminator. The package also owns identifier
// generation (command ids, element ids) and the error kinds surfaced to
// controllers.
//
// Message directions:
//   - Agent → Gateway: hello, snapshot, delta, pointer, event, heartbeat, ack
//   - Gateway → Agent: click, type, hover, scroll, focus, select,
//     move_mouse, query, request_snapshot
//   - Controller → Gateway: subscribe, list_tabs, query, act, navigate,
//     cdp_status, cdp_type, cdp_key, cdp_eval
//   - Gateway → Controller: mirrored telemetry and acks, plus tabs,
//     candidates, subscribed, navigate_result, cdp_* results, error
package protocol
