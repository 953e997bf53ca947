// Package livesrv pushes the latest values of bound producers to
// browsers over WebSocket.
//
// A Server is configured with named feeds. Each WebSocket connection
// gets its own tracked loop and one binding per feed; whenever a feed
// delivers a new value, the binding invalidates, the server renders the
// binding on the connection's loop, and the snapshot is pushed to the
// client as a JSON frame:
//
//	{"name":"ticks","value":42,"seq":7}
//
// Because every binding subscribes through the untracked dispatcher,
// a connection's loop is idle between deliveries even when a feed
// never stops emitting. End-to-end tests can therefore wait on the
// loop without special-casing endless feeds.
//
// The server exposes /live (WebSocket), /healthz, and /metrics
// (Prometheus).
package livesrv
