// Package stream subscribes to the realtime event feed over WebSocket.
// Events are delivered at-least-once; the subscriber's job is to keep the
// connection alive, report status transitions, and hand decoded events to
// the sync engine at a bounded rate. It never interprets events itself.
package stream

// Status is the connection state exposed to consumers. There are exactly
// three states: transitions go disconnected → connecting → connected, and
// any failure drops straight back to disconnected.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)
