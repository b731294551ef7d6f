// Package transport abstracts the opaque bidirectional frame-oriented byte
// channel the connection state machine runs over (spec.md §5), so the
// state machine never depends on a specific transport implementation.
package transport

import "context"

// Conn is one open connection's frame transport. MockConn provides an
// in-memory implementation for tests; the websocket package drives
// gorilla/websocket connections directly and does not implement Conn.
type Conn interface {
	// ReadMessage blocks for the next inbound frame, or returns an error
	// once the peer disconnects or ctx is cancelled.
	ReadMessage(ctx context.Context) ([]byte, error)

	// WriteMessage sends one outbound frame.
	WriteMessage(ctx context.Context, data []byte) error

	// RemoteAddr identifies the peer, for logging and audit records.
	RemoteAddr() string

	Close() error
}
