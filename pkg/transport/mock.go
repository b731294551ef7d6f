package transport

import (
	"context"
	"errors"
	"sync"
)

// ErrMockClosed is returned by a MockConn's ReadMessage/WriteMessage once
// Close has been called.
var ErrMockClosed = errors.New("transport: mock connection closed")

// MockConn is an in-memory Conn for tests: Push feeds bytes as if they had
// arrived from the peer, and Written reports what was sent back.
type MockConn struct {
	remote string

	mu      sync.Mutex
	inbound chan []byte
	written [][]byte
	closed  bool
}

// NewMockConn creates a MockConn reporting remoteAddr as its peer address.
func NewMockConn(remoteAddr string) *MockConn {
	return &MockConn{remote: remoteAddr, inbound: make(chan []byte, 16)}
}

// Push enqueues data as the next frame ReadMessage will return.
func (m *MockConn) Push(data []byte) {
	m.inbound <- data
}

func (m *MockConn) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-m.inbound:
		if !ok {
			return nil, ErrMockClosed
		}
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *MockConn) WriteMessage(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrMockClosed
	}
	m.written = append(m.written, append([]byte(nil), data...))
	return nil
}

// Written returns every frame written so far, in order.
func (m *MockConn) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.written...)
}

func (m *MockConn) RemoteAddr() string { return m.remote }

func (m *MockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.inbound)
	}
	return nil
}
