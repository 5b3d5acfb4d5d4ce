// Package relay is the signaling relay: it authorizes room entry,
// tracks who is connected where and forwards negotiation envelopes
// between participants. It never inspects SDP payloads and never
// touches media.
package relay

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var ErrBackpressure = errors.New("backpressure")

// wsConn wraps one websocket with a bounded send queue. A slow reader
// gets its frames dropped (TrySend fails) rather than stalling the
// whole room.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newWSConn(conn *websocket.Conn, buffer int) *wsConn {
	return &wsConn{
		conn: conn,
		send: make(chan []byte, buffer),
	}
}

func (c *wsConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
