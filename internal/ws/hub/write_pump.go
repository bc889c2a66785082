package hub

import (
	"time"

	"github.com/gorilla/websocket"
)

// Socket timeout contract: every write must land within writeWait, a peer
// silent for longer than PongWait is considered gone, and pings go out often
// enough that a healthy peer always answers inside that window.
const (
	writeWait  = 10 * time.Second
	PongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// WritePump drains the connection's send queue onto the wire and keeps the
// peer alive with pings. It exits when the queue is closed or a write fails.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
