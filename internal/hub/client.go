package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"classpoll/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 8192
	sendBufferSize = 256
)

// Client is one WebSocket connection managed by the hub. Outbound
// events are queued on a buffered channel drained by WritePump; the
// hub drops the client instead of blocking when the buffer fills.
type Client struct {
	ID     string
	conn   *websocket.Conn
	send   chan domain.OutboundEnvelope
	logger *zap.Logger
}

// NewClient wraps an upgraded connection
func NewClient(id string, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		ID:     id,
		conn:   conn,
		send:   make(chan domain.OutboundEnvelope, sendBufferSize),
		logger: logger.With(zap.String("client_id", id)),
	}
}

// trySend enqueues an envelope without blocking. Returns false when the
// client's buffer is full. Only the hub calls this, under its lock, so
// the send channel cannot be closed concurrently.
func (c *Client) trySend(env domain.OutboundEnvelope) bool {
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// WritePump drains the send channel onto the connection and keeps it
// alive with periodic pings. It exits when the channel is closed or a
// write fails, closing the connection either way; pending envelopes
// queued before the close are still flushed.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("websocket ping failed", zap.Error(err))
				return
			}
		}
	}
}

// ReadPump reads envelopes from the connection until it closes, passing
// each to onEvent. onClose runs exactly once on the way out. The read
// deadline is refreshed by pongs and by successful reads.
func (c *Client) ReadPump(onEvent func(domain.Envelope), onClose func()) {
	defer onClose()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env domain.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		onEvent(env)
	}
}
