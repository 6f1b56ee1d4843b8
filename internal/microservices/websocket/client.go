package websocket

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"nuhub/internal/router"
	"nuhub/internal/session"
)

const ( // ping pong(2-way heartbeat) to keep connection alive
	WriteWait      = 10 * time.Second    // max time to write a message to the peer
	PongWait       = 60 * time.Second    // no pong within this window = dead connection
	PingPeriod     = (PongWait * 9) / 10 // must be shorter than PongWait
	MaxMessageSize = 4096                // inbound limit, participants only send control envelopes
	SendBufferSize = 256                 // pending live frames; replay batches are not counted against it
)

const transportName = "websocket"

// Client is one participant connected over WebSocket.
type Client struct {
	id       string
	identity router.Token
	role     string
	conn     *websocket.Conn
	outbox   *session.Outbox
	limiter  *rate.Limiter
	manager  *session.Manager
	logger   *slog.Logger
}

func NewClient(id string, identity router.Token, role string, conn *websocket.Conn, manager *session.Manager, limiter *rate.Limiter, logger *slog.Logger) *Client {
	return &Client{
		id:       id,
		identity: identity,
		role:     role,
		conn:     conn,
		outbox:   session.NewOutbox(SendBufferSize),
		limiter:  limiter,
		manager:  manager,
		logger:   logger.With("participant_id", id, "transport", transportName),
	}
}

func (c *Client) ID() string             { return c.id }
func (c *Client) Identity() router.Token { return c.identity }
func (c *Client) Role() string           { return c.role }
func (c *Client) Transport() string      { return transportName }

func (c *Client) Deliver(f router.Frame) error {
	return c.outbox.PushFrame(f)
}

func (c *Client) DeliverAll(frames []router.Frame) error {
	return c.outbox.PushFrames(frames)
}

// Send queues an arbitrary envelope.
func (c *Client) Send(e session.Envelope) error {
	return c.outbox.PushEnvelope(e)
}

// ReadPump reads until the peer goes away, then unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.manager.Remove(c)
		c.Close()
	}()

	c.conn.SetReadLimit(MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket_read_error", "error", err)
			} else {
				c.logger.Info("client_disconnected")
			}
			return
		}
		if !c.limiter.Allow() {
			c.logger.Warn("rate_limit_exceeded")
			c.Send(session.ErrorEnvelope("rate limit exceeded"))
			continue
		}
		env, err := session.ParseEnvelope(data)
		if err != nil {
			c.logger.Warn("invalid_json_received", "error", err.Error())
			continue
		}
		switch env.Type {
		case session.TypePing:
			c.Send(session.Envelope{Type: session.TypePong})
		default:
			c.logger.Debug("unexpected_message_ignored", "message_type", env.Type)
		}
	}
}

// WritePump drains the outbox and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close() // unblocks ReadPump
	}()

	for {
		select {
		case <-c.outbox.Ready():
			for _, data := range c.outbox.Drain() {
				c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
				if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
					c.logger.Warn("websocket_write_failed", "error", err)
					return
				}
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.outbox.Done():
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(WriteWait))
			return
		}
	}
}

// Close asks the write pump to send a close frame and drop the socket.
func (c *Client) Close() error {
	c.outbox.Close()
	return nil
}
