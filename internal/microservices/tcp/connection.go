package tcp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"nuhub/internal/auth"
	"nuhub/internal/router"
	"nuhub/internal/session"
)

// messages are small JSON envelopes; anything bigger is dropped
const MaxMessageSize = 64 * 1024
const MaxDeadlineDuration = 5 * time.Minute // read timeout, reset on every line
const HelloTimeout = 10 * time.Second
const WriteWait = 10 * time.Second
const SendBufferSize = 256 // pending live frames; replay batches are not counted against it

const transportName = "tcp"

type ClientConnection struct {
	id       string // unique connection ID
	conn     net.Conn
	writer   *bufio.Writer
	manager  *session.Manager
	auth     *auth.Service
	limiter  *rate.Limiter // inbound messages per second
	outbox   *session.Outbox
	identity router.Token
	role     string
	logger   *slog.Logger

	closeOnce sync.Once
}

func NewClientConnection(conn net.Conn, manager *session.Manager, authSvc *auth.Service, limit rate.Limit, burst int, logger *slog.Logger) *ClientConnection {
	id := uuid.NewString()
	return &ClientConnection{
		id:      id,
		conn:    conn,
		writer:  bufio.NewWriter(conn),
		manager: manager,
		auth:    authSvc,
		limiter: rate.NewLimiter(limit, burst),
		outbox:  session.NewOutbox(SendBufferSize),
		role:    router.PlayerRole,
		logger:  logger.With("participant_id", id, "transport", transportName),
	}
}

func (c *ClientConnection) ID() string             { return c.id }
func (c *ClientConnection) Identity() router.Token { return c.identity }
func (c *ClientConnection) Role() string           { return c.role }
func (c *ClientConnection) Transport() string      { return transportName }

// Deliver queues a module frame for the write pump.
func (c *ClientConnection) Deliver(f router.Frame) error {
	return c.outbox.PushFrame(f)
}

// DeliverAll queues a replay batch; it is not bounded by SendBufferSize.
func (c *ClientConnection) DeliverAll(frames []router.Frame) error {
	return c.outbox.PushFrames(frames)
}

// Listen runs the connection until the peer leaves or the connection is closed.
func (c *ClientConnection) Listen() {
	defer c.Close()
	reader := bufio.NewReaderSize(c.conn, 4096)

	c.logger.Info("client_started_listening", "remote_addr", c.conn.RemoteAddr().String())

	if err := c.handshake(reader); err != nil {
		c.logger.Warn("handshake_failed", "error", err)
		c.writeNow(session.ErrorEnvelope(err.Error()))
		return
	}

	if err := c.manager.Add(c); err != nil {
		c.logger.Warn("register_failed", "error", err)
		c.writeNow(session.ErrorEnvelope(err.Error()))
		return
	}
	defer c.manager.Remove(c)

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		c.writePump()
	}()
	defer func() { <-pumpDone }()
	defer c.outbox.Close()

	c.readLoop(reader)
}

// handshake reads the hello line and settles identity and role. The
// welcome is written before the connection becomes visible to the router.
func (c *ClientConnection) handshake(reader *bufio.Reader) error {
	c.conn.SetReadDeadline(time.Now().Add(HelloTimeout))
	line, err := readLine(reader)
	if err != nil {
		return fmt.Errorf("failed to read hello: %w", err)
	}
	env, err := session.ParseEnvelope(line)
	if err != nil {
		return err
	}
	if env.Type != session.TypeHello {
		return fmt.Errorf("expected hello, got %q", env.Type)
	}

	claims, err := c.auth.Authenticate(env.Token)
	if err != nil {
		return err
	}
	c.role = firstNonEmpty(claims.Role, env.Role, router.PlayerRole)
	if claims.PlayerID != nil {
		c.identity = *claims.PlayerID
	} else {
		c.identity = c.manager.NextIdentity()
	}
	return c.writeNow(session.WelcomeEnvelope(c.id, c.identity, c.role))
}

func (c *ClientConnection) readLoop(reader *bufio.Reader) {
	c.conn.SetReadDeadline(time.Now().Add(MaxDeadlineDuration))
	for {
		line, err := readLine(reader)
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				c.logger.Warn("message_too_large", "max_size", MaxMessageSize)
				continue
			}
			c.logReadEnd(err)
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(MaxDeadlineDuration))

		if len(line) == 0 {
			continue
		}
		if !c.limiter.Allow() {
			c.logger.Warn("rate_limit_exceeded")
			c.outbox.PushEnvelope(session.ErrorEnvelope("rate limit exceeded"))
			continue
		}

		env, err := session.ParseEnvelope(line)
		if err != nil {
			c.logger.Warn("invalid_json_received", "error", err.Error())
			continue
		}
		switch env.Type {
		case session.TypePing:
			c.outbox.PushEnvelope(session.Envelope{Type: session.TypePong})
		default:
			// participants are receivers; anything else is ignored
			c.logger.Debug("unexpected_message_ignored", "message_type", env.Type)
		}
	}
}

func (c *ClientConnection) writePump() {
	for {
		select {
		case <-c.outbox.Ready():
			for _, data := range c.outbox.Drain() {
				if err := c.write(data); err != nil {
					c.logger.Warn("client_write_failed", "error", err)
					c.conn.Close()
					return
				}
			}
		case <-c.outbox.Done():
			return
		}
	}
}

func (c *ClientConnection) writeNow(e session.Envelope) error {
	data, err := e.Marshal()
	if err != nil {
		return err
	}
	return c.write(data)
}

// write sends data + "\n" and flushes
func (c *ClientConnection) write(data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := c.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := c.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	return nil
}

func (c *ClientConnection) logReadEnd(err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		c.logger.Info("client_disconnected")
	case errors.As(err, &netErr) && netErr.Timeout():
		c.logger.Warn("client_read_timeout")
	case errors.Is(err, net.ErrClosed) ||
		strings.Contains(err.Error(), "closed network connection") ||
		strings.Contains(err.Error(), "connection was aborted") ||
		strings.Contains(err.Error(), "forcibly closed"):
		// expected during shutdown
	default:
		c.logger.Error("client_read_error", "error", err)
	}
}

// Close closes the socket; Listen unwinds and unregisters.
func (c *ClientConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.outbox.Close()
		err = c.conn.Close()
	})
	return err
}

var errLineTooLong = errors.New("line too long")

// readLine returns one line without its terminator. Oversized lines are
// consumed and reported as errLineTooLong.
func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	tooLong := false
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return nil, err
		}
		if !tooLong {
			line = append(line, chunk...)
			if len(line) > MaxMessageSize {
				tooLong = true
				line = nil
			}
		}
		if !isPrefix {
			break
		}
	}
	if tooLong {
		return nil, errLineTooLong
	}
	return line, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
