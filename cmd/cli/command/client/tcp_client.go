package client

// tcp_client.go = joins the hub as a TCP player and reads frames.

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"nuhub/internal/session"
)

// PlayerClient is a TCP participant connection.
type PlayerClient struct {
	serverAddr string
	conn       net.Conn
	reader     *bufio.Reader
	welcome    session.Envelope
	mu         sync.Mutex // serialises writes
}

func NewPlayerClient(serverAddr string) *PlayerClient {
	return &PlayerClient{serverAddr: serverAddr}
}

// Connect dials the hub, sends hello and waits for the welcome.
func (c *PlayerClient) Connect(token, role string) (session.Envelope, error) {
	conn, err := net.DialTimeout("tcp", c.serverAddr, 10*time.Second)
	if err != nil {
		return session.Envelope{}, fmt.Errorf("connection failed: %w", err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)

	if err := c.write(session.Envelope{Type: session.TypeHello, Role: role, Token: token}); err != nil {
		conn.Close()
		return session.Envelope{}, fmt.Errorf("hello failed: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	env, err := c.Read()
	conn.SetReadDeadline(time.Time{})
	if err != nil {
		conn.Close()
		return session.Envelope{}, fmt.Errorf("welcome failed: %w", err)
	}
	switch env.Type {
	case session.TypeWelcome:
		c.welcome = env
		return env, nil
	case session.TypeError:
		conn.Close()
		return env, fmt.Errorf("hub rejected connection: %s", env.Message)
	default:
		conn.Close()
		return env, fmt.Errorf("unexpected %q before welcome", env.Type)
	}
}

// Read blocks for the next envelope.
func (c *PlayerClient) Read() (session.Envelope, error) {
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return session.Envelope{}, err
	}
	return session.ParseEnvelope(line)
}

func (c *PlayerClient) Ping() error {
	return c.write(session.Envelope{Type: session.TypePing})
}

func (c *PlayerClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *PlayerClient) write(env session.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.conn.Write(data)
	return err
}
