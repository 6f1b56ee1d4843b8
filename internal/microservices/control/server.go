// Package control receives control-surface messages over OSC and hands
// them to the router as raw lines, one handler per module channel.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/hypebeast/go-osc/osc"
)

const maxPacketSize = 65535

// Server is the OSC (UDP) ingress for the control surface.
type Server struct {
	addr       string
	dispatcher *osc.StandardDispatcher
	logger     *slog.Logger

	mu   sync.Mutex
	conn net.PacketConn
}

func NewServer(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:       addr,
		dispatcher: osc.NewStandardDispatcher(),
		logger:     logger.With("component", "osc_ingress"),
	}
}

// Receive registers handler for every OSC message sent to channel.
func (s *Server) Receive(channel string, handler func(line string)) error {
	err := s.dispatcher.AddMsgHandler(channel, func(msg *osc.Message) {
		line := ArgumentsToLine(msg.Arguments)
		s.logger.Debug("control_message_received", "channel", msg.Address, "line", line)
		handler(line)
	})
	if err != nil {
		return fmt.Errorf("failed to register OSC handler for %s: %w", channel, err)
	}
	return nil
}

// Listen binds the UDP socket.
func (s *Server) Listen() error {
	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen for OSC on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return nil
}

// LocalAddr is the bound address.
func (s *Server) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Serve dispatches packets until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("osc ingress is not listening")
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.logger.Info("osc_ingress_started", "addr", conn.LocalAddr().String())
	buf := make([]byte, maxPacketSize)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("osc_ingress_stopped")
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("osc ingress stopped: %w", err)
		}
		// packets are dispatched inline so lines reach the router in arrival order
		packet, err := osc.ParsePacket(string(buf[:n]))
		if err != nil {
			s.logger.Warn("invalid_osc_packet", "size", n, "error", err)
			continue
		}
		s.dispatcher.Dispatch(packet)
	}
}

// ArgumentsToLine flattens OSC arguments into the space separated line the
// router decodes.
func ArgumentsToLine(args []interface{}) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case string:
			parts = append(parts, v)
		case int32:
			parts = append(parts, strconv.FormatInt(int64(v), 10))
		case int64:
			parts = append(parts, strconv.FormatInt(v, 10))
		case float32:
			parts = append(parts, strconv.FormatFloat(float64(v), 'g', -1, 32))
		case float64:
			parts = append(parts, strconv.FormatFloat(v, 'g', -1, 64))
		case bool:
			parts = append(parts, strconv.FormatBool(v))
		case nil:
			// OSC nil carries no token
		case []byte:
			parts = append(parts, string(v))
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, " ")
}
