package tcp

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/time/rate"

	"nuhub/internal/auth"
	"nuhub/internal/session"
)

// TCPServer accepts participant connections speaking newline-delimited JSON.
type TCPServer struct {
	Addr    string
	Manager *session.Manager // shared with the other transports and the router

	auth   *auth.Service
	limit  rate.Limit
	burst  int
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{} // open sockets, including ones still in handshake
	quitChan chan struct{}         // closed on Stop
	wg       sync.WaitGroup
}

type Option func(*TCPServer)

func WithAuth(svc *auth.Service) Option {
	return func(s *TCPServer) { s.auth = svc }
}

// WithRateLimit bounds inbound messages per connection.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *TCPServer) {
		s.limit = rate.Limit(perSecond)
		s.burst = burst
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *TCPServer) { s.logger = logger }
}

func NewServer(addr string, manager *session.Manager, opts ...Option) *TCPServer {
	s := &TCPServer{
		Addr:     addr,
		Manager:  manager,
		auth:     auth.NewService(""),
		limit:    rate.Limit(10),
		burst:    20,
		logger:   slog.Default(),
		conns:    make(map[net.Conn]struct{}),
		quitChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "tcp_server")
	return s
}

// Listen binds the address; Serve must follow.
func (s *TCPServer) Listen() error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP server, error: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return nil
}

// ListenAddr is the bound address, useful when Addr used port 0.
func (s *TCPServer) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds and serves until Stop.
func (s *TCPServer) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

func (s *TCPServer) Serve() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("tcp server is not listening")
	}
	s.logger.Info("tcp_server_started", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quitChan:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("failed_to_accept_connection", "error", err)
			continue
		}
		s.wg.Add(1)
		go func(conn net.Conn) {
			defer s.wg.Done()
			s.handleConnection(conn)
		}(conn)
	}
}

func (s *TCPServer) handleConnection(conn net.Conn) {
	s.mu.Lock()
	select {
	case <-s.quitChan:
		s.mu.Unlock()
		conn.Close()
		return
	default:
	}
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	client := NewClientConnection(conn, s.Manager, s.auth, s.limit, s.burst, s.logger)
	client.Listen()
}

// Stop closes the listener and every TCP participant, then waits for the
// connection goroutines.
func (s *TCPServer) Stop() {
	s.mu.Lock()
	select {
	case <-s.quitChan:
		s.mu.Unlock()
		return
	default:
		close(s.quitChan)
	}
	listener := s.listener
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	for _, conn := range conns {
		conn.Close()
	}
	s.wg.Wait()
	s.logger.Info("tcp_server_stopped")
}
