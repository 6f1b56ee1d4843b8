package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"nuhub/internal/router"
)

var (
	ErrIdentityInUse    = errors.New("identity already connected")
	ErrReservedIdentity = errors.New("identity is reserved for broadcast")
	ErrNotDeliverable   = errors.New("participant cannot receive frames")
	ErrUnknownConn      = errors.New("participant is not connected")
)

// Conn is a participant connection owned by one of the transports.
type Conn interface {
	router.Participant
	Transport() string
	Deliver(f router.Frame) error
	// DeliverAll queues frames in order without dropping any of them.
	DeliverAll(frames []router.Frame) error
	Close() error
}

// Observer tracks participant counts, per transport.
type Observer interface {
	ParticipantAdded(transport string)
	ParticipantRemoved(transport string)
}

// Manager is the participant registry shared by every transport. It is the
// router's Transport and Lifecycle.
type Manager struct {
	mu         sync.RWMutex
	conns      map[string]Conn // by connection ID
	byIdentity map[string]Conn // by identity text

	hooksMu    sync.RWMutex
	joinHooks  map[string][]func(router.Participant)
	leaveHooks map[string][]func(router.Participant)

	nextIdentity atomic.Int64
	observers    []Observer
	logger       *slog.Logger
}

func NewManager(logger *slog.Logger, observers ...Observer) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		conns:      make(map[string]Conn),
		byIdentity: make(map[string]Conn),
		joinHooks:  make(map[string][]func(router.Participant)),
		leaveHooks: make(map[string][]func(router.Participant)),
		observers:  observers,
		logger:     logger,
	}
}

// NextIdentity hands out sequential numeric identities starting at 0.
func (m *Manager) NextIdentity() router.Token {
	return router.Number(float64(m.nextIdentity.Add(1) - 1))
}

// Add registers c and runs the join hooks for its role.
func (m *Manager) Add(c Conn) error {
	identity := c.Identity()
	if identity.IsSentinel() {
		return ErrReservedIdentity
	}
	key := identity.Text()

	m.mu.Lock()
	if _, taken := m.byIdentity[key]; taken {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrIdentityInUse, key)
	}
	m.conns[c.ID()] = c
	m.byIdentity[key] = c
	m.mu.Unlock()

	m.logger.Info("participant_added",
		"participant_id", c.ID(),
		"identity", key,
		"role", c.Role(),
		"transport", c.Transport(),
	)
	for _, o := range m.observers {
		o.ParticipantAdded(c.Transport())
	}
	for _, fn := range m.hooks(m.joinHooks, c.Role()) {
		fn(c)
	}
	return nil
}

// Remove unregisters c and runs the leave hooks. Removing an unknown
// connection does nothing.
func (m *Manager) Remove(c Conn) {
	m.mu.Lock()
	if _, ok := m.conns[c.ID()]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.conns, c.ID())
	key := c.Identity().Text()
	if m.byIdentity[key] == c {
		delete(m.byIdentity, key)
	}
	m.mu.Unlock()

	m.logger.Info("participant_removed",
		"participant_id", c.ID(),
		"identity", key,
		"transport", c.Transport(),
	)
	for _, o := range m.observers {
		o.ParticipantRemoved(c.Transport())
	}
	for _, fn := range m.hooks(m.leaveHooks, c.Role()) {
		fn(c)
	}
}

func (m *Manager) Lookup(identity router.Token) (router.Participant, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byIdentity[identity.Text()]
	if !ok {
		return nil, false
	}
	return c, true
}

// Send delivers f to one participant.
func (m *Manager) Send(p router.Participant, f router.Frame) error {
	c, err := m.live(p)
	if err != nil {
		return err
	}
	return c.Deliver(f)
}

// SendAll delivers frames to one participant as a single batch. Join replay
// goes through here so it is never cut short by the live send buffer.
func (m *Manager) SendAll(p router.Participant, frames []router.Frame) error {
	c, err := m.live(p)
	if err != nil {
		return err
	}
	return c.DeliverAll(frames)
}

func (m *Manager) live(p router.Participant) (Conn, error) {
	c, ok := p.(Conn)
	if !ok {
		return nil, ErrNotDeliverable
	}
	m.mu.RLock()
	_, live := m.conns[c.ID()]
	m.mu.RUnlock()
	if !live {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConn, c.ID())
	}
	return c, nil
}

// Broadcast delivers f to every participant of role not listed in exclude.
// Delivery failures are logged and skipped.
func (m *Manager) Broadcast(role string, exclude []router.Participant, f router.Frame) {
	skip := make(map[string]struct{}, len(exclude))
	for _, p := range exclude {
		skip[p.ID()] = struct{}{}
	}
	for _, c := range m.snapshot() {
		if c.Role() != role {
			continue
		}
		if _, excluded := skip[c.ID()]; excluded {
			continue
		}
		if err := c.Deliver(f); err != nil {
			m.logger.Warn("failed_to_send_broadcast",
				"participant_id", c.ID(),
				"channel", f.Channel,
				"error", err,
			)
		}
	}
}

func (m *Manager) OnJoin(role string, fn func(router.Participant)) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.joinHooks[role] = append(m.joinHooks[role], fn)
}

func (m *Manager) OnLeave(role string, fn func(router.Participant)) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.leaveHooks[role] = append(m.leaveHooks[role], fn)
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// CloseAll closes every connection. Transports remove them as their read
// loops exit.
func (m *Manager) CloseAll() {
	for _, c := range m.snapshot() {
		if err := c.Close(); err != nil {
			m.logger.Warn("participant_close_failed", "participant_id", c.ID(), "error", err)
		}
	}
}

func (m *Manager) snapshot() []Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Conn, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, c)
	}
	return out
}

func (m *Manager) hooks(set map[string][]func(router.Participant), role string) []func(router.Participant) {
	m.hooksMu.RLock()
	defer m.hooksMu.RUnlock()
	return append([]func(router.Participant){}, set[role]...)
}
