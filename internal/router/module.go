package router

import (
	"log/slog"
)

// Method is a module-specific command invoked instead of the generic
// store-and-forward path.
type Method func(m *Module, args Value)

// Module is one named control domain: one channel, one parameter namespace.
type Module struct {
	name            string
	channel         string
	identityRouting bool
	params          *ParamStore
	methods         map[string]Method // dispatch table, fixed after construction
	dispatch        func(m *Module, tokens []Token) Outcome
	transport       Transport
	observers       []Observer
	logger          *slog.Logger
}

type Option func(*Module)

// WithIdentityRouting selects the identity-routed dispatch variant.
func WithIdentityRouting() Option {
	return func(m *Module) { m.identityRouting = true }
}

// WithMethod adds a named method to the dispatch table.
func WithMethod(name string, fn Method) Option {
	return func(m *Module) { m.methods[name] = fn }
}

func WithObserver(o Observer) Option {
	return func(m *Module) { m.observers = append(m.observers, o) }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewModule builds a module bound to transport. The dispatch variant and
// the method table are fixed here and never change afterwards.
func NewModule(name string, transport Transport, opts ...Option) *Module {
	m := &Module{
		name:      name,
		channel:   ChannelName(name),
		params:    NewParamStore(),
		methods:   make(map[string]Method),
		transport: transport,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("module", name)
	if m.identityRouting {
		m.dispatch = dispatchRouted
	} else {
		m.dispatch = dispatchDefault
	}
	return m
}

func (m *Module) Name() string          { return m.name }
func (m *Module) Channel() string       { return m.channel }
func (m *Module) IdentityRouting() bool { return m.identityRouting }

// Params exposes the store. Only safe from the router loop.
func (m *Module) Params() *ParamStore { return m.params }

func (m *Module) Transport() Transport { return m.transport }

func (m *Module) Logger() *slog.Logger { return m.logger }

// HasMethod reports whether name is in the dispatch table.
func (m *Module) HasMethod(name string) bool {
	_, ok := m.methods[name]
	return ok
}

// HandleLine decodes a raw control line and dispatches it.
func (m *Module) HandleLine(line string) Outcome {
	return m.Dispatch(Decode(line))
}

// Dispatch routes one decoded message.
func (m *Module) Dispatch(tokens []Token) Outcome {
	outcome := OutcomeDropped
	if len(tokens) > 0 {
		outcome = m.dispatch(m, tokens)
	}
	for _, o := range m.observers {
		o.Dispatched(m.name, outcome)
	}
	return outcome
}

// Join replays every stored parameter to a newly connected player.
func (m *Module) Join(p Participant) int {
	n := m.Replay(p)
	m.logger.Info("player_joined",
		"participant_id", p.ID(),
		"identity", p.Identity().Text(),
		"replayed", n,
	)
	return n
}

// Leave is a no-op: module state does not depend on any participant.
func (m *Module) Leave(p Participant) {}

// Replay sends one [name, value] frame per stored parameter to p.
func (m *Module) Replay(p Participant) int {
	frames := make([]Frame, 0, m.params.Len())
	m.params.Each(func(name string, v Value) {
		frames = append(frames, m.frame(Scalar(String(name)), v))
	})
	sent := m.sendAll(p, frames)
	m.replayed(sent)
	return sent
}

func (m *Module) sendAll(p Participant, frames []Frame) int {
	if len(frames) == 0 {
		return 0
	}
	if bs, ok := m.transport.(BatchSender); ok {
		if err := bs.SendAll(p, frames); err != nil {
			m.logger.Warn("replay_send_failed",
				"participant_id", p.ID(),
				"frames", len(frames),
				"error", err,
			)
			return 0
		}
		return len(frames)
	}
	sent := 0
	for _, f := range frames {
		if err := m.transport.Send(p, f); err != nil {
			m.logger.Warn("replay_send_failed",
				"participant_id", p.ID(),
				"param", f.Args[0].String(),
				"error", err,
			)
			continue
		}
		sent++
	}
	return sent
}

// ReplayAll broadcasts every stored parameter to all players.
func (m *Module) ReplayAll() int {
	n := 0
	m.params.Each(func(name string, v Value) {
		m.transport.Broadcast(PlayerRole, nil, m.frame(Scalar(String(name)), v))
		n++
	})
	m.replayed(n)
	return n
}

func (m *Module) store(name string, v Value) {
	m.params.Set(name, v)
	for _, o := range m.observers {
		o.Stored(m.name, name, v)
	}
}

func (m *Module) replayed(frames int) {
	for _, o := range m.observers {
		o.Replayed(m.name, frames)
	}
}

func (m *Module) frame(args ...Value) Frame {
	return Frame{Channel: m.channel, Args: args}
}

func scalars(tokens []Token) []Value {
	out := make([]Value, len(tokens))
	for i, t := range tokens {
		out[i] = Scalar(t)
	}
	return out
}
