package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var (
	ErrUnknownModule   = errors.New("unknown module")
	ErrDuplicateModule = errors.New("module already mounted")
	ErrRouterStopped   = errors.New("router stopped")
	ErrSnapshotFailed  = errors.New("snapshot failed")
)

const defaultQueueSize = 1024

type eventKind int

const (
	eventLine eventKind = iota
	eventJoin
	eventLeave
	eventSnapshot
)

type event struct {
	kind        eventKind
	module      *Module
	line        string
	participant Participant
	reply       chan map[string]Value
}

// Router owns the modules and runs every control line and join through a
// single loop, one event at a time, in arrival order.
type Router struct {
	ingress   Ingress
	lifecycle Lifecycle
	logger    *slog.Logger

	mu      sync.RWMutex
	modules map[string]*Module // by name

	events chan event
	done   chan struct{}
	once   sync.Once
}

type RouterOption func(*Router)

func WithQueueSize(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.events = make(chan event, n)
		}
	}
}

func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = logger }
}

func New(ingress Ingress, lifecycle Lifecycle, opts ...RouterOption) *Router {
	r := &Router{
		ingress:   ingress,
		lifecycle: lifecycle,
		logger:    slog.Default(),
		modules:   make(map[string]*Module),
		events:    make(chan event, defaultQueueSize),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mount registers m on its channel and hooks its join replay and leave
// handler for players.
func (r *Router) Mount(m *Module) error {
	r.mu.Lock()
	if _, exists := r.modules[m.Name()]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateModule, m.Name())
	}
	r.modules[m.Name()] = m
	r.mu.Unlock()

	if err := r.ingress.Receive(m.Channel(), func(line string) {
		r.enqueue(event{kind: eventLine, module: m, line: line})
	}); err != nil {
		r.mu.Lock()
		delete(r.modules, m.Name())
		r.mu.Unlock()
		return fmt.Errorf("failed to receive on %s: %w", m.Channel(), err)
	}

	r.lifecycle.OnJoin(PlayerRole, func(p Participant) {
		r.enqueue(event{kind: eventJoin, module: m, participant: p})
	})
	r.lifecycle.OnLeave(PlayerRole, func(p Participant) {
		r.enqueue(event{kind: eventLeave, module: m, participant: p})
	})

	r.logger.Info("module_mounted",
		"module", m.Name(),
		"channel", m.Channel(),
		"identity_routing", m.IdentityRouting(),
	)
	return nil
}

// Module returns a mounted module by name.
func (r *Router) Module(name string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// Modules returns the mounted modules sorted by name.
func (r *Router) Modules() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Run processes events until ctx is cancelled.
func (r *Router) Run(ctx context.Context) error {
	defer r.once.Do(func() { close(r.done) })
	r.logger.Info("router_started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("router_stopped")
			return nil
		case ev := <-r.events:
			r.handle(ev)
		}
	}
}

// Snapshot copies a module's parameters from inside the loop.
func (r *Router) Snapshot(ctx context.Context, name string) (map[string]Value, error) {
	m, ok := r.Module(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	reply := make(chan map[string]Value, 1)
	select {
	case r.events <- event{kind: eventSnapshot, module: m, reply: reply}:
	case <-r.done:
		return nil, ErrRouterStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case snap, ok := <-reply:
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotFailed, name)
		}
		return snap, nil
	case <-r.done:
		return nil, ErrRouterStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// enqueue blocks while the queue is full so that no line is lost or reordered.
func (r *Router) enqueue(ev event) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

func (r *Router) handle(ev event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("router_event_panic",
				"module", ev.module.Name(),
				"panic", fmt.Sprint(rec),
			)
			if ev.reply != nil {
				close(ev.reply)
			}
		}
	}()

	switch ev.kind {
	case eventLine:
		ev.module.HandleLine(ev.line)
	case eventJoin:
		ev.module.Join(ev.participant)
	case eventLeave:
		ev.module.Leave(ev.participant)
	case eventSnapshot:
		ev.reply <- ev.module.Params().Snapshot()
	}
}
