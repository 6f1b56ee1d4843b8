package router

import (
	"sync"
)

type fakeParticipant struct {
	id       string
	identity Token
	role     string
}

func (p *fakeParticipant) ID() string      { return p.id }
func (p *fakeParticipant) Identity() Token { return p.identity }
func (p *fakeParticipant) Role() string    { return p.role }

type sentFrame struct {
	to    Participant
	frame Frame
}

type broadcastFrame struct {
	role  string
	frame Frame
}

// fakeTransport records every send and broadcast.
type fakeTransport struct {
	mu          sync.Mutex
	players     map[string]Participant
	sends       []sentFrame
	broadcasts  []broadcastFrame
	lookupCalls int
}

func newFakeTransport(players ...Participant) *fakeTransport {
	t := &fakeTransport{players: make(map[string]Participant)}
	for _, p := range players {
		t.players[p.Identity().Text()] = p
	}
	return t
}

func (t *fakeTransport) Send(p Participant, f Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sends = append(t.sends, sentFrame{to: p, frame: f})
	return nil
}

func (t *fakeTransport) Broadcast(role string, exclude []Participant, f Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.broadcasts = append(t.broadcasts, broadcastFrame{role: role, frame: f})
}

func (t *fakeTransport) Lookup(identity Token) (Participant, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lookupCalls++
	p, ok := t.players[identity.Text()]
	return p, ok
}

func (t *fakeTransport) sendCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sends)
}

func (t *fakeTransport) broadcastCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.broadcasts)
}

// batchTransport delivers replay batches through SendAll.
type batchTransport struct {
	*fakeTransport
	batches [][]Frame
	err     error
}

func (t *batchTransport) SendAll(p Participant, frames []Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.batches = append(t.batches, frames)
	return nil
}

// fakeIngress keeps handlers so tests can push lines by channel.
type fakeIngress struct {
	mu       sync.Mutex
	handlers map[string]func(string)
}

func newFakeIngress() *fakeIngress {
	return &fakeIngress{handlers: make(map[string]func(string))}
}

func (i *fakeIngress) Receive(channel string, handler func(line string)) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.handlers[channel] = handler
	return nil
}

func (i *fakeIngress) push(channel, line string) {
	i.mu.Lock()
	h := i.handlers[channel]
	i.mu.Unlock()
	h(line)
}

type fakeLifecycle struct {
	mu    sync.Mutex
	join  map[string][]func(Participant)
	leave map[string][]func(Participant)
}

func newFakeLifecycle() *fakeLifecycle {
	return &fakeLifecycle{
		join:  make(map[string][]func(Participant)),
		leave: make(map[string][]func(Participant)),
	}
}

func (l *fakeLifecycle) OnJoin(role string, fn func(Participant)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.join[role] = append(l.join[role], fn)
}

func (l *fakeLifecycle) OnLeave(role string, fn func(Participant)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.leave[role] = append(l.leave[role], fn)
}

func (l *fakeLifecycle) fireJoin(p Participant) {
	l.mu.Lock()
	hooks := append([]func(Participant){}, l.join[p.Role()]...)
	l.mu.Unlock()
	for _, fn := range hooks {
		fn(p)
	}
}

type recordingObserver struct {
	NopObserver
	outcomes []Outcome
	stored   []string
}

func (o *recordingObserver) Dispatched(module string, outcome Outcome) {
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) Stored(module, name string, v Value) {
	o.stored = append(o.stored, name)
}
