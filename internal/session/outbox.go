package session

import (
	"errors"
	"sync"

	"nuhub/internal/router"
)

var (
	ErrSendBufferFull = errors.New("send buffer full")
	ErrConnClosed     = errors.New("connection closed")
)

// Outbox is an ordered queue of encoded envelopes drained by a
// connection's write pump. Pushing never blocks, so a slow participant
// cannot stall the router loop. Live pushes are dropped once limit
// envelopes are pending; batches pushed with PushAll are always queued.
type Outbox struct {
	mu      sync.Mutex
	pending [][]byte
	limit   int

	ready chan struct{} // signalled when pending becomes non-empty
	done  chan struct{}
	once  sync.Once
}

func NewOutbox(limit int) *Outbox {
	return &Outbox{
		limit: limit,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (o *Outbox) Push(data []byte) error {
	o.mu.Lock()
	if o.closed() {
		o.mu.Unlock()
		return ErrConnClosed
	}
	if len(o.pending) >= o.limit {
		o.mu.Unlock()
		return ErrSendBufferFull
	}
	o.pending = append(o.pending, data)
	o.mu.Unlock()
	o.signal()
	return nil
}

// PushAll queues every item in order, ignoring the live limit.
func (o *Outbox) PushAll(items [][]byte) error {
	if len(items) == 0 {
		return nil
	}
	o.mu.Lock()
	if o.closed() {
		o.mu.Unlock()
		return ErrConnClosed
	}
	o.pending = append(o.pending, items...)
	o.mu.Unlock()
	o.signal()
	return nil
}

// PushEnvelope encodes e and queues it.
func (o *Outbox) PushEnvelope(e Envelope) error {
	data, err := e.Marshal()
	if err != nil {
		return err
	}
	return o.Push(data)
}

// PushFrame queues a module frame.
func (o *Outbox) PushFrame(f router.Frame) error {
	return o.PushEnvelope(FrameEnvelope(f))
}

// PushFrames queues frames as one batch. Nothing is queued if any frame
// fails to encode.
func (o *Outbox) PushFrames(frames []router.Frame) error {
	items := make([][]byte, 0, len(frames))
	for _, f := range frames {
		data, err := FrameEnvelope(f).Marshal()
		if err != nil {
			return err
		}
		items = append(items, data)
	}
	return o.PushAll(items)
}

// Ready is signalled whenever envelopes are waiting. The write pump
// follows every receive with Drain.
func (o *Outbox) Ready() <-chan struct{} { return o.ready }

// Drain takes every pending envelope, oldest first.
func (o *Outbox) Drain() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.pending
	o.pending = nil
	return out
}

// Len is the number of envelopes waiting for the write pump.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Done is closed once the outbox is closed.
func (o *Outbox) Done() <-chan struct{} { return o.done }

func (o *Outbox) Close() {
	o.once.Do(func() {
		o.mu.Lock()
		close(o.done)
		o.pending = nil
		o.mu.Unlock()
	})
}

// closed must be called with mu held.
func (o *Outbox) closed() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

func (o *Outbox) signal() {
	select {
	case o.ready <- struct{}{}:
	default:
	}
}
