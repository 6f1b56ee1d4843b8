package router

// PlayerRole is the participant role that receives module updates.
const PlayerRole = "player"

// ChannelName returns the channel every message of a module travels on.
func ChannelName(module string) string {
	return "/" + module
}

// Participant is a connected client as seen by the router.
type Participant interface {
	ID() string
	Identity() Token
	Role() string
}

// Frame is one outbound update addressed to a module channel.
type Frame struct {
	Channel string  `json:"channel"`
	Args    []Value `json:"args"`
}

// Transport delivers frames to participants and resolves identities.
// It is owned by the surrounding server; modules only hold a reference.
type Transport interface {
	Send(p Participant, f Frame) error
	// Broadcast delivers f to every participant of role except those in exclude.
	Broadcast(role string, exclude []Participant, f Frame)
	Lookup(identity Token) (Participant, bool)
}

// BatchSender is implemented by transports that can deliver a run of frames
// to one participant as a unit. Join replay uses it when available so that
// a large replay is not subject to per-frame buffering limits.
type BatchSender interface {
	SendAll(p Participant, frames []Frame) error
}

// Ingress delivers raw control lines addressed to a channel.
type Ingress interface {
	Receive(channel string, handler func(line string)) error
}

// Lifecycle reports participants joining and leaving, per role.
type Lifecycle interface {
	OnJoin(role string, fn func(Participant))
	OnLeave(role string, fn func(Participant))
}

// Outcome classifies what a dispatch did.
type Outcome string

const (
	OutcomeMethod   Outcome = "method"
	OutcomeUpdate   Outcome = "update"
	OutcomeTargeted Outcome = "targeted"
	OutcomeDropped  Outcome = "dropped"
)

// Observer is notified of dispatch results. Implementations run inside the
// router loop and must not block.
type Observer interface {
	Dispatched(module string, outcome Outcome)
	Stored(module, name string, v Value)
	Replayed(module string, frames int)
}

// NopObserver can be embedded to implement only part of Observer.
type NopObserver struct{}

func (NopObserver) Dispatched(string, Outcome)   {}
func (NopObserver) Stored(string, string, Value) {}
func (NopObserver) Replayed(string, int)         {}
