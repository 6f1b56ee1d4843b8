package modules

import (
	"nuhub/internal/router"
)

// MethodResync asks the hub to replay stored parameters without the
// control surface resending them.
const MethodResync = "resync"

// Resync replays the module's parameters.
//
// On a default module every player gets the full set. On an identity-routed
// module the method payload still carries the identity slot: the sentinel
// (or no identity) replays to every player, a concrete identity replays to
// that participant only and is silently dropped when nobody has it.
func Resync(m *router.Module, args router.Value) {
	if !m.IdentityRouting() {
		n := m.ReplayAll()
		m.Logger().Info("resync_broadcast", "frames", n)
		return
	}

	identity, ok := firstToken(args)
	if !ok || identity.IsSentinel() {
		n := m.ReplayAll()
		m.Logger().Info("resync_broadcast", "frames", n)
		return
	}

	p, found := m.Transport().Lookup(identity)
	if !found {
		m.Logger().Debug("resync_target_missing", "identity", identity.Text())
		return
	}
	n := m.Replay(p)
	m.Logger().Info("resync_targeted",
		"identity", identity.Text(),
		"frames", n,
	)
}

func firstToken(v router.Value) (router.Token, bool) {
	if tok, ok := v.Scalar(); ok {
		return tok, true
	}
	tokens := v.Tokens()
	if len(tokens) == 0 {
		return router.Token{}, false
	}
	return tokens[0], true
}
