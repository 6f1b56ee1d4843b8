package router

// dispatchDefault handles [name, ...args].
// A method receives the collapsed args. Otherwise the collapsed args are
// stored under name and the original message is broadcast to all players.
func dispatchDefault(m *Module, tokens []Token) Outcome {
	name := tokens[0].Text()
	args := tokens[1:]

	if fn, ok := m.methods[name]; ok {
		fn(m, Collapse(args))
		return OutcomeMethod
	}

	m.store(name, Collapse(args))
	m.transport.Broadcast(PlayerRole, nil, m.frame(scalars(tokens)...))
	return OutcomeUpdate
}

// dispatchRouted handles [name, identity, ...args].
// A method receives everything after name, identity included. Otherwise a
// concrete identity gets a single send with the identity slot removed, and
// the sentinel identity broadcasts to all players and stores the value.
func dispatchRouted(m *Module, tokens []Token) Outcome {
	name := tokens[0].Text()

	if fn, ok := m.methods[name]; ok {
		fn(m, Collapse(tokens[1:]))
		return OutcomeMethod
	}

	if len(tokens) < 2 {
		m.logger.Debug("routed_message_without_identity", "name", name)
		return OutcomeDropped
	}
	identity := tokens[1]
	args := tokens[2:]

	out := make([]Token, 0, len(tokens)-1)
	out = append(out, tokens[0])
	out = append(out, args...)

	if !identity.IsSentinel() {
		p, ok := m.transport.Lookup(identity)
		if !ok {
			m.logger.Debug("routed_message_dropped",
				"name", name,
				"identity", identity.Text(),
			)
			return OutcomeDropped
		}
		if err := m.transport.Send(p, m.frame(scalars(out)...)); err != nil {
			m.logger.Warn("routed_send_failed",
				"name", name,
				"identity", identity.Text(),
				"error", err,
			)
		}
		return OutcomeTargeted
	}

	m.transport.Broadcast(PlayerRole, nil, m.frame(scalars(out)...))
	m.store(name, Collapse(args))
	return OutcomeUpdate
}
