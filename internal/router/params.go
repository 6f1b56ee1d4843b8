package router

// ParamStore maps parameter names to their last received value.
// It is owned by one Module and only touched from the router loop, so it
// carries no lock.
type ParamStore struct {
	values map[string]Value
	order  []string // first-insertion order, keeps replay deterministic within a run
}

func NewParamStore() *ParamStore {
	return &ParamStore{values: make(map[string]Value)}
}

// Set overwrites the value for name (last write wins).
func (s *ParamStore) Set(name string, v Value) {
	if _, exists := s.values[name]; !exists {
		s.order = append(s.order, name)
	}
	s.values[name] = v
}

func (s *ParamStore) Get(name string) (Value, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Each calls fn once per stored parameter. Callers must not rely on the
// order between distinct names.
func (s *ParamStore) Each(fn func(name string, v Value)) {
	for _, name := range s.order {
		fn(name, s.values[name])
	}
}

func (s *ParamStore) Len() int {
	return len(s.values)
}

// Snapshot returns a copy of the store contents.
func (s *ParamStore) Snapshot() map[string]Value {
	out := make(map[string]Value, len(s.values))
	for name, v := range s.values {
		out[name] = v
	}
	return out
}
