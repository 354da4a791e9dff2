package fieldwire

import "sort"

// Scope is the variable binding table of one top-level decode or encode
// call. Fields bound with variable_name store their resolved integer value
// here; later length, count, branch and condition expressions read it back.
//
// A Scope is created per call and shared by pointer with every nested
// record reached from it. It is not safe for concurrent use.
type Scope struct {
	vars map[string]uint64

	// bit group staged for encode: bits_start (or untaken bits) fields OR
	// their shifted value in; the next plain bits field writes the unit.
	stage  uint64
	staged bool
}

// NewScope returns an empty binding table.
func NewScope() *Scope {
	return &Scope{vars: make(map[string]uint64)}
}

// Set binds name to v, replacing any earlier binding.
func (s *Scope) Set(name string, v uint64) {
	if s.vars == nil {
		s.vars = make(map[string]uint64)
	}
	s.vars[name] = v
}

// Get returns the value bound to name.
func (s *Scope) Get(name string) (uint64, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s.vars[name]
	return v, ok
}

// Names returns the bound names in sorted order.
func (s *Scope) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.vars))
	for k := range s.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of bindings.
func (s *Scope) Len() int {
	if s == nil {
		return 0
	}
	return len(s.vars)
}

func (s *Scope) stageBits(v uint64) {
	s.stage |= v
	s.staged = true
}

func (s *Scope) flushBits(v uint64) uint64 {
	out := s.stage | v
	s.stage, s.staged = 0, false
	return out
}

// dropBits discards a staged group whose bits were written by a full-width
// owner field instead of a plain bits field.
func (s *Scope) dropBits() {
	s.stage, s.staged = 0, false
}
