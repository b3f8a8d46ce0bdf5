// Package policy keeps the effective retention policy per agent: the
// configured fleet-wide default overlaid by per-agent rows persisted in
// the database and edited through the API.
package policy

import (
	"sync"

	"github.com/fleetkeeper/fleetkeeper/internal/retention"
)

type Store struct {
	mu      sync.RWMutex
	def     retention.Policy
	byAgent map[string]retention.Policy
}

func NewStore(def retention.Policy) *Store {
	return &Store{
		def:     def,
		byAgent: make(map[string]retention.Policy),
	}
}

// PolicyFor returns the agent's policy, falling back to the default.
func (s *Store) PolicyFor(name string) retention.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.byAgent[name]; ok {
		return p
	}
	return s.def
}

// Override reports whether the agent has its own policy row.
func (s *Store) Override(name string) (retention.Policy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byAgent[name]
	return p, ok
}

func (s *Store) Set(name string, p retention.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byAgent[name] = p
}

func (s *Store) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byAgent, name)
}

func (s *Store) Default() retention.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.def
}
