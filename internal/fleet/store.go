package fleet

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store holds every known agent plus the cluster-wide scheduling lock.
// A retention evaluation, a dispatch pass, or any mutation of agent or
// queue state runs as one critical section under WithLock, so the
// capacity simulation inside an evaluation can never race a real
// assignment.
type Store struct {
	mu     sync.Mutex
	agents map[string]*Agent
}

func NewStore() *Store {
	return &Store{agents: make(map[string]*Agent)}
}

// Add registers a configured agent. Names are unique.
func (s *Store) Add(cfg AgentConfig, now time.Time) (*Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if _, exists := s.agents[cfg.Name]; exists {
		return nil, fmt.Errorf("agent %q already registered", cfg.Name)
	}
	a := newAgent(cfg, now)
	s.agents[cfg.Name] = a
	return a, nil
}

// WithLock runs fn while holding the cluster scheduling lock.
func (s *Store) WithLock(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Agent looks up one agent by name. Caller must hold the cluster lock.
func (s *Store) Agent(name string) (*Agent, bool) {
	a, ok := s.agents[name]
	return a, ok
}

// Agents returns all agents in name order. Caller must hold the
// cluster lock.
func (s *Store) Agents() []*Agent {
	names := make([]string, 0, len(s.agents))
	for name := range s.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Agent, len(names))
	for i, name := range names {
		out[i] = s.agents[name]
	}
	return out
}
