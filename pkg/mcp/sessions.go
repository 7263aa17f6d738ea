package mcp

import (
	"slices"
	"sync"
)

// SessionRegistry maps watching agents to the MCP session their
// notifications are delivered on. Populated when an agent calls canvas.watch
// and cleaned up when the session unregisters.
type SessionRegistry struct {
	mu        sync.RWMutex
	byAgent   map[string]string
	bySession map[string][]string
}

// NewSessionRegistry creates a new empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byAgent:   make(map[string]string),
		bySession: make(map[string][]string),
	}
}

// Register associates an agent with a session. A reconnecting agent moves to
// its new session.
func (r *SessionRegistry) Register(agentID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byAgent[agentID]; ok {
		if old == sessionID {
			return
		}
		r.dropAgent(old, agentID)
	}
	r.byAgent[agentID] = sessionID
	r.bySession[sessionID] = append(r.bySession[sessionID], agentID)
}

// SessionFor returns the session of an agent, if connected.
func (r *SessionRegistry) SessionFor(agentID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byAgent[agentID]
	return sid, ok
}

// Agents returns the agents registered on a session, sorted.
func (r *SessionRegistry) Agents(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agents := slices.Clone(r.bySession[sessionID])
	slices.Sort(agents)
	return agents
}

// Remove forgets a session and every agent registered on it.
func (r *SessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, aid := range r.bySession[sessionID] {
		delete(r.byAgent, aid)
	}
	delete(r.bySession, sessionID)
}

func (r *SessionRegistry) dropAgent(sessionID, agentID string) {
	agents := slices.DeleteFunc(r.bySession[sessionID], func(a string) bool { return a == agentID })
	if len(agents) == 0 {
		delete(r.bySession, sessionID)
		return
	}
	r.bySession[sessionID] = agents
}
