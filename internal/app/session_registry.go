package app

import (
	"sync"
	"time"
)

// SessionRegistry tracks connected MCP client sessions and their associated
// caller identities, so tools can default the "from" field and the server can
// log which caller disconnected.
type SessionRegistry struct {
	mu           sync.RWMutex
	sessions     map[string]string    // sessionID → caller
	callers      map[string]string    // caller → sessionID (reverse lookup)
	lastActivity map[string]time.Time // sessionID → last activity timestamp
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions:     make(map[string]string),
		callers:      make(map[string]string),
		lastActivity: make(map[string]time.Time),
	}
}

// SetCaller associates a session with a caller identity. If the caller was
// previously bound to a different session, the old mapping is removed.
func (r *SessionRegistry) SetCaller(sessionID, caller string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if oldSID, ok := r.callers[caller]; ok && oldSID != sessionID {
		delete(r.sessions, oldSID)
		delete(r.lastActivity, oldSID)
	}
	r.sessions[sessionID] = caller
	r.callers[caller] = sessionID
	r.lastActivity[sessionID] = time.Now()
}

// Caller returns the caller identity for a session, or "" if unknown.
func (r *SessionRegistry) Caller(sessionID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[sessionID]
}

// TouchSession updates a session's last-activity timestamp.
func (r *SessionRegistry) TouchSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; ok {
		r.lastActivity[sessionID] = time.Now()
	}
}

// RemoveSession drops a session and its reverse mapping.
func (r *SessionRegistry) RemoveSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller, ok := r.sessions[sessionID]; ok {
		delete(r.callers, caller)
	}
	delete(r.sessions, sessionID)
	delete(r.lastActivity, sessionID)
}

// ActiveCallers returns the callers with a connected session.
func (r *SessionRegistry) ActiveCallers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.callers))
	for caller := range r.callers {
		out = append(out, caller)
	}
	return out
}
