package auth

import "sync"

// SessionRegistry is the bidirectional connection-id <-> user-id mapping
// from spec.md §4.2, grounded on original_source/auth/session_manager.py's
// user_sessions/client_sessions pair. One mutex protects both directions,
// held only for pointer/set swaps (spec.md §5).
type SessionRegistry struct {
	mu          sync.Mutex
	userToConns map[int64]map[uint64]struct{}
	connToUser  map[uint64]int64
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		userToConns: make(map[int64]map[uint64]struct{}),
		connToUser:  make(map[uint64]int64),
	}
}

// Bind associates connID with userID. If userID already has a live
// connection, the caller is expected to have already evicted it per the
// "kick old" duplicate-login policy (spec.md §4.2, §9) before calling
// Bind — Bind itself does not enforce single-session-per-user so it can
// also be used for the room-server connection class, which isn't subject
// to that policy.
func (r *SessionRegistry) Bind(connID uint64, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.userToConns[userID]; ok {
		set[connID] = struct{}{}
	} else {
		r.userToConns[userID] = map[uint64]struct{}{connID: {}}
	}
	r.connToUser[connID] = userID
}

// ConnectionsForUser returns the live connection ids for userID (0 or
// more — multiple only for classes that permit concurrent sessions).
func (r *SessionRegistry) ConnectionsForUser(userID int64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.userToConns[userID]
	out := make([]uint64, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// UserForConnection returns the user id bound to connID, if any.
func (r *SessionRegistry) UserForConnection(connID uint64) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.connToUser[connID]
	return userID, ok
}

// AllConnections returns every currently bound connection id, used for
// server-wide rebroadcasts (e.g. a fresh caste-breakpoint table).
func (r *SessionRegistry) AllConnections() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, 0, len(r.connToUser))
	for c := range r.connToUser {
		out = append(out, c)
	}
	return out
}

// Unbind drops connID from both directions — called on disconnect.
func (r *SessionRegistry) Unbind(connID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.connToUser[connID]
	if !ok {
		return
	}
	delete(r.connToUser, connID)
	if set, ok := r.userToConns[userID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.userToConns, userID)
		}
	}
}

// UnbindAllForUser drops every connection for userID — called on
// password change (spec.md §4.2: "close all connections for the
// affected user id"). It returns the connection ids that were bound so
// the caller (which owns the actual sockets) can close them.
func (r *SessionRegistry) UnbindAllForUser(userID int64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.userToConns[userID]
	out := make([]uint64, 0, len(set))
	for c := range set {
		out = append(out, c)
		delete(r.connToUser, c)
	}
	delete(r.userToConns, userID)
	return out
}
