// Package runtime holds the session registry, presence fanout, and message
// routing. It orchestrates delivery without containing storage or transport
// logic.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"sync"
	"time"
)

// Session binds a user identity to its live connection.
type Session struct {
	Identity      domain.UserID
	Conn          contract.Conn
	EstablishedAt time.Time
}

// Registry is the concurrent store of active sessions. It maintains both
// directions (identity -> session and conn -> identity) under a single lock
// so sender resolution stays O(1) and the two maps never diverge.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[domain.UserID]*Session
	identities map[contract.Conn]domain.UserID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:   make(map[domain.UserID]*Session),
		identities: make(map[contract.Conn]domain.UserID),
	}
}

// Register binds an identity to a connection. If the identity is already
// bound, the prior connection is atomically replaced and returned so the
// caller can close it (last-connect-wins eviction). At most one session per
// identity, and one identity per connection, survive the call.
func (r *Registry) Register(identity domain.UserID, conn contract.Conn) contract.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	var prior contract.Conn
	if existing, ok := r.sessions[identity]; ok {
		prior = existing.Conn
		delete(r.identities, existing.Conn)
	}
	if previous, ok := r.identities[conn]; ok && previous != identity {
		delete(r.sessions, previous)
	}
	r.sessions[identity] = &Session{
		Identity:      identity,
		Conn:          conn,
		EstablishedAt: time.Now().UTC(),
	}
	r.identities[conn] = identity
	return prior
}

// Deregister removes the session only when conn is still the bound handle.
// A stale close racing a newer register for the same identity is a no-op.
func (r *Registry) Deregister(identity domain.UserID, conn contract.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.sessions[identity]
	if !ok || existing.Conn != conn {
		return false
	}
	delete(r.sessions, identity)
	delete(r.identities, conn)
	return true
}

// Lookup resolves an identity to its current connection.
func (r *Registry) Lookup(identity domain.UserID) (contract.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[identity]
	if !ok {
		return nil, false
	}
	return session.Conn, true
}

// IdentityOf resolves which user owns a connection. Used to assert the
// sender of an inbound frame; the payload itself is never trusted.
func (r *Registry) IdentityOf(conn contract.Conn) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.identities[conn]
	return identity, ok
}

// SnapshotOthers returns the identities currently online, excluding the
// given one. Used to build the initial roster of a binding connection.
func (r *Registry) SnapshotOthers(excluding domain.UserID) []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	others := make([]domain.UserID, 0, len(r.sessions))
	for identity := range r.sessions {
		if identity == excluding {
			continue
		}
		others = append(others, identity)
	}
	return others
}

// Conns returns a snapshot of all live connections for broadcast fan-out.
// A peer disconnecting mid-broadcast may or may not receive that
// notification.
func (r *Registry) Conns() []contract.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]contract.Conn, 0, len(r.sessions))
	for _, session := range r.sessions {
		conns = append(conns, session.Conn)
	}
	return conns
}
