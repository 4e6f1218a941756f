// Package registry implements spec.md's process-wide session registry:
// at most one Session per (protocol, host, port, encoded path) identity,
// shared by every Tag that addresses the same gateway so a process never
// opens two sockets to the same PLC. Lock ordering is registry -> session
// -> tag and never reversed (spec.md invariant), which is why this
// package never calls back into a Tag and only ever touches a Session
// through its own exported, self-locking methods.
package registry

import (
	"sync"

	"github.com/tturner/ab-eip-client/internal/plc/session"
)

// Registry is a process-wide, mutex-guarded map from Identity to the one
// Session serving it.
type Registry struct {
	mu       sync.Mutex
	sessions map[session.Identity]*session.Session
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{sessions: make(map[session.Identity]*session.Session)}
}

// GetOrCreate returns the existing Session for id, or creates and stores
// a new CLOSED one if none exists yet. It does not itself change the
// session's reference count — callers attach through whatever consumes
// the session (normally ioworker.Worker.Register, one Attach per Tag).
func (r *Registry) GetOrCreate(id session.Identity) *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[id]; ok {
		return sess
	}
	sess := session.New(id)
	r.sessions[id] = sess
	return sess
}

// Lookup returns the Session for id without creating one.
func (r *Registry) Lookup(id session.Identity) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Release removes sess from the registry if it is currently
// unreferenced, to be called after a caller's Detach (e.g.
// ioworker.Worker.Unregister) reports the session unreferenced. It is a
// no-op if something re-attached in the meantime, so callers must treat
// a reported "unreferenced" as advisory, not a guarantee the session
// will actually be removed this call.
func (r *Registry) Release(sess *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess.RefCount() != 0 {
		return
	}
	if existing, ok := r.sessions[sess.Identity]; ok && existing == sess {
		delete(r.sessions, sess.Identity)
	}
}

// Len returns the number of sessions currently tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot returns a shallow copy of every tracked session, safe to range
// over without holding the registry lock (spec.md S7: diagnostic
// listing of active sessions).
func (r *Registry) Snapshot() []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*session.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	return out
}
