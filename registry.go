package evnet

import "sync"

// ConnID is an opaque handle uniquely naming one live connection for the
// lifetime of that connection.
type ConnID uint64

// Registry is a concurrent mapping from connection id to peer address,
// shared by the server components. All operations are mutually exclusive
// with each other via one mutex; Snapshot copies rather than returning a
// live view so callers iterating it for broadcast never observe a registry
// that mutates mid-iteration.
type Registry struct {
	mu    sync.Mutex
	conns map[ConnID]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[ConnID]string)}
}

// Add records a connection and its peer address.
func (r *Registry) Add(id ConnID, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = addr
}

// Remove deletes a connection. It reports whether the id was present, so a
// caller can act exactly once even when removal races with shutdown.
func (r *Registry) Remove(id ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	return true
}

// Addr returns the peer address registered for id.
func (r *Registry) Addr(id ConnID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addr, ok := r.conns[id]
	return addr, ok
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[id]
	return ok
}

// Snapshot returns a point-in-time copy of the registry, safe to iterate
// without further synchronization.
func (r *Registry) Snapshot() map[ConnID]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[ConnID]string, len(r.conns))
	for id, addr := range r.conns {
		out[id] = addr
	}
	return out
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Clear removes every registered connection.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.conns)
}
