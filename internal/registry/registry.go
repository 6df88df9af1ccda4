package registry

import (
	"sync"
)

// Conn is a live connection handle. Send enqueues an outbound frame without
// blocking and reports false when the connection is gone or its buffer is
// full.
type Conn interface {
	ID() string
	Send(data []byte) bool
}

type customerBinding struct {
	conn         Conn
	customerID   string
	customerName string
}

// Registry tracks which logical session currently has a live customer
// connection. It is a derived cache: everything in here can be rebuilt from
// the durable store plus the set of open connections. All operations are
// O(1) and never touch I/O.
type Registry struct {
	mu sync.RWMutex
	// sessionID -> live customer connection (at most one; a later bind for
	// the same session replaces the former entry, e.g. reconnects)
	customers map[string]customerBinding
	// customerID -> sessionID, kept across disconnects to support resume
	sessions map[string]string
	// physical connection id -> sessionID, for cleanup on transport close
	conns map[string]string
}

func New() *Registry {
	return &Registry{
		customers: make(map[string]customerBinding),
		sessions:  make(map[string]string),
		conns:     make(map[string]string),
	}
}

// BindCustomer attaches a live connection to a session, replacing any
// previous connection bound to it.
func (r *Registry) BindCustomer(sessionID, customerID, customerName string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.customers[sessionID]; ok {
		delete(r.conns, prev.conn.ID())
	}
	r.customers[sessionID] = customerBinding{
		conn:         c,
		customerID:   customerID,
		customerName: customerName,
	}
	r.sessions[customerID] = sessionID
	r.conns[c.ID()] = sessionID
}

// CustomerConn returns the live connection for a session, or nil.
func (r *Registry) CustomerConn(sessionID string) Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	binding, ok := r.customers[sessionID]
	if !ok {
		return nil
	}
	return binding.conn
}

// SessionFor returns the session a customer last bound to. The mapping
// survives disconnects so a returning customer resumes the same session.
func (r *Registry) SessionFor(customerID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessionID, ok := r.sessions[customerID]
	return sessionID, ok
}

// SessionForConn returns the session bound to a physical connection.
func (r *Registry) SessionForConn(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessionID, ok := r.conns[connID]
	return sessionID, ok
}

// UnbindConn removes a physical connection's bindings and returns the
// session it was serving. The customerID -> sessionID mapping stays so the
// logical session can be resumed later. A connection that was already
// replaced by a reconnect unbinds nothing.
func (r *Registry) UnbindConn(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionID, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	delete(r.conns, connID)

	if binding, ok := r.customers[sessionID]; ok && binding.conn.ID() == connID {
		delete(r.customers, sessionID)
	}

	return sessionID, true
}

// DropSession removes every binding of a deleted session, including the
// resume mapping.
func (r *Registry) DropSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if binding, ok := r.customers[sessionID]; ok {
		delete(r.conns, binding.conn.ID())
		delete(r.customers, sessionID)
	}
	for customerID, sid := range r.sessions {
		if sid == sessionID {
			delete(r.sessions, customerID)
		}
	}
}

// OnlineEntry describes one currently connected customer.
type OnlineEntry struct {
	SessionID    string
	CustomerID   string
	CustomerName string
}

// Online snapshots the currently connected customers.
func (r *Registry) Online() []OnlineEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]OnlineEntry, 0, len(r.customers))
	for sessionID, binding := range r.customers {
		entries = append(entries, OnlineEntry{
			SessionID:    sessionID,
			CustomerID:   binding.customerID,
			CustomerName: binding.customerName,
		})
	}
	return entries
}
