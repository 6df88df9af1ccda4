package ws

import (
	"log/slog"
	"sync"
)

// AgentConn is a live agent connection the hub can fan out to.
type AgentConn interface {
	ID() string
	Send(data []byte) bool
}

// Hub maintains the set of connected agents and broadcasts chat events to
// all of them. Delivery is best-effort: an agent whose connection is closed
// or whose buffer is full is pruned and does not block the rest.
type Hub struct {
	mu     sync.RWMutex
	agents map[string]AgentConn
	onDrop func(agentID string)
	log    *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		agents: make(map[string]AgentConn),
		log:    log,
	}
}

// SetOnDrop installs a callback invoked when a dead agent is pruned.
func (h *Hub) SetOnDrop(fn func(agentID string)) {
	h.onDrop = fn
}

// Register adds an agent connection, replacing any previous connection for
// the same agent id (reconnect).
func (h *Hub) Register(agentID string, c AgentConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.agents[agentID] = c
}

// Unregister removes an agent connection. A stale entry already replaced by
// a reconnect is left alone.
func (h *Hub) Unregister(agentID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.agents[agentID]; ok && current.ID() == connID {
		delete(h.agents, agentID)
	}
}

// Agent returns the live connection for an agent id, or nil. The router
// uses it to classify message senders.
func (h *Hub) Agent(agentID string) AgentConn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.agents[agentID]
}

// Count returns the number of connected agents.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.agents)
}

// Broadcast fans an event out to every connected agent and prunes the ones
// that cannot accept it.
func (h *Hub) Broadcast(frameType string, data interface{}) {
	frame := NewFrame(frameType, data)
	if frame == nil {
		return
	}

	h.mu.RLock()
	conns := make(map[string]AgentConn, len(h.agents))
	for id, c := range h.agents {
		conns[id] = c
	}
	h.mu.RUnlock()

	var dead []AgentConn
	var deadIDs []string
	for id, c := range conns {
		if !c.Send(frame) {
			dead = append(dead, c)
			deadIDs = append(deadIDs, id)
		}
	}

	for i, c := range dead {
		id := deadIDs[i]

		// Only evict the exact connection that failed. The agent may have
		// reconnected since the snapshot; the fresh connection stays.
		h.mu.Lock()
		current, live := h.agents[id]
		pruned := live && current.ID() == c.ID()
		if pruned {
			delete(h.agents, id)
		}
		h.mu.Unlock()

		if !pruned {
			continue
		}

		h.log.Debug("pruned dead agent connection", slog.String("agent_id", id))
		if h.onDrop != nil {
			h.onDrop(id)
		}
	}
}
