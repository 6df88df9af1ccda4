package ws

import (
	"io"
	"log/slog"
	"sync"
	"testing"
)

type fakeAgent struct {
	id     string
	fail   bool
	onSend func()

	mu   sync.Mutex
	sent [][]byte
}

func (a *fakeAgent) ID() string { return a.id }

func (a *fakeAgent) Send(data []byte) bool {
	if a.onSend != nil {
		a.onSend()
	}
	if a.fail {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, data)
	return true
}

func (a *fakeAgent) received() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sent)
}

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBroadcastReachesAllAgents(t *testing.T) {
	hub := NewHub(testLog())
	a := &fakeAgent{id: "conn-a"}
	b := &fakeAgent{id: "conn-b"}
	hub.Register("agent-a", a)
	hub.Register("agent-b", b)

	hub.Broadcast(FrameUserConnected, map[string]string{"customer_id": "cust-1"})

	if a.received() != 1 || b.received() != 1 {
		t.Fatalf("broadcast counts: a=%d b=%d", a.received(), b.received())
	}
}

func TestBroadcastPrunesDeadAgents(t *testing.T) {
	hub := NewHub(testLog())
	var dropped []string
	hub.SetOnDrop(func(agentID string) { dropped = append(dropped, agentID) })

	live := &fakeAgent{id: "conn-live"}
	dead := &fakeAgent{id: "conn-dead", fail: true}
	hub.Register("agent-live", live)
	hub.Register("agent-dead", dead)

	hub.Broadcast(FrameChatMessage, map[string]string{"content": "hi"})

	if hub.Count() != 1 {
		t.Fatalf("hub count after prune = %d, want 1", hub.Count())
	}
	if hub.Agent("agent-dead") != nil {
		t.Fatal("dead agent still registered")
	}
	if len(dropped) != 1 || dropped[0] != "agent-dead" {
		t.Fatalf("onDrop calls = %v", dropped)
	}
	if live.received() != 1 {
		t.Fatalf("live agent did not receive the broadcast")
	}
}

func TestBroadcastPruneSparesReconnectedAgent(t *testing.T) {
	hub := NewHub(testLog())
	var dropped []string
	hub.SetOnDrop(func(agentID string) { dropped = append(dropped, agentID) })

	fresh := &fakeAgent{id: "conn-fresh"}
	stale := &fakeAgent{id: "conn-stale", fail: true}
	// The agent reconnects while the broadcast is mid-flight, after the
	// snapshot was taken but before the dead connection is pruned.
	stale.onSend = func() {
		hub.Register("agent-1", fresh)
	}
	hub.Register("agent-1", stale)

	hub.Broadcast(FrameChatMessage, map[string]string{"content": "hi"})

	if hub.Agent("agent-1") != AgentConn(fresh) {
		t.Fatal("prune evicted the reconnected agent")
	}
	if len(dropped) != 0 {
		t.Fatalf("onDrop fired for a replaced connection: %v", dropped)
	}
}

func TestRegisterReplacesOnReconnect(t *testing.T) {
	hub := NewHub(testLog())
	first := &fakeAgent{id: "conn-1"}
	second := &fakeAgent{id: "conn-2"}

	hub.Register("agent-a", first)
	hub.Register("agent-a", second)

	if hub.Count() != 1 {
		t.Fatalf("hub count = %d, want 1", hub.Count())
	}
	if hub.Agent("agent-a") != AgentConn(second) {
		t.Fatal("reconnect did not replace the connection")
	}

	// The old connection closing must not evict the new one.
	hub.Unregister("agent-a", "conn-1")
	if hub.Agent("agent-a") == nil {
		t.Fatal("stale unregister removed the live connection")
	}

	hub.Unregister("agent-a", "conn-2")
	if hub.Agent("agent-a") != nil {
		t.Fatal("agent still registered after unregister")
	}
}
