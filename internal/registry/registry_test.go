package registry

import (
	"testing"
)

type fakeConn struct {
	id   string
	sent [][]byte
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(data []byte) bool {
	c.sent = append(c.sent, data)
	return true
}

func TestBindAndLookup(t *testing.T) {
	r := New()
	conn := &fakeConn{id: "conn-1"}

	r.BindCustomer("sess-1", "cust-1", "Alice", conn)

	if got := r.CustomerConn("sess-1"); got != conn {
		t.Fatalf("CustomerConn returned %v, want the bound connection", got)
	}
	if sid, ok := r.SessionFor("cust-1"); !ok || sid != "sess-1" {
		t.Fatalf("SessionFor = %q, %v", sid, ok)
	}
	if sid, ok := r.SessionForConn("conn-1"); !ok || sid != "sess-1" {
		t.Fatalf("SessionForConn = %q, %v", sid, ok)
	}
}

func TestRebindReplacesConnection(t *testing.T) {
	r := New()
	first := &fakeConn{id: "conn-1"}
	second := &fakeConn{id: "conn-2"}

	r.BindCustomer("sess-1", "cust-1", "Alice", first)
	r.BindCustomer("sess-1", "cust-1", "Alice", second)

	if got := r.CustomerConn("sess-1"); got != second {
		t.Fatalf("CustomerConn returned the old connection after rebind")
	}
	if _, ok := r.SessionForConn("conn-1"); ok {
		t.Fatalf("replaced connection still has a session binding")
	}

	// Closing the replaced connection must not unbind the new one.
	if _, ok := r.UnbindConn("conn-1"); ok {
		t.Fatalf("unbinding a replaced connection reported success")
	}
	if got := r.CustomerConn("sess-1"); got != second {
		t.Fatalf("stale unbind removed the live connection")
	}
}

func TestUnbindKeepsResumeMapping(t *testing.T) {
	r := New()
	conn := &fakeConn{id: "conn-1"}
	r.BindCustomer("sess-1", "cust-1", "Alice", conn)

	sid, ok := r.UnbindConn("conn-1")
	if !ok || sid != "sess-1" {
		t.Fatalf("UnbindConn = %q, %v", sid, ok)
	}
	if got := r.CustomerConn("sess-1"); got != nil {
		t.Fatalf("connection still reachable after unbind")
	}

	// The logical session survives the disconnect.
	if sid, ok := r.SessionFor("cust-1"); !ok || sid != "sess-1" {
		t.Fatalf("resume mapping lost after disconnect: %q, %v", sid, ok)
	}
}

func TestDropSessionRemovesEverything(t *testing.T) {
	r := New()
	conn := &fakeConn{id: "conn-1"}
	r.BindCustomer("sess-1", "cust-1", "Alice", conn)

	r.DropSession("sess-1")

	if got := r.CustomerConn("sess-1"); got != nil {
		t.Fatalf("connection still bound after DropSession")
	}
	if _, ok := r.SessionFor("cust-1"); ok {
		t.Fatalf("resume mapping survived DropSession")
	}
	if _, ok := r.SessionForConn("conn-1"); ok {
		t.Fatalf("conn mapping survived DropSession")
	}
}

func TestOnlineSnapshot(t *testing.T) {
	r := New()
	r.BindCustomer("sess-1", "cust-1", "Alice", &fakeConn{id: "conn-1"})
	r.BindCustomer("sess-2", "cust-2", "Bob", &fakeConn{id: "conn-2"})
	r.UnbindConn("conn-2")

	online := r.Online()
	if len(online) != 1 {
		t.Fatalf("Online returned %d entries, want 1", len(online))
	}
	if online[0].SessionID != "sess-1" || online[0].CustomerName != "Alice" {
		t.Fatalf("unexpected roster entry: %+v", online[0])
	}
}
