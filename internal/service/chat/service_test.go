package chat

import (
	"context"

	"ShopTalk/entity"
	"ShopTalk/internal/config"
	"ShopTalk/internal/registry"
	"ShopTalk/internal/ws"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeRepo is an in-memory Repository with the same contract as the mongo
// implementation: GetSession returns nil, nil when the session is missing,
// and DeleteSession removes the transcript together with the session.
type fakeRepo struct {
	mu       sync.Mutex
	sessions map[string]entity.ChatSession
	messages []entity.ChatMessage
	keys     map[string]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sessions: make(map[string]entity.ChatSession),
		keys:     make(map[string]string),
	}
}

func (r *fakeRepo) SaveSession(session *entity.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = *session
	return nil
}

func (r *fakeRepo) GetSession(id string) (*entity.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (r *fakeRepo) GetActiveSession(customerID string) (*entity.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.CustomerID == customerID && session.Status == entity.SessionActive {
			s := session
			return &s, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) ListSessions() ([]entity.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.ChatSession, 0, len(r.sessions))
	for _, session := range r.sessions {
		out = append(out, session)
	}
	return out, nil
}

func (r *fakeRepo) ListCustomerSessions(customerID string) ([]entity.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.ChatSession
	for _, session := range r.sessions {
		if session.CustomerID == customerID {
			out = append(out, session)
		}
	}
	return out, nil
}

func (r *fakeRepo) EndSession(id string, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	session.Status = entity.SessionEnded
	session.EndedAt = &endedAt
	r.sessions[id] = session
	return nil
}

func (r *fakeRepo) BumpSession(id, lastMessage, lastSender string, at time.Time, incUnread bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	session.LastMessage = lastMessage
	session.LastSender = lastSender
	session.LastActivity = at
	if incUnread {
		session.UnreadCount++
	}
	r.sessions[id] = session
	return nil
}

func (r *fakeRepo) MarkSessionRead(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	session.UnreadCount = 0
	r.sessions[id] = session
	for i := range r.messages {
		if r.messages[i].ChatSessionID == id && r.messages[i].SenderType != entity.SenderSystem {
			r.messages[i].Read = true
		}
	}
	return nil
}

func (r *fakeRepo) DeleteSession(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.messages[:0]
	for _, msg := range r.messages {
		if msg.ChatSessionID != id {
			kept = append(kept, msg)
		}
	}
	r.messages = kept
	delete(r.sessions, id)
	return nil
}

func (r *fakeRepo) SaveChatMessage(msg *entity.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = primitive.NewObjectID()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeRepo) GetSessionMessages(sessionID string, limit, offset int) ([]entity.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.ChatMessage
	for _, msg := range r.messages {
		if msg.ChatSessionID == sessionID {
			out = append(out, msg)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) GetRecentSessionMessages(sessionID string, limit int) ([]entity.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.ChatMessage
	for _, msg := range r.messages {
		if msg.ChatSessionID == sessionID {
			out = append(out, msg)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *fakeRepo) CleanupChatMessages(retentionDays, floor int) error { return nil }

func (r *fakeRepo) CheckApiKey(key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for username, k := range r.keys {
		if k == key {
			return username, nil
		}
	}
	return "", fmt.Errorf("api key not found")
}

func (r *fakeRepo) GenerateApiKey(username string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key, ok := r.keys[username]; ok {
		return key, nil
	}
	key := "key-" + username
	r.keys[username] = key
	return key, nil
}

func (r *fakeRepo) sessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *fakeRepo) messageCount(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, msg := range r.messages {
		if msg.ChatSessionID == sessionID {
			n++
		}
	}
	return n
}

// fakeConn records every frame it receives. It satisfies both the customer
// connection and the agent connection interfaces.
type fakeConn struct {
	id   string
	fail bool

	mu     sync.Mutex
	frames [][]byte
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(data []byte) bool {
	if c.fail {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
	return true
}

func (c *fakeConn) frameTypes(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]string, 0, len(c.frames))
	for _, raw := range c.frames {
		var frame ws.Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("unmarshal sent frame: %v", err)
		}
		types = append(types, frame.Type)
	}
	return types
}

func (c *fakeConn) lastFrame(t *testing.T, frameType string) json.RawMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		var frame ws.Frame
		if err := json.Unmarshal(c.frames[i], &frame); err != nil {
			t.Fatalf("unmarshal sent frame: %v", err)
		}
		if frame.Type == frameType {
			return frame.Data
		}
	}
	t.Fatalf("no %s frame sent, got %v", frameType, c.frameTypes(t))
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()
	return newTestServiceReplay(t, 100)
}

func newTestServiceReplay(t *testing.T, replayLimit int) (*Service, *fakeRepo) {
	t.Helper()
	conf := &config.Config{}
	conf.Chat.ReplayLimit = replayLimit
	conf.Chat.HistoryLimit = 50
	conf.Chat.RetentionDays = 30
	conf.Chat.RetentionFloor = 20

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newFakeRepo()
	svc := New(conf, log, repo, registry.New(), ws.NewHub(log))
	return svc, repo
}

func seedSession(t *testing.T, repo *fakeRepo, id, customerID string) {
	t.Helper()
	now := time.Now()
	err := repo.SaveSession(&entity.ChatSession{
		ID:           id,
		CustomerID:   customerID,
		CustomerName: "Customer " + customerID,
		Status:       entity.SessionActive,
		StartedAt:    now,
		LastActivity: now,
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func TestCreateOrResumeIdempotent(t *testing.T) {
	svc, repo := newTestService(t)

	first, created, err := svc.CreateOrResume("cust-1", "Alice")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if !created {
		t.Fatal("first call did not create a session")
	}

	second, created, err := svc.CreateOrResume("cust-1", "Alice")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if created {
		t.Fatal("second call created a new session")
	}
	if second.ID != first.ID {
		t.Fatalf("resumed session %s, want %s", second.ID, first.ID)
	}
	if repo.sessionCount() != 1 {
		t.Fatalf("repo has %d sessions, want 1", repo.sessionCount())
	}
}

func TestCreateOrResumeConcurrent(t *testing.T) {
	svc, repo := newTestService(t)

	const workers = 20
	ids := make(chan string, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, _, err := svc.CreateOrResume("cust-1", "Alice")
			if err != nil {
				t.Error(err)
				return
			}
			ids <- session.ID
		}()
	}
	wg.Wait()
	close(ids)

	var want string
	for id := range ids {
		if want == "" {
			want = id
		}
		if id != want {
			t.Fatalf("racing connects produced different sessions: %s and %s", want, id)
		}
	}
	if repo.sessionCount() != 1 {
		t.Fatalf("repo has %d sessions, want 1", repo.sessionCount())
	}
}

func TestCreateOrResumeGuestName(t *testing.T) {
	svc, _ := newTestService(t)

	session, _, err := svc.CreateOrResume("cust-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(session.CustomerName) != len("Guest-")+8 || session.CustomerName[:6] != "Guest-" {
		t.Fatalf("customer name = %q, want Guest- prefix", session.CustomerName)
	}
}

func TestConnectReplaysHistoryInOrder(t *testing.T) {
	svc, repo := newTestService(t)
	seedSession(t, repo, "sess-1", "cust-1")
	for i := 1; i <= 3; i++ {
		err := repo.SaveChatMessage(&entity.ChatMessage{
			ChatSessionID: "sess-1",
			Content:       fmt.Sprintf("message %d", i),
			SenderID:      "cust-1",
			SenderType:    entity.SenderCustomer,
			CreatedAt:     time.Now(),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	conn := &fakeConn{id: "conn-1"}
	session, err := svc.Connect(conn, "cust-1", "Alice")
	if err != nil {
		t.Fatal(err)
	}
	if session.ID != "sess-1" {
		t.Fatalf("connected to session %s, want sess-1", session.ID)
	}

	types := conn.frameTypes(t)
	if len(types) < 2 || types[0] != ws.FrameConnectionEstablished || types[1] != ws.FramePendingMessages {
		t.Fatalf("frame order = %v", types)
	}

	var replay struct {
		SessionID string               `json:"session_id"`
		Messages  []entity.ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal(conn.lastFrame(t, ws.FramePendingMessages), &replay); err != nil {
		t.Fatal(err)
	}
	if len(replay.Messages) != 3 {
		t.Fatalf("replayed %d messages, want 3", len(replay.Messages))
	}
	for i, msg := range replay.Messages {
		if want := fmt.Sprintf("message %d", i+1); msg.Content != want {
			t.Fatalf("replay[%d] = %q, want %q", i, msg.Content, want)
		}
	}
}

func TestConnectReplaysNewestMessages(t *testing.T) {
	svc, repo := newTestServiceReplay(t, 5)
	seedSession(t, repo, "sess-1", "cust-1")

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 8; i++ {
		err := repo.SaveChatMessage(&entity.ChatMessage{
			ChatSessionID: "sess-1",
			Content:       fmt.Sprintf("message %d", i),
			SenderID:      "cust-1",
			SenderType:    entity.SenderCustomer,
			CreatedAt:     base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	// The answer sent while the customer was offline is the newest message.
	err := repo.SaveChatMessage(&entity.ChatMessage{
		ChatSessionID: "sess-1",
		Content:       "we shipped your order",
		SenderID:      "agent-1",
		SenderType:    entity.SenderAgent,
		CreatedAt:     base.Add(9 * time.Second),
	})
	if err != nil {
		t.Fatal(err)
	}

	conn := &fakeConn{id: "conn-1"}
	if _, err := svc.Connect(conn, "cust-1", "Alice"); err != nil {
		t.Fatal(err)
	}

	var replay struct {
		Messages []entity.ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal(conn.lastFrame(t, ws.FramePendingMessages), &replay); err != nil {
		t.Fatal(err)
	}
	if len(replay.Messages) != 5 {
		t.Fatalf("replayed %d messages, want 5", len(replay.Messages))
	}

	// The window ends at the newest message, not the oldest.
	last := replay.Messages[len(replay.Messages)-1]
	if last.Content != "we shipped your order" {
		t.Fatalf("last replayed message = %q, want the agent answer", last.Content)
	}
	if replay.Messages[0].Content != "message 4" {
		t.Fatalf("first replayed message = %q, want message 4", replay.Messages[0].Content)
	}
}

func TestRouteAgentMessageToOfflineCustomer(t *testing.T) {
	svc, repo := newTestService(t)
	seedSession(t, repo, "sess-1", "cust-1")

	agentConn := &fakeConn{id: "conn-agent"}
	msg, delivered, err := svc.Route(InboundMessage{
		SessionID:  "sess-1",
		SenderID:   "agent-1",
		SenderName: "Ann",
		Content:    "are you there?",
		Origin:     agentConn,
		OriginRole: ws.RoleAgent,
	})
	if err != nil {
		t.Fatal(err)
	}
	if delivered {
		t.Fatal("message reported delivered with no customer connection")
	}
	if msg.SenderType != entity.SenderAgent {
		t.Fatalf("sender type = %s, want AGENT", msg.SenderType)
	}

	// The message is stored for replay and the agent learns it was queued.
	if repo.messageCount("sess-1") != 1 {
		t.Fatalf("stored %d messages, want 1", repo.messageCount("sess-1"))
	}
	var ack map[string]string
	if err := json.Unmarshal(agentConn.lastFrame(t, ws.FrameUserOffline), &ack); err != nil {
		t.Fatal(err)
	}
	if ack["status"] != "queued" {
		t.Fatalf("ack = %v", ack)
	}

	session, _ := repo.GetSession("sess-1")
	if session.UnreadCount != 1 || session.LastSender != entity.SenderAgent {
		t.Fatalf("session after route: unread=%d last=%s", session.UnreadCount, session.LastSender)
	}
}

func TestRouteAgentMessageToConnectedCustomer(t *testing.T) {
	svc, repo := newTestService(t)
	seedSession(t, repo, "sess-1", "cust-1")

	custConn := &fakeConn{id: "conn-cust"}
	if _, err := svc.Connect(custConn, "cust-1", "Alice"); err != nil {
		t.Fatal(err)
	}

	agentConn := &fakeConn{id: "conn-agent"}
	_, delivered, err := svc.Route(InboundMessage{
		SessionID:  "sess-1",
		SenderID:   "agent-1",
		Content:    "hello",
		Origin:     agentConn,
		OriginRole: ws.RoleAgent,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !delivered {
		t.Fatal("message not delivered to connected customer")
	}

	var got entity.ChatMessage
	if err := json.Unmarshal(custConn.lastFrame(t, ws.FrameChatMessage), &got); err != nil {
		t.Fatal(err)
	}
	if got.Content != "hello" || got.SenderType != entity.SenderAgent {
		t.Fatalf("customer received %+v", got)
	}

	agentConn.lastFrame(t, ws.FrameMessageDelivered)
}

func TestRouteCustomerMessageFansOutToAgents(t *testing.T) {
	svc, repo := newTestService(t)
	seedSession(t, repo, "sess-1", "cust-1")

	agentA := &fakeConn{id: "conn-a"}
	agentB := &fakeConn{id: "conn-b"}
	svc.AgentConnect(agentA, "agent-a", "Ann")
	svc.AgentConnect(agentB, "agent-b", "Ben")

	custConn := &fakeConn{id: "conn-cust"}
	_, _, err := svc.Route(InboundMessage{
		SessionID:  "sess-1",
		SenderID:   "cust-1",
		Content:    "I need help",
		Origin:     custConn,
		OriginRole: ws.RoleCustomer,
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, agent := range []*fakeConn{agentA, agentB} {
		var got entity.ChatMessage
		if err := json.Unmarshal(agent.lastFrame(t, ws.FrameChatMessage), &got); err != nil {
			t.Fatal(err)
		}
		if got.Content != "I need help" || got.SenderType != entity.SenderCustomer {
			t.Fatalf("agent received %+v", got)
		}
	}
}

func TestRouteRejectsInvalidInput(t *testing.T) {
	svc, repo := newTestService(t)
	seedSession(t, repo, "sess-1", "cust-1")

	_, _, err := svc.Route(InboundMessage{SessionID: "sess-1", SenderID: "cust-1", Content: "   "})
	if !errors.Is(err, entity.ErrEmptyContent) {
		t.Fatalf("blank content: %v", err)
	}

	_, _, err = svc.Route(InboundMessage{SenderID: "cust-1", Content: "hi"})
	if !errors.Is(err, entity.ErrNoSession) {
		t.Fatalf("missing session id: %v", err)
	}

	_, _, err = svc.Route(InboundMessage{SessionID: "nope", SenderID: "cust-1", Content: "hi"})
	if !errors.Is(err, entity.ErrSessionNotFound) {
		t.Fatalf("unknown session: %v", err)
	}
}

func TestRouteRejectsEndedSession(t *testing.T) {
	svc, repo := newTestService(t)
	seedSession(t, repo, "sess-1", "cust-1")

	if err := svc.End("sess-1"); err != nil {
		t.Fatal(err)
	}
	before, _ := repo.GetSession("sess-1")

	_, _, err := svc.Route(InboundMessage{
		SessionID: "sess-1",
		SenderID:  "cust-1",
		Content:   "anyone still there?",
	})
	if !errors.Is(err, entity.ErrSessionEnded) {
		t.Fatalf("route into ended session: %v", err)
	}

	// The terminal session stays untouched: no new message, no summary bump.
	if n := repo.messageCount("sess-1"); n != 1 {
		t.Fatalf("messages after rejected send = %d, want 1", n)
	}
	after, _ := repo.GetSession("sess-1")
	if after.UnreadCount != before.UnreadCount || after.LastActivity != before.LastActivity {
		t.Fatalf("ended session mutated: before=%+v after=%+v", before, after)
	}
}

func TestRouteDuplicateEchoesQueuedOutcome(t *testing.T) {
	svc, repo := newTestService(t)
	seedSession(t, repo, "sess-1", "cust-1")

	// No customer connection: the first agent attempt is queued.
	agentConn := &fakeConn{id: "conn-agent"}
	_, delivered, err := svc.Route(InboundMessage{
		SessionID:  "sess-1",
		SenderID:   "agent-1",
		Content:    "are you there?",
		Origin:     agentConn,
		OriginRole: ws.RoleAgent,
	})
	if err != nil {
		t.Fatal(err)
	}
	if delivered {
		t.Fatal("first attempt reported delivered with no customer connection")
	}

	// The retry must not claim delivery the first attempt never made.
	retryConn := &fakeConn{id: "conn-agent-2"}
	_, delivered, err = svc.Route(InboundMessage{
		SessionID:  "sess-1",
		SenderID:   "agent-1",
		Content:    "are you there?",
		Origin:     retryConn,
		OriginRole: ws.RoleAgent,
	})
	if err != nil {
		t.Fatal(err)
	}
	if delivered {
		t.Fatal("duplicate reported delivered although the original was queued")
	}
	var ack map[string]string
	if err := json.Unmarshal(retryConn.lastFrame(t, ws.FrameUserOffline), &ack); err != nil {
		t.Fatal(err)
	}
	if ack["status"] != "queued" {
		t.Fatalf("duplicate ack = %v", ack)
	}
	if repo.messageCount("sess-1") != 1 {
		t.Fatalf("stored %d messages, want 1", repo.messageCount("sess-1"))
	}
}

func TestRouteCollapsesDuplicateSubmission(t *testing.T) {
	svc, repo := newTestService(t)
	seedSession(t, repo, "sess-1", "cust-1")

	if _, _, err := svc.SendMessage("sess-1", "cust-1", "Alice", "", "", "hello"); err != nil {
		t.Fatal(err)
	}
	// The live path re-submits the same message moments later.
	if _, _, err := svc.SendMessage("sess-1", "cust-1", "Alice", "", "", "hello"); err != nil {
		t.Fatal(err)
	}

	if repo.messageCount("sess-1") != 1 {
		t.Fatalf("stored %d messages, want 1", repo.messageCount("sess-1"))
	}
	session, _ := repo.GetSession("sess-1")
	if session.UnreadCount != 1 {
		t.Fatalf("unread = %d, want 1", session.UnreadCount)
	}
}

func TestRouteOriginRoleOutranksClaimedType(t *testing.T) {
	svc, repo := newTestService(t)
	seedSession(t, repo, "sess-1", "cust-1")

	custConn := &fakeConn{id: "conn-cust"}
	msg, _, err := svc.Route(InboundMessage{
		SessionID:  "sess-1",
		SenderID:   "cust-1",
		SenderType: entity.SenderAgent,
		Content:    "pretending",
		Origin:     custConn,
		OriginRole: ws.RoleCustomer,
	})
	if err != nil {
		t.Fatal(err)
	}
	if msg.SenderType != entity.SenderCustomer {
		t.Fatalf("sender type = %s, want CUSTOMER", msg.SenderType)
	}
}

func TestEndSessionIdempotent(t *testing.T) {
	svc, repo := newTestService(t)
	seedSession(t, repo, "sess-1", "cust-1")

	custConn := &fakeConn{id: "conn-cust"}
	if _, err := svc.Connect(custConn, "cust-1", "Alice"); err != nil {
		t.Fatal(err)
	}

	if err := svc.End("sess-1"); err != nil {
		t.Fatal(err)
	}

	session, _ := repo.GetSession("sess-1")
	if session.Status != entity.SessionEnded || session.EndedAt == nil {
		t.Fatalf("session after end: %+v", session)
	}
	custConn.lastFrame(t, ws.FrameChatEnded)

	systemMessages := 0
	for _, msg := range repo.messages {
		if msg.SenderType == entity.SenderSystem {
			systemMessages++
		}
	}
	if systemMessages != 1 {
		t.Fatalf("system messages = %d, want 1", systemMessages)
	}

	// Repeating the call succeeds without adding another closing message.
	if err := svc.End("sess-1"); err != nil {
		t.Fatal(err)
	}
	if n := repo.messageCount("sess-1"); n != 1 {
		t.Fatalf("messages after repeated end = %d, want 1", n)
	}
}

func TestEndSessionMissing(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.End("nope"); !errors.Is(err, entity.ErrSessionNotFound) {
		t.Fatalf("end missing session: %v", err)
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	svc, repo := newTestService(t)
	seedSession(t, repo, "sess-1", "cust-1")

	custConn := &fakeConn{id: "conn-cust"}
	if _, err := svc.Connect(custConn, "cust-1", "Alice"); err != nil {
		t.Fatal(err)
	}
	agentConn := &fakeConn{id: "conn-agent"}
	svc.AgentConnect(agentConn, "agent-1", "Ann")

	if _, _, err := svc.SendMessage("sess-1", "cust-1", "Alice", "", "", "hello"); err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete("sess-1"); err != nil {
		t.Fatal(err)
	}

	if repo.sessionCount() != 0 {
		t.Fatal("session survived delete")
	}
	if repo.messageCount("sess-1") != 0 {
		t.Fatal("messages survived delete")
	}
	custConn.lastFrame(t, ws.FrameSessionDeleted)
	agentConn.lastFrame(t, ws.FrameSessionDeleted)

	if conn := svc.reg.CustomerConn("sess-1"); conn != nil {
		t.Fatal("registry still has a binding for the deleted session")
	}
	if _, ok := svc.reg.SessionFor("cust-1"); ok {
		t.Fatal("resume mapping survived delete")
	}
}

func TestMarkReadResetsUnread(t *testing.T) {
	svc, repo := newTestService(t)
	seedSession(t, repo, "sess-1", "cust-1")

	if _, _, err := svc.SendMessage("sess-1", "cust-1", "Alice", "", "", "hello"); err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkRead("sess-1"); err != nil {
		t.Fatal(err)
	}

	session, _ := repo.GetSession("sess-1")
	if session.UnreadCount != 0 {
		t.Fatalf("unread = %d after mark read", session.UnreadCount)
	}

	if err := svc.MarkRead("nope"); !errors.Is(err, entity.ErrSessionNotFound) {
		t.Fatalf("mark read missing session: %v", err)
	}
}

func TestRosterIncludesOfflinePendingSessions(t *testing.T) {
	svc, repo := newTestService(t)
	seedSession(t, repo, "sess-1", "cust-1")
	seedSession(t, repo, "sess-2", "cust-2")

	// cust-1 is online, cust-2 left an unanswered message and disconnected.
	custConn := &fakeConn{id: "conn-cust"}
	if _, err := svc.Connect(custConn, "cust-1", "Alice"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.SendMessage("sess-2", "cust-2", "Bob", "", "", "anyone?"); err != nil {
		t.Fatal(err)
	}

	roster := svc.Roster()
	if len(roster) != 2 {
		t.Fatalf("roster has %d entries, want 2", len(roster))
	}

	byID := make(map[string]entity.OnlineCustomer)
	for _, entry := range roster {
		byID[entry.SessionID] = entry
	}
	if !byID["sess-1"].Online {
		t.Fatal("connected customer not marked online")
	}
	offline, ok := byID["sess-2"]
	if !ok || offline.Online || !offline.Pending {
		t.Fatalf("offline pending entry = %+v", offline)
	}
}

func TestSuggestDisabledWithoutAssistant(t *testing.T) {
	svc, repo := newTestService(t)
	seedSession(t, repo, "sess-1", "cust-1")

	_, err := svc.Suggest(context.Background(), "sess-1")
	if !errors.Is(err, entity.ErrAssistDisabled) {
		t.Fatalf("suggest without assistant: %v", err)
	}
}

func TestApiKeyRoundtrip(t *testing.T) {
	svc, _ := newTestService(t)

	key, err := svc.GenerateApiKey("dashboard")
	if err != nil {
		t.Fatal(err)
	}

	user, err := svc.AuthenticateByToken(key)
	if err != nil {
		t.Fatal(err)
	}
	if user.Username != "dashboard" {
		t.Fatalf("authenticated as %q", user.Username)
	}

	if _, err := svc.AuthenticateByToken("bogus"); err == nil {
		t.Fatal("bogus token accepted")
	}
}
