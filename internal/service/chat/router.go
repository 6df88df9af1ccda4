package chat

import (
	"ShopTalk/entity"
	"ShopTalk/internal/lib/sl"
	"ShopTalk/internal/registry"
	"ShopTalk/internal/ws"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// InboundMessage is one message entering the router, from either the live
// connection or the REST fallback path.
type InboundMessage struct {
	SessionID  string
	SenderID   string
	SenderName string
	SenderType string
	ReceiverID string
	Content    string
	// Origin is the live connection that produced the message; nil for REST.
	// Acknowledgements (delivered / offline-queued) go back through it.
	Origin registry.Conn
	// OriginRole is the transport-level role of Origin. It outranks the
	// wire-supplied sender type: a customer connection cannot claim to be
	// an agent.
	OriginRole ws.Role
}

// Route persists and forwards one message. Persistence strictly precedes
// forwarding, so every connected party observes messages in stored order.
// It returns the stored message and whether a live delivery happened.
func (s *Service) Route(m InboundMessage) (*entity.ChatMessage, bool, error) {
	if strings.TrimSpace(m.Content) == "" {
		return nil, false, entity.ErrEmptyContent
	}
	if m.SessionID == "" {
		return nil, false, entity.ErrNoSession
	}

	session, err := s.repo.GetSession(m.SessionID)
	if err != nil {
		return nil, false, fmt.Errorf("lookup session: %w", err)
	}
	if session == nil {
		return nil, false, entity.ErrSessionNotFound
	}
	if session.Status == entity.SessionEnded {
		return nil, false, entity.ErrSessionEnded
	}

	senderType := s.classify(m)
	now := time.Now()

	// The REST path and the live path may both submit the same message;
	// the server-side key collapses them to a single stored row and the
	// repeat is answered with the first attempt's outcome.
	entry, fresh := s.dedupe.remember(m.SessionID, m.SenderID, m.Content, now)
	if !fresh {
		delivered := s.dedupe.outcome(entry)
		s.ack(m.Origin, m.SessionID, delivered)
		return nil, delivered, nil
	}

	msg := &entity.ChatMessage{
		ChatSessionID: m.SessionID,
		Content:       m.Content,
		SenderID:      m.SenderID,
		SenderName:    m.SenderName,
		SenderType:    senderType,
		ReceiverID:    m.ReceiverID,
		Read:          senderType == entity.SenderSystem,
		CreatedAt:     now,
	}
	if err := s.repo.SaveChatMessage(msg); err != nil {
		return nil, false, fmt.Errorf("save message: %w", err)
	}

	incUnread := senderType != entity.SenderSystem
	if err := s.repo.BumpSession(m.SessionID, msg.Content, senderType, now, incUnread); err != nil {
		s.log.Error("update session message cache",
			slog.String("session_id", m.SessionID),
			sl.Err(err),
		)
	}

	s.publish("message_saved", m.SessionID, msg)

	delivered := s.deliver(msg)
	s.dedupe.setOutcome(entry, delivered)
	s.ack(m.Origin, m.SessionID, delivered)

	return msg, delivered, nil
}

// SendMessage is the REST entry into the router. There is no live origin,
// so no acknowledgement frame goes anywhere; the caller reads the delivered
// flag from the response instead.
func (s *Service) SendMessage(sessionID, senderID, senderName, senderType, receiverID, content string) (*entity.ChatMessage, bool, error) {
	return s.Route(InboundMessage{
		SessionID:  sessionID,
		SenderID:   senderID,
		SenderName: senderName,
		SenderType: senderType,
		ReceiverID: receiverID,
		Content:    content,
	})
}

// classify decides who authored the message. The connection role wins; a
// message without a live origin falls back to the agent pool lookup and
// then to the explicit sender-type field. SYSTEM is never accepted from
// the wire.
func (s *Service) classify(m InboundMessage) string {
	switch m.OriginRole {
	case ws.RoleAgent:
		return entity.SenderAgent
	case ws.RoleCustomer:
		return entity.SenderCustomer
	}
	if s.hub.Agent(m.SenderID) != nil {
		return entity.SenderAgent
	}
	if m.SenderType == entity.SenderAgent {
		return entity.SenderAgent
	}
	return entity.SenderCustomer
}

// deliver forwards a stored message to its live audience. Agent messages go
// to the one customer connection of the session; customer and system
// messages fan out to every connected agent.
func (s *Service) deliver(msg *entity.ChatMessage) bool {
	frame := ws.NewFrame(ws.FrameChatMessage, msg)

	if msg.SenderType == entity.SenderAgent {
		conn := s.reg.CustomerConn(msg.ChatSessionID)
		if conn == nil {
			return false
		}
		return conn.Send(frame)
	}

	s.hub.Broadcast(ws.FrameChatMessage, msg)
	return true
}

// ack answers the live sender. An unreachable customer is not a failure:
// the message is stored and will replay on reconnect, so the agent gets an
// offline-queued acknowledgement instead of a delivery confirmation.
func (s *Service) ack(origin registry.Conn, sessionID string, delivered bool) {
	if origin == nil {
		return
	}
	payload := map[string]string{"session_id": sessionID}
	if delivered {
		origin.Send(ws.NewFrame(ws.FrameMessageDelivered, payload))
		return
	}
	payload["status"] = "queued"
	origin.Send(ws.NewFrame(ws.FrameUserOffline, payload))
}

// Connect binds a live customer connection to its session (creating or
// resuming it), replays the transcript, and announces the customer to the
// agent pool.
func (s *Service) Connect(conn registry.Conn, customerID, displayName string) (*entity.ChatSession, error) {
	session, _, err := s.CreateOrResume(customerID, displayName)
	if err != nil {
		return nil, err
	}

	s.reg.BindCustomer(session.ID, customerID, session.CustomerName, conn)
	if s.presence != nil {
		s.presence.SetOnline(customerID, session.ID, session.CustomerName)
	}

	conn.Send(ws.NewFrame(ws.FrameConnectionEstablished, session))

	// Replay the newest messages so the client's transcript matches the tail
	// of the durable log, including anything queued while it was offline.
	messages, err := s.repo.GetRecentSessionMessages(session.ID, s.replayLimit)
	if err != nil {
		s.log.Error("replay session history",
			slog.String("session_id", session.ID),
			sl.Err(err),
		)
	} else {
		conn.Send(ws.NewFrame(ws.FramePendingMessages, map[string]interface{}{
			"session_id": session.ID,
			"messages":   messages,
		}))
	}

	s.hub.Broadcast(ws.FrameUserConnected, map[string]string{
		"customer_id":   customerID,
		"customer_name": session.CustomerName,
		"session_id":    session.ID,
	})

	return session, nil
}

// AgentConnect adds an agent to the pool and sends it the roster snapshot
// so an agent joining mid-shift can triage immediately.
func (s *Service) AgentConnect(conn ws.AgentConn, agentID, agentName string) {
	s.hub.Register(agentID, conn)
	s.log.Info("agent connected",
		slog.String("agent_id", agentID),
		slog.String("agent_name", agentName),
	)

	conn.Send(ws.NewFrame(ws.FrameActiveUsers, map[string]interface{}{
		"users": s.Roster(),
	}))
}

// Roster builds the agent-facing view: every customer with a live
// connection, plus offline sessions still waiting on an agent answer.
func (s *Service) Roster() []entity.OnlineCustomer {
	byID := make(map[string]*entity.ChatSession)
	sessions, err := s.repo.ListSessions()
	if err != nil {
		s.log.Error("list sessions for roster", sl.Err(err))
	} else {
		for i := range sessions {
			byID[sessions[i].ID] = &sessions[i]
		}
	}

	var roster []entity.OnlineCustomer
	seen := make(map[string]bool)

	for _, e := range s.reg.Online() {
		entry := entity.OnlineCustomer{
			CustomerID:   e.CustomerID,
			CustomerName: e.CustomerName,
			SessionID:    e.SessionID,
			Online:       true,
		}
		if session, ok := byID[e.SessionID]; ok {
			entry.Pending = session.Pending()
			entry.UnreadCount = session.UnreadCount
		}
		roster = append(roster, entry)
		seen[e.SessionID] = true
	}

	for _, session := range byID {
		if seen[session.ID] || !session.Pending() {
			continue
		}
		roster = append(roster, entity.OnlineCustomer{
			CustomerID:   session.CustomerID,
			CustomerName: session.CustomerName,
			SessionID:    session.ID,
			Pending:      true,
			UnreadCount:  session.UnreadCount,
		})
	}

	return roster
}
