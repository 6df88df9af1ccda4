package chat

import (
	"ShopTalk/entity"
	"ShopTalk/internal/lib/sl"
	"ShopTalk/internal/ws"
	"errors"
	"log/slog"
)

// The service implements ws.FrameHandler: these methods glue parsed frames
// from one connection onto the lifecycle manager and the router. Expected
// conditions answer with an ERROR frame on the same connection and leave it
// open; only transport failures close connections.

func (s *Service) HandleCustomerConnect(c *ws.Client, data ws.CustomerConnectData) {
	session, err := s.Connect(c, data.CustomerID, data.DisplayName)
	if err != nil {
		s.log.Error("customer connect",
			slog.String("customer_id", data.CustomerID),
			sl.Err(err),
		)
		c.Send(ws.ErrorFrame("failed to open chat session"))
		return
	}
	c.BindSession(session.ID, data.CustomerID)
}

func (s *Service) HandleAgentConnect(c *ws.Client, data ws.AgentConnectData) {
	c.BindAgent(data.AgentID, data.AgentName)
	s.AgentConnect(c, data.AgentID, data.AgentName)
}

func (s *Service) HandleChatMessage(c *ws.Client, data ws.ChatMessageData) {
	sessionID := data.SessionID
	if sessionID == "" {
		sessionID = c.SessionID()
	}

	senderName := data.SenderName
	if senderName == "" && c.Role() == ws.RoleAgent {
		senderName = c.AgentName()
	}

	_, _, err := s.Route(InboundMessage{
		SessionID:  sessionID,
		SenderID:   data.SenderID,
		SenderName: senderName,
		SenderType: data.SenderType,
		ReceiverID: data.ReceiverID,
		Content:    data.Content,
		Origin:     c,
		OriginRole: c.Role(),
	})
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrNoSession):
			c.Send(ws.ErrorFrame("no chat session for this message"))
		case errors.Is(err, entity.ErrSessionNotFound):
			c.Send(ws.ErrorFrame("chat session not found"))
		case errors.Is(err, entity.ErrSessionEnded):
			c.Send(ws.ErrorFrame("chat session has ended"))
		case errors.Is(err, entity.ErrEmptyContent):
			c.Send(ws.ErrorFrame("message content is empty"))
		default:
			s.log.Error("route message",
				slog.String("session_id", sessionID),
				sl.Err(err),
			)
			c.Send(ws.ErrorFrame("failed to save message"))
		}
	}
}

func (s *Service) HandleEndChat(c *ws.Client, data ws.EndChatData) {
	if err := s.End(data.SessionID); err != nil {
		if errors.Is(err, entity.ErrSessionNotFound) {
			c.Send(ws.ErrorFrame("chat session not found"))
			return
		}
		s.log.Error("end chat",
			slog.String("session_id", data.SessionID),
			sl.Err(err),
		)
		c.Send(ws.ErrorFrame("failed to end chat"))
	}
}

// ConnectionClosed cleans up after a transport close or an explicit
// DISCONNECT. Only this physical connection's bindings go away; the logical
// session stays and can be resumed.
func (s *Service) ConnectionClosed(c *ws.Client) {
	switch c.Role() {
	case ws.RoleAgent:
		if agentID := c.AgentID(); agentID != "" {
			s.hub.Unregister(agentID, c.ID())
			s.log.Info("agent disconnected", slog.String("agent_id", agentID))
		}
	default:
		sessionID, ok := s.reg.UnbindConn(c.ID())
		if !ok {
			return
		}
		customerID := c.CustomerID()
		if s.presence != nil {
			s.presence.SetOffline(customerID)
		}
		s.hub.Broadcast(ws.FrameUserDisconnected, map[string]string{
			"customer_id": customerID,
			"session_id":  sessionID,
		})
	}
}
