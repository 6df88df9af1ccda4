package chat

import (
	"ShopTalk/entity"
	"ShopTalk/internal/config"
	"ShopTalk/internal/lib/sl"
	"ShopTalk/internal/registry"
	"ShopTalk/internal/ws"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Repository is the durable store behind the relay. It is the single source
// of truth; the in-memory registry and hub only cache who is reachable.
type Repository interface {
	SaveSession(session *entity.ChatSession) error
	GetSession(id string) (*entity.ChatSession, error)
	GetActiveSession(customerID string) (*entity.ChatSession, error)
	ListSessions() ([]entity.ChatSession, error)
	ListCustomerSessions(customerID string) ([]entity.ChatSession, error)
	EndSession(id string, endedAt time.Time) error
	BumpSession(id, lastMessage, lastSender string, at time.Time, incUnread bool) error
	MarkSessionRead(id string) error
	DeleteSession(id string) error

	SaveChatMessage(msg *entity.ChatMessage) error
	GetSessionMessages(sessionID string, limit, offset int) ([]entity.ChatMessage, error)
	GetRecentSessionMessages(sessionID string, limit int) ([]entity.ChatMessage, error)
	CleanupChatMessages(retentionDays, floor int) error

	CheckApiKey(key string) (string, error)
	GenerateApiKey(username string) (string, error)
}

// EventPublisher pushes session lifecycle events to downstream consumers
// (analytics, future multi-instance fan-out).
type EventPublisher interface {
	Publish(event, sessionID string, payload interface{}) error
}

// PresenceCache mirrors the live roster for consumers that only speak REST.
type PresenceCache interface {
	SetOnline(customerID, sessionID, name string)
	SetOffline(customerID string)
}

// Assistant drafts suggested replies for agents.
type Assistant interface {
	SuggestReply(ctx context.Context, sessionID string) (string, error)
}

// Service is the session lifecycle manager and message router of the
// support-chat relay.
type Service struct {
	repo     Repository
	reg      *registry.Registry
	hub      *ws.Hub
	locker   *Locker
	dedupe   *dedupe
	events   EventPublisher
	presence PresenceCache
	assist   Assistant

	replayLimit    int
	retentionDays  int
	retentionFloor int

	log *slog.Logger
}

func New(conf *config.Config, log *slog.Logger, repo Repository, reg *registry.Registry, hub *ws.Hub) *Service {
	s := &Service{
		repo:           repo,
		reg:            reg,
		hub:            hub,
		locker:         NewLocker(),
		dedupe:         newDedupe(dedupeBucket * 2),
		replayLimit:    conf.Chat.ReplayLimit,
		retentionDays:  conf.Chat.RetentionDays,
		retentionFloor: conf.Chat.RetentionFloor,
		log:            log.With(sl.Module("chat")),
	}
	hub.SetOnDrop(func(agentID string) {
		s.log.Info("agent connection pruned", slog.String("agent_id", agentID))
	})
	return s
}

func (s *Service) SetEvents(events EventPublisher) {
	s.events = events
}

func (s *Service) SetPresence(presence PresenceCache) {
	s.presence = presence
}

func (s *Service) SetAssist(assist Assistant) {
	s.assist = assist
}

// Init starts the daily message retention sweep.
func (s *Service) Init() {
	go func() {
		for {
			now := time.Now()
			nextRun := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())
			if now.After(nextRun) {
				nextRun = nextRun.Add(24 * time.Hour)
			}
			s.log.With(
				slog.Time("nextRun", nextRun),
			).Info("next chat message cleanup")

			time.Sleep(time.Until(nextRun))

			if err := s.repo.CleanupChatMessages(s.retentionDays, s.retentionFloor); err != nil {
				s.log.Error("chat message cleanup", sl.Err(err))
			}
		}
	}()
}

// CreateOrResume returns the customer's ACTIVE session, creating one when
// none exists. Calls are serialized per customer so two racing connects can
// never create two ACTIVE sessions.
func (s *Service) CreateOrResume(customerID, customerName string) (*entity.ChatSession, bool, error) {
	if customerID == "" {
		return nil, false, entity.ErrNoSession
	}

	s.locker.Lock(customerID)
	defer s.locker.Unlock(customerID)

	existing, err := s.repo.GetActiveSession(customerID)
	if err != nil {
		return nil, false, fmt.Errorf("lookup active session: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	id := uuid.New().String()
	if customerName == "" {
		customerName = "Guest-" + id[:8]
	}
	now := time.Now()
	session := &entity.ChatSession{
		ID:           id,
		CustomerID:   customerID,
		CustomerName: customerName,
		Status:       entity.SessionActive,
		StartedAt:    now,
		LastActivity: now,
	}
	if err := s.repo.SaveSession(session); err != nil {
		return nil, false, fmt.Errorf("create session: %w", err)
	}

	s.publish("session_started", session.ID, session)

	return session, true, nil
}

// End marks a session ENDED and notifies everyone watching it. Ending an
// already ended session is a no-op so duplicate client retries stay cheap;
// ending a missing session is an error.
func (s *Service) End(sessionID string) error {
	session, err := s.repo.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("lookup session: %w", err)
	}
	if session == nil {
		return entity.ErrSessionNotFound
	}
	if session.Status == entity.SessionEnded {
		return nil
	}

	now := time.Now()
	sys := &entity.ChatMessage{
		ChatSessionID: sessionID,
		Content:       "Conversation ended",
		SenderID:      "system",
		SenderName:    "System",
		SenderType:    entity.SenderSystem,
		Read:          true,
		CreatedAt:     now,
	}
	if err := s.repo.SaveChatMessage(sys); err != nil {
		s.log.Warn("save end-of-chat system message", sl.Err(err))
	}

	if err := s.repo.EndSession(sessionID, now); err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	payload := map[string]string{
		"session_id":  sessionID,
		"customer_id": session.CustomerID,
	}
	if conn := s.reg.CustomerConn(sessionID); conn != nil {
		conn.Send(ws.NewFrame(ws.FrameChatEnded, payload))
	}
	s.hub.Broadcast(ws.FrameChatEnded, payload)
	s.publish("session_ended", sessionID, payload)

	return nil
}

// MarkRead zeroes the session's unread counter and flips the read flag on
// its unread non-system messages.
func (s *Service) MarkRead(sessionID string) error {
	session, err := s.repo.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("lookup session: %w", err)
	}
	if session == nil {
		return entity.ErrSessionNotFound
	}
	return s.repo.MarkSessionRead(sessionID)
}

// Delete removes a session and its messages, tells the customer and every
// agent to evict it, and drops all registry bindings referencing it.
func (s *Service) Delete(sessionID string) error {
	session, err := s.repo.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("lookup session: %w", err)
	}
	if session == nil {
		return entity.ErrSessionNotFound
	}

	payload := map[string]string{
		"session_id":  sessionID,
		"customer_id": session.CustomerID,
	}

	conn := s.reg.CustomerConn(sessionID)

	if err := s.repo.DeleteSession(sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if conn != nil {
		conn.Send(ws.NewFrame(ws.FrameSessionDeleted, payload))
	}
	s.hub.Broadcast(ws.FrameSessionDeleted, payload)

	s.reg.DropSession(sessionID)
	if s.presence != nil {
		s.presence.SetOffline(session.CustomerID)
	}
	s.publish("session_deleted", sessionID, payload)

	return nil
}

// Sessions returns every session, newest activity first.
func (s *Service) Sessions() ([]entity.ChatSession, error) {
	return s.repo.ListSessions()
}

// CustomerSessions returns one customer's sessions.
func (s *Service) CustomerSessions(customerID string) ([]entity.ChatSession, error) {
	return s.repo.ListCustomerSessions(customerID)
}

// History returns a session's transcript slice in persisted order.
func (s *Service) History(sessionID string, limit, offset int) ([]entity.ChatMessage, error) {
	session, err := s.repo.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if session == nil {
		return nil, entity.ErrSessionNotFound
	}
	return s.repo.GetSessionMessages(sessionID, limit, offset)
}

// Online snapshots the currently connected customers for REST consumers.
func (s *Service) Online() []entity.OnlineCustomer {
	entries := s.reg.Online()
	online := make([]entity.OnlineCustomer, 0, len(entries))
	for _, e := range entries {
		online = append(online, entity.OnlineCustomer{
			CustomerID:   e.CustomerID,
			CustomerName: e.CustomerName,
			SessionID:    e.SessionID,
			Online:       true,
		})
	}
	return online
}

// Suggest drafts a reply for an agent from the session's recent history.
func (s *Service) Suggest(ctx context.Context, sessionID string) (string, error) {
	if s.assist == nil {
		return "", entity.ErrAssistDisabled
	}
	session, err := s.repo.GetSession(sessionID)
	if err != nil {
		return "", fmt.Errorf("lookup session: %w", err)
	}
	if session == nil {
		return "", entity.ErrSessionNotFound
	}
	return s.assist.SuggestReply(ctx, sessionID)
}

// AuthenticateByToken resolves an api key to its owner.
func (s *Service) AuthenticateByToken(token string) (*entity.UserAuth, error) {
	username, err := s.repo.CheckApiKey(token)
	if err != nil {
		return nil, err
	}
	return &entity.UserAuth{Username: username, Token: token}, nil
}

// ValidateToken implements the websocket agent authenticator.
func (s *Service) ValidateToken(token string) (string, error) {
	return s.repo.CheckApiKey(token)
}

// GenerateApiKey creates (or returns) the api key for a username.
func (s *Service) GenerateApiKey(username string) (string, error) {
	return s.repo.GenerateApiKey(username)
}

func (s *Service) publish(event, sessionID string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(event, sessionID, payload); err != nil {
		s.log.Error("publish event", slog.String("event", event), sl.Err(err))
	}
}
