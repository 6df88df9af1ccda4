package chat

import (
	"ShopTalk/entity"
	"context"
)

type Core interface {
	CreateOrResume(customerID, customerName string) (*entity.ChatSession, bool, error)
	Sessions() ([]entity.ChatSession, error)
	CustomerSessions(customerID string) ([]entity.ChatSession, error)
	History(sessionID string, limit, offset int) ([]entity.ChatMessage, error)
	SendMessage(sessionID, senderID, senderName, senderType, receiverID, content string) (*entity.ChatMessage, bool, error)
	MarkRead(sessionID string) error
	End(sessionID string) error
	Delete(sessionID string) error
	Roster() []entity.OnlineCustomer
	Suggest(ctx context.Context, sessionID string) (string, error)
}
