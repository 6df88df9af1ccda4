package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Sender types.
const (
	SenderCustomer = "CUSTOMER"
	SenderAgent    = "AGENT"
	SenderSystem   = "SYSTEM"
)

// ChatMessage is a single message in a support chat session. Messages are
// immutable once persisted; only the read flag may change afterwards.
// ObjectIDs grow monotonically within a process, which gives the tiebreak
// order for messages sharing a created_at timestamp.
type ChatMessage struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ChatSessionID string             `json:"chat_session_id" bson:"chat_session_id"`
	Content       string             `json:"content" bson:"content"`
	SenderID      string             `json:"sender_id" bson:"sender_id"`
	SenderName    string             `json:"sender_name" bson:"sender_name"`
	SenderType    string             `json:"sender_type" bson:"sender_type"`
	ReceiverID    string             `json:"receiver_id,omitempty" bson:"receiver_id,omitempty"`
	Read          bool               `json:"read" bson:"read"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}
