package ws

import (
	"ShopTalk/internal/lib/validate"
	"encoding/json"
	"fmt"
)

// Inbound frame types.
const (
	FrameCustomerConnect = "CUSTOMER_CONNECT"
	FrameAgentConnect    = "AGENT_CONNECT"
	FrameChatMessage     = "CHAT_MESSAGE"
	FrameEndChat         = "END_CHAT"
	FrameDisconnect      = "DISCONNECT"
)

// Outbound frame types.
const (
	FrameConnectionEstablished = "CONNECTION_ESTABLISHED"
	FrameMessageDelivered      = "MESSAGE_DELIVERED"
	FrameUserOffline           = "USER_OFFLINE"
	FrameUserConnected         = "USER_CONNECTED"
	FrameUserDisconnected      = "USER_DISCONNECTED"
	FrameChatEnded             = "CHAT_ENDED"
	FrameSessionDeleted        = "SESSION_DELETED"
	FrameActiveUsers           = "ACTIVE_USERS"
	FramePendingMessages       = "PENDING_MESSAGES"
	FrameError                 = "ERROR"
)

// Frame is the wire envelope: a type discriminator plus a type-specific
// payload.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type CustomerConnectData struct {
	CustomerID  string `json:"customer_id" validate:"required"`
	DisplayName string `json:"display_name"`
}

type AgentConnectData struct {
	AgentID   string `json:"agent_id" validate:"required"`
	AgentName string `json:"agent_name" validate:"required"`
}

type ChatMessageData struct {
	SessionID  string `json:"session_id"`
	SenderID   string `json:"sender_id" validate:"required"`
	SenderName string `json:"sender_name"`
	SenderType string `json:"sender_type"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content" validate:"required"`
}

type EndChatData struct {
	SessionID  string `json:"session_id" validate:"required"`
	CustomerID string `json:"customer_id" validate:"required"`
}

// NewFrame marshals an outbound frame. Payload marshalling of our own types
// does not fail; a nil return only happens on a programming error and is
// handled by the caller dropping the frame.
func NewFrame(frameType string, data interface{}) []byte {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil
		}
		raw = encoded
	}
	out, err := json.Marshal(Frame{Type: frameType, Data: raw})
	if err != nil {
		return nil
	}
	return out
}

// ErrorFrame builds an ERROR frame with a message for the sender.
func ErrorFrame(msg string) []byte {
	return NewFrame(FrameError, map[string]string{"message": msg})
}

// decodeData unmarshals a frame payload and checks its required fields.
func decodeData(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing frame data")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("malformed frame data: %w", err)
	}
	return validate.Struct(v)
}
