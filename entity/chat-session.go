package entity

import (
	"time"
)

// Session status values.
const (
	SessionActive = "ACTIVE"
	SessionEnded  = "ENDED"
)

// ChatSession is one logical support conversation with a customer. A session
// outlives any single websocket connection; the same customer reconnecting
// resumes the session until it is explicitly ended or deleted. At most one
// ACTIVE session exists per customer at any time.
type ChatSession struct {
	ID           string     `json:"id" bson:"_id"`
	CustomerID   string     `json:"customer_id" bson:"customer_id"`
	CustomerName string     `json:"customer_name" bson:"customer_name"`
	Status       string     `json:"status" bson:"status"`
	StartedAt    time.Time  `json:"started_at" bson:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty" bson:"ended_at,omitempty"`
	LastMessage  string     `json:"last_message" bson:"last_message"`
	LastSender   string     `json:"last_sender" bson:"last_sender"`
	LastActivity time.Time  `json:"last_activity" bson:"last_activity"`
	UnreadCount  int        `json:"unread_count" bson:"unread_count"`
}

// Pending reports whether the session is waiting for an agent answer:
// the newest message came from the customer and nobody marked it read yet.
func (s *ChatSession) Pending() bool {
	return s.Status == SessionActive && s.UnreadCount > 0 && s.LastSender == SenderCustomer
}

// OnlineCustomer is one entry of the live roster sent to agents.
type OnlineCustomer struct {
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	SessionID    string `json:"session_id"`
	Online       bool   `json:"online"`
	Pending      bool   `json:"pending"`
	UnreadCount  int    `json:"unread_count"`
}
