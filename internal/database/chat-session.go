package repository

import (
	"ShopTalk/entity"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SaveSession inserts a new chat session document.
func (m *MongoDB) SaveSession(session *entity.ChatSession) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatSessionsCollection)

	_, err = collection.InsertOne(m.ctx, session)
	if err != nil {
		return fmt.Errorf("mongodb insert chat session: %w", err)
	}

	return nil
}

// GetSession returns a session by id, or nil when it does not exist.
func (m *MongoDB) GetSession(id string) (*entity.ChatSession, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatSessionsCollection)
	filter := bson.D{{Key: "_id", Value: id}}

	var session entity.ChatSession
	err = collection.FindOne(m.ctx, filter).Decode(&session)
	if err != nil {
		return nil, m.findError(err)
	}

	return &session, nil
}

// GetActiveSession returns the customer's ACTIVE session, or nil when the
// customer has none.
func (m *MongoDB) GetActiveSession(customerID string) (*entity.ChatSession, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatSessionsCollection)
	filter := bson.D{{Key: "customer_id", Value: customerID}, {Key: "status", Value: entity.SessionActive}}

	var session entity.ChatSession
	err = collection.FindOne(m.ctx, filter).Decode(&session)
	if err != nil {
		return nil, m.findError(err)
	}

	return &session, nil
}

// ListSessions returns all sessions ordered by most recent activity.
func (m *MongoDB) ListSessions() ([]entity.ChatSession, error) {
	return m.listSessions(bson.D{})
}

// ListCustomerSessions returns a customer's sessions ordered by most recent
// activity.
func (m *MongoDB) ListCustomerSessions(customerID string) ([]entity.ChatSession, error) {
	return m.listSessions(bson.D{{Key: "customer_id", Value: customerID}})
}

func (m *MongoDB) listSessions(filter bson.D) ([]entity.ChatSession, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatSessionsCollection)
	opts := options.Find().SetSort(bson.D{{Key: "last_activity", Value: -1}})

	cursor, err := collection.Find(m.ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find chat sessions: %w", err)
	}
	defer cursor.Close(m.ctx)

	var sessions []entity.ChatSession
	if err = cursor.All(m.ctx, &sessions); err != nil {
		return nil, fmt.Errorf("mongodb decode chat sessions: %w", err)
	}

	return sessions, nil
}

// EndSession marks a session ENDED and stamps ended_at.
func (m *MongoDB) EndSession(id string, endedAt time.Time) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatSessionsCollection)

	filter := bson.D{{Key: "_id", Value: id}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: entity.SessionEnded},
		{Key: "ended_at", Value: endedAt},
	}}}

	_, err = collection.UpdateOne(m.ctx, filter, update)
	if err != nil {
		return fmt.Errorf("mongodb end chat session: %w", err)
	}

	return nil
}

// BumpSession caches the newest message on the session document and
// optionally increments the unread counter.
func (m *MongoDB) BumpSession(id, lastMessage, lastSender string, at time.Time, incUnread bool) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatSessionsCollection)

	filter := bson.D{{Key: "_id", Value: id}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "last_message", Value: lastMessage},
		{Key: "last_sender", Value: lastSender},
		{Key: "last_activity", Value: at},
	}}}
	if incUnread {
		update = append(update, bson.E{Key: "$inc", Value: bson.D{{Key: "unread_count", Value: 1}}})
	}

	_, err = collection.UpdateOne(m.ctx, filter, update)
	if err != nil {
		return fmt.Errorf("mongodb bump chat session: %w", err)
	}

	return nil
}

// MarkSessionRead resets the session's unread counter and flips the read
// flag on its unread non-system messages.
func (m *MongoDB) MarkSessionRead(id string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	sessions := connection.Database(m.database).Collection(chatSessionsCollection)
	_, err = sessions.UpdateOne(m.ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "unread_count", Value: 0}}}},
	)
	if err != nil {
		return fmt.Errorf("mongodb reset unread count: %w", err)
	}

	messages := connection.Database(m.database).Collection(chatMessagesCollection)
	_, err = messages.UpdateMany(m.ctx,
		bson.D{
			{Key: "chat_session_id", Value: id},
			{Key: "read", Value: false},
			{Key: "sender_type", Value: bson.D{{Key: "$ne", Value: entity.SenderSystem}}},
		},
		bson.D{{Key: "$set", Value: bson.D{{Key: "read", Value: true}}}},
	)
	if err != nil {
		return fmt.Errorf("mongodb mark messages read: %w", err)
	}

	return nil
}

// DeleteSession removes a session and all of its messages. Messages go
// first so a failure never leaves orphans behind a missing session.
func (m *MongoDB) DeleteSession(id string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	messages := connection.Database(m.database).Collection(chatMessagesCollection)
	_, err = messages.DeleteMany(m.ctx, bson.D{{Key: "chat_session_id", Value: id}})
	if err != nil {
		return fmt.Errorf("mongodb delete chat messages: %w", err)
	}

	sessions := connection.Database(m.database).Collection(chatSessionsCollection)
	_, err = sessions.DeleteOne(m.ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("mongodb delete chat session: %w", err)
	}

	return nil
}
