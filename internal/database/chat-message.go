package repository

import (
	"ShopTalk/entity"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SaveChatMessage inserts a message and trims the session to the configured
// cap. The inserted ObjectID is written back into msg.
func (m *MongoDB) SaveChatMessage(msg *entity.ChatMessage) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatMessagesCollection)

	result, err := collection.InsertOne(m.ctx, msg)
	if err != nil {
		return fmt.Errorf("mongodb insert chat message: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid
	}

	if m.maxPerSession <= 0 {
		return nil
	}

	filter := bson.D{{Key: "chat_session_id", Value: msg.ChatSessionID}}
	count, err := collection.CountDocuments(m.ctx, filter)
	if err != nil {
		return fmt.Errorf("mongodb count chat messages: %w", err)
	}

	if count > int64(m.maxPerSession) {
		// Find the Nth newest message's created_at and drop everything older
		opts := options.FindOne().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetSkip(int64(m.maxPerSession - 1))
		var cutoff entity.ChatMessage
		err = collection.FindOne(m.ctx, filter, opts).Decode(&cutoff)
		if err != nil {
			return fmt.Errorf("mongodb find cutoff message: %w", err)
		}

		deleteFilter := bson.D{
			{Key: "chat_session_id", Value: msg.ChatSessionID},
			{Key: "created_at", Value: bson.D{{Key: "$lt", Value: cutoff.CreatedAt}}},
		}
		_, err = collection.DeleteMany(m.ctx, deleteFilter)
		if err != nil {
			return fmt.Errorf("mongodb trim chat messages: %w", err)
		}
	}

	return nil
}

// GetSessionMessages returns a session's messages in transcript order:
// oldest first, ObjectID as tiebreak for equal timestamps.
func (m *MongoDB) GetSessionMessages(sessionID string, limit, offset int) ([]entity.ChatMessage, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatMessagesCollection)

	filter := bson.D{{Key: "chat_session_id", Value: sessionID}}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := collection.Find(m.ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find chat messages: %w", err)
	}
	defer cursor.Close(m.ctx)

	var messages []entity.ChatMessage
	if err = cursor.All(m.ctx, &messages); err != nil {
		return nil, fmt.Errorf("mongodb decode chat messages: %w", err)
	}

	return messages, nil
}

// GetRecentSessionMessages returns the newest limit messages of a session,
// still in transcript order. The window always ends at the most recent
// message, so a reconnecting client catches up on what it missed.
func (m *MongoDB) GetRecentSessionMessages(sessionID string, limit int) ([]entity.ChatMessage, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatMessagesCollection)

	filter := bson.D{{Key: "chat_session_id", Value: sessionID}}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(m.ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find recent chat messages: %w", err)
	}
	defer cursor.Close(m.ctx)

	var messages []entity.ChatMessage
	if err = cursor.All(m.ctx, &messages); err != nil {
		return nil, fmt.Errorf("mongodb decode recent chat messages: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// CleanupChatMessages deletes messages older than the retention window,
// keeping a floor of recent messages per session.
func (m *MongoDB) CleanupChatMessages(retentionDays, floor int) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(chatMessagesCollection)

	cutoffDate := time.Now().AddDate(0, 0, -retentionDays)

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$chat_session_id"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$match", Value: bson.D{
			{Key: "count", Value: bson.D{{Key: "$gt", Value: floor}}},
		}}},
	}

	cursor, err := collection.Aggregate(m.ctx, pipeline)
	if err != nil {
		return fmt.Errorf("mongodb aggregate for cleanup: %w", err)
	}
	defer cursor.Close(m.ctx)

	type sessionGroup struct {
		ID    string `bson:"_id"`
		Count int    `bson:"count"`
	}

	for cursor.Next(m.ctx) {
		var group sessionGroup
		if err := cursor.Decode(&group); err != nil {
			continue
		}

		maxDeletable := group.Count - floor

		findFilter := bson.D{
			{Key: "chat_session_id", Value: group.ID},
			{Key: "created_at", Value: bson.D{{Key: "$lt", Value: cutoffDate}}},
		}
		findOpts := options.Find().
			SetSort(bson.D{{Key: "created_at", Value: 1}}).
			SetLimit(int64(maxDeletable)).
			SetProjection(bson.D{{Key: "_id", Value: 1}})

		oldCursor, err := collection.Find(m.ctx, findFilter, findOpts)
		if err != nil {
			continue
		}

		var ids []interface{}
		for oldCursor.Next(m.ctx) {
			var doc struct {
				ID interface{} `bson:"_id"`
			}
			if err := oldCursor.Decode(&doc); err == nil {
				ids = append(ids, doc.ID)
			}
		}
		oldCursor.Close(m.ctx)

		if len(ids) > 0 {
			deleteFilter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}
			_, _ = collection.DeleteMany(m.ctx, deleteFilter)
		}
	}

	return nil
}
