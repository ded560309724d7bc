package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"adopet/internal/app/policies"
	domainchat "adopet/internal/domain/chat"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

// ChatStore implements the message-store contract on MongoDB. Conversations
// live in one collection, messages in another filtered by conversation id,
// and live queries ride on change streams that re-deliver the full
// recomputed list on every relevant insert.
type ChatStore struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewChatStore builds a store over the given client.
func NewChatStore(client *Client, logger *slog.Logger) *ChatStore {
	return &ChatStore{db: client.DB, logger: logger}
}

type messageDoc struct {
	ConversationID string    `bson:"conversation_id"`
	CorrelationID  string    `bson:"correlation_id,omitempty"`
	Text           string    `bson:"text,omitempty"`
	ImageURL       string    `bson:"image_url,omitempty"`
	AudioURL       string    `bson:"audio_url,omitempty"`
	Timestamp      time.Time `bson:"timestamp"`
	UserID         string    `bson:"user_id"`
}

type conversationDoc struct {
	ID              string    `bson:"_id"`
	OwnerID         string    `bson:"owner_id,omitempty"`
	PetOwnerName    string    `bson:"pet_owner_name,omitempty"`
	PetOwnerPicture string    `bson:"pet_owner_picture,omitempty"`
	LastMessage     string    `bson:"last_message,omitempty"`
	LastMessageTime time.Time `bson:"last_message_time,omitempty"`
}

// Subscribe opens a live ordered message stream for the conversation. The
// initial snapshot (possibly empty) is delivered before Subscribe returns.
// After the returned cancel runs, no further callbacks fire.
func (s *ChatStore) Subscribe(ctx context.Context, id domainchat.ConversationID, onUpdate policies.SnapshotFunc) (policies.Unsubscribe, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: "insert"},
			{Key: "fullDocument.conversation_id", Value: string(id)},
		}}},
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	stream, err := s.db.Collection(messagesCollection).Watch(streamCtx, pipeline)
	if err != nil {
		cancel()
		return nil, mapSubscribeError(err)
	}

	snapshot, err := s.orderedMessages(ctx, id)
	if err != nil {
		cancel()
		stream.Close(context.Background())
		return nil, err
	}
	onUpdate(snapshot, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stream.Close(context.Background())
		for stream.Next(streamCtx) {
			list, err := s.orderedMessages(streamCtx, id)
			if err != nil {
				if s.logger != nil && streamCtx.Err() == nil {
					s.logger.Warn("message snapshot refresh failed", "conversation_id", id, "error", err)
				}
				continue
			}
			onUpdate(list, nil)
		}
		// A dead stream is terminal for this subscription; callers must
		// not be left believing they are still live.
		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			onUpdate(nil, mapSubscribeError(err))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}, nil
}

// Append durably stores a new message.
func (s *ChatStore) Append(ctx context.Context, id domainchat.ConversationID, msg domainchat.Message) error {
	doc := messageDoc{
		ConversationID: string(id),
		CorrelationID:  msg.CorrelationID,
		Text:           msg.Text,
		ImageURL:       msg.ImageURL,
		AudioURL:       msg.AudioURL,
		Timestamp:      msg.Timestamp.UTC(),
		UserID:         msg.UserID,
	}
	if _, err := s.db.Collection(messagesCollection).InsertOne(ctx, doc); err != nil {
		return mapStoreError(err)
	}
	return nil
}

// UpsertConversationSummary merges only the non-zero fields of update into
// the conversation document via $set, so unspecified fields survive and
// concurrent writers resolve per-field last-write-wins.
func (s *ChatStore) UpsertConversationSummary(ctx context.Context, id domainchat.ConversationID, update domainchat.SummaryUpdate) error {
	fields := bson.D{}
	if update.LastMessage != "" {
		fields = append(fields, bson.E{Key: "last_message", Value: update.LastMessage})
	}
	if !update.LastMessageTime.IsZero() {
		fields = append(fields, bson.E{Key: "last_message_time", Value: update.LastMessageTime.UTC()})
	}
	if update.PetOwnerName != "" {
		fields = append(fields, bson.E{Key: "pet_owner_name", Value: update.PetOwnerName})
	}
	if update.PetOwnerPicture != "" {
		fields = append(fields, bson.E{Key: "pet_owner_picture", Value: update.PetOwnerPicture})
	}
	if update.OwnerID != "" {
		fields = append(fields, bson.E{Key: "owner_id", Value: update.OwnerID})
	}
	if len(fields) == 0 {
		return nil
	}
	_, err := s.db.Collection(conversationsCollection).UpdateByID(
		ctx,
		string(id),
		bson.D{{Key: "$set", Value: fields}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return mapStoreError(err)
	}
	return nil
}

// ListConversations opens a live stream of the user's conversations in
// arbitrary store order; the registry re-sorts.
func (s *ChatStore) ListConversations(ctx context.Context, userID string, onUpdate policies.ConversationsFunc) (policies.Unsubscribe, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace", "delete"}}}},
		}}},
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	stream, err := s.db.Collection(conversationsCollection).Watch(streamCtx, pipeline)
	if err != nil {
		cancel()
		return nil, mapSubscribeError(err)
	}

	list, err := s.conversationsFor(ctx, userID)
	if err != nil {
		cancel()
		stream.Close(context.Background())
		return nil, err
	}
	onUpdate(list, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stream.Close(context.Background())
		for stream.Next(streamCtx) {
			list, err := s.conversationsFor(streamCtx, userID)
			if err != nil {
				if streamCtx.Err() == nil {
					onUpdate(nil, err)
				}
				continue
			}
			onUpdate(list, nil)
		}
		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			onUpdate(nil, mapSubscribeError(err))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}, nil
}

// DeleteConversation removes all messages first, then the conversation
// document. There is no cross-collection transaction; deleting messages
// first keeps partial reads from seeing a thread head with no way to load
// its history.
func (s *ChatStore) DeleteConversation(ctx context.Context, id domainchat.ConversationID) error {
	if _, err := s.db.Collection(messagesCollection).DeleteMany(ctx, bson.D{{Key: "conversation_id", Value: string(id)}}); err != nil {
		return mapStoreError(err)
	}
	if _, err := s.db.Collection(conversationsCollection).DeleteOne(ctx, bson.D{{Key: "_id", Value: string(id)}}); err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (s *ChatStore) orderedMessages(ctx context.Context, id domainchat.ConversationID) ([]domainchat.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.db.Collection(messagesCollection).Find(ctx, bson.D{{Key: "conversation_id", Value: string(id)}}, opts)
	if err != nil {
		return nil, mapStoreError(err)
	}
	defer cursor.Close(ctx)

	messages := make([]domainchat.Message, 0)
	for cursor.Next(ctx) {
		var doc messageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, mapStoreError(err)
		}
		messages = append(messages, domainchat.Message{
			CorrelationID: doc.CorrelationID,
			Text:          doc.Text,
			ImageURL:      doc.ImageURL,
			AudioURL:      doc.AudioURL,
			Timestamp:     doc.Timestamp,
			UserID:        doc.UserID,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, mapStoreError(err)
	}
	return messages, nil
}

func (s *ChatStore) conversationsFor(ctx context.Context, userID string) ([]domainchat.Conversation, error) {
	cursor, err := s.db.Collection(conversationsCollection).Find(ctx, bson.D{{Key: "owner_id", Value: userID}})
	if err != nil {
		return nil, mapStoreError(err)
	}
	defer cursor.Close(ctx)

	conversations := make([]domainchat.Conversation, 0)
	for cursor.Next(ctx) {
		var doc conversationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, mapStoreError(err)
		}
		conversations = append(conversations, domainchat.Conversation{
			ID:              domainchat.ConversationID(doc.ID),
			OwnerID:         doc.OwnerID,
			PetOwnerName:    doc.PetOwnerName,
			PetOwnerPicture: doc.PetOwnerPicture,
			LastMessage:     doc.LastMessage,
			LastMessageTime: doc.LastMessageTime,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, mapStoreError(err)
	}
	return conversations, nil
}

// mapStoreError converts driver errors to the chat taxonomy at the
// component boundary; raw transport errors never propagate.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		// 13 Unauthorized, 18 AuthenticationFailed.
		if cmdErr.Code == 13 || cmdErr.Code == 18 {
			return joinStoreError(domainchat.ErrPermissionDenied, err)
		}
	}
	return joinStoreError(domainchat.ErrStoreUnavailable, err)
}

func mapSubscribeError(err error) error {
	if err == nil {
		return nil
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && (cmdErr.Code == 13 || cmdErr.Code == 18) {
		return joinStoreError(domainchat.ErrPermissionDenied, err)
	}
	return joinStoreError(domainchat.ErrSubscriptionFailed, err)
}

func joinStoreError(kind, cause error) error {
	return fmt.Errorf("%w: %v", kind, cause)
}

var _ policies.MessageStore = (*ChatStore)(nil)
