package repository

import (
	"context"
	"errors"
	"time"

	"linkup/internal/entity"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrMessageNotFound = errors.New("message not found")

type MessageRepository interface {
	Get(ctx context.Context, messageId string) (entity.Message, error)
	Create(ctx context.Context, message entity.Message) (string, error)
	Index(ctx context.Context, filter entity.MessageIndexFilter) ([]entity.Message, error)

	MarkDeletedFor(ctx context.Context, messageId, userId string) error
	AddSeenBy(ctx context.Context, messageId, userId string) error
	Rewrite(ctx context.Context, messageId, content string) error
	RewriteBySender(ctx context.Context, senderId, content string) error

	Delete(ctx context.Context, messageId string) error
	DeleteByRoom(ctx context.Context, roomId string) error
	LatestInRoom(ctx context.Context, roomId string) (entity.Message, error)
	MediaByRoom(ctx context.Context, roomId string) ([]entity.Message, error)
	EnsureIndexes(ctx context.Context) error
}

type messageRepository struct {
	db *mongo.Database
}

func NewMessageRepository(db *mongo.Database) MessageRepository {
	return &messageRepository{
		db: db,
	}
}

func (r *messageRepository) collection() *mongo.Collection {
	return r.db.Collection("messages")
}

func (r *messageRepository) Get(ctx context.Context, messageId string) (entity.Message, error) {
	filter := bson.M{"_id": messageId}

	var message entity.Message
	err := r.collection().FindOne(ctx, filter).Decode(&message)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return entity.Message{}, ErrMessageNotFound
		}
		return entity.Message{}, err
	}

	return message, nil
}

func (r *messageRepository) Create(ctx context.Context, message entity.Message) (string, error) {
	message.Id = uuid.New().String()
	message.CreatedAt = time.Now()
	if message.DeletedFor == nil {
		message.DeletedFor = []string{}
	}
	if message.SeenBy == nil {
		message.SeenBy = []string{}
	}

	_, err := r.collection().InsertOne(ctx, message)
	if err != nil {
		return "", err
	}

	return message.Id, nil
}

// Index returns a page of a room's messages hidden-filtered for the viewer,
// newest first.
func (r *messageRepository) Index(ctx context.Context, filter entity.MessageIndexFilter) ([]entity.Message, error) {
	bsonFilter := bson.M{"chatRoomId": filter.ChatRoomId}
	if filter.ViewerId != "" {
		bsonFilter["deletedFor"] = bson.M{"$ne": filter.ViewerId}
	}

	opts := options.Find()
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	opts.SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection().Find(ctx, bsonFilter, opts)
	if err != nil {
		return nil, err
	}

	var messages []entity.Message
	err = cursor.All(ctx, &messages)
	if err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *messageRepository) MarkDeletedFor(ctx context.Context, messageId, userId string) error {
	filter := bson.M{"_id": messageId}
	update := bson.M{
		"$addToSet": bson.M{"deletedFor": userId},
	}

	res, err := r.collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}

	return nil
}

func (r *messageRepository) AddSeenBy(ctx context.Context, messageId, userId string) error {
	filter := bson.M{"_id": messageId}
	update := bson.M{
		"$addToSet": bson.M{"seenBy": userId},
	}

	res, err := r.collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}

	return nil
}

// Rewrite replaces message content with a tombstone: type reverts to text
// and any caption is dropped.
func (r *messageRepository) Rewrite(ctx context.Context, messageId, content string) error {
	filter := bson.M{"_id": messageId}
	update := bson.M{
		"$set": bson.M{
			"content":     content,
			"messageType": entity.MessageTypeText,
		},
		"$unset": bson.M{"caption": ""},
	}

	res, err := r.collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}

	return nil
}

// RewriteBySender tombstones every message a user authored and hides each
// from the author's own view. Used by the account-deletion hook.
func (r *messageRepository) RewriteBySender(ctx context.Context, senderId, content string) error {
	filter := bson.M{"senderId": senderId}
	update := bson.M{
		"$set": bson.M{
			"content":     content,
			"messageType": entity.MessageTypeText,
		},
		"$unset":    bson.M{"caption": ""},
		"$addToSet": bson.M{"deletedFor": senderId},
	}

	_, err := r.collection().UpdateMany(ctx, filter, update)
	return err
}

func (r *messageRepository) Delete(ctx context.Context, messageId string) error {
	filter := bson.M{"_id": messageId}
	_, err := r.collection().DeleteOne(ctx, filter)
	return err
}

func (r *messageRepository) DeleteByRoom(ctx context.Context, roomId string) error {
	filter := bson.M{"chatRoomId": roomId}
	_, err := r.collection().DeleteMany(ctx, filter)
	return err
}

// LatestInRoom returns the most recent surviving message of a room.
func (r *messageRepository) LatestInRoom(ctx context.Context, roomId string) (entity.Message, error) {
	filter := bson.M{"chatRoomId": roomId}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var message entity.Message
	err := r.collection().FindOne(ctx, filter, opts).Decode(&message)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return entity.Message{}, ErrMessageNotFound
		}
		return entity.Message{}, err
	}

	return message, nil
}

// MediaByRoom returns all non-text messages of a room, for media cleanup
// before a cascading delete.
func (r *messageRepository) MediaByRoom(ctx context.Context, roomId string) ([]entity.Message, error) {
	filter := bson.M{
		"chatRoomId":  roomId,
		"messageType": bson.M{"$ne": entity.MessageTypeText},
	}

	cursor, err := r.collection().Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	var messages []entity.Message
	err = cursor.All(ctx, &messages)
	if err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *messageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "chatRoomId", Value: 1},
			{Key: "createdAt", Value: -1},
		},
	})
	return err
}
