package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"linkup/internal/entity"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrRoomNotFound = errors.New("chat room not found")

type ChatRoomRepository interface {
	Get(ctx context.Context, roomId string) (entity.ChatRoom, error)
	Create(ctx context.Context, room entity.ChatRoom) (string, error)
	Index(ctx context.Context, userId string) ([]entity.ChatRoom, error)

	// FindByParticipants matches the exact participant set, order-independent.
	FindByParticipants(ctx context.Context, participants []string, isGroup bool) (entity.ChatRoom, error)

	AddParticipants(ctx context.Context, roomId string, userIds []string) error
	MarkDeletedFor(ctx context.Context, roomId, userId string) error
	ClearDeletedFor(ctx context.Context, roomId, userId string) error
	SetLastMessage(ctx context.Context, roomId, messageId string) error
	Delete(ctx context.Context, roomId string) error
	EnsureIndexes(ctx context.Context) error
}

type chatRoomRepository struct {
	db *mongo.Database
}

func NewChatRoomRepository(db *mongo.Database) ChatRoomRepository {
	return &chatRoomRepository{
		db: db,
	}
}

func (r *chatRoomRepository) collection() *mongo.Collection {
	return r.db.Collection("chat_rooms")
}

// Get returns a room by ID
func (r *chatRoomRepository) Get(ctx context.Context, roomId string) (entity.ChatRoom, error) {
	filter := bson.M{"_id": roomId}

	var room entity.ChatRoom
	err := r.collection().FindOne(ctx, filter).Decode(&room)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return entity.ChatRoom{}, ErrRoomNotFound
		}
		return entity.ChatRoom{}, err
	}

	return room, nil
}

// Create creates a new room
func (r *chatRoomRepository) Create(ctx context.Context, room entity.ChatRoom) (string, error) {
	room.Id = uuid.New().String()
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt
	if room.DeletedFor == nil {
		room.DeletedFor = []string{}
	}

	_, err := r.collection().InsertOne(ctx, room)
	if err != nil {
		return "", err
	}

	return room.Id, nil
}

// Index returns all rooms a user participates in and has not soft-deleted,
// most recently active first.
func (r *chatRoomRepository) Index(ctx context.Context, userId string) ([]entity.ChatRoom, error) {
	filter := bson.M{
		"participants": userId,
		"deletedFor":   bson.M{"$ne": userId},
	}

	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cursor, err := r.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var rooms []entity.ChatRoom
	err = cursor.All(ctx, &rooms)
	if err != nil {
		return nil, err
	}

	return rooms, nil
}

func (r *chatRoomRepository) FindByParticipants(ctx context.Context, participants []string, isGroup bool) (entity.ChatRoom, error) {
	sorted := append([]string(nil), participants...)
	sort.Strings(sorted)

	// $all + $size gives exact set match, not superset
	filter := bson.M{
		"isGroup": isGroup,
		"participants": bson.M{
			"$all":  sorted,
			"$size": len(sorted),
		},
	}

	var room entity.ChatRoom
	err := r.collection().FindOne(ctx, filter).Decode(&room)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return entity.ChatRoom{}, ErrRoomNotFound
		}
		return entity.ChatRoom{}, err
	}

	return room, nil
}

// AddParticipants adds users to a room's participant set and clears any
// prior soft-delete mark so re-added members see the room again.
func (r *chatRoomRepository) AddParticipants(ctx context.Context, roomId string, userIds []string) error {
	filter := bson.M{"_id": roomId}
	update := bson.M{
		"$addToSet": bson.M{"participants": bson.M{"$each": userIds}},
		"$pullAll":  bson.M{"deletedFor": userIds},
		"$set":      bson.M{"updatedAt": time.Now()},
	}

	res, err := r.collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRoomNotFound
	}

	return nil
}

func (r *chatRoomRepository) MarkDeletedFor(ctx context.Context, roomId, userId string) error {
	filter := bson.M{"_id": roomId}
	update := bson.M{
		"$addToSet": bson.M{"deletedFor": userId},
	}

	res, err := r.collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRoomNotFound
	}

	return nil
}

func (r *chatRoomRepository) ClearDeletedFor(ctx context.Context, roomId, userId string) error {
	filter := bson.M{"_id": roomId}
	update := bson.M{
		"$pull": bson.M{"deletedFor": userId},
	}

	_, err := r.collection().UpdateOne(ctx, filter, update)
	return err
}

// SetLastMessage updates the room's weak last-message reference. An empty
// messageId clears it.
func (r *chatRoomRepository) SetLastMessage(ctx context.Context, roomId, messageId string) error {
	filter := bson.M{"_id": roomId}
	update := bson.M{
		"$set": bson.M{
			"lastMessageId": messageId,
			"updatedAt":     time.Now(),
		},
	}

	_, err := r.collection().UpdateOne(ctx, filter, update)
	return err
}

func (r *chatRoomRepository) Delete(ctx context.Context, roomId string) error {
	filter := bson.M{"_id": roomId}
	_, err := r.collection().DeleteOne(ctx, filter)
	return err
}

func (r *chatRoomRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "participants", Value: 1}},
	})
	return err
}
