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

var ErrNotificationNotFound = errors.New("notification not found")

// notificationRetention bounds how long notification rows are kept.
const notificationRetention = 90 * 24 * time.Hour

type NotificationRepository interface {
	Create(ctx context.Context, notification entity.Notification) (string, error)
	IndexForRecipient(ctx context.Context, recipientId string, limit, offset int) ([]entity.Notification, error)
	MarkRead(ctx context.Context, notificationId, recipientId string) error
	MarkAllRead(ctx context.Context, recipientId string) error
	Delete(ctx context.Context, notificationId, recipientId string) error
	EnsureIndexes(ctx context.Context) error
}

type notificationRepository struct {
	db *mongo.Database
}

func NewNotificationRepository(db *mongo.Database) NotificationRepository {
	return &notificationRepository{
		db: db,
	}
}

func (r *notificationRepository) collection() *mongo.Collection {
	return r.db.Collection("notifications")
}

func (r *notificationRepository) Create(ctx context.Context, notification entity.Notification) (string, error) {
	notification.Id = uuid.New().String()
	notification.CreatedAt = time.Now()

	_, err := r.collection().InsertOne(ctx, notification)
	if err != nil {
		return "", err
	}

	return notification.Id, nil
}

func (r *notificationRepository) IndexForRecipient(ctx context.Context, recipientId string, limit, offset int) ([]entity.Notification, error) {
	filter := bson.M{"recipientId": recipientId}

	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	opts.SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var notifications []entity.Notification
	err = cursor.All(ctx, &notifications)
	if err != nil {
		return nil, err
	}

	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, notificationId, recipientId string) error {
	filter := bson.M{
		"_id":         notificationId,
		"recipientId": recipientId,
	}
	update := bson.M{
		"$set": bson.M{
			"isRead": true,
			"readAt": time.Now(),
		},
	}

	res, err := r.collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientId string) error {
	filter := bson.M{
		"recipientId": recipientId,
		"isRead":      false,
	}
	update := bson.M{
		"$set": bson.M{
			"isRead": true,
			"readAt": time.Now(),
		},
	}

	_, err := r.collection().UpdateMany(ctx, filter, update)
	return err
}

func (r *notificationRepository) Delete(ctx context.Context, notificationId, recipientId string) error {
	filter := bson.M{
		"_id":         notificationId,
		"recipientId": recipientId,
	}

	res, err := r.collection().DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

func (r *notificationRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "recipientId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(notificationRetention / time.Second)),
		},
	}

	_, err := r.collection().Indexes().CreateMany(ctx, indexes)
	return err
}
