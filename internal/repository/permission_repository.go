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

var (
	ErrRequestNotFound      = errors.New("permission request not found")
	ErrPendingRequestExists = errors.New("a pending request already exists for this pair")
)

type PermissionRepository interface {
	Get(ctx context.Context, requestId string) (entity.PermissionRequest, error)
	Create(ctx context.Context, request entity.PermissionRequest) (string, error)
	IndexForRecipient(ctx context.Context, recipientId string) ([]entity.PermissionRequest, error)

	// MarkResponded flips a pending request to a terminal status. Returns
	// false when the request was already terminal (or gone).
	MarkResponded(ctx context.Context, requestId, status string) (bool, error)

	EnsureIndexes(ctx context.Context) error
}

type permissionRepository struct {
	db *mongo.Database
}

func NewPermissionRepository(db *mongo.Database) PermissionRepository {
	return &permissionRepository{
		db: db,
	}
}

func (r *permissionRepository) collection() *mongo.Collection {
	return r.db.Collection("permission_requests")
}

func (r *permissionRepository) Get(ctx context.Context, requestId string) (entity.PermissionRequest, error) {
	filter := bson.M{"_id": requestId}

	var request entity.PermissionRequest
	err := r.collection().FindOne(ctx, filter).Decode(&request)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return entity.PermissionRequest{}, ErrRequestNotFound
		}
		return entity.PermissionRequest{}, err
	}

	return request, nil
}

// Create inserts a pending request. The partial unique index on
// (requesterId, recipientId, status=pending) rejects a duplicate pending
// pair; that violation surfaces as ErrPendingRequestExists.
func (r *permissionRepository) Create(ctx context.Context, request entity.PermissionRequest) (string, error) {
	request.Id = uuid.New().String()
	request.Status = entity.RequestStatusPending
	request.CreatedAt = time.Now()

	_, err := r.collection().InsertOne(ctx, request)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrPendingRequestExists
		}
		return "", err
	}

	return request.Id, nil
}

func (r *permissionRepository) IndexForRecipient(ctx context.Context, recipientId string) ([]entity.PermissionRequest, error) {
	filter := bson.M{
		"recipientId": recipientId,
		"status":      entity.RequestStatusPending,
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var requests []entity.PermissionRequest
	err = cursor.All(ctx, &requests)
	if err != nil {
		return nil, err
	}

	return requests, nil
}

func (r *permissionRepository) MarkResponded(ctx context.Context, requestId, status string) (bool, error) {
	// Conditional on pending so a second responder loses the race cleanly
	filter := bson.M{
		"_id":    requestId,
		"status": entity.RequestStatusPending,
	}
	update := bson.M{
		"$set": bson.M{
			"status":      status,
			"respondedAt": time.Now(),
		},
	}

	res, err := r.collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}

	return res.MatchedCount > 0, nil
}

func (r *permissionRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			// At most one pending request per ordered (requester, recipient) pair
			Keys: bson.D{
				{Key: "requesterId", Value: 1},
				{Key: "recipientId", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": entity.RequestStatusPending}),
		},
		{
			// Pending requests are reaped once expired
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	_, err := r.collection().Indexes().CreateMany(ctx, indexes)
	return err
}
