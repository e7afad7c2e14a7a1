package repository

import (
	"context"
	"errors"
	"time"

	"linkup/internal/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository is the read side of the directory service: user lookup,
// follower checks, device tokens and preference flags. The only writes this
// backend performs are the presence flip and invalid-token pruning.
type UserRepository interface {
	Get(ctx context.Context, userId string) (entity.User, error)
	Index(ctx context.Context, filter entity.UserIndexFilter) ([]entity.User, error)
	IsFollower(ctx context.Context, followerId, userId string) (bool, error)
	SetOnline(ctx context.Context, userId string, online bool) error
	RemoveDeviceTokens(ctx context.Context, userId string, tokens []string) error
}

type userRepository struct {
	db *mongo.Database
}

func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) collection() *mongo.Collection {
	return r.db.Collection("users")
}

func (r *userRepository) Get(ctx context.Context, userId string) (entity.User, error) {
	filter := bson.M{"_id": userId}

	var user entity.User
	err := r.collection().FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return entity.User{}, ErrUserNotFound
		}
		return entity.User{}, err
	}

	return user, nil
}

func (r *userRepository) Index(ctx context.Context, filter entity.UserIndexFilter) ([]entity.User, error) {
	bsonFilter := bson.M{"_id": bson.M{"$in": filter.Ids}}

	cursor, err := r.collection().Find(ctx, bsonFilter)
	if err != nil {
		return nil, err
	}

	var users []entity.User
	err = cursor.All(ctx, &users)
	if err != nil {
		return nil, err
	}

	return users, nil
}

func (r *userRepository) IsFollower(ctx context.Context, followerId, userId string) (bool, error) {
	filter := bson.M{
		"_id":       userId,
		"followers": followerId,
	}

	count, err := r.collection().CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *userRepository) SetOnline(ctx context.Context, userId string, online bool) error {
	set := bson.M{
		"isOnline":  online,
		"updatedAt": time.Now(),
	}
	if !online {
		set["lastSeenAt"] = time.Now()
	}

	filter := bson.M{"_id": userId}
	update := bson.M{"$set": set}

	res, err := r.collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *userRepository) RemoveDeviceTokens(ctx context.Context, userId string, tokens []string) error {
	filter := bson.M{"_id": userId}
	update := bson.M{
		"$pullAll": bson.M{"deviceTokens": tokens},
	}

	_, err := r.collection().UpdateOne(ctx, filter, update)
	return err
}
