package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UserRepository implements domain.UserRepository
type UserRepository struct {
	users *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{users: db.Collection(UsersCollection)}
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		log.Error().Err(err).Str("userID", id).Msg("Error getting user by ID")
		return nil, storeError("get user", err)
	}
	return &user, nil
}

// PutUser creates or updates the provider account ids of a user profile.
func (r *UserRepository) PutUser(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	update := bson.M{
		"$set": bson.M{
			"discord_id": user.DiscordID,
			"kick_id":    user.KickID,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{"created_at": createdAt},
	}
	_, err := r.users.UpdateOne(ctx, bson.M{"_id": user.ID}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		log.Error().Err(err).Str("userID", user.ID).Msg("Error saving user")
		return storeError("put user", err)
	}
	return nil
}

var _ domain.UserRepository = (*UserRepository)(nil)
