package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CredentialRepository implements domain.CredentialRepository
type CredentialRepository struct {
	collection *mongo.Collection
}

// NewCredentialRepository creates the repository and ensures its indexes.
func NewCredentialRepository(ctx context.Context, db *mongo.Database) (*CredentialRepository, error) {
	repo := &CredentialRepository{collection: db.Collection(CredentialsCollection)}
	if err := repo.createIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *CredentialRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			// One credential per user and provider.
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "provider_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// A provider account belongs to one local user.
			Keys:    bson.D{{Key: "provider_id", Value: 1}, {Key: "account_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"account_id": bson.M{"$gt": ""}}),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes for %s collection: %w", CredentialsCollection, err)
	}
	log.Info().Msgf("Indexes for %s collection ensured.", CredentialsCollection)
	return nil
}

func credentialFilter(userID string, provider domain.ProviderID) bson.M {
	return bson.M{"user_id": userID, "provider_id": provider}
}

func (r *CredentialRepository) Find(ctx context.Context, userID string, provider domain.ProviderID) (*domain.ProviderCredential, error) {
	var cred domain.ProviderCredential
	err := r.collection.FindOne(ctx, credentialFilter(userID, provider)).Decode(&cred)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCredentialNotFound
		}
		log.Error().Err(err).Str("userID", userID).Str("provider", string(provider)).Msg("Error finding provider credential")
		return nil, storeError("find credential", err)
	}
	return &cred, nil
}

// Upsert writes every mutable field; _id and created_at are only set on insert.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *domain.ProviderCredential) error {
	now := time.Now().UTC()
	updatedAt := cred.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	createdAt := cred.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	id := cred.ID
	if id == "" {
		id = NewObjectID()
	}

	update := bson.M{
		"$set": bson.M{
			"account_id":              cred.AccountID,
			"access_token":            cred.AccessToken,
			"refresh_token":           cred.RefreshToken,
			"access_token_expires_at": cred.AccessTokenExpiresAt,
			"scope":                   cred.Scope,
			"updated_at":              updatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":        id,
			"created_at": createdAt,
		},
	}

	_, err := r.collection.UpdateOne(ctx, credentialFilter(cred.UserID, cred.ProviderID), update,
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		log.Error().Err(err).Str("userID", cred.UserID).Str("provider", string(cred.ProviderID)).Msg("Error upserting provider credential")
		return storeError("upsert credential", err)
	}
	return nil
}

func (r *CredentialRepository) Delete(ctx context.Context, userID string, provider domain.ProviderID) error {
	res, err := r.collection.DeleteOne(ctx, credentialFilter(userID, provider))
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Str("provider", string(provider)).Msg("Error deleting provider credential")
		return storeError("delete credential", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrCredentialNotFound
	}
	return nil
}

func (r *CredentialRepository) ListByUser(ctx context.Context, userID string) ([]*domain.ProviderCredential, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "provider_id", Value: 1}}))
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Error listing provider credentials")
		return nil, storeError("list credentials", err)
	}
	defer cursor.Close(ctx)

	var creds []*domain.ProviderCredential
	if err := cursor.All(ctx, &creds); err != nil {
		return nil, storeError("decode credentials", err)
	}
	return creds, nil
}

var _ domain.CredentialRepository = (*CredentialRepository)(nil)
