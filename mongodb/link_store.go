package mongodb

import (
	"context"
	"time"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// LinkStore implements domain.IdentityLinkStore with a multi-document transaction.
type LinkStore struct {
	client *mongo.Client
	creds  *CredentialRepository
	users  *UserRepository
}

func NewLinkStore(client *mongo.Client, creds *CredentialRepository, users *UserRepository) *LinkStore {
	return &LinkStore{client: client, creds: creds, users: users}
}

// UnlinkProvider checks the policy, deletes the credential and clears the
// user's account id in one transaction. Every transaction writes the user
// document, so two concurrent unlinks for one user conflict and the retried
// loser re-reads the committed state.
func (s *LinkStore) UnlinkProvider(ctx context.Context, userID string, provider domain.ProviderID) error {
	field, err := domain.ProviderAccountField(provider)
	if err != nil {
		return err
	}

	session, err := s.client.StartSession()
	if err != nil {
		return storeError("start session", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (interface{}, error) {
		linked, err := s.creds.ListByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := domain.CheckUnlinkAllowed(linked, provider); err != nil {
			return nil, err
		}

		res, err := s.creds.collection.DeleteOne(ctx, credentialFilter(userID, provider))
		if err != nil {
			return nil, err
		}
		if res.DeletedCount == 0 {
			return nil, domain.ErrNotLinked
		}

		now := time.Now().UTC()
		_, err = s.users.users.UpdateOne(ctx,
			bson.M{"_id": userID},
			bson.M{
				"$set":         bson.M{"updated_at": now},
				"$unset":       bson.M{field: ""},
				"$setOnInsert": bson.M{"created_at": now},
			},
			options.UpdateOne().SetUpsert(true),
		)
		return nil, err
	})
	return storeError("unlink provider", err)
}

var _ domain.IdentityLinkStore = (*LinkStore)(nil)
