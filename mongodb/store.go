package mongodb

import (
	"context"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Store bundles the MongoDB repositories into a domain.Store.
type Store struct {
	*CredentialRepository
	*UserRepository
	*LinkStore
	client *mongo.Client
}

// NewStore takes ownership of client; Close disconnects it.
func NewStore(ctx context.Context, client *mongo.Client, dbName string) (*Store, error) {
	db := client.Database(dbName)
	creds, err := NewCredentialRepository(ctx, db)
	if err != nil {
		return nil, err
	}
	users := NewUserRepository(db)
	return &Store{
		CredentialRepository: creds,
		UserRepository:       users,
		LinkStore:            NewLinkStore(client, creds, users),
		client:               client,
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return Ping(ctx, s.client)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ domain.Store = (*Store)(nil)
