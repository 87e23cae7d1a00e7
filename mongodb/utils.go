package mongodb

import (
	"errors"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// NewObjectID generates a new MongoDB ObjectID as a string
func NewObjectID() string {
	return bson.NewObjectID().Hex()
}

// storeError leaves domain errors and already wrapped failures untouched.
func storeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrStore),
		errors.Is(err, domain.ErrNotLinked),
		errors.Is(err, domain.ErrLastProviderInvariant),
		errors.Is(err, domain.ErrCredentialNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		return err
	}
	return domain.NewStoreError(op, err)
}
