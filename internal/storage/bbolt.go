package storage

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

var (
	credentialsBucket = []byte("provider_credentials")
	usersBucket       = []byte("users")
)

// keySep cannot appear in user ids coming from the HTTP layer or the CLI.
const keySep = "\x00"

// BBoltStore is an embedded domain.Store. bbolt runs one writer at a time, so
// every Update transaction is serialized against all others.
type BBoltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// NewBBoltStore opens (creating if needed) the database file and its buckets.
func NewBBoltStore(dbPath string) (*BBoltStore, error) {
	dir := filepath.Dir(dbPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		log.Info().Str("dir", dir).Msg("Database directory does not exist, creating it.")
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to check database directory %s: %w", dir, err)
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db at %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{credentialsBucket, usersBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", dbPath).Msg("BBoltDB initialized successfully.")
	return &BBoltStore{db: db, now: time.Now}, nil
}

func credentialKey(userID string, provider domain.ProviderID) []byte {
	return []byte(userID + keySep + string(provider))
}

func userPrefix(userID string) []byte {
	return []byte(userID + keySep)
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func getCredential(tx *bbolt.Tx, userID string, provider domain.ProviderID) (*domain.ProviderCredential, error) {
	raw := tx.Bucket(credentialsBucket).Get(credentialKey(userID, provider))
	if raw == nil {
		return nil, domain.ErrCredentialNotFound
	}
	var cred domain.ProviderCredential
	if err := decode(raw, &cred); err != nil {
		return nil, domain.NewStoreError("decode credential", err)
	}
	return &cred, nil
}

func listCredentials(tx *bbolt.Tx, userID string) ([]*domain.ProviderCredential, error) {
	prefix := userPrefix(userID)
	c := tx.Bucket(credentialsBucket).Cursor()

	var creds []*domain.ProviderCredential
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var cred domain.ProviderCredential
		if err := decode(v, &cred); err != nil {
			return nil, domain.NewStoreError("decode credential", err)
		}
		creds = append(creds, &cred)
	}
	return creds, nil
}

func (s *BBoltStore) Find(_ context.Context, userID string, provider domain.ProviderID) (*domain.ProviderCredential, error) {
	var cred *domain.ProviderCredential
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		cred, err = getCredential(tx, userID, provider)
		return err
	})
	return cred, err
}

// Upsert keeps the stored id and creation time when the row already exists.
func (s *BBoltStore) Upsert(_ context.Context, cred *domain.ProviderCredential) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		now := s.now().UTC()
		next := cred.Clone()

		existing, err := getCredential(tx, cred.UserID, cred.ProviderID)
		switch {
		case err == nil:
			next.ID = existing.ID
			next.CreatedAt = existing.CreatedAt
		case errors.Is(err, domain.ErrCredentialNotFound):
			if next.ID == "" {
				next.ID = uuid.NewString()
			}
			if next.CreatedAt.IsZero() {
				next.CreatedAt = now
			}
		default:
			return err
		}
		if next.UpdatedAt.IsZero() {
			next.UpdatedAt = now
		}

		raw, err := encode(next)
		if err != nil {
			return domain.NewStoreError("encode credential", err)
		}
		return tx.Bucket(credentialsBucket).Put(credentialKey(cred.UserID, cred.ProviderID), raw)
	})
	return wrap("upsert credential", err)
}

func (s *BBoltStore) Delete(_ context.Context, userID string, provider domain.ProviderID) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(credentialsBucket)
		key := credentialKey(userID, provider)
		if b.Get(key) == nil {
			return domain.ErrCredentialNotFound
		}
		return b.Delete(key)
	})
	return wrap("delete credential", err)
}

func (s *BBoltStore) ListByUser(_ context.Context, userID string) ([]*domain.ProviderCredential, error) {
	var creds []*domain.ProviderCredential
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		creds, err = listCredentials(tx, userID)
		return err
	})
	return creds, err
}

func (s *BBoltStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	var user *domain.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(usersBucket).Get([]byte(id))
		if raw == nil {
			return domain.ErrUserNotFound
		}
		user = &domain.User{}
		if err := decode(raw, user); err != nil {
			return domain.NewStoreError("decode user", err)
		}
		return nil
	})
	return user, err
}

// PutUser creates or replaces a user profile.
func (s *BBoltStore) PutUser(_ context.Context, user *domain.User) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		u := *user
		now := s.now().UTC()
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		u.UpdatedAt = now
		raw, err := encode(&u)
		if err != nil {
			return domain.NewStoreError("encode user", err)
		}
		return tx.Bucket(usersBucket).Put([]byte(u.ID), raw)
	})
	return wrap("put user", err)
}

// UnlinkProvider runs the policy check, the delete and the profile update in
// a single write transaction.
func (s *BBoltStore) UnlinkProvider(_ context.Context, userID string, provider domain.ProviderID) error {
	if _, err := domain.ProviderAccountField(provider); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		linked, err := listCredentials(tx, userID)
		if err != nil {
			return err
		}
		if err := domain.CheckUnlinkAllowed(linked, provider); err != nil {
			return err
		}
		if err := tx.Bucket(credentialsBucket).Delete(credentialKey(userID, provider)); err != nil {
			return err
		}

		users := tx.Bucket(usersBucket)
		raw := users.Get([]byte(userID))
		if raw == nil {
			return nil
		}
		var user domain.User
		if err := decode(raw, &user); err != nil {
			return domain.NewStoreError("decode user", err)
		}
		user.ClearProviderAccountID(provider)
		user.UpdatedAt = s.now().UTC()
		out, err := encode(&user)
		if err != nil {
			return domain.NewStoreError("encode user", err)
		}
		return users.Put([]byte(userID), out)
	})
	return wrap("unlink provider", err)
}

func (s *BBoltStore) Ping(context.Context) error {
	return s.db.View(func(*bbolt.Tx) error { return nil })
}

func (s *BBoltStore) Close(context.Context) error {
	log.Info().Msg("Closing BBoltDB.")
	return s.db.Close()
}

// wrap leaves domain sentinels alone and turns bbolt failures into store errors.
func wrap(op string, err error) error {
	var sErr *domain.StoreError
	switch {
	case err == nil,
		errors.Is(err, domain.ErrCredentialNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrNotLinked),
		errors.Is(err, domain.ErrLastProviderInvariant),
		errors.As(err, &sErr):
		return err
	}
	return domain.NewStoreError(op, err)
}

var _ domain.Store = (*BBoltStore)(nil)
