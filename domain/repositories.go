package domain

import "context"

// CredentialRepository persists ProviderCredentials keyed by (userID, provider).
type CredentialRepository interface {
	// Find returns ErrCredentialNotFound when no row exists.
	Find(ctx context.Context, userID string, provider ProviderID) (*ProviderCredential, error)
	// Upsert overwrites the row for (cred.UserID, cred.ProviderID); last writer wins.
	Upsert(ctx context.Context, cred *ProviderCredential) error
	Delete(ctx context.Context, userID string, provider ProviderID) error
	ListByUser(ctx context.Context, userID string) ([]*ProviderCredential, error)
}

// UserRepository reads the user profile record.
type UserRepository interface {
	// GetUserByID returns ErrUserNotFound when the user does not exist.
	GetUserByID(ctx context.Context, id string) (*User, error)
}

// IdentityLinkStore performs the conditional unlink: check the policy with
// CheckUnlinkAllowed, delete the credential and clear the user's denormalized
// account id, all as one atomic operation.
type IdentityLinkStore interface {
	UnlinkProvider(ctx context.Context, userID string, provider ProviderID) error
}

// Store is what a storage backend provides in full.
type Store interface {
	CredentialRepository
	UserRepository
	IdentityLinkStore
	Close(ctx context.Context) error
}
