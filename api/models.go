package api

import (
	"context"
	"time"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
)

// CredentialService hands out fresh provider credentials.
type CredentialService interface {
	EnsureFresh(ctx context.Context, userID string, provider domain.ProviderID) (*domain.ProviderCredential, error)
}

// LinkService lists and removes a user's provider links.
type LinkService interface {
	ListLinked(ctx context.Context, userID string) (domain.LinkedSummary, error)
	Unlink(ctx context.Context, userID string, provider domain.ProviderID) error
}

// RefreshResponse is returned by the refresh endpoint. The token itself never
// leaves the service.
type RefreshResponse struct {
	Provider  domain.ProviderID `json:"provider"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

// NewRefreshResponse builds the response body for a refreshed credential.
func NewRefreshResponse(cred *domain.ProviderCredential) RefreshResponse {
	resp := RefreshResponse{Provider: cred.ProviderID}
	if cred.AccessTokenExpiresAt != nil {
		exp := cred.AccessTokenExpiresAt.UTC()
		resp.ExpiresAt = &exp
	}
	return resp
}
