package domain

import "time"

// ProviderCredential links a local user to an account at an external provider and
// holds the OAuth token pair issued for it. There is at most one per (UserID, ProviderID).
type ProviderCredential struct {
	ID                   string     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID               string     `bson:"user_id" json:"user_id"`
	ProviderID           ProviderID `bson:"provider_id" json:"provider_id"`
	AccountID            string     `bson:"account_id" json:"account_id"` // User's ID at the provider
	AccessToken          string     `bson:"access_token,omitempty" json:"-"`
	RefreshToken         string     `bson:"refresh_token,omitempty" json:"-"`
	AccessTokenExpiresAt *time.Time `bson:"access_token_expires_at,omitempty" json:"access_token_expires_at,omitempty"` // nil means long-lived
	Scope                string     `bson:"scope,omitempty" json:"scope,omitempty"`
	CreatedAt            time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `bson:"updated_at" json:"updated_at"`
}

// HasAccessToken reports whether the credential carries a token at all.
func (c *ProviderCredential) HasAccessToken() bool {
	return c != nil && c.AccessToken != ""
}

// HasRefreshToken reports whether the credential can be renewed once expired.
func (c *ProviderCredential) HasRefreshToken() bool {
	return c != nil && c.RefreshToken != ""
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (c *ProviderCredential) Clone() *ProviderCredential {
	if c == nil {
		return nil
	}
	out := *c
	if c.AccessTokenExpiresAt != nil {
		exp := *c.AccessTokenExpiresAt
		out.AccessTokenExpiresAt = &exp
	}
	return &out
}
