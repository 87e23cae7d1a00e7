package domain

import "time"

// User is the slice of the internal user profile this service reads and writes.
// DiscordID and KickID cache the provider account ids of the linked credentials.
type User struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	DiscordID string    `bson:"discord_id,omitempty" json:"discord_id,omitempty"`
	KickID    string    `bson:"kick_id,omitempty" json:"kick_id,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ProviderAccountID returns the denormalized account id stored for provider.
func (u *User) ProviderAccountID(provider ProviderID) string {
	switch provider {
	case ProviderDiscord:
		return u.DiscordID
	case ProviderKick:
		return u.KickID
	}
	return ""
}

// ClearProviderAccountID blanks the denormalized id of provider only.
func (u *User) ClearProviderAccountID(provider ProviderID) {
	switch provider {
	case ProviderDiscord:
		u.DiscordID = ""
	case ProviderKick:
		u.KickID = ""
	}
}

// ProviderAccountField is the persisted field name holding provider's account id
// on the user record. Storage backends use it to clear exactly one field on unlink.
func ProviderAccountField(provider ProviderID) (string, error) {
	switch provider {
	case ProviderDiscord:
		return "discord_id", nil
	case ProviderKick:
		return "kick_id", nil
	}
	return "", ErrUnknownProvider
}
