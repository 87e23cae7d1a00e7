package domain

import (
	"fmt"
	"strings"
)

// ProviderID identifies an external identity provider a user can link.
type ProviderID string

const (
	ProviderDiscord ProviderID = "discord"
	ProviderKick    ProviderID = "kick"
)

// Providers lists every provider the system knows about, in display order.
var Providers = []ProviderID{ProviderDiscord, ProviderKick}

// RequiredScopes is the minimum scope set the application asks each provider for.
// It is reported to callers, never enforced when handing out tokens.
var RequiredScopes = map[ProviderID][]string{
	ProviderDiscord: {"identify", "email", "guilds"},
	ProviderKick:    {"user:read", "channel:read"},
}

// ParseProviderID validates a provider name coming from a path or a flag.
func ParseProviderID(s string) (ProviderID, error) {
	p := ProviderID(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
	return p, nil
}

func (p ProviderID) Valid() bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

func (p ProviderID) String() string {
	return string(p)
}
