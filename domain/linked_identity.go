package domain

import "time"

// LinkedIdentity is the per-provider row of a LinkedSummary. It is computed on demand.
type LinkedIdentity struct {
	Linked         bool       `json:"linked" yaml:"linked"`
	AccountID      string     `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	LastLinkedAt   *time.Time `json:"last_linked_at,omitempty" yaml:"last_linked_at,omitempty"`
	Scopes         []string   `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	MissingScopes  []string   `json:"missing_scopes,omitempty" yaml:"missing_scopes,omitempty"`
	NeedsReconnect bool       `json:"needs_reconnect,omitempty" yaml:"needs_reconnect,omitempty"`
}

// LinkedSummary maps every known provider to its link state for one user.
type LinkedSummary map[ProviderID]LinkedIdentity

// LinkedCount returns how many providers are currently linked.
func (s LinkedSummary) LinkedCount() int {
	n := 0
	for _, li := range s {
		if li.Linked {
			n++
		}
	}
	return n
}
