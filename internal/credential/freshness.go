package credential

import (
	"time"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
)

// GraceWindow is how long before expiry an access token stops being handed out.
const GraceWindow = 60 * time.Second

// Verdict is the outcome of evaluating a credential at a point in time.
type Verdict int

const (
	Fresh Verdict = iota
	NeedsRefresh
	Unrefreshable
)

func (v Verdict) String() string {
	switch v {
	case Fresh:
		return "fresh"
	case NeedsRefresh:
		return "needs_refresh"
	case Unrefreshable:
		return "unrefreshable"
	}
	return "unknown"
}

// Evaluate decides whether cred can be used as-is at now. It has no side effects.
func Evaluate(cred *domain.ProviderCredential, now time.Time) Verdict {
	if !cred.HasAccessToken() {
		return Unrefreshable
	}
	if cred.AccessTokenExpiresAt == nil || cred.AccessTokenExpiresAt.Sub(now) >= GraceWindow {
		return Fresh
	}
	if cred.HasRefreshToken() {
		return NeedsRefresh
	}
	return Unrefreshable
}
