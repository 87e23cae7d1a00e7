package federation

import "github.com/jcodog/Cleo-Dashboard-sub001/domain"

var KickTokenEndpoint = "https://id.kick.com/oauth/token"

// KickProvider refreshes Kick OAuth2 credentials.
type KickProvider struct {
	*BaseProvider
}

func NewKickProvider(cfg ClientConfig, opts ...Option) *KickProvider {
	return &KickProvider{
		BaseProvider: NewBaseProvider(domain.ProviderKick, cfg, func() string { return KickTokenEndpoint }, opts...),
	}
}

var _ TokenRefresher = (*KickProvider)(nil)
