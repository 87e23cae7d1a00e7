package federation

import "github.com/jcodog/Cleo-Dashboard-sub001/domain"

var DiscordTokenEndpoint = "https://discord.com/api/oauth2/token"

// DiscordProvider refreshes Discord OAuth2 credentials.
type DiscordProvider struct {
	*BaseProvider
}

func NewDiscordProvider(cfg ClientConfig, opts ...Option) *DiscordProvider {
	return &DiscordProvider{
		BaseProvider: NewBaseProvider(domain.ProviderDiscord, cfg, func() string { return DiscordTokenEndpoint }, opts...),
	}
}

var _ TokenRefresher = (*DiscordProvider)(nil)
