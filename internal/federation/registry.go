package federation

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
)

// Registry holds the token clients the process was configured with.
type Registry struct {
	providers map[domain.ProviderID]TokenRefresher
}

func NewRegistry(refreshers ...TokenRefresher) *Registry {
	r := &Registry{providers: make(map[domain.ProviderID]TokenRefresher, len(refreshers))}
	for _, p := range refreshers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the client for p.Provider().
func (r *Registry) Register(p TokenRefresher) {
	r.providers[p.Provider()] = p
}

// Get returns the client for id. The error matches both ErrProviderNotFound
// and domain.ErrUnknownProvider.
func (r *Registry) Get(id domain.ProviderID) (TokenRefresher, error) {
	if p, ok := r.providers[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %w %q", ErrProviderNotFound, domain.ErrUnknownProvider, id)
}

// Providers lists the registered provider ids in sorted order.
func (r *Registry) Providers() []domain.ProviderID {
	ids := make([]domain.ProviderID, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ProvidersConfig carries the client configuration of every supported provider.
type ProvidersConfig struct {
	Discord ClientConfig
	Kick    ClientConfig
	Timeout time.Duration // per-request HTTP timeout, 0 leaves it to the caller's context
}

// NewDefaultRegistry builds the Discord and Kick clients sharing one HTTP client.
func NewDefaultRegistry(cfg ProvidersConfig, opts ...Option) *Registry {
	client := &http.Client{Timeout: cfg.Timeout}
	opts = append([]Option{WithHTTPClient(client)}, opts...)
	return NewRegistry(
		NewDiscordProvider(cfg.Discord, opts...),
		NewKickProvider(cfg.Kick, opts...),
	)
}
