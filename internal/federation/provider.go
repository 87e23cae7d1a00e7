package federation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"golang.org/x/oauth2"
)

// DefaultExpiresIn applies when the token endpoint omits expires_in.
const DefaultExpiresIn = 3600 * time.Second

// RefreshedCredential is the outcome of a successful refresh grant.
type RefreshedCredential struct {
	AccessToken  string
	RefreshToken string // previous token when the provider did not rotate it
	ExpiresAt    time.Time
	Scope        string
}

// TokenRefresher exchanges a refresh token at one provider's token endpoint.
// Implementations make exactly one outbound request per call and keep no state.
//
//go:generate go run go.uber.org/mock/mockgen -source=$GOFILE -destination=mock/mock_$GOFILE -package=mock_$GOPACKAGE TokenRefresher
type TokenRefresher interface {
	// Provider returns the provider this client talks to.
	Provider() domain.ProviderID

	// Refresh runs the refresh_token grant. previousScope is returned as the
	// scope when the provider response does not carry one.
	Refresh(ctx context.Context, refreshToken, previousScope string) (*RefreshedCredential, error)
}

// ClientConfig holds the application credentials registered with a provider.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string // overrides the provider's default endpoint when set
}

// Option customizes a provider client.
type Option func(*BaseProvider)

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(c *http.Client) Option {
	return func(b *BaseProvider) {
		if c != nil {
			b.httpClient = c
		}
	}
}

// WithClock replaces time.Now when computing expiry.
func WithClock(now func() time.Time) Option {
	return func(b *BaseProvider) {
		if now != nil {
			b.now = now
		}
	}
}

// BaseProvider implements the refresh grant on top of x/oauth2. Discord and
// Kick embed it and differ only in identity and default endpoint.
type BaseProvider struct {
	id              domain.ProviderID
	config          ClientConfig
	defaultTokenURL func() string
	httpClient      *http.Client
	now             func() time.Time
}

func NewBaseProvider(id domain.ProviderID, cfg ClientConfig, defaultTokenURL func() string, opts ...Option) *BaseProvider {
	b := &BaseProvider{
		id:              id,
		config:          cfg,
		defaultTokenURL: defaultTokenURL,
		httpClient:      http.DefaultClient,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *BaseProvider) Provider() domain.ProviderID {
	return b.id
}

// TokenURL resolves the endpoint at call time so package-level defaults can be swapped in tests.
func (b *BaseProvider) TokenURL() string {
	if b.config.TokenURL != "" {
		return b.config.TokenURL
	}
	if b.defaultTokenURL == nil {
		return ""
	}
	return b.defaultTokenURL()
}

// GetOAuth2Config returns the config used for the refresh grant. Credentials are
// sent as form parameters; auto-detection would retry with a second request.
func (b *BaseProvider) GetOAuth2Config() (*oauth2.Config, error) {
	tokenURL := b.TokenURL()
	if b.config.ClientID == "" || b.config.ClientSecret == "" || tokenURL == "" {
		return nil, ErrProviderMisconfigured
	}
	return &oauth2.Config{
		ClientID:     b.config.ClientID,
		ClientSecret: b.config.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, nil
}

func (b *BaseProvider) Refresh(ctx context.Context, refreshToken, previousScope string) (*RefreshedCredential, error) {
	if refreshToken == "" {
		return nil, domain.NewRefreshError(b.id, 0, nil, ErrMissingRefreshToken)
	}
	conf, err := b.GetOAuth2Config()
	if err != nil {
		return nil, domain.NewRefreshError(b.id, 0, nil, err)
	}

	// Captured before the request so the expiry never overshoots the provider's.
	issuedAt := b.now()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rErr.Response != nil {
			return nil, domain.NewRefreshError(b.id, rErr.Response.StatusCode, rErr.Body, err)
		}
		return nil, domain.NewRefreshError(b.id, 0, nil, err)
	}

	rotated := tok.RefreshToken
	if rotated == "" {
		rotated = refreshToken
	}

	scope := previousScope
	if s, ok := tok.Extra("scope").(string); ok && strings.TrimSpace(s) != "" {
		scope = s
	}

	return &RefreshedCredential{
		AccessToken:  tok.AccessToken,
		RefreshToken: rotated,
		ExpiresAt:    issuedAt.Add(expiresIn(tok)),
		Scope:        scope,
	}, nil
}

// expiresIn reads the raw expires_in field. JSON bodies decode numbers as
// float64, form-encoded bodies yield int64 or string.
func expiresIn(tok *oauth2.Token) time.Duration {
	var secs int64
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		secs = int64(v)
	case int64:
		secs = v
	case json.Number:
		secs, _ = v.Int64()
	case string:
		secs, _ = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	}
	if secs <= 0 {
		return DefaultExpiresIn
	}
	return time.Duration(secs) * time.Second
}
