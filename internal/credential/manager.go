package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/audit"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/federation"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/metrics"
	"github.com/jcodog/Cleo-Dashboard-sub001/log"
	"github.com/jcodog/Cleo-Dashboard-sub001/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ProviderSource resolves the token client for a provider.
type ProviderSource interface {
	Get(id domain.ProviderID) (federation.TokenRefresher, error)
}

// Manager hands out valid access tokens, refreshing and persisting them when needed.
type Manager struct {
	creds     domain.CredentialRepository
	providers ProviderSource
	locker    RefreshLocker
	now       func() time.Time
	logger    log.Logger
	metrics   *metrics.Metrics
	audit     *audit.Logger
	tracer    trace.Tracer
}

type ManagerOption func(*Manager)

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func WithLocker(l RefreshLocker) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.locker = l
		}
	}
}

func WithLogger(l log.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

func WithAudit(a *audit.Logger) ManagerOption {
	return func(m *Manager) { m.audit = a }
}

func WithTracer(t trace.Tracer) ManagerOption {
	return func(m *Manager) {
		if t != nil {
			m.tracer = t
		}
	}
}

func NewManager(creds domain.CredentialRepository, providers ProviderSource, opts ...ManagerOption) *Manager {
	m := &Manager{
		creds:     creds,
		providers: providers,
		locker:    NoopLocker{},
		now:       time.Now,
		logger:    log.Nop(),
		tracer:    tracing.Tracer(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetAccessToken returns a valid access token for the user's linked provider account.
// A token inside the grace window is never returned; it is refreshed first.
func (m *Manager) GetAccessToken(ctx context.Context, userID string, provider domain.ProviderID) (string, error) {
	cred, err := m.EnsureFresh(ctx, userID, provider)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// EnsureFresh is GetAccessToken returning the whole credential.
func (m *Manager) EnsureFresh(ctx context.Context, userID string, provider domain.ProviderID) (*domain.ProviderCredential, error) {
	ctx, span := m.tracer.Start(ctx, "credential.EnsureFresh", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("provider", string(provider)),
	))
	defer span.End()

	cred, err := m.ensureFresh(ctx, userID, provider)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.Classify(err)))
		return nil, err
	}
	return cred, nil
}

func (m *Manager) ensureFresh(ctx context.Context, userID string, provider domain.ProviderID) (*domain.ProviderCredential, error) {
	if !provider.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, provider)
	}

	cred, err := m.find(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	verdict := Evaluate(cred, m.now())
	m.metrics.ObserveVerdict(string(provider), verdict.String())

	switch verdict {
	case Fresh:
		return cred, nil
	case Unrefreshable:
		return nil, domain.ErrUnrefreshable
	}
	return m.refresh(ctx, cred)
}

// find loads the credential and treats a row without an access token as unlinked.
func (m *Manager) find(ctx context.Context, userID string, provider domain.ProviderID) (*domain.ProviderCredential, error) {
	cred, err := m.creds.Find(ctx, userID, provider)
	switch {
	case errors.Is(err, domain.ErrCredentialNotFound):
		return nil, domain.ErrNotLinked
	case err != nil:
		return nil, wrapStoreError("find", err)
	case !cred.HasAccessToken():
		return nil, domain.ErrNotLinked
	}
	return cred, nil
}

func (m *Manager) refresh(ctx context.Context, cred *domain.ProviderCredential) (*domain.ProviderCredential, error) {
	logger := m.logger.With(log.Fields{"user_id": cred.UserID, "provider": string(cred.ProviderID)})
	provider := string(cred.ProviderID)

	release, err := m.locker.Acquire(ctx, LockKey(cred.UserID, cred.ProviderID))
	if err != nil {
		return nil, fmt.Errorf("acquire refresh lock: %w", err)
	}
	defer release()

	// With a real lock another caller may have refreshed while we waited.
	if _, noop := m.locker.(NoopLocker); !noop {
		current, err := m.find(ctx, cred.UserID, cred.ProviderID)
		if err != nil {
			return nil, err
		}
		switch Evaluate(current, m.now()) {
		case Fresh:
			m.metrics.ObserveRefresh(provider, metrics.OutcomeSkipped)
			logger.Debug(ctx, "Credential already refreshed by a concurrent caller")
			return current, nil
		case Unrefreshable:
			return nil, domain.ErrUnrefreshable
		}
		cred = current
	}

	client, err := m.providers.Get(cred.ProviderID)
	if err != nil {
		return nil, err
	}

	refreshed, err := client.Refresh(ctx, cred.RefreshToken, cred.Scope)
	if err != nil {
		if !errors.Is(err, domain.ErrRefreshFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrRefreshFailed, err)
		}
		m.metrics.ObserveRefresh(provider, metrics.OutcomeFailure)
		m.audit.Log(audit.ActionTokenRefresh, cred.UserID, provider, "", false, err)
		logger.Warn(ctx, "Provider token refresh failed", log.Fields{"error": err.Error()})
		return nil, err
	}

	updated := cred.Clone()
	updated.AccessToken = refreshed.AccessToken
	if refreshed.RefreshToken != "" {
		updated.RefreshToken = refreshed.RefreshToken
	}
	expiresAt := refreshed.ExpiresAt
	updated.AccessTokenExpiresAt = &expiresAt
	if refreshed.Scope != "" {
		updated.Scope = refreshed.Scope
	}
	updated.UpdatedAt = m.now()

	if err := m.creds.Upsert(ctx, updated); err != nil {
		err = wrapStoreError("upsert", err)
		m.metrics.ObserveRefresh(provider, metrics.OutcomeFailure)
		m.audit.Log(audit.ActionTokenRefresh, cred.UserID, provider, "persist failed", false, err)
		logger.Error(ctx, "Failed to persist refreshed credential", err)
		return nil, err
	}

	m.metrics.ObserveRefresh(provider, metrics.OutcomeSuccess)
	m.audit.Log(audit.ActionTokenRefresh, cred.UserID, provider, "", true, nil)
	logger.Info(ctx, "Provider token refreshed", log.Fields{
		"access_token": log.RedactToken(updated.AccessToken),
		"expires_at":   expiresAt,
		"rotated":      refreshed.RefreshToken != "" && refreshed.RefreshToken != cred.RefreshToken,
	})
	return updated, nil
}

func wrapStoreError(op string, err error) error {
	if errors.Is(err, domain.ErrStore) {
		return err
	}
	return domain.NewStoreError(op, err)
}
