package linkage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/audit"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/credential"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/metrics"
	"github.com/jcodog/Cleo-Dashboard-sub001/log"
	"github.com/jcodog/Cleo-Dashboard-sub001/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Store is the slice of a storage backend the registry needs.
type Store interface {
	domain.CredentialRepository
	domain.UserRepository
	domain.IdentityLinkStore
}

// Registry reports which providers a user has linked and removes links while
// keeping at least one provider per user.
type Registry struct {
	store   Store
	now     func() time.Time
	logger  log.Logger
	metrics *metrics.Metrics
	audit   *audit.Logger
	tracer  trace.Tracer
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithLogger(l log.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

func WithAudit(a *audit.Logger) Option {
	return func(r *Registry) { r.audit = a }
}

func NewRegistry(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		now:    time.Now,
		logger: log.Nop(),
		tracer: tracing.Tracer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListLinked returns one entry per known provider. Providers without a
// credential are present with Linked set to false.
func (r *Registry) ListLinked(ctx context.Context, userID string) (domain.LinkedSummary, error) {
	ctx, span := r.tracer.Start(ctx, "linkage.ListLinked", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	creds, err := r.store.ListByUser(ctx, userID)
	if err != nil {
		err = wrapStoreError("list credentials", err)
		span.RecordError(err)
		return nil, err
	}

	// The profile only backfills account ids missing on older credentials.
	user, err := r.store.GetUserByID(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		err = wrapStoreError("get user", err)
		span.RecordError(err)
		return nil, err
	}

	summary := make(domain.LinkedSummary, len(domain.Providers))
	for _, p := range domain.Providers {
		summary[p] = domain.LinkedIdentity{}
	}

	now := r.now()
	for _, cred := range creds {
		if cred == nil || !cred.ProviderID.Valid() {
			continue
		}
		summary[cred.ProviderID] = describe(cred, user, now)
	}
	return summary, nil
}

func describe(cred *domain.ProviderCredential, user *domain.User, now time.Time) domain.LinkedIdentity {
	li := domain.LinkedIdentity{
		Linked:         true,
		AccountID:      cred.AccountID,
		Scopes:         domain.ParseScope(cred.Scope),
		MissingScopes:  domain.MissingScopes(cred.Scope, domain.RequiredScopes[cred.ProviderID]),
		NeedsReconnect: credential.Evaluate(cred, now) == credential.Unrefreshable,
	}
	if li.AccountID == "" && user != nil {
		li.AccountID = user.ProviderAccountID(cred.ProviderID)
	}
	if cred.AccessTokenExpiresAt != nil {
		exp := *cred.AccessTokenExpiresAt
		li.ExpiresAt = &exp
	}
	if !cred.CreatedAt.IsZero() {
		linked := cred.CreatedAt
		li.LastLinkedAt = &linked
	}
	return li
}

// Unlink removes the user's link to provider. It fails with ErrNotLinked when
// there is nothing to remove and with ErrLastProviderInvariant when provider is
// the only one left; in both cases nothing is changed.
func (r *Registry) Unlink(ctx context.Context, userID string, provider domain.ProviderID) error {
	ctx, span := r.tracer.Start(ctx, "linkage.Unlink", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("provider", string(provider)),
	))
	defer span.End()

	logger := r.logger.With(log.Fields{"user_id": userID, "provider": string(provider)})

	err := r.unlink(ctx, userID, provider)
	switch {
	case err == nil:
		r.metrics.ObserveUnlink(string(provider), metrics.OutcomeSuccess)
		r.audit.Log(audit.ActionProviderUnlink, userID, string(provider), "", true, nil)
		logger.Info(ctx, "Provider unlinked")
		return nil
	case errors.Is(err, domain.ErrLastProviderInvariant):
		r.metrics.ObserveUnlink(string(provider), metrics.OutcomeBlocked)
		logger.Info(ctx, "Unlink refused, provider is the last one linked")
	case errors.Is(err, domain.ErrStore):
		r.metrics.ObserveUnlink(string(provider), metrics.OutcomeFailure)
		logger.Error(ctx, "Unlink failed", err)
	default:
		r.metrics.ObserveUnlink(string(provider), metrics.OutcomeFailure)
		logger.Debug(ctx, "Unlink rejected", log.Fields{"error": err.Error()})
	}

	r.audit.Log(audit.ActionProviderUnlink, userID, string(provider), "", false, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(domain.Classify(err)))
	return err
}

func (r *Registry) unlink(ctx context.Context, userID string, provider domain.ProviderID) error {
	if !provider.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownProvider, provider)
	}
	err := r.store.UnlinkProvider(ctx, userID, provider)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotLinked), errors.Is(err, domain.ErrLastProviderInvariant):
		return err
	case errors.Is(err, domain.ErrCredentialNotFound):
		return domain.ErrNotLinked
	}
	return wrapStoreError("unlink", err)
}

func wrapStoreError(op string, err error) error {
	if errors.Is(err, domain.ErrStore) {
		return err
	}
	return domain.NewStoreError(op, err)
}
