package linkage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/linkage"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Find(ctx context.Context, userID string, provider domain.ProviderID) (*domain.ProviderCredential, error) {
	args := m.Called(ctx, userID, provider)
	cred, _ := args.Get(0).(*domain.ProviderCredential)
	return cred, args.Error(1)
}

func (m *MockStore) Upsert(ctx context.Context, cred *domain.ProviderCredential) error {
	return m.Called(ctx, cred).Error(0)
}

func (m *MockStore) Delete(ctx context.Context, userID string, provider domain.ProviderID) error {
	return m.Called(ctx, userID, provider).Error(0)
}

func (m *MockStore) ListByUser(ctx context.Context, userID string) ([]*domain.ProviderCredential, error) {
	args := m.Called(ctx, userID)
	creds, _ := args.Get(0).([]*domain.ProviderCredential)
	return creds, args.Error(1)
}

func (m *MockStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *MockStore) UnlinkProvider(ctx context.Context, userID string, provider domain.ProviderID) error {
	return m.Called(ctx, userID, provider).Error(0)
}

var now = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func TestRegistry_ListLinked(t *testing.T) {
	store := new(MockStore)
	reg := linkage.NewRegistry(store, linkage.WithClock(func() time.Time { return now }))

	linkedAt := now.Add(-48 * time.Hour)
	expired := now.Add(-time.Minute)
	store.On("ListByUser", mock.Anything, "u1").Return([]*domain.ProviderCredential{
		{
			UserID: "u1", ProviderID: domain.ProviderKick,
			AccessToken: "a1", AccessTokenExpiresAt: &expired,
			Scope: "user:read", CreatedAt: linkedAt,
		},
	}, nil)
	store.On("GetUserByID", mock.Anything, "u1").Return(&domain.User{ID: "u1", KickID: "kick-42"}, nil)

	summary, err := reg.ListLinked(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, 1, summary.LinkedCount())

	assert.Equal(t, domain.LinkedIdentity{}, summary[domain.ProviderDiscord])

	kick := summary[domain.ProviderKick]
	assert.True(t, kick.Linked)
	assert.Equal(t, "kick-42", kick.AccountID)
	assert.Equal(t, expired, *kick.ExpiresAt)
	assert.Equal(t, linkedAt, *kick.LastLinkedAt)
	assert.Equal(t, []string{"user:read"}, kick.Scopes)
	assert.Equal(t, []string{"channel:read"}, kick.MissingScopes)
	assert.True(t, kick.NeedsReconnect)
}

func TestRegistry_ListLinked_NoUserProfile(t *testing.T) {
	store := new(MockStore)
	reg := linkage.NewRegistry(store)

	store.On("ListByUser", mock.Anything, "u1").Return([]*domain.ProviderCredential{
		{UserID: "u1", ProviderID: domain.ProviderDiscord, AccountID: "d-1", AccessToken: "a1", Scope: "identify email guilds"},
	}, nil)
	store.On("GetUserByID", mock.Anything, "u1").Return(nil, domain.ErrUserNotFound)

	summary, err := reg.ListLinked(context.Background(), "u1")
	require.NoError(t, err)
	discord := summary[domain.ProviderDiscord]
	assert.True(t, discord.Linked)
	assert.Equal(t, "d-1", discord.AccountID)
	assert.Empty(t, discord.MissingScopes)
	assert.False(t, discord.NeedsReconnect)
	assert.False(t, summary[domain.ProviderKick].Linked)
}

func TestRegistry_ListLinked_StoreError(t *testing.T) {
	store := new(MockStore)
	reg := linkage.NewRegistry(store)
	store.On("ListByUser", mock.Anything, "u1").Return(nil, errors.New("timeout"))

	_, err := reg.ListLinked(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrStore)
	var sErr *domain.StoreError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, "list credentials", sErr.Op)
}

func TestRegistry_Unlink(t *testing.T) {
	tests := []struct {
		name     string
		storeErr error
		wantErr  error
		outcome  string
	}{
		{"success", nil, nil, metrics.OutcomeSuccess},
		{"last provider", domain.ErrLastProviderInvariant, domain.ErrLastProviderInvariant, metrics.OutcomeBlocked},
		{"not linked", domain.ErrNotLinked, domain.ErrNotLinked, metrics.OutcomeFailure},
		{"store failure", errors.New("write conflict"), domain.ErrStore, metrics.OutcomeFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStore)
			m := metrics.New(prometheus.NewRegistry())
			reg := linkage.NewRegistry(store, linkage.WithMetrics(m))
			store.On("UnlinkProvider", mock.Anything, "u1", domain.ProviderKick).Return(tt.storeErr).Once()

			err := reg.Unlink(context.Background(), "u1", domain.ProviderKick)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, 1.0, testutil.ToFloat64(m.UnlinksTotal.WithLabelValues("kick", tt.outcome)))
			store.AssertExpectations(t)
		})
	}
}

func TestRegistry_Unlink_UnknownProvider(t *testing.T) {
	store := new(MockStore)
	reg := linkage.NewRegistry(store)

	err := reg.Unlink(context.Background(), "u1", "twitch")
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
	store.AssertNotCalled(t, "UnlinkProvider", mock.Anything, mock.Anything, mock.Anything)
}
