package credential_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/credential"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/federation"
	mock_federation "github.com/jcodog/Cleo-Dashboard-sub001/internal/federation/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var now = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func expiresIn(d time.Duration) *time.Time {
	ts := now.Add(d)
	return &ts
}

func newManager(t *testing.T, repo domain.CredentialRepository, opts ...credential.ManagerOption) (*credential.Manager, *mock_federation.MockTokenRefresher) {
	t.Helper()
	ctrl := gomock.NewController(t)
	refresher := mock_federation.NewMockTokenRefresher(ctrl)
	refresher.EXPECT().Provider().Return(domain.ProviderDiscord).AnyTimes()

	opts = append([]credential.ManagerOption{credential.WithClock(clock)}, opts...)
	return credential.NewManager(repo, federation.NewRegistry(refresher), opts...), refresher
}

func TestManager_GetAccessToken_FreshMakesNoCalls(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCredentialRepository)
	m, _ := newManager(t, repo) // no Refresh expectation: any call fails the test

	repo.On("Find", mock.Anything, "u1", domain.ProviderDiscord).Return(&domain.ProviderCredential{
		UserID: "u1", ProviderID: domain.ProviderDiscord,
		AccessToken: "a1", RefreshToken: "r1", AccessTokenExpiresAt: expiresIn(10 * time.Minute),
	}, nil)

	for i := 0; i < 2; i++ {
		token, err := m.GetAccessToken(ctx, "u1", domain.ProviderDiscord)
		require.NoError(t, err)
		assert.Equal(t, "a1", token)
	}

	repo.AssertNumberOfCalls(t, "Find", 2)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestManager_GetAccessToken_NoExpiryIsFresh(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCredentialRepository)
	m, _ := newManager(t, repo)

	repo.On("Find", mock.Anything, "u1", domain.ProviderDiscord).Return(&domain.ProviderCredential{
		UserID: "u1", ProviderID: domain.ProviderDiscord, AccessToken: "a1",
	}, nil)

	token, err := m.GetAccessToken(ctx, "u1", domain.ProviderDiscord)
	require.NoError(t, err)
	assert.Equal(t, "a1", token)
}

func TestManager_GetAccessToken_RefreshesInsideGraceWindow(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCredentialRepository)
	m, refresher := newManager(t, repo)

	created := now.Add(-24 * time.Hour)
	repo.On("Find", mock.Anything, "u1", domain.ProviderDiscord).Return(&domain.ProviderCredential{
		ID: "c1", UserID: "u1", ProviderID: domain.ProviderDiscord, AccountID: "acc-1",
		AccessToken: "a1", RefreshToken: "r1", AccessTokenExpiresAt: expiresIn(30 * time.Second),
		Scope: "identify", CreatedAt: created,
	}, nil)

	refresher.EXPECT().Refresh(gomock.Any(), "r1", "identify").Return(&federation.RefreshedCredential{
		AccessToken: "a2", RefreshToken: "r2", ExpiresAt: now.Add(time.Hour), Scope: "identify email",
	}, nil).Times(1)

	var saved *domain.ProviderCredential
	repo.On("Upsert", mock.Anything, mock.AnythingOfType("*domain.ProviderCredential")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.ProviderCredential) }).
		Return(nil).Once()

	token, err := m.GetAccessToken(ctx, "u1", domain.ProviderDiscord)
	require.NoError(t, err)
	assert.Equal(t, "a2", token)

	require.NotNil(t, saved)
	assert.Equal(t, "c1", saved.ID)
	assert.Equal(t, "acc-1", saved.AccountID)
	assert.Equal(t, "a2", saved.AccessToken)
	assert.Equal(t, "r2", saved.RefreshToken)
	assert.Equal(t, now.Add(time.Hour), *saved.AccessTokenExpiresAt)
	assert.Equal(t, "identify email", saved.Scope)
	assert.Equal(t, now, saved.UpdatedAt)
	assert.Equal(t, created, saved.CreatedAt)
	repo.AssertExpectations(t)
}

func TestManager_GetAccessToken_ExpiredWithoutRefreshToken(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCredentialRepository)
	m, _ := newManager(t, repo)

	repo.On("Find", mock.Anything, "u1", domain.ProviderDiscord).Return(&domain.ProviderCredential{
		UserID: "u1", ProviderID: domain.ProviderDiscord,
		AccessToken: "a1", AccessTokenExpiresAt: expiresIn(-time.Minute),
	}, nil)

	token, err := m.GetAccessToken(ctx, "u1", domain.ProviderDiscord)
	assert.ErrorIs(t, err, domain.ErrUnrefreshable)
	assert.Empty(t, token)
	assert.Equal(t, domain.ClassReconnect, domain.Classify(err))
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestManager_GetAccessToken_NotLinked(t *testing.T) {
	ctx := context.Background()

	t.Run("no credential", func(t *testing.T) {
		repo := new(MockCredentialRepository)
		m, _ := newManager(t, repo)
		repo.On("Find", mock.Anything, "u1", domain.ProviderKick).Return(nil, domain.ErrCredentialNotFound)

		_, err := m.GetAccessToken(ctx, "u1", domain.ProviderKick)
		assert.ErrorIs(t, err, domain.ErrNotLinked)
	})

	t.Run("empty access token", func(t *testing.T) {
		repo := new(MockCredentialRepository)
		m, _ := newManager(t, repo)
		repo.On("Find", mock.Anything, "u1", domain.ProviderKick).Return(&domain.ProviderCredential{
			UserID: "u1", ProviderID: domain.ProviderKick, RefreshToken: "r1",
		}, nil)

		_, err := m.GetAccessToken(ctx, "u1", domain.ProviderKick)
		assert.ErrorIs(t, err, domain.ErrNotLinked)
	})
}

func TestManager_GetAccessToken_UnknownProvider(t *testing.T) {
	repo := new(MockCredentialRepository)
	m, _ := newManager(t, repo)

	_, err := m.GetAccessToken(context.Background(), "u1", "twitch")
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
	repo.AssertNotCalled(t, "Find", mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_GetAccessToken_StoreFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("find", func(t *testing.T) {
		repo := new(MockCredentialRepository)
		m, _ := newManager(t, repo)
		repo.On("Find", mock.Anything, "u1", domain.ProviderDiscord).Return(nil, errors.New("connection reset"))

		_, err := m.GetAccessToken(ctx, "u1", domain.ProviderDiscord)
		assert.ErrorIs(t, err, domain.ErrStore)
		assert.Equal(t, domain.ClassInternal, domain.Classify(err))
	})

	t.Run("upsert", func(t *testing.T) {
		repo := new(MockCredentialRepository)
		m, refresher := newManager(t, repo)
		repo.On("Find", mock.Anything, "u1", domain.ProviderDiscord).Return(&domain.ProviderCredential{
			UserID: "u1", ProviderID: domain.ProviderDiscord,
			AccessToken: "a1", RefreshToken: "r1", AccessTokenExpiresAt: expiresIn(0),
		}, nil)
		refresher.EXPECT().Refresh(gomock.Any(), "r1", "").Return(&federation.RefreshedCredential{
			AccessToken: "a2", RefreshToken: "r1", ExpiresAt: now.Add(time.Hour),
		}, nil)
		repo.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		token, err := m.GetAccessToken(ctx, "u1", domain.ProviderDiscord)
		assert.ErrorIs(t, err, domain.ErrStore)
		assert.Empty(t, token)
	})
}

func TestManager_GetAccessToken_RefresherErrorIsWrapped(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCredentialRepository)
	m, refresher := newManager(t, repo)

	repo.On("Find", mock.Anything, "u1", domain.ProviderDiscord).Return(&domain.ProviderCredential{
		UserID: "u1", ProviderID: domain.ProviderDiscord,
		AccessToken: "a1", RefreshToken: "r1", AccessTokenExpiresAt: expiresIn(-time.Hour),
	}, nil)
	boom := errors.New("boom")
	refresher.EXPECT().Refresh(gomock.Any(), "r1", "").Return(nil, boom)

	_, err := m.GetAccessToken(ctx, "u1", domain.ProviderDiscord)
	assert.ErrorIs(t, err, domain.ErrRefreshFailed)
	assert.ErrorIs(t, err, boom)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestManager_WithLocker_SkipsRefreshDoneByOtherCaller(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCredentialRepository)
	locker := &countingLocker{}
	m, _ := newManager(t, repo, credential.WithLocker(locker)) // Refresh must not be called

	repo.On("Find", mock.Anything, "u1", domain.ProviderDiscord).Return(&domain.ProviderCredential{
		UserID: "u1", ProviderID: domain.ProviderDiscord,
		AccessToken: "a1", RefreshToken: "r1", AccessTokenExpiresAt: expiresIn(10 * time.Second),
	}, nil).Once()
	repo.On("Find", mock.Anything, "u1", domain.ProviderDiscord).Return(&domain.ProviderCredential{
		UserID: "u1", ProviderID: domain.ProviderDiscord,
		AccessToken: "a2", RefreshToken: "r1", AccessTokenExpiresAt: expiresIn(time.Hour),
	}, nil).Once()

	token, err := m.GetAccessToken(ctx, "u1", domain.ProviderDiscord)
	require.NoError(t, err)
	assert.Equal(t, "a2", token)
	assert.EqualValues(t, 1, locker.acquired.Load())
	assert.EqualValues(t, 1, locker.released.Load())
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

// Provider returns a2 with no refresh_token and expires_in 3600: the stored
// credential must hold a2, keep r1 and expire an hour from now.
func TestManager_Scenario_RefreshAgainstTokenEndpoint(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "r1", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a2","expires_in":3600,"token_type":"Bearer"}`))
	}))
	defer ts.Close()

	ctx := context.Background()
	repo := new(MockCredentialRepository)
	provider := federation.NewDiscordProvider(federation.ClientConfig{
		ClientID: "id", ClientSecret: "secret", TokenURL: ts.URL,
	}, federation.WithClock(clock))
	m := credential.NewManager(repo, federation.NewRegistry(provider), credential.WithClock(clock))

	repo.On("Find", mock.Anything, "u1", domain.ProviderDiscord).Return(&domain.ProviderCredential{
		UserID: "u1", ProviderID: domain.ProviderDiscord,
		AccessToken: "a1", RefreshToken: "r1", AccessTokenExpiresAt: expiresIn(-time.Second),
	}, nil)
	var saved *domain.ProviderCredential
	repo.On("Upsert", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.ProviderCredential) }).
		Return(nil)

	token, err := m.GetAccessToken(ctx, "u1", domain.ProviderDiscord)
	require.NoError(t, err)
	assert.Equal(t, "a2", token)
	assert.EqualValues(t, 1, calls.Load())

	require.NotNil(t, saved)
	assert.Equal(t, "a2", saved.AccessToken)
	assert.Equal(t, "r1", saved.RefreshToken)
	assert.Equal(t, now.Add(3600*time.Second), *saved.AccessTokenExpiresAt)
}

func TestManager_Scenario_ProviderRejectsRefresh(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer ts.Close()

	ctx := context.Background()
	repo := new(MockCredentialRepository)
	provider := federation.NewKickProvider(federation.ClientConfig{
		ClientID: "id", ClientSecret: "secret", TokenURL: ts.URL,
	})
	m := credential.NewManager(repo, federation.NewRegistry(provider), credential.WithClock(clock))

	repo.On("Find", mock.Anything, "u1", domain.ProviderKick).Return(&domain.ProviderCredential{
		UserID: "u1", ProviderID: domain.ProviderKick,
		AccessToken: "a1", RefreshToken: "r1", AccessTokenExpiresAt: expiresIn(-time.Second),
	}, nil)

	_, err := m.GetAccessToken(ctx, "u1", domain.ProviderKick)
	require.ErrorIs(t, err, domain.ErrRefreshFailed)
	var rErr *domain.RefreshError
	require.ErrorAs(t, err, &rErr)
	assert.Equal(t, http.StatusBadRequest, rErr.StatusCode)
	assert.Equal(t, domain.ClassRetry, domain.Classify(err))
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestManager_EnsureFresh_ReturnsCredential(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCredentialRepository)
	m, _ := newManager(t, repo)

	repo.On("Find", mock.Anything, "u1", domain.ProviderDiscord).Return(&domain.ProviderCredential{
		UserID: "u1", ProviderID: domain.ProviderDiscord, AccessToken: "a1",
		AccessTokenExpiresAt: expiresIn(time.Hour),
	}, nil)

	cred, err := m.EnsureFresh(ctx, "u1", domain.ProviderDiscord)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), *cred.AccessTokenExpiresAt)
}
