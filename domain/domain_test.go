package domain_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProviderID(t *testing.T) {
	p, err := domain.ParseProviderID(" Discord ")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderDiscord, p)

	_, err = domain.ParseProviderID("twitch")
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}

func TestCheckUnlinkAllowed(t *testing.T) {
	discord := &domain.ProviderCredential{UserID: "u1", ProviderID: domain.ProviderDiscord}
	kick := &domain.ProviderCredential{UserID: "u1", ProviderID: domain.ProviderKick}

	t.Run("not linked", func(t *testing.T) {
		err := domain.CheckUnlinkAllowed([]*domain.ProviderCredential{discord}, domain.ProviderKick)
		assert.ErrorIs(t, err, domain.ErrNotLinked)
	})
	t.Run("last provider", func(t *testing.T) {
		err := domain.CheckUnlinkAllowed([]*domain.ProviderCredential{discord}, domain.ProviderDiscord)
		assert.ErrorIs(t, err, domain.ErrLastProviderInvariant)
	})
	t.Run("two providers", func(t *testing.T) {
		err := domain.CheckUnlinkAllowed([]*domain.ProviderCredential{discord, kick}, domain.ProviderKick)
		assert.NoError(t, err)
	})
	t.Run("nothing linked", func(t *testing.T) {
		err := domain.CheckUnlinkAllowed(nil, domain.ProviderKick)
		assert.ErrorIs(t, err, domain.ErrNotLinked)
	})
}

func TestRefreshError(t *testing.T) {
	body := []byte(strings.Repeat("x", 2048))
	err := domain.NewRefreshError(domain.ProviderKick, 400, body, nil)

	assert.Len(t, err.Body, 512)
	assert.ErrorIs(t, err, domain.ErrRefreshFailed)
	assert.Contains(t, err.Error(), "status 400")

	wrapped := fmt.Errorf("get token: %w", err)
	var re *domain.RefreshError
	require.True(t, errors.As(wrapped, &re))
	assert.Equal(t, 400, re.StatusCode)
}

func TestStoreError(t *testing.T) {
	assert.Nil(t, domain.NewStoreError("find", nil))

	cause := errors.New("connection reset")
	err := domain.NewStoreError("find", cause)
	assert.ErrorIs(t, err, domain.ErrStore)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "store find: connection reset", err.Error())
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want domain.ErrorClass
	}{
		{nil, domain.ClassNone},
		{domain.ErrNotLinked, domain.ClassReconnect},
		{domain.ErrUnrefreshable, domain.ClassReconnect},
		{domain.NewRefreshError(domain.ProviderKick, 500, nil, nil), domain.ClassRetry},
		{domain.ErrLastProviderInvariant, domain.ClassBlocked},
		{domain.ErrUnknownProvider, domain.ClassInvalid},
		{domain.NewStoreError("find", errors.New("boom")), domain.ClassInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, domain.Classify(tc.err), "error: %v", tc.err)
	}
}

func TestMissingScopes(t *testing.T) {
	assert.Equal(t, []string{"guilds"}, domain.MissingScopes("identify,email", domain.RequiredScopes[domain.ProviderDiscord]))
	assert.Empty(t, domain.MissingScopes("user:read channel:read extra", domain.RequiredScopes[domain.ProviderKick]))
	assert.Equal(t, []string{"a", "b"}, domain.ParseScope("a  b,a"))
}

func TestUserProviderAccountID(t *testing.T) {
	u := &domain.User{ID: "u1", DiscordID: "d-1", KickID: "k-1"}
	u.ClearProviderAccountID(domain.ProviderDiscord)
	assert.Empty(t, u.ProviderAccountID(domain.ProviderDiscord))
	assert.Equal(t, "k-1", u.ProviderAccountID(domain.ProviderKick))

	field, err := domain.ProviderAccountField(domain.ProviderKick)
	require.NoError(t, err)
	assert.Equal(t, "kick_id", field)
}

func TestProviderCredentialClone(t *testing.T) {
	assert.Nil(t, (*domain.ProviderCredential)(nil).Clone())
}
