package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/idg-training/portfolio/internal/auth"
)

func newManager(t *testing.T) *auth.Manager {
	t.Helper()
	adminHash, err := auth.HashPassword("admin-secret")
	require.NoError(t, err)
	libraryHash, err := auth.HashPassword("library-secret")
	require.NoError(t, err)
	return auth.NewManager("test-signing-key", time.Hour, adminHash, libraryHash)
}

func TestLoginScopes(t *testing.T) {
	m := newManager(t)

	token, scope, err := m.Login("admin-secret")
	require.NoError(t, err)
	require.Equal(t, auth.ScopeAdmin, scope)
	require.NotEmpty(t, token)

	_, scope, err = m.Login("library-secret")
	require.NoError(t, err)
	require.Equal(t, auth.ScopeLibrary, scope)

	_, _, err = m.Login("wrong")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestIssueVerifyRoundtrip(t *testing.T) {
	m := newManager(t)

	token, err := m.Issue(auth.ScopeLibrary)
	require.NoError(t, err)

	scope, err := m.Verify(token)
	require.NoError(t, err)
	require.Equal(t, auth.ScopeLibrary, scope)
}

func TestVerifyRejectsForeignAndExpiredTokens(t *testing.T) {
	m := newManager(t)

	_, err := m.Verify("not-a-token")
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	other := auth.NewManager("other-signing-key", time.Hour, "", "")
	foreign, err := other.Issue(auth.ScopeAdmin)
	require.NoError(t, err)
	_, err = m.Verify(foreign)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	expired := auth.NewManager("test-signing-key", -time.Minute, "", "")
	stale, err := expired.Issue(auth.ScopeAdmin)
	require.NoError(t, err)
	_, err = m.Verify(stale)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestAllows(t *testing.T) {
	require.True(t, auth.Allows(auth.ScopeAdmin, auth.ScopeAdmin))
	require.True(t, auth.Allows(auth.ScopeAdmin, auth.ScopeLibrary))
	require.True(t, auth.Allows(auth.ScopeLibrary, auth.ScopeLibrary))
	require.False(t, auth.Allows(auth.ScopeLibrary, auth.ScopeAdmin))
}
