package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(store *fakeStore, email string, lastReset *time.Time) User {
	user, _ := store.Create(context.Background(), User{
		Username:     "alice",
		Email:        email,
		PasswordHash: "x",
		Role:         RoleUser,
		IsActive:     true,
		IsVerified:   true,
	})
	if lastReset != nil {
		reset := lastReset.UTC()
		user.LastPasswordReset = &reset
		store.mu.Lock()
		store.users[user.ID] = user
		store.mu.Unlock()
	}
	return user
}

func TestResolve_RoundTrip(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	issuer := newTestIssuer(t)
	resolver := NewResolver(issuer, store, newTestCache(t))

	seedUser(store, "alice@x.com", nil)

	token, _, err := issuer.IssueAccessToken("alice@x.com")
	require.NoError(t, err)

	snapshot, err := resolver.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", snapshot.Email)
	assert.Equal(t, "alice", snapshot.Username)
	assert.Equal(t, RoleUser, snapshot.Role)
}

func TestResolve_UnknownIdentity(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	issuer := newTestIssuer(t)
	resolver := NewResolver(issuer, store, newTestCache(t))

	token, _, err := issuer.IssueAccessToken("ghost@x.com")
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnknownIdentity)
}

func TestResolve_InvalidToken(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	issuer := newTestIssuer(t)
	resolver := NewResolver(issuer, store, newTestCache(t))

	seedUser(store, "alice@x.com", nil)

	_, err := resolver.Resolve(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	refresh, _, err := issuer.IssueRefreshToken("alice@x.com")
	require.NoError(t, err)
	_, err = resolver.Resolve(context.Background(), refresh)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestResolve_StaleTokenAfterReset(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	issuer := newTestIssuer(t)
	resolver := NewResolver(issuer, store, newTestCache(t))

	// Token minted a minute ago, password reset thirty seconds ago. The
	// token itself is far from expiry but must be rejected as stale.
	issuedAt := time.Now().UTC().Add(-time.Minute)
	resetAt := time.Now().UTC().Add(-30 * time.Second)

	issuer.now = func() time.Time { return issuedAt }
	token, _, err := issuer.IssueAccessToken("alice@x.com")
	require.NoError(t, err)
	issuer.now = func() time.Time { return time.Now().UTC() }

	seedUser(store, "alice@x.com", &resetAt)

	_, err = resolver.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, ErrStaleCredential)
}

func TestResolve_TokenIssuedAfterReset(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	issuer := newTestIssuer(t)
	resolver := NewResolver(issuer, store, newTestCache(t))

	resetAt := time.Now().UTC().Add(-time.Minute)
	seedUser(store, "alice@x.com", &resetAt)

	token, _, err := issuer.IssueAccessToken("alice@x.com")
	require.NoError(t, err)

	snapshot, err := resolver.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", snapshot.Email)
}

func TestResolve_StaleEvenOnCacheHit(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	issuer := newTestIssuer(t)
	cache := newTestCache(t)
	resolver := NewResolver(issuer, store, cache)

	issuedAt := time.Now().UTC().Add(-time.Minute)
	resetAt := time.Now().UTC().Add(-30 * time.Second)
	seedUser(store, "alice@x.com", &resetAt)

	// Warm the cache with a fresh token, then present the stale one. The
	// staleness rule must apply on the cached path too.
	fresh, _, err := issuer.IssueAccessToken("alice@x.com")
	require.NoError(t, err)
	_, err = resolver.Resolve(context.Background(), fresh)
	require.NoError(t, err)

	issuer.now = func() time.Time { return issuedAt }
	stale, _, err := issuer.IssueAccessToken("alice@x.com")
	require.NoError(t, err)
	issuer.now = func() time.Time { return time.Now().UTC() }

	_, err = resolver.Resolve(context.Background(), stale)
	assert.ErrorIs(t, err, ErrStaleCredential)
}

func TestResolve_CachePopulationIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	issuer := newTestIssuer(t)
	resolver := NewResolver(issuer, store, newTestCache(t))

	seedUser(store, "alice@x.com", nil)

	token, _, err := issuer.IssueAccessToken("alice@x.com")
	require.NoError(t, err)

	first, err := resolver.Resolve(context.Background(), token)
	require.NoError(t, err)

	for range 5 {
		again, err := resolver.Resolve(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	store.mu.Lock()
	calls := store.findByEmailCalls
	store.mu.Unlock()
	assert.Equal(t, 1, calls, "repeat resolutions must be served from the cache")
}
