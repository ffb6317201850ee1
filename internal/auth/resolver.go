package auth

import (
	"context"
	"errors"
	"fmt"
)

// Resolver turns a raw access token into an identity snapshot. It consults
// the cache first, falls back to the credential store, and on every path
// applies the invalidation rule: a token minted before the account's last
// password reset is stale no matter how long it has left to live.
type Resolver struct {
	issuer *TokenIssuer
	store  Store
	cache  SnapshotCache
}

func NewResolver(issuer *TokenIssuer, store Store, cache SnapshotCache) *Resolver {
	return &Resolver{issuer: issuer, store: store, cache: cache}
}

// Resolve validates the token and produces the caller's identity.
// Errors: ErrInvalidCredential, ErrUnknownIdentity, ErrStaleCredential.
func (r *Resolver) Resolve(ctx context.Context, rawToken string) (Snapshot, error) {
	claims, err := r.issuer.Parse(rawToken, tokenTypeAccess)
	if err != nil {
		return Snapshot{}, ErrInvalidCredential
	}

	if snapshot, ok := r.cache.Get(claims.Subject); ok {
		if err := checkFreshness(snapshot, claims.IssuedAt); err != nil {
			return Snapshot{}, err
		}
		return snapshot, nil
	}

	user, err := r.store.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUnknownIdentity) {
			return Snapshot{}, ErrUnknownIdentity
		}
		return Snapshot{}, fmt.Errorf("resolve identity: %w", err)
	}

	snapshot := snapshotOf(user)
	r.cache.Set(claims.Subject, snapshot)

	if err := checkFreshness(snapshot, claims.IssuedAt); err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

// checkFreshness compares integer Unix seconds on both sides so the cache-hit
// and store-fallback paths agree at the reset boundary.
func checkFreshness(snapshot Snapshot, issuedAt int64) error {
	if snapshot.LastPasswordReset != nil && snapshot.LastPasswordReset.Unix() > issuedAt {
		return ErrStaleCredential
	}
	return nil
}
