package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store for service and resolver tests.
type fakeStore struct {
	mu               sync.Mutex
	users            map[string]User // keyed by id
	refresh          map[string]RefreshTokenRecord
	nextID           int
	findByEmailCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]User),
		refresh: make(map[string]RefreshTokenRecord),
	}
}

func (f *fakeStore) FindByEmail(_ context.Context, email string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findByEmailCalls++
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, ErrUnknownIdentity
}

func (f *fakeStore) FindByVerificationToken(_ context.Context, token string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.VerificationToken != nil && *user.VerificationToken == token {
			return user, nil
		}
	}
	return User{}, ErrUnknownIdentity
}

func (f *fakeStore) Create(_ context.Context, user User) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return User{}, ErrConflict
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) MarkVerified(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return ErrUnknownIdentity
	}
	user.IsVerified = true
	user.VerificationToken = nil
	f.users[userID] = user
	return nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, userID, passwordHash string, resetAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return ErrUnknownIdentity
	}
	user.PasswordHash = passwordHash
	reset := resetAt.UTC()
	user.LastPasswordReset = &reset
	f.users[userID] = user
	return nil
}

func (f *fakeStore) UpdateAvatar(_ context.Context, userID, avatarURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return ErrUnknownIdentity
	}
	user.AvatarURL = &avatarURL
	f.users[userID] = user
	return nil
}

func (f *fakeStore) UpdateRole(_ context.Context, userID string, role Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return ErrUnknownIdentity
	}
	user.Role = role
	f.users[userID] = user
	return nil
}

func (f *fakeStore) CreateRefreshToken(_ context.Context, userID, rawToken string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash := hashToken(rawToken)
	f.refresh[hash] = RefreshTokenRecord{
		ID:        fmt.Sprintf("rt-%d", len(f.refresh)+1),
		UserID:    userID,
		TokenHash: hash,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt.UTC(),
	}
	return nil
}

func (f *fakeStore) RotateRefreshToken(_ context.Context, rawOldToken, rawNewToken string, newExpiresAt time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	oldHash := hashToken(rawOldToken)
	record, ok := f.refresh[oldHash]
	if !ok || record.RevokedAt != nil || time.Now().UTC().After(record.ExpiresAt) {
		return "", ErrInvalidCredential
	}

	newHash := hashToken(rawNewToken)
	newRecord := RefreshTokenRecord{
		ID:        fmt.Sprintf("rt-%d", len(f.refresh)+1),
		UserID:    record.UserID,
		TokenHash: newHash,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: newExpiresAt.UTC(),
	}
	f.refresh[newHash] = newRecord

	now := time.Now().UTC()
	record.RevokedAt = &now
	record.ReplacedBy = &newRecord.ID
	f.refresh[oldHash] = record

	return record.UserID, nil
}

func (f *fakeStore) RevokeRefreshToken(_ context.Context, rawToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash := hashToken(rawToken)
	record, ok := f.refresh[hash]
	if !ok {
		return nil
	}
	if record.RevokedAt == nil {
		now := time.Now().UTC()
		record.RevokedAt = &now
		f.refresh[hash] = record
	}
	return nil
}

func (f *fakeStore) userByEmail(email string) (User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, true
		}
	}
	return User{}, false
}

// fakeMailer records sent tokens and can be forced to fail.
type fakeMailer struct {
	mu                 sync.Mutex
	verificationTokens map[string]string
	resetTokens        map[string]string
	failWith           error
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{
		verificationTokens: make(map[string]string),
		resetTokens:        make(map[string]string),
	}
}

func (m *fakeMailer) SendVerificationEmail(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.verificationTokens[to] = token
	return nil
}

func (m *fakeMailer) SendResetPasswordEmail(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.resetTokens[to] = token
	return nil
}

func (m *fakeMailer) resetTokenFor(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetTokens[email]
}

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer("test-secret", 15*time.Minute, 7*24*time.Hour, 24*time.Hour, time.Hour)
	require.NoError(t, err)
	return issuer
}

func newTestCache(t *testing.T) *IdentityCache {
	t.Helper()
	cache, err := NewIdentityCache(5 * time.Minute)
	require.NoError(t, err)
	t.Cleanup(cache.Close)
	return cache
}
