package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Mailer delivers account emails. Fire-and-forget from the service's
// perspective: a delivery failure never rolls back a committed mutation.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, token string) error
	SendResetPasswordEmail(ctx context.Context, to, token string) error
}

type Service struct {
	store  Store
	issuer *TokenIssuer
	cache  SnapshotCache
	mailer Mailer
	now    func() time.Time
}

func NewService(store Store, issuer *TokenIssuer, cache SnapshotCache, mailer Mailer) *Service {
	return &Service{
		store:  store,
		issuer: issuer,
		cache:  cache,
		mailer: mailer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// Register creates an unverified account and emails its verification token.
// On a dispatch failure the account stays committed and the error is
// returned alongside the created user.
func (s *Service) Register(ctx context.Context, username, email, password string) (User, error) {
	email = normalizeEmail(email)
	username = strings.TrimSpace(username)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	verificationToken, err := s.issuer.IssueVerificationToken(email)
	if err != nil {
		return User{}, err
	}

	user, err := s.store.Create(ctx, User{
		Username:          username,
		Email:             email,
		PasswordHash:      string(hash),
		Role:              RoleUser,
		IsActive:          true,
		IsVerified:        false,
		VerificationToken: &verificationToken,
	})
	if err != nil {
		return User{}, err
	}

	if err := s.mailer.SendVerificationEmail(ctx, email, verificationToken); err != nil {
		return user, fmt.Errorf("%w: %v", ErrDispatchFailure, err)
	}

	return user, nil
}

// VerifyEmail consumes a verification token. The token is single-use: a
// second attempt finds no matching row and is rejected as already verified.
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) error {
	claims, err := s.issuer.Parse(rawToken, tokenTypeVerify)
	if err != nil {
		return ErrInvalidCredential
	}

	user, err := s.store.FindByVerificationToken(ctx, rawToken)
	if err != nil {
		if !errors.Is(err, ErrUnknownIdentity) {
			return err
		}
		owner, lookupErr := s.store.FindByEmail(ctx, claims.Subject)
		if lookupErr == nil && owner.IsVerified {
			return ErrAlreadyVerified
		}
		if lookupErr != nil && !errors.Is(lookupErr, ErrUnknownIdentity) {
			return lookupErr
		}
		return ErrInvalidCredential
	}

	if user.IsVerified {
		return ErrAlreadyVerified
	}

	if err := s.store.MarkVerified(ctx, user.ID); err != nil {
		return err
	}
	s.cache.Del(user.Email)
	return nil
}

// Login authenticates email+password and issues an access/refresh pair.
func (s *Service) Login(ctx context.Context, email, password string) (Tokens, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Tokens{}, ErrInvalidCredential
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUnknownIdentity) {
			return Tokens{}, ErrInvalidCredential
		}
		return Tokens{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Tokens{}, ErrInvalidCredential
	}

	return s.issueTokens(ctx, user)
}

func (s *Service) issueTokens(ctx context.Context, user User) (Tokens, error) {
	access, expiresIn, err := s.issuer.IssueAccessToken(user.Email)
	if err != nil {
		return Tokens{}, err
	}

	refresh, refreshExpiry, err := s.issuer.IssueRefreshToken(user.Email)
	if err != nil {
		return Tokens{}, err
	}
	if err := s.store.CreateRefreshToken(ctx, user.ID, refresh, refreshExpiry); err != nil {
		return Tokens{}, err
	}

	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
	}, nil
}

// Refresh exchanges a refresh token for a new pair, rotating the persisted
// record. A revoked or expired record never yields new tokens.
func (s *Service) Refresh(ctx context.Context, rawToken string) (Tokens, error) {
	rawToken = strings.TrimSpace(rawToken)
	claims, err := s.issuer.Parse(rawToken, tokenTypeRefresh)
	if err != nil {
		return Tokens{}, ErrInvalidCredential
	}

	newRefresh, newExpiry, err := s.issuer.IssueRefreshToken(claims.Subject)
	if err != nil {
		return Tokens{}, err
	}

	if _, err := s.store.RotateRefreshToken(ctx, rawToken, newRefresh, newExpiry); err != nil {
		return Tokens{}, err
	}

	access, expiresIn, err := s.issuer.IssueAccessToken(claims.Subject)
	if err != nil {
		return Tokens{}, err
	}

	return Tokens{
		AccessToken:  access,
		RefreshToken: newRefresh,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
	}, nil
}

// Logout revokes the presented refresh token. Revoking twice is a no-op.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return ErrInvalidCredential
	}
	return s.store.RevokeRefreshToken(ctx, rawToken)
}

// RequestPasswordReset emails a reset token when the account exists. An
// unknown email is not an error at this boundary, to avoid enumeration.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUnknownIdentity) {
			return nil
		}
		return err
	}

	resetToken, err := s.issuer.IssueResetToken(user.Email)
	if err != nil {
		return err
	}

	if err := s.mailer.SendResetPasswordEmail(ctx, user.Email, resetToken); err != nil {
		return fmt.Errorf("%w: %v", ErrDispatchFailure, err)
	}
	return nil
}

// ResetPassword is the revocation trigger: it stamps last_password_reset and
// evicts the cached identity before returning, so any resolution that starts
// after this call observes the staleness rule, not a stale cache hit.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	claims, err := s.issuer.Parse(rawToken, tokenTypeReset)
	if err != nil {
		return ErrInvalidCredential
	}

	user, err := s.store.FindByEmail(ctx, claims.Subject)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	// Whole-second precision keeps the iat comparison consistent: a token
	// minted in the same second as the reset is still accepted.
	resetAt := s.now().Truncate(time.Second)
	if err := s.store.UpdatePassword(ctx, user.ID, string(hash), resetAt); err != nil {
		return err
	}

	s.cache.Del(user.Email)
	return nil
}

// ChangeRole assigns a new role and drops the cached snapshot so the change
// is visible on the next resolution.
func (s *Service) ChangeRole(ctx context.Context, email string, role Role) error {
	email = normalizeEmail(email)

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := s.store.UpdateRole(ctx, user.ID, role); err != nil {
		return err
	}

	s.cache.Del(user.Email)
	return nil
}

// SetAvatar persists an uploaded avatar URL and evicts the snapshot.
func (s *Service) SetAvatar(ctx context.Context, userID, email, avatarURL string) (Snapshot, error) {
	if err := s.store.UpdateAvatar(ctx, userID, avatarURL); err != nil {
		return Snapshot{}, err
	}
	s.cache.Del(email)

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotOf(user), nil
}
