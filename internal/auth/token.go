package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	tokenTypeVerify  = "verify"
	tokenTypeReset   = "reset"
)

// TokenIssuer mints all signed tokens. Pure function of clock and secret;
// persistence of refresh tokens happens in the service, not here.
type TokenIssuer struct {
	secret          []byte
	accessTTL       time.Duration
	refreshTTL      time.Duration
	verificationTTL time.Duration
	resetTTL        time.Duration
	now             func() time.Time
}

func NewTokenIssuer(secret string, accessTTL, refreshTTL, verificationTTL, resetTTL time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("token issuer: signing secret is required")
	}
	return &TokenIssuer{
		secret:          []byte(secret),
		accessTTL:       accessTTL,
		refreshTTL:      refreshTTL,
		verificationTTL: verificationTTL,
		resetTTL:        resetTTL,
		now:             func() time.Time { return time.Now().UTC() },
	}, nil
}

type TokenClaims struct {
	Subject   string
	IssuedAt  int64
	ExpiresAt time.Time
	Type      string
}

// IssueAccessToken signs a short-lived bearer token for the given subject.
// The iat claim is load-bearing: the resolver compares it against the
// account's last password reset.
func (t *TokenIssuer) IssueAccessToken(subject string) (string, int64, error) {
	encoded, err := t.sign(subject, tokenTypeAccess, t.accessTTL)
	if err != nil {
		return "", 0, err
	}
	return encoded, int64(t.accessTTL.Seconds()), nil
}

func (t *TokenIssuer) IssueRefreshToken(subject string) (string, time.Time, error) {
	expiresAt := t.now().Add(t.refreshTTL)
	encoded, err := t.sign(subject, tokenTypeRefresh, t.refreshTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return encoded, expiresAt, nil
}

func (t *TokenIssuer) IssueVerificationToken(email string) (string, error) {
	return t.sign(email, tokenTypeVerify, t.verificationTTL)
}

func (t *TokenIssuer) IssueResetToken(email string) (string, error) {
	return t.sign(email, tokenTypeReset, t.resetTTL)
}

func (t *TokenIssuer) sign(subject, tokenType string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"typ": tokenType,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	encoded, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return encoded, nil
}

// Parse verifies signature and expiry and requires the expected typ claim.
// Every failure collapses into ErrInvalidCredential so callers cannot
// distinguish malformed from expired from tampered.
func (t *TokenIssuer) Parse(raw, wantType string) (TokenClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return TokenClaims{}, ErrInvalidCredential
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		return TokenClaims{}, ErrInvalidCredential
	}

	tokenType, _ := claims["typ"].(string)
	if tokenType != wantType {
		return TokenClaims{}, ErrInvalidCredential
	}

	iat, ok := claims["iat"].(float64)
	if !ok || iat <= 0 {
		return TokenClaims{}, ErrInvalidCredential
	}

	exp, _ := claims["exp"].(float64)

	return TokenClaims{
		Subject:   subject,
		IssuedAt:  int64(iat),
		ExpiresAt: time.Unix(int64(exp), 0).UTC(),
		Type:      tokenType,
	}, nil
}
