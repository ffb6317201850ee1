package auth

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleUser, RoleAdmin:
		return Role(value), true
	}
	return "", false
}

// User is the durable account record owned by the credential store.
type User struct {
	ID                string
	Username          string
	Email             string
	PasswordHash      string
	Role              Role
	IsActive          bool
	IsVerified        bool
	VerificationToken *string
	LastPasswordReset *time.Time
	AvatarURL         *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Snapshot is the denormalized identity projection served from the cache.
// It is disposable: the store can always regenerate it.
type Snapshot struct {
	ID                string     `json:"id"`
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	Role              Role       `json:"role"`
	IsActive          bool       `json:"is_active"`
	IsVerified        bool       `json:"is_verified"`
	AvatarURL         *string    `json:"avatar_url,omitempty"`
	LastPasswordReset *time.Time `json:"last_password_reset,omitempty"`
}

func snapshotOf(user User) Snapshot {
	return Snapshot{
		ID:                user.ID,
		Username:          user.Username,
		Email:             user.Email,
		Role:              user.Role,
		IsActive:          user.IsActive,
		IsVerified:        user.IsVerified,
		AvatarURL:         user.AvatarURL,
		LastPasswordReset: user.LastPasswordReset,
	}
}

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RefreshTokenRecord is the persisted side of a refresh token. Only the
// sha256 hash of the signed token ever reaches the database.
type RefreshTokenRecord struct {
	ID         string
	UserID     string
	TokenHash  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
}
