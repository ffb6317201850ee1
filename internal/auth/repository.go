package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract of the credential store. The service and
// resolver only ever see this interface.
type Store interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByVerificationToken(ctx context.Context, token string) (User, error)
	Create(ctx context.Context, user User) (User, error)
	MarkVerified(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string, resetAt time.Time) error
	UpdateAvatar(ctx context.Context, userID, avatarURL string) error
	UpdateRole(ctx context.Context, userID string, role Role) error

	CreateRefreshToken(ctx context.Context, userID, rawToken string, expiresAt time.Time) error
	RotateRefreshToken(ctx context.Context, rawOldToken, rawNewToken string, newExpiresAt time.Time) (string, error)
	RevokeRefreshToken(ctx context.Context, rawToken string) error
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `
	id, username, email, password_hash, role, is_active, is_verified,
	verification_token, last_password_reset, avatar_url, created_at, updated_at
`

func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email)
	return scanUser(row, "query user by email")
}

func (r *Repository) FindByVerificationToken(ctx context.Context, token string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE verification_token = $1
	`, token)
	return scanUser(row, "query user by verification token")
}

func scanUser(row *sql.Row, action string) (User, error) {
	var user User
	var role string
	var verificationToken sql.NullString
	var lastReset sql.NullTime
	var avatarURL sql.NullString

	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &role,
		&user.IsActive, &user.IsVerified, &verificationToken, &lastReset,
		&avatarURL, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUnknownIdentity
		}
		return User{}, fmt.Errorf("%s: %w", action, err)
	}

	user.Role = Role(role)
	if verificationToken.Valid {
		user.VerificationToken = &verificationToken.String
	}
	if lastReset.Valid {
		value := lastReset.Time.UTC()
		user.LastPasswordReset = &value
	}
	if avatarURL.Valid {
		user.AvatarURL = &avatarURL.String
	}

	return user, nil
}

func (r *Repository) Create(ctx context.Context, user User) (User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	now := time.Now().UTC()
	user.ID = id.String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, username, email, password_hash, role, is_active, is_verified,
			verification_token, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, user.ID, user.Username, user.Email, user.PasswordHash, string(user.Role),
		user.IsActive, user.IsVerified, user.VerificationToken, now)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrConflict
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

// isUniqueViolation matches the Postgres unique_violation SQLSTATE without
// depending on driver error types.
func isUniqueViolation(err error) bool {
	type sqlState interface{ SQLState() string }
	var coded sqlState
	if errors.As(err, &coded) {
		return coded.SQLState() == "23505"
	}
	return false
}

func (r *Repository) MarkVerified(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET is_verified = TRUE, verification_token = NULL, updated_at = $2
		WHERE id = $1
	`, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark user verified: %w", err)
	}
	return nil
}

func (r *Repository) UpdatePassword(ctx context.Context, userID, passwordHash string, resetAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2, last_password_reset = $3, updated_at = $3
		WHERE id = $1
	`, userID, passwordHash, resetAt.UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (r *Repository) UpdateAvatar(ctx context.Context, userID, avatarURL string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET avatar_url = $2, updated_at = $3
		WHERE id = $1
	`, userID, avatarURL, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	return nil
}

func (r *Repository) UpdateRole(ctx context.Context, userID string, role Role) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET role = $2, updated_at = $3
		WHERE id = $1
	`, userID, string(role), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return nil
}

// EnsureAdmin upserts a verified administrator account at startup when
// bootstrap credentials are configured. Existing accounts are left alone.
func (r *Repository) EnsureAdmin(ctx context.Context, email, passwordHash string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate admin id: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, username, email, password_hash, role, is_active, is_verified,
			created_at, updated_at
		)
		VALUES ($1, 'admin', $2, $3, 'admin', TRUE, TRUE, $4, $4)
		ON CONFLICT (email)
		DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			role = 'admin',
			is_verified = TRUE,
			updated_at = EXCLUDED.updated_at
	`, id.String(), email, passwordHash, now)
	if err != nil {
		return fmt.Errorf("upsert admin user: %w", err)
	}
	return nil
}

func hashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

func (r *Repository) CreateRefreshToken(ctx context.Context, userID, rawToken string, expiresAt time.Time) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate refresh token id: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
	`, id.String(), userID, hashToken(rawToken), expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// RotateRefreshToken revokes the presented token and records its successor
// in one transaction. A revoked or expired record never rotates.
func (r *Repository) RotateRefreshToken(ctx context.Context, rawOldToken, rawNewToken string, newExpiresAt time.Time) (string, error) {
	newID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate rotated token id: %w", err)
	}

	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin refresh rotation tx: %w", err)
	}
	defer tx.Rollback()

	var oldID, userID string
	var expiresAt time.Time
	var revokedAt sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT id, user_id, expires_at, revoked_at
		FROM refresh_tokens
		WHERE token_hash = $1
		FOR UPDATE
	`, hashToken(rawOldToken)).Scan(&oldID, &userID, &expiresAt, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInvalidCredential
		}
		return "", fmt.Errorf("read refresh token: %w", err)
	}

	if revokedAt.Valid || now.After(expiresAt.UTC()) {
		return "", ErrInvalidCredential
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
	`, newID.String(), userID, hashToken(rawNewToken), newExpiresAt.UTC())
	if err != nil {
		return "", fmt.Errorf("insert rotated refresh token: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = $2, replaced_by = $3
		WHERE id = $1
	`, oldID, now, newID.String())
	if err != nil {
		return "", fmt.Errorf("revoke rotated refresh token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit refresh rotation tx: %w", err)
	}

	return userID, nil
}

func (r *Repository) RevokeRefreshToken(ctx context.Context, rawToken string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = COALESCE(revoked_at, $2)
		WHERE token_hash = $1
	`, hashToken(rawToken), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// CleanupExpiredRefreshTokens deletes expired and long-revoked rows in
// batches. Called from the maintenance endpoint.
func (r *Repository) CleanupExpiredRefreshTokens(ctx context.Context, retention time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if retention <= 0 {
		retention = 14 * 24 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-retention)

	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM refresh_tokens
			WHERE expires_at < NOW() OR (revoked_at IS NOT NULL AND revoked_at < $1)
			ORDER BY created_at ASC
			LIMIT $2
		)
		DELETE FROM refresh_tokens t
		USING stale
		WHERE t.id = stale.id
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale refresh tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale refresh tokens rows affected: %w", err)
	}
	return affected, nil
}
