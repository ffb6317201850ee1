package contact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("contact not found")

type Contact struct {
	ID             string     `json:"id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	Birthday       *time.Time `json:"birthday,omitempty"`
	AdditionalInfo *string    `json:"additional_info,omitempty"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, contact Contact) (Contact, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Contact{}, fmt.Errorf("generate contact id: %w", err)
	}
	contact.ID = id.String()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO contacts (id, first_name, last_name, email, phone, birthday, additional_info)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, contact.ID, contact.FirstName, contact.LastName, contact.Email,
		contact.Phone, contact.Birthday, contact.AdditionalInfo)
	if err != nil {
		return Contact{}, fmt.Errorf("insert contact: %w", err)
	}

	return contact, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Contact, error) {
	var contact Contact
	var birthday sql.NullTime
	var additionalInfo sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, phone, birthday, additional_info
		FROM contacts
		WHERE id = $1
	`, id).Scan(&contact.ID, &contact.FirstName, &contact.LastName,
		&contact.Email, &contact.Phone, &birthday, &additionalInfo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, fmt.Errorf("query contact: %w", err)
	}

	if birthday.Valid {
		value := birthday.Time
		contact.Birthday = &value
	}
	if additionalInfo.Valid {
		contact.AdditionalInfo = &additionalInfo.String
	}

	return contact, nil
}

func (r *Repository) Update(ctx context.Context, contact Contact) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE contacts
		SET first_name = $2, last_name = $3, email = $4, phone = $5,
		    birthday = $6, additional_info = $7
		WHERE id = $1
	`, contact.ID, contact.FirstName, contact.LastName, contact.Email,
		contact.Phone, contact.Birthday, contact.AdditionalInfo)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update contact rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete contact rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
