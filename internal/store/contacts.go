package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corvomail/corvo/internal/models"
)

// ErrContactNotFound is returned when a contact cannot be found.
var ErrContactNotFound = errors.New("contact not found")

// CreateContact adds an address-book entry for the owner.
func CreateContact(ctx context.Context, pool *pgxpool.Pool, ownerID, name, email, remark string) (string, error) {
	var id string
	err := pool.QueryRow(ctx, `
		INSERT INTO contacts (owner_id, name, email, remark)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, ownerID, name, email, remark).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to create contact: %w", err)
	}

	return id, nil
}

// GetContact returns one contact by id, scoped to the owner.
func GetContact(ctx context.Context, pool *pgxpool.Pool, ownerID, id string) (*models.Contact, error) {
	var contact models.Contact
	err := pool.QueryRow(ctx, `
		SELECT id, owner_id, name, email, remark, created_at
		FROM contacts
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID).Scan(&contact.ID, &contact.OwnerID, &contact.Name, &contact.Email, &contact.Remark, &contact.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return &contact, nil
}

// ListContacts returns the owner's address book ordered by name.
func ListContacts(ctx context.Context, pool *pgxpool.Pool, ownerID string) ([]models.Contact, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, owner_id, name, email, remark, created_at
		FROM contacts
		WHERE owner_id = $1
		ORDER BY name, email
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		var contact models.Contact
		if err := rows.Scan(&contact.ID, &contact.OwnerID, &contact.Name, &contact.Email, &contact.Remark, &contact.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read contacts: %w", err)
	}

	return contacts, nil
}

// UpdateContact rewrites a contact's fields.
func UpdateContact(ctx context.Context, pool *pgxpool.Pool, ownerID, id, name, email, remark string) error {
	tag, err := pool.Exec(ctx, `
		UPDATE contacts
		SET name = $3, email = $4, remark = $5
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID, name, email, remark)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrContactNotFound
	}
	return nil
}

// DeleteContact removes a contact.
func DeleteContact(ctx context.Context, pool *pgxpool.Pool, ownerID, id string) error {
	tag, err := pool.Exec(ctx, `
		DELETE FROM contacts
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrContactNotFound
	}
	return nil
}
