package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corvomail/corvo/internal/models"
)

// ErrDraftNotFound is returned when a draft cannot be found.
var ErrDraftNotFound = errors.New("draft not found")

// SaveDraft stores a new unsent message and returns its id.
func SaveDraft(ctx context.Context, pool *pgxpool.Pool, ownerID, to, subject, body string) (string, error) {
	var id string
	err := pool.QueryRow(ctx, `
		INSERT INTO drafts (owner_id, to_address, subject, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, ownerID, to, subject, body).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to save draft: %w", err)
	}

	return id, nil
}

// UpdateDraft rewrites an existing draft.
func UpdateDraft(ctx context.Context, pool *pgxpool.Pool, ownerID, id, to, subject, body string) error {
	tag, err := pool.Exec(ctx, `
		UPDATE drafts
		SET to_address = $3, subject = $4, body = $5, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID, to, subject, body)
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDraftNotFound
	}
	return nil
}

// GetDraft returns one draft by id, scoped to the owner.
func GetDraft(ctx context.Context, pool *pgxpool.Pool, ownerID, id string) (*models.Draft, error) {
	var draft models.Draft
	err := pool.QueryRow(ctx, `
		SELECT id, owner_id, to_address, subject, body, updated_at
		FROM drafts
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID).Scan(&draft.ID, &draft.OwnerID, &draft.To, &draft.Subject, &draft.Body, &draft.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}

	return &draft, nil
}

// ListDrafts returns the owner's drafts, newest first.
func ListDrafts(ctx context.Context, pool *pgxpool.Pool, ownerID string) ([]models.Draft, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, owner_id, to_address, subject, body, updated_at
		FROM drafts
		WHERE owner_id = $1
		ORDER BY updated_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	var drafts []models.Draft
	for rows.Next() {
		var draft models.Draft
		if err := rows.Scan(&draft.ID, &draft.OwnerID, &draft.To, &draft.Subject, &draft.Body, &draft.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		drafts = append(drafts, draft)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read drafts: %w", err)
	}

	return drafts, nil
}

// DeleteDraft removes a draft, typically after it has been sent.
func DeleteDraft(ctx context.Context, pool *pgxpool.Pool, ownerID, id string) error {
	tag, err := pool.Exec(ctx, `
		DELETE FROM drafts
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDraftNotFound
	}
	return nil
}
