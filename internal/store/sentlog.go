package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corvomail/corvo/internal/models"
)

// ErrSentLogNotFound is returned when a send-log entry cannot be found.
var ErrSentLogNotFound = errors.New("send log entry not found")

// RecordSent appends a local record of a delivered message.
func RecordSent(ctx context.Context, pool *pgxpool.Pool, ownerID, to, subject string, sentAt time.Time) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO sent_log (owner_id, to_address, subject, sent_at)
		VALUES ($1, $2, $3, $4)
	`, ownerID, to, subject, sentAt)
	if err != nil {
		return fmt.Errorf("failed to record sent message: %w", err)
	}
	return nil
}

// ListSentLog returns the owner's send log, newest first.
func ListSentLog(ctx context.Context, pool *pgxpool.Pool, ownerID string) ([]models.SentLog, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, owner_id, to_address, subject, sent_at
		FROM sent_log
		WHERE owner_id = $1
		ORDER BY sent_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list send log: %w", err)
	}
	defer rows.Close()

	var entries []models.SentLog
	for rows.Next() {
		var entry models.SentLog
		if err := rows.Scan(&entry.ID, &entry.OwnerID, &entry.To, &entry.Subject, &entry.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan send log entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read send log: %w", err)
	}

	return entries, nil
}

// DeleteSentLog removes one send-log entry.
func DeleteSentLog(ctx context.Context, pool *pgxpool.Pool, ownerID, id string) error {
	tag, err := pool.Exec(ctx, `
		DELETE FROM sent_log
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete send log entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSentLogNotFound
	}
	return nil
}

// SentRecorder adapts the send log to the mailbox service's recorder
// hook for one owner.
type SentRecorder struct {
	pool    *pgxpool.Pool
	ownerID string
}

func NewSentRecorder(pool *pgxpool.Pool, ownerID string) *SentRecorder {
	return &SentRecorder{pool: pool, ownerID: ownerID}
}

func (r *SentRecorder) RecordSent(ctx context.Context, to, subject string, sentAt time.Time) error {
	return RecordSent(ctx, r.pool, r.ownerID, to, subject, sentAt)
}
