package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corvomail/corvo/internal/crypto"
	"github.com/corvomail/corvo/internal/models"
	"github.com/corvomail/corvo/internal/provider"
)

// ErrAccountNotFound is returned when no bound account matches.
var ErrAccountNotFound = errors.New("bound account not found")

// BindAccount stores an external mailbox binding for the owner. Only
// the ciphertext of the authorization code is persisted. Rebinding an
// existing address updates the stored code and provider.
func BindAccount(ctx context.Context, pool *pgxpool.Pool, ownerID, email, password string, p provider.Provider, encryptor *crypto.Encryptor) (string, error) {
	if !provider.Known(p) {
		return "", fmt.Errorf("%w: %q", provider.ErrUnknownProvider, p)
	}

	encrypted, err := encryptor.EncryptToString(password)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt authorization code: %w", err)
	}

	var id string
	err = pool.QueryRow(ctx, `
		INSERT INTO email_accounts (owner_id, email, encrypted_password, provider)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id, email) DO UPDATE SET
			encrypted_password = EXCLUDED.encrypted_password,
			provider = EXCLUDED.provider,
			active = TRUE
		RETURNING id
	`, ownerID, email, encrypted, string(p)).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to bind account: %w", err)
	}

	return id, nil
}

// GetBoundAccounts lists every mailbox bound by the owner.
func GetBoundAccounts(ctx context.Context, pool *pgxpool.Pool, ownerID string) ([]models.BoundAccount, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, owner_id, email, provider, active, created_at
		FROM email_accounts
		WHERE owner_id = $1
		ORDER BY created_at
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bound accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.BoundAccount
	for rows.Next() {
		var account models.BoundAccount
		if err := rows.Scan(&account.ID, &account.OwnerID, &account.Email, &account.Provider, &account.Active, &account.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bound account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bound accounts: %w", err)
	}

	return accounts, nil
}

// UnbindAccount removes a mailbox binding.
func UnbindAccount(ctx context.Context, pool *pgxpool.Pool, ownerID, email string) error {
	tag, err := pool.Exec(ctx, `
		DELETE FROM email_accounts
		WHERE owner_id = $1 AND email = $2
	`, ownerID, email)
	if err != nil {
		return fmt.Errorf("failed to unbind account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", ErrAccountNotFound, email)
	}
	return nil
}

// ActivateAccount loads a bound account and decrypts its authorization
// code into a runtime account. The plaintext lives only in the
// returned value.
func ActivateAccount(ctx context.Context, pool *pgxpool.Pool, ownerID, email string, encryptor *crypto.Encryptor) (provider.Account, error) {
	var encrypted, providerTag string
	err := pool.QueryRow(ctx, `
		SELECT encrypted_password, provider
		FROM email_accounts
		WHERE owner_id = $1 AND email = $2 AND active
	`, ownerID, email).Scan(&encrypted, &providerTag)

	if errors.Is(err, pgx.ErrNoRows) {
		return provider.Account{}, fmt.Errorf("%w: %q", ErrAccountNotFound, email)
	}
	if err != nil {
		return provider.Account{}, fmt.Errorf("failed to load bound account: %w", err)
	}

	password, err := encryptor.DecryptFromString(encrypted)
	if err != nil {
		return provider.Account{}, fmt.Errorf("failed to decrypt authorization code: %w", err)
	}

	return provider.NewAccount(email, password, provider.Provider(providerTag))
}
