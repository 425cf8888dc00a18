package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corvomail/corvo/internal/provider"
	"github.com/corvomail/corvo/internal/testutil"
)

func TestBindAndActivateAccount(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	encryptor := testutil.GetTestEncryptor(t)

	id, err := BindAccount(ctx, pool, "owner-1", "user@qq.com", "auth-code", provider.QQ, encryptor)
	if err != nil {
		t.Fatalf("BindAccount failed: %v", err)
	}
	assert.NotEmpty(t, id)

	// Only ciphertext may be stored.
	var stored string
	err = pool.QueryRow(ctx, `SELECT encrypted_password FROM email_accounts WHERE id = $1`, id).Scan(&stored)
	if err != nil {
		t.Fatalf("Failed to read stored row: %v", err)
	}
	assert.NotEqual(t, "auth-code", stored)

	account, err := ActivateAccount(ctx, pool, "owner-1", "user@qq.com", encryptor)
	if err != nil {
		t.Fatalf("ActivateAccount failed: %v", err)
	}
	assert.Equal(t, "user@qq.com", account.Email)
	assert.Equal(t, "auth-code", account.Password)
	assert.Equal(t, provider.QQ, account.Provider)
	assert.Equal(t, "imap.qq.com", account.IMAP.Host)
}

func TestBindAccountRebindUpdatesCredential(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	encryptor := testutil.GetTestEncryptor(t)

	first, err := BindAccount(ctx, pool, "owner-1", "user@163.com", "old-code", provider.NetEase, encryptor)
	if err != nil {
		t.Fatalf("BindAccount failed: %v", err)
	}
	second, err := BindAccount(ctx, pool, "owner-1", "user@163.com", "new-code", provider.NetEase, encryptor)
	if err != nil {
		t.Fatalf("Rebind failed: %v", err)
	}
	assert.Equal(t, first, second)

	account, err := ActivateAccount(ctx, pool, "owner-1", "user@163.com", encryptor)
	if err != nil {
		t.Fatalf("ActivateAccount failed: %v", err)
	}
	assert.Equal(t, "new-code", account.Password)
}

func TestBindAccountRejectsUnknownProvider(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	encryptor := testutil.GetTestEncryptor(t)
	_, err := BindAccount(context.Background(), pool, "owner-1", "user@gmail.com", "code", provider.Provider("gmail"), encryptor)
	if !errors.Is(err, provider.ErrUnknownProvider) {
		t.Errorf("Expected ErrUnknownProvider, got %v", err)
	}
}

func TestGetBoundAccountsAndUnbind(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	encryptor := testutil.GetTestEncryptor(t)

	if _, err := BindAccount(ctx, pool, "owner-1", "a@qq.com", "code-a", provider.QQ, encryptor); err != nil {
		t.Fatalf("BindAccount failed: %v", err)
	}
	if _, err := BindAccount(ctx, pool, "owner-1", "b@163.com", "code-b", provider.NetEase, encryptor); err != nil {
		t.Fatalf("BindAccount failed: %v", err)
	}
	if _, err := BindAccount(ctx, pool, "owner-2", "c@qq.com", "code-c", provider.QQ, encryptor); err != nil {
		t.Fatalf("BindAccount failed: %v", err)
	}

	accounts, err := GetBoundAccounts(ctx, pool, "owner-1")
	if err != nil {
		t.Fatalf("GetBoundAccounts failed: %v", err)
	}
	assert.Len(t, accounts, 2)

	if err := UnbindAccount(ctx, pool, "owner-1", "a@qq.com"); err != nil {
		t.Fatalf("UnbindAccount failed: %v", err)
	}

	accounts, err = GetBoundAccounts(ctx, pool, "owner-1")
	if err != nil {
		t.Fatalf("GetBoundAccounts failed: %v", err)
	}
	assert.Len(t, accounts, 1)
	assert.Equal(t, "b@163.com", accounts[0].Email)

	err = UnbindAccount(ctx, pool, "owner-1", "a@qq.com")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got %v", err)
	}
}

func TestActivateAccountNotFound(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	encryptor := testutil.GetTestEncryptor(t)
	_, err := ActivateAccount(context.Background(), pool, "owner-1", "nobody@qq.com", encryptor)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got %v", err)
	}
}
