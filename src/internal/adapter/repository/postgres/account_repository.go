package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
)

const accountColumns = `
	id,
	user_id,
	provider,
	currency,
	status,
	current_balance,
	pending_release_total,
	wallet_account_id,
	wallet_balance,
	last_reconciled_at,
	version,
	created_at,
	updated_at`

type AccountRepository struct {
	tx       *sql.Tx
	readOnly bool
}

func (r *AccountRepository) Create(ctx context.Context, account domain.EscrowAccount) (domain.EscrowAccount, error) {
	logger.Info("account repository create", logger.Fields{
		"accountId": account.ID,
		"userId":    account.UserID,
		"provider":  account.Provider,
		"currency":  account.Currency,
	})

	const query = `
INSERT INTO escrow_accounts (
	id,
	user_id,
	provider,
	currency,
	status,
	current_balance,
	pending_release_total,
	wallet_account_id,
	wallet_balance,
	version,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	if account.Version == 0 {
		account.Version = 1
	}
	if _, err := r.tx.ExecContext(
		ctx,
		query,
		account.ID,
		account.UserID,
		account.Provider,
		account.Currency,
		account.Status,
		account.CurrentBalance,
		account.PendingReleaseTotal,
		account.WalletAccountID,
		account.WalletBalance,
		account.Version,
		account.CreatedAt,
		account.UpdatedAt,
	); err != nil {
		logger.Error("account repository create failed", err, logger.Fields{"accountId": account.ID})
		return domain.EscrowAccount{}, mapError("create account", err)
	}

	return account, nil
}

func (r *AccountRepository) Get(ctx context.Context, id string) (domain.EscrowAccount, error) {
	query := `SELECT` + accountColumns + `
FROM escrow_accounts
WHERE id = $1`

	return r.getOne(ctx, "get account", query, id)
}

func (r *AccountRepository) GetForUpdate(ctx context.Context, id string) (domain.EscrowAccount, error) {
	if r.readOnly {
		return r.Get(ctx, id)
	}

	query := `SELECT` + accountColumns + `
FROM escrow_accounts
WHERE id = $1
FOR UPDATE`

	return r.getOne(ctx, "lock account", query, id)
}

func (r *AccountRepository) GetByOwner(ctx context.Context, userID string, provider domain.Provider, currency string) (domain.EscrowAccount, error) {
	query := `SELECT` + accountColumns + `
FROM escrow_accounts
WHERE user_id = $1
  AND provider = $2
  AND currency = $3`

	return r.getOne(ctx, "get account by owner", query, userID, provider, currency)
}

func (r *AccountRepository) Update(ctx context.Context, account domain.EscrowAccount) (domain.EscrowAccount, error) {
	const query = `
UPDATE escrow_accounts
SET status = $3,
    current_balance = $4,
    pending_release_total = $5,
    wallet_balance = $6,
    last_reconciled_at = $7,
    updated_at = $8,
    version = version + 1
WHERE id = $1
  AND version = $2
RETURNING version`

	var version int64
	err := r.tx.QueryRowContext(
		ctx,
		query,
		account.ID,
		account.Version,
		account.Status,
		account.CurrentBalance,
		account.PendingReleaseTotal,
		account.WalletBalance,
		toNullTime(account.LastReconciledAt),
		account.UpdatedAt,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EscrowAccount{}, fmt.Errorf("%w: account %s is not at version %d", domain.ErrResourceBusy, account.ID, account.Version)
	}
	if err != nil {
		logger.Error("account repository update failed", err, logger.Fields{"accountId": account.ID})
		return domain.EscrowAccount{}, mapError("update account", err)
	}

	account.Version = version
	return account, nil
}

func (r *AccountRepository) getOne(ctx context.Context, op string, query string, args ...any) (domain.EscrowAccount, error) {
	account, err := scanAccount(r.tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Error("account repository "+op+" failed", err, nil)
		}
		return domain.EscrowAccount{}, mapError(op, err)
	}
	return account, nil
}

func scanAccount(row rowScanner) (domain.EscrowAccount, error) {
	var (
		account      domain.EscrowAccount
		reconciledAt sql.NullTime
	)
	if err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.Provider,
		&account.Currency,
		&account.Status,
		&account.CurrentBalance,
		&account.PendingReleaseTotal,
		&account.WalletAccountID,
		&account.WalletBalance,
		&reconciledAt,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return domain.EscrowAccount{}, err
	}

	account.LastReconciledAt = timePtr(reconciledAt)
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	return account, nil
}
