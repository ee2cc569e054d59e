package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
)

type LedgerRepository struct {
	tx *sql.Tx
}

// Append serialises on the ledger_heads row of the account: the head is
// created on first use and locked for the rest of the unit of work.
func (r *LedgerRepository) Append(ctx context.Context, entry domain.LedgerEntry) (domain.LedgerEntry, error) {
	if entry.Amount <= 0 {
		return domain.LedgerEntry{}, fmt.Errorf("%w: ledger amount must be positive", domain.ErrInvalidInput)
	}

	const ensureHead = `
INSERT INTO ledger_heads (account_id)
VALUES ($1)
ON CONFLICT (account_id) DO NOTHING`
	if _, err := r.tx.ExecContext(ctx, ensureHead, entry.AccountID); err != nil {
		return domain.LedgerEntry{}, mapError("ensure ledger head", err)
	}

	const lockHead = `
SELECT last_entry_id, running_balance
FROM ledger_heads
WHERE account_id = $1
FOR UPDATE`

	var lastID, balance int64
	if err := r.tx.QueryRowContext(ctx, lockHead, entry.AccountID).Scan(&lastID, &balance); err != nil {
		logger.Error("ledger repository lock head failed", err, logger.Fields{"accountId": entry.AccountID})
		return domain.LedgerEntry{}, mapError("lock ledger head", err)
	}

	entry.EntryID = lastID + 1
	entry.RunningBalanceAfter = balance + entry.Signed()
	if entry.RunningBalanceAfter < 0 {
		return domain.LedgerEntry{}, fmt.Errorf("%w: ledger %s would drop to %d", domain.ErrInsufficientBalance, entry.AccountID, entry.RunningBalanceAfter)
	}

	const insertEntry = `
INSERT INTO ledger_entries (
	account_id,
	entry_id,
	entry_type,
	direction,
	amount,
	currency,
	reference,
	related_transaction_id,
	occurred_at,
	running_balance_after
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.tx.ExecContext(
		ctx,
		insertEntry,
		entry.AccountID,
		entry.EntryID,
		entry.EntryType,
		entry.Direction,
		entry.Amount,
		entry.Currency,
		entry.Reference,
		entry.RelatedTransactionID,
		entry.OccurredAt,
		entry.RunningBalanceAfter,
	); err != nil {
		logger.Error("ledger repository append failed", err, logger.Fields{
			"accountId": entry.AccountID,
			"entryId":   entry.EntryID,
		})
		return domain.LedgerEntry{}, mapError("append ledger entry", err)
	}

	const advanceHead = `
UPDATE ledger_heads
SET last_entry_id = $2,
    running_balance = $3
WHERE account_id = $1`
	if _, err := execRequiredRows(ctx, r.tx, advanceHead, entry.AccountID, entry.EntryID, entry.RunningBalanceAfter); err != nil {
		return domain.LedgerEntry{}, mapError("advance ledger head", err)
	}

	return entry, nil
}

func (r *LedgerRepository) Last(ctx context.Context, accountID string) (domain.LedgerEntry, bool, error) {
	const query = `
SELECT account_id, entry_id, entry_type, direction, amount, currency, reference,
       related_transaction_id, occurred_at, running_balance_after
FROM ledger_entries
WHERE account_id = $1
ORDER BY entry_id DESC
LIMIT 1`

	entry, err := scanEntry(r.tx.QueryRowContext(ctx, query, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LedgerEntry{}, false, nil
	}
	if err != nil {
		return domain.LedgerEntry{}, false, mapError("last ledger entry", err)
	}
	return entry, true, nil
}

func (r *LedgerRepository) List(ctx context.Context, accountID string, afterEntryID int64, limit int) ([]domain.LedgerEntry, error) {
	const query = `
SELECT account_id, entry_id, entry_type, direction, amount, currency, reference,
       related_transaction_id, occurred_at, running_balance_after
FROM ledger_entries
WHERE account_id = $1
  AND entry_id > $2
ORDER BY entry_id
LIMIT NULLIF($3::bigint, 0)`

	rows, err := r.tx.QueryContext(ctx, query, accountID, afterEntryID, limit)
	if err != nil {
		logger.Error("ledger repository list failed", err, logger.Fields{"accountId": accountID})
		return nil, mapError("list ledger entries", err)
	}
	defer rows.Close()

	out := make([]domain.LedgerEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, mapError("list ledger entries", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list ledger entries", err)
	}
	return out, nil
}

func (r *LedgerRepository) BalanceAsOf(ctx context.Context, accountID string, entryID int64) (int64, error) {
	if entryID <= 0 {
		return 0, nil
	}

	const query = `
SELECT running_balance_after
FROM ledger_entries
WHERE account_id = $1
  AND entry_id = $2`

	var balance int64
	if err := r.tx.QueryRowContext(ctx, query, accountID, entryID).Scan(&balance); err != nil {
		return 0, mapError("ledger balance as of", err)
	}
	return balance, nil
}

func scanEntry(row rowScanner) (domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	if err := row.Scan(
		&entry.AccountID,
		&entry.EntryID,
		&entry.EntryType,
		&entry.Direction,
		&entry.Amount,
		&entry.Currency,
		&entry.Reference,
		&entry.RelatedTransactionID,
		&entry.OccurredAt,
		&entry.RunningBalanceAfter,
	); err != nil {
		return domain.LedgerEntry{}, err
	}
	entry.OccurredAt = entry.OccurredAt.UTC()
	return entry, nil
}
