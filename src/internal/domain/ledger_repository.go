package domain

import "context"

type LedgerRepository interface {
	// Append assigns the next entry id and running balance for entry.AccountID.
	Append(ctx context.Context, entry LedgerEntry) (LedgerEntry, error)
	Last(ctx context.Context, accountID string) (LedgerEntry, bool, error)
	List(ctx context.Context, accountID string, afterEntryID int64, limit int) ([]LedgerEntry, error)
	BalanceAsOf(ctx context.Context, accountID string, entryID int64) (int64, error)
}
