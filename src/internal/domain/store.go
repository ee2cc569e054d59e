package domain

import "context"

type UnitOfWork interface {
	Accounts() AccountRepository
	Transactions() TransactionRepository
	Ledger() LedgerRepository
	Config() ConfigRepository
}

// Store hands out units of work. Every write made through the UnitOfWork given
// to WithinTx commits together or not at all.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
	// ReadSnapshot runs fn against a consistent read-only view. Writes fail.
	ReadSnapshot(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

// Locker provides mutual exclusion over named keys with a bounded wait.
// Acquire returns ErrResourceBusy when the keys cannot be taken in time.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (unlock func(), err error)
}

type SettlementNotifier interface {
	Released(ctx context.Context, account EscrowAccount, tx EscrowTransaction) error
}
