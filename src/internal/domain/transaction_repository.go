package domain

import (
	"context"
	"time"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx EscrowTransaction) (EscrowTransaction, error)
	Get(ctx context.Context, id string) (EscrowTransaction, error)
	GetForUpdate(ctx context.Context, id string) (EscrowTransaction, error)
	GetByReference(ctx context.Context, accountID string, reference string) (EscrowTransaction, error)
	// Update writes the row when its stored Version still equals the given one
	// and returns it with Version incremented. A stale version is ErrResourceBusy.
	Update(ctx context.Context, tx EscrowTransaction) (EscrowTransaction, error)
	ListByAccount(ctx context.Context, accountID string, state *TransactionState) ([]EscrowTransaction, error)
	// ListDue returns scheduled transactions whose release time is at or before now,
	// oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]EscrowTransaction, error)
}
