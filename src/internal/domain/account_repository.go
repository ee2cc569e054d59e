package domain

import "context"

type AccountRepository interface {
	Create(ctx context.Context, account EscrowAccount) (EscrowAccount, error)
	Get(ctx context.Context, id string) (EscrowAccount, error)
	GetForUpdate(ctx context.Context, id string) (EscrowAccount, error)
	GetByOwner(ctx context.Context, userID string, provider Provider, currency string) (EscrowAccount, error)
	// Update writes the row when its stored Version still equals the given one
	// and returns it with Version incremented. A stale version is ErrResourceBusy.
	Update(ctx context.Context, account EscrowAccount) (EscrowAccount, error)
}
