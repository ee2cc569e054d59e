package memory

import (
	"context"
	"fmt"

	"github.com/api-sage/escrow-engine/src/internal/domain"
)

type accountRepository struct {
	u *unitOfWork
}

func (r accountRepository) Create(_ context.Context, account domain.EscrowAccount) (domain.EscrowAccount, error) {
	if err := r.u.writable(); err != nil {
		return domain.EscrowAccount{}, err
	}
	if _, staged := r.u.accounts[account.ID]; staged {
		return domain.EscrowAccount{}, fmt.Errorf("%w: account %s already exists", domain.ErrInvalidInput, account.ID)
	}

	var exists bool
	r.u.store.view(r.u, func() {
		_, exists = r.u.store.accounts[account.ID]
	})
	if exists {
		return domain.EscrowAccount{}, fmt.Errorf("%w: account %s already exists", domain.ErrInvalidInput, account.ID)
	}

	if account.Version == 0 {
		account.Version = 1
	}
	r.u.accounts[account.ID] = cloneAccount(account)
	r.u.accountBase[account.ID] = 0
	return account, nil
}

func (r accountRepository) Get(_ context.Context, id string) (domain.EscrowAccount, error) {
	if account, ok := r.u.accounts[id]; ok {
		return cloneAccount(account), nil
	}

	var (
		account domain.EscrowAccount
		ok      bool
	)
	r.u.store.view(r.u, func() {
		account, ok = r.u.store.accounts[id]
	})
	if !ok {
		return domain.EscrowAccount{}, domain.ErrRecordNotFound
	}
	return cloneAccount(account), nil
}

// GetForUpdate has no row lock to take in memory; conflicts surface as a
// version check on commit.
func (r accountRepository) GetForUpdate(ctx context.Context, id string) (domain.EscrowAccount, error) {
	return r.Get(ctx, id)
}

func (r accountRepository) GetByOwner(_ context.Context, userID string, provider domain.Provider, currency string) (domain.EscrowAccount, error) {
	match := func(a domain.EscrowAccount) bool {
		return a.UserID == userID && a.Provider == provider && a.Currency == currency
	}
	for _, account := range r.u.accounts {
		if match(account) {
			return cloneAccount(account), nil
		}
	}

	var (
		found domain.EscrowAccount
		ok    bool
	)
	r.u.store.view(r.u, func() {
		for _, account := range r.u.store.accounts {
			if match(account) {
				found, ok = account, true
				return
			}
		}
	})
	if !ok {
		return domain.EscrowAccount{}, domain.ErrRecordNotFound
	}
	return cloneAccount(found), nil
}

func (r accountRepository) Update(ctx context.Context, account domain.EscrowAccount) (domain.EscrowAccount, error) {
	if err := r.u.writable(); err != nil {
		return domain.EscrowAccount{}, err
	}

	current, err := r.Get(ctx, account.ID)
	if err != nil {
		return domain.EscrowAccount{}, err
	}
	if current.Version != account.Version {
		return domain.EscrowAccount{}, fmt.Errorf("%w: account %s is at version %d, not %d", domain.ErrResourceBusy, account.ID, current.Version, account.Version)
	}

	if _, staged := r.u.accountBase[account.ID]; !staged {
		r.u.accountBase[account.ID] = current.Version
	}
	account.Version++
	r.u.accounts[account.ID] = cloneAccount(account)
	return cloneAccount(account), nil
}

func cloneAccount(account domain.EscrowAccount) domain.EscrowAccount {
	if account.LastReconciledAt != nil {
		at := *account.LastReconciledAt
		account.LastReconciledAt = &at
	}
	return account
}
