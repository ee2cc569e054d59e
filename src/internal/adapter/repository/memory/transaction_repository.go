package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/domain"
)

type transactionRepository struct {
	u *unitOfWork
}

func (r transactionRepository) Create(_ context.Context, tx domain.EscrowTransaction) (domain.EscrowTransaction, error) {
	if err := r.u.writable(); err != nil {
		return domain.EscrowTransaction{}, err
	}
	for _, staged := range r.u.transactions {
		if staged.AccountID == tx.AccountID && staged.Reference == tx.Reference {
			return domain.EscrowTransaction{}, fmt.Errorf("%w: %s", domain.ErrDuplicateReference, tx.Reference)
		}
	}

	var exists, taken bool
	r.u.store.view(r.u, func() {
		_, exists = r.u.store.transactions[tx.ID]
		_, taken = r.u.store.references[referenceKey(tx.AccountID, tx.Reference)]
	})
	if exists {
		return domain.EscrowTransaction{}, fmt.Errorf("%w: transaction %s already exists", domain.ErrInvalidInput, tx.ID)
	}
	if taken {
		return domain.EscrowTransaction{}, fmt.Errorf("%w: %s", domain.ErrDuplicateReference, tx.Reference)
	}

	if tx.Version == 0 {
		tx.Version = 1
	}
	r.u.transactions[tx.ID] = tx.Clone()
	r.u.transactionBase[tx.ID] = 0
	return tx.Clone(), nil
}

func (r transactionRepository) Get(_ context.Context, id string) (domain.EscrowTransaction, error) {
	if tx, ok := r.u.transactions[id]; ok {
		return tx.Clone(), nil
	}

	var (
		tx domain.EscrowTransaction
		ok bool
	)
	r.u.store.view(r.u, func() {
		tx, ok = r.u.store.transactions[id]
		if ok {
			tx = tx.Clone()
		}
	})
	if !ok {
		return domain.EscrowTransaction{}, domain.ErrRecordNotFound
	}
	return tx, nil
}

func (r transactionRepository) GetForUpdate(ctx context.Context, id string) (domain.EscrowTransaction, error) {
	return r.Get(ctx, id)
}

func (r transactionRepository) GetByReference(ctx context.Context, accountID string, reference string) (domain.EscrowTransaction, error) {
	for _, tx := range r.u.transactions {
		if tx.AccountID == accountID && tx.Reference == reference {
			return tx.Clone(), nil
		}
	}

	var (
		id string
		ok bool
	)
	r.u.store.view(r.u, func() {
		id, ok = r.u.store.references[referenceKey(accountID, reference)]
	})
	if !ok {
		return domain.EscrowTransaction{}, domain.ErrRecordNotFound
	}
	return r.Get(ctx, id)
}

func (r transactionRepository) Update(ctx context.Context, tx domain.EscrowTransaction) (domain.EscrowTransaction, error) {
	if err := r.u.writable(); err != nil {
		return domain.EscrowTransaction{}, err
	}

	current, err := r.Get(ctx, tx.ID)
	if err != nil {
		return domain.EscrowTransaction{}, err
	}
	if current.Version != tx.Version {
		return domain.EscrowTransaction{}, fmt.Errorf("%w: transaction %s is at version %d, not %d", domain.ErrResourceBusy, tx.ID, current.Version, tx.Version)
	}

	if _, staged := r.u.transactionBase[tx.ID]; !staged {
		r.u.transactionBase[tx.ID] = current.Version
	}
	tx.Version++
	r.u.transactions[tx.ID] = tx.Clone()
	return tx.Clone(), nil
}

func (r transactionRepository) ListByAccount(_ context.Context, accountID string, state *domain.TransactionState) ([]domain.EscrowTransaction, error) {
	out := r.collect(func(tx domain.EscrowTransaction) bool {
		return tx.AccountID == accountID && (state == nil || tx.State == *state)
	})

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r transactionRepository) ListDue(_ context.Context, now time.Time, limit int) ([]domain.EscrowTransaction, error) {
	out := r.collect(func(tx domain.EscrowTransaction) bool {
		return tx.State == domain.StateScheduled && tx.ScheduledReleaseAt != nil && !tx.ScheduledReleaseAt.After(now)
	})

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledReleaseAt.Equal(*out[j].ScheduledReleaseAt) {
			return out[i].ScheduledReleaseAt.Before(*out[j].ScheduledReleaseAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// collect merges staged rows over committed ones and keeps those matching keep.
func (r transactionRepository) collect(keep func(domain.EscrowTransaction) bool) []domain.EscrowTransaction {
	out := make([]domain.EscrowTransaction, 0)
	r.u.store.view(r.u, func() {
		for id, tx := range r.u.store.transactions {
			if _, staged := r.u.transactions[id]; staged {
				continue
			}
			if keep(tx) {
				out = append(out, tx.Clone())
			}
		}
	})
	for _, tx := range r.u.transactions {
		if keep(tx) {
			out = append(out, tx.Clone())
		}
	}
	return out
}
