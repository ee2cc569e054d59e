package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/api-sage/escrow-engine/src/internal/domain"
)

type ledgerRepository struct {
	u *unitOfWork
}

func (r ledgerRepository) Append(_ context.Context, entry domain.LedgerEntry) (domain.LedgerEntry, error) {
	if err := r.u.writable(); err != nil {
		return domain.LedgerEntry{}, err
	}
	if entry.Amount <= 0 {
		return domain.LedgerEntry{}, fmt.Errorf("%w: ledger amount must be positive", domain.ErrInvalidInput)
	}

	last, ok := r.head(entry.AccountID)
	previous := int64(0)
	if ok {
		previous = last.RunningBalanceAfter
	}

	entry.EntryID = last.EntryID + 1
	entry.RunningBalanceAfter = previous + entry.Signed()
	if entry.RunningBalanceAfter < 0 {
		return domain.LedgerEntry{}, fmt.Errorf("%w: ledger %s would drop to %d", domain.ErrInsufficientBalance, entry.AccountID, entry.RunningBalanceAfter)
	}

	r.u.entries[entry.AccountID] = append(r.u.entries[entry.AccountID], entry)
	return entry, nil
}

// head returns the newest entry visible to this unit of work and pins the
// committed length so a concurrent append is detected on commit.
func (r ledgerRepository) head(accountID string) (domain.LedgerEntry, bool) {
	if staged := r.u.entries[accountID]; len(staged) > 0 {
		return staged[len(staged)-1], true
	}

	var (
		last  domain.LedgerEntry
		found bool
		size  int
	)
	r.u.store.view(r.u, func() {
		committed := r.u.store.ledger[accountID]
		size = len(committed)
		if size > 0 {
			last, found = committed[size-1], true
		}
	})
	r.u.ledgerBase[accountID] = int64(size)
	return last, found
}

func (r ledgerRepository) Last(_ context.Context, accountID string) (domain.LedgerEntry, bool, error) {
	if staged := r.u.entries[accountID]; len(staged) > 0 {
		return staged[len(staged)-1], true, nil
	}

	var (
		last  domain.LedgerEntry
		found bool
	)
	r.u.store.view(r.u, func() {
		committed := r.u.store.ledger[accountID]
		if len(committed) > 0 {
			last, found = committed[len(committed)-1], true
		}
	})
	return last, found, nil
}

func (r ledgerRepository) List(_ context.Context, accountID string, afterEntryID int64, limit int) ([]domain.LedgerEntry, error) {
	var all []domain.LedgerEntry
	r.u.store.view(r.u, func() {
		all = append(all, r.u.store.ledger[accountID]...)
	})
	all = append(all, r.u.entries[accountID]...)

	start := sort.Search(len(all), func(i int) bool {
		return all[i].EntryID > afterEntryID
	})
	out := all[start:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]domain.LedgerEntry{}, out...), nil
}

func (r ledgerRepository) BalanceAsOf(_ context.Context, accountID string, entryID int64) (int64, error) {
	if entryID <= 0 {
		return 0, nil
	}

	var all []domain.LedgerEntry
	r.u.store.view(r.u, func() {
		all = append(all, r.u.store.ledger[accountID]...)
	})
	all = append(all, r.u.entries[accountID]...)

	if entryID > int64(len(all)) {
		return 0, fmt.Errorf("%w: ledger %s has no entry %d", domain.ErrRecordNotFound, accountID, entryID)
	}
	return all[entryID-1].RunningBalanceAfter, nil
}
