package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/domain"
)

// posting accumulates the ledger appends of one unit of work and remembers the
// last running balance per ledger account so the cached account fields can be
// checked against the ledger before commit.
type posting struct {
	uow      domain.UnitOfWork
	balances map[string]int64
}

func newPosting(uow domain.UnitOfWork) *posting {
	return &posting{uow: uow, balances: make(map[string]int64)}
}

func (p *posting) append(ctx context.Context, entry domain.LedgerEntry) error {
	if entry.Amount <= 0 {
		return nil
	}

	saved, err := p.uow.Ledger().Append(ctx, entry)
	if err != nil {
		return fmt.Errorf("append %s entry to %s: %w", entry.EntryType, entry.AccountID, err)
	}
	p.balances[entry.AccountID] = saved.RunningBalanceAfter
	return nil
}

func (p *posting) hold(ctx context.Context, account *domain.EscrowAccount, tx *domain.EscrowTransaction, at time.Time) error {
	if err := p.append(ctx, entryFor(account.ID, domain.LedgerEntryHold, domain.DirectionCredit, tx.GrossAmount, tx, at)); err != nil {
		return err
	}

	account.CurrentBalance += tx.GrossAmount
	account.PendingReleaseTotal += tx.GrossAmount
	return nil
}

func (p *posting) release(ctx context.Context, account *domain.EscrowAccount, tx *domain.EscrowTransaction, actorID string, at time.Time, reason string) error {
	if !tx.AmountsBalanced() {
		return fmt.Errorf("%w: transaction %s fee %d + net %d != gross %d", domain.ErrInvariantViolation, tx.ID, tx.FeeAmount, tx.NetAmount, tx.GrossAmount)
	}

	entries := []domain.LedgerEntry{
		entryFor(account.ID, domain.LedgerEntryRelease, domain.DirectionDebit, tx.NetAmount, tx, at),
		entryFor(account.ID, domain.LedgerEntryFee, domain.DirectionDebit, tx.FeeAmount, tx, at),
		entryFor(account.WalletAccountID, domain.LedgerEntryRelease, domain.DirectionCredit, tx.NetAmount, tx, at),
		entryFor(domain.PlatformFeeAccountID(tx.Currency), domain.LedgerEntryFee, domain.DirectionCredit, tx.FeeAmount, tx, at),
	}
	for _, entry := range entries {
		if err := p.append(ctx, entry); err != nil {
			return err
		}
	}

	account.CurrentBalance -= tx.GrossAmount
	account.PendingReleaseTotal -= tx.GrossAmount
	account.WalletBalance += tx.NetAmount

	releasedAt := at
	tx.ReleasedAt = &releasedAt
	tx.Transition(domain.StateReleased, actorID, at, reason)
	return nil
}

func (p *posting) refund(ctx context.Context, account *domain.EscrowAccount, tx *domain.EscrowTransaction, actorID string, at time.Time, reason string) error {
	if err := p.append(ctx, entryFor(account.ID, domain.LedgerEntryRefund, domain.DirectionDebit, tx.GrossAmount, tx, at)); err != nil {
		return err
	}

	account.CurrentBalance -= tx.GrossAmount
	account.PendingReleaseTotal -= tx.GrossAmount

	refundedAt := at
	tx.RefundedAt = &refundedAt
	tx.Transition(domain.StateRefunded, actorID, at, reason)
	return nil
}

// verify compares the cached account balances with the running balances the
// ledger produced in this unit of work.
func (p *posting) verify(account domain.EscrowAccount, tx domain.EscrowTransaction) error {
	if !tx.AmountsBalanced() {
		return fmt.Errorf("%w: transaction %s fee %d + net %d != gross %d", domain.ErrInvariantViolation, tx.ID, tx.FeeAmount, tx.NetAmount, tx.GrossAmount)
	}
	if account.CurrentBalance < 0 || account.PendingReleaseTotal < 0 || account.WalletBalance < 0 {
		return fmt.Errorf("%w: account %s has a negative balance", domain.ErrInvariantViolation, account.ID)
	}
	if account.CurrentBalance != account.PendingReleaseTotal {
		return fmt.Errorf("%w: account %s balance %d differs from pending total %d", domain.ErrInvariantViolation, account.ID, account.CurrentBalance, account.PendingReleaseTotal)
	}
	if balance, ok := p.balances[account.ID]; ok && balance != account.CurrentBalance {
		return fmt.Errorf("%w: account %s ledger balance %d differs from cached %d", domain.ErrInvariantViolation, account.ID, balance, account.CurrentBalance)
	}
	if balance, ok := p.balances[account.WalletAccountID]; ok && balance != account.WalletBalance {
		return fmt.Errorf("%w: wallet %s ledger balance %d differs from cached %d", domain.ErrInvariantViolation, account.WalletAccountID, balance, account.WalletBalance)
	}
	return nil
}

func entryFor(accountID string, entryType domain.LedgerEntryType, direction domain.Direction, amount int64, tx *domain.EscrowTransaction, at time.Time) domain.LedgerEntry {
	return domain.LedgerEntry{
		AccountID:            accountID,
		EntryType:            entryType,
		Direction:            direction,
		Amount:               amount,
		Currency:             tx.Currency,
		Reference:            tx.Reference,
		RelatedTransactionID: tx.ID,
		OccurredAt:           at,
	}
}
