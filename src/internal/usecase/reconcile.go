package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
)

const reconcilePageSize = 500

type ReconciliationResult struct {
	AccountID       string
	Match           bool
	ChainValid      bool
	ComputedBalance int64
	StoredBalance   int64
	ComputedPending int64
	StoredPending   int64
	ComputedWallet  int64
	StoredWallet    int64
	CheckedAt       time.Time
}

type ledgerReplay struct {
	balance    int64
	chainValid bool
}

// ReconcileAccount recomputes the escrow and wallet balances from the ledger
// and the pending total from the transactions, then compares them with the
// cached account fields. A mismatch is returned as ErrReconciliationMismatch
// together with the full result.
func (s *EscrowService) ReconcileAccount(ctx context.Context, accountID string) (ReconciliationResult, error) {
	accountID = strings.TrimSpace(accountID)
	logger.Info("escrow service reconcile request", logger.Fields{"accountId": accountID})

	result := ReconciliationResult{AccountID: accountID, CheckedAt: s.now()}
	err := s.store.ReadSnapshot(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		account, err := uow.Accounts().Get(ctx, accountID)
		if err != nil {
			return err
		}

		escrow, err := replayLedger(ctx, uow.Ledger(), account.ID)
		if err != nil {
			return err
		}
		wallet, err := replayLedger(ctx, uow.Ledger(), account.WalletAccountID)
		if err != nil {
			return err
		}

		txs, err := uow.Transactions().ListByAccount(ctx, account.ID, nil)
		if err != nil {
			return err
		}
		var pending int64
		for _, tx := range txs {
			if tx.State.Pending() {
				pending += tx.GrossAmount
			}
		}

		result.ChainValid = escrow.chainValid && wallet.chainValid
		result.ComputedBalance = escrow.balance
		result.StoredBalance = account.CurrentBalance
		result.ComputedPending = pending
		result.StoredPending = account.PendingReleaseTotal
		result.ComputedWallet = wallet.balance
		result.StoredWallet = account.WalletBalance
		return nil
	})
	if err != nil {
		logger.Error("escrow service reconcile failed", err, logger.Fields{"accountId": accountID})
		return ReconciliationResult{}, err
	}

	result.Match = result.ChainValid &&
		result.ComputedBalance == result.StoredBalance &&
		result.ComputedPending == result.StoredPending &&
		result.ComputedWallet == result.StoredWallet &&
		result.ComputedBalance == result.ComputedPending

	fields := logger.Fields{
		"accountId":       result.AccountID,
		"match":           result.Match,
		"chainValid":      result.ChainValid,
		"computedBalance": result.ComputedBalance,
		"storedBalance":   result.StoredBalance,
		"computedPending": result.ComputedPending,
		"storedPending":   result.StoredPending,
		"computedWallet":  result.ComputedWallet,
		"storedWallet":    result.StoredWallet,
	}
	if !result.Match {
		mismatch := fmt.Errorf("%w: account %s", domain.ErrReconciliationMismatch, result.AccountID)
		logger.Error("escrow service reconcile mismatch", mismatch, fields)
		return result, mismatch
	}

	s.stampReconciled(ctx, result.AccountID, result.CheckedAt)
	logger.Info("escrow service reconcile success", fields)
	return result, nil
}

// stampReconciled records the check time. It gives up quietly when the
// account is busy; the next reconciliation stamps it.
func (s *EscrowService) stampReconciled(ctx context.Context, accountID string, at time.Time) {
	unlock, err := s.locker.Acquire(ctx, accountLockKey(accountID))
	if err != nil {
		logger.Warn("escrow service reconcile stamp skipped", logger.Fields{
			"accountId": accountID,
			"reason":    err.Error(),
		})
		return
	}
	defer unlock()

	err = s.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		account, err := uow.Accounts().GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		stamped := at
		account.LastReconciledAt = &stamped
		_, err = uow.Accounts().Update(ctx, account)
		return err
	})
	if err != nil && !errors.Is(err, domain.ErrResourceBusy) {
		logger.Error("escrow service reconcile stamp failed", err, logger.Fields{"accountId": accountID})
	}
}

func replayLedger(ctx context.Context, ledger domain.LedgerRepository, accountID string) (ledgerReplay, error) {
	replay := ledgerReplay{chainValid: true}
	var after int64
	for {
		page, err := ledger.List(ctx, accountID, after, reconcilePageSize)
		if err != nil {
			return ledgerReplay{}, err
		}

		for _, entry := range page {
			if entry.EntryID != after+1 {
				replay.chainValid = false
			}
			replay.balance += entry.Signed()
			if entry.RunningBalanceAfter != replay.balance {
				replay.chainValid = false
			}
			after = entry.EntryID
		}

		if len(page) < reconcilePageSize {
			return replay, nil
		}
	}
}
