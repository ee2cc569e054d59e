package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryShape(entries []domain.LedgerEntry) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, fmt.Sprintf("%s %d", entry.EntryType, entry.Amount))
	}
	return out
}

func TestCreateEscrowAccountIsIdempotentPerOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.escrow.CreateEscrowAccount(ctx, "user-1", domain.ProviderStripe, "usd")
	require.NoError(t, err)
	second, err := h.escrow.CreateEscrowAccount(ctx, " user-1 ", domain.ProviderStripe, "USD")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "USD", first.Currency)
	assert.Equal(t, domain.AccountStatusActive, first.Status)
	assert.Equal(t, domain.WalletAccountID(first.ID), first.WalletAccountID)
}

func TestCreateEscrowAccountValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.escrow.CreateEscrowAccount(ctx, "", domain.ProviderStripe, "USD")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.escrow.CreateEscrowAccount(ctx, "user-1", domain.Provider("paypal"), "USD")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.escrow.CreateEscrowAccount(ctx, "user-1", domain.ProviderStripe, "US")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestHoldFundsImmediateReleaseUnderAmountThreshold(t *testing.T) {
	h := newHarness(t)
	account := h.account(t)
	h.feeTier(t, "5", 50, 0, nil)
	h.policy(t, domain.ReleasePolicy{PolicyType: domain.PolicyThresholdAmount, ThresholdAmount: int64p(10000)})

	tx := h.hold(t, account.ID, 5000, "r1")

	assert.Equal(t, domain.StateReleased, tx.State)
	assert.Equal(t, int64(300), tx.FeeAmount)
	assert.Equal(t, int64(4700), tx.NetAmount)
	assert.Equal(t, tx.GrossAmount, tx.FeeAmount+tx.NetAmount)
	require.NotNil(t, tx.ReleasedAt)
	require.NotNil(t, tx.FeeTierID)

	assert.Equal(t, []string{"hold 5000", "release 4700", "fee 300"}, entryShape(h.ledger(t, account.ID)))
	assert.Equal(t, []string{"release 4700"}, entryShape(h.ledger(t, domain.WalletAccountID(account.ID))))
	assert.Equal(t, []string{"fee 300"}, entryShape(h.ledger(t, domain.PlatformFeeAccountID("USD"))))

	stored, err := h.escrow.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.CurrentBalance)
	assert.Equal(t, int64(0), stored.PendingReleaseTotal)
	assert.Equal(t, int64(4700), stored.WalletBalance)
	assert.Equal(t, 1, h.notifier.count())

	h.requireReconciled(t, account.ID)
}

func TestHoldFundsScheduledThenReleasedByTick(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.account(t)
	h.feeTier(t, "5", 50, 0, nil)
	h.policy(t, domain.ReleasePolicy{PolicyType: domain.PolicyThresholdHours, ThresholdHours: int64p(72)})

	tx := h.hold(t, account.ID, 50000, "r2")

	require.Equal(t, domain.StateScheduled, tx.State)
	require.NotNil(t, tx.ScheduledReleaseAt)
	assert.Equal(t, tx.CreatedAt.Add(72*time.Hour), *tx.ScheduledReleaseAt)
	assert.Equal(t, int64(2550), tx.FeeAmount)
	assert.Equal(t, int64(47450), tx.NetAmount)

	early, err := h.scheduler.Tick(ctx, tx.CreatedAt.Add(71*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, early.ReleasedCount)

	result, err := h.scheduler.Tick(ctx, tx.CreatedAt.Add(73*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, result.ReleasedCount)
	assert.Empty(t, result.FailedTransactionIDs)

	released, err := h.escrow.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateReleased, released.State)
	assert.Equal(t, domain.SystemActor, released.AuditTrail[len(released.AuditTrail)-1].ActorID)

	h.requireReconciled(t, account.ID)
}

func TestHoldFundsWithoutPolicyWaitsForApproval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.account(t)

	tx := h.hold(t, account.ID, 1000, "r1")
	assert.Equal(t, domain.StateHoldForApproval, tx.State)
	assert.Zero(t, tx.FeeAmount)
	assert.Nil(t, tx.FeeTierID)

	_, err := h.escrow.ReleaseTransaction(ctx, tx.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	released, err := h.escrow.ReleaseTransaction(ctx, tx.ID, "approver-7")
	require.NoError(t, err)
	assert.Equal(t, domain.StateReleased, released.State)
	last := released.AuditTrail[len(released.AuditTrail)-1]
	assert.Equal(t, domain.StateHoldForApproval, last.FromState)
	assert.Equal(t, "approver-7", last.ActorID)
}

func TestHoldFundsComplianceForcesApproval(t *testing.T) {
	h := newHarness(t)
	account := h.account(t)
	h.policy(t, domain.ReleasePolicy{
		PolicyType:             domain.PolicyThresholdAmount,
		ThresholdAmount:        int64p(100000),
		RequiresComplianceHold: true,
	})

	tx := h.hold(t, account.ID, 500, "r1")
	assert.Equal(t, domain.StateHoldForApproval, tx.State)
	assert.True(t, tx.RequiresCompliance)
	assert.Nil(t, tx.ScheduledReleaseAt)
}

func TestHoldFundsIsIdempotentPerReference(t *testing.T) {
	h := newHarness(t)
	account := h.account(t)

	first := h.hold(t, account.ID, 1000, "order-42")
	second := h.hold(t, account.ID, 1000, "order-42")

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, h.ledger(t, account.ID), 1)

	stored, err := h.escrow.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), stored.CurrentBalance)
}

func TestHoldFundsValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.account(t)

	cases := map[string]usecase.HoldRequest{
		"zero amount":       {AccountID: account.ID, GrossAmount: 0, Reference: "r"},
		"negative amount":   {AccountID: account.ID, GrossAmount: -5, Reference: "r"},
		"missing reference": {AccountID: account.ID, GrossAmount: 10},
		"long reference":    {AccountID: account.ID, GrossAmount: 10, Reference: string(make([]byte, 129))},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.escrow.HoldFunds(ctx, req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	_, err := h.escrow.HoldFunds(ctx, usecase.HoldRequest{AccountID: "missing", GrossAmount: 10, Reference: "r"})
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestHoldFundsRejectsInactiveAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.account(t)

	_, err := h.escrow.SuspendAccount(ctx, account.ID, "ops")
	require.NoError(t, err)

	_, err = h.escrow.HoldFunds(ctx, usecase.HoldRequest{AccountID: account.ID, GrossAmount: 10, Reference: "r"})
	assert.ErrorIs(t, err, domain.ErrAccountNotActive)
	assert.Equal(t, domain.ClassInvalid, domain.Classify(err))
}

func TestReleaseTransactionIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.account(t)

	tx := h.hold(t, account.ID, 1000, "r1")
	first, err := h.escrow.ReleaseTransaction(ctx, tx.ID, "ops")
	require.NoError(t, err)
	entries := len(h.ledger(t, account.ID))

	second, err := h.escrow.ReleaseTransaction(ctx, tx.ID, "ops")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, domain.StateReleased, second.State)
	assert.Len(t, h.ledger(t, account.ID), entries)
	assert.Equal(t, 1, h.notifier.count())
}

func TestRefundOfReleasedTransactionFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.account(t)
	h.feeTier(t, "5", 50, 0, nil)
	h.policy(t, domain.ReleasePolicy{PolicyType: domain.PolicyThresholdAmount, ThresholdAmount: int64p(10000)})

	tx := h.hold(t, account.ID, 5000, "r1")
	require.Equal(t, domain.StateReleased, tx.State)
	before, err := h.escrow.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	entries := len(h.ledger(t, account.ID))

	_, err = h.escrow.RefundTransaction(ctx, tx.ID, "ops", "buyer complaint")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	after, err := h.escrow.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, before.CurrentBalance, after.CurrentBalance)
	assert.Equal(t, before.WalletBalance, after.WalletBalance)
	assert.Len(t, h.ledger(t, account.ID), entries)
}

func TestRefundReturnsGrossAmount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.account(t)
	h.feeTier(t, "2", 0, 0, nil)

	tx := h.hold(t, account.ID, 1000, "r1")
	_, err := h.escrow.RefundTransaction(ctx, tx.ID, "", "no actor")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	refunded, err := h.escrow.RefundTransaction(ctx, tx.ID, "ops", "order cancelled")
	require.NoError(t, err)
	assert.Equal(t, domain.StateRefunded, refunded.State)
	assert.Equal(t, refunded.GrossAmount, refunded.FeeAmount+refunded.NetAmount)
	require.NotNil(t, refunded.RefundedAt)

	assert.Equal(t, []string{"hold 1000", "refund 1000"}, entryShape(h.ledger(t, account.ID)))

	again, err := h.escrow.RefundTransaction(ctx, tx.ID, "ops", "retry")
	require.NoError(t, err)
	assert.Equal(t, refunded.Version, again.Version)

	_, err = h.escrow.ReleaseTransaction(ctx, tx.ID, "ops")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	h.requireReconciled(t, account.ID)
}

func TestDisputeBlocksReleaseUntilResolved(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.account(t)
	h.policy(t, domain.ReleasePolicy{PolicyType: domain.PolicyThresholdHours, ThresholdHours: int64p(1)})

	tx := h.hold(t, account.ID, 1000, "r1")
	require.Equal(t, domain.StateScheduled, tx.State)

	disputed, err := h.escrow.DisputeTransaction(ctx, tx.ID, "buyer-1", "item not received")
	require.NoError(t, err)
	assert.Equal(t, domain.StateDisputed, disputed.State)

	_, err = h.escrow.ReleaseTransaction(ctx, tx.ID, "ops")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = h.escrow.RefundTransaction(ctx, tx.ID, "ops", "refund")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	result, err := h.scheduler.Tick(ctx, tx.CreatedAt.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, result.ReleasedCount)

	resolved, err := h.escrow.ResolveDispute(ctx, tx.ID, "arbiter", domain.StateRefunded)
	require.NoError(t, err)
	assert.Equal(t, domain.StateRefunded, resolved.State)

	replayed, err := h.escrow.ResolveDispute(ctx, tx.ID, "arbiter", domain.StateRefunded)
	require.NoError(t, err)
	assert.Equal(t, resolved.Version, replayed.Version)

	_, err = h.escrow.ResolveDispute(ctx, tx.ID, "arbiter", domain.StateReleased)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	h.requireReconciled(t, account.ID)
}

func TestDisputeOnlyFromHeldOrScheduled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.account(t)

	tx := h.hold(t, account.ID, 1000, "r1")
	require.Equal(t, domain.StateHoldForApproval, tx.State)

	_, err := h.escrow.DisputeTransaction(ctx, tx.ID, "buyer-1", "late")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = h.escrow.ResolveDispute(ctx, tx.ID, "arbiter", domain.StateHeld)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPendingReleaseTotalCoversApprovalAndDisputedHolds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.account(t)

	waiting := h.hold(t, account.ID, 300, "r1")
	require.Equal(t, domain.StateHoldForApproval, waiting.State)

	h.policy(t, domain.ReleasePolicy{PolicyType: domain.PolicyThresholdHours, ThresholdHours: int64p(1)})
	contested := h.hold(t, account.ID, 700, "r2")
	_, err := h.escrow.DisputeTransaction(ctx, contested.ID, "buyer-1", "damaged")
	require.NoError(t, err)

	stored, err := h.escrow.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), stored.PendingReleaseTotal)

	result, err := h.escrow.ReconcileAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), result.ComputedPending)

	_, err = h.escrow.ReleaseTransaction(ctx, waiting.ID, "approver-1")
	require.NoError(t, err)

	stored, err = h.escrow.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(700), stored.PendingReleaseTotal)

	_, err = h.escrow.CloseAccount(ctx, account.ID, "ops")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestAnnotateTransactionMergesMetadata(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.account(t)

	tx, err := h.escrow.HoldFunds(ctx, usecase.HoldRequest{
		AccountID:   account.ID,
		GrossAmount: 100,
		Reference:   "r1",
		Metadata:    map[string]string{"order": "42"},
	})
	require.NoError(t, err)
	_, err = h.escrow.RefundTransaction(ctx, tx.ID, "ops", "cancelled")
	require.NoError(t, err)

	annotated, err := h.escrow.AnnotateTransaction(ctx, tx.ID, map[string]string{"ticket": "T-9"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"order": "42", "ticket": "T-9"}, annotated.Metadata)
	assert.Equal(t, domain.StateRefunded, annotated.State)
}

func TestAccountStatusTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.account(t)

	_, err := h.escrow.SuspendAccount(ctx, account.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	tx := h.hold(t, account.ID, 1000, "r1")

	_, err = h.escrow.CloseAccount(ctx, account.ID, "ops")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	suspended, err := h.escrow.SuspendAccount(ctx, account.ID, "ops")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusSuspended, suspended.Status)

	_, err = h.escrow.ReleaseTransaction(ctx, tx.ID, "ops")
	assert.ErrorIs(t, err, domain.ErrAccountNotActive)

	_, err = h.escrow.RefundTransaction(ctx, tx.ID, "ops", "account under review")
	require.NoError(t, err)

	closed, err := h.escrow.CloseAccount(ctx, account.ID, "ops")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusClosed, closed.Status)

	_, err = h.escrow.ActivateAccount(ctx, account.ID, "ops")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestConcurrentHoldsProduceGapFreeLedger(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.account(t)

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.escrow.HoldFunds(ctx, usecase.HoldRequest{
				AccountID:   account.ID,
				GrossAmount: int64(100 + i),
				Reference:   fmt.Sprintf("r-%d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	entries := h.ledger(t, account.ID)
	require.Len(t, entries, n)
	var running int64
	for i, entry := range entries {
		assert.Equal(t, int64(i+1), entry.EntryID)
		running += entry.Amount
		assert.Equal(t, running, entry.RunningBalanceAfter)
	}

	stored, err := h.escrow.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, running, stored.CurrentBalance)
	h.requireReconciled(t, account.ID)
}

func TestHoldFundsLockTimeoutIsRetryable(t *testing.T) {
	h := newHarnessWithLockTimeout(t, 50*time.Millisecond)
	ctx := context.Background()
	account := h.account(t)

	unlock, err := h.locker.Acquire(ctx, "account:"+account.ID)
	require.NoError(t, err)
	defer unlock()

	_, err = h.escrow.HoldFunds(ctx, usecase.HoldRequest{AccountID: account.ID, GrossAmount: 10, Reference: "r1"})
	assert.ErrorIs(t, err, domain.ErrResourceBusy)
	assert.True(t, domain.IsRetryable(err))
}

func TestReconcileDetectsTamperedBalance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.account(t)
	h.hold(t, account.ID, 1000, "r1")

	err := h.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		stored, err := uow.Accounts().GetForUpdate(ctx, account.ID)
		if err != nil {
			return err
		}
		stored.CurrentBalance += 7
		_, err = uow.Accounts().Update(ctx, stored)
		return err
	})
	require.NoError(t, err)

	result, err := h.escrow.ReconcileAccount(ctx, account.ID)
	assert.ErrorIs(t, err, domain.ErrReconciliationMismatch)
	assert.Equal(t, domain.ClassIntegrity, domain.Classify(err))
	assert.False(t, result.Match)
	assert.True(t, result.ChainValid)
	assert.Equal(t, int64(1000), result.ComputedBalance)
	assert.Equal(t, int64(1007), result.StoredBalance)
}

func TestReconcileStampsAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.account(t)
	h.hold(t, account.ID, 1000, "r1")

	h.requireReconciled(t, account.ID)

	stored, err := h.escrow.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastReconciledAt)
	assert.Equal(t, h.clock.Now(), *stored.LastReconciledAt)
}

func TestListTransactionsFiltersByState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.account(t)

	first := h.hold(t, account.ID, 100, "r1")
	h.clock.Advance(time.Second)
	h.hold(t, account.ID, 200, "r2")
	_, err := h.escrow.RefundTransaction(ctx, first.ID, "ops", "cancelled")
	require.NoError(t, err)

	all, err := h.escrow.ListTransactions(ctx, account.ID, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "r1", all[0].Reference)

	refunded := domain.StateRefunded
	only, err := h.escrow.ListTransactions(ctx, account.ID, &refunded)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, first.ID, only[0].ID)

	byRef, err := h.escrow.GetTransactionByReference(ctx, account.ID, "r2")
	require.NoError(t, err)
	assert.Equal(t, int64(200), byRef.GrossAmount)
}
