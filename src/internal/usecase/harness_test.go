package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/adapter/lock"
	"github.com/api-sage/escrow-engine/src/internal/adapter/repository/memory"
	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu       sync.Mutex
	released []string
}

func (n *recordingNotifier) Released(_ context.Context, _ domain.EscrowAccount, tx domain.EscrowTransaction) error {
	n.mu.Lock()
	n.released = append(n.released, tx.ID)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.released)
}

type harness struct {
	store     *memory.Store
	locker    *lock.LocalLocker
	clock     *fakeClock
	notifier  *recordingNotifier
	config    *usecase.ConfigService
	escrow    *usecase.EscrowService
	scheduler *usecase.Scheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithLockTimeout(t, 2*time.Second)
}

func newHarnessWithLockTimeout(t *testing.T, lockTimeout time.Duration) *harness {
	t.Helper()

	h := &harness{
		store:    memory.NewStore(),
		locker:   lock.NewLocalLocker(lockTimeout),
		clock:    newFakeClock(),
		notifier: &recordingNotifier{},
	}
	h.config = usecase.NewConfigService(h.store, h.locker, 0, h.clock.Now)
	h.escrow = usecase.NewEscrowService(h.store, h.locker, h.config,
		usecase.WithClock(h.clock.Now),
		usecase.WithSettlementNotifier(h.notifier),
	)
	h.scheduler = usecase.NewScheduler(h.escrow, 50, 4, h.clock.Now)
	return h
}

func (h *harness) account(t *testing.T) domain.EscrowAccount {
	t.Helper()
	account, err := h.escrow.CreateEscrowAccount(context.Background(), "user-1", domain.ProviderStripe, "USD")
	require.NoError(t, err)
	return account
}

func (h *harness) feeTier(t *testing.T, percent string, flat int64, min int64, max *int64) domain.FeeTier {
	t.Helper()
	tier, err := h.config.UpsertFeeTier(context.Background(), domain.FeeTier{
		Provider:      domain.ProviderStripe,
		Currency:      "USD",
		MinimumAmount: min,
		MaximumAmount: max,
		PercentFee:    decimal.RequireFromString(percent),
		FlatFee:       flat,
	})
	require.NoError(t, err)
	return tier
}

func (h *harness) policy(t *testing.T, policy domain.ReleasePolicy) domain.ReleasePolicy {
	t.Helper()
	saved, err := h.config.UpsertReleasePolicy(context.Background(), policy)
	require.NoError(t, err)
	return saved
}

func (h *harness) hold(t *testing.T, accountID string, amount int64, reference string) domain.EscrowTransaction {
	t.Helper()
	tx, err := h.escrow.HoldFunds(context.Background(), usecase.HoldRequest{
		AccountID:   accountID,
		GrossAmount: amount,
		Reference:   reference,
	})
	require.NoError(t, err)
	return tx
}

func (h *harness) ledger(t *testing.T, ledgerAccountID string) []domain.LedgerEntry {
	t.Helper()
	entries, err := h.escrow.ListLedgerEntries(context.Background(), ledgerAccountID, 0, 0)
	require.NoError(t, err)
	return entries
}

func (h *harness) requireReconciled(t *testing.T, accountID string) {
	t.Helper()
	result, err := h.escrow.ReconcileAccount(context.Background(), accountID)
	require.NoError(t, err)
	require.True(t, result.Match)
}

func int64p(v int64) *int64 {
	return &v
}
