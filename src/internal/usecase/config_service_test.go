package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/adapter/lock"
	"github.com/api-sage/escrow-engine/src/internal/adapter/repository/memory"
	"github.com/api-sage/escrow-engine/src/internal/config"
	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertFeeTierRejectsOverlap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.feeTier(t, "1", 0, 0, int64p(1000))

	_, err := h.config.UpsertFeeTier(ctx, domain.FeeTier{
		Provider:      domain.ProviderStripe,
		Currency:      "USD",
		MinimumAmount: 500,
		MaximumAmount: int64p(1500),
		PercentFee:    decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	tiers, err := h.config.ListFeeTiers(ctx)
	require.NoError(t, err)
	require.Len(t, tiers, 1)
	assert.Equal(t, first.ID, tiers[0].ID)
	assert.Equal(t, domain.ConfigStatusActive, tiers[0].Status)
	assert.Equal(t, first.Version, tiers[0].Version)
}

func TestUpsertFeeTierUpdatesAndDeactivates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tier := h.feeTier(t, "1", 0, 0, nil)
	assert.Equal(t, int64(1), tier.Version)

	updated, err := h.config.UpsertFeeTier(ctx, tier)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, tier.CreatedAt, updated.CreatedAt)

	deactivated, err := h.config.DeactivateFeeTier(ctx, tier.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConfigStatusInactive, deactivated.Status)
	assert.Equal(t, int64(3), deactivated.Version)

	snapshot, err := h.config.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snapshot.FeeTiers)

	_, err = h.config.DeactivateFeeTier(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestFeeTierPricingIsFrozenOnceStored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.account(t)

	tier := h.feeTier(t, "6", 0, 0, nil)
	h.policy(t, domain.ReleasePolicy{PolicyType: domain.PolicyThresholdAmount, ThresholdAmount: int64p(100000)})
	tx := h.hold(t, account.ID, 1000, "r1")
	require.Equal(t, tier.ID, *tx.FeeTierID)
	require.Equal(t, int64(60), tx.FeeAmount)

	edits := []struct {
		name string
		edit func(*domain.FeeTier)
	}{
		{name: "percent", edit: func(ft *domain.FeeTier) { ft.PercentFee = decimal.RequireFromString("9") }},
		{name: "flat", edit: func(ft *domain.FeeTier) { ft.FlatFee = 25 }},
		{name: "minimum", edit: func(ft *domain.FeeTier) { ft.MinimumAmount = 10 }},
		{name: "maximum", edit: func(ft *domain.FeeTier) { ft.MaximumAmount = int64p(5000) }},
		{name: "currency", edit: func(ft *domain.FeeTier) { ft.Currency = "EUR" }},
	}
	for _, tt := range edits {
		t.Run(tt.name, func(t *testing.T) {
			changed := tier
			tt.edit(&changed)
			_, err := h.config.UpsertFeeTier(ctx, changed)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}

	stored, err := h.config.ListFeeTiers(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].PercentFee.Equal(decimal.RequireFromString("6")))
	assert.Equal(t, tier.Version, stored[0].Version)

	_, err = h.config.DeactivateFeeTier(ctx, tier.ID)
	require.NoError(t, err)
	replacement := h.feeTier(t, "9", 0, 0, nil)
	assert.NotEqual(t, tier.ID, replacement.ID)

	next := h.hold(t, account.ID, 1000, "r2")
	assert.Equal(t, replacement.ID, *next.FeeTierID)
	assert.Equal(t, int64(90), next.FeeAmount)

	original, err := h.escrow.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tier.ID, *original.FeeTierID)
	assert.Equal(t, int64(60), original.FeeAmount)
}

func TestReleasePolicyRuleIsFrozenOnceStored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	policy := h.policy(t, domain.ReleasePolicy{PolicyType: domain.PolicyThresholdHours, ThresholdHours: int64p(24), OrderIndex: 1})

	longer := policy
	longer.ThresholdHours = int64p(48)
	_, err := h.config.UpsertReleasePolicy(ctx, longer)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	gated := policy
	gated.RequiresManualApproval = true
	_, err = h.config.UpsertReleasePolicy(ctx, gated)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	moved := policy
	moved.OrderIndex = 5
	saved, err := h.config.UpsertReleasePolicy(ctx, moved)
	require.NoError(t, err)
	assert.Equal(t, 5, saved.OrderIndex)
	assert.Equal(t, int64(24), *saved.ThresholdHours)
}

func TestUpsertReleasePolicyValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.config.UpsertReleasePolicy(ctx, domain.ReleasePolicy{
		PolicyType:      domain.PolicyThresholdAmount,
		ThresholdAmount: int64p(10),
		ThresholdHours:  int64p(2),
	})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	h.policy(t, domain.ReleasePolicy{PolicyType: domain.PolicyManualOnly, OrderIndex: 3})
	_, err = h.config.UpsertReleasePolicy(ctx, domain.ReleasePolicy{PolicyType: domain.PolicyManualOnly, OrderIndex: 3})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	scoped, err := h.config.UpsertReleasePolicy(ctx, domain.ReleasePolicy{
		PolicyType: domain.PolicyManualOnly,
		OrderIndex: 3,
		Provider:   domain.ProviderInternal,
		Currency:   "eur",
	})
	require.NoError(t, err)
	assert.Equal(t, "EUR", scoped.Currency)
}

func TestSnapshotVersionAdvancesWithWrites(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	before, err := h.config.Snapshot(ctx)
	require.NoError(t, err)

	h.feeTier(t, "1", 0, 0, nil)
	h.policy(t, domain.ReleasePolicy{PolicyType: domain.PolicyManualOnly})

	after, err := h.config.Snapshot(ctx)
	require.NoError(t, err)
	assert.Greater(t, after.Version, before.Version)
	assert.Len(t, after.FeeTiers, 1)
	assert.Len(t, after.Policies, 1)
}

func TestSnapshotIsCachedUntilWrite(t *testing.T) {
	store := memory.NewStore()
	locker := lock.NewLocalLocker(time.Second)
	clock := newFakeClock()
	svc := usecase.NewConfigService(store, locker, time.Minute, clock.Now)
	ctx := context.Background()

	first, err := svc.Snapshot(ctx)
	require.NoError(t, err)

	// A write that bypasses the service is not visible while the cache is fresh.
	err = store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		_, err := uow.Config().UpsertReleasePolicy(ctx, domain.ReleasePolicy{
			ID:         "p1",
			PolicyType: domain.PolicyManualOnly,
			Status:     domain.ConfigStatusActive,
			Version:    1,
		})
		return err
	})
	require.NoError(t, err)

	cached, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Version, cached.Version)
	assert.Empty(t, cached.Policies)

	clock.Advance(2 * time.Minute)
	fresh, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, fresh.Policies, 1)

	_, err = svc.UpsertFeeTier(ctx, domain.FeeTier{
		Provider:   domain.ProviderStripe,
		Currency:   "USD",
		PercentFee: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	afterWrite, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, afterWrite.FeeTiers, 1)
}

func TestApplySeed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	seed, err := config.ParseSeed([]byte(`
feeTiers:
  - id: stripe-usd
    provider: stripe
    currency: usd
    minimumAmount: 0
    percentFee: "5"
    flatFee: 50
releasePolicies:
  - id: small-amounts
    policyType: threshold_amount
    thresholdAmount: 10000
    orderIndex: 1
`))
	require.NoError(t, err)
	require.NoError(t, h.config.ApplySeed(ctx, seed))

	account := h.account(t)
	tx := h.hold(t, account.ID, 5000, "seeded")
	assert.Equal(t, domain.StateReleased, tx.State)
	assert.Equal(t, int64(300), tx.FeeAmount)

	// A restart reapplies the same seed over the stored rows.
	require.NoError(t, h.config.ApplySeed(ctx, seed))

	bad, err := config.ParseSeed([]byte(`
feeTiers:
  - provider: stripe
    currency: USD
    percentFee: "abc"
`))
	require.NoError(t, err)
	assert.ErrorIs(t, h.config.ApplySeed(ctx, bad), domain.ErrConfiguration)
}
