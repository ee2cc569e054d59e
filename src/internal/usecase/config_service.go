package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/config"
	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const (
	feeTierLockKey = "config:fee-tiers"
	policyLockKey  = "config:release-policies"
)

// ConfigService owns fee tiers and release policies. Writes are validated
// before commit; reads go through a short-lived immutable snapshot.
type ConfigService struct {
	store  domain.Store
	locker domain.Locker
	ttl    time.Duration
	clock  func() time.Time

	group      singleflight.Group
	mu         sync.Mutex
	cached     *domain.ConfigSnapshot
	expiresAt  time.Time
	generation uint64
}

func NewConfigService(store domain.Store, locker domain.Locker, ttl time.Duration, clock func() time.Time) *ConfigService {
	if clock == nil {
		clock = time.Now
	}
	return &ConfigService{
		store:  store,
		locker: locker,
		ttl:    ttl,
		clock:  clock,
	}
}

func (s *ConfigService) Snapshot(ctx context.Context) (domain.ConfigSnapshot, error) {
	s.mu.Lock()
	if s.cached != nil && s.clock().Before(s.expiresAt) {
		snapshot := *s.cached
		s.mu.Unlock()
		return snapshot, nil
	}
	generation := s.generation
	s.mu.Unlock()

	value, err, _ := s.group.Do("snapshot", func() (any, error) {
		return s.loadSnapshot(ctx, generation)
	})
	if err != nil {
		return domain.ConfigSnapshot{}, err
	}

	return value.(domain.ConfigSnapshot), nil
}

func (s *ConfigService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.generation++
	s.mu.Unlock()
}

func (s *ConfigService) loadSnapshot(ctx context.Context, generation uint64) (domain.ConfigSnapshot, error) {
	var snapshot domain.ConfigSnapshot
	err := s.store.ReadSnapshot(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		version, err := uow.Config().Version(ctx)
		if err != nil {
			return err
		}
		tiers, err := uow.Config().ListFeeTiers(ctx)
		if err != nil {
			return err
		}
		policies, err := uow.Config().ListReleasePolicies(ctx)
		if err != nil {
			return err
		}

		snapshot = domain.ConfigSnapshot{
			Version:  version,
			FeeTiers: activeTiers(tiers),
			Policies: activePolicies(policies),
			LoadedAt: s.clock(),
		}
		return nil
	})
	if err != nil {
		logger.Error("config service load snapshot failed", err, nil)
		return domain.ConfigSnapshot{}, fmt.Errorf("load config snapshot: %w", err)
	}

	s.mu.Lock()
	if s.generation == generation && s.ttl > 0 {
		cached := snapshot
		s.cached = &cached
		s.expiresAt = s.clock().Add(s.ttl)
	}
	s.mu.Unlock()

	return snapshot, nil
}

func (s *ConfigService) UpsertFeeTier(ctx context.Context, tier domain.FeeTier) (domain.FeeTier, error) {
	logger.Info("config service upsert fee tier request", logger.Fields{
		"id":       tier.ID,
		"provider": tier.Provider,
		"currency": tier.Currency,
		"min":      tier.MinimumAmount,
		"max":      tier.MaximumAmount,
	})

	tier.Currency = domain.NormalizeCurrency(tier.Currency)
	tier.ID = strings.TrimSpace(tier.ID)
	if tier.Status == "" {
		tier.Status = domain.ConfigStatusActive
	}
	if err := validateFeeTier(tier); err != nil {
		logger.Error("config service upsert fee tier validation failed", err, nil)
		return domain.FeeTier{}, err
	}

	unlock, err := s.locker.Acquire(ctx, feeTierLockKey)
	if err != nil {
		return domain.FeeTier{}, err
	}
	defer unlock()

	now := s.clock().UTC()
	var saved domain.FeeTier
	err = s.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		tier.CreatedAt = now
		if tier.ID == "" {
			tier.ID = uuid.NewString()
		} else {
			existing, err := uow.Config().GetFeeTier(ctx, tier.ID)
			switch {
			case err == nil:
				if !existing.SamePricing(tier) {
					return fmt.Errorf("%w: fee tier %s pricing cannot change in place, deactivate it and create a new tier", domain.ErrConfiguration, tier.ID)
				}
				tier.CreatedAt = existing.CreatedAt
				tier.Version = existing.Version
			case !errors.Is(err, domain.ErrRecordNotFound):
				return err
			}
		}

		existing, err := uow.Config().ListFeeTiers(ctx)
		if err != nil {
			return err
		}
		if err := checkTierOverlap(tier, existing); err != nil {
			return err
		}

		tier.Version++
		tier.UpdatedAt = now
		saved, err = uow.Config().UpsertFeeTier(ctx, tier)
		return err
	})
	if err != nil {
		logger.Error("config service upsert fee tier failed", err, logger.Fields{"id": tier.ID})
		return domain.FeeTier{}, err
	}

	s.Invalidate()
	logger.Info("config service upsert fee tier success", logger.Fields{
		"id":      saved.ID,
		"version": saved.Version,
		"status":  saved.Status,
	})
	return saved, nil
}

// DeactivateFeeTier soft-deletes a tier; historical transactions keep referencing it.
func (s *ConfigService) DeactivateFeeTier(ctx context.Context, id string) (domain.FeeTier, error) {
	var tier domain.FeeTier
	err := s.store.ReadSnapshot(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		tier, err = uow.Config().GetFeeTier(ctx, strings.TrimSpace(id))
		return err
	})
	if err != nil {
		return domain.FeeTier{}, err
	}

	tier.Status = domain.ConfigStatusInactive
	return s.UpsertFeeTier(ctx, tier)
}

func (s *ConfigService) ListFeeTiers(ctx context.Context) ([]domain.FeeTier, error) {
	var tiers []domain.FeeTier
	err := s.store.ReadSnapshot(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		tiers, err = uow.Config().ListFeeTiers(ctx)
		return err
	})
	return tiers, err
}

func (s *ConfigService) UpsertReleasePolicy(ctx context.Context, policy domain.ReleasePolicy) (domain.ReleasePolicy, error) {
	logger.Info("config service upsert release policy request", logger.Fields{
		"id":         policy.ID,
		"policyType": policy.PolicyType,
		"provider":   policy.Provider,
		"currency":   policy.Currency,
		"orderIndex": policy.OrderIndex,
	})

	policy.Currency = domain.NormalizeCurrency(policy.Currency)
	policy.ID = strings.TrimSpace(policy.ID)
	if policy.Status == "" {
		policy.Status = domain.ConfigStatusActive
	}
	if err := validateReleasePolicy(policy); err != nil {
		logger.Error("config service upsert release policy validation failed", err, nil)
		return domain.ReleasePolicy{}, err
	}

	unlock, err := s.locker.Acquire(ctx, policyLockKey)
	if err != nil {
		return domain.ReleasePolicy{}, err
	}
	defer unlock()

	now := s.clock().UTC()
	var saved domain.ReleasePolicy
	err = s.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		policy.CreatedAt = now
		if policy.ID == "" {
			policy.ID = uuid.NewString()
		} else {
			existing, err := uow.Config().GetReleasePolicy(ctx, policy.ID)
			switch {
			case err == nil:
				if !existing.SameRule(policy) {
					return fmt.Errorf("%w: release policy %s rule cannot change in place, deactivate it and create a new policy", domain.ErrConfiguration, policy.ID)
				}
				policy.CreatedAt = existing.CreatedAt
				policy.Version = existing.Version
			case !errors.Is(err, domain.ErrRecordNotFound):
				return err
			}
		}

		existing, err := uow.Config().ListReleasePolicies(ctx)
		if err != nil {
			return err
		}
		if err := checkPolicyOrder(policy, existing); err != nil {
			return err
		}

		policy.Version++
		policy.UpdatedAt = now
		saved, err = uow.Config().UpsertReleasePolicy(ctx, policy)
		return err
	})
	if err != nil {
		logger.Error("config service upsert release policy failed", err, logger.Fields{"id": policy.ID})
		return domain.ReleasePolicy{}, err
	}

	s.Invalidate()
	logger.Info("config service upsert release policy success", logger.Fields{
		"id":      saved.ID,
		"version": saved.Version,
		"status":  saved.Status,
	})
	return saved, nil
}

func (s *ConfigService) DeactivateReleasePolicy(ctx context.Context, id string) (domain.ReleasePolicy, error) {
	var policy domain.ReleasePolicy
	err := s.store.ReadSnapshot(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		policy, err = uow.Config().GetReleasePolicy(ctx, strings.TrimSpace(id))
		return err
	})
	if err != nil {
		return domain.ReleasePolicy{}, err
	}

	policy.Status = domain.ConfigStatusInactive
	return s.UpsertReleasePolicy(ctx, policy)
}

func (s *ConfigService) ListReleasePolicies(ctx context.Context) ([]domain.ReleasePolicy, error) {
	var policies []domain.ReleasePolicy
	err := s.store.ReadSnapshot(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		policies, err = uow.Config().ListReleasePolicies(ctx)
		return err
	})
	return policies, err
}

// ApplySeed pushes a seed file through the same validated upsert path as API writes.
func (s *ConfigService) ApplySeed(ctx context.Context, seed config.Seed) error {
	for i, item := range seed.FeeTiers {
		percent := decimal.Zero
		if strings.TrimSpace(item.PercentFee) != "" {
			parsed, err := decimal.NewFromString(strings.TrimSpace(item.PercentFee))
			if err != nil {
				return fmt.Errorf("%w: seed fee tier %d percentFee: %v", domain.ErrConfiguration, i, err)
			}
			percent = parsed
		}

		if _, err := s.UpsertFeeTier(ctx, domain.FeeTier{
			ID:            item.ID,
			Provider:      domain.Provider(strings.TrimSpace(item.Provider)),
			Currency:      item.Currency,
			MinimumAmount: item.MinimumAmount,
			MaximumAmount: item.MaximumAmount,
			PercentFee:    percent,
			FlatFee:       item.FlatFee,
			Status:        domain.ConfigStatus(strings.TrimSpace(item.Status)),
		}); err != nil {
			return fmt.Errorf("seed fee tier %d: %w", i, err)
		}
	}

	for i, item := range seed.ReleasePolicies {
		if _, err := s.UpsertReleasePolicy(ctx, domain.ReleasePolicy{
			ID:                     item.ID,
			PolicyType:             domain.PolicyType(strings.TrimSpace(item.PolicyType)),
			Provider:               domain.Provider(strings.TrimSpace(item.Provider)),
			Currency:               item.Currency,
			ThresholdAmount:        item.ThresholdAmount,
			ThresholdHours:         item.ThresholdHours,
			RequiresComplianceHold: item.RequiresComplianceHold,
			RequiresManualApproval: item.RequiresManualApproval,
			OrderIndex:             item.OrderIndex,
			Status:                 domain.ConfigStatus(strings.TrimSpace(item.Status)),
		}); err != nil {
			return fmt.Errorf("seed release policy %d: %w", i, err)
		}
	}

	logger.Info("config service seed applied", logger.Fields{
		"feeTiers":        len(seed.FeeTiers),
		"releasePolicies": len(seed.ReleasePolicies),
	})
	return nil
}

func activeTiers(tiers []domain.FeeTier) []domain.FeeTier {
	out := make([]domain.FeeTier, 0, len(tiers))
	for _, tier := range tiers {
		if tier.Status == domain.ConfigStatusActive {
			out = append(out, tier)
		}
	}
	return out
}

func activePolicies(policies []domain.ReleasePolicy) []domain.ReleasePolicy {
	out := make([]domain.ReleasePolicy, 0, len(policies))
	for _, policy := range policies {
		if policy.Status == domain.ConfigStatusActive {
			out = append(out, policy)
		}
	}
	return out
}
