package memory

import (
	"context"
	"sort"

	"github.com/api-sage/escrow-engine/src/internal/domain"
)

type configRepository struct {
	u *unitOfWork
}

func (r configRepository) UpsertFeeTier(_ context.Context, tier domain.FeeTier) (domain.FeeTier, error) {
	if err := r.u.writable(); err != nil {
		return domain.FeeTier{}, err
	}
	r.u.feeTiers[tier.ID] = tier
	return tier, nil
}

func (r configRepository) GetFeeTier(_ context.Context, id string) (domain.FeeTier, error) {
	if tier, ok := r.u.feeTiers[id]; ok {
		return tier, nil
	}

	var (
		tier domain.FeeTier
		ok   bool
	)
	r.u.store.view(r.u, func() {
		tier, ok = r.u.store.feeTiers[id]
	})
	if !ok {
		return domain.FeeTier{}, domain.ErrRecordNotFound
	}
	return tier, nil
}

func (r configRepository) ListFeeTiers(_ context.Context) ([]domain.FeeTier, error) {
	merged := make(map[string]domain.FeeTier)
	r.u.store.view(r.u, func() {
		for id, tier := range r.u.store.feeTiers {
			merged[id] = tier
		}
	})
	for id, tier := range r.u.feeTiers {
		merged[id] = tier
	}

	out := make([]domain.FeeTier, 0, len(merged))
	for _, tier := range merged {
		out = append(out, tier)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		if out[i].Currency != out[j].Currency {
			return out[i].Currency < out[j].Currency
		}
		if out[i].MinimumAmount != out[j].MinimumAmount {
			return out[i].MinimumAmount < out[j].MinimumAmount
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r configRepository) UpsertReleasePolicy(_ context.Context, policy domain.ReleasePolicy) (domain.ReleasePolicy, error) {
	if err := r.u.writable(); err != nil {
		return domain.ReleasePolicy{}, err
	}
	r.u.policies[policy.ID] = policy
	return policy, nil
}

func (r configRepository) GetReleasePolicy(_ context.Context, id string) (domain.ReleasePolicy, error) {
	if policy, ok := r.u.policies[id]; ok {
		return policy, nil
	}

	var (
		policy domain.ReleasePolicy
		ok     bool
	)
	r.u.store.view(r.u, func() {
		policy, ok = r.u.store.policies[id]
	})
	if !ok {
		return domain.ReleasePolicy{}, domain.ErrRecordNotFound
	}
	return policy, nil
}

func (r configRepository) ListReleasePolicies(_ context.Context) ([]domain.ReleasePolicy, error) {
	merged := make(map[string]domain.ReleasePolicy)
	r.u.store.view(r.u, func() {
		for id, policy := range r.u.store.policies {
			merged[id] = policy
		}
	})
	for id, policy := range r.u.policies {
		merged[id] = policy
	}

	out := make([]domain.ReleasePolicy, 0, len(merged))
	for _, policy := range merged {
		out = append(out, policy)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r configRepository) Version(_ context.Context) (int64, error) {
	var version int64
	r.u.store.view(r.u, func() {
		version = r.u.store.configVersion
	})
	if len(r.u.feeTiers) > 0 || len(r.u.policies) > 0 {
		version++
	}
	return version, nil
}
