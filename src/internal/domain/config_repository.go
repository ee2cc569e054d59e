package domain

import "context"

type ConfigRepository interface {
	UpsertFeeTier(ctx context.Context, tier FeeTier) (FeeTier, error)
	GetFeeTier(ctx context.Context, id string) (FeeTier, error)
	ListFeeTiers(ctx context.Context) ([]FeeTier, error)
	UpsertReleasePolicy(ctx context.Context, policy ReleasePolicy) (ReleasePolicy, error)
	GetReleasePolicy(ctx context.Context, id string) (ReleasePolicy, error)
	ListReleasePolicies(ctx context.Context) ([]ReleasePolicy, error)
	Version(ctx context.Context) (int64, error)
}
