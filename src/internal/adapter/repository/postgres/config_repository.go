package postgres

import (
	"context"
	"database/sql"

	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
)

type ConfigRepository struct {
	tx *sql.Tx
}

func (r *ConfigRepository) UpsertFeeTier(ctx context.Context, tier domain.FeeTier) (domain.FeeTier, error) {
	logger.Info("config repository upsert fee tier", logger.Fields{
		"id":      tier.ID,
		"version": tier.Version,
		"status":  tier.Status,
	})

	const query = `
INSERT INTO fee_tiers (
	id,
	provider,
	currency,
	minimum_amount,
	maximum_amount,
	percent_fee,
	flat_fee,
	status,
	version,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE
SET provider = EXCLUDED.provider,
    currency = EXCLUDED.currency,
    minimum_amount = EXCLUDED.minimum_amount,
    maximum_amount = EXCLUDED.maximum_amount,
    percent_fee = EXCLUDED.percent_fee,
    flat_fee = EXCLUDED.flat_fee,
    status = EXCLUDED.status,
    version = EXCLUDED.version,
    updated_at = EXCLUDED.updated_at`

	if _, err := r.tx.ExecContext(
		ctx,
		query,
		tier.ID,
		tier.Provider,
		tier.Currency,
		tier.MinimumAmount,
		nullInt64(tier.MaximumAmount),
		tier.PercentFee,
		tier.FlatFee,
		tier.Status,
		tier.Version,
		tier.CreatedAt,
		tier.UpdatedAt,
	); err != nil {
		logger.Error("config repository upsert fee tier failed", err, logger.Fields{"id": tier.ID})
		return domain.FeeTier{}, mapError("upsert fee tier", err)
	}

	if err := r.bumpVersion(ctx); err != nil {
		return domain.FeeTier{}, err
	}
	return tier, nil
}

func (r *ConfigRepository) GetFeeTier(ctx context.Context, id string) (domain.FeeTier, error) {
	const query = `
SELECT id, provider, currency, minimum_amount, maximum_amount, percent_fee, flat_fee,
       status, version, created_at, updated_at
FROM fee_tiers
WHERE id = $1`

	tier, err := scanFeeTier(r.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		return domain.FeeTier{}, mapError("get fee tier", err)
	}
	return tier, nil
}

func (r *ConfigRepository) ListFeeTiers(ctx context.Context) ([]domain.FeeTier, error) {
	const query = `
SELECT id, provider, currency, minimum_amount, maximum_amount, percent_fee, flat_fee,
       status, version, created_at, updated_at
FROM fee_tiers
ORDER BY provider, currency, minimum_amount, id`

	rows, err := r.tx.QueryContext(ctx, query)
	if err != nil {
		logger.Error("config repository list fee tiers failed", err, nil)
		return nil, mapError("list fee tiers", err)
	}
	defer rows.Close()

	out := make([]domain.FeeTier, 0)
	for rows.Next() {
		tier, err := scanFeeTier(rows)
		if err != nil {
			return nil, mapError("list fee tiers", err)
		}
		out = append(out, tier)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list fee tiers", err)
	}
	return out, nil
}

func (r *ConfigRepository) UpsertReleasePolicy(ctx context.Context, policy domain.ReleasePolicy) (domain.ReleasePolicy, error) {
	logger.Info("config repository upsert release policy", logger.Fields{
		"id":      policy.ID,
		"version": policy.Version,
		"status":  policy.Status,
	})

	const query = `
INSERT INTO release_policies (
	id,
	policy_type,
	provider,
	currency,
	threshold_amount,
	threshold_hours,
	requires_compliance_hold,
	requires_manual_approval,
	order_index,
	status,
	version,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE
SET policy_type = EXCLUDED.policy_type,
    provider = EXCLUDED.provider,
    currency = EXCLUDED.currency,
    threshold_amount = EXCLUDED.threshold_amount,
    threshold_hours = EXCLUDED.threshold_hours,
    requires_compliance_hold = EXCLUDED.requires_compliance_hold,
    requires_manual_approval = EXCLUDED.requires_manual_approval,
    order_index = EXCLUDED.order_index,
    status = EXCLUDED.status,
    version = EXCLUDED.version,
    updated_at = EXCLUDED.updated_at`

	if _, err := r.tx.ExecContext(
		ctx,
		query,
		policy.ID,
		policy.PolicyType,
		policy.Provider,
		policy.Currency,
		nullInt64(policy.ThresholdAmount),
		nullInt64(policy.ThresholdHours),
		policy.RequiresComplianceHold,
		policy.RequiresManualApproval,
		policy.OrderIndex,
		policy.Status,
		policy.Version,
		policy.CreatedAt,
		policy.UpdatedAt,
	); err != nil {
		logger.Error("config repository upsert release policy failed", err, logger.Fields{"id": policy.ID})
		return domain.ReleasePolicy{}, mapError("upsert release policy", err)
	}

	if err := r.bumpVersion(ctx); err != nil {
		return domain.ReleasePolicy{}, err
	}
	return policy, nil
}

func (r *ConfigRepository) GetReleasePolicy(ctx context.Context, id string) (domain.ReleasePolicy, error) {
	const query = `
SELECT id, policy_type, provider, currency, threshold_amount, threshold_hours,
       requires_compliance_hold, requires_manual_approval, order_index, status,
       version, created_at, updated_at
FROM release_policies
WHERE id = $1`

	policy, err := scanReleasePolicy(r.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		return domain.ReleasePolicy{}, mapError("get release policy", err)
	}
	return policy, nil
}

func (r *ConfigRepository) ListReleasePolicies(ctx context.Context) ([]domain.ReleasePolicy, error) {
	const query = `
SELECT id, policy_type, provider, currency, threshold_amount, threshold_hours,
       requires_compliance_hold, requires_manual_approval, order_index, status,
       version, created_at, updated_at
FROM release_policies
ORDER BY order_index, id`

	rows, err := r.tx.QueryContext(ctx, query)
	if err != nil {
		logger.Error("config repository list release policies failed", err, nil)
		return nil, mapError("list release policies", err)
	}
	defer rows.Close()

	out := make([]domain.ReleasePolicy, 0)
	for rows.Next() {
		policy, err := scanReleasePolicy(rows)
		if err != nil {
			return nil, mapError("list release policies", err)
		}
		out = append(out, policy)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list release policies", err)
	}
	return out, nil
}

func (r *ConfigRepository) Version(ctx context.Context) (int64, error) {
	var version int64
	if err := r.tx.QueryRowContext(ctx, `SELECT version FROM config_version WHERE id = 1`).Scan(&version); err != nil {
		return 0, mapError("read config version", err)
	}
	return version, nil
}

func (r *ConfigRepository) bumpVersion(ctx context.Context) error {
	if _, err := execRequiredRows(ctx, r.tx, `UPDATE config_version SET version = version + 1 WHERE id = 1`); err != nil {
		return mapError("bump config version", err)
	}
	return nil
}

func scanFeeTier(row rowScanner) (domain.FeeTier, error) {
	var (
		tier    domain.FeeTier
		maximum sql.NullInt64
	)
	if err := row.Scan(
		&tier.ID,
		&tier.Provider,
		&tier.Currency,
		&tier.MinimumAmount,
		&maximum,
		&tier.PercentFee,
		&tier.FlatFee,
		&tier.Status,
		&tier.Version,
		&tier.CreatedAt,
		&tier.UpdatedAt,
	); err != nil {
		return domain.FeeTier{}, err
	}
	tier.MaximumAmount = int64Ptr(maximum)
	return tier, nil
}

func scanReleasePolicy(row rowScanner) (domain.ReleasePolicy, error) {
	var (
		policy          domain.ReleasePolicy
		thresholdAmount sql.NullInt64
		thresholdHours  sql.NullInt64
	)
	if err := row.Scan(
		&policy.ID,
		&policy.PolicyType,
		&policy.Provider,
		&policy.Currency,
		&thresholdAmount,
		&thresholdHours,
		&policy.RequiresComplianceHold,
		&policy.RequiresManualApproval,
		&policy.OrderIndex,
		&policy.Status,
		&policy.Version,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	); err != nil {
		return domain.ReleasePolicy{}, err
	}
	policy.ThresholdAmount = int64Ptr(thresholdAmount)
	policy.ThresholdHours = int64Ptr(thresholdHours)
	return policy, nil
}
