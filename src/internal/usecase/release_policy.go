package usecase

import (
	"fmt"
	"sort"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/domain"
)

// maxThresholdHours caps a release delay at 100 years, well inside the
// range a time.Duration can hold.
const maxThresholdHours = 100 * 365 * 24

// EvaluateRelease walks the applicable policies in ascending OrderIndex and
// lets the first matching one decide. Without a match the funds wait for
// approval; money is never auto-released under an undefined policy.
func EvaluateRelease(tx domain.EscrowTransaction, account domain.EscrowAccount, policies []domain.ReleasePolicy) domain.ReleaseDecision {
	for _, policy := range orderedPolicies(policies, account) {
		decision, matched := matchPolicy(policy, tx)
		if !matched {
			continue
		}

		policyID := policy.ID
		decision.PolicyID = &policyID
		decision.RequiresCompliance = policy.RequiresComplianceHold
		if policy.RequiresComplianceHold || policy.RequiresManualApproval {
			decision.Action = domain.ActionHoldForApproval
			decision.ScheduledAt = nil
		}
		return decision
	}

	return domain.ReleaseDecision{Action: domain.ActionHoldForApproval}
}

func matchPolicy(policy domain.ReleasePolicy, tx domain.EscrowTransaction) (domain.ReleaseDecision, bool) {
	switch policy.PolicyType {
	case domain.PolicyThresholdAmount:
		if policy.ThresholdAmount == nil || tx.NetAmount > *policy.ThresholdAmount {
			return domain.ReleaseDecision{}, false
		}
		return domain.ReleaseDecision{Action: domain.ActionImmediate}, true
	case domain.PolicyThresholdHours:
		if policy.ThresholdHours == nil || *policy.ThresholdHours <= 0 || *policy.ThresholdHours > maxThresholdHours {
			return domain.ReleaseDecision{}, false
		}
		at := tx.CreatedAt.Add(time.Duration(*policy.ThresholdHours) * time.Hour)
		return domain.ReleaseDecision{Action: domain.ActionScheduled, ScheduledAt: &at}, true
	case domain.PolicyManualOnly:
		return domain.ReleaseDecision{Action: domain.ActionHoldForApproval}, true
	default:
		return domain.ReleaseDecision{}, false
	}
}

func orderedPolicies(policies []domain.ReleasePolicy, account domain.EscrowAccount) []domain.ReleasePolicy {
	out := make([]domain.ReleasePolicy, 0, len(policies))
	for _, policy := range policies {
		if policy.Applies(account.Provider, account.Currency) {
			out = append(out, policy)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func validateReleasePolicy(policy domain.ReleasePolicy) error {
	if !policy.PolicyType.Valid() {
		return fmt.Errorf("%w: unknown policy type %q", domain.ErrConfiguration, policy.PolicyType)
	}
	if policy.Provider != "" && !policy.Provider.Valid() {
		return fmt.Errorf("%w: unknown provider %q", domain.ErrConfiguration, policy.Provider)
	}
	if policy.Currency != "" && !domain.ValidCurrency(policy.Currency) {
		return fmt.Errorf("%w: currency must be a 3 letter ISO-4217 code", domain.ErrConfiguration)
	}
	if policy.OrderIndex < 0 {
		return fmt.Errorf("%w: orderIndex cannot be negative", domain.ErrConfiguration)
	}
	if policy.Status != domain.ConfigStatusActive && policy.Status != domain.ConfigStatusInactive {
		return fmt.Errorf("%w: unknown status %q", domain.ErrConfiguration, policy.Status)
	}

	switch policy.PolicyType {
	case domain.PolicyThresholdAmount:
		if policy.ThresholdAmount == nil || *policy.ThresholdAmount < 0 {
			return fmt.Errorf("%w: threshold_amount policy needs a non-negative thresholdAmount", domain.ErrConfiguration)
		}
		if policy.ThresholdHours != nil {
			return fmt.Errorf("%w: threshold_amount policy cannot carry thresholdHours", domain.ErrConfiguration)
		}
	case domain.PolicyThresholdHours:
		if policy.ThresholdHours == nil || *policy.ThresholdHours <= 0 {
			return fmt.Errorf("%w: threshold_hours policy needs a positive thresholdHours", domain.ErrConfiguration)
		}
		if *policy.ThresholdHours > maxThresholdHours {
			return fmt.Errorf("%w: thresholdHours cannot exceed %d", domain.ErrConfiguration, maxThresholdHours)
		}
		if policy.ThresholdAmount != nil {
			return fmt.Errorf("%w: threshold_hours policy cannot carry thresholdAmount", domain.ErrConfiguration)
		}
	case domain.PolicyManualOnly:
		if policy.ThresholdAmount != nil || policy.ThresholdHours != nil {
			return fmt.Errorf("%w: manual_only policy takes no thresholds", domain.ErrConfiguration)
		}
	}
	return nil
}

func checkPolicyOrder(candidate domain.ReleasePolicy, existing []domain.ReleasePolicy) error {
	if candidate.Status != domain.ConfigStatusActive {
		return nil
	}
	for _, other := range existing {
		if other.ID == candidate.ID || other.Status != domain.ConfigStatusActive || !candidate.SameScope(other) {
			continue
		}
		if other.OrderIndex == candidate.OrderIndex {
			return fmt.Errorf("%w: orderIndex %d already used by policy %s", domain.ErrConfiguration, candidate.OrderIndex, other.ID)
		}
	}
	return nil
}
