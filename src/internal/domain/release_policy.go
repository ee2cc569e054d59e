package domain

import "time"

type PolicyType string

const (
	PolicyThresholdAmount PolicyType = "threshold_amount"
	PolicyThresholdHours  PolicyType = "threshold_hours"
	PolicyManualOnly      PolicyType = "manual_only"
)

func (p PolicyType) Valid() bool {
	switch p {
	case PolicyThresholdAmount, PolicyThresholdHours, PolicyManualOnly:
		return true
	default:
		return false
	}
}

// ReleasePolicy is a tagged variant: PolicyType selects which threshold field
// is meaningful. Empty Provider or Currency matches any account.
type ReleasePolicy struct {
	ID                     string
	PolicyType             PolicyType
	Provider               Provider
	Currency               string
	ThresholdAmount        *int64
	ThresholdHours         *int64
	RequiresComplianceHold bool
	RequiresManualApproval bool
	OrderIndex             int
	Status                 ConfigStatus
	Version                int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (p ReleasePolicy) Applies(provider Provider, currency string) bool {
	if p.Status != ConfigStatusActive {
		return false
	}
	if p.Provider != "" && p.Provider != provider {
		return false
	}
	return p.Currency == "" || p.Currency == currency
}

// SameRule reports whether both policies decide a hold the same way. Order and
// status may change in place; the rule itself may not.
func (p ReleasePolicy) SameRule(other ReleasePolicy) bool {
	return p.SameScope(other) &&
		p.PolicyType == other.PolicyType &&
		sameLimit(p.ThresholdAmount, other.ThresholdAmount) &&
		sameLimit(p.ThresholdHours, other.ThresholdHours) &&
		p.RequiresComplianceHold == other.RequiresComplianceHold &&
		p.RequiresManualApproval == other.RequiresManualApproval
}

func (p ReleasePolicy) SameScope(other ReleasePolicy) bool {
	return p.Provider == other.Provider && p.Currency == other.Currency
}

type ReleaseAction string

const (
	ActionImmediate       ReleaseAction = "immediate"
	ActionScheduled       ReleaseAction = "scheduled"
	ActionHoldForApproval ReleaseAction = "hold_for_approval"
)

type ReleaseDecision struct {
	Action             ReleaseAction
	ScheduledAt        *time.Time
	RequiresCompliance bool
	PolicyID           *string
}

// ConfigSnapshot is an immutable view of fee tiers and release policies taken
// at one configuration version.
type ConfigSnapshot struct {
	Version  int64
	FeeTiers []FeeTier
	Policies []ReleasePolicy
	LoadedAt time.Time
}
