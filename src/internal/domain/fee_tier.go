package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ConfigStatus string

const (
	ConfigStatusActive   ConfigStatus = "active"
	ConfigStatusInactive ConfigStatus = "inactive"
)

type FeeTier struct {
	ID            string
	Provider      Provider
	Currency      string
	MinimumAmount int64
	MaximumAmount *int64
	PercentFee    decimal.Decimal
	FlatFee       int64
	Status        ConfigStatus
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Contains reports whether amount falls in the half-open range [min, max).
func (t FeeTier) Contains(amount int64) bool {
	if amount < t.MinimumAmount {
		return false
	}
	return t.MaximumAmount == nil || amount < *t.MaximumAmount
}

func (t FeeTier) Overlaps(other FeeTier) bool {
	// [a, b) and [c, d) overlap iff a < d and c < b, with nil as +inf.
	if t.MaximumAmount != nil && other.MinimumAmount >= *t.MaximumAmount {
		return false
	}
	if other.MaximumAmount != nil && t.MinimumAmount >= *other.MaximumAmount {
		return false
	}
	return true
}

// SamePricing reports whether both tiers charge the same fee over the same
// range. Transactions keep a FeeTierID, so pricing is frozen once stored.
func (t FeeTier) SamePricing(other FeeTier) bool {
	return t.SameScope(other) &&
		t.MinimumAmount == other.MinimumAmount &&
		sameLimit(t.MaximumAmount, other.MaximumAmount) &&
		t.PercentFee.Equal(other.PercentFee) &&
		t.FlatFee == other.FlatFee
}

func sameLimit(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (t FeeTier) SameScope(other FeeTier) bool {
	return t.Provider == other.Provider && t.Currency == other.Currency
}
