package usecase

import (
	"fmt"

	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type FeeResolution struct {
	FeeAmount int64
	TierID    *string
	Matched   bool
}

// ResolveFee picks the active tier of (provider, currency) whose [min, max)
// range contains amount. A missing tier yields a zero fee so that a
// configuration gap never blocks a hold.
func ResolveFee(snapshot domain.ConfigSnapshot, provider domain.Provider, currency string, amount int64) FeeResolution {
	for _, tier := range snapshot.FeeTiers {
		if tier.Status != domain.ConfigStatusActive || tier.Provider != provider || tier.Currency != currency {
			continue
		}
		if !tier.Contains(amount) {
			continue
		}

		fee := computeFee(tier, amount)
		if fee > amount {
			logger.Warn("fee schedule fee capped at gross amount", logger.Fields{
				"tierId":   tier.ID,
				"amount":   amount,
				"fee":      fee,
				"provider": provider,
				"currency": currency,
			})
			fee = amount
		}

		tierID := tier.ID
		return FeeResolution{FeeAmount: fee, TierID: &tierID, Matched: true}
	}

	logger.Warn("fee schedule no fee tier matched", logger.Fields{
		"provider":      provider,
		"currency":      currency,
		"amount":        amount,
		"configVersion": snapshot.Version,
	})
	return FeeResolution{}
}

// computeFee rounds the percentage part half-up to the minor unit.
func computeFee(tier domain.FeeTier, amount int64) int64 {
	percentPart := decimal.NewFromInt(amount).Mul(tier.PercentFee).Div(hundred).Round(0)
	return percentPart.IntPart() + tier.FlatFee
}

func validateFeeTier(tier domain.FeeTier) error {
	if !tier.Provider.Valid() {
		return fmt.Errorf("%w: unknown provider %q", domain.ErrConfiguration, tier.Provider)
	}
	if !domain.ValidCurrency(tier.Currency) {
		return fmt.Errorf("%w: currency must be a 3 letter ISO-4217 code", domain.ErrConfiguration)
	}
	if tier.MinimumAmount < 0 {
		return fmt.Errorf("%w: minimumAmount cannot be negative", domain.ErrConfiguration)
	}
	if tier.MaximumAmount != nil && *tier.MaximumAmount <= tier.MinimumAmount {
		return fmt.Errorf("%w: maximumAmount must be greater than minimumAmount", domain.ErrConfiguration)
	}
	if tier.PercentFee.IsNegative() || tier.PercentFee.GreaterThan(hundred) {
		return fmt.Errorf("%w: percentFee must be between 0 and 100", domain.ErrConfiguration)
	}
	if tier.FlatFee < 0 {
		return fmt.Errorf("%w: flatFee cannot be negative", domain.ErrConfiguration)
	}
	if tier.Status != domain.ConfigStatusActive && tier.Status != domain.ConfigStatusInactive {
		return fmt.Errorf("%w: unknown status %q", domain.ErrConfiguration, tier.Status)
	}
	return nil
}

// checkTierOverlap rejects an active tier whose range overlaps another active
// tier of the same provider and currency.
func checkTierOverlap(candidate domain.FeeTier, existing []domain.FeeTier) error {
	if candidate.Status != domain.ConfigStatusActive {
		return nil
	}
	for _, other := range existing {
		if other.ID == candidate.ID || other.Status != domain.ConfigStatusActive || !candidate.SameScope(other) {
			continue
		}
		if candidate.Overlaps(other) {
			return fmt.Errorf("%w: fee tier range overlaps active tier %s", domain.ErrConfiguration, other.ID)
		}
	}
	return nil
}
