package models

import (
	"errors"
	"strings"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/shopspring/decimal"
)

type FeeTierRequest struct {
	ID            string `json:"id,omitempty"`
	Provider      string `json:"provider"`
	Currency      string `json:"currency"`
	MinimumAmount int64  `json:"minimumAmount"`
	MaximumAmount *int64 `json:"maximumAmount,omitempty"`
	PercentFee    string `json:"percentFee"`
	FlatFee       int64  `json:"flatFee"`
	Status        string `json:"status,omitempty"`
}

func (r FeeTierRequest) Validate() error {
	var errs []string

	if strings.TrimSpace(r.Provider) == "" {
		errs = append(errs, "provider is required")
	}
	if strings.TrimSpace(r.Currency) == "" {
		errs = append(errs, "currency is required")
	}

	percent := strings.TrimSpace(r.PercentFee)
	if percent == "" {
		errs = append(errs, "percentFee is required")
	} else if _, err := decimal.NewFromString(percent); err != nil {
		errs = append(errs, "percentFee must be numeric")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ToDomain assumes Validate passed.
func (r FeeTierRequest) ToDomain() domain.FeeTier {
	percent, _ := decimal.NewFromString(strings.TrimSpace(r.PercentFee))
	return domain.FeeTier{
		ID:            strings.TrimSpace(r.ID),
		Provider:      domain.Provider(strings.TrimSpace(r.Provider)),
		Currency:      r.Currency,
		MinimumAmount: r.MinimumAmount,
		MaximumAmount: r.MaximumAmount,
		PercentFee:    percent,
		FlatFee:       r.FlatFee,
		Status:        domain.ConfigStatus(strings.TrimSpace(r.Status)),
	}
}

type FeeTierResponse struct {
	ID            string    `json:"id"`
	Provider      string    `json:"provider"`
	Currency      string    `json:"currency"`
	MinimumAmount int64     `json:"minimumAmount"`
	MaximumAmount *int64    `json:"maximumAmount,omitempty"`
	PercentFee    string    `json:"percentFee"`
	FlatFee       int64     `json:"flatFee"`
	Status        string    `json:"status"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func NewFeeTierResponse(tier domain.FeeTier) FeeTierResponse {
	return FeeTierResponse{
		ID:            tier.ID,
		Provider:      string(tier.Provider),
		Currency:      tier.Currency,
		MinimumAmount: tier.MinimumAmount,
		MaximumAmount: tier.MaximumAmount,
		PercentFee:    tier.PercentFee.String(),
		FlatFee:       tier.FlatFee,
		Status:        string(tier.Status),
		Version:       tier.Version,
		CreatedAt:     tier.CreatedAt,
		UpdatedAt:     tier.UpdatedAt,
	}
}

type ReleasePolicyRequest struct {
	ID                     string `json:"id,omitempty"`
	PolicyType             string `json:"policyType"`
	Provider               string `json:"provider,omitempty"`
	Currency               string `json:"currency,omitempty"`
	ThresholdAmount        *int64 `json:"thresholdAmount,omitempty"`
	ThresholdHours         *int64 `json:"thresholdHours,omitempty"`
	RequiresComplianceHold bool   `json:"requiresComplianceHold"`
	RequiresManualApproval bool   `json:"requiresManualApproval"`
	OrderIndex             int    `json:"orderIndex"`
	Status                 string `json:"status,omitempty"`
}

func (r ReleasePolicyRequest) Validate() error {
	if strings.TrimSpace(r.PolicyType) == "" {
		return errors.New("policyType is required")
	}
	return nil
}

func (r ReleasePolicyRequest) ToDomain() domain.ReleasePolicy {
	return domain.ReleasePolicy{
		ID:                     strings.TrimSpace(r.ID),
		PolicyType:             domain.PolicyType(strings.TrimSpace(r.PolicyType)),
		Provider:               domain.Provider(strings.TrimSpace(r.Provider)),
		Currency:               r.Currency,
		ThresholdAmount:        r.ThresholdAmount,
		ThresholdHours:         r.ThresholdHours,
		RequiresComplianceHold: r.RequiresComplianceHold,
		RequiresManualApproval: r.RequiresManualApproval,
		OrderIndex:             r.OrderIndex,
		Status:                 domain.ConfigStatus(strings.TrimSpace(r.Status)),
	}
}

type ReleasePolicyResponse struct {
	ID                     string    `json:"id"`
	PolicyType             string    `json:"policyType"`
	Provider               string    `json:"provider,omitempty"`
	Currency               string    `json:"currency,omitempty"`
	ThresholdAmount        *int64    `json:"thresholdAmount,omitempty"`
	ThresholdHours         *int64    `json:"thresholdHours,omitempty"`
	RequiresComplianceHold bool      `json:"requiresComplianceHold"`
	RequiresManualApproval bool      `json:"requiresManualApproval"`
	OrderIndex             int       `json:"orderIndex"`
	Status                 string    `json:"status"`
	Version                int64     `json:"version"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

func NewReleasePolicyResponse(policy domain.ReleasePolicy) ReleasePolicyResponse {
	return ReleasePolicyResponse{
		ID:                     policy.ID,
		PolicyType:             string(policy.PolicyType),
		Provider:               string(policy.Provider),
		Currency:               policy.Currency,
		ThresholdAmount:        policy.ThresholdAmount,
		ThresholdHours:         policy.ThresholdHours,
		RequiresComplianceHold: policy.RequiresComplianceHold,
		RequiresManualApproval: policy.RequiresManualApproval,
		OrderIndex:             policy.OrderIndex,
		Status:                 string(policy.Status),
		Version:                policy.Version,
		CreatedAt:              policy.CreatedAt,
		UpdatedAt:              policy.UpdatedAt,
	}
}
