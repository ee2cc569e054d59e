package domain

import (
	"strings"
	"time"
)

type Provider string

const (
	ProviderStripe    Provider = "stripe"
	ProviderEscrowCom Provider = "escrow_com"
	ProviderInternal  Provider = "internal"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderStripe, ProviderEscrowCom, ProviderInternal:
		return true
	default:
		return false
	}
}

type AccountStatus string

const (
	AccountStatusPending   AccountStatus = "pending"
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
	AccountStatusClosed    AccountStatus = "closed"
)

type EscrowAccount struct {
	ID                  string
	UserID              string
	Provider            Provider
	Currency            string
	Status              AccountStatus
	CurrentBalance      int64
	PendingReleaseTotal int64
	WalletAccountID     string
	WalletBalance       int64
	LastReconciledAt    *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Version             int64
}

// CanTransitionTo covers the administrative status moves; history is never destroyed.
func (a EscrowAccount) CanTransitionTo(next AccountStatus) bool {
	switch a.Status {
	case AccountStatusPending:
		return next == AccountStatusActive || next == AccountStatusClosed
	case AccountStatusActive:
		return next == AccountStatusSuspended || next == AccountStatusClosed
	case AccountStatusSuspended:
		return next == AccountStatusActive || next == AccountStatusClosed
	default:
		return false
	}
}

func WalletAccountID(accountID string) string {
	return accountID + ":wallet"
}

func PlatformFeeAccountID(currency string) string {
	return "platform-fee:" + NormalizeCurrency(currency)
}

func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

func ValidCurrency(currency string) bool {
	if len(currency) != 3 {
		return false
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
