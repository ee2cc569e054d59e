package models

import (
	"errors"
	"strings"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/domain"
)

type CreateEscrowAccountRequest struct {
	UserID   string `json:"userId"`
	Provider string `json:"provider"`
	Currency string `json:"currency"`
}

func (r CreateEscrowAccountRequest) Validate() error {
	var errs []string

	if strings.TrimSpace(r.UserID) == "" {
		errs = append(errs, "userId is required")
	}

	provider := domain.Provider(strings.TrimSpace(r.Provider))
	if provider == "" {
		errs = append(errs, "provider is required")
	} else if !provider.Valid() {
		errs = append(errs, "provider must be one of stripe, escrow_com, internal")
	}

	ccy := domain.NormalizeCurrency(r.Currency)
	if ccy == "" {
		errs = append(errs, "currency is required")
	} else if !domain.ValidCurrency(ccy) {
		errs = append(errs, "currency must be a 3 letter ISO-4217 code")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

type AccountStatusRequest struct {
	ActorID string `json:"actorId"`
}

func (r AccountStatusRequest) Validate() error {
	if strings.TrimSpace(r.ActorID) == "" {
		return errors.New("actorId is required")
	}
	return nil
}

type AccountResponse struct {
	ID                  string     `json:"id"`
	UserID              string     `json:"userId"`
	Provider            string     `json:"provider"`
	Currency            string     `json:"currency"`
	Status              string     `json:"status"`
	CurrentBalance      int64      `json:"currentBalance"`
	PendingReleaseTotal int64      `json:"pendingReleaseTotal"`
	WalletAccountID     string     `json:"walletAccountId"`
	WalletBalance       int64      `json:"walletBalance"`
	LastReconciledAt    *time.Time `json:"lastReconciledAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

func NewAccountResponse(account domain.EscrowAccount) AccountResponse {
	return AccountResponse{
		ID:                  account.ID,
		UserID:              account.UserID,
		Provider:            string(account.Provider),
		Currency:            account.Currency,
		Status:              string(account.Status),
		CurrentBalance:      account.CurrentBalance,
		PendingReleaseTotal: account.PendingReleaseTotal,
		WalletAccountID:     account.WalletAccountID,
		WalletBalance:       account.WalletBalance,
		LastReconciledAt:    account.LastReconciledAt,
		CreatedAt:           account.CreatedAt,
		UpdatedAt:           account.UpdatedAt,
	}
}

type ReconciliationResponse struct {
	AccountID       string    `json:"accountId"`
	Match           bool      `json:"match"`
	ChainValid      bool      `json:"chainValid"`
	ComputedBalance int64     `json:"computedBalance"`
	StoredBalance   int64     `json:"storedBalance"`
	ComputedPending int64     `json:"computedPending"`
	StoredPending   int64     `json:"storedPending"`
	ComputedWallet  int64     `json:"computedWallet"`
	StoredWallet    int64     `json:"storedWallet"`
	CheckedAt       time.Time `json:"checkedAt"`
}

type LedgerEntryResponse struct {
	EntryID              int64     `json:"entryId"`
	AccountID            string    `json:"accountId"`
	EntryType            string    `json:"entryType"`
	Direction            string    `json:"direction"`
	Amount               int64     `json:"amount"`
	Currency             string    `json:"currency"`
	Reference            string    `json:"reference"`
	RelatedTransactionID string    `json:"relatedTransactionId"`
	OccurredAt           time.Time `json:"occurredAt"`
	RunningBalanceAfter  int64     `json:"runningBalanceAfter"`
}

func NewLedgerEntryResponses(entries []domain.LedgerEntry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, LedgerEntryResponse{
			EntryID:              entry.EntryID,
			AccountID:            entry.AccountID,
			EntryType:            string(entry.EntryType),
			Direction:            string(entry.Direction),
			Amount:               entry.Amount,
			Currency:             entry.Currency,
			Reference:            entry.Reference,
			RelatedTransactionID: entry.RelatedTransactionID,
			OccurredAt:           entry.OccurredAt,
			RunningBalanceAfter:  entry.RunningBalanceAfter,
		})
	}
	return out
}
