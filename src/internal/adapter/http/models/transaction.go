package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/domain"
)

const maxReferenceLength = 128

type HoldFundsRequest struct {
	GrossAmount int64             `json:"grossAmount"`
	Reference   string            `json:"reference"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (r HoldFundsRequest) Validate() error {
	var errs []string

	if r.GrossAmount <= 0 {
		errs = append(errs, "grossAmount must be greater than zero")
	}

	reference := strings.TrimSpace(r.Reference)
	if reference == "" {
		errs = append(errs, "reference is required")
	} else if len(reference) > maxReferenceLength {
		errs = append(errs, fmt.Sprintf("reference must be at most %d characters", maxReferenceLength))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

type TransitionRequest struct {
	ActorID string `json:"actorId"`
	Reason  string `json:"reason,omitempty"`
}

type ResolveDisputeRequest struct {
	ActorID string `json:"actorId"`
	Outcome string `json:"outcome"`
}

func (r ResolveDisputeRequest) Validate() error {
	var errs []string

	if strings.TrimSpace(r.ActorID) == "" {
		errs = append(errs, "actorId is required")
	}
	outcome := domain.TransactionState(strings.TrimSpace(r.Outcome))
	if outcome != domain.StateReleased && outcome != domain.StateRefunded {
		errs = append(errs, "outcome must be released or refunded")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

type AnnotateRequest struct {
	Metadata map[string]string `json:"metadata"`
}

func (r AnnotateRequest) Validate() error {
	if len(r.Metadata) == 0 {
		return errors.New("metadata is required")
	}
	return nil
}

type AuditRecordResponse struct {
	FromState string    `json:"fromState,omitempty"`
	ToState   string    `json:"toState"`
	ActorID   string    `json:"actorId"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

type TransactionResponse struct {
	ID                 string                `json:"id"`
	AccountID          string                `json:"accountId"`
	Reference          string                `json:"reference"`
	GrossAmount        int64                 `json:"grossAmount"`
	FeeAmount          int64                 `json:"feeAmount"`
	NetAmount          int64                 `json:"netAmount"`
	Currency           string                `json:"currency"`
	FeeTierID          *string               `json:"feeTierId,omitempty"`
	State              string                `json:"state"`
	ScheduledReleaseAt *time.Time            `json:"scheduledReleaseAt,omitempty"`
	ReleasedAt         *time.Time            `json:"releasedAt,omitempty"`
	RefundedAt         *time.Time            `json:"refundedAt,omitempty"`
	RequiresCompliance bool                  `json:"requiresCompliance"`
	Metadata           map[string]string     `json:"metadata,omitempty"`
	AuditTrail         []AuditRecordResponse `json:"auditTrail"`
	CreatedAt          time.Time             `json:"createdAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
}

func NewTransactionResponse(tx domain.EscrowTransaction) TransactionResponse {
	audit := make([]AuditRecordResponse, 0, len(tx.AuditTrail))
	for _, record := range tx.AuditTrail {
		audit = append(audit, AuditRecordResponse{
			FromState: string(record.FromState),
			ToState:   string(record.ToState),
			ActorID:   record.ActorID,
			Timestamp: record.Timestamp,
			Reason:    record.Reason,
		})
	}

	return TransactionResponse{
		ID:                 tx.ID,
		AccountID:          tx.AccountID,
		Reference:          tx.Reference,
		GrossAmount:        tx.GrossAmount,
		FeeAmount:          tx.FeeAmount,
		NetAmount:          tx.NetAmount,
		Currency:           tx.Currency,
		FeeTierID:          tx.FeeTierID,
		State:              string(tx.State),
		ScheduledReleaseAt: tx.ScheduledReleaseAt,
		ReleasedAt:         tx.ReleasedAt,
		RefundedAt:         tx.RefundedAt,
		RequiresCompliance: tx.RequiresCompliance,
		Metadata:           tx.Metadata,
		AuditTrail:         audit,
		CreatedAt:          tx.CreatedAt,
		UpdatedAt:          tx.UpdatedAt,
	}
}

func NewTransactionResponses(txs []domain.EscrowTransaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, NewTransactionResponse(tx))
	}
	return out
}

type TickRequest struct {
	Now *time.Time `json:"now,omitempty"`
}

type TickResponse struct {
	ReleasedCount        int      `json:"releasedCount"`
	SkippedCount         int      `json:"skippedCount"`
	FailedTransactionIDs []string `json:"failedTransactionIds"`
}
