package controller

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/adapter/http/models"
	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
	"github.com/api-sage/escrow-engine/src/internal/usecase"
	"github.com/go-chi/chi/v5"
)

type TransactionService interface {
	HoldFunds(ctx context.Context, req usecase.HoldRequest) (domain.EscrowTransaction, error)
	GetTransaction(ctx context.Context, transactionID string) (domain.EscrowTransaction, error)
	GetTransactionByReference(ctx context.Context, accountID string, reference string) (domain.EscrowTransaction, error)
	ListTransactions(ctx context.Context, accountID string, state *domain.TransactionState) ([]domain.EscrowTransaction, error)
	ReleaseTransaction(ctx context.Context, transactionID string, actorID string) (domain.EscrowTransaction, error)
	RefundTransaction(ctx context.Context, transactionID string, actorID string, reason string) (domain.EscrowTransaction, error)
	DisputeTransaction(ctx context.Context, transactionID string, actorID string, reason string) (domain.EscrowTransaction, error)
	ResolveDispute(ctx context.Context, transactionID string, actorID string, outcome domain.TransactionState) (domain.EscrowTransaction, error)
	AnnotateTransaction(ctx context.Context, transactionID string, metadata map[string]string) (domain.EscrowTransaction, error)
}

type TransactionController struct {
	service TransactionService
}

func NewTransactionController(service TransactionService) *TransactionController {
	return &TransactionController{service: service}
}

// RegisterAccountRoutes expects r to be mounted at /accounts.
func (c *TransactionController) RegisterAccountRoutes(r chi.Router) {
	r.Post("/{accountID}/holds", c.holdFunds)
	r.Get("/{accountID}/transactions", c.listTransactions)
}

// RegisterRoutes expects r to be mounted at /transactions.
func (c *TransactionController) RegisterRoutes(r chi.Router) {
	r.Get("/{transactionID}", c.getTransaction)
	r.Post("/{transactionID}/release", c.release)
	r.Post("/{transactionID}/refund", c.refund)
	r.Post("/{transactionID}/dispute", c.dispute)
	r.Post("/{transactionID}/resolve", c.resolve)
	r.Patch("/{transactionID}/metadata", c.annotate)
}

func (c *TransactionController) holdFunds(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	accountID := chi.URLParam(r, "accountID")

	var req models.HoldFundsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError[models.TransactionResponse](w, r, "invalid request body", err, start)
		return
	}
	logRequest(r, req)

	if err := req.Validate(); err != nil {
		writeValidationError[models.TransactionResponse](w, r, "validation failed", err, start)
		return
	}

	tx, err := c.service.HoldFunds(r.Context(), usecase.HoldRequest{
		AccountID:   accountID,
		GrossAmount: req.GrossAmount,
		Reference:   strings.TrimSpace(req.Reference),
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeServiceError[models.TransactionResponse](w, r, err, start, logger.Fields{
			"accountId": accountID,
			"reference": req.Reference,
		})
		return
	}

	writeSuccess(w, r, http.StatusCreated, "funds held", models.NewTransactionResponse(tx), start)
}

// listTransactions accepts ?state= to filter, or ?reference= to look up one transaction.
func (c *TransactionController) listTransactions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	accountID := chi.URLParam(r, "accountID")
	logRequest(r, nil)

	query := r.URL.Query()
	if reference := strings.TrimSpace(query.Get("reference")); reference != "" {
		tx, err := c.service.GetTransactionByReference(r.Context(), accountID, reference)
		if err != nil {
			writeServiceError[[]models.TransactionResponse](w, r, err, start, logger.Fields{"accountId": accountID})
			return
		}
		writeSuccess(w, r, http.StatusOK, "transactions retrieved", []models.TransactionResponse{models.NewTransactionResponse(tx)}, start)
		return
	}

	var state *domain.TransactionState
	if raw := strings.TrimSpace(query.Get("state")); raw != "" {
		parsed := domain.TransactionState(raw)
		if !parsed.Valid() {
			writeValidationError[[]models.TransactionResponse](w, r, "validation failed", errInvalidState, start)
			return
		}
		state = &parsed
	}

	txs, err := c.service.ListTransactions(r.Context(), accountID, state)
	if err != nil {
		writeServiceError[[]models.TransactionResponse](w, r, err, start, logger.Fields{"accountId": accountID})
		return
	}

	writeSuccess(w, r, http.StatusOK, "transactions retrieved", models.NewTransactionResponses(txs), start)
}

func (c *TransactionController) getTransaction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	transactionID := chi.URLParam(r, "transactionID")
	logRequest(r, nil)

	tx, err := c.service.GetTransaction(r.Context(), transactionID)
	if err != nil {
		writeServiceError[models.TransactionResponse](w, r, err, start, logger.Fields{"transactionId": transactionID})
		return
	}

	writeSuccess(w, r, http.StatusOK, "transaction retrieved", models.NewTransactionResponse(tx), start)
}

func (c *TransactionController) release(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, "transaction released", func(ctx context.Context, id string, req models.TransitionRequest) (domain.EscrowTransaction, error) {
		return c.service.ReleaseTransaction(ctx, id, req.ActorID)
	})
}

func (c *TransactionController) refund(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, "transaction refunded", func(ctx context.Context, id string, req models.TransitionRequest) (domain.EscrowTransaction, error) {
		return c.service.RefundTransaction(ctx, id, req.ActorID, req.Reason)
	})
}

func (c *TransactionController) dispute(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, "transaction disputed", func(ctx context.Context, id string, req models.TransitionRequest) (domain.EscrowTransaction, error) {
		return c.service.DisputeTransaction(ctx, id, req.ActorID, req.Reason)
	})
}

func (c *TransactionController) transition(
	w http.ResponseWriter,
	r *http.Request,
	message string,
	fn func(ctx context.Context, id string, req models.TransitionRequest) (domain.EscrowTransaction, error),
) {
	start := time.Now()
	transactionID := chi.URLParam(r, "transactionID")

	var req models.TransitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError[models.TransactionResponse](w, r, "invalid request body", err, start)
		return
	}
	logRequest(r, req)

	tx, err := fn(r.Context(), transactionID, req)
	if err != nil {
		writeServiceError[models.TransactionResponse](w, r, err, start, logger.Fields{"transactionId": transactionID})
		return
	}

	writeSuccess(w, r, http.StatusOK, message, models.NewTransactionResponse(tx), start)
}

func (c *TransactionController) resolve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	transactionID := chi.URLParam(r, "transactionID")

	var req models.ResolveDisputeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError[models.TransactionResponse](w, r, "invalid request body", err, start)
		return
	}
	logRequest(r, req)

	if err := req.Validate(); err != nil {
		writeValidationError[models.TransactionResponse](w, r, "validation failed", err, start)
		return
	}

	tx, err := c.service.ResolveDispute(r.Context(), transactionID, req.ActorID, domain.TransactionState(strings.TrimSpace(req.Outcome)))
	if err != nil {
		writeServiceError[models.TransactionResponse](w, r, err, start, logger.Fields{"transactionId": transactionID})
		return
	}

	writeSuccess(w, r, http.StatusOK, "dispute resolved", models.NewTransactionResponse(tx), start)
}

func (c *TransactionController) annotate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	transactionID := chi.URLParam(r, "transactionID")

	var req models.AnnotateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError[models.TransactionResponse](w, r, "invalid request body", err, start)
		return
	}
	logRequest(r, req)

	if err := req.Validate(); err != nil {
		writeValidationError[models.TransactionResponse](w, r, "validation failed", err, start)
		return
	}

	tx, err := c.service.AnnotateTransaction(r.Context(), transactionID, req.Metadata)
	if err != nil {
		writeServiceError[models.TransactionResponse](w, r, err, start, logger.Fields{"transactionId": transactionID})
		return
	}

	writeSuccess(w, r, http.StatusOK, "transaction annotated", models.NewTransactionResponse(tx), start)
}
