package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/adapter/http/models"
	"github.com/api-sage/escrow-engine/src/internal/commons"
	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
	"github.com/api-sage/escrow-engine/src/internal/usecase"
	"github.com/go-chi/chi/v5"
)

const (
	defaultLedgerPageSize = 100
	maxLedgerPageSize     = 500
)

type AccountService interface {
	CreateEscrowAccount(ctx context.Context, userID string, provider domain.Provider, currency string) (domain.EscrowAccount, error)
	GetAccount(ctx context.Context, accountID string) (domain.EscrowAccount, error)
	ActivateAccount(ctx context.Context, accountID string, actorID string) (domain.EscrowAccount, error)
	SuspendAccount(ctx context.Context, accountID string, actorID string) (domain.EscrowAccount, error)
	CloseAccount(ctx context.Context, accountID string, actorID string) (domain.EscrowAccount, error)
	ReconcileAccount(ctx context.Context, accountID string) (usecase.ReconciliationResult, error)
	ListLedgerEntries(ctx context.Context, ledgerAccountID string, afterEntryID int64, limit int) ([]domain.LedgerEntry, error)
}

type AccountController struct {
	service AccountService
}

func NewAccountController(service AccountService) *AccountController {
	return &AccountController{service: service}
}

// RegisterRoutes expects r to be mounted at /accounts.
func (c *AccountController) RegisterRoutes(r chi.Router) {
	r.Post("/", c.createAccount)
	r.Get("/{accountID}", c.getAccount)
	r.Post("/{accountID}/activate", c.setStatus(c.service.ActivateAccount))
	r.Post("/{accountID}/suspend", c.setStatus(c.service.SuspendAccount))
	r.Post("/{accountID}/close", c.setStatus(c.service.CloseAccount))
	r.Get("/{accountID}/reconcile", c.reconcile)
	r.Get("/{accountID}/ledger", c.listLedger)
}

func (c *AccountController) createAccount(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.CreateEscrowAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError[models.AccountResponse](w, r, "invalid request body", err, start)
		return
	}
	logRequest(r, req)

	if err := req.Validate(); err != nil {
		writeValidationError[models.AccountResponse](w, r, "validation failed", err, start)
		return
	}

	account, err := c.service.CreateEscrowAccount(r.Context(), req.UserID, domain.Provider(strings.TrimSpace(req.Provider)), req.Currency)
	if err != nil {
		writeServiceError[models.AccountResponse](w, r, err, start, logger.Fields{"userId": req.UserID})
		return
	}

	writeSuccess(w, r, http.StatusCreated, "escrow account ready", models.NewAccountResponse(account), start)
}

func (c *AccountController) getAccount(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	accountID := chi.URLParam(r, "accountID")
	logRequest(r, nil)

	account, err := c.service.GetAccount(r.Context(), accountID)
	if err != nil {
		writeServiceError[models.AccountResponse](w, r, err, start, logger.Fields{"accountId": accountID})
		return
	}

	writeSuccess(w, r, http.StatusOK, "account retrieved", models.NewAccountResponse(account), start)
}

type accountStatusFunc func(ctx context.Context, accountID string, actorID string) (domain.EscrowAccount, error)

func (c *AccountController) setStatus(fn accountStatusFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		accountID := chi.URLParam(r, "accountID")

		var req models.AccountStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeValidationError[models.AccountResponse](w, r, "invalid request body", err, start)
			return
		}
		logRequest(r, req)

		if err := req.Validate(); err != nil {
			writeValidationError[models.AccountResponse](w, r, "validation failed", err, start)
			return
		}

		account, err := fn(r.Context(), accountID, req.ActorID)
		if err != nil {
			writeServiceError[models.AccountResponse](w, r, err, start, logger.Fields{"accountId": accountID})
			return
		}

		writeSuccess(w, r, http.StatusOK, "account status updated", models.NewAccountResponse(account), start)
	}
}

func (c *AccountController) reconcile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	accountID := chi.URLParam(r, "accountID")
	logRequest(r, nil)

	result, err := c.service.ReconcileAccount(r.Context(), accountID)
	data := models.ReconciliationResponse(result)
	if errors.Is(err, domain.ErrReconciliationMismatch) {
		response := commons.ClassifiedErrorResponse[models.ReconciliationResponse]("reconciliation mismatch", string(domain.ClassIntegrity), err.Error())
		response.Data = &data
		logResponse(r, http.StatusConflict, response, start)
		writeJSON(w, http.StatusConflict, response)
		return
	}
	if err != nil {
		writeServiceError[models.ReconciliationResponse](w, r, err, start, logger.Fields{"accountId": accountID})
		return
	}

	writeSuccess(w, r, http.StatusOK, "account reconciled", data, start)
}

// listLedger pages through the escrow ledger, or the wallet ledger with ?book=wallet.
func (c *AccountController) listLedger(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	accountID := chi.URLParam(r, "accountID")
	logRequest(r, nil)

	query := r.URL.Query()
	ledgerAccountID := accountID
	switch strings.TrimSpace(query.Get("book")) {
	case "", "escrow":
	case "wallet":
		ledgerAccountID = domain.WalletAccountID(accountID)
	default:
		writeValidationError[commons.Page[models.LedgerEntryResponse]](w, r, "validation failed", errors.New("book must be escrow or wallet"), start)
		return
	}

	after, err := int64Query(query.Get("after"), 0)
	if err != nil || after < 0 {
		writeValidationError[commons.Page[models.LedgerEntryResponse]](w, r, "validation failed", errors.New("after must be a non-negative integer"), start)
		return
	}
	limit, err := int64Query(query.Get("limit"), defaultLedgerPageSize)
	if err != nil || limit <= 0 || limit > maxLedgerPageSize {
		writeValidationError[commons.Page[models.LedgerEntryResponse]](w, r, "validation failed", errors.New("limit must be between 1 and 500"), start)
		return
	}

	if _, err := c.service.GetAccount(r.Context(), accountID); err != nil {
		writeServiceError[commons.Page[models.LedgerEntryResponse]](w, r, err, start, logger.Fields{"accountId": accountID})
		return
	}

	entries, err := c.service.ListLedgerEntries(r.Context(), ledgerAccountID, after, int(limit))
	if err != nil {
		writeServiceError[commons.Page[models.LedgerEntryResponse]](w, r, err, start, logger.Fields{"accountId": accountID})
		return
	}

	page := commons.Page[models.LedgerEntryResponse]{Items: models.NewLedgerEntryResponses(entries)}
	if int64(len(entries)) == limit {
		page.NextCursor = entries[len(entries)-1].EntryID
	}
	writeSuccess(w, r, http.StatusOK, "ledger entries retrieved", page, start)
}

func int64Query(raw string, fallback int64) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
