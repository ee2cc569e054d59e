package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
	"github.com/google/uuid"
)

const maxReferenceLength = 128

type ConfigSnapshotter interface {
	Snapshot(ctx context.Context) (domain.ConfigSnapshot, error)
}

type HoldRequest struct {
	AccountID   string
	GrossAmount int64
	Reference   string
	Metadata    map[string]string
}

// EscrowService is the escrow transaction state machine. Every mutation runs
// under the affected account locks and commits in a single unit of work.
type EscrowService struct {
	store    domain.Store
	locker   domain.Locker
	config   ConfigSnapshotter
	notifier domain.SettlementNotifier
	clock    func() time.Time
}

type EscrowOption func(*EscrowService)

func WithClock(clock func() time.Time) EscrowOption {
	return func(s *EscrowService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithSettlementNotifier(notifier domain.SettlementNotifier) EscrowOption {
	return func(s *EscrowService) {
		s.notifier = notifier
	}
}

func NewEscrowService(store domain.Store, locker domain.Locker, config ConfigSnapshotter, opts ...EscrowOption) *EscrowService {
	s := &EscrowService{
		store:  store,
		locker: locker,
		config: config,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func accountLockKey(accountID string) string {
	return "account:" + accountID
}

func feeLedgerLockKey(currency string) string {
	return "ledger:" + domain.PlatformFeeAccountID(currency)
}

func (s *EscrowService) now() time.Time {
	return s.clock().UTC()
}

func (s *EscrowService) CreateEscrowAccount(ctx context.Context, userID string, provider domain.Provider, currency string) (domain.EscrowAccount, error) {
	userID = strings.TrimSpace(userID)
	currency = domain.NormalizeCurrency(currency)
	logger.Info("escrow service create account request", logger.Fields{
		"userId":   userID,
		"provider": provider,
		"currency": currency,
	})

	if userID == "" {
		return domain.EscrowAccount{}, fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
	}
	if !provider.Valid() {
		return domain.EscrowAccount{}, fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, provider)
	}
	if !domain.ValidCurrency(currency) {
		return domain.EscrowAccount{}, fmt.Errorf("%w: currency must be a 3 letter ISO-4217 code", domain.ErrInvalidInput)
	}

	unlock, err := s.locker.Acquire(ctx, "owner:"+userID+":"+string(provider)+":"+currency)
	if err != nil {
		return domain.EscrowAccount{}, err
	}
	defer unlock()

	var account domain.EscrowAccount
	err = s.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		existing, err := uow.Accounts().GetByOwner(ctx, userID, provider, currency)
		if err == nil {
			account = existing
			return nil
		}
		if !errors.Is(err, domain.ErrRecordNotFound) {
			return err
		}

		now := s.now()
		id := uuid.NewString()
		account, err = uow.Accounts().Create(ctx, domain.EscrowAccount{
			ID:              id,
			UserID:          userID,
			Provider:        provider,
			Currency:        currency,
			Status:          domain.AccountStatusActive,
			WalletAccountID: domain.WalletAccountID(id),
			CreatedAt:       now,
			UpdatedAt:       now,
			Version:         1,
		})
		return err
	})
	if err != nil {
		logger.Error("escrow service create account failed", err, logger.Fields{"userId": userID})
		return domain.EscrowAccount{}, err
	}

	logger.Info("escrow service create account success", logger.Fields{
		"accountId": account.ID,
		"userId":    account.UserID,
		"status":    account.Status,
	})
	return account, nil
}

func (s *EscrowService) GetAccount(ctx context.Context, accountID string) (domain.EscrowAccount, error) {
	var account domain.EscrowAccount
	err := s.store.ReadSnapshot(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		account, err = uow.Accounts().Get(ctx, strings.TrimSpace(accountID))
		return err
	})
	return account, err
}

func (s *EscrowService) ActivateAccount(ctx context.Context, accountID string, actorID string) (domain.EscrowAccount, error) {
	return s.setAccountStatus(ctx, accountID, actorID, domain.AccountStatusActive)
}

func (s *EscrowService) SuspendAccount(ctx context.Context, accountID string, actorID string) (domain.EscrowAccount, error) {
	return s.setAccountStatus(ctx, accountID, actorID, domain.AccountStatusSuspended)
}

// CloseAccount is only allowed once every hold on the account reached a terminal state.
func (s *EscrowService) CloseAccount(ctx context.Context, accountID string, actorID string) (domain.EscrowAccount, error) {
	return s.setAccountStatus(ctx, accountID, actorID, domain.AccountStatusClosed)
}

func (s *EscrowService) setAccountStatus(ctx context.Context, accountID string, actorID string, next domain.AccountStatus) (domain.EscrowAccount, error) {
	accountID = strings.TrimSpace(accountID)
	actorID = strings.TrimSpace(actorID)
	logger.Info("escrow service account status request", logger.Fields{
		"accountId": accountID,
		"actorId":   actorID,
		"status":    next,
	})

	if actorID == "" {
		return domain.EscrowAccount{}, fmt.Errorf("%w: actorId is required", domain.ErrInvalidInput)
	}

	unlock, err := s.locker.Acquire(ctx, accountLockKey(accountID))
	if err != nil {
		return domain.EscrowAccount{}, err
	}
	defer unlock()

	var account domain.EscrowAccount
	err = s.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		account, err = uow.Accounts().GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if account.Status == next {
			return nil
		}
		if !account.CanTransitionTo(next) {
			return fmt.Errorf("%w: account %s cannot move from %s to %s", domain.ErrInvalidTransition, account.ID, account.Status, next)
		}
		if next == domain.AccountStatusClosed && (account.PendingReleaseTotal != 0 || account.CurrentBalance != 0) {
			return fmt.Errorf("%w: account %s still holds %d in escrow", domain.ErrInvalidTransition, account.ID, account.CurrentBalance)
		}

		account.Status = next
		account.UpdatedAt = s.now()
		account, err = uow.Accounts().Update(ctx, account)
		return err
	})
	if err != nil {
		logger.Error("escrow service account status failed", err, logger.Fields{"accountId": accountID})
		return domain.EscrowAccount{}, err
	}

	logger.Info("escrow service account status success", logger.Fields{
		"accountId": account.ID,
		"status":    account.Status,
		"actorId":   actorID,
	})
	return account, nil
}

// HoldFunds places funds in escrow. Replaying a reference returns the stored
// transaction without touching the ledger.
func (s *EscrowService) HoldFunds(ctx context.Context, req HoldRequest) (domain.EscrowTransaction, error) {
	req.AccountID = strings.TrimSpace(req.AccountID)
	req.Reference = strings.TrimSpace(req.Reference)
	logger.Info("escrow service hold funds request", logger.Fields{
		"accountId":   req.AccountID,
		"grossAmount": req.GrossAmount,
		"reference":   req.Reference,
	})

	if err := validateHoldRequest(req); err != nil {
		logger.Error("escrow service hold funds validation failed", err, nil)
		return domain.EscrowTransaction{}, err
	}

	account, err := s.GetAccount(ctx, req.AccountID)
	if err != nil {
		return domain.EscrowTransaction{}, err
	}

	snapshot, err := s.config.Snapshot(ctx)
	if err != nil {
		return domain.EscrowTransaction{}, err
	}

	createdAt := s.now()
	draft := domain.EscrowTransaction{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		Reference:   req.Reference,
		GrossAmount: req.GrossAmount,
		Currency:    account.Currency,
		State:       domain.StateHeld,
		Metadata:    cloneMetadata(req.Metadata),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
		Version:     1,
	}

	fee := ResolveFee(snapshot, account.Provider, account.Currency, req.GrossAmount)
	draft.FeeAmount = fee.FeeAmount
	draft.NetAmount = req.GrossAmount - fee.FeeAmount
	draft.FeeTierID = fee.TierID
	decision := EvaluateRelease(draft, account, snapshot.Policies)

	keys := []string{accountLockKey(account.ID)}
	if decision.Action == domain.ActionImmediate {
		keys = append(keys, feeLedgerLockKey(account.Currency))
	}
	unlock, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		return domain.EscrowTransaction{}, err
	}

	var (
		result   domain.EscrowTransaction
		saved    domain.EscrowAccount
		replayed bool
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		existing, err := uow.Transactions().GetByReference(ctx, account.ID, req.Reference)
		if err == nil {
			result, replayed = existing, true
			return nil
		}
		if !errors.Is(err, domain.ErrRecordNotFound) {
			return err
		}

		current, err := uow.Accounts().GetForUpdate(ctx, account.ID)
		if err != nil {
			return err
		}
		if current.Status != domain.AccountStatusActive {
			return fmt.Errorf("%w: account %s is %s", domain.ErrAccountNotActive, current.ID, current.Status)
		}

		tx := draft.Clone()
		tx.AuditTrail = []domain.AuditRecord{{
			ToState:   domain.StateHeld,
			ActorID:   domain.SystemActor,
			Timestamp: createdAt,
			Reason:    "funds held",
		}}

		p := newPosting(uow)
		if err := p.hold(ctx, &current, &tx, createdAt); err != nil {
			return err
		}
		if err := s.applyDecision(ctx, p, &current, &tx, decision, snapshot.Version); err != nil {
			return err
		}
		if err := p.verify(current, tx); err != nil {
			return err
		}

		current.UpdatedAt = createdAt
		if saved, err = uow.Accounts().Update(ctx, current); err != nil {
			return err
		}
		result, err = uow.Transactions().Create(ctx, tx)
		return err
	})
	unlock()

	if errors.Is(err, domain.ErrDuplicateReference) {
		// Another instance committed the same reference first.
		return s.GetTransactionByReference(ctx, account.ID, req.Reference)
	}
	if err != nil {
		logger.Error("escrow service hold funds failed", err, logger.Fields{
			"accountId": req.AccountID,
			"reference": req.Reference,
		})
		return domain.EscrowTransaction{}, err
	}

	if replayed {
		logger.Info("escrow service hold funds replayed", logger.Fields{
			"transactionId": result.ID,
			"reference":     result.Reference,
			"state":         result.State,
		})
		return result, nil
	}

	if result.State == domain.StateReleased {
		s.notifyReleased(ctx, saved, result)
	}

	logger.Info("escrow service hold funds success", logger.Fields{
		"transactionId": result.ID,
		"state":         result.State,
		"grossAmount":   result.GrossAmount,
		"feeAmount":     result.FeeAmount,
		"netAmount":     result.NetAmount,
		"feeMatched":    fee.Matched,
		"decision":      decision.Action,
	})
	return result, nil
}

func (s *EscrowService) applyDecision(ctx context.Context, p *posting, account *domain.EscrowAccount, tx *domain.EscrowTransaction, decision domain.ReleaseDecision, configVersion int64) error {
	at := tx.CreatedAt
	tx.RequiresCompliance = decision.RequiresCompliance

	switch decision.Action {
	case domain.ActionImmediate:
		return p.release(ctx, account, tx, domain.SystemActor, at, decisionReason(decision, configVersion, "released immediately"))
	case domain.ActionScheduled:
		if decision.ScheduledAt == nil {
			return fmt.Errorf("%w: scheduled decision without release time", domain.ErrInvariantViolation)
		}
		scheduledAt := decision.ScheduledAt.UTC()
		tx.ScheduledReleaseAt = &scheduledAt
		tx.Transition(domain.StateScheduled, domain.SystemActor, at, decisionReason(decision, configVersion, "release scheduled"))
		return nil
	default:
		reason := "awaiting manual approval"
		if decision.PolicyID == nil {
			reason = "no release policy matched"
		} else if decision.RequiresCompliance {
			reason = "compliance hold"
		}
		tx.Transition(domain.StateHoldForApproval, domain.SystemActor, at, decisionReason(decision, configVersion, reason))
		return nil
	}
}

func decisionReason(decision domain.ReleaseDecision, configVersion int64, reason string) string {
	if decision.PolicyID == nil {
		return fmt.Sprintf("%s (config v%d)", reason, configVersion)
	}
	return fmt.Sprintf("%s by policy %s (config v%d)", reason, *decision.PolicyID, configVersion)
}

// ReleaseTransaction releases held, scheduled or approved funds. Releasing an
// already released transaction is a no-op so that retries are harmless.
func (s *EscrowService) ReleaseTransaction(ctx context.Context, transactionID string, actorID string) (domain.EscrowTransaction, error) {
	actorID = strings.TrimSpace(actorID)
	return s.transition(ctx, "release", transactionID, true, func(p *posting, account *domain.EscrowAccount, tx *domain.EscrowTransaction, now time.Time) (bool, error) {
		switch tx.State {
		case domain.StateReleased:
			return false, nil
		case domain.StateRefunded:
			return false, fmt.Errorf("%w: transaction %s is already refunded", domain.ErrInvalidTransition, tx.ID)
		case domain.StateDisputed:
			return false, fmt.Errorf("%w: transaction %s is disputed and must be resolved", domain.ErrInvalidTransition, tx.ID)
		case domain.StateHoldForApproval:
			if actorID == "" {
				return false, fmt.Errorf("%w: an approving actorId is required", domain.ErrInvalidInput)
			}
			if err := requireOperable(*account); err != nil {
				return false, err
			}
			return true, p.release(ctx, account, tx, actorID, now, "approved")
		case domain.StateHeld, domain.StateScheduled:
			if err := requireOperable(*account); err != nil {
				return false, err
			}
			actor := actorID
			if actor == "" {
				actor = domain.SystemActor
			}
			return true, p.release(ctx, account, tx, actor, now, "released")
		default:
			return false, fmt.Errorf("%w: unknown state %q", domain.ErrInvariantViolation, tx.State)
		}
	})
}

// RefundTransaction returns the gross amount to the payer side. It is never automatic.
func (s *EscrowService) RefundTransaction(ctx context.Context, transactionID string, actorID string, reason string) (domain.EscrowTransaction, error) {
	actorID = strings.TrimSpace(actorID)
	reason = strings.TrimSpace(reason)
	if actorID == "" {
		return domain.EscrowTransaction{}, fmt.Errorf("%w: actorId is required", domain.ErrInvalidInput)
	}

	return s.transition(ctx, "refund", transactionID, false, func(p *posting, account *domain.EscrowAccount, tx *domain.EscrowTransaction, now time.Time) (bool, error) {
		switch tx.State {
		case domain.StateRefunded:
			return false, nil
		case domain.StateReleased:
			return false, fmt.Errorf("%w: transaction %s is already released", domain.ErrInvalidTransition, tx.ID)
		case domain.StateDisputed:
			return false, fmt.Errorf("%w: transaction %s is disputed and must be resolved", domain.ErrInvalidTransition, tx.ID)
		case domain.StateHeld, domain.StateScheduled, domain.StateHoldForApproval:
			if account.Status == domain.AccountStatusClosed {
				return false, fmt.Errorf("%w: account %s is closed", domain.ErrAccountNotActive, account.ID)
			}
			return true, p.refund(ctx, account, tx, actorID, now, reason)
		default:
			return false, fmt.Errorf("%w: unknown state %q", domain.ErrInvariantViolation, tx.State)
		}
	})
}

// DisputeTransaction freezes a held or scheduled transaction until a resolution.
func (s *EscrowService) DisputeTransaction(ctx context.Context, transactionID string, actorID string, reason string) (domain.EscrowTransaction, error) {
	actorID = strings.TrimSpace(actorID)
	reason = strings.TrimSpace(reason)
	if actorID == "" {
		return domain.EscrowTransaction{}, fmt.Errorf("%w: actorId is required", domain.ErrInvalidInput)
	}

	return s.transition(ctx, "dispute", transactionID, false, func(p *posting, account *domain.EscrowAccount, tx *domain.EscrowTransaction, now time.Time) (bool, error) {
		if tx.State != domain.StateHeld && tx.State != domain.StateScheduled {
			return false, fmt.Errorf("%w: transaction %s cannot be disputed from %s", domain.ErrInvalidTransition, tx.ID, tx.State)
		}
		tx.Transition(domain.StateDisputed, actorID, now, reason)
		return true, nil
	})
}

func (s *EscrowService) ResolveDispute(ctx context.Context, transactionID string, actorID string, outcome domain.TransactionState) (domain.EscrowTransaction, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return domain.EscrowTransaction{}, fmt.Errorf("%w: a resolving actorId is required", domain.ErrInvalidInput)
	}
	if outcome != domain.StateReleased && outcome != domain.StateRefunded {
		return domain.EscrowTransaction{}, fmt.Errorf("%w: outcome must be released or refunded", domain.ErrInvalidInput)
	}

	return s.transition(ctx, "resolve dispute", transactionID, outcome == domain.StateReleased, func(p *posting, account *domain.EscrowAccount, tx *domain.EscrowTransaction, now time.Time) (bool, error) {
		if tx.State == outcome && resolvedFromDispute(*tx) {
			return false, nil
		}
		if tx.State != domain.StateDisputed {
			return false, fmt.Errorf("%w: transaction %s is not disputed", domain.ErrInvalidTransition, tx.ID)
		}
		if account.Status == domain.AccountStatusClosed {
			return false, fmt.Errorf("%w: account %s is closed", domain.ErrAccountNotActive, account.ID)
		}

		if outcome == domain.StateReleased {
			return true, p.release(ctx, account, tx, actorID, now, "dispute resolved")
		}
		return true, p.refund(ctx, account, tx, actorID, now, "dispute resolved")
	})
}

// AnnotateTransaction merges metadata keys. It is the only change allowed on
// terminal transactions.
func (s *EscrowService) AnnotateTransaction(ctx context.Context, transactionID string, metadata map[string]string) (domain.EscrowTransaction, error) {
	if len(metadata) == 0 {
		return domain.EscrowTransaction{}, fmt.Errorf("%w: metadata is required", domain.ErrInvalidInput)
	}

	return s.transition(ctx, "annotate", transactionID, false, func(p *posting, account *domain.EscrowAccount, tx *domain.EscrowTransaction, now time.Time) (bool, error) {
		if tx.Metadata == nil {
			tx.Metadata = make(map[string]string, len(metadata))
		}
		for k, v := range metadata {
			tx.Metadata[k] = v
		}
		tx.UpdatedAt = now
		return true, nil
	})
}

// releaseDue is the scheduler's entry point. It reports false without error
// when the transaction is no longer due, for example because another worker
// already released it or it was disputed in the meantime.
func (s *EscrowService) releaseDue(ctx context.Context, transactionID string, now time.Time) (bool, error) {
	released := false
	_, err := s.transitionAt(ctx, "scheduled release", transactionID, true, now, func(p *posting, account *domain.EscrowAccount, tx *domain.EscrowTransaction, at time.Time) (bool, error) {
		if tx.State != domain.StateScheduled || tx.ScheduledReleaseAt == nil || tx.ScheduledReleaseAt.After(at) {
			return false, nil
		}
		if err := requireOperable(*account); err != nil {
			return false, err
		}
		released = true
		return true, p.release(ctx, account, tx, domain.SystemActor, at, "scheduled release")
	})
	return released, err
}

type transitionFunc func(p *posting, account *domain.EscrowAccount, tx *domain.EscrowTransaction, now time.Time) (bool, error)

func (s *EscrowService) transition(ctx context.Context, op string, transactionID string, movesToWallet bool, fn transitionFunc) (domain.EscrowTransaction, error) {
	return s.transitionAt(ctx, op, transactionID, movesToWallet, time.Time{}, fn)
}

func (s *EscrowService) transitionAt(ctx context.Context, op string, transactionID string, movesToWallet bool, at time.Time, fn transitionFunc) (domain.EscrowTransaction, error) {
	transactionID = strings.TrimSpace(transactionID)
	logger.Info("escrow service "+op+" request", logger.Fields{"transactionId": transactionID})

	// Account id and currency never change, so they can be read before locking.
	current, err := s.GetTransaction(ctx, transactionID)
	if err != nil {
		return domain.EscrowTransaction{}, err
	}

	keys := []string{accountLockKey(current.AccountID)}
	if movesToWallet {
		keys = append(keys, feeLedgerLockKey(current.Currency))
	}
	unlock, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		return domain.EscrowTransaction{}, err
	}

	var (
		result  domain.EscrowTransaction
		account domain.EscrowAccount
		changed bool
		before  domain.TransactionState
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		tx, err := uow.Transactions().GetForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		account, err = uow.Accounts().GetForUpdate(ctx, tx.AccountID)
		if err != nil {
			return err
		}

		now := at
		if now.IsZero() {
			now = s.now()
		}
		before = tx.State

		p := newPosting(uow)
		changed, err = fn(p, &account, &tx, now)
		if err != nil {
			return err
		}
		if !changed {
			result = tx
			return nil
		}
		if before.Terminal() && tx.State != before {
			return fmt.Errorf("%w: terminal transaction %s cannot move to %s", domain.ErrInvariantViolation, tx.ID, tx.State)
		}
		if err := p.verify(account, tx); err != nil {
			return err
		}

		if result, err = uow.Transactions().Update(ctx, tx); err != nil {
			return err
		}
		if tx.State != before {
			account.UpdatedAt = now
			account, err = uow.Accounts().Update(ctx, account)
		}
		return err
	})
	unlock()

	if err != nil {
		logger.Error("escrow service "+op+" failed", err, logger.Fields{"transactionId": transactionID})
		return domain.EscrowTransaction{}, err
	}

	if changed && result.State == domain.StateReleased && before != domain.StateReleased {
		s.notifyReleased(ctx, account, result)
	}

	logger.Info("escrow service "+op+" success", logger.Fields{
		"transactionId": result.ID,
		"from":          before,
		"state":         result.State,
		"changed":       changed,
	})
	return result, nil
}

func (s *EscrowService) notifyReleased(ctx context.Context, account domain.EscrowAccount, tx domain.EscrowTransaction) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Released(ctx, account, tx); err != nil {
		logger.Error("escrow service settlement notification failed", err, logger.Fields{
			"transactionId": tx.ID,
			"accountId":     account.ID,
		})
	}
}

func (s *EscrowService) GetTransaction(ctx context.Context, transactionID string) (domain.EscrowTransaction, error) {
	var tx domain.EscrowTransaction
	err := s.store.ReadSnapshot(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		tx, err = uow.Transactions().Get(ctx, strings.TrimSpace(transactionID))
		return err
	})
	return tx, err
}

func (s *EscrowService) GetTransactionByReference(ctx context.Context, accountID string, reference string) (domain.EscrowTransaction, error) {
	var tx domain.EscrowTransaction
	err := s.store.ReadSnapshot(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		tx, err = uow.Transactions().GetByReference(ctx, strings.TrimSpace(accountID), strings.TrimSpace(reference))
		return err
	})
	return tx, err
}

func (s *EscrowService) ListTransactions(ctx context.Context, accountID string, state *domain.TransactionState) ([]domain.EscrowTransaction, error) {
	var txs []domain.EscrowTransaction
	err := s.store.ReadSnapshot(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		txs, err = uow.Transactions().ListByAccount(ctx, strings.TrimSpace(accountID), state)
		return err
	})
	return txs, err
}

// ListLedgerEntries accepts an escrow account id, its wallet id or a platform fee ledger id.
func (s *EscrowService) ListLedgerEntries(ctx context.Context, ledgerAccountID string, afterEntryID int64, limit int) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	err := s.store.ReadSnapshot(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		entries, err = uow.Ledger().List(ctx, strings.TrimSpace(ledgerAccountID), afterEntryID, limit)
		return err
	})
	return entries, err
}

func validateHoldRequest(req HoldRequest) error {
	var errs []string
	if req.AccountID == "" {
		errs = append(errs, "accountId is required")
	}
	if req.GrossAmount <= 0 {
		errs = append(errs, "grossAmount must be greater than zero")
	}
	if req.Reference == "" {
		errs = append(errs, "reference is required")
	} else if len(req.Reference) > maxReferenceLength {
		errs = append(errs, fmt.Sprintf("reference must be at most %d characters", maxReferenceLength))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(errs, "; "))
	}
	return nil
}

func requireOperable(account domain.EscrowAccount) error {
	if account.Status == domain.AccountStatusSuspended || account.Status == domain.AccountStatusClosed {
		return fmt.Errorf("%w: account %s is %s", domain.ErrAccountNotActive, account.ID, account.Status)
	}
	return nil
}

func resolvedFromDispute(tx domain.EscrowTransaction) bool {
	if len(tx.AuditTrail) == 0 {
		return false
	}
	return tx.AuditTrail[len(tx.AuditTrail)-1].FromState == domain.StateDisputed
}

func cloneMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
