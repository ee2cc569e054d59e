package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
)

var errReadOnly = errors.New("memory store: write attempted in a read-only snapshot")

// Store keeps every table in process memory. Units of work stage their writes
// and apply them atomically on commit after checking that nothing they read
// for update has changed underneath them.
type Store struct {
	mu            sync.RWMutex
	accounts      map[string]domain.EscrowAccount
	transactions  map[string]domain.EscrowTransaction
	references    map[string]string
	ledger        map[string][]domain.LedgerEntry
	feeTiers      map[string]domain.FeeTier
	policies      map[string]domain.ReleasePolicy
	configVersion int64
}

func NewStore() *Store {
	return &Store{
		accounts:     make(map[string]domain.EscrowAccount),
		transactions: make(map[string]domain.EscrowTransaction),
		references:   make(map[string]string),
		ledger:       make(map[string][]domain.LedgerEntry),
		feeTiers:     make(map[string]domain.FeeTier),
		policies:     make(map[string]domain.ReleasePolicy),
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	uow := newUnitOfWork(s, false)
	if err := fn(ctx, uow); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(uow)
}

func (s *Store) ReadSnapshot(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, newUnitOfWork(s, true))
}

// view runs read against committed state. Snapshot units already hold the
// read lock for their whole lifetime.
func (s *Store) view(u *unitOfWork, read func()) {
	if u.readOnly {
		read()
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	read()
}

func (s *Store) commit(u *unitOfWork) error {
	if u.empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkConflicts(u); err != nil {
		logger.Warn("memory store commit conflict", logger.Fields{"reason": err.Error()})
		return err
	}

	for id, account := range u.accounts {
		s.accounts[id] = account
	}
	for id, tx := range u.transactions {
		s.transactions[id] = tx.Clone()
		s.references[referenceKey(tx.AccountID, tx.Reference)] = id
	}
	for accountID, entries := range u.entries {
		s.ledger[accountID] = append(s.ledger[accountID], entries...)
	}
	for id, tier := range u.feeTiers {
		s.feeTiers[id] = tier
	}
	for id, policy := range u.policies {
		s.policies[id] = policy
	}
	if len(u.feeTiers) > 0 || len(u.policies) > 0 {
		s.configVersion++
	}
	return nil
}

func (s *Store) checkConflicts(u *unitOfWork) error {
	for id, base := range u.accountBase {
		current, ok := s.accounts[id]
		if base == 0 {
			if ok {
				return fmt.Errorf("%w: account %s already exists", domain.ErrResourceBusy, id)
			}
			continue
		}
		if !ok || current.Version != base {
			return fmt.Errorf("%w: account %s changed concurrently", domain.ErrResourceBusy, id)
		}
	}
	for _, account := range u.createdAccounts() {
		for _, existing := range s.accounts {
			if existing.UserID == account.UserID && existing.Provider == account.Provider && existing.Currency == account.Currency {
				return fmt.Errorf("%w: account for owner %s already exists", domain.ErrResourceBusy, account.UserID)
			}
		}
	}

	for id, base := range u.transactionBase {
		current, ok := s.transactions[id]
		if base == 0 {
			if ok {
				return fmt.Errorf("%w: transaction %s already exists", domain.ErrResourceBusy, id)
			}
			tx := u.transactions[id]
			if _, taken := s.references[referenceKey(tx.AccountID, tx.Reference)]; taken {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateReference, tx.Reference)
			}
			continue
		}
		if !ok || current.Version != base {
			return fmt.Errorf("%w: transaction %s changed concurrently", domain.ErrResourceBusy, id)
		}
	}

	for accountID, head := range u.ledgerBase {
		if int64(len(s.ledger[accountID])) != head {
			return fmt.Errorf("%w: ledger %s advanced concurrently", domain.ErrResourceBusy, accountID)
		}
	}
	return nil
}

func referenceKey(accountID string, reference string) string {
	return accountID + "\x00" + reference
}

type unitOfWork struct {
	store    *Store
	readOnly bool

	accounts        map[string]domain.EscrowAccount
	accountBase     map[string]int64
	transactions    map[string]domain.EscrowTransaction
	transactionBase map[string]int64
	entries         map[string][]domain.LedgerEntry
	ledgerBase      map[string]int64
	feeTiers        map[string]domain.FeeTier
	policies        map[string]domain.ReleasePolicy
}

func newUnitOfWork(store *Store, readOnly bool) *unitOfWork {
	return &unitOfWork{
		store:           store,
		readOnly:        readOnly,
		accounts:        make(map[string]domain.EscrowAccount),
		accountBase:     make(map[string]int64),
		transactions:    make(map[string]domain.EscrowTransaction),
		transactionBase: make(map[string]int64),
		entries:         make(map[string][]domain.LedgerEntry),
		ledgerBase:      make(map[string]int64),
		feeTiers:        make(map[string]domain.FeeTier),
		policies:        make(map[string]domain.ReleasePolicy),
	}
}

func (u *unitOfWork) Accounts() domain.AccountRepository {
	return accountRepository{u}
}

func (u *unitOfWork) Transactions() domain.TransactionRepository {
	return transactionRepository{u}
}

func (u *unitOfWork) Ledger() domain.LedgerRepository {
	return ledgerRepository{u}
}

func (u *unitOfWork) Config() domain.ConfigRepository {
	return configRepository{u}
}

func (u *unitOfWork) empty() bool {
	return len(u.accounts) == 0 && len(u.transactions) == 0 && len(u.entries) == 0 &&
		len(u.feeTiers) == 0 && len(u.policies) == 0
}

func (u *unitOfWork) createdAccounts() []domain.EscrowAccount {
	var out []domain.EscrowAccount
	for id, base := range u.accountBase {
		if base == 0 {
			out = append(out, u.accounts[id])
		}
	}
	return out
}

func (u *unitOfWork) writable() error {
	if u.readOnly {
		return errReadOnly
	}
	return nil
}
