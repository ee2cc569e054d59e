package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
)

type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// NewStore wraps db. lockTimeout bounds every row lock wait inside a unit of
// work; an expired wait surfaces as domain.ErrResourceBusy.
func NewStore(db *sql.DB, lockTimeout time.Duration) *Store {
	return &Store{db: db, lockTimeout: lockTimeout}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("postgres store begin tx failed", err, nil)
		return mapError("begin unit of work", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if s.lockTimeout > 0 {
		setTimeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err = tx.ExecContext(ctx, setTimeout); err != nil {
			return mapError("set lock timeout", err)
		}
	}

	if err = fn(ctx, &unitOfWork{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		logger.Error("postgres store commit failed", err, nil)
		return mapError("commit unit of work", err)
	}
	return nil
}

func (s *Store) ReadSnapshot(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		logger.Error("postgres store begin snapshot failed", err, nil)
		return mapError("begin snapshot", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	return fn(ctx, &unitOfWork{tx: tx, readOnly: true})
}

type unitOfWork struct {
	tx       *sql.Tx
	readOnly bool
}

func (u *unitOfWork) Accounts() domain.AccountRepository {
	return &AccountRepository{tx: u.tx, readOnly: u.readOnly}
}

func (u *unitOfWork) Transactions() domain.TransactionRepository {
	return &TransactionRepository{tx: u.tx, readOnly: u.readOnly}
}

func (u *unitOfWork) Ledger() domain.LedgerRepository {
	return &LedgerRepository{tx: u.tx}
}

func (u *unitOfWork) Config() domain.ConfigRepository {
	return &ConfigRepository{tx: u.tx}
}

type rowScanner interface {
	Scan(dest ...any) error
}
