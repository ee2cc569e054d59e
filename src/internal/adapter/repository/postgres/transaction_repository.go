package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
)

const transactionColumns = `
	id,
	account_id,
	reference,
	gross_amount,
	fee_amount,
	net_amount,
	currency,
	fee_tier_id,
	state,
	scheduled_release_at,
	released_at,
	refunded_at,
	requires_compliance,
	metadata,
	audit_trail,
	version,
	created_at,
	updated_at`

type TransactionRepository struct {
	tx       *sql.Tx
	readOnly bool
}

func (r *TransactionRepository) Create(ctx context.Context, tx domain.EscrowTransaction) (domain.EscrowTransaction, error) {
	logger.Info("transaction repository create", logger.Fields{
		"transactionId": tx.ID,
		"accountId":     tx.AccountID,
		"reference":     tx.Reference,
		"state":         tx.State,
	})

	metadata, audit, err := encodeTransactionDocs(tx)
	if err != nil {
		return domain.EscrowTransaction{}, err
	}

	const query = `
INSERT INTO escrow_transactions (
	id,
	account_id,
	reference,
	gross_amount,
	fee_amount,
	net_amount,
	currency,
	fee_tier_id,
	state,
	scheduled_release_at,
	released_at,
	refunded_at,
	requires_compliance,
	metadata,
	audit_trail,
	version,
	created_at,
	updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::jsonb, $15::jsonb, $16, $17, $18
)`

	if tx.Version == 0 {
		tx.Version = 1
	}
	if _, err := r.tx.ExecContext(
		ctx,
		query,
		tx.ID,
		tx.AccountID,
		tx.Reference,
		tx.GrossAmount,
		tx.FeeAmount,
		tx.NetAmount,
		tx.Currency,
		nullString(tx.FeeTierID),
		tx.State,
		toNullTime(tx.ScheduledReleaseAt),
		toNullTime(tx.ReleasedAt),
		toNullTime(tx.RefundedAt),
		tx.RequiresCompliance,
		metadata,
		audit,
		tx.Version,
		tx.CreatedAt,
		tx.UpdatedAt,
	); err != nil {
		mapped := mapError("create transaction", err)
		if !errors.Is(mapped, domain.ErrDuplicateReference) {
			logger.Error("transaction repository create failed", err, logger.Fields{"transactionId": tx.ID})
		}
		return domain.EscrowTransaction{}, mapped
	}

	return tx.Clone(), nil
}

func (r *TransactionRepository) Get(ctx context.Context, id string) (domain.EscrowTransaction, error) {
	query := `SELECT` + transactionColumns + `
FROM escrow_transactions
WHERE id = $1`

	return r.getOne(ctx, "get transaction", query, id)
}

func (r *TransactionRepository) GetForUpdate(ctx context.Context, id string) (domain.EscrowTransaction, error) {
	if r.readOnly {
		return r.Get(ctx, id)
	}

	query := `SELECT` + transactionColumns + `
FROM escrow_transactions
WHERE id = $1
FOR UPDATE`

	return r.getOne(ctx, "lock transaction", query, id)
}

func (r *TransactionRepository) GetByReference(ctx context.Context, accountID string, reference string) (domain.EscrowTransaction, error) {
	query := `SELECT` + transactionColumns + `
FROM escrow_transactions
WHERE account_id = $1
  AND reference = $2`

	return r.getOne(ctx, "get transaction by reference", query, accountID, reference)
}

func (r *TransactionRepository) Update(ctx context.Context, tx domain.EscrowTransaction) (domain.EscrowTransaction, error) {
	metadata, audit, err := encodeTransactionDocs(tx)
	if err != nil {
		return domain.EscrowTransaction{}, err
	}

	const query = `
UPDATE escrow_transactions
SET fee_amount = $3,
    net_amount = $4,
    fee_tier_id = $5,
    state = $6,
    scheduled_release_at = $7,
    released_at = $8,
    refunded_at = $9,
    requires_compliance = $10,
    metadata = $11::jsonb,
    audit_trail = $12::jsonb,
    updated_at = $13,
    version = version + 1
WHERE id = $1
  AND version = $2
RETURNING version`

	var version int64
	err = r.tx.QueryRowContext(
		ctx,
		query,
		tx.ID,
		tx.Version,
		tx.FeeAmount,
		tx.NetAmount,
		nullString(tx.FeeTierID),
		tx.State,
		toNullTime(tx.ScheduledReleaseAt),
		toNullTime(tx.ReleasedAt),
		toNullTime(tx.RefundedAt),
		tx.RequiresCompliance,
		metadata,
		audit,
		tx.UpdatedAt,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EscrowTransaction{}, fmt.Errorf("%w: transaction %s is not at version %d", domain.ErrResourceBusy, tx.ID, tx.Version)
	}
	if err != nil {
		logger.Error("transaction repository update failed", err, logger.Fields{"transactionId": tx.ID})
		return domain.EscrowTransaction{}, mapError("update transaction", err)
	}

	out := tx.Clone()
	out.Version = version
	return out, nil
}

func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID string, state *domain.TransactionState) ([]domain.EscrowTransaction, error) {
	query := `SELECT` + transactionColumns + `
FROM escrow_transactions
WHERE account_id = $1
  AND ($2::text = '' OR state = $2::text)
ORDER BY created_at, id`

	filter := ""
	if state != nil {
		filter = string(*state)
	}
	return r.list(ctx, "list transactions", query, accountID, filter)
}

func (r *TransactionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.EscrowTransaction, error) {
	query := `SELECT` + transactionColumns + `
FROM escrow_transactions
WHERE state = 'scheduled'
  AND scheduled_release_at <= $1
ORDER BY scheduled_release_at, id
LIMIT $2`

	return r.list(ctx, "list due transactions", query, now, limit)
}

func (r *TransactionRepository) getOne(ctx context.Context, op string, query string, args ...any) (domain.EscrowTransaction, error) {
	tx, err := scanTransaction(r.tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Error("transaction repository "+op+" failed", err, nil)
		}
		return domain.EscrowTransaction{}, mapError(op, err)
	}
	return tx, nil
}

func (r *TransactionRepository) list(ctx context.Context, op string, query string, args ...any) ([]domain.EscrowTransaction, error) {
	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Error("transaction repository "+op+" failed", err, nil)
		return nil, mapError(op, err)
	}
	defer rows.Close()

	out := make([]domain.EscrowTransaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return out, nil
}

func encodeTransactionDocs(tx domain.EscrowTransaction) (string, string, error) {
	metadata := tx.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", "", fmt.Errorf("encode transaction metadata: %w", err)
	}

	audit := tx.AuditTrail
	if audit == nil {
		audit = []domain.AuditRecord{}
	}
	auditJSON, err := json.Marshal(audit)
	if err != nil {
		return "", "", fmt.Errorf("encode transaction audit trail: %w", err)
	}
	return string(metadataJSON), string(auditJSON), nil
}

func scanTransaction(row rowScanner) (domain.EscrowTransaction, error) {
	var (
		tx          domain.EscrowTransaction
		feeTierID   sql.NullString
		scheduledAt sql.NullTime
		releasedAt  sql.NullTime
		refundedAt  sql.NullTime
		metadata    []byte
		audit       []byte
	)
	if err := row.Scan(
		&tx.ID,
		&tx.AccountID,
		&tx.Reference,
		&tx.GrossAmount,
		&tx.FeeAmount,
		&tx.NetAmount,
		&tx.Currency,
		&feeTierID,
		&tx.State,
		&scheduledAt,
		&releasedAt,
		&refundedAt,
		&tx.RequiresCompliance,
		&metadata,
		&audit,
		&tx.Version,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	); err != nil {
		return domain.EscrowTransaction{}, err
	}

	if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
		return domain.EscrowTransaction{}, fmt.Errorf("decode transaction metadata: %w", err)
	}
	if err := json.Unmarshal(audit, &tx.AuditTrail); err != nil {
		return domain.EscrowTransaction{}, fmt.Errorf("decode transaction audit trail: %w", err)
	}

	tx.FeeTierID = stringPtr(feeTierID)
	tx.ScheduledReleaseAt = timePtr(scheduledAt)
	tx.ReleasedAt = timePtr(releasedAt)
	tx.RefundedAt = timePtr(refundedAt)
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	return tx, nil
}
