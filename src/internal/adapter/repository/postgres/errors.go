package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/lib/pq"
)

const referenceConstraint = "uq_escrow_transactions_reference"

// mapError translates driver errors into domain errors. Lock waits, lock
// timeouts, serialization failures and deadlocks are all retryable.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrRecordNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == referenceConstraint {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateReference, pqErr.Detail)
			}
			return fmt.Errorf("%w: %s: %s", domain.ErrResourceBusy, op, pqErr.Message)
		case "55P03", "40001", "40P01":
			return fmt.Errorf("%w: %s: %s", domain.ErrResourceBusy, op, pqErr.Message)
		case "23514":
			return fmt.Errorf("%w: %s: %s", domain.ErrInvariantViolation, op, pqErr.Message)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", domain.ErrResourceBusy, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func execRequiredRows(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read rows affected: %w", err)
	}
	if rows == 0 {
		return 0, sql.ErrNoRows
	}
	return rows, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	value := v.Int64
	return &value
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	value := v.Time.UTC()
	return &value
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	value := v.String
	return &value
}

func toNullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}
