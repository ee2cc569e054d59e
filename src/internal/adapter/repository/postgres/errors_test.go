package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	generic := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: sql.ErrNoRows, want: domain.ErrRecordNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("scan: %w", sql.ErrNoRows), want: domain.ErrRecordNotFound},
		{
			name: "duplicate reference",
			err:  &pq.Error{Code: "23505", Constraint: referenceConstraint, Detail: "Key exists"},
			want: domain.ErrDuplicateReference,
		},
		{
			name: "other unique violation",
			err:  &pq.Error{Code: "23505", Constraint: "escrow_accounts_pkey"},
			want: domain.ErrResourceBusy,
		},
		{name: "lock not available", err: &pq.Error{Code: "55P03"}, want: domain.ErrResourceBusy},
		{name: "serialization failure", err: &pq.Error{Code: "40001"}, want: domain.ErrResourceBusy},
		{name: "deadlock", err: &pq.Error{Code: "40P01"}, want: domain.ErrResourceBusy},
		{name: "check violation", err: &pq.Error{Code: "23514"}, want: domain.ErrInvariantViolation},
		{name: "deadline", err: context.DeadlineExceeded, want: domain.ErrResourceBusy},
		{name: "generic", err: generic, want: generic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError("op", tt.err)
			require.Error(t, got)
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestMapErrorKeepsOperationContext(t *testing.T) {
	assert.NoError(t, mapError("op", nil))

	err := mapError("append ledger entry", errors.New("broken pipe"))
	assert.EqualError(t, err, "append ledger entry: broken pipe")
	assert.Equal(t, domain.ClassUnknown, domain.Classify(err))

	busy := mapError("lock account", &pq.Error{Code: "55P03", Message: "canceling statement due to lock timeout"})
	assert.Equal(t, domain.ClassRetryable, domain.Classify(busy))
	assert.Contains(t, busy.Error(), "lock account")
}

func TestNullableHelpers(t *testing.T) {
	assert.False(t, nullInt64(nil).Valid)
	value := int64(42)
	assert.Equal(t, sql.NullInt64{Int64: 42, Valid: true}, nullInt64(&value))
	assert.Nil(t, int64Ptr(sql.NullInt64{}))
	assert.Equal(t, int64(7), *int64Ptr(sql.NullInt64{Int64: 7, Valid: true}))

	assert.Nil(t, stringPtr(nullString(nil)))
	tier := "tier-1"
	assert.Equal(t, "tier-1", *stringPtr(nullString(&tier)))

	local := time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("WAT", 3600))
	roundTrip := timePtr(toNullTime(&local))
	require.NotNil(t, roundTrip)
	assert.Equal(t, time.UTC, roundTrip.Location())
	assert.True(t, roundTrip.Equal(local))
	assert.Nil(t, timePtr(toNullTime(nil)))
}
