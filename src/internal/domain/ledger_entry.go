package domain

import "time"

type LedgerEntryType string

const (
	LedgerEntryCredit  LedgerEntryType = "credit"
	LedgerEntryDebit   LedgerEntryType = "debit"
	LedgerEntryHold    LedgerEntryType = "hold"
	LedgerEntryRelease LedgerEntryType = "release"
	LedgerEntryRefund  LedgerEntryType = "refund"
	LedgerEntryFee     LedgerEntryType = "fee"
)

type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

type LedgerEntry struct {
	EntryID              int64
	AccountID            string
	EntryType            LedgerEntryType
	Direction            Direction
	Amount               int64
	Currency             string
	Reference            string
	RelatedTransactionID string
	OccurredAt           time.Time
	RunningBalanceAfter  int64
}

func (e LedgerEntry) Signed() int64 {
	if e.Direction == DirectionDebit {
		return -e.Amount
	}
	return e.Amount
}
