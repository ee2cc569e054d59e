package domain

import "time"

type TransactionState string

const (
	StateHeld            TransactionState = "held"
	StateScheduled       TransactionState = "scheduled"
	StateHoldForApproval TransactionState = "hold_for_approval"
	StateDisputed        TransactionState = "disputed"
	StateReleased        TransactionState = "released"
	StateRefunded        TransactionState = "refunded"
)

func (s TransactionState) Terminal() bool {
	return s == StateReleased || s == StateRefunded
}

// Pending reports whether funds in this state still count towards the
// account's pending release total. Approval and disputed holds count too:
// their money stays on the escrow ledger until a terminal transition.
func (s TransactionState) Pending() bool {
	switch s {
	case StateHeld, StateScheduled, StateHoldForApproval, StateDisputed:
		return true
	default:
		return false
	}
}

func (s TransactionState) Valid() bool {
	return s.Pending() || s.Terminal()
}

const SystemActor = "system"

type AuditRecord struct {
	FromState TransactionState `json:"fromState"`
	ToState   TransactionState `json:"toState"`
	ActorID   string           `json:"actorId"`
	Timestamp time.Time        `json:"timestamp"`
	Reason    string           `json:"reason,omitempty"`
}

type EscrowTransaction struct {
	ID                 string
	AccountID          string
	Reference          string
	GrossAmount        int64
	FeeAmount          int64
	NetAmount          int64
	Currency           string
	FeeTierID          *string
	State              TransactionState
	ScheduledReleaseAt *time.Time
	ReleasedAt         *time.Time
	RefundedAt         *time.Time
	RequiresCompliance bool
	Metadata           map[string]string
	AuditTrail         []AuditRecord
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int64
}

func (t EscrowTransaction) AmountsBalanced() bool {
	return t.GrossAmount > 0 && t.FeeAmount >= 0 && t.NetAmount >= 0 && t.FeeAmount+t.NetAmount == t.GrossAmount
}

// Clone returns a copy that shares no maps or slices with t.
func (t EscrowTransaction) Clone() EscrowTransaction {
	out := t
	if t.Metadata != nil {
		out.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			out.Metadata[k] = v
		}
	}
	out.AuditTrail = append([]AuditRecord(nil), t.AuditTrail...)
	out.FeeTierID = cloneString(t.FeeTierID)
	out.ScheduledReleaseAt = cloneTime(t.ScheduledReleaseAt)
	out.ReleasedAt = cloneTime(t.ReleasedAt)
	out.RefundedAt = cloneTime(t.RefundedAt)
	return out
}

func (t *EscrowTransaction) Transition(to TransactionState, actorID string, at time.Time, reason string) {
	t.AuditTrail = append(t.AuditTrail, AuditRecord{
		FromState: t.State,
		ToState:   to,
		ActorID:   actorID,
		Timestamp: at,
		Reason:    reason,
	})
	t.State = to
	t.UpdatedAt = at
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
