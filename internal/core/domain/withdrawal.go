package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WithdrawalStatus is the lifecycle state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalStatusRequested            WithdrawalStatus = "REQUESTED"
	WithdrawalStatusAwaitingVerification WithdrawalStatus = "AWAITING_VERIFICATION"
	WithdrawalStatusProcessing           WithdrawalStatus = "PROCESSING"
	WithdrawalStatusCompleted            WithdrawalStatus = "COMPLETED"
	WithdrawalStatusFailed               WithdrawalStatus = "FAILED"
)

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalStatusRequested:            {WithdrawalStatusAwaitingVerification, WithdrawalStatusFailed},
	WithdrawalStatusAwaitingVerification: {WithdrawalStatusProcessing, WithdrawalStatusFailed},
	WithdrawalStatusProcessing:           {WithdrawalStatusCompleted, WithdrawalStatusFailed},
}

func (s WithdrawalStatus) Valid() bool {
	_, known := withdrawalTransitions[s]
	return known || s == WithdrawalStatusCompleted || s == WithdrawalStatusFailed
}

// ErrInvalidTransition is returned when a status change skips the lifecycle.
type ErrInvalidTransition struct {
	From, To WithdrawalStatus
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("withdrawal cannot move from %s to %s", e.From, e.To)
}

// SettlementOutcome is reported by the settlement rail.
type SettlementOutcome string

const (
	SettlementCompleted SettlementOutcome = "COMPLETED"
	SettlementFailed    SettlementOutcome = "FAILED"
)

func (o SettlementOutcome) Valid() bool {
	return o == SettlementCompleted || o == SettlementFailed
}

// WithdrawalRequest moves money from a seller balance to a payout method.
// Amount is in minor units.
type WithdrawalRequest struct {
	ID            uuid.UUID        `json:"id"`
	RequestID     string           `json:"request_id"`
	SellerID      string           `json:"seller_id"`
	Amount        int64            `json:"amount"`
	Currency      string           `json:"currency"`
	MethodID      uuid.UUID        `json:"method_id"`
	Status        WithdrawalStatus `json:"status"`
	FailureReason *string          `json:"failure_reason,omitempty"`
	SettlementRef *string          `json:"settlement_ref,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	ConfirmedAt   *time.Time       `json:"confirmed_at,omitempty"`
	DispatchedAt  *time.Time       `json:"dispatched_at,omitempty"`
	SettledAt     *time.Time       `json:"settled_at,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// IsTerminal returns true once the request can no longer change.
func (w *WithdrawalRequest) IsTerminal() bool {
	return w.Status == WithdrawalStatusCompleted || w.Status == WithdrawalStatusFailed
}

// IsPending is true while the request still references its payout method.
func (w *WithdrawalRequest) IsPending() bool {
	return !w.IsTerminal()
}

// CanTransitionTo reports whether next is a legal successor of the current status.
func (w *WithdrawalRequest) CanTransitionTo(next WithdrawalStatus) bool {
	for _, s := range withdrawalTransitions[w.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// TransitionTo moves the request to next and stamps the matching timestamp.
func (w *WithdrawalRequest) TransitionTo(next WithdrawalStatus, now time.Time) error {
	if !w.CanTransitionTo(next) {
		return ErrInvalidTransition{From: w.Status, To: next}
	}
	w.Status = next
	w.UpdatedAt = now
	switch next {
	case WithdrawalStatusProcessing:
		w.ConfirmedAt = &now
	case WithdrawalStatusCompleted, WithdrawalStatusFailed:
		w.SettledAt = &now
	}
	return nil
}

// Fail moves the request to Failed with a reason.
func (w *WithdrawalRequest) Fail(reason string, now time.Time) error {
	if err := w.TransitionTo(WithdrawalStatusFailed, now); err != nil {
		return err
	}
	w.FailureReason = &reason
	return nil
}

// ConfirmDeadline is the instant after which the request can no longer be confirmed.
func (w *WithdrawalRequest) ConfirmDeadline(window time.Duration) time.Time {
	return w.CreatedAt.Add(window)
}

// IsHeld reports whether an awaiting request still reserves its amount at now.
func (w *WithdrawalRequest) IsHeld(now time.Time, window time.Duration) bool {
	return w.Status == WithdrawalStatusAwaitingVerification && now.Before(w.ConfirmDeadline(window))
}

// WithdrawalLimits bounds every withdrawal. Amounts are in minor units.
type WithdrawalLimits struct {
	Currency      string        `json:"currency"`
	MinAmount     int64         `json:"min_amount"`
	MaxPerTx      int64         `json:"max_per_tx"`
	MonthlyCap    int64         `json:"monthly_cap"`
	MonthlyWindow time.Duration `json:"-"`
	ConfirmWindow time.Duration `json:"-"`
}

// DefaultWithdrawalLimits: $10 minimum, $1,000 per transaction, $10,000 per rolling 30 days.
func DefaultWithdrawalLimits() WithdrawalLimits {
	return WithdrawalLimits{
		Currency:      "USD",
		MinAmount:     1000,
		MaxPerTx:      100000,
		MonthlyCap:    1000000,
		MonthlyWindow: 30 * 24 * time.Hour,
		ConfirmWindow: 30 * time.Minute,
	}
}

// SettlementInstruction is handed to the settlement rail once a request is Processing.
type SettlementInstruction struct {
	WithdrawalID uuid.UUID        `json:"withdrawal_id"`
	SellerID     string           `json:"seller_id"`
	Amount       int64            `json:"amount"`
	Currency     string           `json:"currency"`
	MethodID     uuid.UUID        `json:"method_id"`
	MethodType   PayoutMethodType `json:"method_type"`
	Details      PayoutDetails    `json:"details"`
}
