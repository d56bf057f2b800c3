package domain

import (
	"time"

	"github.com/google/uuid"
)

// SellerBalance is the withdrawable ledger balance of a seller in minor units.
// Its row is also the per-seller lock taken by every money-affecting transaction.
type SellerBalance struct {
	SellerID  string    `json:"seller_id"`
	Balance   int64     `json:"balance"`
	Currency  string    `json:"currency"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerEntryKind classifies a balance movement.
type LedgerEntryKind string

const (
	LedgerEntryEarning            LedgerEntryKind = "EARNING"
	LedgerEntryWithdrawalDebit    LedgerEntryKind = "WITHDRAWAL_DEBIT"
	LedgerEntryWithdrawalReversal LedgerEntryKind = "WITHDRAWAL_REVERSAL"
)

// LedgerEntry is an append-only balance movement. Amount is signed.
// Reference is unique per seller, which makes credits and reversals idempotent.
type LedgerEntry struct {
	ID           uuid.UUID       `json:"id"`
	SellerID     string          `json:"seller_id"`
	Kind         LedgerEntryKind `json:"kind"`
	Amount       int64           `json:"amount"`
	BalanceAfter int64           `json:"balance_after"`
	Reference    string          `json:"reference"`
	Description  *string         `json:"description,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// WithdrawalDebitReference is the ledger reference of the debit for a withdrawal.
func WithdrawalDebitReference(withdrawalID uuid.UUID) string {
	return "withdrawal:" + withdrawalID.String()
}

// WithdrawalReversalReference is the ledger reference of the refund of a failed withdrawal.
func WithdrawalReversalReference(withdrawalID uuid.UUID) string {
	return "reversal:" + withdrawalID.String()
}

// BalanceSummary is the seller-facing view of balance and limits.
type BalanceSummary struct {
	SellerID         string           `json:"seller_id"`
	Currency         string           `json:"currency"`
	Balance          int64            `json:"balance"`
	Held             int64            `json:"held"`
	Available        int64            `json:"available"`
	MonthlyWithdrawn int64            `json:"monthly_withdrawn"`
	MonthlyRemaining int64            `json:"monthly_remaining"`
	Limits           WithdrawalLimits `json:"limits"`
}
