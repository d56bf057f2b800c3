package domain

import "time"

const (
	EventKYCSubmitted   = "kyc.submitted"
	EventSellerVerified = "kyc.seller_verified"
)

// Event is a fact published after the transaction that produced it commits.
type Event interface {
	EventName() string
}

// KYCSubmitted opens a new verification cycle for a seller.
type KYCSubmitted struct {
	SellerID   string
	Version    int64
	OccurredAt time.Time
}

func (KYCSubmitted) EventName() string { return EventKYCSubmitted }

// SellerVerified is emitted once per approved cycle. Bank carries the
// onboarding bank block of that cycle, if any.
type SellerVerified struct {
	SellerID   string
	Version    int64
	Country    string
	Bank       *BankDetails
	OccurredAt time.Time
}

func (SellerVerified) EventName() string { return EventSellerVerified }
