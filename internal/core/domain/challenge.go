package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChallengePurpose scopes a challenge to a single kind of mutation.
type ChallengePurpose string

const (
	ChallengePurposeAddPayoutMethod    ChallengePurpose = "ADD_PAYOUT_METHOD"
	ChallengePurposeDeletePayoutMethod ChallengePurpose = "DELETE_PAYOUT_METHOD"
	ChallengePurposeWithdraw           ChallengePurpose = "WITHDRAW"
)

func (p ChallengePurpose) Valid() bool {
	switch p {
	case ChallengePurposeAddPayoutMethod, ChallengePurposeDeletePayoutMethod, ChallengePurposeWithdraw:
		return true
	}
	return false
}

// VerificationChallenge is a single-use code sent to the seller out of band.
// Only an HMAC digest of the code is stored.
type VerificationChallenge struct {
	ID         uuid.UUID        `json:"challenge_id"`
	SellerID   string           `json:"seller_id"`
	Purpose    ChallengePurpose `json:"purpose"`
	Digest     string           `json:"-"`
	Attempts   int              `json:"-"`
	CreatedAt  time.Time        `json:"created_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
	ConsumedAt *time.Time       `json:"consumed_at,omitempty"`
}

// ChallengeProof is what a seller presents to pass the gate.
type ChallengeProof struct {
	ChallengeID uuid.UUID
	Code        string
}

// Present reports whether the caller supplied a challenge at all.
func (p ChallengeProof) Present() bool {
	return p.ChallengeID != uuid.Nil && p.Code != ""
}
