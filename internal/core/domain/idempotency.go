package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog stores the first result produced for a request key.
// Fingerprint captures the parameters so a reused key with different ones is detectable.
type IdempotencyLog struct {
	Key          string    `json:"key"` // Format: "seller_id:withdrawal:request_id"
	ResourceID   uuid.UUID `json:"resource_id"`
	Fingerprint  string    `json:"fingerprint"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// Matches reports whether fingerprint describes the same request parameters.
func (l *IdempotencyLog) Matches(fingerprint string) bool {
	return l.Fingerprint == fingerprint
}

// BuildWithdrawalIdempotencyKey scopes a client request id to its seller.
func BuildWithdrawalIdempotencyKey(sellerID, requestID string) string {
	return sellerID + ":withdrawal:" + requestID
}

// WithdrawalFingerprint identifies the parameters of a withdrawal request.
func WithdrawalFingerprint(amount int64, methodID uuid.UUID) string {
	return strconv.FormatInt(amount, 10) + "|" + methodID.String()
}
