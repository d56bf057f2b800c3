package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionDocumentUpload     AuditAction = "DOCUMENT_UPLOAD"
	AuditActionKYCSubmit          AuditAction = "KYC_SUBMIT"
	AuditActionKYCDecision        AuditAction = "KYC_DECISION"
	AuditActionChallengeIssue     AuditAction = "CHALLENGE_ISSUE"
	AuditActionMethodAdd          AuditAction = "PAYOUT_METHOD_ADD"
	AuditActionMethodDefault      AuditAction = "PAYOUT_METHOD_DEFAULT"
	AuditActionMethodDelete       AuditAction = "PAYOUT_METHOD_DELETE"
	AuditActionMethodVerification AuditAction = "PAYOUT_METHOD_VERIFICATION"
	AuditActionWithdrawalRequest  AuditAction = "WITHDRAWAL_REQUEST"
	AuditActionWithdrawalConfirm  AuditAction = "WITHDRAWAL_CONFIRM"
	AuditActionSettlement         AuditAction = "SETTLEMENT_CALLBACK"
	AuditActionEarningsCredit     AuditAction = "EARNINGS_CREDIT"
)

// AuditLog records a single audited action in the system.
// Actor is the seller id for seller routes and the caller name for service routes.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	SellerID     *string     `json:"seller_id,omitempty"`
	Actor        string      `json:"actor"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
