package dto

import (
	"time"

	"seller-payout-service/internal/core/domain"
	"seller-payout-service/pkg/money"

	"github.com/google/uuid"
)

// ---- Seller requests ----

// ChallengeProofRequest carries a verification code for a gated mutation.
type ChallengeProofRequest struct {
	ChallengeID string `json:"challenge_id" binding:"omitempty,uuid"`
	Code        string `json:"code" binding:"omitempty,number,min=4,max=9"`
}

// Proof converts the request into a domain proof; a missing or unparsable
// id yields a proof that is not Present.
func (p ChallengeProofRequest) Proof() domain.ChallengeProof {
	id, err := uuid.Parse(p.ChallengeID)
	if err != nil {
		return domain.ChallengeProof{}
	}
	return domain.ChallengeProof{ChallengeID: id, Code: p.Code}
}

// IssueChallengeRequest is the body of POST /challenges.
type IssueChallengeRequest struct {
	Purpose string `json:"purpose" binding:"required,oneof=ADD_PAYOUT_METHOD DELETE_PAYOUT_METHOD WITHDRAW"`
}

// ChallengeResponse never includes the code.
type ChallengeResponse struct {
	ChallengeID string    `json:"challenge_id"`
	Purpose     string    `json:"purpose"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// BankRequest is the optional onboarding payout block.
type BankRequest struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	RoutingNumber string `json:"routing_number"`
}

// DocumentRefsRequest points at previously uploaded documents.
type DocumentRefsRequest struct {
	GovernmentID   string `json:"government_id" binding:"required"`
	ProofOfAddress string `json:"proof_of_address" binding:"required"`
}

// KYCSubmitRequest is the body of POST /kyc/submissions. Field rules are
// enforced by the domain so every field error is reported at once.
type KYCSubmitRequest struct {
	FullName     string              `json:"full_name"`
	DateOfBirth  string              `json:"date_of_birth"`
	Country      string              `json:"country"`
	IDType       string              `json:"id_type"`
	IDNumber     string              `json:"id_number"`
	Bank         *BankRequest        `json:"bank,omitempty"`
	DocumentRefs DocumentRefsRequest `json:"document_refs" binding:"required"`
}

// Fields maps the request onto the domain submission.
func (r KYCSubmitRequest) Fields() (domain.KYCFields, domain.DocumentRefs) {
	f := domain.KYCFields{
		FullName:    r.FullName,
		DateOfBirth: r.DateOfBirth,
		Country:     r.Country,
		IDType:      domain.IDType(r.IDType),
		IDNumber:    r.IDNumber,
	}
	if r.Bank != nil {
		f.Bank = &domain.BankDetails{
			AccountName:   r.Bank.AccountName,
			AccountNumber: r.Bank.AccountNumber,
			BankName:      r.Bank.BankName,
			RoutingNumber: r.Bank.RoutingNumber,
		}
	}
	return f, domain.DocumentRefs{
		GovernmentID:   r.DocumentRefs.GovernmentID,
		ProofOfAddress: r.DocumentRefs.ProofOfAddress,
	}
}

// PayoutDetailsRequest is the union of per-type detail fields.
type PayoutDetailsRequest struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	RoutingNumber string `json:"routing_number"`
	Country       string `json:"country"`
	Email         string `json:"email"`
	MethodName    string `json:"method_name"`
	AccountInfo   string `json:"account_info"`
}

// AddPayoutMethodRequest is the body of POST /payout-methods.
type AddPayoutMethodRequest struct {
	Type      string                `json:"type" binding:"required"`
	Details   PayoutDetailsRequest  `json:"details"`
	Challenge ChallengeProofRequest `json:"challenge"`
}

func (r AddPayoutMethodRequest) DomainDetails() domain.PayoutDetails {
	d := r.Details
	return domain.PayoutDetails{
		BankName:      d.BankName,
		AccountName:   d.AccountName,
		AccountNumber: d.AccountNumber,
		RoutingNumber: d.RoutingNumber,
		Country:       d.Country,
		Email:         d.Email,
		MethodName:    d.MethodName,
		AccountInfo:   d.AccountInfo,
	}
}

// DeletePayoutMethodRequest is the optional body of DELETE /payout-methods/:id.
type DeletePayoutMethodRequest struct {
	Challenge ChallengeProofRequest `json:"challenge"`
}

// CreateWithdrawalRequest is the body of POST /withdrawals.
// Amount is a decimal string in major units, e.g. "50.00".
type CreateWithdrawalRequest struct {
	RequestID string `json:"request_id" binding:"omitempty,max=128,safe_id"`
	Amount    string `json:"amount" binding:"required,decimal_amount"`
	MethodID  string `json:"method_id" binding:"required,uuid"`
}

// ConfirmWithdrawalRequest is the body of POST /withdrawals/:id/confirm.
type ConfirmWithdrawalRequest struct {
	Challenge ChallengeProofRequest `json:"challenge"`
}

// ---- Service-to-service requests ----

// KYCDecisionRequest is delivered by the verification provider.
type KYCDecisionRequest struct {
	SellerID string `json:"seller_id" binding:"required,max=128"`
	Version  int64  `json:"submission_version" binding:"required,gt=0"`
	Decision string `json:"decision" binding:"required"`
	Reason   string `json:"reason" binding:"max=500"`
}

// MethodVerificationRequest is delivered by the payout method verifier.
type MethodVerificationRequest struct {
	MethodID string `json:"method_id" binding:"required,uuid"`
	Outcome  string `json:"outcome" binding:"required"`
	Reason   string `json:"reason" binding:"max=500"`
}

// SettlementCallbackRequest is delivered by the settlement rail, at least once.
type SettlementCallbackRequest struct {
	WithdrawalID string `json:"withdrawal_id" binding:"required,uuid"`
	Outcome      string `json:"outcome" binding:"required"`
	Reference    string `json:"reference" binding:"max=128"`
	Reason       string `json:"reason" binding:"max=500"`
}

// EarningsCreditRequest is posted by the order system.
type EarningsCreditRequest struct {
	SellerID    string `json:"seller_id" binding:"required,max=128"`
	Amount      string `json:"amount" binding:"required,decimal_amount"`
	Reference   string `json:"reference" binding:"required,max=128,safe_id"`
	Description string `json:"description" binding:"max=255"`
}

// CallbackAck acknowledges a callback; Applied is false for stale deliveries.
type CallbackAck struct {
	Applied bool `json:"applied"`
}

// ---- Responses with money ----

// WithdrawalResponse renders amounts as decimal strings.
type WithdrawalResponse struct {
	ID            string     `json:"id"`
	RequestID     string     `json:"request_id"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	MethodID      string     `json:"method_id"`
	Status        string     `json:"status"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	SettlementRef *string    `json:"settlement_ref,omitempty"`
	ConfirmBy     *time.Time `json:"confirm_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	SettledAt     *time.Time `json:"settled_at,omitempty"`
}

// NewWithdrawalResponse includes the confirmation deadline while the
// request still awaits its challenge.
func NewWithdrawalResponse(w *domain.WithdrawalRequest, confirmWindow time.Duration) WithdrawalResponse {
	resp := WithdrawalResponse{
		ID:            w.ID.String(),
		RequestID:     w.RequestID,
		Amount:        money.FormatMinor(w.Amount),
		Currency:      w.Currency,
		MethodID:      w.MethodID.String(),
		Status:        string(w.Status),
		FailureReason: w.FailureReason,
		SettlementRef: w.SettlementRef,
		CreatedAt:     w.CreatedAt,
		ConfirmedAt:   w.ConfirmedAt,
		SettledAt:     w.SettledAt,
	}
	if w.Status == domain.WithdrawalStatusAwaitingVerification {
		deadline := w.ConfirmDeadline(confirmWindow)
		resp.ConfirmBy = &deadline
	}
	return resp
}

// LimitsResponse describes the withdrawal limits in major units.
type LimitsResponse struct {
	Currency   string `json:"currency"`
	MinAmount  string `json:"min_amount"`
	MaxPerTx   string `json:"max_per_transaction"`
	MonthlyCap string `json:"monthly_cap"`
}

// BalanceResponse is the body of GET /balance.
type BalanceResponse struct {
	Currency         string         `json:"currency"`
	Balance          string         `json:"balance"`
	Held             string         `json:"held"`
	Available        string         `json:"available"`
	MonthlyWithdrawn string         `json:"monthly_withdrawn"`
	MonthlyRemaining string         `json:"monthly_remaining"`
	Limits           LimitsResponse `json:"limits"`
}

func NewBalanceResponse(s *domain.BalanceSummary) BalanceResponse {
	return BalanceResponse{
		Currency:         s.Currency,
		Balance:          money.FormatMinor(s.Balance),
		Held:             money.FormatMinor(s.Held),
		Available:        money.FormatMinor(s.Available),
		MonthlyWithdrawn: money.FormatMinor(s.MonthlyWithdrawn),
		MonthlyRemaining: money.FormatMinor(s.MonthlyRemaining),
		Limits: LimitsResponse{
			Currency:   s.Limits.Currency,
			MinAmount:  money.FormatMinor(s.Limits.MinAmount),
			MaxPerTx:   money.FormatMinor(s.Limits.MaxPerTx),
			MonthlyCap: money.FormatMinor(s.Limits.MonthlyCap),
		},
	}
}

// LedgerEntryResponse is one row of GET /ledger.
type LedgerEntryResponse struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balance_after"`
	Reference    string    `json:"reference"`
	Description  *string   `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewLedgerEntryResponse(e *domain.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:           e.ID.String(),
		Kind:         string(e.Kind),
		Amount:       money.FormatMinor(e.Amount),
		BalanceAfter: money.FormatMinor(e.BalanceAfter),
		Reference:    e.Reference,
		Description:  e.Description,
		CreatedAt:    e.CreatedAt,
	}
}
