package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PayoutMethodType is the payout rail a method pays out through.
type PayoutMethodType string

const (
	PayoutMethodBank   PayoutMethodType = "BANK"
	PayoutMethodPayPal PayoutMethodType = "PAYPAL"
	PayoutMethodOther  PayoutMethodType = "OTHER"
)

func (t PayoutMethodType) Valid() bool {
	return t == PayoutMethodBank || t == PayoutMethodPayPal || t == PayoutMethodOther
}

// PayoutMethodStatus tracks out-of-band verification of a payout method.
type PayoutMethodStatus string

const (
	PayoutMethodStatusPending  PayoutMethodStatus = "PENDING"
	PayoutMethodStatusVerified PayoutMethodStatus = "VERIFIED"
	PayoutMethodStatusFailed   PayoutMethodStatus = "FAILED"
)

// MethodVerificationOutcome is reported by the method verifier.
type MethodVerificationOutcome string

const (
	MethodVerificationVerified MethodVerificationOutcome = "VERIFIED"
	MethodVerificationFailed   MethodVerificationOutcome = "FAILED"
)

func (o MethodVerificationOutcome) Valid() bool {
	return o == MethodVerificationVerified || o == MethodVerificationFailed
}

// PayoutDetails is the union of every type's fields; only the fields of the
// method's type are kept after Normalize.
type PayoutDetails struct {
	BankName      string `json:"bank_name,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	RoutingNumber string `json:"routing_number,omitempty"`
	Country       string `json:"country,omitempty"`
	Email         string `json:"email,omitempty"`
	MethodName    string `json:"method_name,omitempty"`
	AccountInfo   string `json:"account_info,omitempty"`
}

type bankPayoutDetails struct {
	BankName      string `json:"bank_name" validate:"required,min=2,max=100"`
	AccountName   string `json:"account_name" validate:"omitempty,min=2,max=100"`
	AccountNumber string `json:"account_number" validate:"required,min=8,max=34,alphanum"`
	RoutingNumber string `json:"routing_number" validate:"omitempty,len=9,number"`
	Country       string `json:"country" validate:"omitempty,kyc_country"`
}

type paypalPayoutDetails struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type otherPayoutDetails struct {
	MethodName  string `json:"method_name" validate:"required,min=2,max=100"`
	AccountInfo string `json:"account_info" validate:"required,min=5,max=200"`
}

// Normalize trims every field and drops the ones that do not belong to t.
func (d PayoutDetails) Normalize(t PayoutMethodType) PayoutDetails {
	switch t {
	case PayoutMethodBank:
		return PayoutDetails{
			BankName:      strings.TrimSpace(d.BankName),
			AccountName:   strings.TrimSpace(d.AccountName),
			AccountNumber: strings.ReplaceAll(strings.TrimSpace(d.AccountNumber), " ", ""),
			RoutingNumber: strings.TrimSpace(d.RoutingNumber),
			Country:       NormalizeCountry(d.Country),
		}
	case PayoutMethodPayPal:
		return PayoutDetails{Email: strings.ToLower(strings.TrimSpace(d.Email))}
	case PayoutMethodOther:
		return PayoutDetails{
			MethodName:  strings.TrimSpace(d.MethodName),
			AccountInfo: strings.TrimSpace(d.AccountInfo),
		}
	}
	return PayoutDetails{}
}

// Validate applies the per-type rules. Bank accounts in the US need a
// 9-digit routing number.
func (d PayoutDetails) Validate(t PayoutMethodType) FieldErrors {
	errs := FieldErrors{}
	switch t {
	case PayoutMethodBank:
		validateStruct(bankPayoutDetails{
			BankName:      d.BankName,
			AccountName:   d.AccountName,
			AccountNumber: d.AccountNumber,
			RoutingNumber: d.RoutingNumber,
			Country:       d.Country,
		}, errs)
		if d.Country == "US" && d.RoutingNumber == "" {
			errs.add("routing_number", "is required for US bank accounts")
		}
	case PayoutMethodPayPal:
		validateStruct(paypalPayoutDetails{Email: d.Email}, errs)
	case PayoutMethodOther:
		validateStruct(otherPayoutDetails{MethodName: d.MethodName, AccountInfo: d.AccountInfo}, errs)
	default:
		errs.add("type", "must be one of: BANK, PAYPAL, OTHER")
	}
	return errs
}

// Display is the masked label shown to the seller, e.g. "Chase Bank ***1234".
func (d PayoutDetails) Display(t PayoutMethodType) string {
	switch t {
	case PayoutMethodBank:
		return d.BankName + " ***" + lastN(d.AccountNumber, 4)
	case PayoutMethodPayPal:
		return d.Email
	case PayoutMethodOther:
		return d.MethodName
	}
	return ""
}

// Canonical is the normalized identity of the instrument used for duplicate detection.
func (d PayoutDetails) Canonical(t PayoutMethodType) string {
	switch t {
	case PayoutMethodBank:
		return strings.Join([]string{string(t), d.Country, d.RoutingNumber, strings.ToUpper(d.AccountNumber)}, "|")
	case PayoutMethodPayPal:
		return string(t) + "|" + d.Email
	case PayoutMethodOther:
		return strings.Join([]string{string(t), strings.ToLower(d.MethodName), strings.ToLower(d.AccountInfo)}, "|")
	}
	return ""
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// PayoutMethodFromBank lifts the onboarding bank block into payout details.
func PayoutMethodFromBank(b BankDetails, country string) PayoutDetails {
	return PayoutDetails{
		BankName:      b.BankName,
		AccountName:   b.AccountName,
		AccountNumber: b.AccountNumber,
		RoutingNumber: b.RoutingNumber,
		Country:       country,
	}.Normalize(PayoutMethodBank)
}

// PayoutMethod is a seller-owned payout instrument.
type PayoutMethod struct {
	ID            uuid.UUID          `json:"id"`
	SellerID      string             `json:"seller_id"`
	Type          PayoutMethodType   `json:"type"`
	DetailsEnc    string             `json:"-"` // AES-GCM sealed PayoutDetails JSON
	Display       string             `json:"display"`
	Fingerprint   string             `json:"-"`
	Status        PayoutMethodStatus `json:"status"`
	IsDefault     bool               `json:"is_default"`
	FailureReason *string            `json:"failure_reason,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	VerifiedAt    *time.Time         `json:"verified_at,omitempty"`
}

// IsUsable reports whether withdrawals may pay out to this method.
func (m *PayoutMethod) IsUsable() bool {
	return m.Status == PayoutMethodStatusVerified
}

// PayoutEligibility records whether a seller may register payout methods.
// Version is the KYC submission cycle that produced it.
type PayoutEligibility struct {
	SellerID  string    `json:"seller_id"`
	Eligible  bool      `json:"eligible"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}
