package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// KYCState is the identity-verification state of a seller.
type KYCState string

const (
	KYCStateUnsubmitted KYCState = "UNSUBMITTED"
	KYCStatePending     KYCState = "PENDING"
	KYCStateVerified    KYCState = "VERIFIED"
	KYCStateRejected    KYCState = "REJECTED"
)

// IDType is the kind of government identity document.
type IDType string

const (
	IDTypePassport       IDType = "passport"
	IDTypeNationalID     IDType = "national_id"
	IDTypeDriversLicense IDType = "drivers_license"
)

// MinimumSellerAge is the youngest age accepted for payouts.
const MinimumSellerAge = 18

var supportedCountries = map[string]bool{
	"US": true, "CA": true, "GB": true, "AU": true, "IN": true, "DE": true, "FR": true,
}

// NormalizeCountry upper-cases a country code and maps the UK alias onto GB.
func NormalizeCountry(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "UK" {
		return "GB"
	}
	return c
}

// IsSupportedCountry reports whether sellers resident in c can be onboarded.
func IsSupportedCountry(c string) bool {
	return supportedCountries[NormalizeCountry(c)]
}

// BankDetails is the optional payout block collected during onboarding.
type BankDetails struct {
	AccountName   string `json:"account_name" validate:"required,min=2,max=100"`
	AccountNumber string `json:"account_number" validate:"required,min=8,max=34,alphanum"`
	BankName      string `json:"bank_name" validate:"required,min=2,max=100"`
	RoutingNumber string `json:"routing_number,omitempty" validate:"omitempty,len=9,number"`
}

// KYCFields are the personal fields a seller submits for verification.
// They are immutable once submitted; a correction is a new submission.
type KYCFields struct {
	FullName    string       `json:"full_name" validate:"required,min=2,max=200"`
	DateOfBirth string       `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Country     string       `json:"country" validate:"required,kyc_country"`
	IDType      IDType       `json:"id_type" validate:"required,oneof=passport national_id drivers_license"`
	IDNumber    string       `json:"id_number" validate:"required,min=4,max=50"`
	Bank        *BankDetails `json:"bank,omitempty"`
}

// DocumentRefs are weak references into the document store.
type DocumentRefs struct {
	GovernmentID   string `json:"government_id" validate:"required,len=64,hexadecimal"`
	ProofOfAddress string `json:"proof_of_address" validate:"required,len=64,hexadecimal"`
}

// Normalize trims free text and canonicalises the country code.
func (f *KYCFields) Normalize() {
	f.FullName = strings.TrimSpace(f.FullName)
	f.DateOfBirth = strings.TrimSpace(f.DateOfBirth)
	f.Country = NormalizeCountry(f.Country)
	f.IDNumber = strings.TrimSpace(f.IDNumber)
	if f.Bank != nil {
		f.Bank.AccountName = strings.TrimSpace(f.Bank.AccountName)
		f.Bank.AccountNumber = strings.TrimSpace(f.Bank.AccountNumber)
		f.Bank.BankName = strings.TrimSpace(f.Bank.BankName)
		f.Bank.RoutingNumber = strings.TrimSpace(f.Bank.RoutingNumber)
	}
}

// Validate checks required fields, the minimum age on now's calendar date,
// and that US bank blocks carry a routing number.
func (f KYCFields) Validate(refs DocumentRefs, now time.Time) FieldErrors {
	errs := FieldErrors{}
	validateStruct(f, errs)

	if _, failed := errs["date_of_birth"]; !failed {
		dob, _ := time.Parse("2006-01-02", f.DateOfBirth)
		switch {
		case dob.After(now):
			errs.add("date_of_birth", "must not be in the future")
		case AgeOn(dob, now) < MinimumSellerAge:
			errs.add("date_of_birth", "seller must be at least 18 years old")
		}
	}

	if f.Bank != nil && NormalizeCountry(f.Country) == "US" && f.Bank.RoutingNumber == "" {
		errs.add("bank.routing_number", "is required for US bank accounts")
	}

	refErrs := FieldErrors{}
	validateStruct(refs, refErrs)
	for k, v := range refErrs {
		errs.add("document_refs."+k, v)
	}
	return errs
}

// AgeOn returns completed years between dob and now. A birthday later in the
// current year has not been reached yet.
func AgeOn(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

// KYCDecision is the verdict delivered by the verification provider.
type KYCDecision string

const (
	KYCDecisionVerified KYCDecision = "VERIFIED"
	KYCDecisionRejected KYCDecision = "REJECTED"
)

func (d KYCDecision) Valid() bool {
	return d == KYCDecisionVerified || d == KYCDecisionRejected
}

// State maps a decision onto the identity state it produces.
func (d KYCDecision) State() KYCState {
	if d == KYCDecisionVerified {
		return KYCStateVerified
	}
	return KYCStateRejected
}

// SellerIdentity is the current verification state of a seller. Version is
// the submission cycle that state belongs to.
type SellerIdentity struct {
	SellerID          string     `json:"seller_id"`
	State             KYCState   `json:"kyc_state"`
	Version           int64      `json:"submission_version"`
	Country           string     `json:"country,omitempty"`
	GovernmentIDRef   string     `json:"government_id_ref,omitempty"`
	ProofOfAddressRef string     `json:"proof_of_address_ref,omitempty"`
	RejectionReason   *string    `json:"rejection_reason,omitempty"`
	SubmittedAt       *time.Time `json:"submitted_at,omitempty"`
	DecidedAt         *time.Time `json:"decided_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewUnsubmittedIdentity is the view of a seller that never submitted.
func NewUnsubmittedIdentity(sellerID string, now time.Time) *SellerIdentity {
	return &SellerIdentity{
		SellerID:  sellerID,
		State:     KYCStateUnsubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (i *SellerIdentity) IsVerified() bool {
	return i.State == KYCStateVerified
}

// CanSubmit is false only while a cycle is under review.
func (i *SellerIdentity) CanSubmit() bool {
	return i.State != KYCStatePending
}

// AcceptsDecision reports whether a provider decision for version applies.
func (i *SellerIdentity) AcceptsDecision(version int64) bool {
	return i.State == KYCStatePending && i.Version == version
}

// KYCSubmission is one submission cycle, kept for the audit trail.
type KYCSubmission struct {
	ID                uuid.UUID  `json:"id"`
	SellerID          string     `json:"seller_id"`
	Version           int64      `json:"version"`
	FieldsEnc         string     `json:"-"` // AES-GCM sealed KYCFields JSON
	Country           string     `json:"country"`
	GovernmentIDRef   string     `json:"government_id_ref"`
	ProofOfAddressRef string     `json:"proof_of_address_ref"`
	State             KYCState   `json:"state"`
	Reason            *string    `json:"reason,omitempty"`
	SubmittedAt       time.Time  `json:"submitted_at"`
	DecidedAt         *time.Time `json:"decided_at,omitempty"`
}
