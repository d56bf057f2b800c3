package ports

import (
	"context"
	"io"
	"time"

	"seller-payout-service/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// TokenService verifies seller bearer tokens issued by the account system.
type TokenService interface {
	Generate(sellerID, email string) (string, time.Time, error)
	Validate(tokenString string) (*SellerClaims, error)
}

// SellerClaims holds the parsed JWT claims.
type SellerClaims struct {
	SellerID string
	Email    string
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached value or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, callerKey string, nonce string, ttl time.Duration) (bool, error)
}

// ChallengeStore keeps outstanding challenges. Saving a challenge supersedes
// the seller's previous challenge for the same purpose.
type ChallengeStore interface {
	Save(ctx context.Context, ch *domain.VerificationChallenge) error
	// Consume atomically checks owner, purpose, expiry, single use and digest.
	// A digest mismatch counts an attempt; maxAttempts burns the challenge.
	Consume(ctx context.Context, id uuid.UUID, sellerID string, purpose domain.ChallengePurpose, digest string, now time.Time, maxAttempts int) (bool, error)
}

// --- External collaborators ---

// VerificationProvider is the external KYC vendor.
type VerificationProvider interface {
	RequestVerification(ctx context.Context, req VerificationRequest) error
	Name() string
}

// VerificationRequest hands a submission cycle to the provider.
type VerificationRequest struct {
	SellerID    string              `json:"seller_id"`
	Version     int64               `json:"submission_version"`
	Fields      domain.KYCFields    `json:"fields"`
	Documents   domain.DocumentRefs `json:"document_refs"`
	CallbackURL string              `json:"callback_url,omitempty"`
}

// SettlementGateway pays out Processing withdrawals and later calls back.
type SettlementGateway interface {
	Submit(ctx context.Context, instruction domain.SettlementInstruction) (string, error)
	Name() string
}

// ChallengeNotifier delivers a challenge code to the seller out of band.
type ChallengeNotifier interface {
	Deliver(ctx context.Context, msg ChallengeMessage) error
}

// ChallengeMessage is the content of one challenge delivery.
type ChallengeMessage struct {
	SellerID  string
	Email     string
	Purpose   domain.ChallengePurpose
	Code      string
	ExpiresAt time.Time
}

// EventHandler reacts to a published domain event.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventPublisher fans domain events out to in-process subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event)
	Subscribe(eventName string, handler EventHandler)
}

// MetricsRecorder counts domain outcomes.
type MetricsRecorder interface {
	KYCTransition(state domain.KYCState)
	StaleCallback(source string)
	ChallengeResult(purpose domain.ChallengePurpose, result string)
	WithdrawalTransition(status domain.WithdrawalStatus)
	WithdrawnAmount(currency string, minor int64)
}

// --- Service Ports (Business Logic) ---

// DocumentService is the upload boundary of the identity document store.
type DocumentService interface {
	Upload(ctx context.Context, req DocumentUpload) (*domain.IdentityDocument, error)
	Resolve(ctx context.Context, sellerID, ref string, kind domain.DocumentKind) (*domain.IdentityDocument, error)
}

// DocumentUpload is one raw document upload.
type DocumentUpload struct {
	SellerID    string
	Kind        domain.DocumentKind
	ContentType string // as declared by the client
	Body        io.Reader
}

// KYCService drives the per-seller verification state machine.
type KYCService interface {
	Submit(ctx context.Context, req KYCSubmitRequest) (*domain.SellerIdentity, error)
	RecordProviderDecision(ctx context.Context, req ProviderDecisionRequest) (bool, error)
	GetIdentity(ctx context.Context, sellerID string) (*domain.SellerIdentity, error)
	ListSubmissions(ctx context.Context, sellerID string) ([]domain.KYCSubmission, error)
}

// KYCSubmitRequest holds a seller's submission.
type KYCSubmitRequest struct {
	SellerID  string
	Fields    domain.KYCFields
	Documents domain.DocumentRefs
}

// ProviderDecisionRequest is a provider webhook delivery.
type ProviderDecisionRequest struct {
	SellerID string
	Version  int64
	Decision domain.KYCDecision
	Reason   string
}

// ChallengeService is the 2FA gate.
type ChallengeService interface {
	Issue(ctx context.Context, req IssueChallengeRequest) (*domain.VerificationChallenge, error)
	Consume(ctx context.Context, sellerID string, purpose domain.ChallengePurpose, proof domain.ChallengeProof) (bool, error)
	// Require returns ChallengeRequired without a proof and
	// InvalidOrExpiredChallenge when the proof does not consume.
	Require(ctx context.Context, sellerID string, purpose domain.ChallengePurpose, proof domain.ChallengeProof) error
}

// IssueChallengeRequest asks for a new code to be delivered.
type IssueChallengeRequest struct {
	SellerID string
	Email    string
	Purpose  domain.ChallengePurpose
}

// PayoutMethodService is the payout method registry.
type PayoutMethodService interface {
	AddMethod(ctx context.Context, req AddPayoutMethodRequest) (*domain.PayoutMethod, error)
	SetDefault(ctx context.Context, sellerID string, methodID uuid.UUID) (*domain.PayoutMethod, error)
	DeleteMethod(ctx context.Context, sellerID string, methodID uuid.UUID, proof domain.ChallengeProof) error
	RecordVerification(ctx context.Context, req MethodVerificationRequest) (bool, error)
	ListMethods(ctx context.Context, sellerID string) ([]domain.PayoutMethod, error)
}

// AddPayoutMethodRequest registers a new payout instrument.
type AddPayoutMethodRequest struct {
	SellerID string
	Type     domain.PayoutMethodType
	Details  domain.PayoutDetails
	Proof    domain.ChallengeProof
}

// MethodVerificationRequest is an out-of-band verifier callback.
type MethodVerificationRequest struct {
	MethodID uuid.UUID
	Outcome  domain.MethodVerificationOutcome
	Reason   string
}

// WithdrawalService is the withdrawal ledger.
type WithdrawalService interface {
	RequestWithdrawal(ctx context.Context, req WithdrawalInput) (*domain.WithdrawalRequest, error)
	ConfirmWithdrawal(ctx context.Context, req ConfirmWithdrawalInput) (*domain.WithdrawalRequest, error)
	HandleSettlement(ctx context.Context, req SettlementCallback) (bool, error)
	GetWithdrawal(ctx context.Context, sellerID string, id uuid.UUID) (*domain.WithdrawalRequest, error)
	ListWithdrawals(ctx context.Context, params WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error)
	ExpireStale(ctx context.Context) (int, error)
	RedispatchPending(ctx context.Context) (int, error)
}

// WithdrawalInput holds validated input for a withdrawal request.
// An empty RequestID gets a server-generated one.
type WithdrawalInput struct {
	SellerID  string
	RequestID string
	Amount    int64
	MethodID  uuid.UUID
}

// ConfirmWithdrawalInput carries the Withdraw challenge for a request.
type ConfirmWithdrawalInput struct {
	SellerID     string
	WithdrawalID uuid.UUID
	Proof        domain.ChallengeProof
}

// SettlementCallback is delivered by the settlement rail, at least once.
type SettlementCallback struct {
	WithdrawalID uuid.UUID
	Outcome      domain.SettlementOutcome
	Reference    string
	Reason       string
}

// BalanceService owns seller balances and the earnings feed.
type BalanceService interface {
	CreditEarnings(ctx context.Context, req EarningsCredit) (*domain.LedgerEntry, error)
	GetSummary(ctx context.Context, sellerID string) (*domain.BalanceSummary, error)
	ListLedger(ctx context.Context, sellerID string, limit, offset int) ([]domain.LedgerEntry, int64, error)
}

// EarningsCredit is one order payout credited to a seller.
type EarningsCredit struct {
	SellerID    string
	Amount      int64
	Reference   string
	Description string
}

// AuditService records audit entries without blocking the request.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
