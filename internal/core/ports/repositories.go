package ports

import (
	"context"
	"errors"
	"time"

	"seller-payout-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrDuplicate is wrapped by repositories when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate record")

// Methods accepting pgx.Tx run inside the caller's transaction; the *ForUpdate
// variants take a row lock held until that transaction ends.

// IdentityRepository persists seller identities and their submission cycles.
type IdentityRepository interface {
	Get(ctx context.Context, sellerID string) (*domain.SellerIdentity, error)
	// LockOrCreate ensures an Unsubmitted row exists, then locks it.
	LockOrCreate(ctx context.Context, tx pgx.Tx, sellerID string) (*domain.SellerIdentity, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, sellerID string) (*domain.SellerIdentity, error)
	Update(ctx context.Context, tx pgx.Tx, identity *domain.SellerIdentity) error
	CreateSubmission(ctx context.Context, tx pgx.Tx, sub *domain.KYCSubmission) error
	GetSubmission(ctx context.Context, tx pgx.Tx, sellerID string, version int64) (*domain.KYCSubmission, error)
	UpdateSubmission(ctx context.Context, tx pgx.Tx, sub *domain.KYCSubmission) error
	ListSubmissions(ctx context.Context, sellerID string) ([]domain.KYCSubmission, error)
}

// DocumentRepository stores document bytes once per digest and ownership per seller.
type DocumentRepository interface {
	Save(ctx context.Context, doc *domain.IdentityDocument, content []byte) error
	GetOwned(ctx context.Context, sellerID, ref string, kind domain.DocumentKind) (*domain.IdentityDocument, error)
}

// PayoutMethodRepository persists payout methods.
type PayoutMethodRepository interface {
	Create(ctx context.Context, tx pgx.Tx, method *domain.PayoutMethod) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutMethod, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PayoutMethod, error)
	ListBySeller(ctx context.Context, sellerID string) ([]domain.PayoutMethod, error)
	CountBySeller(ctx context.Context, tx pgx.Tx, sellerID string) (int, error)
	ExistsFingerprint(ctx context.Context, tx pgx.Tx, sellerID, fingerprint string) (bool, error)
	// ClearDefault and SetDefault are always called together in one transaction.
	ClearDefault(ctx context.Context, tx pgx.Tx, sellerID string) error
	SetDefault(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, method *domain.PayoutMethod) error
	Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// EligibilityRepository records whether a seller may register payout methods.
type EligibilityRepository interface {
	Get(ctx context.Context, sellerID string) (*domain.PayoutEligibility, error)
	// Upsert never lets an older submission version overwrite a newer one.
	Upsert(ctx context.Context, e *domain.PayoutEligibility) error
}

// WithdrawalRepository persists withdrawal requests.
type WithdrawalRepository interface {
	Create(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error)
	Update(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error
	// MarkDispatched records the settlement reference if the request is still
	// Processing and undispatched; it reports whether a row changed.
	MarkDispatched(ctx context.Context, id uuid.UUID, ref string, at time.Time) (bool, error)
	// SumHeld totals AwaitingVerification amounts created after heldSince.
	SumHeld(ctx context.Context, tx pgx.Tx, sellerID string, heldSince time.Time) (int64, error)
	// SumWithdrawnSince totals Processing and Completed amounts created since
	// windowStart plus AwaitingVerification amounts created after heldSince.
	SumWithdrawnSince(ctx context.Context, tx pgx.Tx, sellerID string, windowStart, heldSince time.Time) (int64, error)
	HasPendingForMethod(ctx context.Context, tx pgx.Tx, methodID uuid.UUID) (bool, error)
	List(ctx context.Context, params WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error)
	ListExpired(ctx context.Context, createdBefore time.Time, limit int) ([]domain.WithdrawalRequest, error)
	ListUndispatched(ctx context.Context, confirmedBefore time.Time, limit int) ([]domain.WithdrawalRequest, error)
}

// WithdrawalListParams holds filter + pagination for payout history.
type WithdrawalListParams struct {
	SellerID string
	Status   *domain.WithdrawalStatus
	Limit    int
	Offset   int
}

// BalanceRepository persists seller balances.
type BalanceRepository interface {
	Get(ctx context.Context, sellerID string) (*domain.SellerBalance, error)
	// GetForUpdate ensures a zero balance row exists, then locks it. The lock
	// serializes every money-affecting operation of one seller.
	GetForUpdate(ctx context.Context, tx pgx.Tx, sellerID, currency string) (*domain.SellerBalance, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, sellerID string, balance int64) error
}

// LedgerRepository appends balance movements.
type LedgerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	GetByReference(ctx context.Context, tx pgx.Tx, sellerID, reference string) (*domain.LedgerEntry, error)
	ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]domain.LedgerEntry, int64, error)
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
