package postgres

import (
	"context"
	"errors"
	"fmt"

	"seller-payout-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const identityColumns = `seller_id, state, version, country, government_id_ref, proof_of_address_ref,
	rejection_reason, submitted_at, decided_at, created_at, updated_at`

const submissionColumns = `id, seller_id, version, fields_enc, country, government_id_ref, proof_of_address_ref,
	state, reason, submitted_at, decided_at`

// IdentityRepo implements ports.IdentityRepository.
type IdentityRepo struct {
	pool Pool
}

// NewIdentityRepo creates a PostgreSQL-backed identity repository.
func NewIdentityRepo(pool Pool) *IdentityRepo {
	return &IdentityRepo{pool: pool}
}

func scanIdentity(row pgx.Row) (*domain.SellerIdentity, error) {
	i := &domain.SellerIdentity{}
	err := row.Scan(
		&i.SellerID, &i.State, &i.Version, &i.Country, &i.GovernmentIDRef, &i.ProofOfAddressRef,
		&i.RejectionReason, &i.SubmittedAt, &i.DecidedAt, &i.CreatedAt, &i.UpdatedAt,
	)
	return i, err
}

// Get returns the identity of a seller, or nil if none was ever created.
func (r *IdentityRepo) Get(ctx context.Context, sellerID string) (*domain.SellerIdentity, error) {
	query := `SELECT ` + identityColumns + ` FROM seller_identities WHERE seller_id = $1`

	i, err := scanIdentity(r.pool.QueryRow(ctx, query, sellerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get seller identity: %w", err)
	}
	return i, nil
}

// LockOrCreate inserts an Unsubmitted identity if missing and returns it locked.
func (r *IdentityRepo) LockOrCreate(ctx context.Context, tx pgx.Tx, sellerID string) (*domain.SellerIdentity, error) {
	insert := `INSERT INTO seller_identities (seller_id, state) VALUES ($1, $2) ON CONFLICT (seller_id) DO NOTHING`
	if _, err := tx.Exec(ctx, insert, sellerID, domain.KYCStateUnsubmitted); err != nil {
		return nil, fmt.Errorf("ensure seller identity: %w", err)
	}

	i, err := r.GetForUpdate(ctx, tx, sellerID)
	if err != nil {
		return nil, err
	}
	if i == nil {
		return nil, fmt.Errorf("seller identity %s vanished after insert", sellerID)
	}
	return i, nil
}

// GetForUpdate locks the identity row within tx.
func (r *IdentityRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, sellerID string) (*domain.SellerIdentity, error) {
	query := `SELECT ` + identityColumns + ` FROM seller_identities WHERE seller_id = $1 FOR UPDATE`

	i, err := scanIdentity(tx.QueryRow(ctx, query, sellerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get seller identity for update: %w", err)
	}
	return i, nil
}

// Update persists the mutable identity fields.
func (r *IdentityRepo) Update(ctx context.Context, tx pgx.Tx, i *domain.SellerIdentity) error {
	query := `UPDATE seller_identities SET state = $2, version = $3, country = $4, government_id_ref = $5,
		proof_of_address_ref = $6, rejection_reason = $7, submitted_at = $8, decided_at = $9, updated_at = $10
		WHERE seller_id = $1`

	tag, err := tx.Exec(ctx, query,
		i.SellerID, i.State, i.Version, i.Country, i.GovernmentIDRef,
		i.ProofOfAddressRef, i.RejectionReason, i.SubmittedAt, i.DecidedAt, i.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update seller identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("seller identity not found")
	}
	return nil
}

// CreateSubmission stores one submission cycle.
func (r *IdentityRepo) CreateSubmission(ctx context.Context, tx pgx.Tx, s *domain.KYCSubmission) error {
	query := `INSERT INTO kyc_submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := tx.Exec(ctx, query,
		s.ID, s.SellerID, s.Version, s.FieldsEnc, s.Country, s.GovernmentIDRef,
		s.ProofOfAddressRef, s.State, s.Reason, s.SubmittedAt, s.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("insert kyc submission: %w", err)
	}
	return nil
}

func scanSubmission(row pgx.Row) (*domain.KYCSubmission, error) {
	s := &domain.KYCSubmission{}
	err := row.Scan(
		&s.ID, &s.SellerID, &s.Version, &s.FieldsEnc, &s.Country, &s.GovernmentIDRef,
		&s.ProofOfAddressRef, &s.State, &s.Reason, &s.SubmittedAt, &s.DecidedAt,
	)
	return s, err
}

// GetSubmission returns the submission for (sellerID, version), or nil.
func (r *IdentityRepo) GetSubmission(ctx context.Context, tx pgx.Tx, sellerID string, version int64) (*domain.KYCSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM kyc_submissions WHERE seller_id = $1 AND version = $2`

	s, err := scanSubmission(tx.QueryRow(ctx, query, sellerID, version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get kyc submission: %w", err)
	}
	return s, nil
}

// UpdateSubmission records a decision on a submission.
func (r *IdentityRepo) UpdateSubmission(ctx context.Context, tx pgx.Tx, s *domain.KYCSubmission) error {
	query := `UPDATE kyc_submissions SET state = $2, reason = $3, decided_at = $4 WHERE id = $1`

	tag, err := tx.Exec(ctx, query, s.ID, s.State, s.Reason, s.DecidedAt)
	if err != nil {
		return fmt.Errorf("update kyc submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("kyc submission not found")
	}
	return nil
}

// ListSubmissions returns a seller's submissions, newest first.
func (r *IdentityRepo) ListSubmissions(ctx context.Context, sellerID string) ([]domain.KYCSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM kyc_submissions WHERE seller_id = $1 ORDER BY version DESC`

	rows, err := r.pool.Query(ctx, query, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list kyc submissions: %w", err)
	}
	defer rows.Close()

	var subs []domain.KYCSubmission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan kyc submission: %w", err)
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}
