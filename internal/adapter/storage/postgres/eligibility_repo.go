package postgres

import (
	"context"
	"errors"
	"fmt"

	"seller-payout-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// EligibilityRepo implements ports.EligibilityRepository.
type EligibilityRepo struct {
	pool Pool
}

// NewEligibilityRepo creates a PostgreSQL-backed eligibility repository.
func NewEligibilityRepo(pool Pool) *EligibilityRepo {
	return &EligibilityRepo{pool: pool}
}

// Get returns the eligibility record, or nil if the seller has none.
func (r *EligibilityRepo) Get(ctx context.Context, sellerID string) (*domain.PayoutEligibility, error) {
	query := `SELECT seller_id, eligible, version, updated_at FROM payout_eligibility WHERE seller_id = $1`

	e := &domain.PayoutEligibility{}
	err := r.pool.QueryRow(ctx, query, sellerID).Scan(&e.SellerID, &e.Eligible, &e.Version, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payout eligibility: %w", err)
	}
	return e, nil
}

// Upsert writes e unless a record from a newer submission version exists.
func (r *EligibilityRepo) Upsert(ctx context.Context, e *domain.PayoutEligibility) error {
	query := `INSERT INTO payout_eligibility (seller_id, eligible, version, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (seller_id) DO UPDATE
		SET eligible = EXCLUDED.eligible, version = EXCLUDED.version, updated_at = EXCLUDED.updated_at
		WHERE payout_eligibility.version <= EXCLUDED.version`

	if _, err := r.pool.Exec(ctx, query, e.SellerID, e.Eligible, e.Version, e.UpdatedAt); err != nil {
		return fmt.Errorf("upsert payout eligibility: %w", err)
	}
	return nil
}
