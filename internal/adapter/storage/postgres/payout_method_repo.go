package postgres

import (
	"context"
	"errors"
	"fmt"

	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const methodColumns = `id, seller_id, type, details_enc, display, fingerprint, status, is_default,
	failure_reason, created_at, updated_at, verified_at`

// PayoutMethodRepo implements ports.PayoutMethodRepository.
type PayoutMethodRepo struct {
	pool Pool
}

// NewPayoutMethodRepo creates a PostgreSQL-backed payout method repository.
func NewPayoutMethodRepo(pool Pool) *PayoutMethodRepo {
	return &PayoutMethodRepo{pool: pool}
}

func scanMethod(row pgx.Row) (*domain.PayoutMethod, error) {
	m := &domain.PayoutMethod{}
	err := row.Scan(
		&m.ID, &m.SellerID, &m.Type, &m.DetailsEnc, &m.Display, &m.Fingerprint, &m.Status, &m.IsDefault,
		&m.FailureReason, &m.CreatedAt, &m.UpdatedAt, &m.VerifiedAt,
	)
	return m, err
}

// Create inserts a payout method. A second method with the same fingerprint
// for the seller yields ports.ErrDuplicate.
func (r *PayoutMethodRepo) Create(ctx context.Context, tx pgx.Tx, m *domain.PayoutMethod) error {
	query := `INSERT INTO payout_methods (` + methodColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := tx.Exec(ctx, query,
		m.ID, m.SellerID, m.Type, m.DetailsEnc, m.Display, m.Fingerprint, m.Status, m.IsDefault,
		m.FailureReason, m.CreatedAt, m.UpdatedAt, m.VerifiedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert payout method: %w", ports.ErrDuplicate)
		}
		return fmt.Errorf("insert payout method: %w", err)
	}
	return nil
}

// GetByID fetches a payout method by ID.
func (r *PayoutMethodRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutMethod, error) {
	query := `SELECT ` + methodColumns + ` FROM payout_methods WHERE id = $1`

	m, err := scanMethod(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payout method: %w", err)
	}
	return m, nil
}

// GetByIDForUpdate locks a payout method row within tx.
func (r *PayoutMethodRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PayoutMethod, error) {
	query := `SELECT ` + methodColumns + ` FROM payout_methods WHERE id = $1 FOR UPDATE`

	m, err := scanMethod(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payout method for update: %w", err)
	}
	return m, nil
}

// ListBySeller returns the seller's methods, default first then oldest first.
func (r *PayoutMethodRepo) ListBySeller(ctx context.Context, sellerID string) ([]domain.PayoutMethod, error) {
	query := `SELECT ` + methodColumns + ` FROM payout_methods WHERE seller_id = $1
		ORDER BY is_default DESC, created_at ASC`

	rows, err := r.pool.Query(ctx, query, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list payout methods: %w", err)
	}
	defer rows.Close()

	var methods []domain.PayoutMethod
	for rows.Next() {
		m, err := scanMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout method: %w", err)
		}
		methods = append(methods, *m)
	}
	return methods, rows.Err()
}

// CountBySeller counts the seller's methods within tx.
func (r *PayoutMethodRepo) CountBySeller(ctx context.Context, tx pgx.Tx, sellerID string) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM payout_methods WHERE seller_id = $1`, sellerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count payout methods: %w", err)
	}
	return n, nil
}

// ExistsFingerprint reports whether the seller already registered these details.
func (r *PayoutMethodRepo) ExistsFingerprint(ctx context.Context, tx pgx.Tx, sellerID, fingerprint string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM payout_methods WHERE seller_id = $1 AND fingerprint = $2)`
	if err := tx.QueryRow(ctx, query, sellerID, fingerprint).Scan(&exists); err != nil {
		return false, fmt.Errorf("check payout method fingerprint: %w", err)
	}
	return exists, nil
}

// ClearDefault unsets the seller's current default, if any.
func (r *PayoutMethodRepo) ClearDefault(ctx context.Context, tx pgx.Tx, sellerID string) error {
	query := `UPDATE payout_methods SET is_default = FALSE, updated_at = NOW() WHERE seller_id = $1 AND is_default`
	if _, err := tx.Exec(ctx, query, sellerID); err != nil {
		return fmt.Errorf("clear default payout method: %w", err)
	}
	return nil
}

// SetDefault marks id as the default.
func (r *PayoutMethodRepo) SetDefault(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `UPDATE payout_methods SET is_default = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("set default payout method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout method not found")
	}
	return nil
}

// UpdateStatus persists a verification outcome.
func (r *PayoutMethodRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, m *domain.PayoutMethod) error {
	query := `UPDATE payout_methods SET status = $2, failure_reason = $3, verified_at = $4, updated_at = $5
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query, m.ID, m.Status, m.FailureReason, m.VerifiedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update payout method status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout method not found")
	}
	return nil
}

// Delete removes a payout method.
func (r *PayoutMethodRepo) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM payout_methods WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payout method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout method not found")
	}
	return nil
}
