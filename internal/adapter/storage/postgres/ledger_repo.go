package postgres

import (
	"context"
	"errors"
	"fmt"

	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `id, seller_id, kind, amount, balance_after, reference, description, created_at`

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a PostgreSQL-backed ledger repository.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

func scanLedgerEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	err := row.Scan(&e.ID, &e.SellerID, &e.Kind, &e.Amount, &e.BalanceAfter, &e.Reference, &e.Description, &e.CreatedAt)
	return e, err
}

// Create appends an entry. A reused reference yields ports.ErrDuplicate.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO balance_entries (` + ledgerColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query, e.ID, e.SellerID, e.Kind, e.Amount, e.BalanceAfter, e.Reference, e.Description, e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert ledger entry: %w", ports.ErrDuplicate)
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// GetByReference returns the entry recorded under reference, or nil.
func (r *LedgerRepo) GetByReference(ctx context.Context, tx pgx.Tx, sellerID, reference string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM balance_entries WHERE seller_id = $1 AND reference = $2`

	e, err := scanLedgerEntry(tx.QueryRow(ctx, query, sellerID, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}

// ListBySeller pages through a seller's entries, newest first.
func (r *LedgerRepo) ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]domain.LedgerEntry, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM balance_entries WHERE seller_id = $1`, sellerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	query := `SELECT ` + ledgerColumns + ` FROM balance_entries WHERE seller_id = $1
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, sellerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, total, nil
}
