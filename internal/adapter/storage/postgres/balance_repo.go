package postgres

import (
	"context"
	"errors"
	"fmt"

	"seller-payout-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// BalanceRepo implements ports.BalanceRepository.
type BalanceRepo struct {
	pool Pool
}

// NewBalanceRepo creates a PostgreSQL-backed balance repository.
func NewBalanceRepo(pool Pool) *BalanceRepo {
	return &BalanceRepo{pool: pool}
}

// Get returns the seller's balance, or nil if nothing was ever credited.
func (r *BalanceRepo) Get(ctx context.Context, sellerID string) (*domain.SellerBalance, error) {
	query := `SELECT seller_id, balance, currency, updated_at FROM seller_balances WHERE seller_id = $1`

	b := &domain.SellerBalance{}
	err := r.pool.QueryRow(ctx, query, sellerID).Scan(&b.SellerID, &b.Balance, &b.Currency, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get seller balance: %w", err)
	}
	return b, nil
}

// GetForUpdate creates a zero balance if needed and locks the row within tx.
func (r *BalanceRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, sellerID, currency string) (*domain.SellerBalance, error) {
	insert := `INSERT INTO seller_balances (seller_id, balance, currency) VALUES ($1, 0, $2)
		ON CONFLICT (seller_id) DO NOTHING`
	if _, err := tx.Exec(ctx, insert, sellerID, currency); err != nil {
		return nil, fmt.Errorf("ensure seller balance: %w", err)
	}

	query := `SELECT seller_id, balance, currency, updated_at FROM seller_balances WHERE seller_id = $1 FOR UPDATE`

	b := &domain.SellerBalance{}
	err := tx.QueryRow(ctx, query, sellerID).Scan(&b.SellerID, &b.Balance, &b.Currency, &b.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get seller balance for update: %w", err)
	}
	return b, nil
}

// UpdateBalance updates the balance within a database transaction.
func (r *BalanceRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, sellerID string, balance int64) error {
	query := `UPDATE seller_balances SET balance = $1, updated_at = NOW() WHERE seller_id = $2`

	tag, err := tx.Exec(ctx, query, balance, sellerID)
	if err != nil {
		return fmt.Errorf("update seller balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("seller balance not found: %s", sellerID)
	}
	return nil
}
