package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `id, request_id, seller_id, amount, currency, method_id, status, failure_reason,
	settlement_ref, created_at, confirmed_at, dispatched_at, settled_at, updated_at`

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a PostgreSQL-backed withdrawal repository.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalRequest, error) {
	w := &domain.WithdrawalRequest{}
	err := row.Scan(
		&w.ID, &w.RequestID, &w.SellerID, &w.Amount, &w.Currency, &w.MethodID, &w.Status, &w.FailureReason,
		&w.SettlementRef, &w.CreatedAt, &w.ConfirmedAt, &w.DispatchedAt, &w.SettledAt, &w.UpdatedAt,
	)
	return w, err
}

func collectWithdrawals(rows pgx.Rows) ([]domain.WithdrawalRequest, error) {
	defer rows.Close()

	var list []domain.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal row: %w", err)
		}
		list = append(list, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withdrawal rows: %w", err)
	}
	return list, nil
}

// Create inserts a withdrawal request. A reused (seller_id, request_id) pair yields ports.ErrDuplicate.
func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	query := `INSERT INTO withdrawal_requests (` + withdrawalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.RequestID, w.SellerID, w.Amount, w.Currency, w.MethodID, w.Status, w.FailureReason,
		w.SettlementRef, w.CreatedAt, w.ConfirmedAt, w.DispatchedAt, w.SettledAt, w.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert withdrawal: %w", ports.ErrDuplicate)
		}
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

// GetByID fetches a withdrawal by ID.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`

	w, err := scanWithdrawal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	return w, nil
}

// GetByIDForUpdate locks a withdrawal row within tx.
func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`

	w, err := scanWithdrawal(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get withdrawal for update: %w", err)
	}
	return w, nil
}

// Update persists status and lifecycle timestamps.
func (r *WithdrawalRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	query := `UPDATE withdrawal_requests SET status = $2, failure_reason = $3, settlement_ref = $4,
		confirmed_at = $5, dispatched_at = $6, settled_at = $7, updated_at = $8
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query,
		w.ID, w.Status, w.FailureReason, w.SettlementRef, w.ConfirmedAt, w.DispatchedAt, w.SettledAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update withdrawal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal not found: %s", w.ID)
	}
	return nil
}

// MarkDispatched stores the settlement reference of a Processing request.
func (r *WithdrawalRepo) MarkDispatched(ctx context.Context, id uuid.UUID, ref string, at time.Time) (bool, error) {
	query := `UPDATE withdrawal_requests SET settlement_ref = $2, dispatched_at = $3, updated_at = $3
		WHERE id = $1 AND status = $4 AND dispatched_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, id, ref, at, domain.WithdrawalStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("mark withdrawal dispatched: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SumHeld totals amounts still inside their confirmation window.
func (r *WithdrawalRepo) SumHeld(ctx context.Context, tx pgx.Tx, sellerID string, heldSince time.Time) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM withdrawal_requests
		WHERE seller_id = $1 AND status = $2 AND created_at > $3`

	var total int64
	err := tx.QueryRow(ctx, query, sellerID, domain.WithdrawalStatusAwaitingVerification, heldSince).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum held withdrawals: %w", err)
	}
	return total, nil
}

// SumWithdrawnSince totals the amounts counting toward the rolling monthly cap.
func (r *WithdrawalRepo) SumWithdrawnSince(ctx context.Context, tx pgx.Tx, sellerID string, windowStart, heldSince time.Time) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM withdrawal_requests
		WHERE seller_id = $1 AND created_at >= $2
		AND (status IN ($3, $4) OR (status = $5 AND created_at > $6))`

	var total int64
	err := tx.QueryRow(ctx, query, sellerID, windowStart,
		domain.WithdrawalStatusProcessing, domain.WithdrawalStatusCompleted,
		domain.WithdrawalStatusAwaitingVerification, heldSince,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum monthly withdrawals: %w", err)
	}
	return total, nil
}

// HasPendingForMethod reports whether a non-terminal withdrawal references the method.
func (r *WithdrawalRepo) HasPendingForMethod(ctx context.Context, tx pgx.Tx, methodID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM withdrawal_requests WHERE method_id = $1 AND status IN ($2, $3, $4))`

	var exists bool
	err := tx.QueryRow(ctx, query, methodID,
		domain.WithdrawalStatusRequested, domain.WithdrawalStatusAwaitingVerification, domain.WithdrawalStatusProcessing,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending withdrawals: %w", err)
	}
	return exists, nil
}

// List fetches a seller's withdrawals with an optional status filter, newest first.
func (r *WithdrawalRepo) List(ctx context.Context, params ports.WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error) {
	conditions := []string{"seller_id = $1"}
	args := []any{params.SellerID}
	argIdx := 2

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM withdrawal_requests "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count withdrawals: %w", err)
	}

	dataQuery := fmt.Sprintf(`SELECT %s FROM withdrawal_requests %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		withdrawalColumns, where, argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list withdrawals: %w", err)
	}
	list, err := collectWithdrawals(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListExpired returns AwaitingVerification requests created before createdBefore.
func (r *WithdrawalRepo) ListExpired(ctx context.Context, createdBefore time.Time, limit int) ([]domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests
		WHERE status = $1 AND created_at <= $2 ORDER BY created_at LIMIT $3`

	rows, err := r.pool.Query(ctx, query, domain.WithdrawalStatusAwaitingVerification, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired withdrawals: %w", err)
	}
	return collectWithdrawals(rows)
}

// ListUndispatched returns Processing requests confirmed before confirmedBefore
// that never received a settlement reference.
func (r *WithdrawalRepo) ListUndispatched(ctx context.Context, confirmedBefore time.Time, limit int) ([]domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests
		WHERE status = $1 AND dispatched_at IS NULL AND confirmed_at <= $2 ORDER BY confirmed_at LIMIT $3`

	rows, err := r.pool.Query(ctx, query, domain.WithdrawalStatusProcessing, confirmedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list undispatched withdrawals: %w", err)
	}
	return collectWithdrawals(rows)
}
