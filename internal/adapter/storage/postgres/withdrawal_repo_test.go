package postgres

import (
	"context"
	"testing"
	"time"

	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var withdrawalCols = []string{
	"id", "request_id", "seller_id", "amount", "currency", "method_id", "status", "failure_reason",
	"settlement_ref", "created_at", "confirmed_at", "dispatched_at", "settled_at", "updated_at",
}

func withdrawalRow(rows *pgxmock.Rows, id uuid.UUID, status domain.WithdrawalStatus, amount int64, at time.Time) *pgxmock.Rows {
	return rows.AddRow(id, "req-"+id.String()[:8], "seller-1", amount, "USD", uuid.Nil, status, nil,
		nil, at, nil, nil, nil, at)
}

func TestWithdrawalRepo_Create_DuplicateRequestID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	now := time.Now()
	w := &domain.WithdrawalRequest{
		ID: uuid.New(), RequestID: "r1", SellerID: "seller-1", Amount: 5000, Currency: "USD",
		MethodID: uuid.New(), Status: domain.WithdrawalStatusAwaitingVerification, CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO withdrawal_requests").
		WithArgs(w.ID, w.RequestID, w.SellerID, w.Amount, w.Currency, w.MethodID, w.Status, w.FailureReason,
			w.SettlementRef, w.CreatedAt, w.ConfirmedAt, w.DispatchedAt, w.SettledAt, w.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, w)
	assert.ErrorIs(t, err, ports.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	id := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests WHERE id .+ FOR UPDATE").
		WithArgs(id).
		WillReturnRows(withdrawalRow(pgxmock.NewRows(withdrawalCols), id, domain.WithdrawalStatusAwaitingVerification, 5000, now))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	w, err := repo.GetByIDForUpdate(context.Background(), tx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusAwaitingVerification, w.Status)
	assert.Equal(t, int64(5000), w.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_Update_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	w := &domain.WithdrawalRequest{ID: uuid.New(), Status: domain.WithdrawalStatusFailed, UpdatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE withdrawal_requests SET status").
		WithArgs(w.ID, w.Status, w.FailureReason, w.SettlementRef, w.ConfirmedAt, w.DispatchedAt, w.SettledAt, w.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Update(context.Background(), tx, w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestWithdrawalRepo_MarkDispatched(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	id := uuid.New()
	now := time.Now()

	mock.ExpectExec("UPDATE withdrawal_requests SET settlement_ref .+ dispatched_at IS NULL").
		WithArgs(id, "stl_1", now, domain.WithdrawalStatusProcessing).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE withdrawal_requests SET settlement_ref").
		WithArgs(id, "stl_1", now, domain.WithdrawalStatusProcessing).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	changed, err := repo.MarkDispatched(context.Background(), id, "stl_1", now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkDispatched(context.Background(), id, "stl_1", now)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_Sums(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	now := time.Now()
	heldSince := now.Add(-30 * time.Minute)
	windowStart := now.Add(-720 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM withdrawal_requests").
		WithArgs("seller-1", domain.WithdrawalStatusAwaitingVerification, heldSince).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(2500)))
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM withdrawal_requests").
		WithArgs("seller-1", windowStart,
			domain.WithdrawalStatusProcessing, domain.WithdrawalStatusCompleted,
			domain.WithdrawalStatusAwaitingVerification, heldSince).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(90000)))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	held, err := repo.SumHeld(context.Background(), tx, "seller-1", heldSince)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), held)

	monthly, err := repo.SumWithdrawnSince(context.Background(), tx, "seller-1", windowStart, heldSince)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), monthly)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_HasPendingForMethod(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	methodID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS .+ FROM withdrawal_requests WHERE method_id").
		WithArgs(methodID, domain.WithdrawalStatusRequested, domain.WithdrawalStatusAwaitingVerification,
			domain.WithdrawalStatusProcessing).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	pending, err := repo.HasPendingForMethod(context.Background(), tx, methodID)
	require.NoError(t, err)
	assert.True(t, pending)
}

func TestWithdrawalRepo_List_WithStatusFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	now := time.Now()
	status := domain.WithdrawalStatusCompleted

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM withdrawal_requests WHERE seller_id = \\$1 AND status = \\$2").
		WithArgs("seller-1", status).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests WHERE .+ LIMIT \\$3 OFFSET \\$4").
		WithArgs("seller-1", status, 2, 0).
		WillReturnRows(withdrawalRow(withdrawalRow(pgxmock.NewRows(withdrawalCols),
			uuid.New(), status, 1000, now), uuid.New(), status, 2000, now.Add(-time.Hour)))

	list, total, err := repo.List(context.Background(), ports.WithdrawalListParams{
		SellerID: "seller-1", Status: &status, Limit: 2, Offset: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1000), list[0].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepo_ListExpiredAndUndispatched(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWithdrawalRepo(mock)
	now := time.Now()
	cutoff := now.Add(-30 * time.Minute)

	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests\\s+WHERE status = \\$1 AND created_at <= \\$2").
		WithArgs(domain.WithdrawalStatusAwaitingVerification, cutoff, 100).
		WillReturnRows(withdrawalRow(pgxmock.NewRows(withdrawalCols),
			uuid.New(), domain.WithdrawalStatusAwaitingVerification, 1500, cutoff.Add(-time.Minute)))
	mock.ExpectQuery("SELECT .+ FROM withdrawal_requests\\s+WHERE status = \\$1 AND dispatched_at IS NULL").
		WithArgs(domain.WithdrawalStatusProcessing, cutoff, 100).
		WillReturnRows(pgxmock.NewRows(withdrawalCols))

	expired, err := repo.ListExpired(context.Background(), cutoff, 100)
	require.NoError(t, err)
	assert.Len(t, expired, 1)

	undispatched, err := repo.ListUndispatched(context.Background(), cutoff, 100)
	require.NoError(t, err)
	assert.Empty(t, undispatched)
	assert.NoError(t, mock.ExpectationsWereMet())
}
