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

var idempotencyColumns = []string{"key", "resource_id", "fingerprint", "response_json", "created_at"}

func TestIdempotencyRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)
	resourceID := uuid.New()
	now := time.Now()
	log := &domain.IdempotencyLog{
		Key:          domain.BuildWithdrawalIdempotencyKey("seller-42", "r1"),
		ResourceID:   resourceID,
		Fingerprint:  domain.WithdrawalFingerprint(5000, resourceID),
		ResponseJSON: []byte(`{"status":"AWAITING_VERIFICATION"}`),
		CreatedAt:    now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO idempotency_logs").
		WithArgs(log.Key, log.ResourceID, log.Fingerprint, log.ResponseJSON, log.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, log)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Create_Duplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)
	log := &domain.IdempotencyLog{Key: "seller-42:withdrawal:r1", ResourceID: uuid.New(), CreatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO idempotency_logs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, log)
	assert.ErrorIs(t, err, ports.ErrDuplicate)
}

func TestIdempotencyRepo_Get_Found(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)
	resourceID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM idempotency_logs WHERE key").
		WithArgs("seller-42:withdrawal:r1").
		WillReturnRows(pgxmock.NewRows(idempotencyColumns).
			AddRow("seller-42:withdrawal:r1", resourceID, "5000|x", []byte(`{"status":"AWAITING_VERIFICATION"}`), now))

	result, err := repo.Get(context.Background(), "seller-42:withdrawal:r1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, resourceID, result.ResourceID)
	assert.Equal(t, "5000|x", result.Fingerprint)
	assert.Equal(t, []byte(`{"status":"AWAITING_VERIFICATION"}`), result.ResponseJSON)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM idempotency_logs WHERE key").
		WithArgs("nonexistent-key").
		WillReturnRows(pgxmock.NewRows(idempotencyColumns))

	result, err := repo.Get(context.Background(), "nonexistent-key")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}
