package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"
	"seller-payout-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// BalanceServiceImpl implements ports.BalanceService.
type BalanceServiceImpl struct {
	balances    ports.BalanceRepository
	ledger      ports.LedgerRepository
	withdrawals ports.WithdrawalRepository
	transactor  ports.DBTransactor
	limits      domain.WithdrawalLimits
	log         zerolog.Logger
	now         func() time.Time
}

// NewBalanceService creates the balance service.
func NewBalanceService(
	balances ports.BalanceRepository,
	ledger ports.LedgerRepository,
	withdrawals ports.WithdrawalRepository,
	transactor ports.DBTransactor,
	limits domain.WithdrawalLimits,
	log zerolog.Logger,
) *BalanceServiceImpl {
	return &BalanceServiceImpl{
		balances:    balances,
		ledger:      ledger,
		withdrawals: withdrawals,
		transactor:  transactor,
		limits:      limits,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreditEarnings adds an order payout to the seller balance. Replaying the
// same reference with the same amount returns the original entry.
func (s *BalanceServiceImpl) CreditEarnings(ctx context.Context, req ports.EarningsCredit) (*domain.LedgerEntry, error) {
	errs := map[string]string{}
	if req.SellerID == "" {
		errs["seller_id"] = "is required"
	}
	if req.Amount <= 0 {
		errs["amount"] = "must be greater than zero"
	}
	reference := strings.TrimSpace(req.Reference)
	switch {
	case reference == "":
		errs["reference"] = "is required"
	case len(reference) > 128:
		errs["reference"] = "must be at most 128 characters"
	case strings.HasPrefix(reference, "withdrawal:"), strings.HasPrefix(reference, "reversal:"):
		errs["reference"] = "uses a reserved prefix"
	}
	if len(errs) > 0 {
		return nil, apperror.ValidationFields("invalid earnings credit", errs)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	balance, err := s.balances.GetForUpdate(ctx, dbTx, req.SellerID, s.limits.Currency)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock balance: %w", err))
	}

	existing, err := s.ledger.GetByReference(ctx, dbTx, req.SellerID, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get ledger entry: %w", err))
	}
	if existing != nil {
		if existing.Kind == domain.LedgerEntryEarning && existing.Amount == req.Amount {
			return existing, nil
		}
		return nil, apperror.ErrIdempotencyConflict()
	}

	newBalance := balance.Balance + req.Amount
	entry := &domain.LedgerEntry{
		ID:           uuid.New(),
		SellerID:     req.SellerID,
		Kind:         domain.LedgerEntryEarning,
		Amount:       req.Amount,
		BalanceAfter: newBalance,
		Reference:    reference,
		CreatedAt:    s.now(),
	}
	if req.Description != "" {
		desc := req.Description
		entry.Description = &desc
	}

	if err := s.balances.UpdateBalance(ctx, dbTx, req.SellerID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}
	if err := s.ledger.Create(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("seller_id", req.SellerID).
		Str("reference", reference).
		Int64("amount", req.Amount).
		Int64("balance_after", newBalance).
		Msg("earnings credited")

	return entry, nil
}

// GetSummary reports balance, holds and remaining monthly allowance.
func (s *BalanceServiceImpl) GetSummary(ctx context.Context, sellerID string) (*domain.BalanceSummary, error) {
	balance, err := s.balances.Get(ctx, sellerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get balance: %w", err))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := s.now()
	heldSince := now.Add(-s.limits.ConfirmWindow)
	held, err := s.withdrawals.SumHeld(ctx, dbTx, sellerID, heldSince)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum held: %w", err))
	}
	withdrawn, err := s.withdrawals.SumWithdrawnSince(ctx, dbTx, sellerID, now.Add(-s.limits.MonthlyWindow), heldSince)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum withdrawn: %w", err))
	}

	summary := &domain.BalanceSummary{
		SellerID:         sellerID,
		Currency:         s.limits.Currency,
		Held:             held,
		MonthlyWithdrawn: withdrawn,
		MonthlyRemaining: max(s.limits.MonthlyCap-withdrawn, 0),
		Limits:           s.limits,
	}
	if balance != nil {
		summary.Balance = balance.Balance
		summary.Currency = balance.Currency
	}
	summary.Available = max(summary.Balance-held, 0)
	return summary, nil
}

func (s *BalanceServiceImpl) ListLedger(ctx context.Context, sellerID string, limit, offset int) ([]domain.LedgerEntry, int64, error) {
	limit, offset = clampPage(limit, offset)
	entries, total, err := s.ledger.ListBySeller(ctx, sellerID, limit, offset)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list ledger: %w", err))
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	return entries, total, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
