package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"
	"seller-payout-service/pkg/apperror"
	"seller-payout-service/pkg/money"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const (
	idempotencyTTL   = 24 * time.Hour
	maxRequestIDLen  = 128
	sweepBatchSize   = 100
	dispatchTimeout  = 30 * time.Second
	expiredReason    = "confirmation window expired"
	settlementFailed = "settlement failed"
)

// settlementRetryIntervals spaces dispatch attempts after the first one.
// Requests still undispatched afterwards are picked up by RedispatchPending.
var settlementRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
}

// WithdrawalServiceImpl implements ports.WithdrawalService.
type WithdrawalServiceImpl struct {
	withdrawals     ports.WithdrawalRepository
	methods         ports.PayoutMethodRepository
	balances        ports.BalanceRepository
	ledger          ports.LedgerRepository
	idempRepo       ports.IdempotencyRepository
	idempCache      ports.IdempotencyCache
	challenges      ports.ChallengeService
	gateway         ports.SettlementGateway
	encSvc          ports.EncryptionService
	transactor      ports.DBTransactor
	metrics         ports.MetricsRecorder
	limits          domain.WithdrawalLimits
	redispatchAfter time.Duration
	retryIntervals  []time.Duration
	log             zerolog.Logger
	now             func() time.Time
	async           func(func())
	sleep           func(time.Duration)
}

// NewWithdrawalService creates the withdrawal ledger. Processing requests
// that stay undispatched for redispatchAfter are resubmitted by RedispatchPending.
func NewWithdrawalService(
	withdrawals ports.WithdrawalRepository,
	methods ports.PayoutMethodRepository,
	balances ports.BalanceRepository,
	ledger ports.LedgerRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	challenges ports.ChallengeService,
	gateway ports.SettlementGateway,
	encSvc ports.EncryptionService,
	transactor ports.DBTransactor,
	metrics ports.MetricsRecorder,
	limits domain.WithdrawalLimits,
	redispatchAfter time.Duration,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		withdrawals:     withdrawals,
		methods:         methods,
		balances:        balances,
		ledger:          ledger,
		idempRepo:       idempRepo,
		idempCache:      idempCache,
		challenges:      challenges,
		gateway:         gateway,
		encSvc:          encSvc,
		transactor:      transactor,
		metrics:         metrics,
		limits:          limits,
		redispatchAfter: redispatchAfter,
		retryIntervals:  settlementRetryIntervals,
		log:             log,
		now:             func() time.Time { return time.Now().UTC() },
		async:           func(f func()) { go f() },
		sleep:           time.Sleep,
	}
}

// RequestWithdrawal reserves an amount against the available balance and
// leaves the request AwaitingVerification. A repeated request id returns
// the original result; reused with other parameters it is a conflict.
func (s *WithdrawalServiceImpl) RequestWithdrawal(ctx context.Context, req ports.WithdrawalInput) (*domain.WithdrawalRequest, error) {
	errs := map[string]string{}
	if req.Amount <= 0 {
		errs["amount"] = "must be greater than zero"
	}
	if req.MethodID == uuid.Nil {
		errs["method_id"] = "is required"
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	if len(req.RequestID) > maxRequestIDLen {
		errs["request_id"] = fmt.Sprintf("must be at most %d characters", maxRequestIDLen)
	}
	if len(errs) > 0 {
		return nil, apperror.ValidationFields("invalid withdrawal request", errs)
	}
	if req.RequestID == "" {
		req.RequestID = ulid.Make().String()
	}

	idempKey := domain.BuildWithdrawalIdempotencyKey(req.SellerID, req.RequestID)
	fingerprint := domain.WithdrawalFingerprint(req.Amount, req.MethodID)

	// Layer 1: Redis idempotency check
	cached, err := s.idempCache.Get(ctx, idempKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		var entry domain.IdempotencyLog
		if err := json.Unmarshal(cached, &entry); err == nil {
			return s.replay(&entry, fingerprint)
		}
		s.log.Warn().Str("key", idempKey).Msg("unreadable idempotency cache entry, falling through to DB")
	}

	// Layer 2: DB idempotency check
	idempLog, err := s.idempRepo.Get(ctx, idempKey)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if idempLog != nil {
		return s.replay(idempLog, fingerprint)
	}

	if req.Amount < s.limits.MinAmount {
		return nil, apperror.ErrBelowMinimum(money.FormatWithCurrency(s.limits.MinAmount, s.limits.Currency))
	}
	if req.Amount > s.limits.MaxPerTx {
		return nil, apperror.ErrAboveMaximum(money.FormatWithCurrency(s.limits.MaxPerTx, s.limits.Currency))
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

	// A concurrent request with the same id may have committed while we waited for the lock.
	idempLog, err = s.idempRepo.Get(ctx, idempKey)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if idempLog != nil {
		return s.replay(idempLog, fingerprint)
	}

	method, err := s.methods.GetByIDForUpdate(ctx, dbTx, req.MethodID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock method: %w", err))
	}
	if method == nil || method.SellerID != req.SellerID {
		return nil, apperror.ErrNotFound("Payout method")
	}
	if !method.IsUsable() {
		return nil, apperror.ErrMethodNotUsable("Payout method is not verified")
	}

	now := s.now()
	heldSince := now.Add(-s.limits.ConfirmWindow)

	held, err := s.withdrawals.SumHeld(ctx, dbTx, req.SellerID, heldSince)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum held: %w", err))
	}
	if req.Amount > balance.Balance-held {
		return nil, apperror.ErrInsufficientBalance()
	}

	withdrawn, err := s.withdrawals.SumWithdrawnSince(ctx, dbTx, req.SellerID, now.Add(-s.limits.MonthlyWindow), heldSince)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum withdrawn: %w", err))
	}
	if withdrawn+req.Amount > s.limits.MonthlyCap {
		return nil, apperror.ErrMonthlyCapExceeded(money.FormatWithCurrency(s.limits.MonthlyCap, s.limits.Currency))
	}

	w := &domain.WithdrawalRequest{
		ID:        uuid.New(),
		RequestID: req.RequestID,
		SellerID:  req.SellerID,
		Amount:    req.Amount,
		Currency:  s.limits.Currency,
		MethodID:  req.MethodID,
		Status:    domain.WithdrawalStatusRequested,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.TransitionTo(domain.WithdrawalStatusAwaitingVerification, now); err != nil {
		return nil, apperror.InternalError(err)
	}

	if err := s.withdrawals.Create(ctx, dbTx, w); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create withdrawal: %w", err))
	}

	respJSON, err := json.Marshal(w)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
	}
	idempEntry := &domain.IdempotencyLog{
		Key:          idempKey,
		ResourceID:   w.ID,
		Fingerprint:  fingerprint,
		ResponseJSON: respJSON,
		CreatedAt:    now,
	}
	if err := s.idempRepo.Create(ctx, dbTx, idempEntry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save idempotency log: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	// Post-process: cache in Redis (best-effort)
	if cacheJSON, err := json.Marshal(idempEntry); err == nil {
		if err := s.idempCache.Set(ctx, idempKey, cacheJSON, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	s.metrics.WithdrawalTransition(w.Status)
	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("seller_id", w.SellerID).
		Str("request_id", w.RequestID).
		Int64("amount", w.Amount).
		Msg("withdrawal requested")

	return w, nil
}

func (s *WithdrawalServiceImpl) replay(entry *domain.IdempotencyLog, fingerprint string) (*domain.WithdrawalRequest, error) {
	if !entry.Matches(fingerprint) {
		return nil, apperror.ErrIdempotencyConflict()
	}
	w := &domain.WithdrawalRequest{}
	if err := json.Unmarshal(entry.ResponseJSON, w); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached withdrawal: %w", err))
	}
	return w, nil
}

// ConfirmWithdrawal spends a Withdraw challenge, debits the balance and
// hands the request to the settlement rail. The challenge is consumed
// before the request is inspected.
func (s *WithdrawalServiceImpl) ConfirmWithdrawal(ctx context.Context, req ports.ConfirmWithdrawalInput) (*domain.WithdrawalRequest, error) {
	if err := s.challenges.Require(ctx, req.SellerID, domain.ChallengePurposeWithdraw, req.Proof); err != nil {
		return nil, err
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

	w, err := s.withdrawals.GetByIDForUpdate(ctx, dbTx, req.WithdrawalID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock withdrawal: %w", err))
	}
	if w == nil || w.SellerID != req.SellerID {
		return nil, apperror.ErrNotFound("Withdrawal")
	}

	now := s.now()
	if w.Status == domain.WithdrawalStatusAwaitingVerification && !w.IsHeld(now, s.limits.ConfirmWindow) {
		if err := s.expire(ctx, dbTx, w, now); err != nil {
			return nil, err
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}
		s.metrics.WithdrawalTransition(w.Status)
		return nil, apperror.ErrWithdrawalNotAwaiting("Confirmation window expired")
	}
	if w.Status != domain.WithdrawalStatusAwaitingVerification {
		return nil, apperror.ErrWithdrawalNotAwaiting(fmt.Sprintf("Withdrawal is %s", w.Status))
	}
	if balance.Balance < w.Amount {
		return nil, apperror.ErrInsufficientBalance()
	}

	newBalance := balance.Balance - w.Amount
	if err := s.balances.UpdateBalance(ctx, dbTx, req.SellerID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}
	desc := "Withdrawal " + w.RequestID
	if err := s.ledger.Create(ctx, dbTx, &domain.LedgerEntry{
		ID:           uuid.New(),
		SellerID:     w.SellerID,
		Kind:         domain.LedgerEntryWithdrawalDebit,
		Amount:       -w.Amount,
		BalanceAfter: newBalance,
		Reference:    domain.WithdrawalDebitReference(w.ID),
		Description:  &desc,
		CreatedAt:    now,
	}); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create debit entry: %w", err))
	}

	if err := w.TransitionTo(domain.WithdrawalStatusProcessing, now); err != nil {
		return nil, apperror.InternalError(err)
	}
	if err := s.withdrawals.Update(ctx, dbTx, w); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update withdrawal: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.metrics.WithdrawalTransition(w.Status)
	s.metrics.WithdrawnAmount(w.Currency, w.Amount)
	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("seller_id", w.SellerID).
		Int64("amount", w.Amount).
		Int64("balance_after", newBalance).
		Msg("withdrawal confirmed")

	dispatched := *w
	s.async(func() { s.dispatchWithRetries(&dispatched) })

	return w, nil
}

func (s *WithdrawalServiceImpl) expire(ctx context.Context, dbTx pgx.Tx, w *domain.WithdrawalRequest, now time.Time) error {
	if err := w.Fail(expiredReason, now); err != nil {
		return apperror.InternalError(err)
	}
	if err := s.withdrawals.Update(ctx, dbTx, w); err != nil {
		return apperror.InternalError(fmt.Errorf("expire withdrawal: %w", err))
	}
	return nil
}

// dispatchWithRetries submits the instruction, sleeping between attempts.
func (s *WithdrawalServiceImpl) dispatchWithRetries(w *domain.WithdrawalRequest) {
	for attempt := 0; attempt <= len(s.retryIntervals); attempt++ {
		if attempt > 0 {
			s.sleep(s.retryIntervals[attempt-1])
		}
		err := s.dispatch(w)
		if err == nil {
			return
		}
		s.log.Warn().Err(err).
			Str("withdrawal_id", w.ID.String()).
			Int("attempt", attempt+1).
			Msg("settlement: dispatch failed")
	}
	s.log.Error().Str("withdrawal_id", w.ID.String()).Msg("settlement: all retry attempts exhausted")
}

// dispatch submits one instruction and records the rail reference.
// The rail deduplicates on withdrawal id, so resubmitting is safe.
func (s *WithdrawalServiceImpl) dispatch(w *domain.WithdrawalRequest) error {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	method, err := s.methods.GetByID(ctx, w.MethodID)
	if err != nil {
		return fmt.Errorf("get method: %w", err)
	}
	if method == nil {
		return fmt.Errorf("payout method %s missing", w.MethodID)
	}
	plain, err := s.encSvc.Decrypt(method.DetailsEnc)
	if err != nil {
		return fmt.Errorf("decrypt payout details: %w", err)
	}
	var details domain.PayoutDetails
	if err := json.Unmarshal([]byte(plain), &details); err != nil {
		return fmt.Errorf("decode payout details: %w", err)
	}

	ref, err := s.gateway.Submit(ctx, domain.SettlementInstruction{
		WithdrawalID: w.ID,
		SellerID:     w.SellerID,
		Amount:       w.Amount,
		Currency:     w.Currency,
		MethodID:     w.MethodID,
		MethodType:   method.Type,
		Details:      details,
	})
	if err != nil {
		return fmt.Errorf("submit to %s: %w", s.gateway.Name(), err)
	}

	marked, err := s.withdrawals.MarkDispatched(ctx, w.ID, ref, s.now())
	if err != nil {
		return fmt.Errorf("mark dispatched: %w", err)
	}
	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("settlement_ref", ref).
		Bool("recorded", marked).
		Msg("settlement: instruction dispatched")
	return nil
}

// HandleSettlement applies a rail callback. Callbacks for requests that are
// unknown or no longer Processing are acknowledged and ignored. A failed
// settlement refunds the debited amount.
func (s *WithdrawalServiceImpl) HandleSettlement(ctx context.Context, req ports.SettlementCallback) (bool, error) {
	if req.WithdrawalID == uuid.Nil || !req.Outcome.Valid() {
		return false, apperror.ValidationFields("invalid settlement callback", map[string]string{
			"outcome": "must be one of: COMPLETED, FAILED",
		})
	}

	current, err := s.withdrawals.GetByID(ctx, req.WithdrawalID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("get withdrawal: %w", err))
	}
	if current == nil {
		s.staleSettlement(req, "unknown withdrawal")
		return false, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	balance, err := s.balances.GetForUpdate(ctx, dbTx, current.SellerID, current.Currency)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("lock balance: %w", err))
	}
	w, err := s.withdrawals.GetByIDForUpdate(ctx, dbTx, req.WithdrawalID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("lock withdrawal: %w", err))
	}
	if w == nil || w.Status != domain.WithdrawalStatusProcessing {
		s.staleSettlement(req, "withdrawal not processing")
		return false, nil
	}

	now := s.now()
	if req.Reference != "" {
		ref := req.Reference
		w.SettlementRef = &ref
	}

	switch req.Outcome {
	case domain.SettlementCompleted:
		if err := w.TransitionTo(domain.WithdrawalStatusCompleted, now); err != nil {
			return false, apperror.InternalError(err)
		}
	case domain.SettlementFailed:
		reason := req.Reason
		if reason == "" {
			reason = settlementFailed
		}
		if err := w.Fail(reason, now); err != nil {
			return false, apperror.InternalError(err)
		}
		newBalance := balance.Balance + w.Amount
		if err := s.balances.UpdateBalance(ctx, dbTx, w.SellerID, newBalance); err != nil {
			return false, apperror.InternalError(fmt.Errorf("update balance: %w", err))
		}
		if err := s.ledger.Create(ctx, dbTx, &domain.LedgerEntry{
			ID:           uuid.New(),
			SellerID:     w.SellerID,
			Kind:         domain.LedgerEntryWithdrawalReversal,
			Amount:       w.Amount,
			BalanceAfter: newBalance,
			Reference:    domain.WithdrawalReversalReference(w.ID),
			Description:  &reason,
			CreatedAt:    now,
		}); err != nil {
			return false, apperror.InternalError(fmt.Errorf("create reversal entry: %w", err))
		}
	}

	if err := s.withdrawals.Update(ctx, dbTx, w); err != nil {
		return false, apperror.InternalError(fmt.Errorf("update withdrawal: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.metrics.WithdrawalTransition(w.Status)
	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("status", string(w.Status)).
		Msg("settlement recorded")

	return true, nil
}

func (s *WithdrawalServiceImpl) staleSettlement(req ports.SettlementCallback, why string) {
	s.metrics.StaleCallback("settlement")
	s.log.Warn().
		Str("withdrawal_id", req.WithdrawalID.String()).
		Str("outcome", string(req.Outcome)).
		Str("why", why).
		Msg("stale settlement callback ignored")
}

func (s *WithdrawalServiceImpl) GetWithdrawal(ctx context.Context, sellerID string, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	w, err := s.withdrawals.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get withdrawal: %w", err))
	}
	if w == nil || w.SellerID != sellerID {
		return nil, apperror.ErrNotFound("Withdrawal")
	}
	return w, nil
}

// ListWithdrawals returns the seller's payout history, newest first.
func (s *WithdrawalServiceImpl) ListWithdrawals(ctx context.Context, params ports.WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error) {
	params.Limit, params.Offset = clampPage(params.Limit, params.Offset)
	list, total, err := s.withdrawals.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list withdrawals: %w", err))
	}
	if list == nil {
		list = []domain.WithdrawalRequest{}
	}
	return list, total, nil
}

// ExpireStale fails AwaitingVerification requests whose confirmation window
// has passed. Holds lapse on their own; this only makes the status explicit.
func (s *WithdrawalServiceImpl) ExpireStale(ctx context.Context) (int, error) {
	now := s.now()
	candidates, err := s.withdrawals.ListExpired(ctx, now.Add(-s.limits.ConfirmWindow), sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired: %w", err)
	}

	expired := 0
	for i := range candidates {
		ok, err := s.expireOne(ctx, &candidates[i], now)
		if err != nil {
			s.log.Error().Err(err).Str("withdrawal_id", candidates[i].ID.String()).Msg("expire withdrawal")
			continue
		}
		if ok {
			expired++
		}
	}
	if expired > 0 {
		s.log.Info().Int("count", expired).Msg("expired unconfirmed withdrawals")
	}
	return expired, nil
}

func (s *WithdrawalServiceImpl) expireOne(ctx context.Context, candidate *domain.WithdrawalRequest, now time.Time) (bool, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if _, err := s.balances.GetForUpdate(ctx, dbTx, candidate.SellerID, candidate.Currency); err != nil {
		return false, fmt.Errorf("lock balance: %w", err)
	}
	w, err := s.withdrawals.GetByIDForUpdate(ctx, dbTx, candidate.ID)
	if err != nil {
		return false, fmt.Errorf("lock withdrawal: %w", err)
	}
	if w == nil || w.Status != domain.WithdrawalStatusAwaitingVerification || w.IsHeld(now, s.limits.ConfirmWindow) {
		return false, nil
	}
	if err := s.expire(ctx, dbTx, w, now); err != nil {
		return false, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	s.metrics.WithdrawalTransition(w.Status)
	return true, nil
}

// RedispatchPending resubmits Processing requests that never reached the rail.
func (s *WithdrawalServiceImpl) RedispatchPending(ctx context.Context) (int, error) {
	pending, err := s.withdrawals.ListUndispatched(ctx, s.now().Add(-s.redispatchAfter), sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list undispatched: %w", err)
	}

	dispatched := 0
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return dispatched, err
		}
		if err := s.dispatch(&pending[i]); err != nil {
			s.log.Warn().Err(err).Str("withdrawal_id", pending[i].ID.String()).Msg("settlement: redispatch failed")
			continue
		}
		dispatched++
	}
	return dispatched, nil
}
