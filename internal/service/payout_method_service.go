package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"
	"seller-payout-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// PayoutMethodServiceImpl implements ports.PayoutMethodService.
type PayoutMethodServiceImpl struct {
	methods     ports.PayoutMethodRepository
	eligibility ports.EligibilityRepository
	identities  ports.IdentityRepository
	balances    ports.BalanceRepository
	withdrawals ports.WithdrawalRepository
	challenges  ports.ChallengeService
	encSvc      ports.EncryptionService
	fingerprint *KeyedDigest
	transactor  ports.DBTransactor
	currency    string
	metrics     ports.MetricsRecorder
	log         zerolog.Logger
	now         func() time.Time
}

// NewPayoutMethodService creates the payout method registry. currency is
// used when a balance row has to be created to serve as the seller lock.
func NewPayoutMethodService(
	methods ports.PayoutMethodRepository,
	eligibility ports.EligibilityRepository,
	identities ports.IdentityRepository,
	balances ports.BalanceRepository,
	withdrawals ports.WithdrawalRepository,
	challenges ports.ChallengeService,
	encSvc ports.EncryptionService,
	fingerprint *KeyedDigest,
	transactor ports.DBTransactor,
	currency string,
	metrics ports.MetricsRecorder,
	log zerolog.Logger,
) *PayoutMethodServiceImpl {
	return &PayoutMethodServiceImpl{
		methods:     methods,
		eligibility: eligibility,
		identities:  identities,
		balances:    balances,
		withdrawals: withdrawals,
		challenges:  challenges,
		encSvc:      encSvc,
		fingerprint: fingerprint,
		transactor:  transactor,
		currency:    currency,
		metrics:     metrics,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe wires the registry to KYC events.
func (s *PayoutMethodServiceImpl) Subscribe(bus ports.EventPublisher) {
	bus.Subscribe(domain.EventKYCSubmitted, s.onKYCSubmitted)
	bus.Subscribe(domain.EventSellerVerified, s.onSellerVerified)
}

// onKYCSubmitted revokes eligibility while the new cycle is under review.
func (s *PayoutMethodServiceImpl) onKYCSubmitted(ctx context.Context, event domain.Event) error {
	ev, ok := event.(domain.KYCSubmitted)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}
	return s.eligibility.Upsert(ctx, &domain.PayoutEligibility{
		SellerID:  ev.SellerID,
		Eligible:  false,
		Version:   ev.Version,
		UpdatedAt: ev.OccurredAt,
	})
}

// onSellerVerified grants eligibility and registers the onboarding bank
// block, if the cycle carried one, as a Pending method.
func (s *PayoutMethodServiceImpl) onSellerVerified(ctx context.Context, event domain.Event) error {
	ev, ok := event.(domain.SellerVerified)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}
	if err := s.eligibility.Upsert(ctx, &domain.PayoutEligibility{
		SellerID:  ev.SellerID,
		Eligible:  true,
		Version:   ev.Version,
		UpdatedAt: ev.OccurredAt,
	}); err != nil {
		return fmt.Errorf("grant eligibility: %w", err)
	}
	if ev.Bank == nil {
		return nil
	}

	details := domain.PayoutMethodFromBank(*ev.Bank, ev.Country)
	if errs := details.Validate(domain.PayoutMethodBank); len(errs) > 0 {
		s.log.Warn().Str("seller_id", ev.SellerID).Str("errors", errs.Error()).Msg("onboarding bank block not registered")
		return nil
	}
	method, err := s.register(ctx, ev.SellerID, domain.PayoutMethodBank, details)
	if err != nil {
		if errors.Is(err, apperror.ErrDuplicatePayoutMethod()) {
			return nil
		}
		return err
	}
	s.log.Info().Str("seller_id", ev.SellerID).Str("method_id", method.ID.String()).Msg("onboarding bank registered")
	return nil
}

// AddMethod registers an instrument for a verified seller. Checks run in
// order: KYC state, details, challenge, then duplicates under the seller lock.
func (s *PayoutMethodServiceImpl) AddMethod(ctx context.Context, req ports.AddPayoutMethodRequest) (*domain.PayoutMethod, error) {
	identity, err := s.identities.Get(ctx, req.SellerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get identity: %w", err))
	}
	if identity == nil || !identity.IsVerified() {
		return nil, apperror.ErrNotVerified()
	}
	s.syncEligibility(ctx, identity)

	if !req.Type.Valid() {
		return nil, apperror.ValidationFields("invalid payout method", map[string]string{
			"type": "must be one of: BANK, PAYPAL, OTHER",
		})
	}
	details := req.Details.Normalize(req.Type)
	if req.Type == domain.PayoutMethodBank && details.Country == "" {
		details.Country = identity.Country
	}
	if errs := details.Validate(req.Type); len(errs) > 0 {
		return nil, apperror.ValidationFields("invalid payout details", errs)
	}

	if err := s.challenges.Require(ctx, req.SellerID, domain.ChallengePurposeAddPayoutMethod, req.Proof); err != nil {
		return nil, err
	}

	method, err := s.register(ctx, req.SellerID, req.Type, details)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("seller_id", req.SellerID).
		Str("method_id", method.ID.String()).
		Str("type", string(method.Type)).
		Bool("is_default", method.IsDefault).
		Msg("payout method added")

	return method, nil
}

// syncEligibility repairs the eligibility row when the SellerVerified event
// that should have written it was lost. The identity row stays authoritative;
// failures here are only logged.
func (s *PayoutMethodServiceImpl) syncEligibility(ctx context.Context, identity *domain.SellerIdentity) {
	elig, err := s.eligibility.Get(ctx, identity.SellerID)
	if err != nil {
		s.log.Warn().Err(err).Str("seller_id", identity.SellerID).Msg("eligibility read failed")
		return
	}
	if elig != nil && elig.Eligible && elig.Version >= identity.Version {
		return
	}
	if err := s.eligibility.Upsert(ctx, &domain.PayoutEligibility{
		SellerID:  identity.SellerID,
		Eligible:  true,
		Version:   identity.Version,
		UpdatedAt: s.now(),
	}); err != nil {
		s.log.Warn().Err(err).Str("seller_id", identity.SellerID).Msg("eligibility repair failed")
		return
	}
	s.log.Warn().
		Str("seller_id", identity.SellerID).
		Int64("version", identity.Version).
		Msg("eligibility lagged behind a verified identity, repaired")
}

// register seals and stores a Pending method. The first method of a seller
// becomes the default.
func (s *PayoutMethodServiceImpl) register(ctx context.Context, sellerID string, t domain.PayoutMethodType, details domain.PayoutDetails) (*domain.PayoutMethod, error) {
	plain, err := json.Marshal(details)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal payout details: %w", err))
	}
	sealed, err := s.encSvc.Encrypt(string(plain))
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("encrypt payout details: %w", err))
	}
	fp := s.fingerprint.Sum(sellerID, details.Canonical(t))

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if _, err := s.balances.GetForUpdate(ctx, dbTx, sellerID, s.currency); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock seller: %w", err))
	}

	exists, err := s.methods.ExistsFingerprint(ctx, dbTx, sellerID, fp)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check duplicate: %w", err))
	}
	if exists {
		return nil, apperror.ErrDuplicatePayoutMethod()
	}

	count, err := s.methods.CountBySeller(ctx, dbTx, sellerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count methods: %w", err))
	}

	now := s.now()
	method := &domain.PayoutMethod{
		ID:          uuid.New(),
		SellerID:    sellerID,
		Type:        t,
		DetailsEnc:  sealed,
		Display:     details.Display(t),
		Fingerprint: fp,
		Status:      domain.PayoutMethodStatusPending,
		IsDefault:   count == 0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.methods.Create(ctx, dbTx, method); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrDuplicatePayoutMethod()
		}
		return nil, apperror.InternalError(fmt.Errorf("create method: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return method, nil
}

// SetDefault makes methodID the seller's only default.
func (s *PayoutMethodServiceImpl) SetDefault(ctx context.Context, sellerID string, methodID uuid.UUID) (*domain.PayoutMethod, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if _, err := s.balances.GetForUpdate(ctx, dbTx, sellerID, s.currency); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock seller: %w", err))
	}

	method, err := s.methods.GetByIDForUpdate(ctx, dbTx, methodID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock method: %w", err))
	}
	if method == nil || method.SellerID != sellerID {
		return nil, apperror.ErrNotFound("Payout method")
	}
	if method.Status == domain.PayoutMethodStatusFailed {
		return nil, apperror.ErrMethodNotUsable("A failed payout method cannot be the default")
	}
	if method.IsDefault {
		return method, nil
	}

	if err := s.methods.ClearDefault(ctx, dbTx, sellerID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("clear default: %w", err))
	}
	if err := s.methods.SetDefault(ctx, dbTx, methodID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("set default: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	method.IsDefault = true
	method.UpdatedAt = s.now()
	s.log.Info().Str("seller_id", sellerID).Str("method_id", methodID.String()).Msg("default payout method changed")
	return method, nil
}

// DeleteMethod removes a non-default method with no pending withdrawal.
// The cheap checks run before the challenge is spent and again under the lock.
func (s *PayoutMethodServiceImpl) DeleteMethod(ctx context.Context, sellerID string, methodID uuid.UUID, proof domain.ChallengeProof) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	method, err := s.methods.GetByID(ctx, methodID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get method: %w", err))
	}
	if err := s.checkDeletable(ctx, dbTx, sellerID, method); err != nil {
		return err
	}

	if err := s.challenges.Require(ctx, sellerID, domain.ChallengePurposeDeletePayoutMethod, proof); err != nil {
		return err
	}

	if _, err := s.balances.GetForUpdate(ctx, dbTx, sellerID, s.currency); err != nil {
		return apperror.InternalError(fmt.Errorf("lock seller: %w", err))
	}
	method, err = s.methods.GetByIDForUpdate(ctx, dbTx, methodID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock method: %w", err))
	}
	if err := s.checkDeletable(ctx, dbTx, sellerID, method); err != nil {
		return err
	}

	if err := s.methods.Delete(ctx, dbTx, methodID); err != nil {
		return apperror.InternalError(fmt.Errorf("delete method: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().Str("seller_id", sellerID).Str("method_id", methodID.String()).Msg("payout method deleted")
	return nil
}

func (s *PayoutMethodServiceImpl) checkDeletable(ctx context.Context, dbTx pgx.Tx, sellerID string, method *domain.PayoutMethod) error {
	if method == nil || method.SellerID != sellerID {
		return apperror.ErrNotFound("Payout method")
	}
	if method.IsDefault {
		return apperror.ErrCannotDeleteDefault()
	}
	pending, err := s.withdrawals.HasPendingForMethod(ctx, dbTx, method.ID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("check pending withdrawals: %w", err))
	}
	if pending {
		return apperror.ErrHasPendingWithdrawal()
	}
	return nil
}

// RecordVerification applies the verifier outcome to a Pending method.
// Outcomes for methods that are gone or already decided are ignored.
func (s *PayoutMethodServiceImpl) RecordVerification(ctx context.Context, req ports.MethodVerificationRequest) (bool, error) {
	if req.MethodID == uuid.Nil || !req.Outcome.Valid() {
		return false, apperror.ValidationFields("invalid method verification", map[string]string{
			"outcome": "must be one of: VERIFIED, FAILED",
		})
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	method, err := s.methods.GetByIDForUpdate(ctx, dbTx, req.MethodID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("lock method: %w", err))
	}
	if method == nil || method.Status != domain.PayoutMethodStatusPending {
		s.metrics.StaleCallback("method_verifier")
		s.log.Warn().Str("method_id", req.MethodID.String()).Str("outcome", string(req.Outcome)).Msg("stale method verification ignored")
		return false, nil
	}

	now := s.now()
	method.UpdatedAt = now
	if req.Outcome == domain.MethodVerificationVerified {
		method.Status = domain.PayoutMethodStatusVerified
		method.VerifiedAt = &now
	} else {
		method.Status = domain.PayoutMethodStatusFailed
		if req.Reason != "" {
			reason := req.Reason
			method.FailureReason = &reason
		}
	}

	if err := s.methods.UpdateStatus(ctx, dbTx, method); err != nil {
		return false, apperror.InternalError(fmt.Errorf("update method status: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().Str("method_id", method.ID.String()).Str("status", string(method.Status)).Msg("payout method verification recorded")
	return true, nil
}

func (s *PayoutMethodServiceImpl) ListMethods(ctx context.Context, sellerID string) ([]domain.PayoutMethod, error) {
	methods, err := s.methods.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list methods: %w", err))
	}
	if methods == nil {
		methods = []domain.PayoutMethod{}
	}
	return methods, nil
}
