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

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const providerHandoffTimeout = 30 * time.Second

// KYCServiceImpl implements ports.KYCService.
type KYCServiceImpl struct {
	repo        ports.IdentityRepository
	docs        ports.DocumentService
	provider    ports.VerificationProvider
	encSvc      ports.EncryptionService
	transactor  ports.DBTransactor
	events      ports.EventPublisher
	metrics     ports.MetricsRecorder
	callbackURL string
	log         zerolog.Logger
	now         func() time.Time
	async       func(func())
}

// NewKYCService creates the verification state machine. callbackURL is
// forwarded to the provider so decisions come back to this service.
func NewKYCService(
	repo ports.IdentityRepository,
	docs ports.DocumentService,
	provider ports.VerificationProvider,
	encSvc ports.EncryptionService,
	transactor ports.DBTransactor,
	events ports.EventPublisher,
	metrics ports.MetricsRecorder,
	callbackURL string,
	log zerolog.Logger,
) *KYCServiceImpl {
	return &KYCServiceImpl{
		repo:        repo,
		docs:        docs,
		provider:    provider,
		encSvc:      encSvc,
		transactor:  transactor,
		events:      events,
		metrics:     metrics,
		callbackURL: callbackURL,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
		async:       func(f func()) { go f() },
	}
}

// Submit opens a new verification cycle. It is refused while a previous
// cycle is still Pending; submitting after Verified revokes payout
// eligibility until the new cycle is decided.
func (s *KYCServiceImpl) Submit(ctx context.Context, req ports.KYCSubmitRequest) (*domain.SellerIdentity, error) {
	now := s.now()
	fields := req.Fields
	fields.Normalize()
	refs := domain.DocumentRefs{
		GovernmentID:   strings.ToLower(strings.TrimSpace(req.Documents.GovernmentID)),
		ProofOfAddress: strings.ToLower(strings.TrimSpace(req.Documents.ProofOfAddress)),
	}

	errs := fields.Validate(refs, now)
	s.checkDocument(ctx, req.SellerID, "document_refs.government_id", refs.GovernmentID, domain.DocumentKindGovernmentID, errs)
	s.checkDocument(ctx, req.SellerID, "document_refs.proof_of_address", refs.ProofOfAddress, domain.DocumentKindProofOfAddress, errs)
	if len(errs) > 0 {
		return nil, apperror.ValidationFields("invalid KYC submission", errs)
	}

	plain, err := json.Marshal(fields)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal kyc fields: %w", err))
	}
	sealed, err := s.encSvc.Encrypt(string(plain))
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("encrypt kyc fields: %w", err))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	identity, err := s.repo.LockOrCreate(ctx, dbTx, req.SellerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock identity: %w", err))
	}
	if !identity.CanSubmit() {
		return nil, apperror.ErrSubmissionPending()
	}

	identity.Version++
	identity.State = domain.KYCStatePending
	identity.Country = fields.Country
	identity.GovernmentIDRef = refs.GovernmentID
	identity.ProofOfAddressRef = refs.ProofOfAddress
	identity.RejectionReason = nil
	identity.SubmittedAt = &now
	identity.DecidedAt = nil
	identity.UpdatedAt = now

	if err := s.repo.Update(ctx, dbTx, identity); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update identity: %w", err))
	}

	sub := &domain.KYCSubmission{
		ID:                uuid.New(),
		SellerID:          req.SellerID,
		Version:           identity.Version,
		State:             domain.KYCStatePending,
		FieldsEnc:         sealed,
		Country:           fields.Country,
		GovernmentIDRef:   refs.GovernmentID,
		ProofOfAddressRef: refs.ProofOfAddress,
		SubmittedAt:       now,
	}
	if err := s.repo.CreateSubmission(ctx, dbTx, sub); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create submission: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.metrics.KYCTransition(domain.KYCStatePending)
	s.events.Publish(ctx, domain.KYCSubmitted{SellerID: req.SellerID, Version: identity.Version, OccurredAt: now})

	verification := ports.VerificationRequest{
		SellerID:    req.SellerID,
		Version:     identity.Version,
		Fields:      fields,
		Documents:   refs,
		CallbackURL: s.callbackURL,
	}
	s.async(func() { s.handOff(verification) })

	s.log.Info().
		Str("seller_id", req.SellerID).
		Int64("version", identity.Version).
		Str("country", fields.Country).
		Msg("kyc submission accepted")

	return identity, nil
}

// handOff passes the cycle to the provider. A failed hand-off leaves the
// cycle Pending; the provider or an operator can still decide it.
func (s *KYCServiceImpl) handOff(req ports.VerificationRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), providerHandoffTimeout)
	defer cancel()

	if err := s.provider.RequestVerification(ctx, req); err != nil {
		s.log.Error().Err(err).
			Str("seller_id", req.SellerID).
			Int64("version", req.Version).
			Str("provider", s.provider.Name()).
			Msg("kyc provider hand-off failed")
		return
	}
	s.log.Debug().Str("seller_id", req.SellerID).Int64("version", req.Version).Msg("kyc handed to provider")
}

func (s *KYCServiceImpl) checkDocument(ctx context.Context, sellerID, field, ref string, kind domain.DocumentKind, errs domain.FieldErrors) {
	if _, failed := errs[field]; failed {
		return
	}
	if _, err := s.docs.Resolve(ctx, sellerID, ref, kind); err != nil {
		if apperror.CodeOf(err) == "VAL_001" {
			errs[field] = "is not a " + string(kind) + " document uploaded by this seller"
			return
		}
		errs[field] = "could not be checked"
		s.log.Error().Err(err).Str("seller_id", sellerID).Str("field", field).Msg("document lookup failed")
	}
}

// RecordProviderDecision applies a provider verdict. A verdict for a cycle
// that is no longer the current Pending one is acknowledged and ignored;
// the returned bool reports whether it was applied.
func (s *KYCServiceImpl) RecordProviderDecision(ctx context.Context, req ports.ProviderDecisionRequest) (bool, error) {
	errs := map[string]string{}
	if req.SellerID == "" {
		errs["seller_id"] = "is required"
	}
	if req.Version <= 0 {
		errs["submission_version"] = "must be a positive integer"
	}
	if !req.Decision.Valid() {
		errs["decision"] = "must be one of: VERIFIED, REJECTED"
	}
	if len(errs) > 0 {
		return false, apperror.ValidationFields("invalid provider decision", errs)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	identity, err := s.repo.GetForUpdate(ctx, dbTx, req.SellerID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("lock identity: %w", err))
	}
	if identity == nil || !identity.AcceptsDecision(req.Version) {
		s.metrics.StaleCallback("kyc_provider")
		s.log.Warn().
			Str("seller_id", req.SellerID).
			Int64("version", req.Version).
			Str("decision", string(req.Decision)).
			Msg("stale kyc decision ignored")
		return false, nil
	}

	sub, err := s.repo.GetSubmission(ctx, dbTx, req.SellerID, req.Version)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("get submission: %w", err))
	}
	if sub == nil {
		return false, apperror.InternalError(fmt.Errorf("submission %d of seller %s missing", req.Version, req.SellerID))
	}

	now := s.now()
	state := req.Decision.State()
	var reason *string
	if state == domain.KYCStateRejected && req.Reason != "" {
		r := req.Reason
		reason = &r
	}

	identity.State = state
	identity.RejectionReason = reason
	identity.DecidedAt = &now
	identity.UpdatedAt = now
	if err := s.repo.Update(ctx, dbTx, identity); err != nil {
		return false, apperror.InternalError(fmt.Errorf("update identity: %w", err))
	}

	sub.State = state
	sub.Reason = reason
	sub.DecidedAt = &now
	if err := s.repo.UpdateSubmission(ctx, dbTx, sub); err != nil {
		return false, apperror.InternalError(fmt.Errorf("update submission: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.metrics.KYCTransition(state)
	if state == domain.KYCStateVerified {
		s.events.Publish(ctx, s.verifiedEvent(identity, sub, now))
	}

	s.log.Info().
		Str("seller_id", req.SellerID).
		Int64("version", req.Version).
		Str("state", string(state)).
		Msg("kyc decision applied")

	return true, nil
}

// verifiedEvent carries the bank block of the approved cycle, when it decrypts.
func (s *KYCServiceImpl) verifiedEvent(identity *domain.SellerIdentity, sub *domain.KYCSubmission, now time.Time) domain.SellerVerified {
	ev := domain.SellerVerified{
		SellerID:   identity.SellerID,
		Version:    identity.Version,
		Country:    identity.Country,
		OccurredAt: now,
	}
	plain, err := s.encSvc.Decrypt(sub.FieldsEnc)
	if err != nil {
		s.log.Error().Err(err).Str("seller_id", identity.SellerID).Msg("decrypt submission fields")
		return ev
	}
	var fields domain.KYCFields
	if err := json.Unmarshal([]byte(plain), &fields); err != nil {
		s.log.Error().Err(err).Str("seller_id", identity.SellerID).Msg("decode submission fields")
		return ev
	}
	ev.Bank = fields.Bank
	return ev
}

// GetIdentity returns the seller's state; sellers that never submitted are Unsubmitted.
func (s *KYCServiceImpl) GetIdentity(ctx context.Context, sellerID string) (*domain.SellerIdentity, error) {
	identity, err := s.repo.Get(ctx, sellerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get identity: %w", err))
	}
	if identity == nil {
		return domain.NewUnsubmittedIdentity(sellerID, s.now()), nil
	}
	return identity, nil
}

func (s *KYCServiceImpl) ListSubmissions(ctx context.Context, sellerID string) ([]domain.KYCSubmission, error) {
	subs, err := s.repo.ListSubmissions(ctx, sellerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list submissions: %w", err))
	}
	if subs == nil {
		subs = []domain.KYCSubmission{}
	}
	return subs, nil
}
