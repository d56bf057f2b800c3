package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"
	"seller-payout-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ChallengeSettings controls code shape and lifetime.
type ChallengeSettings struct {
	TTL         time.Duration
	CodeLength  int
	MaxAttempts int
}

// ChallengeServiceImpl implements ports.ChallengeService.
type ChallengeServiceImpl struct {
	store    ports.ChallengeStore
	notifier ports.ChallengeNotifier
	digest   *KeyedDigest
	settings ChallengeSettings
	metrics  ports.MetricsRecorder
	log      zerolog.Logger
	now      func() time.Time
	newCode  func(length int) (string, error)
}

// NewChallengeService creates the 2FA gate.
func NewChallengeService(
	store ports.ChallengeStore,
	notifier ports.ChallengeNotifier,
	digest *KeyedDigest,
	settings ChallengeSettings,
	metrics ports.MetricsRecorder,
	log zerolog.Logger,
) *ChallengeServiceImpl {
	return &ChallengeServiceImpl{
		store:    store,
		notifier: notifier,
		digest:   digest,
		settings: settings,
		metrics:  metrics,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newCode:  randomDigits,
	}
}

// Issue creates a challenge, replacing any outstanding one for the same
// seller and purpose, and delivers the code out of band.
func (s *ChallengeServiceImpl) Issue(ctx context.Context, req ports.IssueChallengeRequest) (*domain.VerificationChallenge, error) {
	if !req.Purpose.Valid() {
		return nil, apperror.ValidationFields("invalid challenge request", map[string]string{
			"purpose": "must be one of: ADD_PAYOUT_METHOD, DELETE_PAYOUT_METHOD, WITHDRAW",
		})
	}

	code, err := s.newCode(s.settings.CodeLength)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate challenge code: %w", err))
	}

	now := s.now()
	ch := &domain.VerificationChallenge{
		ID:        uuid.New(),
		SellerID:  req.SellerID,
		Purpose:   req.Purpose,
		CreatedAt: now,
		ExpiresAt: now.Add(s.settings.TTL),
	}
	ch.Digest = s.digest.Sum(ch.ID.String(), code)

	if err := s.store.Save(ctx, ch); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save challenge: %w", err))
	}

	msg := ports.ChallengeMessage{
		SellerID:  req.SellerID,
		Email:     req.Email,
		Purpose:   req.Purpose,
		Code:      code,
		ExpiresAt: ch.ExpiresAt,
	}
	if err := s.notifier.Deliver(ctx, msg); err != nil {
		s.metrics.ChallengeResult(req.Purpose, "undelivered")
		return nil, apperror.ErrUpstreamUnavailable(fmt.Errorf("deliver challenge: %w", err))
	}

	s.metrics.ChallengeResult(req.Purpose, "issued")
	s.log.Info().
		Str("seller_id", req.SellerID).
		Str("challenge_id", ch.ID.String()).
		Str("purpose", string(req.Purpose)).
		Time("expires_at", ch.ExpiresAt).
		Msg("challenge issued")

	return ch, nil
}

// Consume reports whether proof passes the gate for sellerID and purpose.
// A successful consume can never succeed again.
func (s *ChallengeServiceImpl) Consume(ctx context.Context, sellerID string, purpose domain.ChallengePurpose, proof domain.ChallengeProof) (bool, error) {
	if !proof.Present() {
		return false, nil
	}

	digest := s.digest.Sum(proof.ChallengeID.String(), proof.Code)
	ok, err := s.store.Consume(ctx, proof.ChallengeID, sellerID, purpose, digest, s.now(), s.settings.MaxAttempts)
	if err != nil {
		return false, fmt.Errorf("consume challenge: %w", err)
	}

	if ok {
		s.metrics.ChallengeResult(purpose, "consumed")
	} else {
		s.metrics.ChallengeResult(purpose, "rejected")
		s.log.Warn().
			Str("seller_id", sellerID).
			Str("challenge_id", proof.ChallengeID.String()).
			Str("purpose", string(purpose)).
			Msg("challenge rejected")
	}
	return ok, nil
}

func (s *ChallengeServiceImpl) Require(ctx context.Context, sellerID string, purpose domain.ChallengePurpose, proof domain.ChallengeProof) error {
	if !proof.Present() {
		return apperror.ErrChallengeRequired()
	}
	ok, err := s.Consume(ctx, sellerID, purpose, proof)
	if err != nil {
		return apperror.InternalError(err)
	}
	if !ok {
		return apperror.ErrInvalidOrExpiredChallenge()
	}
	return nil
}

// randomDigits returns a zero-padded decimal code drawn from crypto/rand.
func randomDigits(length int) (string, error) {
	if length <= 0 || length > 18 {
		return "", fmt.Errorf("code length %d out of range", length)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}
