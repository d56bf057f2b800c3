package external

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"seller-payout-service/internal/core/ports"

	fastshot "github.com/opus-domini/fast-shot"
	"github.com/rs/zerolog"
)

const verificationsPath = "/v1/verifications"

// HTTPVerificationProvider hands submission cycles to a KYC vendor over
// HTTP. The vendor answers later through the signed decisions webhook.
type HTTPVerificationProvider struct {
	baseURL string
	creds   Credentials
	timeout time.Duration
	signer  ports.SignatureService
	log     zerolog.Logger
	now     func() time.Time
}

func NewHTTPVerificationProvider(baseURL string, creds Credentials, timeout time.Duration, signer ports.SignatureService, log zerolog.Logger) *HTTPVerificationProvider {
	return &HTTPVerificationProvider{
		baseURL: baseURL,
		creds:   creds,
		timeout: timeout,
		signer:  signer,
		log:     log,
		now:     time.Now,
	}
}

func (p *HTTPVerificationProvider) Name() string { return "http_kyc_provider" }

// RequestVerification posts the cycle to the vendor. Any non-2xx answer is an error.
func (p *HTTPVerificationProvider) RequestVerification(ctx context.Context, req ports.VerificationRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode verification request: %w", err)
	}

	res, err := fastshot.NewClient(p.baseURL).
		Config().SetTimeout(p.timeout).
		Header().AddAll(signedHeaders(p.signer, p.creds, verificationsPath, body, p.now())).
		Build().POST(verificationsPath).
		Body().AsString(string(body)).
		Send()
	if err != nil {
		return fmt.Errorf("kyc provider unreachable: %w", err)
	}

	raw, _ := res.Body().AsString()
	if res.Status().IsError() {
		return fmt.Errorf("kyc provider HTTP error %d: %s", res.Status().Code(), raw)
	}

	p.log.Info().
		Str("seller_id", req.SellerID).
		Int64("version", req.Version).
		Int("status", res.Status().Code()).
		Msg("kyc submission handed to provider")
	return nil
}

// ManualReviewProvider is used when no vendor is configured: submissions
// wait for an operator to post a decision to the webhook.
type ManualReviewProvider struct {
	log zerolog.Logger
}

func NewManualReviewProvider(log zerolog.Logger) *ManualReviewProvider {
	return &ManualReviewProvider{log: log}
}

func (p *ManualReviewProvider) Name() string { return "manual_review" }

func (p *ManualReviewProvider) RequestVerification(_ context.Context, req ports.VerificationRequest) error {
	p.log.Info().
		Str("seller_id", req.SellerID).
		Int64("version", req.Version).
		Str("country", req.Fields.Country).
		Msg("kyc submission queued for manual review")
	return nil
}
