package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"

	fastshot "github.com/opus-domini/fast-shot"
	"github.com/rs/zerolog"
)

const payoutsPath = "/v1/payouts"

var errMissingReference = errors.New("settlement rail returned no reference")

// HTTPSettlementGateway submits payout instructions to the settlement rail.
// The rail deduplicates on withdrawal_id and reports the outcome through the
// settlement callback.
type HTTPSettlementGateway struct {
	baseURL string
	creds   Credentials
	timeout time.Duration
	signer  ports.SignatureService
	log     zerolog.Logger
	now     func() time.Time
}

func NewHTTPSettlementGateway(baseURL string, creds Credentials, timeout time.Duration, signer ports.SignatureService, log zerolog.Logger) *HTTPSettlementGateway {
	return &HTTPSettlementGateway{
		baseURL: baseURL,
		creds:   creds,
		timeout: timeout,
		signer:  signer,
		log:     log,
		now:     time.Now,
	}
}

func (g *HTTPSettlementGateway) Name() string { return "http_settlement_rail" }

type payoutResponse struct {
	Reference string `json:"reference"`
}

// Submit returns the rail's reference for the instruction.
func (g *HTTPSettlementGateway) Submit(ctx context.Context, ins domain.SettlementInstruction) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := json.Marshal(ins)
	if err != nil {
		return "", fmt.Errorf("encode instruction: %w", err)
	}

	res, err := fastshot.NewClient(g.baseURL).
		Config().SetTimeout(g.timeout).
		Header().AddAll(signedHeaders(g.signer, g.creds, payoutsPath, body, g.now())).
		Build().POST(payoutsPath).
		Body().AsString(string(body)).
		Send()
	if err != nil {
		return "", fmt.Errorf("settlement rail unreachable: %w", err)
	}

	if res.Status().IsError() {
		raw, _ := res.Body().AsString()
		return "", fmt.Errorf("settlement rail HTTP error %d: %s", res.Status().Code(), raw)
	}

	var out payoutResponse
	if err := res.Body().AsJSON(&out); err != nil {
		return "", fmt.Errorf("decode settlement response: %w", err)
	}
	if out.Reference == "" {
		return "", errMissingReference
	}
	return out.Reference, nil
}

// ManualSettlementGateway logs instructions for an operator to pay out by
// hand; the operator reports the result through the settlement callback.
type ManualSettlementGateway struct {
	log zerolog.Logger
}

func NewManualSettlementGateway(log zerolog.Logger) *ManualSettlementGateway {
	return &ManualSettlementGateway{log: log}
}

func (g *ManualSettlementGateway) Name() string { return "manual_settlement" }

func (g *ManualSettlementGateway) Submit(_ context.Context, ins domain.SettlementInstruction) (string, error) {
	ref := "manual-" + ins.WithdrawalID.String()
	g.log.Info().
		Str("withdrawal_id", ins.WithdrawalID.String()).
		Str("seller_id", ins.SellerID).
		Int64("amount", ins.Amount).
		Str("currency", ins.Currency).
		Str("method_type", string(ins.MethodType)).
		Str("payee", ins.Details.Display(ins.MethodType)).
		Str("settlement_ref", ref).
		Msg("payout instruction queued for manual settlement")
	return ref, nil
}
