package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.MetricsRecorder = (*Prometheus)(nil)
	_ ports.MetricsRecorder = Nop{}
)

func TestPrometheus_Counters(t *testing.T) {
	p := NewPrometheus()

	p.KYCTransition(domain.KYCStateVerified)
	p.KYCTransition(domain.KYCStateVerified)
	p.StaleCallback("settlement")
	p.ChallengeResult(domain.ChallengePurposeWithdraw, "consumed")
	p.WithdrawalTransition(domain.WithdrawalStatusProcessing)
	p.WithdrawnAmount("USD", 5000)
	p.WithdrawnAmount("USD", 2500)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.kycTransitions.WithLabelValues("VERIFIED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.staleCallbacks.WithLabelValues("settlement")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.challenges.WithLabelValues("WITHDRAW", "consumed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.withdrawals.WithLabelValues("PROCESSING")))
	assert.Equal(t, 7500.0, testutil.ToFloat64(p.withdrawnAmount.WithLabelValues("USD")))
}

func TestPrometheus_ObserveHTTP(t *testing.T) {
	p := NewPrometheus()

	p.ObserveHTTP("POST", "/api/v1/withdrawals", 201, 0.02)
	p.ObserveHTTP("POST", "/api/v1/withdrawals", 402, 0.01)
	p.ObserveHTTP("POST", "/api/v1/withdrawals", 409, 0.01)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.httpRequests.WithLabelValues("POST", "/api/v1/withdrawals", "2xx")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.httpRequests.WithLabelValues("POST", "/api/v1/withdrawals", "4xx")))
}

func TestPrometheus_Handler(t *testing.T) {
	p := NewPrometheus()
	p.KYCTransition(domain.KYCStatePending)

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `seller_payout_kyc_transitions_total{state="PENDING"} 1`)
}
