package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"seller-payout-service/internal/adapter/http/middleware"
	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"
	"seller-payout-service/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type routerMocks struct {
	tokens      *mocks.MockTokenService
	sig         *mocks.MockSignatureService
	nonces      *mocks.MockNonceStore
	balances    *mocks.MockBalanceService
	withdrawals *mocks.MockWithdrawalService
	audit       *mocks.MockAuditService
}

func newTestRouter(t *testing.T) (*gin.Engine, routerMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := routerMocks{
		tokens:      mocks.NewMockTokenService(ctrl),
		sig:         mocks.NewMockSignatureService(ctrl),
		nonces:      mocks.NewMockNonceStore(ctrl),
		balances:    mocks.NewMockBalanceService(ctrl),
		withdrawals: mocks.NewMockWithdrawalService(ctrl),
		audit:       mocks.NewMockAuditService(ctrl),
	}
	r := SetupRouter(RouterDeps{
		DocumentSvc:     mocks.NewMockDocumentService(ctrl),
		KYCSvc:          mocks.NewMockKYCService(ctrl),
		ChallengeSvc:    mocks.NewMockChallengeService(ctrl),
		PayoutMethodSvc: mocks.NewMockPayoutMethodService(ctrl),
		WithdrawalSvc:   m.withdrawals,
		BalanceSvc:      m.balances,
		SigSvc:          m.sig,
		NonceStore:      m.nonces,
		TokenSvc:        m.tokens,
		Callers: middleware.NewCallerRegistry([]middleware.Caller{
			{Name: "order-system", AccessKey: "ak_orders", Secret: "orders_secret", Scopes: []string{middleware.ScopeEarnings}},
		}),
		AuditSvc:        m.audit,
		MetricsHandler:  http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		ConfirmWindow:   30 * time.Minute,
		DocumentMaxSize: 1024,
		Mode:            gin.TestMode,
		Logger:          zerolog.Nop(),
	})
	return r, m
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# metrics", w.Body.String())
}

func TestRouter_SellerRoutesRequireToken(t *testing.T) {
	r, _ := newTestRouter(t)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/kyc"},
		{http.MethodPost, "/api/v1/kyc/documents"},
		{http.MethodPost, "/api/v1/challenges"},
		{http.MethodGet, "/api/v1/payout-methods"},
		{http.MethodDelete, "/api/v1/payout-methods/" + uuid.NewString()},
		{http.MethodGet, "/api/v1/balance"},
		{http.MethodPost, "/api/v1/withdrawals"},
		{http.MethodPost, "/api/v1/withdrawals/" + uuid.NewString() + "/confirm"},
	}
	for _, rt := range routes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(rt.method, rt.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", rt.method, rt.path)
	}
}

func TestRouter_CallerRoutesRequireSignature(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, path := range []string{
		"/api/v1/kyc/decisions",
		"/api/v1/payout-methods/verifications",
		"/api/v1/settlements/callbacks",
		"/api/v1/internal/earnings",
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString("{}")))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRouter_SellerTokenReachesHandler(t *testing.T) {
	r, m := newTestRouter(t)

	m.tokens.EXPECT().Validate("tok").Return(&ports.SellerClaims{SellerID: "seller-9"}, nil)
	m.balances.EXPECT().GetSummary(gomock.Any(), "seller-9").Return(&domain.BalanceSummary{
		SellerID: "seller-9",
		Currency: "USD",
		Limits:   domain.DefaultWithdrawalLimits(),
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/balance", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_SignedEarningsCreditIsAudited(t *testing.T) {
	r, m := newTestRouter(t)

	body := `{"seller_id":"seller-9","amount":"12.00","reference":"order-1"}`
	ts := time.Now().Unix()

	m.nonces.EXPECT().CheckAndSet(gomock.Any(), "ak_orders", "n-1", gomock.Any()).Return(true, nil)
	m.sig.EXPECT().BuildCanonicalString(http.MethodPost, "/api/v1/internal/earnings", ts, "n-1", body).Return("canonical")
	m.sig.EXPECT().Verify("orders_secret", "canonical", "good").Return(true)
	m.balances.EXPECT().CreditEarnings(gomock.Any(), ports.EarningsCredit{
		SellerID:  "seller-9",
		Amount:    1200,
		Reference: "order-1",
	}).Return(&domain.LedgerEntry{ID: uuid.New(), SellerID: "seller-9", Kind: domain.LedgerEntryEarning, Amount: 1200}, nil)

	var audited *domain.AuditLog
	m.audit.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *domain.AuditLog) {
		audited = e
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/earnings", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderAccessKey, "ak_orders")
	req.Header.Set(middleware.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(middleware.HeaderNonce, "n-1")
	req.Header.Set(middleware.HeaderSignature, "good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotNil(t, audited)
	assert.Equal(t, domain.AuditActionEarningsCredit, audited.Action)
	assert.Equal(t, "order-system", audited.Actor)
}

func TestRouter_CallerScopeEnforced(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/settlements/callbacks", bytes.NewBufferString("{}"))
	req.Header.Set(middleware.HeaderAccessKey, "ak_orders")
	req.Header.Set(middleware.HeaderTimestamp, strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set(middleware.HeaderNonce, "n-2")
	req.Header.Set(middleware.HeaderSignature, "whatever")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
