package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"seller-payout-service/internal/core/ports"
	"seller-payout-service/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testRegistry() *CallerRegistry {
	return NewCallerRegistry([]Caller{
		{Name: "kyc-provider", AccessKey: "ak_kyc", Secret: "kyc_secret", Scopes: []string{ScopeKYC}},
		{Name: "ops", AccessKey: "ak_ops", Secret: "ops_secret"},
	})
}

func callerRouter(t *testing.T, sigSvc ports.SignatureService, nonceStore ports.NonceStore, captured *string) *gin.Engine {
	t.Helper()
	router := gin.New()
	router.POST("/test", CallerAuth(testRegistry(), ScopeKYC, sigSvc, nonceStore, zerolog.Nop()), func(c *gin.Context) {
		if captured != nil {
			*captured = c.GetString(CtxCaller)
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func signedRequest(accessKey string, ts int64, nonce, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(body))
	req.Header.Set(HeaderAccessKey, accessKey)
	req.Header.Set(HeaderSignature, "sig")
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderNonce, nonce)
	return req
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func TestCallerAuth_MissingHeaders(t *testing.T) {
	ctrl := gomock.NewController(t)
	router := callerRouter(t, mocks.NewMockSignatureService(ctrl), mocks.NewMockNonceStore(ctrl), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "SEC_003", errorCode(t, w))
}

func TestCallerAuth_ExpiredTimestamp(t *testing.T) {
	ctrl := gomock.NewController(t)
	router := callerRouter(t, mocks.NewMockSignatureService(ctrl), mocks.NewMockNonceStore(ctrl), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest("ak_kyc", time.Now().Add(-120*time.Second).Unix(), "n1", ""))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "SEC_004", errorCode(t, w))
}

func TestCallerAuth_MalformedTimestamp(t *testing.T) {
	ctrl := gomock.NewController(t)
	router := callerRouter(t, mocks.NewMockSignatureService(ctrl), mocks.NewMockNonceStore(ctrl), nil)

	req := signedRequest("ak_kyc", 0, "n1", "")
	req.Header.Set(HeaderTimestamp, "yesterday")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "SEC_004", errorCode(t, w))
}

func TestCallerAuth_UnknownAccessKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	router := callerRouter(t, mocks.NewMockSignatureService(ctrl), mocks.NewMockNonceStore(ctrl), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest("ak_unknown", time.Now().Unix(), "n1", ""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "SEC_003", errorCode(t, w))
}

func TestCallerAuth_ScopeMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := NewCallerRegistry([]Caller{
		{Name: "rail", AccessKey: "ak_rail", Secret: "s", Scopes: []string{ScopeSettlement}},
	})

	router := gin.New()
	router.POST("/test", CallerAuth(registry, ScopeKYC, mocks.NewMockSignatureService(ctrl), mocks.NewMockNonceStore(ctrl), zerolog.Nop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest("ak_rail", time.Now().Unix(), "n1", ""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCallerAuth_NonceReused(t *testing.T) {
	ctrl := gomock.NewController(t)
	nonceStore := mocks.NewMockNonceStore(ctrl)
	nonceStore.EXPECT().CheckAndSet(gomock.Any(), "ak_kyc", "n1", nonceTTL).Return(false, nil)

	router := callerRouter(t, mocks.NewMockSignatureService(ctrl), nonceStore, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest("ak_kyc", time.Now().Unix(), "n1", ""))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "SEC_005", errorCode(t, w))
}

func TestCallerAuth_BadSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	nowTs := time.Now().Unix()
	sigSvc := mocks.NewMockSignatureService(ctrl)
	nonceStore := mocks.NewMockNonceStore(ctrl)

	nonceStore.EXPECT().CheckAndSet(gomock.Any(), "ak_kyc", "n1", nonceTTL).Return(true, nil)
	sigSvc.EXPECT().BuildCanonicalString("POST", "/test", nowTs, "n1", "{}").Return("canonical")
	sigSvc.EXPECT().Verify("kyc_secret", "canonical", "sig").Return(false)

	router := callerRouter(t, sigSvc, nonceStore, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest("ak_kyc", nowTs, "n1", "{}"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCallerAuth_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	nowTs := time.Now().Unix()
	body := `{"seller_id":"s-1","submission_version":1,"decision":"VERIFIED"}`
	sigSvc := mocks.NewMockSignatureService(ctrl)
	nonceStore := mocks.NewMockNonceStore(ctrl)

	nonceStore.EXPECT().CheckAndSet(gomock.Any(), "ak_kyc", "n-ok", nonceTTL).Return(true, nil)
	sigSvc.EXPECT().BuildCanonicalString("POST", "/test", nowTs, "n-ok", body).Return("canonical")
	sigSvc.EXPECT().Verify("kyc_secret", "canonical", "sig").Return(true)

	var caller string
	router := callerRouter(t, sigSvc, nonceStore, &caller)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest("ak_kyc", nowTs, "n-ok", body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "kyc-provider", caller)
}

func TestCallerAuth_NonceStoreDownStillVerifiesSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	nowTs := time.Now().Unix()
	sigSvc := mocks.NewMockSignatureService(ctrl)
	nonceStore := mocks.NewMockNonceStore(ctrl)

	nonceStore.EXPECT().CheckAndSet(gomock.Any(), "ak_kyc", "n1", nonceTTL).Return(false, assert.AnError)
	sigSvc.EXPECT().BuildCanonicalString("POST", "/test", nowTs, "n1", "").Return("canonical")
	sigSvc.EXPECT().Verify("kyc_secret", "canonical", "sig").Return(true)

	router := callerRouter(t, sigSvc, nonceStore, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest("ak_kyc", nowTs, "n1", ""))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCaller_Allows(t *testing.T) {
	scoped := Caller{Scopes: []string{"KYC", ScopeEarnings}}
	assert.True(t, scoped.Allows(ScopeKYC))
	assert.True(t, scoped.Allows(ScopeEarnings))
	assert.False(t, scoped.Allows(ScopeSettlement))

	open := Caller{}
	assert.True(t, open.Allows(ScopeSettlement))
}

func TestSellerAuth_MissingHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokenSvc := mocks.NewMockTokenService(ctrl)

	router := gin.New()
	router.GET("/test", SellerAuth(tokenSvc), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_001", errorCode(t, w))
}

func TestSellerAuth_InvalidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("bad_token").Return(nil, assert.AnError)

	router := gin.New()
	router.GET("/test", SellerAuth(tokenSvc), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer bad_token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSellerAuth_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("good_token").Return(&ports.SellerClaims{
		SellerID: "seller-42",
		Email:    "seller@example.com",
	}, nil)

	var gotID, gotEmail string
	router := gin.New()
	router.GET("/test", SellerAuth(tokenSvc), func(c *gin.Context) {
		gotID, _ = SellerID(c)
		gotEmail = SellerEmail(c)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer good_token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "seller-42", gotID)
	assert.Equal(t, "seller@example.com", gotEmail)
}

func TestRequestID_PropagatesHeader(t *testing.T) {
	var got string
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		got = c.GetString(CtxRequestID)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", got)
	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
}

func TestRequestID_Generated(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Len(t, w.Header().Get(HeaderRequestID), 36)
}

type observation struct {
	method, route string
	status        int
}

type recordingObserver struct {
	seen []observation
}

func (o *recordingObserver) ObserveHTTP(method, route string, status int, _ float64) {
	o.seen = append(o.seen, observation{method: method, route: route, status: status})
}

func TestRequestLogger_ObservesRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	obs := &recordingObserver{}

	router := gin.New()
	router.Use(RequestLogger(zerolog.New(&buf), obs))
	router.GET("/withdrawals/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/withdrawals/abc", nil))

	require.Len(t, obs.seen, 1)
	assert.Equal(t, observation{method: "GET", route: "/withdrawals/:id", status: 404}, obs.seen[0])

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "/withdrawals/abc", line["path"])
}

func TestRecovery_PanicRecovered(t *testing.T) {
	router := gin.New()
	router.Use(Recovery(zerolog.Nop()))
	router.GET("/panic", func(c *gin.Context) {
		panic("something went wrong")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "SYS_001", errorCode(t, w))
}
