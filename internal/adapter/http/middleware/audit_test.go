package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuditLog_SellerMutation(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	var got *domain.AuditLog
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) {
			got = entry
		},
	)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(CtxSellerID, "seller-1")
		c.Next()
	}, AuditLog(mockAudit))
	r.POST("/api/v1/withdrawals/:id/confirm", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/withdrawals/wd-9/confirm", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, domain.AuditActionWithdrawalConfirm, got.Action)
	assert.Equal(t, "withdrawal", got.ResourceType)
	assert.Equal(t, "wd-9", got.ResourceID)
	assert.Equal(t, "seller-1", got.Actor)
	require.NotNil(t, got.SellerID)
	assert.Equal(t, "seller-1", *got.SellerID)
	assert.Contains(t, got.Details, `"status":200`)
}

func TestAuditLog_CallerMutationUsesResourceFromContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	var got *domain.AuditLog
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) {
			got = entry
		},
	)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/settlements/callbacks", func(c *gin.Context) {
		c.Set(CtxCaller, "settlement-rail")
		c.Set(CtxResourceID, "wd-7")
		c.JSON(http.StatusOK, gin.H{"applied": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/settlements/callbacks", nil))

	require.NotNil(t, got)
	assert.Equal(t, domain.AuditActionSettlement, got.Action)
	assert.Equal(t, "settlement-rail", got.Actor)
	assert.Nil(t, got.SellerID)
	assert.Equal(t, "wd-7", got.ResourceID)
}

func TestAuditLog_SkipsGET(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)
	// No expectations: Log must not be called for reads.

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.GET("/api/v1/balance", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"available": "10.00"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/balance", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuditLog_SkipsFailedRequests(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/withdrawals", func(c *gin.Context) {
		c.JSON(http.StatusPaymentRequired, gin.H{"error_code": "WDR_001"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/withdrawals", nil))

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestMapPathToAction(t *testing.T) {
	tests := []struct {
		route    string
		method   string
		action   domain.AuditAction
		resource string
	}{
		{"/api/v1/kyc/documents", "POST", domain.AuditActionDocumentUpload, "document"},
		{"/api/v1/kyc/submissions", "POST", domain.AuditActionKYCSubmit, "kyc_submission"},
		{"/api/v1/kyc/decisions", "POST", domain.AuditActionKYCDecision, "kyc_submission"},
		{"/api/v1/challenges", "POST", domain.AuditActionChallengeIssue, "challenge"},
		{"/api/v1/payout-methods", "POST", domain.AuditActionMethodAdd, "payout_method"},
		{"/api/v1/payout-methods/:id/default", "POST", domain.AuditActionMethodDefault, "payout_method"},
		{"/api/v1/payout-methods/:id", "DELETE", domain.AuditActionMethodDelete, "payout_method"},
		{"/api/v1/payout-methods/verifications", "POST", domain.AuditActionMethodVerification, "payout_method"},
		{"/api/v1/withdrawals", "POST", domain.AuditActionWithdrawalRequest, "withdrawal"},
		{"/api/v1/withdrawals/:id/confirm", "POST", domain.AuditActionWithdrawalConfirm, "withdrawal"},
		{"/api/v1/settlements/callbacks", "POST", domain.AuditActionSettlement, "withdrawal"},
		{"/api/v1/internal/earnings", "POST", domain.AuditActionEarningsCredit, "ledger_entry"},
		{"/api/v1/payout-methods/:id", "GET", "", ""},
		{"/unknown", "POST", "", ""},
	}

	for _, tc := range tests {
		action, resource := mapPathToAction(tc.route, tc.method)
		assert.Equal(t, tc.action, action, "route=%s method=%s", tc.route, tc.method)
		assert.Equal(t, tc.resource, resource, "route=%s method=%s", tc.route, tc.method)
	}
}
