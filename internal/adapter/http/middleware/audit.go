package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
}

// auditRoutes is keyed by "METHOD route-pattern".
var auditRoutes = map[string]auditRoute{
	"POST /api/v1/kyc/documents":                {domain.AuditActionDocumentUpload, "document"},
	"POST /api/v1/kyc/submissions":              {domain.AuditActionKYCSubmit, "kyc_submission"},
	"POST /api/v1/kyc/decisions":                {domain.AuditActionKYCDecision, "kyc_submission"},
	"POST /api/v1/challenges":                   {domain.AuditActionChallengeIssue, "challenge"},
	"POST /api/v1/payout-methods":               {domain.AuditActionMethodAdd, "payout_method"},
	"POST /api/v1/payout-methods/:id/default":   {domain.AuditActionMethodDefault, "payout_method"},
	"DELETE /api/v1/payout-methods/:id":         {domain.AuditActionMethodDelete, "payout_method"},
	"POST /api/v1/payout-methods/verifications": {domain.AuditActionMethodVerification, "payout_method"},
	"POST /api/v1/withdrawals":                  {domain.AuditActionWithdrawalRequest, "withdrawal"},
	"POST /api/v1/withdrawals/:id/confirm":      {domain.AuditActionWithdrawalConfirm, "withdrawal"},
	"POST /api/v1/settlements/callbacks":        {domain.AuditActionSettlement, "withdrawal"},
	"POST /api/v1/internal/earnings":            {domain.AuditActionEarningsCredit, "ledger_entry"},
}

// AuditLog creates an audit middleware that records successful mutations.
// Handlers may set CtxResourceID for resources that have no :id path parameter.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		action, resourceType := mapPathToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		entry := &domain.AuditLog{
			ID:           uuid.New(),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now().UTC(),
		}
		if id := c.GetString(CtxResourceID); id != "" {
			entry.ResourceID = id
		}
		if sellerID, ok := SellerID(c); ok {
			entry.SellerID = &sellerID
			entry.Actor = sellerID
		} else {
			entry.Actor = c.GetString(CtxCaller)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}

func mapPathToAction(route, method string) (domain.AuditAction, string) {
	r, ok := auditRoutes[method+" "+route]
	if !ok {
		return "", ""
	}
	return r.action, r.resourceType
}
