package handler

import (
	"strconv"
	"strings"

	"seller-payout-service/internal/adapter/http/dto"
	"seller-payout-service/internal/adapter/http/middleware"
	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"
	"seller-payout-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// KYCHandler serves document uploads, submissions and provider decisions.
type KYCHandler struct {
	documents ports.DocumentService
	kyc       ports.KYCService
}

func NewKYCHandler(documents ports.DocumentService, kyc ports.KYCService) *KYCHandler {
	return &KYCHandler{documents: documents, kyc: kyc}
}

// UploadDocument handles POST /api/v1/kyc/documents?kind=GOVERNMENT_ID.
// The body is the raw file.
func (h *KYCHandler) UploadDocument(c *gin.Context) {
	sellerID, ok := requireSeller(c)
	if !ok {
		return
	}

	doc, err := h.documents.Upload(c.Request.Context(), ports.DocumentUpload{
		SellerID:    sellerID,
		Kind:        domain.DocumentKind(strings.ToUpper(c.Query("kind"))),
		ContentType: c.ContentType(),
		Body:        c.Request.Body,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, doc.Ref)
	response.Created(c, doc)
}

// Submit handles POST /api/v1/kyc/submissions.
func (h *KYCHandler) Submit(c *gin.Context) {
	sellerID, ok := requireSeller(c)
	if !ok {
		return
	}

	var req dto.KYCSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	fields, refs := req.Fields()

	identity, err := h.kyc.Submit(c.Request.Context(), ports.KYCSubmitRequest{
		SellerID:  sellerID,
		Fields:    fields,
		Documents: refs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, strconv.FormatInt(identity.Version, 10))
	response.Accepted(c, identity)
}

// GetIdentity handles GET /api/v1/kyc.
func (h *KYCHandler) GetIdentity(c *gin.Context) {
	sellerID, ok := requireSeller(c)
	if !ok {
		return
	}

	identity, err := h.kyc.GetIdentity(c.Request.Context(), sellerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, identity)
}

// ListSubmissions handles GET /api/v1/kyc/submissions.
func (h *KYCHandler) ListSubmissions(c *gin.Context) {
	sellerID, ok := requireSeller(c)
	if !ok {
		return
	}

	subs, err := h.kyc.ListSubmissions(c.Request.Context(), sellerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, subs)
}

// RecordDecision handles POST /api/v1/kyc/decisions from the verification provider.
// Stale deliveries are acknowledged with applied=false.
func (h *KYCHandler) RecordDecision(c *gin.Context) {
	var req dto.KYCDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	dto.SanitizeStruct(&req)

	applied, err := h.kyc.RecordProviderDecision(c.Request.Context(), ports.ProviderDecisionRequest{
		SellerID: req.SellerID,
		Version:  req.Version,
		Decision: domain.KYCDecision(strings.ToUpper(req.Decision)),
		Reason:   req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, req.SellerID)
	response.OK(c, dto.CallbackAck{Applied: applied})
}
