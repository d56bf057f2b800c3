package handler

import (
	"errors"
	"io"
	"strings"

	"seller-payout-service/internal/adapter/http/dto"
	"seller-payout-service/internal/adapter/http/middleware"
	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"
	"seller-payout-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// Challenge headers are accepted on DELETE for clients that cannot send a body.
const (
	HeaderChallengeID   = "X-Challenge-Id"
	HeaderChallengeCode = "X-Challenge-Code"
)

// PayoutMethodHandler serves the payout method registry.
type PayoutMethodHandler struct {
	methods ports.PayoutMethodService
}

func NewPayoutMethodHandler(methods ports.PayoutMethodService) *PayoutMethodHandler {
	return &PayoutMethodHandler{methods: methods}
}

// List handles GET /api/v1/payout-methods.
func (h *PayoutMethodHandler) List(c *gin.Context) {
	sellerID, ok := requireSeller(c)
	if !ok {
		return
	}

	methods, err := h.methods.ListMethods(c.Request.Context(), sellerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, methods)
}

// Add handles POST /api/v1/payout-methods.
func (h *PayoutMethodHandler) Add(c *gin.Context) {
	sellerID, ok := requireSeller(c)
	if !ok {
		return
	}

	var req dto.AddPayoutMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}

	method, err := h.methods.AddMethod(c.Request.Context(), ports.AddPayoutMethodRequest{
		SellerID: sellerID,
		Type:     domain.PayoutMethodType(strings.ToUpper(req.Type)),
		Details:  req.DomainDetails(),
		Proof:    req.Challenge.Proof(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, method.ID.String())
	response.Created(c, method)
}

// SetDefault handles POST /api/v1/payout-methods/:id/default.
func (h *PayoutMethodHandler) SetDefault(c *gin.Context) {
	sellerID, ok := requireSeller(c)
	if !ok {
		return
	}
	methodID, ok := uuidParam(c, "Payout method")
	if !ok {
		return
	}

	method, err := h.methods.SetDefault(c.Request.Context(), sellerID, methodID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, method)
}

// Delete handles DELETE /api/v1/payout-methods/:id. The challenge comes in
// the JSON body or, failing that, in the X-Challenge-* headers.
func (h *PayoutMethodHandler) Delete(c *gin.Context) {
	sellerID, ok := requireSeller(c)
	if !ok {
		return
	}
	methodID, ok := uuidParam(c, "Payout method")
	if !ok {
		return
	}

	var req dto.DeletePayoutMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, dto.BindingError(err))
		return
	}
	if req.Challenge.ChallengeID == "" {
		req.Challenge = dto.ChallengeProofRequest{
			ChallengeID: c.GetHeader(HeaderChallengeID),
			Code:        c.GetHeader(HeaderChallengeCode),
		}
	}

	if err := h.methods.DeleteMethod(c.Request.Context(), sellerID, methodID, req.Challenge.Proof()); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": true, "id": methodID.String()})
}

// RecordVerification handles POST /api/v1/payout-methods/verifications from
// the out-of-band method verifier.
func (h *PayoutMethodHandler) RecordVerification(c *gin.Context) {
	var req dto.MethodVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	dto.SanitizeStruct(&req)

	methodID, ok := parseUUID(c, req.MethodID, "Payout method")
	if !ok {
		return
	}

	applied, err := h.methods.RecordVerification(c.Request.Context(), ports.MethodVerificationRequest{
		MethodID: methodID,
		Outcome:  domain.MethodVerificationOutcome(strings.ToUpper(req.Outcome)),
		Reason:   req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, req.MethodID)
	response.OK(c, dto.CallbackAck{Applied: applied})
}
