package handler

import (
	"seller-payout-service/internal/adapter/http/dto"
	"seller-payout-service/internal/adapter/http/middleware"
	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"
	"seller-payout-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// ChallengeHandler issues verification codes.
type ChallengeHandler struct {
	challenges ports.ChallengeService
}

func NewChallengeHandler(challenges ports.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{challenges: challenges}
}

// Issue handles POST /api/v1/challenges. The code goes to the seller's
// email from the token and is never part of the response.
func (h *ChallengeHandler) Issue(c *gin.Context) {
	sellerID, ok := requireSeller(c)
	if !ok {
		return
	}

	var req dto.IssueChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}

	ch, err := h.challenges.Issue(c.Request.Context(), ports.IssueChallengeRequest{
		SellerID: sellerID,
		Email:    middleware.SellerEmail(c),
		Purpose:  domain.ChallengePurpose(req.Purpose),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, ch.ID.String())
	response.Created(c, dto.ChallengeResponse{
		ChallengeID: ch.ID.String(),
		Purpose:     string(ch.Purpose),
		ExpiresAt:   ch.ExpiresAt,
	})
}
