package handler

import (
	"seller-payout-service/internal/adapter/http/dto"
	"seller-payout-service/internal/adapter/http/middleware"
	"seller-payout-service/internal/core/ports"
	"seller-payout-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// BalanceHandler serves balances, the ledger and the earnings feed.
type BalanceHandler struct {
	balances ports.BalanceService
}

func NewBalanceHandler(balances ports.BalanceService) *BalanceHandler {
	return &BalanceHandler{balances: balances}
}

// GetBalance handles GET /api/v1/balance.
func (h *BalanceHandler) GetBalance(c *gin.Context) {
	sellerID, ok := requireSeller(c)
	if !ok {
		return
	}

	summary, err := h.balances.GetSummary(c.Request.Context(), sellerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewBalanceResponse(summary))
}

// ListLedger handles GET /api/v1/ledger.
func (h *BalanceHandler) ListLedger(c *gin.Context) {
	sellerID, ok := requireSeller(c)
	if !ok {
		return
	}

	limit, offset := pageParams(c)
	entries, total, err := h.balances.ListLedger(c.Request.Context(), sellerID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewLedgerEntryResponse(&entries[i]))
	}
	response.Paged(c, items, limit, offset, int(total))
}

// CreditEarnings handles POST /api/v1/internal/earnings from the order system.
// Replays of the same reference return the original entry.
func (h *BalanceHandler) CreditEarnings(c *gin.Context) {
	var req dto.EarningsCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := dto.ParseAmount("amount", req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	entry, err := h.balances.CreditEarnings(c.Request.Context(), ports.EarningsCredit{
		SellerID:    req.SellerID,
		Amount:      amount,
		Reference:   req.Reference,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, entry.ID.String())
	response.Created(c, dto.NewLedgerEntryResponse(entry))
}
