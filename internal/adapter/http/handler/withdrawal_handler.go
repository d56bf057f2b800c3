package handler

import (
	"strings"
	"time"

	"seller-payout-service/internal/adapter/http/dto"
	"seller-payout-service/internal/adapter/http/middleware"
	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"
	"seller-payout-service/pkg/apperror"
	"seller-payout-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is accepted as the request id when the body has none.
const HeaderIdempotencyKey = "Idempotency-Key"

// WithdrawalHandler serves the withdrawal ledger and settlement callbacks.
type WithdrawalHandler struct {
	withdrawals   ports.WithdrawalService
	confirmWindow time.Duration
}

func NewWithdrawalHandler(withdrawals ports.WithdrawalService, confirmWindow time.Duration) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals, confirmWindow: confirmWindow}
}

// Create handles POST /api/v1/withdrawals. A repeated request id returns the
// original withdrawal.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	sellerID, ok := requireSeller(c)
	if !ok {
		return
	}

	var req dto.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	if req.RequestID == "" {
		if key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey)); key != "" {
			if !dto.IsSafeID(key) {
				response.Error(c, apperror.ValidationFields("invalid request", map[string]string{
					"request_id": "must contain only letters, digits, '_', '-', '.' or ':' (max 128)",
				}))
				return
			}
			req.RequestID = key
		}
	}

	amount, err := dto.ParseAmount("amount", req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	methodID, ok := parseUUID(c, req.MethodID, "Payout method")
	if !ok {
		return
	}

	w, err := h.withdrawals.RequestWithdrawal(c.Request.Context(), ports.WithdrawalInput{
		SellerID:  sellerID,
		RequestID: req.RequestID,
		Amount:    amount,
		MethodID:  methodID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, w.ID.String())
	response.Created(c, dto.NewWithdrawalResponse(w, h.confirmWindow))
}

// Confirm handles POST /api/v1/withdrawals/:id/confirm.
func (h *WithdrawalHandler) Confirm(c *gin.Context) {
	sellerID, ok := requireSeller(c)
	if !ok {
		return
	}
	withdrawalID, ok := uuidParam(c, "Withdrawal")
	if !ok {
		return
	}

	var req dto.ConfirmWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}

	w, err := h.withdrawals.ConfirmWithdrawal(c.Request.Context(), ports.ConfirmWithdrawalInput{
		SellerID:     sellerID,
		WithdrawalID: withdrawalID,
		Proof:        req.Challenge.Proof(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWithdrawalResponse(w, h.confirmWindow))
}

// Get handles GET /api/v1/withdrawals/:id.
func (h *WithdrawalHandler) Get(c *gin.Context) {
	sellerID, ok := requireSeller(c)
	if !ok {
		return
	}
	withdrawalID, ok := uuidParam(c, "Withdrawal")
	if !ok {
		return
	}

	w, err := h.withdrawals.GetWithdrawal(c.Request.Context(), sellerID, withdrawalID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWithdrawalResponse(w, h.confirmWindow))
}

// List handles GET /api/v1/withdrawals (payout history, newest first).
func (h *WithdrawalHandler) List(c *gin.Context) {
	sellerID, ok := requireSeller(c)
	if !ok {
		return
	}

	limit, offset := pageParams(c)
	params := ports.WithdrawalListParams{
		SellerID: sellerID,
		Limit:    limit,
		Offset:   offset,
	}
	if s := c.Query("status"); s != "" {
		status := domain.WithdrawalStatus(strings.ToUpper(s))
		if !status.Valid() {
			response.Error(c, apperror.ValidationFields("invalid query", map[string]string{
				"status": "unknown withdrawal status",
			}))
			return
		}
		params.Status = &status
	}

	list, total, err := h.withdrawals.ListWithdrawals(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.WithdrawalResponse, 0, len(list))
	for i := range list {
		items = append(items, dto.NewWithdrawalResponse(&list[i], h.confirmWindow))
	}
	response.Paged(c, items, limit, offset, int(total))
}

// SettlementCallback handles POST /api/v1/settlements/callbacks from the
// settlement rail. Unknown or already settled withdrawals are acknowledged
// with applied=false.
func (h *WithdrawalHandler) SettlementCallback(c *gin.Context) {
	var req dto.SettlementCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	dto.SanitizeStruct(&req)

	withdrawalID, ok := parseUUID(c, req.WithdrawalID, "Withdrawal")
	if !ok {
		return
	}

	applied, err := h.withdrawals.HandleSettlement(c.Request.Context(), ports.SettlementCallback{
		WithdrawalID: withdrawalID,
		Outcome:      domain.SettlementOutcome(strings.ToUpper(req.Outcome)),
		Reference:    req.Reference,
		Reason:       req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, req.WithdrawalID)
	response.OK(c, dto.CallbackAck{Applied: applied})
}
