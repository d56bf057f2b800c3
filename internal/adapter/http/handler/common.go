package handler

import (
	"strconv"

	"seller-payout-service/internal/adapter/http/middleware"
	"seller-payout-service/pkg/apperror"
	"seller-payout-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// requireSeller writes AUTH_001 and returns false when no seller is on the context.
func requireSeller(c *gin.Context) (string, bool) {
	sellerID, ok := middleware.SellerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return "", false
	}
	return sellerID, true
}

// uuidParam parses the :id path segment. Malformed ids are reported as not found.
func uuidParam(c *gin.Context, entity string) (uuid.UUID, bool) {
	return parseUUID(c, c.Param("id"), entity)
}

func parseUUID(c *gin.Context, raw, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		response.Error(c, apperror.ErrNotFound(entity))
		return uuid.Nil, false
	}
	return id, true
}

// pageParams reads limit/offset query parameters.
func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
