package middleware

import (
	"bytes"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"seller-payout-service/internal/core/ports"
	"seller-payout-service/pkg/apperror"
	"seller-payout-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// Header names for service-to-service HMAC authentication
	HeaderAccessKey = "X-Caller-Access-Key"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
	HeaderRequestID = "X-Request-ID"

	// Max timestamp drift allowed (60 seconds)
	maxTimestampDrift = 60 * time.Second

	// Nonce TTL (120 seconds)
	nonceTTL = 120 * time.Second

	// Context keys
	CtxSellerID    = "seller_id"
	CtxSellerEmail = "seller_email"
	CtxCaller      = "caller"
	CtxRequestID   = "request_id"
	CtxResourceID  = "resource_id"
)

// Caller scopes restrict a service caller to one group of callback routes.
const (
	ScopeKYC        = "kyc"
	ScopeMethods    = "methods"
	ScopeSettlement = "settlement"
	ScopeEarnings   = "earnings"
)

var now = time.Now

// Caller is a configured service-to-service client.
type Caller struct {
	Name      string
	AccessKey string
	Secret    string
	Scopes    []string // empty allows every scope
}

// Allows reports whether the caller may use routes of scope.
func (c *Caller) Allows(scope string) bool {
	if len(c.Scopes) == 0 {
		return true
	}
	for _, s := range c.Scopes {
		if strings.EqualFold(s, scope) {
			return true
		}
	}
	return false
}

// CallerRegistry looks callers up by access key.
type CallerRegistry struct {
	byKey map[string]*Caller
}

func NewCallerRegistry(callers []Caller) *CallerRegistry {
	r := &CallerRegistry{byKey: make(map[string]*Caller, len(callers))}
	for i := range callers {
		r.byKey[callers[i].AccessKey] = &callers[i]
	}
	return r
}

func (r *CallerRegistry) Lookup(accessKey string) *Caller {
	return r.byKey[accessKey]
}

// CallerAuth verifies HMAC-SHA256 signed requests from service callers.
// Pipeline: Check timestamp -> Lookup caller and scope -> Check nonce -> Verify signature.
func CallerAuth(
	registry *CallerRegistry,
	scope string,
	sigSvc ports.SignatureService,
	nonceStore ports.NonceStore,
	log zerolog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		accessKey := c.GetHeader(HeaderAccessKey)
		signature := c.GetHeader(HeaderSignature)
		timestampStr := c.GetHeader(HeaderTimestamp)
		nonce := c.GetHeader(HeaderNonce)

		if accessKey == "" || signature == "" || timestampStr == "" || nonce == "" {
			response.Error(c, apperror.ErrInvalidCaller())
			c.Abort()
			return
		}

		// Step 1: Timestamp check
		timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
		if err != nil {
			response.Error(c, apperror.ErrTimestampExpired())
			c.Abort()
			return
		}
		if math.Abs(float64(now().Unix()-timestamp)) > maxTimestampDrift.Seconds() {
			response.Error(c, apperror.ErrTimestampExpired())
			c.Abort()
			return
		}

		// Step 2: Lookup caller
		caller := registry.Lookup(accessKey)
		if caller == nil || !caller.Allows(scope) {
			log.Warn().Str("access_key", accessKey).Str("scope", scope).Msg("caller rejected")
			response.Error(c, apperror.ErrInvalidCaller())
			c.Abort()
			return
		}

		// Step 3: Nonce
		isNew, err := nonceStore.CheckAndSet(c.Request.Context(), caller.AccessKey, nonce, nonceTTL)
		if err != nil {
			log.Warn().Err(err).Msg("nonce store error, allowing request")
		} else if !isNew {
			response.Error(c, apperror.ErrNonceUsed())
			c.Abort()
			return
		}

		// Step 4: Signature verification
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, apperror.Validation("cannot read request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		canonical := sigSvc.BuildCanonicalString(
			c.Request.Method,
			c.Request.URL.Path,
			timestamp,
			nonce,
			string(bodyBytes),
		)
		if !sigSvc.Verify(caller.Secret, canonical, signature) {
			response.Error(c, apperror.ErrInvalidCaller())
			c.Abort()
			return
		}

		c.Set(CtxCaller, caller.Name)
		c.Next()
	}
}

// SellerAuth validates the seller bearer token minted by the account system.
func SellerAuth(tokenSvc ports.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenStr == "" {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxSellerID, claims.SellerID)
		c.Set(CtxSellerEmail, claims.Email)
		c.Next()
	}
}

// SellerID returns the authenticated seller.
func SellerID(c *gin.Context) (string, bool) {
	id := c.GetString(CtxSellerID)
	return id, id != ""
}

func SellerEmail(c *gin.Context) string {
	return c.GetString(CtxSellerEmail)
}

// RequestID propagates or assigns the request id used in envelopes and logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// HTTPObserver records request latency per route.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, seconds float64)
}

// RequestLogger logs every HTTP request and feeds obs when it is non-nil.
func RequestLogger(log zerolog.Logger, obs HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if obs != nil {
			obs.ObserveHTTP(c.Request.Method, route, status, latency.Seconds())
		}

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("request_id", c.GetString(CtxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("route", route).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": "SYS_001",
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
