package handler

import (
	"net/http"
	"time"

	"seller-payout-service/internal/adapter/http/middleware"
	redisStore "seller-payout-service/internal/adapter/storage/redis"
	"seller-payout-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	DocumentSvc     ports.DocumentService
	KYCSvc          ports.KYCService
	ChallengeSvc    ports.ChallengeService
	PayoutMethodSvc ports.PayoutMethodService
	WithdrawalSvc   ports.WithdrawalService
	BalanceSvc      ports.BalanceService
	SigSvc          ports.SignatureService
	NonceStore      ports.NonceStore
	TokenSvc        ports.TokenService
	Callers         *middleware.CallerRegistry
	RateLimitStore  *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers  []ports.HealthChecker
	AuditSvc        ports.AuditService      // nil = audit logging disabled
	HTTPObserver    middleware.HTTPObserver // nil = no request metrics
	MetricsHandler  http.Handler            // nil = no /metrics endpoint
	ConfirmWindow   time.Duration
	DocumentMaxSize int64
	Mode            string
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger, deps.HTTPObserver))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep: verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	kycHandler := NewKYCHandler(deps.DocumentSvc, deps.KYCSvc)
	challengeHandler := NewChallengeHandler(deps.ChallengeSvc)
	methodHandler := NewPayoutMethodHandler(deps.PayoutMethodSvc)
	withdrawalHandler := NewWithdrawalHandler(deps.WithdrawalSvc, deps.ConfirmWindow)
	balanceHandler := NewBalanceHandler(deps.BalanceSvc)

	v1 := r.Group("/api/v1")

	// --- Seller routes (JWT) ---
	seller := v1.Group("", middleware.SellerAuth(deps.TokenSvc))

	// Raw document bytes get their own limit; one extra byte lets the store report DOC_001.
	seller.POST("/kyc/documents", rl(middleware.GroupDocuments),
		middleware.MaxBodySize(deps.DocumentMaxSize+1), kycHandler.UploadDocument)

	sellerJSON := seller.Group("", middleware.MaxBodySize(middleware.JSONBodyLimit))
	{
		sellerJSON.POST("/kyc/submissions", rl(middleware.GroupKYCSubmissions), kycHandler.Submit)
		sellerJSON.GET("/kyc", rl(middleware.GroupReads), kycHandler.GetIdentity)
		sellerJSON.GET("/kyc/submissions", rl(middleware.GroupReads), kycHandler.ListSubmissions)

		sellerJSON.POST("/challenges", rl(middleware.GroupChallenges), challengeHandler.Issue)

		sellerJSON.GET("/payout-methods", rl(middleware.GroupReads), methodHandler.List)
		sellerJSON.POST("/payout-methods", rl(middleware.GroupPayoutMethods), methodHandler.Add)
		sellerJSON.POST("/payout-methods/:id/default", rl(middleware.GroupPayoutMethods), methodHandler.SetDefault)
		sellerJSON.DELETE("/payout-methods/:id", rl(middleware.GroupPayoutMethods), methodHandler.Delete)

		sellerJSON.GET("/balance", rl(middleware.GroupReads), balanceHandler.GetBalance)
		sellerJSON.GET("/ledger", rl(middleware.GroupReads), balanceHandler.ListLedger)

		sellerJSON.GET("/withdrawals", rl(middleware.GroupReads), withdrawalHandler.List)
		sellerJSON.POST("/withdrawals", rl(middleware.GroupWithdrawals), withdrawalHandler.Create)
		sellerJSON.GET("/withdrawals/:id", rl(middleware.GroupReads), withdrawalHandler.Get)
		sellerJSON.POST("/withdrawals/:id/confirm", rl(middleware.GroupWithdrawals), withdrawalHandler.Confirm)
	}

	// --- Service-to-service routes (HMAC) ---
	callerAuth := func(scope string) gin.HandlerFunc {
		return middleware.CallerAuth(deps.Callers, scope, deps.SigSvc, deps.NonceStore, deps.Logger)
	}
	callers := v1.Group("", middleware.MaxBodySize(middleware.JSONBodyLimit))
	{
		callers.POST("/kyc/decisions", callerAuth(middleware.ScopeKYC), rl(middleware.GroupCallbacks), kycHandler.RecordDecision)
		callers.POST("/payout-methods/verifications", callerAuth(middleware.ScopeMethods), rl(middleware.GroupCallbacks), methodHandler.RecordVerification)
		callers.POST("/settlements/callbacks", callerAuth(middleware.ScopeSettlement), rl(middleware.GroupCallbacks), withdrawalHandler.SettlementCallback)
		callers.POST("/internal/earnings", callerAuth(middleware.ScopeEarnings), rl(middleware.GroupCallbacks), balanceHandler.CreditEarnings)
	}

	return r
}
