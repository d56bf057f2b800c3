package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"seller-payout-service/config"
	"seller-payout-service/internal/adapter/external"
	httpHandler "seller-payout-service/internal/adapter/http/handler"
	"seller-payout-service/internal/adapter/http/middleware"
	"seller-payout-service/internal/adapter/metrics"
	"seller-payout-service/internal/adapter/notify"
	pgStorage "seller-payout-service/internal/adapter/storage/postgres"
	redisStorage "seller-payout-service/internal/adapter/storage/redis"
	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"
	"seller-payout-service/internal/jobs"
	"seller-payout-service/internal/service"
	"seller-payout-service/migrations"
	"seller-payout-service/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	// A .env file is optional; real deployments set SPS_* directly.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("SPS_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Seller Payout Service")

	ctx := context.Background()

	keys, err := service.DeriveKeys(cfg.Security.MasterKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid security.master_key")
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	if err := pgStorage.ApplyMigrations(ctx, pool, migrations.Files, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Repositories
	identityRepo := pgStorage.NewIdentityRepo(pool)
	documentRepo := pgStorage.NewDocumentRepo(pool)
	methodRepo := pgStorage.NewPayoutMethodRepo(pool)
	eligibilityRepo := pgStorage.NewEligibilityRepo(pool)
	balanceRepo := pgStorage.NewBalanceRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	withdrawalRepo := pgStorage.NewWithdrawalRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Redis stores
	challengeStore := redisStorage.NewChallengeStore(rdb)
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	nonceStore := redisStorage.NewNonceStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Primitives
	encSvc, err := service.NewAESEncryptionService(keys.Encryption)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	prom := metrics.NewPrometheus()
	bus := service.NewEventBus(logger.Component(log, "events"))

	limits := domain.WithdrawalLimits{
		Currency:      cfg.Limits.Currency,
		MinAmount:     cfg.Limits.MinAmount,
		MaxPerTx:      cfg.Limits.MaxPerTx,
		MonthlyCap:    cfg.Limits.MonthlyCap,
		MonthlyWindow: cfg.Limits.MonthlyWindow,
		ConfirmWindow: cfg.Limits.ConfirmWindow,
	}

	// Business services
	auditSvc := service.NewAuditService(auditRepo, logger.Component(log, "audit"))
	documentSvc := service.NewDocumentService(documentRepo, cfg.Documents.MaxBytes, cfg.Documents.AllowedTypes, logger.Component(log, "documents"))
	challengeSvc := service.NewChallengeService(
		challengeStore,
		newNotifier(cfg.Notify, log),
		service.NewKeyedDigest(keys.Challenge),
		service.ChallengeSettings{
			TTL:         cfg.Challenge.TTL,
			CodeLength:  cfg.Challenge.CodeLength,
			MaxAttempts: cfg.Challenge.MaxAttempts,
		},
		prom,
		logger.Component(log, "challenges"),
	)
	kycSvc := service.NewKYCService(
		identityRepo,
		documentSvc,
		newVerificationProvider(cfg.KYCProvider, sigSvc, log),
		encSvc,
		transactor,
		bus,
		prom,
		cfg.KYCProvider.CallbackURL,
		logger.Component(log, "kyc"),
	)
	payoutMethodSvc := service.NewPayoutMethodService(
		methodRepo,
		eligibilityRepo,
		identityRepo,
		balanceRepo,
		withdrawalRepo,
		challengeSvc,
		encSvc,
		service.NewKeyedDigest(keys.Fingerprint),
		transactor,
		cfg.Limits.Currency,
		prom,
		logger.Component(log, "payout_methods"),
	)
	payoutMethodSvc.Subscribe(bus)

	withdrawalSvc := service.NewWithdrawalService(
		withdrawalRepo,
		methodRepo,
		balanceRepo,
		ledgerRepo,
		idempotencyRepo,
		idempotencyCache,
		challengeSvc,
		newSettlementGateway(cfg.Settlement, sigSvc, log),
		encSvc,
		transactor,
		prom,
		limits,
		cfg.Jobs.RedispatchAfter,
		logger.Component(log, "withdrawals"),
	)
	balanceSvc := service.NewBalanceService(balanceRepo, ledgerRepo, withdrawalRepo, transactor, limits, logger.Component(log, "balances"))

	callers := make([]middleware.Caller, 0, len(cfg.Callers))
	for _, c := range cfg.Callers {
		callers = append(callers, middleware.Caller{
			Name:      c.Name,
			AccessKey: c.AccessKey,
			Secret:    c.Secret,
			Scopes:    c.Scopes,
		})
	}
	if len(callers) == 0 {
		log.Warn().Msg("No callers configured, callback routes will reject every request")
	}

	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(withdrawalSvc, jobs.Intervals{
			Expire:     cfg.Jobs.ExpireInterval,
			Redispatch: cfg.Jobs.RedispatchInterval,
		}, logger.Component(log, "jobs"))
		if err := scheduler.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start withdrawal sweeps")
		}
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		DocumentSvc:     documentSvc,
		KYCSvc:          kycSvc,
		ChallengeSvc:    challengeSvc,
		PayoutMethodSvc: payoutMethodSvc,
		WithdrawalSvc:   withdrawalSvc,
		BalanceSvc:      balanceSvc,
		SigSvc:          sigSvc,
		NonceStore:      nonceStore,
		TokenSvc:        tokenSvc,
		Callers:         middleware.NewCallerRegistry(callers),
		RateLimitStore:  rateLimitStore,
		HealthCheckers:  []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		AuditSvc:        auditSvc,
		HTTPObserver:    prom,
		MetricsHandler:  prom.Handler(),
		ConfirmWindow:   cfg.Limits.ConfirmWindow,
		DocumentMaxSize: cfg.Documents.MaxBytes,
		Mode:            cfg.Server.Mode,
		Logger:          log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	auditSvc.Wait()

	log.Info().Msg("Server exited")
}

func newNotifier(cfg config.NotifyConfig, log zerolog.Logger) ports.ChallengeNotifier {
	if cfg.Provider == "sendgrid" {
		return notify.NewSendGridNotifier(cfg.SendGridAPIKey, cfg.SendGridHost, cfg.FromName, cfg.FromAddress, logger.Component(log, "sendgrid"))
	}
	log.Warn().Msg("Challenge codes are written to the log; set notify.provider=sendgrid in production")
	return notify.NewLogNotifier(logger.Component(log, "notify"))
}

func newVerificationProvider(cfg config.KYCProviderConfig, signer ports.SignatureService, log zerolog.Logger) ports.VerificationProvider {
	if cfg.BaseURL == "" {
		return external.NewManualReviewProvider(logger.Component(log, "kyc_provider"))
	}
	creds := external.Credentials{AccessKey: cfg.AccessKey, Secret: cfg.Secret}
	return external.NewHTTPVerificationProvider(cfg.BaseURL, creds, cfg.Timeout, signer, logger.Component(log, "kyc_provider"))
}

func newSettlementGateway(cfg config.SettlementConfig, signer ports.SignatureService, log zerolog.Logger) ports.SettlementGateway {
	if cfg.BaseURL == "" {
		return external.NewManualSettlementGateway(logger.Component(log, "settlement"))
	}
	creds := external.Credentials{AccessKey: cfg.AccessKey, Secret: cfg.Secret}
	return external.NewHTTPSettlementGateway(cfg.BaseURL, creds, cfg.Timeout, signer, logger.Component(log, "settlement"))
}
