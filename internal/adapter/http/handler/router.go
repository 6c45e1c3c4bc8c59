package handler

import (
	"time"

	"order-pay-gateway/internal/adapter/http/middleware"
	"order-pay-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	PaymentSvc     ports.PaymentService
	AdminSvc       ports.AdminService
	AuditLog       ports.AuditLog
	LedgerSvc      ports.LedgerService // nil = EVM backend, ledger routes answer LED_001
	TokenSvc       ports.TokenService
	CallerVerifier ports.CallerVerifier
	SigSvc         ports.SignatureService
	NonceStore     ports.NonceStore
	RateLimitStore middleware.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Auth           middleware.AuthOptions
	MaxBodyBytes   int64
	RateLimit      int64
	RateWindow     time.Duration
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBody))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules(deps.RateLimit, deps.RateWindow)
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok || rule.Limit <= 0 {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Signed-request routes ---
	signed := middleware.SignedRequestAuth(deps.CallerVerifier, deps.SigSvc, deps.NonceStore, deps.Auth, deps.Logger)

	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	payments := v1.Group("/payments", rl("payments"), signed)
	{
		payments.POST("", paymentHandler.Pay)
		payments.POST("/delegated", paymentHandler.PayFrom)
	}

	sessionHandler := NewSessionHandler(deps.TokenSvc)
	v1.POST("/auth/session", rl("session"), signed, sessionHandler.Issue)

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc)
	adminHandler := NewAdminHandler(deps.AdminSvc, deps.AuditLog)

	gateway := v1.Group("/gateway", jwtAuth, rl("read"))
	{
		gateway.GET("/config", adminHandler.Config)
		gateway.GET("/events", adminHandler.Events)
	}

	admin := v1.Group("/admin", jwtAuth, rl("admin"))
	{
		admin.PUT("/recipient", adminHandler.ChangeRecipient)
		admin.PUT("/signer", adminHandler.ChangeSigner)
		admin.POST("/enabled/toggle", adminHandler.ToggleEnabled)
		admin.POST("/delegated-pay/toggle", adminHandler.ToggleDelegatedPay)
	}

	// --- Built-in ledger ---
	ledger := v1.Group("/ledger", rl("ledger"))
	if deps.LedgerSvc != nil {
		ledgerHandler := NewLedgerHandler(deps.LedgerSvc)
		ledger.GET("/:coin/balance", ledgerHandler.Balance)
		ledger.GET("/:coin/allowance", ledgerHandler.Allowance)
		ledger.POST("/approve", jwtAuth, ledgerHandler.Approve)
		admin.POST("/ledger/mint", ledgerHandler.Mint)
	} else {
		ledger.Any("/*path", LedgerDisabled)
		admin.POST("/ledger/mint", LedgerDisabled)
	}

	return r
}
