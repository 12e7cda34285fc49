package handler

import (
	"marketplace-ledger/internal/adapter/http/middleware"
	redisStore "marketplace-ledger/internal/adapter/storage/redis"
	"marketplace-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	EscrowSvc      ports.EscrowService
	TopupSvc       ports.TopupService
	PayoutSvc      ports.PayoutService
	ReportingSvc   ports.ReportingService
	TokenSvc       ports.ActorTokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
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

	actorAuth := middleware.ActorAuth(deps.TokenSvc, deps.Logger)
	adminOnly := middleware.RequireRole(ports.RoleAdmin)

	escrowHandler := NewEscrowHandler(deps.EscrowSvc)
	topupHandler := NewTopupHandler(deps.TopupSvc)
	payoutHandler := NewPayoutHandler(deps.PayoutSvc)
	reportHandler := NewReportHandler(deps.ReportingSvc)

	// API v1 routes (all authenticated)
	v1 := r.Group("/api/v1", actorAuth)

	// --- Order escrow transitions ---
	orders := v1.Group("/orders")
	{
		orders.POST("/:id/hold", rl("orders"), middleware.RequireRole(ports.RoleCustomer, ports.RoleAdmin), escrowHandler.Hold)
		orders.POST("/:id/settle", rl("orders"), adminOnly, escrowHandler.Settle)
		orders.POST("/:id/cancel", rl("orders"), adminOnly, escrowHandler.Cancel)
		orders.GET("/:id/transactions", rl("reads"), adminOnly, reportHandler.ListOrderTransactions)
	}

	// --- Wallet queries ---
	wallets := v1.Group("/wallets")
	{
		wallets.GET("/:ownerId/balance", rl("reads"), reportHandler.GetBalance)
		wallets.GET("/:ownerId/transactions", rl("reads"), reportHandler.ListWalletTransactions)
	}

	// --- Topup workflow ---
	topups := v1.Group("/topups")
	{
		topups.POST("", rl("topups"), topupHandler.Create)
		topups.GET("/pending", rl("reads"), adminOnly, topupHandler.ListPending)
		topups.POST("/:id/approve", rl("topups"), adminOnly, topupHandler.Approve)
		topups.POST("/:id/reject", rl("topups"), adminOnly, topupHandler.Reject)
	}

	// --- Payout batch (admin) ---
	payouts := v1.Group("/payouts", adminOnly)
	{
		payouts.GET("/payable", rl("reads"), payoutHandler.ListPayable)
		payouts.GET("/export", rl("reads"), payoutHandler.Export)
		payouts.POST("/bulk", rl("payouts"), payoutHandler.ExecuteBulk)
		payouts.POST("/:merchantId", rl("payouts"), payoutHandler.Execute)
	}

	// --- Reporting (admin) ---
	reports := v1.Group("/reports", adminOnly)
	{
		reports.GET("/summary", rl("reads"), reportHandler.Summary)
	}

	return r
}
