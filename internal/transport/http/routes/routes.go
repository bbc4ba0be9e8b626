package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ledgerline/portal-iam/internal/infra/config"
	"github.com/ledgerline/portal-iam/internal/transport/http/handlers"
	"github.com/ledgerline/portal-iam/internal/transport/http/middleware"
	"github.com/ledgerline/portal-iam/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Credentials *usecase.CredentialService
	Invoices    *usecase.InvoiceService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	authMiddleware := middleware.RequireAuth(deps.Services.Credentials)

	healthOptions := make([]handlers.HealthOption, 0, 2)

	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}

	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(deps.Services.Credentials)
		userHandler := handlers.NewUserHandler(deps.Services.Credentials)
		passwordHandler := handlers.NewPasswordHandler(deps.Services.Credentials)

		authGroup := api.Group("/auth")

		loginHandlers := append(buildLoginMiddlewares(deps), authHandler.Login)
		authGroup.POST("/login", loginHandlers...)
		authGroup.GET("/validate-token", authMiddleware, authHandler.ValidateToken)

		resetHandlers := append(buildPasswordResetMiddlewares(deps), passwordHandler.ForgotPassword)
		authGroup.POST("/forgot-password", resetHandlers...)
		authGroup.POST("/reset-password", passwordHandler.ResetPassword)
		authGroup.POST("/set-password", passwordHandler.SetPassword)

		// Account creation is operator-driven: new accounts are provisioned
		// by an authenticated caller and activated through the invite mail.
		userGroup := api.Group("/users")
		userGroup.POST("", authMiddleware, userHandler.Create)
		userGroup.PUT("/:id", authMiddleware, userHandler.Update)
		userGroup.POST("/:id/invite", authMiddleware, userHandler.ResendInvite)

		if deps.Services.Invoices != nil {
			invoiceHandler := handlers.NewInvoiceHandler(deps.Services.Invoices)
			invoiceGroup := api.Group("/invoices")
			invoiceGroup.Use(authMiddleware)
			invoiceGroup.GET("", invoiceHandler.List)
			invoiceGroup.POST("/:id/pay", invoiceHandler.Pay)
			invoiceGroup.GET("/:id/receipt", invoiceHandler.Receipt)
		}
	}

	return r
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.LoginMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       "auth_login_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}

func buildPasswordResetMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.PasswordResetMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Hour
	}

	rule := middleware.RateLimitRule{
		Name:       "password_reset_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
