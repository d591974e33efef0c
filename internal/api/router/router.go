package router

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/homeserve-be/internal/api/domain"
	"github.com/cuongbtq/homeserve-be/internal/api/dto"
	"github.com/cuongbtq/homeserve-be/internal/api/handler"
	"github.com/cuongbtq/homeserve-be/internal/config"
	"github.com/cuongbtq/homeserve-be/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, cfg *config.Config) (*gin.Engine, error) {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := dto.RegisterValidators(v); err != nil {
			return nil, fmt.Errorf("failed to register validators: %w", err)
		}
	}

	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(cfg.Realtime.AllowedOrigins))
	r.Use(metrics.Middleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": cfg.App.Name,
		})
	})
	r.GET("/ready", func(c *gin.Context) {
		if deps.Ready != nil {
			if err := deps.Ready(c.Request.Context()); err != nil {
				deps.Logger.Warn("Readiness check failed", slog.Any("error", err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	authHandler := handler.NewAuthHandler(deps)
	accountHandler := handler.NewAccountHandler(deps)
	bookingHandler := handler.NewBookingHandler(deps)
	scrapHandler := handler.NewScrapHandler(deps)
	walletHandler := handler.NewWalletHandler(deps)
	notificationHandler := handler.NewNotificationHandler(deps)
	realtimeHandler := handler.NewRealtimeHandler(deps)

	authenticated := AuthMiddleware(deps.Tokens, deps.Users, deps.Logger, false)
	pathIDs := PathIDMiddleware()

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			limited := authGroup.Group("", RateLimitMiddleware(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
			limited.POST("/register", authHandler.Register)
			limited.POST("/login", authHandler.Login)

			authGroup.GET("/me", authenticated, authHandler.Me)
		}

		vendor := v1.Group("/vendor", authenticated, pathIDs, RequireRole(domain.RoleVendor))
		{
			vendor.POST("/workers", accountHandler.CreateWorker)
			vendor.GET("/workers", accountHandler.ListWorkers)
			vendor.DELETE("/workers/:id", accountHandler.DeactivateWorker)
		}

		admin := v1.Group("/admin", authenticated, pathIDs, RequireRole(domain.RoleAdmin))
		{
			admin.GET("/users", accountHandler.ListUsers)
			admin.POST("/users/:id/activate", accountHandler.ActivateUser)
			admin.POST("/users/:id/deactivate", accountHandler.DeactivateUser)
			admin.GET("/stats", accountHandler.Stats)
			admin.POST("/wallets/:user_id/adjust", walletHandler.AdjustWallet)
		}

		bookings := v1.Group("/bookings", authenticated, pathIDs)
		{
			bookings.POST("", RequireRole(domain.RoleUser), bookingHandler.CreateBooking)
			bookings.GET("", bookingHandler.ListBookings)

			bookings.GET("/alerts", RequireRole(domain.RoleVendor), bookingHandler.ListAlerts)

			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.POST("/:id/accept", RequireRole(domain.RoleVendor), bookingHandler.AcceptBooking)
			bookings.POST("/:id/reject", RequireRole(domain.RoleVendor), bookingHandler.RejectBooking)
			bookings.POST("/:id/assign", RequireRole(domain.RoleVendor), bookingHandler.AssignWorker)
			bookings.POST("/:id/decline", RequireRole(domain.RoleWorker), bookingHandler.DeclineAssignment)
			bookings.POST("/:id/start", RequireRole(domain.RoleWorker), bookingHandler.StartBooking)
			bookings.POST("/:id/complete", RequireRole(domain.RoleWorker, domain.RoleVendor), bookingHandler.CompleteBooking)
			bookings.POST("/:id/cancel", RequireRole(domain.RoleUser, domain.RoleAdmin), bookingHandler.CancelBooking)
			bookings.POST("/:id/pay", RequireRole(domain.RoleUser), bookingHandler.PayBooking)
			bookings.POST("/:id/mark-paid", RequireRole(domain.RoleVendor), bookingHandler.MarkBookingPaid)
		}

		scrap := v1.Group("/scrap", authenticated, pathIDs)
		{
			scrap.POST("", RequireRole(domain.RoleUser), scrapHandler.CreateScrap)
			scrap.GET("", scrapHandler.ListScrap)
			scrap.GET("/:id", scrapHandler.GetScrap)
			scrap.PATCH("/:id", RequireRole(domain.RoleUser), scrapHandler.UpdateScrap)
			scrap.DELETE("/:id", RequireRole(domain.RoleUser, domain.RoleAdmin), scrapHandler.DeleteScrap)
			scrap.POST("/:id/accept", RequireRole(domain.RoleVendor), scrapHandler.AcceptScrap)
			scrap.POST("/:id/complete", RequireRole(domain.RoleVendor), scrapHandler.CompleteScrap)
			scrap.POST("/:id/cancel", RequireRole(domain.RoleUser, domain.RoleAdmin), scrapHandler.CancelScrap)
			scrap.POST("/:id/images", RequireRole(domain.RoleUser), scrapHandler.UploadImage)
		}

		wallet := v1.Group("/wallet", authenticated)
		{
			wallet.GET("", walletHandler.GetWallet)
			wallet.GET("/transactions", walletHandler.ListTransactions)
			wallet.POST("/topup", RequireRole(domain.RoleUser, domain.RoleVendor), walletHandler.TopUp)
		}

		notifications := v1.Group("/notifications", authenticated, pathIDs)
		{
			notifications.GET("", notificationHandler.ListNotifications)
			notifications.GET("/unread-count", notificationHandler.UnreadCount)
			notifications.POST("/read-all", notificationHandler.MarkAllRead)
			notifications.POST("/:id/read", notificationHandler.MarkRead)
		}

		// Browsers cannot set headers on EventSource/WebSocket, so ?token= is accepted here
		realtime := v1.Group("/realtime", AuthMiddleware(deps.Tokens, deps.Users, deps.Logger, true))
		{
			realtime.GET("/ws", realtimeHandler.WebSocket)
			realtime.GET("/sse", realtimeHandler.SSE)
		}
	}

	return r, nil
}
