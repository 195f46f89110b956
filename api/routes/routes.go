package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lottoplay/momo-backend/internal/config"
	"github.com/lottoplay/momo-backend/internal/handlers"
	"github.com/lottoplay/momo-backend/internal/middleware"
)

// HandlerDependencies collects the handlers the router wires up.
type HandlerDependencies struct {
	PaymentHandler *handlers.PaymentHandler
}

// SetupRouter sets up the router
func SetupRouter(cfg *config.Config, db *mongo.Database, deps HandlerDependencies) *gin.Engine {
	router := gin.Default()

	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware())

	// Public routes
	public := router.Group("/api/v1")
	{
		public.GET("/health", func(c *gin.Context) {
			ctx, cancel := context.WithTimeout(c, 2*time.Second)
			defer cancel()
			if err := db.Client().Ping(ctx, nil); err != nil {
				c.JSON(503, gin.H{"status": "degraded", "mongo": err.Error()})
				return
			}
			c.JSON(200, gin.H{"status": "ok"})
		})

		// The gateway pushes settlement notifications here; it cannot
		// carry a user token, so the endpoint authenticates with a
		// shared secret header instead.
		public.POST("/payments/webhook", deps.PaymentHandler.ProviderWebhook)
	}

	// Protected routes
	protected := router.Group("/api/v1")
	protected.Use(middleware.JWTAuthMiddleware(cfg))
	{
		payments := protected.Group("/payments")
		{
			payments.POST("/initiate", deps.PaymentHandler.InitiatePayment)
			payments.GET("/:id/status", deps.PaymentHandler.GetPaymentStatus)
			payments.GET("/:id/wait", deps.PaymentHandler.WaitForPayment)
			payments.GET("/user/:userId", deps.PaymentHandler.GetUserTransactions)
			payments.POST("/reconcile", middleware.AdminOnlyMiddleware(), deps.PaymentHandler.ReconcilePayments)
		}
	}

	return router
}
