// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/avpratap/riqueza-cart-sync/internal/cart"
	"github.com/avpratap/riqueza-cart-sync/internal/config"
	"github.com/avpratap/riqueza-cart-sync/internal/handlers"
	"github.com/avpratap/riqueza-cart-sync/internal/identity"
	"github.com/avpratap/riqueza-cart-sync/internal/middleware"
	"github.com/avpratap/riqueza-cart-sync/internal/reconcile"
	"github.com/avpratap/riqueza-cart-sync/internal/transfer"
)

func Initialize(
	cfg *config.Config,
	cartStore *cart.Store,
	reconciler *reconcile.Reconciler,
	transferProcess *transfer.Process,
	resolver *identity.Resolver,
	logger *logrus.Logger,
) *gin.Engine {
	// Initialize handlers
	cartHandler := handlers.NewCartHandler(cartStore, reconciler, logger)
	sessionHandler := handlers.NewSessionHandler(resolver, transferProcess, cartStore, logger)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AdoptBearerToken(resolver))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		cartGroup := v1.Group("/cart")
		{
			cartGroup.GET("", cartHandler.GetCart)
			cartGroup.POST("/hydrate", cartHandler.Hydrate)
			cartGroup.POST("/reconcile", cartHandler.Reconcile)
			cartGroup.DELETE("", middleware.MutationRateLimit(), cartHandler.ClearCart)

			items := cartGroup.Group("/items")
			items.Use(middleware.MutationRateLimit())
			{
				items.POST("", cartHandler.AddItem)
				items.PUT("/:id/quantity", cartHandler.UpdateQuantity)
				items.POST("/:id/increment", cartHandler.IncrementItem)
				items.POST("/:id/decrement", cartHandler.DecrementItem)
				items.DELETE("/:id", cartHandler.RemoveItem)
			}
		}

		session := v1.Group("/session")
		{
			session.POST("/login", sessionHandler.Login)
			session.DELETE("", sessionHandler.Logout)
		}
	}

	return r
}
