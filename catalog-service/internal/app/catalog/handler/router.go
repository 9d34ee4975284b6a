package handler

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"artisanmarket/pkg/auth"
	"artisanmarket/pkg/logger"
	"artisanmarket/pkg/metrics"
)

// SetupRoutes настраивает маршруты Catalog Service
func SetupRoutes(offeringHandler *OfferingHandler, authMiddleware *auth.Middleware) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(logger.GinLoggerMiddleware())
	router.Use(metrics.GinPrometheusMiddleware("catalog-service"))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		AllowWildcard:    true,
		MaxAge:           300,
	}))

	// Health check endpoint - публичный, без аутентификации
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "catalog-service",
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	services := router.Group("/services")
	services.Use(authMiddleware.Authenticate())
	{
		services.GET("/:id", offeringHandler.GetOffering)
		// рейтинг пишет только координатор саги
		services.PUT("/:id/rating", authMiddleware.RequireRole(auth.RoleService), offeringHandler.UpdateRating)
	}

	return router
}
