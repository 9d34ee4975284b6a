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

func SetupRoutes(artisanHandler *ArtisanHandler, authMiddleware *auth.Middleware) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(logger.GinLoggerMiddleware())
	router.Use(metrics.GinPrometheusMiddleware("identity-service"))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		AllowWildcard:    true,
		MaxAge:           300,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "identity-service",
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	artisans := router.Group("/artisans")
	artisans.Use(authMiddleware.Authenticate())
	{
		artisans.GET("/:id", artisanHandler.GetArtisan)
		artisans.PUT("/:id/rating", authMiddleware.RequireRole(auth.RoleService), artisanHandler.UpdateRating)
	}

	return router
}
