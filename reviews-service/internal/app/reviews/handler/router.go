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

func SetupRoutes(reviewHandler *ReviewHandler, authMiddleware *auth.Middleware) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())

	router.Use(logger.GinLoggerMiddleware())

	router.Use(metrics.GinPrometheusMiddleware("reviews-service"))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		AllowWildcard:    true,
		MaxAge:           300,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "reviews-service",
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	reviews := router.Group("/reviews")
	reviews.Use(authMiddleware.Authenticate())
	{
		reviews.POST("", authMiddleware.RequireRole(auth.RoleClient), reviewHandler.SubmitReview)
		reviews.GET("/:review_id", reviewHandler.GetReview)
		reviews.PATCH("/:review_id", authMiddleware.RequireRole(auth.RoleClient), reviewHandler.UpdateReview)
		reviews.POST("/:review_id/resubmit", authMiddleware.RequireRole(auth.RoleClient), reviewHandler.ResubmitReview)
		reviews.POST("/:review_id/flag", authMiddleware.RequireRole(auth.RoleModerator), reviewHandler.FlagReview)
	}

	// Запросы участников саги
	internal := router.Group("/internal")
	internal.Use(authMiddleware.Authenticate())
	internal.Use(authMiddleware.RequireRole(auth.RoleService))
	{
		internal.GET("/reviews/published", reviewHandler.ListPublished)
	}

	return router
}
