package handler

import (
	"errors"
	"net/http"

	"artisanmarket/identity-service/internal/app/identity/entity"
	"artisanmarket/identity-service/internal/app/identity/service"
	"artisanmarket/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type ArtisanHandler struct {
	artisanService service.ArtisanServiceInterface
	validator      *validator.Validate
}

func NewArtisanHandler(artisanService service.ArtisanServiceInterface) *ArtisanHandler {
	return &ArtisanHandler{
		artisanService: artisanService,
		validator:      validator.New(),
	}
}

func (h *ArtisanHandler) GetArtisan(c *gin.Context) {
	artisan, err := h.artisanService.GetArtisan(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrArtisanNotFound) {
			c.JSON(http.StatusNotFound, entity.ErrorResponse{Error: "Artisan not found"})
			return
		}
		logger.Error().Err(err).Str("artisan_id", c.Param("id")).Msg("Failed to get artisan")
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Error: "Failed to get artisan"})
		return
	}

	c.JSON(http.StatusOK, artisan)
}

// UpdateRating - запись рейтинга координатором саги
func (h *ArtisanHandler) UpdateRating(c *gin.Context) {
	var req entity.UpdateRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Rating must be between 0 and 5"})
		return
	}

	err := h.artisanService.UpdateRating(c.Request.Context(), c.Param("id"), *req.Rating)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrArtisanNotFound):
			c.JSON(http.StatusNotFound, entity.ErrorResponse{Error: "Artisan not found"})
		case errors.Is(err, service.ErrInvalidRating):
			c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: err.Error()})
		default:
			logger.Error().Err(err).Str("artisan_id", c.Param("id")).Msg("Failed to update artisan rating")
			c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Error: "Failed to update rating"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}
