package handler

import (
	"errors"
	"net/http"

	"artisanmarket/catalog-service/internal/app/catalog/entity"
	"artisanmarket/catalog-service/internal/app/catalog/service"
	"artisanmarket/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type OfferingHandler struct {
	offeringService service.OfferingServiceInterface
	validator       *validator.Validate
}

func NewOfferingHandler(offeringService service.OfferingServiceInterface) *OfferingHandler {
	return &OfferingHandler{
		offeringService: offeringService,
		validator:       validator.New(),
	}
}

// GetOffering возвращает карточку услуги (из кеша, если она там есть)
func (h *OfferingHandler) GetOffering(c *gin.Context) {
	offering, err := h.offeringService.GetOffering(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrOfferingNotFound) {
			c.JSON(http.StatusNotFound, entity.ErrorResponse{Error: "Service not found"})
			return
		}
		logger.Error().Err(err).Str("service_id", c.Param("id")).Msg("Failed to get offering")
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Error: "Failed to get service"})
		return
	}

	c.JSON(http.StatusOK, offering)
}

func (h *OfferingHandler) UpdateRating(c *gin.Context) {
	var req entity.UpdateRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Rating must be between 0 and 5"})
		return
	}

	err := h.offeringService.UpdateRating(c.Request.Context(), c.Param("id"), *req.Rating)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOfferingNotFound):
			c.JSON(http.StatusNotFound, entity.ErrorResponse{Error: "Service not found"})
		case errors.Is(err, service.ErrInvalidRating):
			c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: err.Error()})
		default:
			logger.Error().Err(err).Str("service_id", c.Param("id")).Msg("Failed to update offering rating")
			c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Error: "Failed to update rating"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}
