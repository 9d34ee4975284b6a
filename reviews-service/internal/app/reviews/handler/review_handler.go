package handler

import (
	"errors"
	"net/http"

	"artisanmarket/pkg/logger"
	"artisanmarket/pkg/rating"
	"artisanmarket/reviews-service/internal/app/reviews/entity"
	"artisanmarket/reviews-service/internal/app/reviews/repository"
	"artisanmarket/reviews-service/internal/app/reviews/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type ReviewHandler struct {
	reviewService service.ReviewServiceInterface
	validator     *validator.Validate
}

func NewReviewHandler(reviewService service.ReviewServiceInterface) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
		validator:     validator.New(),
	}
}

// SubmitReview принимает отзыв и отвечает 202: публикация идет в фоне
func (h *ReviewHandler) SubmitReview(c *gin.Context) {
	clientID, ok := currentUser(c)
	if !ok {
		return
	}

	var req entity.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: formatValidationError(err)})
		return
	}

	review, err := h.reviewService.Submit(c.Request.Context(), clientID, &req)
	if err != nil {
		h.writeError(c, err, "Failed to submit review")
		return
	}

	c.JSON(http.StatusAccepted, entity.SubmissionResponse{
		Message: "Review accepted, publication in progress",
		Review:  review,
	})
}

func (h *ReviewHandler) GetReview(c *gin.Context) {
	reviewID := c.Param("review_id")
	if reviewID == "" {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Review ID is required"})
		return
	}

	review, err := h.reviewService.GetReview(c.Request.Context(), reviewID)
	if err != nil {
		h.writeError(c, err, "Failed to get review")
		return
	}

	c.JSON(http.StatusOK, review)
}

func (h *ReviewHandler) UpdateReview(c *gin.Context) {
	clientID, ok := currentUser(c)
	if !ok {
		return
	}

	reviewID := c.Param("review_id")
	if reviewID == "" {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Review ID is required"})
		return
	}

	var req entity.UpdateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Invalid request body"})
		return
	}

	review, err := h.reviewService.UpdateReview(c.Request.Context(), reviewID, clientID, &req)
	if err != nil {
		h.writeError(c, err, "Failed to update review")
		return
	}

	c.JSON(http.StatusAccepted, entity.SubmissionResponse{
		Message: "Review updated, publication in progress",
		Review:  review,
	})
}

func (h *ReviewHandler) ResubmitReview(c *gin.Context) {
	clientID, ok := currentUser(c)
	if !ok {
		return
	}

	review, err := h.reviewService.ResubmitReview(c.Request.Context(), c.Param("review_id"), clientID)
	if err != nil {
		h.writeError(c, err, "Failed to resubmit review")
		return
	}

	c.JSON(http.StatusAccepted, entity.SubmissionResponse{
		Message: "Review resubmitted, publication in progress",
		Review:  review,
	})
}

// FlagReview - эндпоинт модерации
func (h *ReviewHandler) FlagReview(c *gin.Context) {
	var req entity.FlagReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: formatValidationError(err)})
		return
	}

	review, err := h.reviewService.FlagReview(c.Request.Context(), c.Param("review_id"), req.Note)
	if err != nil {
		h.writeError(c, err, "Failed to flag review")
		return
	}

	c.JSON(http.StatusOK, review)
}

// ListPublished отдает опубликованные отзывы по мастеру или услуге для пересчета рейтинга у участников
func (h *ReviewHandler) ListPublished(c *gin.Context) {
	artisanID := c.Query("artisan_id")
	serviceID := c.Query("service_id")

	var kind rating.SubjectKind
	var subjectID string
	switch {
	case artisanID != "" && serviceID == "":
		kind, subjectID = rating.SubjectArtisan, artisanID
	case serviceID != "" && artisanID == "":
		kind, subjectID = rating.SubjectService, serviceID
	default:
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Exactly one of artisan_id or service_id is required"})
		return
	}

	reviews, err := h.reviewService.ListPublished(c.Request.Context(), kind, subjectID)
	if err != nil {
		h.writeError(c, err, "Failed to list published reviews")
		return
	}
	if reviews == nil {
		reviews = []rating.PublishedReview{}
	}

	c.JSON(http.StatusOK, entity.PublishedReviewsResponse{
		Reviews: reviews,
		Total:   len(reviews),
	})
}

// writeError переводит ошибки сервиса и агрегата в HTTP статусы
func (h *ReviewHandler) writeError(c *gin.Context, err error, fallback string) {
	var validationErr *entity.ValidationError
	var transitionErr *entity.IllegalStateTransitionError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Validation failed", Message: validationErr.Field + " " + validationErr.Reason})
	case errors.Is(err, service.ErrNothingToUpdate):
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "No fields to update"})
	case errors.Is(err, service.ErrReferenceNotFound):
		c.JSON(http.StatusUnprocessableEntity, entity.ErrorResponse{Error: "Referenced entity not found", Message: err.Error()})
	case errors.Is(err, service.ErrReviewNotFound):
		c.JSON(http.StatusNotFound, entity.ErrorResponse{Error: "Review not found"})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusForbidden, entity.ErrorResponse{Error: "Access denied"})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, entity.ErrorResponse{Error: "Illegal state transition", Message: transitionErr.Error()})
	case errors.Is(err, service.ErrSagaInProgress):
		c.JSON(http.StatusConflict, entity.ErrorResponse{Error: "Publication already in progress"})
	case errors.Is(err, repository.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, entity.ErrorResponse{Error: "Review was modified concurrently, retry the request"})
	case errors.Is(err, service.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, entity.ErrorResponse{Error: "Service is shutting down"})
	default:
		logger.Error().Err(err).Str("path", c.FullPath()).Msg(fallback)
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Error: fallback})
	}
}

func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, entity.ErrorResponse{Error: "Unauthorized"})
		return "", false
	}
	return userID, true
}

func formatValidationError(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			return fieldError.Field() + " is " + fieldError.Tag()
		}
	}
	return "Validation failed"
}
