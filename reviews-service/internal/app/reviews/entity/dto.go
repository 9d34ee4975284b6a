package entity

import "artisanmarket/pkg/rating"

type RatingInput struct {
	Value      int            `json:"value"`
	Dimensions map[string]int `json:"dimensions,omitempty"`
}

func (r RatingInput) ToRating() Rating {
	return Rating{Value: r.Value, Dimensions: r.Dimensions}
}

// CreateReviewRequest - запрос на создание отзыва.
// Диапазоны оценок и длину текста проверяет агрегат.
type CreateReviewRequest struct {
	OrderID       string      `json:"order_id" validate:"required"`
	ArtisanID     string      `json:"artisan_id" validate:"required"`
	ServiceID     string      `json:"service_id" validate:"required"`
	Comment       string      `json:"comment"`
	Attachments   []string    `json:"attachments"`
	ArtisanRating RatingInput `json:"artisan_rating"`
	ServiceRating RatingInput `json:"service_rating"`
}

// UpdateReviewRequest - частичное обновление, nil поля не меняются
type UpdateReviewRequest struct {
	Comment       *string      `json:"comment"`
	Attachments   []string     `json:"attachments"`
	ArtisanRating *RatingInput `json:"artisan_rating"`
	ServiceRating *RatingInput `json:"service_rating"`
}

func (r *UpdateReviewRequest) Empty() bool {
	return r.Comment == nil && r.Attachments == nil && r.ArtisanRating == nil && r.ServiceRating == nil
}

type FlagReviewRequest struct {
	Note string `json:"note" validate:"required,max=500"`
}

// ErrorResponse - стандартный ответ об ошибке
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SubmissionResponse - ответ 202: сага запущена, итог нужно запрашивать отдельно
type SubmissionResponse struct {
	Message string  `json:"message"`
	Review  *Review `json:"review"`
}

// PublishedReviewsResponse - ответ внутреннего запроса опубликованных отзывов
type PublishedReviewsResponse struct {
	Reviews []rating.PublishedReview `json:"reviews"`
	Total   int                      `json:"total"`
}
